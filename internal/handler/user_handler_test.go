package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func (s *testServer) uploadAvatar(t *testing.T, token string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("avatar", "avatar.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/user/me/avatar", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestGetAndUpdateProfile(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, model.RoleClient, "client@senai.br")
	token := s.token(t, user)

	rec := s.do(t, http.MethodGet, "/user/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.User
	decode(t, rec, &me)
	assert.Equal(t, user.Email, me.Email)
	require.NotNil(t, me.Client)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPut, "/user/me", token, echo.Map{
		"name":       "Joana <b>Lima</b>",
		"phone":      "11 99999-0000",
		"department": "Mechanics",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &me)
	assert.Equal(t, "Joana Lima", me.Name)
	assert.Equal(t, "11 99999-0000", me.Phone)
	require.NotNil(t, me.Client)
	assert.Equal(t, "Mechanics", me.Client.Department)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/user/me", token, echo.Map{"name": "J"}).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/user/me", "", nil).Code)
}

func TestChangePasswordSignsOutSessions(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, model.RoleClient, "client@senai.br")
	token := s.token(t, user)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/user/me", token, nil).Code)
	s.cache.Wait()

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/user/me/password", token, echo.Map{
		"current_password": "wrong-password", "new_password": "anothersecret",
	}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/user/me/password", token, echo.Map{
		"current_password": testPassword, "new_password": testPassword,
	}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/user/me/password", token, echo.Map{
		"current_password": testPassword, "new_password": "short",
	}).Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/user/me/password", token, echo.Map{
		"current_password": testPassword, "new_password": "anothersecret",
	}).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/user/me", token, nil).Code)

	status, _ := s.login(t, echo.Map{"email": user.Email, "password": "anothersecret"})
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.login(t, echo.Map{"email": user.Email, "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAvatarUploadAndDelete(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, model.RoleClient, "client@senai.br")
	token := s.token(t, user)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/user/me/avatar", token, nil).Code)
	assert.Equal(t, http.StatusUnsupportedMediaType, s.uploadAvatar(t, token, []byte("just some text")).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, s.uploadAvatar(t, token, append(pngHeader, make([]byte, 2048)...)).Code)

	rec := s.uploadAvatar(t, token, pngHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first struct {
		AvatarURL string `json:"avatar_url"`
	}
	decode(t, rec, &first)
	assert.True(t, strings.HasPrefix(first.AvatarURL, "http://localhost:8080/uploads/users/"), first.AvatarURL)
	assert.True(t, strings.HasSuffix(first.AvatarURL, ".png"), first.AvatarURL)

	var stored model.User
	require.NoError(t, s.db.First(&stored, user.ID).Error)
	firstFile := filepath.Join(s.uploads, filepath.FromSlash(stored.AvatarKey))
	assert.FileExists(t, firstFile)

	rec = s.uploadAvatar(t, token, pngHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(firstFile)
	assert.True(t, os.IsNotExist(err), "previous avatar should be removed")

	require.NoError(t, s.db.First(&stored, user.ID).Error)
	secondFile := filepath.Join(s.uploads, filepath.FromSlash(stored.AvatarKey))
	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/user/me/avatar", token, nil).Code)
	_, err = os.Stat(secondFile)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.db.First(&stored, user.ID).Error)
	assert.Empty(t, stored.AvatarURL)
	assert.Empty(t, stored.AvatarKey)
}
