package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authResponse struct {
	Token             string     `json:"token"`
	User              model.User `json:"user"`
	TwoFactorRequired bool       `json:"two_factor_required"`
}

func (s *testServer) login(t *testing.T, body echo.Map) (int, authResponse) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", "", body)
	var resp authResponse
	decode(t, rec, &resp)
	return rec.Code, resp
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	body := echo.Map{
		"name":      "Maria Souza",
		"email":     "Maria@SENAI.br",
		"password":  "supersecret",
		"matricula": "2024001",
	}
	rec := s.do(t, http.MethodPost, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "maria@senai.br", resp.User.Email)
	assert.Equal(t, model.RoleClient, resp.User.Role)
	require.NotNil(t, resp.User.Client)
	assert.Equal(t, "2024001", resp.User.Client.Matricula)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/user/me", resp.Token, nil).Code)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/auth/register", "", body).Code)

	body["email"] = "other@senai.br"
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/auth/register", "", body).Code)

	rec = s.do(t, http.MethodPost, "/auth/register", "", echo.Map{"name": "X", "email": "bad", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var validation struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	decode(t, rec, &validation)
	assert.NotEmpty(t, validation.Fields)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, model.RoleAgent, "agent@senai.br")

	code, resp := s.login(t, echo.Map{"email": "AGENT@senai.br", "password": testPassword})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)

	var stored model.User
	require.NoError(t, s.db.First(&stored, user.ID).Error)
	assert.NotNil(t, stored.LastLoginAt)

	code, _ = s.login(t, echo.Map{"email": "agent@senai.br", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.login(t, echo.Map{"email": "nobody@senai.br", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, code)

	require.NoError(t, s.db.Model(&stored).Update("is_active", false).Error)
	code, _ = s.login(t, echo.Map{"email": "agent@senai.br", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, model.RoleClient, "client@senai.br")
	token := s.token(t, user)
	other := s.token(t, user)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/user/me", token, nil).Code)
	s.cache.Wait()

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", token, nil).Code)
	s.cache.Wait()

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/user/me", token, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/user/me", other, nil).Code)
}

func TestTwoFactorFlow(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, model.RoleClient, "client@senai.br")
	token := s.token(t, user)

	rec := s.do(t, http.MethodPost, "/auth/2fa/setup", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var setup struct {
		Secret     string `json:"secret"`
		OTPAuthURL string `json:"otpauth_url"`
	}
	decode(t, rec, &setup)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://totp/")

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/auth/2fa/verify", token, echo.Map{"code": "000000"}).Code)

	// Each accepted code burns its time step, so the flow walks the skew window forward
	codeAt := func(offset time.Duration) string {
		code, err := totp.GenerateCode(setup.Secret, time.Now().Add(offset))
		require.NoError(t, err)
		return code
	}

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/2fa/verify", token, echo.Map{"code": codeAt(-30 * time.Second)}).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/auth/2fa/setup", token, nil).Code)

	status, resp := s.login(t, echo.Map{"email": user.Email, "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.True(t, resp.TwoFactorRequired)

	code := codeAt(0)
	status, resp = s.login(t, echo.Map{"email": user.Email, "password": testPassword, "otp_code": code})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.User.TwoFactorEnabled)

	status, resp = s.login(t, echo.Map{"email": user.Email, "password": testPassword, "otp_code": code})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.True(t, resp.TwoFactorRequired)

	next := codeAt(30 * time.Second)
	assert.Equal(t, http.StatusUnauthorized,
		s.do(t, http.MethodPost, "/auth/2fa/disable", token, echo.Map{"password": "wrong-password", "code": next}).Code)
	assert.Equal(t, http.StatusUnauthorized,
		s.do(t, http.MethodPost, "/auth/2fa/disable", token, echo.Map{"password": testPassword, "code": code}).Code)
	require.Equal(t, http.StatusOK,
		s.do(t, http.MethodPost, "/auth/2fa/disable", token, echo.Map{"password": testPassword, "code": next}).Code)

	status, _ = s.login(t, echo.Map{"email": user.Email, "password": testPassword})
	assert.Equal(t, http.StatusOK, status)
}
