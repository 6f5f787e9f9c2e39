package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database/dbtest"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRespondTicketReturnsReloadError(t *testing.T) {
	dbtest.OpenTestDB(t)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := respondTicket(c, http.StatusOK, 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, rec.Body.Len())
}
