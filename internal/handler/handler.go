package handler

import (
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/notification"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/sla"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/storage"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/twofactor"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// Dependencies are the services the handlers call besides the database
type Dependencies struct {
	TokenCache     *middleware.TokenCache
	Notifier       *notification.Service
	Storage        storage.Storage
	TOTP           *twofactor.TOTP
	Evaluator      sla.Evaluator
	Monitor        *sla.Monitor
	MaxAvatarBytes int64
}

var deps Dependencies

// Init sets the services used by the handlers
func Init(d Dependencies) {
	if d.MaxAvatarBytes <= 0 {
		d.MaxAvatarBytes = 2 << 20
	}
	deps = d
}

var textPolicy = bluemonday.StrictPolicy()

// sanitize strips markup from free text entered by users. The policy escapes
// the text it keeps, so it is unescaped again to store what was typed.
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// bind decodes the request body into req and validates it
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	return c.Validate(req)
}

// paramID parses a numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// Pagination describes a page of a list response
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
}

// pageParams reads page and limit, defaulting to the first 20 items
func pageParams(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// paginate counts query and returns the page window applied to it.
// Preloads and ordering go on the returned query.
func paginate(query *gorm.DB, model interface{}, page, limit int) (*gorm.DB, Pagination, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Model(model).Count(&total).Error; err != nil {
		return nil, Pagination{}, err
	}
	p := Pagination{
		CurrentPage: page,
		Limit:       limit,
		Total:       total,
		TotalPages:  (int(total) + limit - 1) / limit,
	}
	return query.Offset((page - 1) * limit).Limit(limit), p, nil
}

func queryBool(c echo.Context, name string) (bool, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// likePattern builds a case insensitive substring pattern for LOWER(column) LIKE ?
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
