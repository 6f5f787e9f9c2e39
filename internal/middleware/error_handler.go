package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/apperror"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FieldError describes one failed validation rule
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Postgres error codes that gorm does not translate
var pgErrorMessages = map[string]struct {
	status  int
	message string
}{
	"23505": {http.StatusConflict, "a record with the same unique value already exists"},
	"23503": {http.StatusConflict, "the record references or is referenced by another record"},
	"23502": {http.StatusBadRequest, "a required field is missing"},
	"23514": {http.StatusBadRequest, "a field value is out of the allowed range"},
	"22P02": {http.StatusBadRequest, "invalid input syntax"},
	"22001": {http.StatusBadRequest, "a field value is too long"},
	"40001": {http.StatusConflict, "concurrent update, please retry"},
}

// ErrorHandler maps errors returned by handlers to JSON responses
func ErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := ResolveError(err)
		if status >= http.StatusInternalServerError {
			logger.FromEcho(c).Error("Unhandled error",
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.FromEcho(c).Error("Failed to write error response", zap.Error(writeErr))
		}
	}
}

// ResolveError returns the status code and body for err
func ResolveError(err error) (int, echo.Map) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := httpErr.Message
		if m, ok := message.(string); ok {
			return httpErr.Code, echo.Map{"error": m}
		}
		return httpErr.Code, echo.Map{"error": fmt.Sprint(message)}
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
		return http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields}
	}

	if status, ok := apperror.StatusCode(err); ok {
		return status, echo.Map{"error": apperror.Message(err)}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, echo.Map{"error": "record not found"}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, echo.Map{"error": pgErrorMessages["23505"].message}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return http.StatusConflict, echo.Map{"error": pgErrorMessages["23503"].message}
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return http.StatusBadRequest, echo.Map{"error": pgErrorMessages["23514"].message}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if mapped, ok := pgErrorMessages[pgErr.Code]; ok {
			return mapped.status, echo.Map{"error": mapped.message}
		}
	}

	return http.StatusInternalServerError, echo.Map{"error": "internal server error"}
}
