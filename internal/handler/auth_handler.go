package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/jwtutil"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/twofactor"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterRequest is the self sign-up form for clients
type RegisterRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=150"`
	Email      string `json:"email" validate:"required,email,max=150"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Phone      string `json:"phone" validate:"omitempty,max=30"`
	Matricula  string `json:"matricula" validate:"required,max=50"`
	Department string `json:"department" validate:"omitempty,max=100"`
	JobTitle   string `json:"job_title" validate:"omitempty,max=100"`
}

// LoginRequest carries credentials and, for 2FA users, the current code
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	OTPCode  string `json:"otp_code" validate:"omitempty,numeric,len=6"`
}

// Register creates a client account and signs it in
func Register(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterCounter.Inc()

	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return err
	}
	email := normalizeEmail(req.Email)

	defer prometheus.TrackDBOperation("query")(time.Now())
	if taken, err := emailTaken(database.GetDB(), email); err != nil {
		return err
	} else if taken {
		log.Warn("Email already registered", zap.String("email", email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	var count int64
	if err := database.GetDB().Model(&model.Client{}).Where("matricula = ?", req.Matricula).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Warn("Matricula already registered", zap.String("matricula", req.Matricula))
		return c.JSON(http.StatusConflict, echo.Map{"error": "matricula already registered"})
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	user := model.User{
		Name:     sanitize(req.Name),
		Email:    email,
		Password: hash,
		Phone:    req.Phone,
		Role:     model.RoleClient,
		IsActive: true,
		Client: &model.Client{
			Matricula:  req.Matricula,
			Department: sanitize(req.Department),
			JobTitle:   sanitize(req.JobTitle),
		},
	}
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&user).Error; err != nil {
		log.Error("Failed to create user", zap.Error(err))
		return err
	}

	token, claims, err := jwtutil.GenerateToken(user.Email, user.ID, string(user.Role))
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"message":    "User registered successfully",
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
		"user":       user,
	})
}

// Login verifies credentials, and the TOTP code when 2FA is on, and issues a token
func Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req LoginRequest
	if err := bind(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return err
	}
	email := normalizeEmail(req.Email)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if err := database.GetDB().Where("email = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		log.Warn("User not found", zap.String("email", email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if !user.IsActive {
		log.Warn("Inactive user tried to sign in", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("inactive_user")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user account is inactive"})
	}

	if user.TwoFactorEnabled {
		if req.OTPCode == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":               "two-factor code required",
				"two_factor_required": true,
			})
		}
		if err := consumeTOTP(&user, req.OTPCode, user.TwoFactorSecret); err != nil {
			if !errors.Is(err, twofactor.ErrInvalidCode) {
				return err
			}
			log.Warn("Invalid two-factor code", zap.Uint("user_id", user.ID), zap.Error(err))
			prometheus.RecordAuthError("invalid_otp")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":               "invalid two-factor code",
				"two_factor_required": true,
			})
		}
	}

	token, claims, err := jwtutil.GenerateToken(user.Email, user.ID, string(user.Role))
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	now := time.Now()
	if err := database.GetDB().Model(&user).Update("last_login_at", now).Error; err != nil {
		log.Warn("Failed to update last login", zap.Error(err))
	}

	if err := database.GetDB().Preload("Agent").Preload("Client").First(&user, user.ID).Error; err != nil {
		return err
	}

	log.Info("User logged in", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return c.JSON(http.StatusOK, echo.Map{
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
		"user":       user,
	})
}

// Logout revokes the presented token
func Logout(c echo.Context) error {
	log := logger.FromEcho(c)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	if identity.TokenID != "" {
		revoked := model.RevokedToken{JTI: identity.TokenID, UserID: identity.UserID, ExpiresAt: identity.ExpiresAt}
		if err := database.GetDB().Create(&revoked).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Error("Failed to revoke token", zap.Error(err))
			return err
		}
	}
	if token, ok := c.Get(middleware.ContextToken).(string); ok && deps.TokenCache != nil {
		deps.TokenCache.Delete(token)
	}

	log.Info("User logged out", zap.Uint("user_id", identity.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// SetupTwoFactor creates a secret the user has to confirm with VerifyTwoFactor
func SetupTwoFactor(c echo.Context) error {
	log := logger.FromEcho(c)

	var user model.User
	if err := database.GetDB().First(&user, middleware.CurrentUserID(c)).Error; err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "two-factor authentication is already enabled"})
	}

	setup, err := deps.TOTP.Generate(user.Email)
	if err != nil {
		log.Error("Failed to generate TOTP secret", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to set up two-factor authentication"})
	}

	if err := database.GetDB().Model(&user).Update("two_factor_pending_secret", setup.Secret).Error; err != nil {
		return err
	}

	log.Info("Two-factor setup started", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, setup)
}

// TwoFactorCodeRequest carries a TOTP code
type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

// VerifyTwoFactor confirms the pending secret and turns 2FA on
func VerifyTwoFactor(c echo.Context) error {
	log := logger.FromEcho(c)

	var req TwoFactorCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var user model.User
	if err := database.GetDB().First(&user, middleware.CurrentUserID(c)).Error; err != nil {
		return err
	}
	if user.TwoFactorPendingSecret == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no two-factor setup in progress"})
	}
	if err := consumeTOTP(&user, req.Code, user.TwoFactorPendingSecret); err != nil {
		if !errors.Is(err, twofactor.ErrInvalidCode) {
			return err
		}
		prometheus.RecordAuthError("invalid_otp")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid two-factor code"})
	}

	err := database.GetDB().Model(&user).Updates(map[string]interface{}{
		"two_factor_enabled":        true,
		"two_factor_secret":         user.TwoFactorPendingSecret,
		"two_factor_pending_secret": "",
	}).Error
	if err != nil {
		return err
	}

	log.Info("Two-factor authentication enabled", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "two-factor authentication enabled"})
}

// DisableTwoFactorRequest needs both factors
type DisableTwoFactorRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required,numeric,len=6"`
}

// DisableTwoFactor turns 2FA off
func DisableTwoFactor(c echo.Context) error {
	log := logger.FromEcho(c)

	var req DisableTwoFactorRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var user model.User
	if err := database.GetDB().First(&user, middleware.CurrentUserID(c)).Error; err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "two-factor authentication is not enabled"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := consumeTOTP(&user, req.Code, user.TwoFactorSecret); err != nil {
		if !errors.Is(err, twofactor.ErrInvalidCode) {
			return err
		}
		prometheus.RecordAuthError("invalid_otp")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid two-factor code"})
	}

	err := database.GetDB().Model(&user).Updates(map[string]interface{}{
		"two_factor_enabled":        false,
		"two_factor_secret":         "",
		"two_factor_pending_secret": "",
	}).Error
	if err != nil {
		return err
	}

	log.Info("Two-factor authentication disabled", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "two-factor authentication disabled"})
}

// consumeTOTP validates code and records its time step, so each code signs in once
func consumeTOTP(user *model.User, code, secret string) error {
	step, err := deps.TOTP.ValidateAfter(code, secret, user.TwoFactorLastStep)
	if err != nil {
		return err
	}
	res := database.GetDB().Model(&model.User{}).
		Where("id = ? AND two_factor_last_step < ?", user.ID, step).
		Update("two_factor_last_step", step)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// a concurrent request used this or a later step first
		return twofactor.ErrCodeReused
	}
	user.TwoFactorLastStep = step
	return nil
}

// revokeSessions invalidates every token of the user issued up to now
func revokeSessions(tx *gorm.DB, userID uint) (time.Time, error) {
	// Token timestamps have second precision
	cutoff := time.Now().Truncate(time.Second).Add(time.Second)
	err := tx.Model(&model.User{}).Where("id = ?", userID).Update("tokens_valid_after", cutoff).Error
	return cutoff, err
}

// evictSessions drops cached tokens after revokeSessions committed
func evictSessions(userID uint, cutoff time.Time) {
	if deps.TokenCache != nil {
		deps.TokenCache.RevokeUser(userID, cutoff)
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailTaken(db *gorm.DB, email string) (bool, error) {
	var count int64
	err := db.Model(&model.User{}).Unscoped().Where("email = ?", email).Count(&count).Error
	return count > 0, err
}
