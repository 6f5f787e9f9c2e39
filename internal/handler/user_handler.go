package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// UpdateProfileRequest holds the profile fields a user may change; nil fields are kept
type UpdateProfileRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=2,max=150"`
	Phone      *string `json:"phone" validate:"omitempty,max=30"`
	Department *string `json:"department" validate:"omitempty,max=100"`
	JobTitle   *string `json:"job_title" validate:"omitempty,max=100"`
	Skills     *string `json:"skills" validate:"omitempty,max=2000"`
}

// ChangePasswordRequest is the body of PUT /user/me/password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

func loadProfile(db *gorm.DB, userID uint) (*model.User, error) {
	var user model.User
	err := db.Preload("Agent").Preload("Agent.Categories").Preload("Client").First(&user, userID).Error
	return &user, err
}

// GetMe returns the signed in user with its agent or client profile
func GetMe(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := loadProfile(database.GetDB(), middleware.CurrentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateMe changes the caller's own profile
func UpdateMe(c echo.Context) error {
	log := logger.FromEcho(c)
	userID := middleware.CurrentUserID(c)

	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		user, err := loadProfile(tx, userID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = sanitize(*req.Name)
		}
		if req.Phone != nil {
			updates["phone"] = sanitize(*req.Phone)
		}
		if len(updates) > 0 {
			if err := tx.Model(user).Updates(updates).Error; err != nil {
				return err
			}
		}

		switch {
		case user.Agent != nil:
			agentUpdates := map[string]interface{}{}
			if req.Department != nil {
				agentUpdates["department"] = sanitize(*req.Department)
			}
			if req.Skills != nil {
				agentUpdates["skills"] = sanitize(*req.Skills)
			}
			if len(agentUpdates) > 0 {
				return tx.Model(user.Agent).Updates(agentUpdates).Error
			}
		case user.Client != nil:
			clientUpdates := map[string]interface{}{}
			if req.Department != nil {
				clientUpdates["department"] = sanitize(*req.Department)
			}
			if req.JobTitle != nil {
				clientUpdates["job_title"] = sanitize(*req.JobTitle)
			}
			if len(clientUpdates) > 0 {
				return tx.Model(user.Client).Updates(clientUpdates).Error
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to update profile", zap.Error(err))
		return err
	}

	user, err := loadProfile(database.GetDB(), userID)
	if err != nil {
		return err
	}
	log.Info("Profile updated", zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the caller's password and signs out every session
func ChangePassword(c echo.Context) error {
	log := logger.FromEcho(c)
	userID := middleware.CurrentUserID(c)

	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var user model.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current password is incorrect"})
	}
	if req.NewPassword == req.CurrentPassword {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new password must differ from the current one"})
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change password"})
	}

	var cutoff time.Time
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", hash).Error; err != nil {
			return err
		}
		cutoff, err = revokeSessions(tx, user.ID)
		return err
	})
	if err != nil {
		log.Error("Failed to change password", zap.Error(err))
		return err
	}
	evictSessions(user.ID, cutoff)

	log.Info("Password changed", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed, please sign in again"})
}

// UploadAvatar stores a new profile picture and replaces the previous one
func UploadAvatar(c echo.Context) error {
	log := logger.FromEcho(c)
	userID := middleware.CurrentUserID(c)

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "avatar file is required"})
	}
	if file.Size > deps.MaxAvatarBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": fmt.Sprintf("avatar must be at most %d bytes", deps.MaxAvatarBytes),
		})
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read avatar"})
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	ext, ok := avatarTypes[contentType]
	if !ok {
		return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": "avatar must be a PNG, JPEG or WebP image"})
	}

	var user model.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		return err
	}

	key := fmt.Sprintf("users/%d/%s%s", userID, uuid.NewString(), ext)
	url, err := deps.Storage.Upload(c.Request().Context(), key, contentType, io.MultiReader(bytes.NewReader(head), src))
	if err != nil {
		log.Error("Failed to store avatar", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to store avatar"})
	}

	previous := user.AvatarKey
	if err := database.GetDB().Model(&user).Updates(map[string]interface{}{"avatar_url": url, "avatar_key": key}).Error; err != nil {
		return err
	}
	if previous != "" {
		if err := deps.Storage.Delete(c.Request().Context(), previous); err != nil {
			log.Warn("Failed to delete previous avatar", zap.String("key", previous), zap.Error(err))
		}
	}

	log.Info("Avatar updated", zap.Uint("user_id", userID), zap.String("key", key))
	return c.JSON(http.StatusOK, echo.Map{"avatar_url": url})
}

// DeleteAvatar removes the caller's profile picture
func DeleteAvatar(c echo.Context) error {
	log := logger.FromEcho(c)

	var user model.User
	if err := database.GetDB().First(&user, middleware.CurrentUserID(c)).Error; err != nil {
		return err
	}
	if user.AvatarKey == "" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no avatar to delete"})
	}

	if err := deps.Storage.Delete(c.Request().Context(), user.AvatarKey); err != nil {
		log.Error("Failed to delete avatar", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to delete avatar"})
	}
	if err := database.GetDB().Model(&user).Updates(map[string]interface{}{"avatar_url": "", "avatar_key": ""}).Error; err != nil {
		return err
	}

	log.Info("Avatar deleted", zap.Uint("user_id", user.ID))
	return c.NoContent(http.StatusNoContent)
}
