package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CategoryRequest defines the structure for category creation requests
type CategoryRequest struct {
	Name            string         `json:"name" validate:"required,max=100"`
	Description     string         `json:"description" validate:"omitempty,max=1000"`
	Color           string         `json:"color" validate:"omitempty,max=20"`
	Icon            string         `json:"icon" validate:"omitempty,max=50"`
	DefaultPriority model.Priority `json:"default_priority" validate:"omitempty,oneof=Low Medium High Critical"`
	ResolutionHours int            `json:"resolution_hours" validate:"omitempty,min=0,max=8760"`
}

// UpdateCategoryRequest defines a partial category update
type UpdateCategoryRequest struct {
	Name            *string         `json:"name" validate:"omitempty,min=1,max=100"`
	Description     *string         `json:"description" validate:"omitempty,max=1000"`
	Color           *string         `json:"color" validate:"omitempty,max=20"`
	Icon            *string         `json:"icon" validate:"omitempty,max=50"`
	IsActive        *bool           `json:"is_active"`
	DefaultPriority *model.Priority `json:"default_priority" validate:"omitempty,oneof=Low Medium High Critical"`
	ResolutionHours *int            `json:"resolution_hours" validate:"omitempty,min=0,max=8760"`
}

// SubcategoryRequest defines the structure for subcategory creation requests
type SubcategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// UpdateSubcategoryRequest defines a partial subcategory update
type UpdateSubcategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IsActive    *bool   `json:"is_active"`
}

// ListCategories lists active categories; admins may ask for inactive ones too
func ListCategories(c echo.Context) error {
	log := logger.FromEcho(c)

	includeInactive, _ := queryBool(c, "include_inactive")
	includeInactive = includeInactive && middleware.CurrentRole(c) == model.RoleAdmin

	query := database.GetDB().Order("name ASC")
	if includeInactive {
		query = query.Preload("Subcategories", func(db *gorm.DB) *gorm.DB {
			return db.Order("name ASC")
		})
	} else {
		query = query.Where("is_active = ?", true).Preload("Subcategories", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("name ASC")
		})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var categories []model.Category
	if err := query.Find(&categories).Error; err != nil {
		log.Error("Failed to retrieve categories", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve categories"})
	}

	log.Debug("Categories retrieved", zap.Int("count", len(categories)))
	return c.JSON(http.StatusOK, categories)
}

// GetCategory retrieves a category with its subcategories
func GetCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var category model.Category
	err = database.GetDB().Preload("Subcategories", func(db *gorm.DB) *gorm.DB {
		return db.Order("name ASC")
	}).First(&category, id).Error
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	}
	if !category.IsActive && middleware.CurrentRole(c) != model.RoleAdmin {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	}
	return c.JSON(http.StatusOK, category)
}

// CreateCategory adds a new category
func CreateCategory(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordCategoryOperation("create")

	var req CategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	name := sanitize(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	if exists, err := categoryNameExists(name, 0); err != nil {
		return err
	} else if exists {
		log.Warn("Category with this name already exists", zap.String("name", name))
		return c.JSON(http.StatusConflict, echo.Map{"error": "Category with this name already exists"})
	}

	priority := req.DefaultPriority
	if priority == "" {
		priority = model.PriorityMedium
	}
	category := model.Category{
		Name:            name,
		Description:     sanitize(req.Description),
		Color:           req.Color,
		Icon:            req.Icon,
		IsActive:        true,
		DefaultPriority: priority,
		ResolutionHours: req.ResolutionHours,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&category).Error; err != nil {
		log.Error("Failed to create category", zap.String("name", name), zap.Error(err))
		return err
	}

	log.Info("Category created successfully", zap.Uint("category_id", category.ID), zap.String("name", category.Name))
	return c.JSON(http.StatusCreated, category)
}

// UpdateCategory updates an existing category
func UpdateCategory(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordCategoryOperation("update")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateCategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var category model.Category
	if err := database.GetDB().First(&category, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := sanitize(*req.Name)
		if name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
		}
		if exists, err := categoryNameExists(name, category.ID); err != nil {
			return err
		} else if exists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "Category with this name already exists"})
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = sanitize(*req.Description)
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.DefaultPriority != nil {
		updates["default_priority"] = *req.DefaultPriority
	}
	if req.ResolutionHours != nil {
		updates["resolution_hours"] = *req.ResolutionHours
	}

	if len(updates) > 0 {
		defer prometheus.TrackDBOperation("update")(time.Now())
		if err := database.GetDB().Model(&category).Updates(updates).Error; err != nil {
			log.Error("Failed to update category", zap.Uint("category_id", id), zap.Error(err))
			return err
		}
	}
	if err := database.GetDB().Preload("Subcategories").First(&category, id).Error; err != nil {
		return err
	}

	log.Info("Category updated successfully", zap.Uint("category_id", category.ID))
	return c.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category and its subcategories unless tickets use it
func DeleteCategory(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordCategoryOperation("delete")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var category model.Category
	if err := database.GetDB().First(&category, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	}

	var tickets int64
	if err := database.GetDB().Model(&model.Ticket{}).Where("category_id = ?", id).Count(&tickets).Error; err != nil {
		return err
	}
	if tickets > 0 {
		log.Warn("Refusing to delete category with tickets", zap.Uint("category_id", id), zap.Int64("tickets", tickets))
		return c.JSON(http.StatusConflict, echo.Map{"error": "Category has tickets and cannot be deleted"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", id).Delete(&model.Subcategory{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM agent_categories WHERE category_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		log.Error("Failed to delete category", zap.Uint("category_id", id), zap.Error(err))
		return err
	}

	log.Info("Category deleted successfully", zap.Uint("category_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Category deleted successfully"})
}

// ListSubcategories lists the subcategories of a category
func ListSubcategories(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var category model.Category
	if err := database.GetDB().First(&category, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	}

	query := database.GetDB().Where("category_id = ?", id).Order("name ASC")
	if includeInactive, _ := queryBool(c, "include_inactive"); !includeInactive || middleware.CurrentRole(c) != model.RoleAdmin {
		query = query.Where("is_active = ?", true)
	}
	var subcategories []model.Subcategory
	if err := query.Find(&subcategories).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subcategories)
}

// CreateSubcategory adds a subcategory to a category
func CreateSubcategory(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordCategoryOperation("create_subcategory")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req SubcategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	name := sanitize(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	var category model.Category
	if err := database.GetDB().First(&category, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	}
	if exists, err := subcategoryNameExists(id, name, 0); err != nil {
		return err
	} else if exists {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Subcategory with this name already exists in the category"})
	}

	subcategory := model.Subcategory{
		CategoryID:  id,
		Name:        name,
		Description: sanitize(req.Description),
		IsActive:    true,
	}
	if err := database.GetDB().Create(&subcategory).Error; err != nil {
		log.Error("Failed to create subcategory", zap.Error(err))
		return err
	}

	log.Info("Subcategory created", zap.Uint("subcategory_id", subcategory.ID), zap.Uint("category_id", id))
	return c.JSON(http.StatusCreated, subcategory)
}

// UpdateSubcategory updates a subcategory
func UpdateSubcategory(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordCategoryOperation("update_subcategory")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateSubcategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var subcategory model.Subcategory
	if err := database.GetDB().First(&subcategory, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Subcategory not found"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := sanitize(*req.Name)
		if name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
		}
		if exists, err := subcategoryNameExists(subcategory.CategoryID, name, subcategory.ID); err != nil {
			return err
		} else if exists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "Subcategory with this name already exists in the category"})
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = sanitize(*req.Description)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := database.GetDB().Model(&subcategory).Updates(updates).Error; err != nil {
			return err
		}
		if err := database.GetDB().First(&subcategory, id).Error; err != nil {
			return err
		}
	}

	log.Info("Subcategory updated", zap.Uint("subcategory_id", subcategory.ID))
	return c.JSON(http.StatusOK, subcategory)
}

// DeleteSubcategory removes a subcategory unless tickets use it
func DeleteSubcategory(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordCategoryOperation("delete_subcategory")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var subcategory model.Subcategory
	if err := database.GetDB().First(&subcategory, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Subcategory not found"})
	}

	var tickets int64
	if err := database.GetDB().Model(&model.Ticket{}).Where("subcategory_id = ?", id).Count(&tickets).Error; err != nil {
		return err
	}
	if tickets > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Subcategory has tickets and cannot be deleted"})
	}

	if err := database.GetDB().Delete(&subcategory).Error; err != nil {
		return err
	}

	log.Info("Subcategory deleted", zap.Uint("subcategory_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Subcategory deleted successfully"})
}

func categoryNameExists(name string, exceptID uint) (bool, error) {
	var count int64
	err := database.GetDB().Model(&model.Category{}).
		Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptID).
		Count(&count).Error
	return count > 0, err
}

func subcategoryNameExists(categoryID uint, name string, exceptID uint) (bool, error) {
	var count int64
	err := database.GetDB().Model(&model.Subcategory{}).
		Where("category_id = ? AND LOWER(name) = ? AND id <> ?", categoryID, strings.ToLower(name), exceptID).
		Count(&count).Error
	return count > 0, err
}
