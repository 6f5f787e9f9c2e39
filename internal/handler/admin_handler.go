package handler

import (
	"net/http"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/middleware"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/ticket"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserStatusRequest toggles an account
type UserStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// CreateAgentRequest creates a user with the Agent role and its staff profile
type CreateAgentRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=150"`
	Email       string `json:"email" validate:"required,email,max=150"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Phone       string `json:"phone" validate:"omitempty,max=30"`
	EmployeeID  string `json:"employee_id" validate:"required,max=50"`
	Department  string `json:"department" validate:"omitempty,max=100"`
	Skills      string `json:"skills" validate:"omitempty,max=2000"`
	MaxTickets  int    `json:"max_tickets" validate:"omitempty,min=1,max=100"`
	CategoryIDs []uint `json:"category_ids" validate:"omitempty,dive,required"`
}

// UpdateAgentRequest changes an agent profile; nil fields are kept
type UpdateAgentRequest struct {
	Department  *string `json:"department" validate:"omitempty,max=100"`
	Skills      *string `json:"skills" validate:"omitempty,max=2000"`
	MaxTickets  *int    `json:"max_tickets" validate:"omitempty,min=1,max=100"`
	IsActive    *bool   `json:"is_active"`
	CategoryIDs *[]uint `json:"category_ids" validate:"omitempty,dive,required"`
}

// CreateClientRequest creates a user with the Client role
type CreateClientRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=150"`
	Email      string `json:"email" validate:"required,email,max=150"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Phone      string `json:"phone" validate:"omitempty,max=30"`
	Matricula  string `json:"matricula" validate:"required,max=50"`
	Department string `json:"department" validate:"omitempty,max=100"`
	JobTitle   string `json:"job_title" validate:"omitempty,max=100"`
	CPF        string `json:"cpf" validate:"omitempty,max=14"`
}

// AgentView is an agent with its current workload
type AgentView struct {
	model.Agent
	OpenTickets int64 `json:"open_tickets"`
}

// ListUsers lists accounts with optional role, is_active and search filters
func ListUsers(c echo.Context) error {
	log := logger.FromEcho(c)
	page, limit := pageParams(c)

	query := database.GetDB().Model(&model.User{})
	if role := model.Role(c.QueryParam("role")); role != "" {
		if !role.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
		}
		query = query.Where("role = ?", role)
	}
	if active, ok := queryBool(c, "is_active"); ok {
		query = query.Where("is_active = ?", active)
	}
	if search := c.QueryParam("search"); search != "" {
		pattern := likePattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	query, pagination, err := paginate(query, &model.User{}, page, limit)
	if err != nil {
		return err
	}
	var users []model.User
	if err := query.Preload("Agent").Preload("Client").Order("name ASC").Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users":      users,
		"pagination": pagination,
	})
}

// GetUser returns one account with its profile
func GetUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := loadProfile(database.GetDB(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUserStatus activates or deactivates an account; deactivation signs it out everywhere
func UpdateUserStatus(c echo.Context) error {
	log := logger.FromEcho(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req UserStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if id == middleware.CurrentUserID(c) && !*req.IsActive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot deactivate your own account"})
	}

	var user model.User
	var cutoff time.Time
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("is_active", *req.IsActive).Error; err != nil {
			return err
		}
		user.IsActive = *req.IsActive
		if *req.IsActive {
			return nil
		}
		var err error
		cutoff, err = revokeSessions(tx, user.ID)
		return err
	})
	if err != nil {
		return err
	}
	if !*req.IsActive {
		evictSessions(user.ID, cutoff)
	}

	log.Info("User status changed", zap.Uint("user_id", user.ID), zap.Bool("is_active", *req.IsActive))
	return c.JSON(http.StatusOK, user)
}

// CreateAgent registers a staff member able to work on tickets
func CreateAgent(c echo.Context) error {
	log := logger.FromEcho(c)

	var req CreateAgentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	email := normalizeEmail(req.Email)

	if taken, err := emailTaken(database.GetDB(), email); err != nil {
		return err
	} else if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}
	var count int64
	if err := database.GetDB().Model(&model.Agent{}).Where("employee_id = ?", req.EmployeeID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "employee_id already registered"})
	}

	categories, err := findCategories(database.GetDB(), req.CategoryIDs)
	if err != nil {
		return err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return err
	}

	maxTickets := req.MaxTickets
	if maxTickets == 0 {
		maxTickets = 10
	}
	user := model.User{
		Name:     sanitize(req.Name),
		Email:    email,
		Password: hash,
		Phone:    req.Phone,
		Role:     model.RoleAgent,
		IsActive: true,
	}
	agent := model.Agent{
		EmployeeID: req.EmployeeID,
		Department: sanitize(req.Department),
		Skills:     sanitize(req.Skills),
		MaxTickets: maxTickets,
		IsActive:   true,
		Categories: categories,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		agent.UserID = user.ID
		return tx.Create(&agent).Error
	})
	if err != nil {
		log.Error("Failed to create agent", zap.Error(err))
		return err
	}
	agent.User = &user

	log.Info("Agent created", zap.Uint("agent_id", agent.ID), zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, agent)
}

// UpdateAgent changes an agent profile and its categories
func UpdateAgent(c echo.Context) error {
	log := logger.FromEcho(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateAgentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var agent model.Agent
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&agent, id).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Department != nil {
			updates["department"] = sanitize(*req.Department)
		}
		if req.Skills != nil {
			updates["skills"] = sanitize(*req.Skills)
		}
		if req.MaxTickets != nil {
			updates["max_tickets"] = *req.MaxTickets
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if len(updates) > 0 {
			if err := tx.Model(&agent).Updates(updates).Error; err != nil {
				return err
			}
		}

		if req.CategoryIDs != nil {
			categories, err := findCategories(tx, *req.CategoryIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&agent).Association("Categories").Replace(categories); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := database.GetDB().Preload("User").Preload("Categories").First(&agent, id).Error; err != nil {
		return err
	}
	log.Info("Agent updated", zap.Uint("agent_id", agent.ID))
	return c.JSON(http.StatusOK, agent)
}

// ListAgents lists agents with their workload, optionally for one category
func ListAgents(c echo.Context) error {
	page, limit := pageParams(c)

	query := database.GetDB().Model(&model.Agent{})
	if categoryID := c.QueryParam("category_id"); categoryID != "" {
		query = query.Where("id IN (?)", database.GetDB().Table("agent_categories").
			Select("agent_id").Where("category_id = ?", categoryID))
	}
	if active, ok := queryBool(c, "is_active"); ok {
		query = query.Where("is_active = ?", active)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	query, pagination, err := paginate(query, &model.Agent{}, page, limit)
	if err != nil {
		return err
	}
	var agents []model.Agent
	if err := query.Preload("User").Preload("Categories").Order("id ASC").Find(&agents).Error; err != nil {
		return err
	}

	views := make([]AgentView, 0, len(agents))
	for _, agent := range agents {
		load, err := ticket.AgentLoad(database.GetDB(), agent.ID)
		if err != nil {
			return err
		}
		views = append(views, AgentView{Agent: agent, OpenTickets: load})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"agents":     views,
		"pagination": pagination,
	})
}

// CreateClient registers a requester on behalf of someone
func CreateClient(c echo.Context) error {
	log := logger.FromEcho(c)

	var req CreateClientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	email := normalizeEmail(req.Email)

	if taken, err := emailTaken(database.GetDB(), email); err != nil {
		return err
	} else if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}
	var count int64
	if err := database.GetDB().Model(&model.Client{}).Where("matricula = ?", req.Matricula).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "matricula already registered"})
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return err
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
			CPF:        req.CPF,
		},
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&user).Error; err != nil {
		log.Error("Failed to create client", zap.Error(err))
		return err
	}

	log.Info("Client created", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, user)
}

// ListClients lists clients, searching name, email and matricula
func ListClients(c echo.Context) error {
	page, limit := pageParams(c)

	query := database.GetDB().Model(&model.Client{}).Joins("JOIN users ON users.id = clients.user_id AND users.deleted_at IS NULL")
	if search := c.QueryParam("search"); search != "" {
		pattern := likePattern(search)
		query = query.Where("LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(clients.matricula) LIKE ?",
			pattern, pattern, pattern)
	}
	if department := c.QueryParam("department"); department != "" {
		query = query.Where("clients.department = ?", department)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	query, pagination, err := paginate(query, &model.Client{}, page, limit)
	if err != nil {
		return err
	}
	var clients []model.Client
	if err := query.Preload("User").Order("clients.id ASC").Find(&clients).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"clients":    clients,
		"pagination": pagination,
	})
}

// findCategories loads the categories with the given IDs, failing if any is missing
func findCategories(db *gorm.DB, ids []uint) ([]model.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var categories []model.Category
	if err := db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	if len(categories) != len(dedupIDs(ids)) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "one or more categories do not exist")
	}
	return categories, nil
}

func dedupIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
