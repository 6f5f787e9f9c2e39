package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/apperror"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/internal/sla"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SLAReport aggregates SLA figures over all tickets
type SLAReport struct {
	BySLAStatus            map[model.SLAStatus]int64 `json:"by_sla_status"`
	ByPriority             map[model.Priority]int64  `json:"by_priority"`
	ResolvedTickets        int                       `json:"resolved_tickets"`
	ResolvedWithinSLA      int                       `json:"resolved_within_sla"`
	ComplianceRate         float64                   `json:"compliance_rate"`
	AverageResolutionHours float64                   `json:"average_resolution_hours"`
	GeneratedAt            time.Time                 `json:"generated_at"`
}

// GetSLAThresholds returns the target table and the at-risk ratio
func GetSLAThresholds(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"thresholds":    sla.Thresholds(),
		"warning_ratio": deps.Evaluator.WarningRatio,
	})
}

// GetTicketSLA evaluates one ticket now
func GetTicketSLA(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := loadTicket(database.GetDB().Preload("Category"), a, id)
	if err != nil {
		return err
	}

	ev, ok := deps.Evaluator.Evaluate(t, time.Now())
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{
			"ticket_id":  t.ID,
			"status":     t.Status,
			"sla_status": t.SLAStatus,
			"evaluated":  false,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket_id":  t.ID,
		"status":     t.Status,
		"sla_status": t.SLAStatus,
		"evaluated":  true,
		"sla":        ev,
	})
}

// GetSLAReport summarises SLA compliance
func GetSLAReport(c echo.Context) error {
	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	report := SLAReport{
		BySLAStatus: map[model.SLAStatus]int64{model.SLAOnTime: 0, model.SLAAtRisk: 0, model.SLABreached: 0},
		ByPriority: map[model.Priority]int64{
			model.PriorityLow: 0, model.PriorityMedium: 0, model.PriorityHigh: 0, model.PriorityCritical: 0,
		},
		GeneratedAt: time.Now(),
	}

	var bySLA []struct {
		SLAStatus model.SLAStatus
		Count     int64
	}
	if err := db.Model(&model.Ticket{}).
		Select("sla_status, COUNT(*) AS count").
		Where("status IN ?", model.ActiveStatuses).
		Group("sla_status").
		Scan(&bySLA).Error; err != nil {
		return err
	}
	for _, row := range bySLA {
		report.BySLAStatus[row.SLAStatus] = row.Count
	}

	var byPriority []struct {
		Priority model.Priority
		Count    int64
	}
	if err := db.Model(&model.Ticket{}).
		Select("priority, COUNT(*) AS count").
		Group("priority").
		Scan(&byPriority).Error; err != nil {
		return err
	}
	for _, row := range byPriority {
		report.ByPriority[row.Priority] = row.Count
	}

	var resolved []model.Ticket
	if err := db.Select("id", "created_at", "resolved_at", "due_date").
		Where("resolved_at IS NOT NULL").
		Find(&resolved).Error; err != nil {
		return err
	}
	var total time.Duration
	for _, t := range resolved {
		total += t.ResolvedAt.Sub(t.CreatedAt)
		if t.DueDate == nil || !t.ResolvedAt.After(*t.DueDate) {
			report.ResolvedWithinSLA++
		}
	}
	report.ResolvedTickets = len(resolved)
	if len(resolved) > 0 {
		report.AverageResolutionHours = roundHours(total.Hours() / float64(len(resolved)))
		report.ComplianceRate = roundHours(float64(report.ResolvedWithinSLA) / float64(len(resolved)) * 100)
	}

	return c.JSON(http.StatusOK, report)
}

// RunSLACheck runs the SLA monitor immediately
func RunSLACheck(c echo.Context) error {
	if deps.Monitor == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "SLA monitor is not configured"})
	}

	result, err := deps.Monitor.Run(c.Request().Context())
	if errors.Is(err, sla.ErrAlreadyRunning) {
		return apperror.Conflict(err.Error())
	}
	if err != nil {
		logger.FromEcho(c).Error("Manual SLA check failed", zap.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":     "SLA check completed",
		"result":      result,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

func roundHours(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
