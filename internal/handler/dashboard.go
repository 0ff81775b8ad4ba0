package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

// DashboardHandler aggregates the counters shown on the operator
// dashboard.
type DashboardHandler struct {
	Loans        *repository.LoanRepo
	Reservations *repository.ReservationRepo
	Users        *repository.UserRepo
	Items        *repository.ItemDirectory
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(loans *repository.LoanRepo, reservations *repository.ReservationRepo, users *repository.UserRepo, items *repository.ItemDirectory) *DashboardHandler {
	if loans == nil || reservations == nil || users == nil || items == nil {
		panic("nil repository passed to NewDashboardHandler")
	}
	return &DashboardHandler{Loans: loans, Reservations: reservations, Users: users, Items: items}
}

// Stats handles GET /v1/dashboard/stats.  Counts are computed at request
// time; the endpoint sits behind the response cache so repeated dashboard
// refreshes do not hammer the database.
func (h *DashboardHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -int(now.Weekday()))

	enCurso, err := h.Loans.CountByEstado(ctx, model.LoanEnCurso)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	atrasados, err := h.Loans.CountByEstado(ctx, model.LoanAtrasado)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	loansToday, err := h.Loans.CountCreatedBetween(ctx, dayStart, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	loansWeek, err := h.Loans.CountCreatedBetween(ctx, weekStart, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	reservationsToday, err := h.Reservations.CountCreatedBetween(ctx, dayStart, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	pending, err := h.Reservations.ListPending(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	sanctioned, err := h.Users.CountSanctioned(ctx, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	attention, err := h.Items.ListAttention(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"prestamosEnCurso":      enCurso,
		"prestamosAtrasados":    atrasados,
		"prestamosHoy":          loansToday,
		"prestamosSemana":       loansWeek,
		"reservasHoy":           reservationsToday,
		"reservasPendientes":    len(pending),
		"usuariosSancionados":   sanctioned,
		"itemsRequierenAtencion": len(attention),
	})
}
