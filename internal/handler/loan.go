package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/proyecto-sophia/cra-backend/internal/lending"
	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/queue"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
	queue_publisher "github.com/proyecto-sophia/cra-backend/internal/service"
)

// LoanHandler implements the loan lifecycle: create, return, renew and the
// listing endpoints.  Every mutating method opens one transaction, runs
// the reservation sweep first, and serializes the item hand-over through
// the item directory's conditional update.
type LoanHandler struct {
	Loans        *repository.LoanRepo
	Reservations *repository.ReservationRepo
	Users        *repository.UserRepo
	Items        *repository.ItemDirectory
	Rules        lending.Rules
	Log          *zap.Logger
}

// NewLoanHandler constructs a LoanHandler.  All dependencies must be
// non-nil.
func NewLoanHandler(loans *repository.LoanRepo, reservations *repository.ReservationRepo, users *repository.UserRepo, items *repository.ItemDirectory, rules lending.Rules, log *zap.Logger) *LoanHandler {
	if loans == nil || reservations == nil || users == nil || items == nil || log == nil {
		panic("nil dependency passed to NewLoanHandler")
	}
	return &LoanHandler{Loans: loans, Reservations: reservations, Users: users, Items: items, Rules: rules, Log: log}
}

// Create handles POST /v1/loans.  Operators lend an item directly to a
// user, skipping the reservation step.  The request body carries the
// borrower and the polymorphic item reference.
func (h *LoanHandler) Create(c echo.Context) error {
	var body struct {
		UsuarioID uint64 `json:"usuarioId"`
		ItemModel string `json:"itemModel"`
		ItemID    uint64 `json:"itemId"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.UsuarioID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "usuarioId is required"})
	}
	ref, err := bindItemRef(body.ItemModel, body.ItemID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()
	tx, err := h.Items.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Expire stale reservations first so a just-freed item can be lent.
	if _, err := sweepReservationsTx(ctx, tx, h.Reservations, h.Items, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	loan, status, errMap := h.createLoanTx(ctx, tx, body.UsuarioID, ref, model.EstadoDisponible, now)
	if errMap != nil {
		return c.JSON(status, errMap)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.Log.Info("loan created",
		zap.Uint64("loan_id", loan.ID),
		zap.Uint64("usuario_id", loan.UsuarioID),
		zap.String("item_kind", string(loan.Item.Kind)),
		zap.Uint64("item_id", loan.Item.ID),
		zap.Time("vence", loan.FechaVencimiento))
	return c.JSON(http.StatusCreated, loan)
}

// createLoanTx runs the borrow admission policy and the item claim inside
// the caller's transaction.  fromState is disponible for a direct loan and
// reservado when converting a reservation.  Returns the created loan, or
// an HTTP status plus error body when the request must be refused.
func (h *LoanHandler) createLoanTx(ctx context.Context, tx *sql.Tx, usuarioID uint64, ref model.ItemRef, fromState string, now time.Time) (*model.Loan, int, echo.Map) {
	// Row-lock the borrower so two concurrent requests cannot both pass
	// the active-item count.
	u, err := h.Users.GetForUpdateTx(ctx, tx, usuarioID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, http.StatusNotFound, echo.Map{"error": "user not found"}
		}
		return nil, http.StatusInternalServerError, echo.Map{"error": "database error"}
	}

	// Absent item and wrong-state item are ordinary bad requests; only a
	// zero-row ClaimTx below means a genuinely lost race.
	if err := h.Items.EnsureStateTx(ctx, tx, ref, fromState); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, http.StatusNotFound, echo.Map{"error": "item not found"}
		case errors.Is(err, repository.ErrItemUnavailable):
			return nil, http.StatusBadRequest, echo.Map{"error": "item is not available"}
		}
		return nil, http.StatusInternalServerError, echo.Map{"error": "database error"}
	}

	openLoans, err := h.Loans.CountByUserAndStatesTx(ctx, tx, usuarioID, model.OpenLoanStates...)
	if err != nil {
		return nil, http.StatusInternalServerError, echo.Map{"error": "database error"}
	}
	pending, err := h.Reservations.CountPendingByUserTx(ctx, tx, usuarioID)
	if err != nil {
		return nil, http.StatusInternalServerError, echo.Map{"error": "database error"}
	}
	overdue, err := h.Loans.HasOverdueConsideringNowTx(ctx, tx, usuarioID, now)
	if err != nil {
		return nil, http.StatusInternalServerError, echo.Map{"error": "database error"}
	}
	// When converting a reservation the caller has already closed it, so
	// its slot is out of the pending count and the sum is exact.
	active := openLoans + pending
	overdueCount := 0
	if overdue {
		overdueCount = 1
	}
	if err := h.Rules.CanBorrow(&u, active, overdueCount, now); err != nil {
		var d *lending.Denial
		if errors.As(err, &d) {
			return nil, http.StatusForbidden, echo.Map{"error": d.Reason}
		}
		return nil, http.StatusInternalServerError, echo.Map{"error": "database error"}
	}

	// The conditional update is the serialization point: of two racing
	// requests for the same item only one matches the row.
	if err := h.Items.ClaimTx(ctx, tx, ref, fromState, model.EstadoPrestado); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, http.StatusConflict, echo.Map{"error": "item was claimed by a concurrent request"}
		}
		return nil, http.StatusInternalServerError, echo.Map{"error": "database error"}
	}

	loan := model.Loan{
		UsuarioID:        usuarioID,
		Item:             ref,
		FechaInicio:      now,
		FechaVencimiento: h.Rules.DueDate(ref.Kind, now),
		Estado:           model.LoanEnCurso,
	}
	if err := h.Loans.CreateTx(ctx, tx, &loan); err != nil {
		return nil, http.StatusInternalServerError, echo.Map{"error": "database error"}
	}
	return &loan, 0, nil
}

// Return handles POST /v1/loans/:id/return.  The operator reports the
// item's condition; a late return sanctions the borrower one calendar day
// per started 24-hour period of lateness.
func (h *LoanHandler) Return(c echo.Context) error {
	loanID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || loanID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid loan id"})
	}
	var body struct {
		Estado        string  `json:"estado"`
		Observaciones *string `json:"observaciones"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Estado == "" {
		body.Estado = model.EstadoDisponible
	}
	if !model.ValidReturnState(body.Estado) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "estado must be disponible, deteriorado or extraviado"})
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()
	tx, err := h.Items.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	loan, err := h.Loans.GetForUpdateTx(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "loan not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !loan.Open() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "loan is already closed"})
	}

	// Close the loan first; the conditional update makes a double return
	// lose even if two operators race past the state check above.
	if err := h.Loans.CloseTx(ctx, tx, loanID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "loan is already closed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.Items.SetStateTx(ctx, tx, loan.Item, body.Estado, body.Observaciones); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	lateDays := lending.LateDays(loan.FechaVencimiento, now)
	var sancionHasta *time.Time
	if lateDays > 0 {
		hasta := lending.SanctionUntil(now, lateDays)
		if err := h.Users.SetSancionTx(ctx, tx, loan.UsuarioID, hasta); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		sancionHasta = &hasta
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	resp := echo.Map{
		"id":              loanID,
		"estado":          model.LoanDevuelto,
		"fechaDevolucion": now,
		"itemEstado":      body.Estado,
	}
	if sancionHasta != nil {
		resp["diasAtraso"] = lateDays
		resp["sancionHasta"] = *sancionHasta
		h.Log.Warn("late return sanctioned",
			zap.Uint64("loan_id", loanID),
			zap.Uint64("usuario_id", loan.UsuarioID),
			zap.Int("dias_atraso", lateDays),
			zap.Time("sancion_hasta", *sancionHasta))
		h.publishSanction(ctx, loan, lateDays, *sancionHasta, now)
	} else {
		h.Log.Info("loan returned",
			zap.Uint64("loan_id", loanID),
			zap.Uint64("usuario_id", loan.UsuarioID),
			zap.String("item_estado", body.Estado))
	}
	return c.JSON(http.StatusOK, resp)
}

// publishSanction emits a LoanSanctionedEvent.  Failures are logged and
// ignored; the return already committed.
func (h *LoanHandler) publishSanction(ctx context.Context, loan *model.Loan, lateDays int, hasta, returned time.Time) {
	u, err := h.Users.GetByID(ctx, loan.UsuarioID)
	correo := ""
	if err == nil {
		correo = u.Correo
	}
	ev := queue.LoanSanctionedEvent{
		LoanID:       loan.ID,
		UserID:       loan.UsuarioID,
		UserCorreo:   correo,
		ItemKind:     string(loan.Item.Kind),
		ItemID:       loan.Item.ID,
		DiasAtraso:   lateDays,
		SancionHasta: hasta.Format(time.RFC3339),
		ReturnedAt:   returned.Format(time.RFC3339),
	}
	if err := queue_publisher.PublishLoanSanctioned(ctx, ev); err != nil {
		h.Log.Warn("failed to publish sanction event", zap.Error(err))
	}
}

// Renew handles PUT /v1/loans/:id/renew.  Only loans still enCurso can be
// renewed; the body's days (1-30) extend the current due date by that many
// business days.
func (h *LoanHandler) Renew(c echo.Context) error {
	loanID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || loanID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid loan id"})
	}
	var body struct {
		Days int `json:"days"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Days < 1 || body.Days > 30 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "days must be between 1 and 30"})
	}
	ctx := c.Request().Context()
	loan, err := h.Loans.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "loan not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	now := time.Now().UTC()
	if now.After(loan.FechaVencimiento) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "an overdue loan cannot be renewed"})
	}
	newDue := lending.AddBusinessDays(loan.FechaVencimiento, body.Days)
	if err := h.Loans.Renew(ctx, loanID, newDue); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "loan is not enCurso"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": loanID, "fechaVencimiento": newDue})
}

// ListAll handles GET /v1/loans with ?page and ?limit query parameters.
func (h *LoanHandler) ListAll(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit == 0 {
		limit = 10
	}
	res, err := h.Loans.ListAll(c.Request().Context(), page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, res)
}

// ListByUser handles GET /v1/loans/user/:id.  Non-admin callers may only
// list their own loans.
func (h *LoanHandler) ListByUser(c echo.Context) error {
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || targetID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if err := authorizeActor(c, targetID); err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loans, err := h.Loans.ListByUser(c.Request().Context(), targetID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, loans)
}

// Mine handles GET /v1/loans/me and returns the caller's open loans.
func (h *LoanHandler) Mine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loans, err := h.Loans.ListOpenByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, loans)
}
