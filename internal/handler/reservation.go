package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/proyecto-sophia/cra-backend/internal/lending"
	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

// ReservationHandler implements the reservation lifecycle: create, confirm
// (hand-over to a loan), cancel and the listing endpoints.  A pending
// reservation occupies one active-item slot and keeps its item reservado
// until it is confirmed, cancelled or expires.
type ReservationHandler struct {
	Reservations *repository.ReservationRepo
	Loans        *repository.LoanRepo
	Users        *repository.UserRepo
	Items        *repository.ItemDirectory
	Rules        lending.Rules
	Log          *zap.Logger

	// LoanMaker converts a confirmed reservation into a loan inside the
	// same transaction, reusing the loan handler's admission logic.
	LoanMaker *LoanHandler
}

// NewReservationHandler constructs a ReservationHandler.  All dependencies
// must be non-nil.
func NewReservationHandler(reservations *repository.ReservationRepo, loans *repository.LoanRepo, users *repository.UserRepo, items *repository.ItemDirectory, rules lending.Rules, log *zap.Logger, loanMaker *LoanHandler) *ReservationHandler {
	if reservations == nil || loans == nil || users == nil || items == nil || log == nil || loanMaker == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{
		Reservations: reservations,
		Loans:        loans,
		Users:        users,
		Items:        items,
		Rules:        rules,
		Log:          log,
		LoanMaker:    loanMaker,
	}
}

// Create handles POST /v1/reservations.  Authenticated users reserve for
// themselves; admins and personal may pass usuarioId to reserve on behalf
// of a borrower at the desk.
func (h *ReservationHandler) Create(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		UsuarioID uint64 `json:"usuarioId"`
		ItemModel string `json:"itemModel"`
		ItemID    uint64 `json:"itemId"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	usuarioID := callerID
	if body.UsuarioID != 0 && body.UsuarioID != callerID {
		if err := authorizeActor(c, body.UsuarioID); err != nil {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		usuarioID = body.UsuarioID
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

	if _, err := sweepReservationsTx(ctx, tx, h.Reservations, h.Items, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	u, err := h.Users.GetForUpdateTx(ctx, tx, usuarioID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// Absent and wrong-state items are plain bad requests; only a
	// zero-row ClaimTx below counts as a lost race.
	if err := h.Items.EnsureStateTx(ctx, tx, ref, model.EstadoDisponible); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		case errors.Is(err, repository.ErrItemUnavailable):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "item is not available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	openLoans, err := h.Loans.CountByUserAndStatesTx(ctx, tx, usuarioID, model.OpenLoanStates...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	pending, err := h.Reservations.CountPendingByUserTx(ctx, tx, usuarioID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	overdue, err := h.Loans.HasOverdueConsideringNowTx(ctx, tx, usuarioID, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	overdueCount := 0
	if overdue {
		overdueCount = 1
	}
	if err := h.Rules.CanBorrow(&u, openLoans+pending, overdueCount, now); err != nil {
		var d *lending.Denial
		if errors.As(err, &d) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": d.Reason})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if err := h.Items.ClaimTx(ctx, tx, ref, model.EstadoDisponible, model.EstadoReservado); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "item was claimed by a concurrent request"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	res := model.Reservation{
		UsuarioID:    usuarioID,
		Item:         ref,
		FechaReserva: now,
		ExpiraEn:     h.Rules.ReservationExpiry(now),
		Estado:       model.ReservaPendiente,
	}
	if err := h.Reservations.CreateTx(ctx, tx, &res); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.Log.Info("reservation created",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("usuario_id", usuarioID),
		zap.String("item_kind", string(ref.Kind)),
		zap.Uint64("item_id", ref.ID),
		zap.Time("expira_en", res.ExpiraEn))
	return c.JSON(http.StatusCreated, res)
}

// Confirm handles POST /v1/reservations/:id/confirm.  The borrower picked
// the item up: the reservation completes and a loan starts in the same
// transaction, moving the item reservado -> prestado.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
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

	if _, err := sweepReservationsTx(ctx, tx, h.Reservations, h.Items, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	res, err := h.Reservations.GetForUpdateTx(ctx, tx, resID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if res.Estado != model.ReservaPendiente {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not pendiente"})
	}

	// Close the reservation before creating the loan so its slot frees up
	// for the admission count inside createLoanTx.
	if err := h.Reservations.CloseTx(ctx, tx, resID, model.ReservaCompletada); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not pendiente"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	loan, status, errMap := h.LoanMaker.createLoanTx(ctx, tx, res.UsuarioID, res.Item, model.EstadoReservado, now)
	if errMap != nil {
		return c.JSON(status, errMap)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.Log.Info("reservation confirmed",
		zap.Uint64("reservation_id", resID),
		zap.Uint64("loan_id", loan.ID),
		zap.Uint64("usuario_id", res.UsuarioID))
	return c.JSON(http.StatusCreated, echo.Map{"reservation": res.ID, "loan": loan})
}

// Cancel handles POST /v1/reservations/:id/cancel for operators.  Marks
// the reservation cancelada and releases the item.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	return h.cancel(c, resID, 0)
}

// CancelMine handles POST /v1/reservations/:id/cancel-mine.  The borrower
// withdraws their own reservation; ownership is enforced.
func (h *ReservationHandler) CancelMine(c echo.Context) error {
	resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.cancel(c, resID, callerID)
}

// cancel closes a pending reservation as cancelada and frees its item.
// When mustOwn is non-zero the reservation must belong to that user.
func (h *ReservationHandler) cancel(c echo.Context, resID, mustOwn uint64) error {
	ctx := c.Request().Context()
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

	res, err := h.Reservations.GetForUpdateTx(ctx, tx, resID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if mustOwn != 0 && res.UsuarioID != mustOwn {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if res.Estado != model.ReservaPendiente {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not pendiente"})
	}
	if err := h.Reservations.CloseTx(ctx, tx, resID, model.ReservaCancelada); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not pendiente"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// Release the item unless something already moved it on.
	if err := h.Items.ClaimTx(ctx, tx, res.Item, model.EstadoReservado, model.EstadoDisponible); err != nil && !errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.Log.Info("reservation cancelled",
		zap.Uint64("reservation_id", resID),
		zap.Uint64("usuario_id", res.UsuarioID))
	return c.JSON(http.StatusOK, echo.Map{"id": resID, "estado": model.ReservaCancelada})
}

// ListPending handles GET /v1/reservations and returns pending
// reservations ordered by expiry, soonest first.
func (h *ReservationHandler) ListPending(c echo.Context) error {
	res, err := h.Reservations.ListPending(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, res)
}

// Mine handles GET /v1/reservations/mine and returns the caller's
// reservation history.
func (h *ReservationHandler) Mine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	res, err := h.Reservations.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, res)
}
