package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

// InventoryHandler implements the attention queue: listing items that
// need operator action (deteriorado, extraviado, mantenimiento), marking
// them, repairing them back into circulation, and retiring them.
type InventoryHandler struct {
	Items *repository.ItemDirectory
	Log   *zap.Logger
}

// NewInventoryHandler constructs an InventoryHandler.
func NewInventoryHandler(items *repository.ItemDirectory, log *zap.Logger) *InventoryHandler {
	if items == nil || log == nil {
		panic("nil dependency passed to NewInventoryHandler")
	}
	return &InventoryHandler{Items: items, Log: log}
}

// Attention handles GET /v1/inventory/attention and returns every item in
// an attention state with its catalog entry.
func (h *InventoryHandler) Attention(c echo.Context) error {
	items, err := h.Items.ListAttention(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, items)
}

// Flag handles POST /v1/inventory/flag.  An operator moves a disponible
// item into an attention state (a damaged copy found on the shelf, a unit
// sent to mantenimiento).  Items that are prestado or reservado must come
// back through the loan return flow instead.
func (h *InventoryHandler) Flag(c echo.Context) error {
	var body struct {
		ItemModel     string  `json:"itemModel"`
		ItemID        uint64  `json:"itemId"`
		Estado        string  `json:"estado"`
		Observaciones *string `json:"observaciones"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ref, err := bindItemRef(body.ItemModel, body.ItemID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	valid := false
	for _, s := range model.AttentionStates {
		if body.Estado == s {
			valid = true
			break
		}
	}
	if !valid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "estado must be deteriorado, extraviado or mantenimiento"})
	}
	if body.Estado == model.EstadoMantenimiento && ref.Kind != model.KindResourceInstance {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "mantenimiento applies to resource instances only"})
	}

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
	if err := h.Items.EnsureStateTx(ctx, tx, ref, model.EstadoDisponible); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		case errors.Is(err, repository.ErrItemUnavailable):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "item is not disponible"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.Items.ClaimTx(ctx, tx, ref, model.EstadoDisponible, body.Estado); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "item was claimed by a concurrent request"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if body.Observaciones != nil {
		if err := h.Items.SetStateTx(ctx, tx, ref, body.Estado, body.Observaciones); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.Log.Info("item flagged",
		zap.String("item_kind", string(ref.Kind)),
		zap.Uint64("item_id", ref.ID),
		zap.String("estado", body.Estado))
	return c.JSON(http.StatusOK, echo.Map{"item": ref, "estado": body.Estado})
}

// Repair handles POST /v1/inventory/repair.  Returns an attention-state
// item to circulation as disponible and clears its observaciones.
func (h *InventoryHandler) Repair(c echo.Context) error {
	var body struct {
		ItemModel string `json:"itemModel"`
		ItemID    uint64 `json:"itemId"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ref, err := bindItemRef(body.ItemModel, body.ItemID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Items.Repair(c.Request().Context(), ref); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "item is not in an attention state"})
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.Log.Info("item repaired",
		zap.String("item_kind", string(ref.Kind)),
		zap.Uint64("item_id", ref.ID))
	return c.JSON(http.StatusOK, echo.Map{"item": ref, "estado": model.EstadoDisponible})
}

// Retire handles DELETE /v1/inventory/items.  Permanently removes a lost
// or scrapped physical item from the inventory.  Only items already in an
// attention state can be retired, so an open loan or reservation never
// loses its item out from under it.  The loan history keeps pointing at
// the id; historical rows are never touched.
func (h *InventoryHandler) Retire(c echo.Context) error {
	var body struct {
		ItemModel string `json:"itemModel"`
		ItemID    uint64 `json:"itemId"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ref, err := bindItemRef(body.ItemModel, body.ItemID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Items.DeleteInstance(c.Request().Context(), ref); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "item must be flagged into an attention state first"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.Log.Warn("item retired",
		zap.String("item_kind", string(ref.Kind)),
		zap.Uint64("item_id", ref.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "item retired"})
}
