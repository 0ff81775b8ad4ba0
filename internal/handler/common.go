package handler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

// getUserID extracts the authenticated user's id stored in the context by
// the JWT middleware.  Returns an error when the middleware did not run or
// the claim was malformed.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := c.Get("user_id").(uint64)
	if !ok || id == 0 {
		return 0, errors.New("no authenticated user in context")
	}
	return id, nil
}

// getRole returns the authenticated user's role, or "" when absent.
func getRole(c echo.Context) string {
	rol, _ := c.Get("rol").(string)
	return rol
}

// authorizeActor decides whether the caller may act on the target user's
// records: the user acting on their own, or desk staff acting on anyone.
// Returns repository.ErrForbidden for everyone else, and the raw error
// when no authenticated user is in the context.
func authorizeActor(c echo.Context, target uint64) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	if uid == target {
		return nil
	}
	switch getRole(c) {
	case model.RolAdmin, model.RolPersonal:
		return nil
	}
	return repository.ErrForbidden
}

// bindItemRef reads and validates the polymorphic item reference shared by
// loan and reservation request bodies.
func bindItemRef(itemModel string, itemID uint64) (model.ItemRef, error) {
	kind, err := model.ParseItemKind(itemModel)
	if err != nil {
		return model.ItemRef{}, err
	}
	if itemID == 0 {
		return model.ItemRef{}, errors.New("itemId is required")
	}
	return model.ItemRef{Kind: kind, ID: itemID}, nil
}

// releaseExpiredTx flips the items of just-expired reservations back to
// disponible.  ClaimTx conditionally, so an item that was meanwhile moved
// to mantenimiento (or claimed again) is left alone.
func releaseExpiredTx(ctx context.Context, tx *sql.Tx, items *repository.ItemDirectory, expired []model.Reservation) error {
	for _, res := range expired {
		err := items.ClaimTx(ctx, tx, res.Item, model.EstadoReservado, model.EstadoDisponible)
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return err
		}
	}
	return nil
}

// sweepReservationsTx expires overdue pending reservations and releases
// their items inside the caller's transaction.  Mutating handlers run this
// first so no request ever honours a reservation that is already past its
// deadline, regardless of when the background sweep last ran.
func sweepReservationsTx(ctx context.Context, tx *sql.Tx, reservations *repository.ReservationRepo, items *repository.ItemDirectory, now time.Time) ([]model.Reservation, error) {
	expired, err := reservations.ExpireDueTx(ctx, tx, now)
	if err != nil {
		return nil, err
	}
	if err := releaseExpiredTx(ctx, tx, items, expired); err != nil {
		return nil, err
	}
	return expired, nil
}
