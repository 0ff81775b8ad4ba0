// Package worker runs the periodic housekeeping sweep: expiring pending
// reservations whose deadline passed and flagging overdue loans.  The same
// expiry also runs lazily at the top of mutating handlers; the sweep exists
// so state converges even on a quiet day with no traffic.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/queue"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
	queue_publisher "github.com/proyecto-sophia/cra-backend/internal/service"
)

// ExpirySweeper owns the periodic sweep.
type ExpirySweeper struct {
	DB           *sql.DB
	Reservations *repository.ReservationRepo
	Loans        *repository.LoanRepo
	Items        *repository.ItemDirectory
	Interval     time.Duration
	Log          *zap.Logger
}

// NewExpirySweeper constructs an ExpirySweeper.  All dependencies must be
// non-nil.
func NewExpirySweeper(db *sql.DB, reservations *repository.ReservationRepo, loans *repository.LoanRepo, items *repository.ItemDirectory, interval time.Duration, log *zap.Logger) *ExpirySweeper {
	if db == nil || reservations == nil || loans == nil || items == nil || log == nil {
		panic("nil dependency passed to NewExpirySweeper")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpirySweeper{DB: db, Reservations: reservations, Loans: loans, Items: items, Interval: interval, Log: log}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
// Intended to run in its own goroutine.
func (s *ExpirySweeper) Run(ctx context.Context) {
	s.sweep(ctx)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	expired, err := s.expireReservations(ctx, now)
	if err != nil {
		s.Log.Error("reservation sweep failed", zap.Error(err))
	} else if len(expired) > 0 {
		s.Log.Info("reservations expired", zap.Int("count", len(expired)))
		for _, res := range expired {
			ev := queue.ReservationExpiredEvent{
				ReservationID: res.ID,
				UserID:        res.UsuarioID,
				ItemKind:      string(res.Item.Kind),
				ItemID:        res.Item.ID,
				ExpiredAt:     now.Format(time.RFC3339),
			}
			if err := queue_publisher.PublishReservationExpired(ctx, ev); err != nil {
				s.Log.Warn("failed to publish expiry event", zap.Error(err))
			}
		}
	}

	flagged, err := s.Loans.MarkOverdue(ctx, now)
	if err != nil {
		s.Log.Error("overdue sweep failed", zap.Error(err))
	} else if flagged > 0 {
		s.Log.Info("loans marked atrasado", zap.Int64("count", flagged))
	}
}

// expireReservations closes every pending reservation past its deadline
// and releases the held items, all in one transaction.
func (s *ExpirySweeper) expireReservations(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	expired, err := s.Reservations.ExpireDueTx(ctx, tx, now)
	if err != nil {
		return nil, err
	}
	for _, res := range expired {
		err := s.Items.ClaimTx(ctx, tx, res.Item, model.EstadoReservado, model.EstadoDisponible)
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return expired, nil
}
