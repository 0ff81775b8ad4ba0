package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// ReservationRepo provides persistence for reservations.  A reservation is
// created pendiente and ends in exactly one of completada, cancelada or
// expirada; it never transitions back, so every state change here is
// conditional on estado = pendiente.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = "id, usuario_id, item_kind, item_id, fecha_reserva, expira_en, estado, created_at, updated_at"

func scanReservation(row interface{ Scan(...interface{}) error }) (model.Reservation, error) {
	var res model.Reservation
	var kind string
	err := row.Scan(&res.ID, &res.UsuarioID, &kind, &res.Item.ID,
		&res.FechaReserva, &res.ExpiraEn, &res.Estado, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return res, err
	}
	res.Item.Kind = model.ItemKind(kind)
	return res, nil
}

// CreateTx inserts a new pending reservation within an existing
// transaction and populates the generated ID and timestamps.  The item
// must already have been claimed reservado in the same transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	out, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (usuario_id, item_kind, item_id, fecha_reserva, expira_en, estado)
		 VALUES (?,?,?,?,?,?)`,
		res.UsuarioID, string(res.Item.Kind), res.Item.ID, res.FechaReserva, res.ExpiraEn, res.Estado)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	got, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ?`, res.ID))
	if err != nil {
		return err
	}
	*res = got
	return nil
}

// GetForUpdateTx fetches a reservation with a row lock.  Confirm and
// cancel decide on its state under this lock.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CloseTx moves a pending reservation to a terminal state.  Returns
// ErrConflict when the reservation was already closed by a concurrent
// confirm, cancel or expiry.
func (r *ReservationRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, estado string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET estado = ? WHERE id = ? AND estado = ?`,
		estado, id, model.ReservaPendiente)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// CountPendingByUserTx counts a user's pending reservations inside the
// borrowing transaction; each pending reservation occupies one active-item
// slot.
func (r *ReservationRepo) CountPendingByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE usuario_id = ? AND estado = ?`,
		userID, model.ReservaPendiente).Scan(&n)
	return n, err
}

// ReservationDetail is a reservation joined with its catalog title.
type ReservationDetail struct {
	model.Reservation
	ItemTitulo string `json:"itemTitulo"`
	ItemCodigo string `json:"itemCodigo"`
}

const reservationDetailQuery = `
	SELECT r.id, r.usuario_id, r.item_kind, r.item_id,
	       r.fecha_reserva, r.expira_en, r.estado, r.created_at, r.updated_at,
	       COALESCE(b.titulo, rc.nombre, '') AS titulo,
	       COALESCE(CONCAT('copia ', e.numero_copia), ri.codigo_interno, '') AS codigo
	FROM reservations r
	LEFT JOIN exemplars e  ON r.item_kind = 'Exemplar' AND e.id = r.item_id
	LEFT JOIN books b      ON b.id = e.libro_id
	LEFT JOIN resource_instances ri ON r.item_kind = 'ResourceInstance' AND ri.id = r.item_id
	LEFT JOIN resources_cra rc      ON rc.id = ri.resource_id`

func (r *ReservationRepo) listDetails(ctx context.Context, query string, args ...interface{}) ([]ReservationDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		var kind string
		if err := rows.Scan(&d.ID, &d.UsuarioID, &kind, &d.Item.ID,
			&d.FechaReserva, &d.ExpiraEn, &d.Estado, &d.CreatedAt, &d.UpdatedAt,
			&d.ItemTitulo, &d.ItemCodigo); err != nil {
			return nil, err
		}
		d.Item.Kind = model.ItemKind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListPending returns all pending reservations oldest-expiry-first, the
// operator's pickup queue.
func (r *ReservationRepo) ListPending(ctx context.Context) ([]ReservationDetail, error) {
	return r.listDetails(ctx,
		reservationDetailQuery+` WHERE r.estado = ? ORDER BY r.expira_en`, model.ReservaPendiente)
}

// ListByUser returns every reservation of one user, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	return r.listDetails(ctx,
		reservationDetailQuery+` WHERE r.usuario_id = ? ORDER BY r.fecha_reserva DESC`, userID)
}

// ExpireDueTx marks every pending reservation past its expiry as expirada
// and returns the expired records so the caller can release their items
// and publish events.  Runs inside a transaction; the row locks from the
// SELECT hold until commit so the sweep cannot race a confirm.
func (r *ReservationRepo) ExpireDueTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.Reservation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations
		 WHERE estado = ? AND expira_en <= ? FOR UPDATE`,
		model.ReservaPendiente, now)
	if err != nil {
		return nil, err
	}
	var due []model.Reservation
	for rows.Next() {
		res, scanErr := scanReservation(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		due = append(due, res)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET estado = ? WHERE estado = ? AND expira_en <= ?`,
		model.ReservaExpirada, model.ReservaPendiente, now)
	if err != nil {
		return nil, err
	}
	return due, nil
}

// CountCreatedBetween counts reservations created in [from, to) for the
// dashboard.
func (r *ReservationRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE fecha_reserva >= ? AND fecha_reserva < ?`, from, to).Scan(&n)
	return n, err
}
