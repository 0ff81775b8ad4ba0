package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// LoanRepo provides persistence for loans.  Loans are historical records:
// they are inserted once, mutated on return/renew, and never deleted.  All
// timestamp fields are stored in UTC.
type LoanRepo struct {
	db *sql.DB
}

// NewLoanRepo returns a LoanRepo bound to the given database.
func NewLoanRepo(db *sql.DB) *LoanRepo { return &LoanRepo{db: db} }

const loanCols = "id, usuario_id, item_kind, item_id, fecha_inicio, fecha_vencimiento, fecha_devolucion, estado, created_at, updated_at"

func scanLoan(row interface{ Scan(...interface{}) error }) (model.Loan, error) {
	var l model.Loan
	var kind string
	var dev sql.NullTime
	err := row.Scan(&l.ID, &l.UsuarioID, &kind, &l.Item.ID,
		&l.FechaInicio, &l.FechaVencimiento, &dev, &l.Estado, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return l, err
	}
	l.Item.Kind = model.ItemKind(kind)
	if dev.Valid {
		t := dev.Time
		l.FechaDevolucion = &t
	}
	return l, nil
}

// CreateTx inserts a new loan within the scope of an existing transaction
// and populates the generated ID and timestamps on the provided record.
// The caller must commit or roll back.  The item must already have been
// claimed via ItemDirectory.ClaimTx in the same transaction.
func (r *LoanRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO loans (usuario_id, item_kind, item_id, fecha_inicio, fecha_vencimiento, estado)
		 VALUES (?,?,?,?,?,?)`,
		l.UsuarioID, string(l.Item.Kind), l.Item.ID, l.FechaInicio, l.FechaVencimiento, l.Estado)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	// Query back the full row to populate defaults
	got, err := scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanCols+` FROM loans WHERE id = ?`, l.ID))
	if err != nil {
		return err
	}
	*l = got
	return nil
}

// GetByID fetches a loan by id.
func (r *LoanRepo) GetByID(ctx context.Context, id uint64) (*model.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx, `SELECT `+loanCols+` FROM loans WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetForUpdateTx fetches a loan with a row lock so return/renew decisions
// hold until the transaction commits.
func (r *LoanRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Loan, error) {
	l, err := scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanCols+` FROM loans WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CloseTx records a return: the loan moves to devuelto with its return
// instant set.  Conditional on the loan still being open so a double
// return surfaces as ErrConflict instead of silently rewriting history.
func (r *LoanRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, devolucion time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE loans SET estado = ?, fecha_devolucion = ? WHERE id = ? AND estado IN (?,?)`,
		model.LoanDevuelto, devolucion, id, model.LoanEnCurso, model.LoanAtrasado)
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

// Renew pushes a loan's due date out.  Conditional on estado = enCurso:
// overdue and returned loans cannot be renewed, and the condition also
// closes the race with a concurrent return.
func (r *LoanRepo) Renew(ctx context.Context, id uint64, newDue time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE loans SET fecha_vencimiento = ? WHERE id = ? AND estado = ?`,
		newDue, id, model.LoanEnCurso)
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

// CountByUserAndStatesTx counts a user's loans in the given states inside
// the borrowing transaction.  Used by the borrower policy for both the
// active-item limit (enCurso) and the overdue block (atrasado).
func (r *LoanRepo) CountByUserAndStatesTx(ctx context.Context, tx *sql.Tx, userID uint64, states ...string) (int, error) {
	ph := strings.TrimSuffix(strings.Repeat("?,", len(states)), ",")
	args := make([]interface{}, 0, len(states)+1)
	args = append(args, userID)
	for _, s := range states {
		args = append(args, s)
	}
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE usuario_id = ? AND estado IN (`+ph+`)`, args...).Scan(&n)
	return n, err
}

// HasOverdueConsideringNowTx reports whether the user holds any open loan
// already past due at the given instant, counting enCurso loans whose due
// date has passed but that the sweep has not flagged atrasado yet.
func (r *LoanRepo) HasOverdueConsideringNowTx(ctx context.Context, tx *sql.Tx, userID uint64, now time.Time) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans
		 WHERE usuario_id = ? AND (estado = ? OR (estado = ? AND fecha_vencimiento < ?))`,
		userID, model.LoanAtrasado, model.LoanEnCurso, now).Scan(&n)
	return n > 0, err
}

// LoanDetail is a loan joined with its catalog title for display.  The
// title comes from the book for exemplars and from the resource for
// instances; the per-loan two-hop lookups the dashboards need are resolved
// here in one query instead of in the write path.
type LoanDetail struct {
	model.Loan
	ItemTitulo string `json:"itemTitulo"`
	ItemCodigo string `json:"itemCodigo"`
}

const loanDetailQuery = `
	SELECT l.id, l.usuario_id, l.item_kind, l.item_id,
	       l.fecha_inicio, l.fecha_vencimiento, l.fecha_devolucion, l.estado,
	       l.created_at, l.updated_at,
	       COALESCE(b.titulo, rc.nombre, '') AS titulo,
	       COALESCE(CONCAT('copia ', e.numero_copia), ri.codigo_interno, '') AS codigo
	FROM loans l
	LEFT JOIN exemplars e  ON l.item_kind = 'Exemplar' AND e.id = l.item_id
	LEFT JOIN books b      ON b.id = e.libro_id
	LEFT JOIN resource_instances ri ON l.item_kind = 'ResourceInstance' AND ri.id = l.item_id
	LEFT JOIN resources_cra rc      ON rc.id = ri.resource_id`

func scanLoanDetail(rows *sql.Rows) (LoanDetail, error) {
	var d LoanDetail
	var kind string
	var dev sql.NullTime
	err := rows.Scan(&d.ID, &d.UsuarioID, &kind, &d.Item.ID,
		&d.FechaInicio, &d.FechaVencimiento, &dev, &d.Estado,
		&d.CreatedAt, &d.UpdatedAt, &d.ItemTitulo, &d.ItemCodigo)
	if err != nil {
		return d, err
	}
	d.Item.Kind = model.ItemKind(kind)
	if dev.Valid {
		t := dev.Time
		d.FechaDevolucion = &t
	}
	return d, nil
}

// LoanPage is one page of the admin loan listing.
type LoanPage struct {
	Docs       []LoanDetail `json:"docs"`
	TotalDocs  int          `json:"totalDocs"`
	TotalPages int          `json:"totalPages"`
	Page       int          `json:"page"`
}

// ListAll returns loans newest-first with catalog titles, paginated.
// page is 1-based; perPage is clamped to [1,100].
func (r *LoanRepo) ListAll(ctx context.Context, page, perPage int) (*LoanPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans`).Scan(&total); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		loanDetailQuery+` ORDER BY l.fecha_inicio DESC LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]LoanDetail, 0, perPage)
	for rows.Next() {
		d, err := scanLoanDetail(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	return &LoanPage{Docs: docs, TotalDocs: total, TotalPages: pages, Page: page}, nil
}

// ListByUser returns every loan of one user, newest first.
func (r *LoanRepo) ListByUser(ctx context.Context, userID uint64) ([]LoanDetail, error) {
	return r.listDetails(ctx,
		loanDetailQuery+` WHERE l.usuario_id = ? ORDER BY l.fecha_inicio DESC`, userID)
}

// ListOpenByUser returns only the user's open loans (enCurso/atrasado),
// the "my loans" view.
func (r *LoanRepo) ListOpenByUser(ctx context.Context, userID uint64) ([]LoanDetail, error) {
	return r.listDetails(ctx,
		loanDetailQuery+` WHERE l.usuario_id = ? AND l.estado IN (?,?) ORDER BY l.fecha_vencimiento`,
		userID, model.LoanEnCurso, model.LoanAtrasado)
}

func (r *LoanRepo) listDetails(ctx context.Context, query string, args ...interface{}) ([]LoanDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]LoanDetail, 0)
	for rows.Next() {
		d, err := scanLoanDetail(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// MarkOverdue flags every open loan past its due date as atrasado and
// returns how many were flagged.  Run by the periodic sweep so the
// borrower policy and dashboard see overdues without waiting for returns.
func (r *LoanRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE loans SET estado = ? WHERE estado = ? AND fecha_vencimiento < ?`,
		model.LoanAtrasado, model.LoanEnCurso, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountCreatedBetween counts loans created in [from, to) for the
// dashboard's "loans today".
func (r *LoanRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE fecha_inicio >= ? AND fecha_inicio < ?`, from, to).Scan(&n)
	return n, err
}

// CountByEstado counts loans in one state.
func (r *LoanRepo) CountByEstado(ctx context.Context, estado string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE estado = ?`, estado).Scan(&n)
	return n, err
}
