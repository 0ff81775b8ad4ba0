package repository

import (
	"context"
	"database/sql"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// BookRepo persists catalog books and their physical exemplars.  Copy
// numbers are assigned inside the INSERT itself (MAX+1 within the owning
// book) so concurrent additions cannot mint duplicates.
type BookRepo struct {
	db *sql.DB
}

// NewBookRepo returns a BookRepo bound to the given database.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *BookRepo) DB() *sql.DB { return r.db }

const bookCols = "id, titulo, autor, isbn, editorial, sede, created_at, updated_at"

func scanBook(row interface{ Scan(...interface{}) error }) (model.Book, error) {
	var b model.Book
	err := row.Scan(&b.ID, &b.Titulo, &b.Autor, &b.ISBN, &b.Editorial, &b.Sede,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// CreateTx inserts a book and populates its ID.  Exemplars are added
// separately via AddExemplarsTx inside the same transaction.
func (r *BookRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Book) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO books (titulo, autor, isbn, editorial, sede) VALUES (?,?,?,?,?)`,
		b.Titulo, b.Autor, b.ISBN, b.Editorial, b.Sede)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// AddExemplarsTx inserts count new exemplars for a book, numbering each
// one from the current maximum copy number.  The INSERT..SELECT reads and
// writes the same index range under one statement, which is what makes
// the numbering safe under concurrency.
func (r *BookRepo) AddExemplarsTx(ctx context.Context, tx *sql.Tx, libroID uint64, count int) error {
	const q = `INSERT INTO exemplars (libro_id, numero_copia, estado)
	           SELECT ?, COALESCE(MAX(numero_copia), 0) + 1, ?
	           FROM exemplars WHERE libro_id = ?`
	for i := 0; i < count; i++ {
		if _, err := tx.ExecContext(ctx, q, libroID, model.EstadoDisponible, libroID); err != nil {
			return err
		}
	}
	return nil
}

// GetByID fetches a book by id.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx, `SELECT `+bookCols+` FROM books WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns books, optionally filtered by a search term matched against
// title and author.
func (r *BookRepo) List(ctx context.Context, search string) ([]model.Book, error) {
	q := `SELECT ` + bookCols + ` FROM books`
	var args []interface{}
	if search != "" {
		q += ` WHERE titulo LIKE ? OR autor LIKE ?`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	q += ` ORDER BY titulo`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// BookAvailability is the public-catalog projection of a book: its
// bibliographic fields plus how many copies exist and how many can be
// taken right now.
type BookAvailability struct {
	ID          uint64 `json:"id"`
	Titulo      string `json:"titulo"`
	Autor       string `json:"autor"`
	ISBN        string `json:"isbn"`
	Editorial   string `json:"editorial"`
	Sede        string `json:"sede"`
	Copias      int    `json:"copias"`
	Disponibles int    `json:"disponibles"`
}

// ListAvailability returns the public view of the book catalog with copy
// counts, optionally filtered by a search term.
func (r *BookRepo) ListAvailability(ctx context.Context, search string) ([]BookAvailability, error) {
	q := `SELECT b.id, b.titulo, b.autor, b.isbn, b.editorial, b.sede,
	             COUNT(e.id),
	             COALESCE(SUM(e.estado = '` + model.EstadoDisponible + `'), 0)
	      FROM books b
	      LEFT JOIN exemplars e ON e.libro_id = b.id`
	var args []interface{}
	if search != "" {
		q += ` WHERE b.titulo LIKE ? OR b.autor LIKE ?`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	q += ` GROUP BY b.id ORDER BY b.titulo`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BookAvailability, 0)
	for rows.Next() {
		var ba BookAvailability
		if err := rows.Scan(&ba.ID, &ba.Titulo, &ba.Autor, &ba.ISBN, &ba.Editorial,
			&ba.Sede, &ba.Copias, &ba.Disponibles); err != nil {
			return nil, err
		}
		out = append(out, ba)
	}
	return out, rows.Err()
}

// Update rewrites a book's bibliographic fields.
func (r *BookRepo) Update(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE books SET titulo=?, autor=?, isbn=?, editorial=?, sede=? WHERE id=?`,
		b.Titulo, b.Autor, b.ISBN, b.Editorial, b.Sede, b.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteTx removes a book and all of its exemplars (cascade).
func (r *BookRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM exemplars WHERE libro_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListExemplars returns a book's copies ordered by copy number.
func (r *BookRepo) ListExemplars(ctx context.Context, libroID uint64) ([]model.Exemplar, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, libro_id, numero_copia, estado, observaciones, created_at, updated_at
		 FROM exemplars WHERE libro_id = ? ORDER BY numero_copia`, libroID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Exemplar, 0)
	for rows.Next() {
		var e model.Exemplar
		var obs sql.NullString
		if err := rows.Scan(&e.ID, &e.LibroID, &e.NumeroCopia, &e.Estado, &obs,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if obs.Valid {
			o := obs.String
			e.Observaciones = &o
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
