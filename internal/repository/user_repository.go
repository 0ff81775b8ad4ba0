package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/utils"
)

// UserRepo persists borrower and staff accounts.  Rut and correo are both
// unique natural keys enforced by the schema; duplicate inserts surface as
// ErrUserExists.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrUserExists = errors.New("rut or correo already registered")

const userCols = "id, primer_nombre, primer_apellido, rut, correo, password_hash, rol, curso, sancion_hasta, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (model.User, error) {
	var u model.User
	var curso sql.NullString
	var sancion sql.NullTime
	err := row.Scan(&u.ID, &u.PrimerNombre, &u.PrimerApellido, &u.Rut, &u.Correo,
		&u.PasswordHash, &u.Rol, &curso, &sancion, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	if curso.Valid {
		c := curso.String
		u.Curso = &c
	}
	if sancion.Valid {
		t := sancion.Time
		u.SancionHasta = &t
	}
	return u, nil
}

// Create inserts a user and returns its ID.  The password is hashed here
// so plaintext never leaves the handler layer.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) (uint64, error) {
	u.Correo = strings.ToLower(strings.TrimSpace(u.Correo))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (primer_nombre, primer_apellido, rut, correo, password_hash, rol, curso)
		 VALUES (?,?,?,?,?,?,?)`,
		u.PrimerNombre, u.PrimerApellido, u.Rut, u.Correo, hash, u.Rol, u.Curso)
	if err != nil {
		// 1062 = duplicate key on rut or correo
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrUserExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByCorreo fetches a user by normalized email.
func (r *UserRepo) GetByCorreo(ctx context.Context, correo string) (model.User, error) {
	correo = strings.ToLower(strings.TrimSpace(correo))
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE correo = ? LIMIT 1`, correo))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ? LIMIT 1`, id))
}

// GetForUpdateTx fetches a user inside a transaction with a row lock.  The
// borrower policy reads sanction state and active-item counts under this
// lock so two concurrent requests from the same user serialize instead of
// both passing the limit check.
func (r *UserRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.User, error) {
	return scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ? FOR UPDATE`, id))
}

// List returns all users ordered by surname.  Password hashes are included
// in the model; handlers must not serialize them.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+userCols+` FROM users ORDER BY primer_apellido, primer_nombre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update rewrites a user's editable fields.  An empty password leaves the
// stored hash untouched.
func (r *UserRepo) Update(ctx context.Context, u *model.User, password string, cost int) error {
	u.Correo = strings.ToLower(strings.TrimSpace(u.Correo))
	if password != "" {
		hash, err := utils.HashPassword(password, cost)
		if err != nil {
			return err
		}
		_, err = r.DB.ExecContext(ctx,
			`UPDATE users SET primer_nombre=?, primer_apellido=?, rut=?, correo=?, rol=?, curso=?, password_hash=?
			 WHERE id=?`,
			u.PrimerNombre, u.PrimerApellido, u.Rut, u.Correo, u.Rol, u.Curso, hash, u.ID)
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET primer_nombre=?, primer_apellido=?, rut=?, correo=?, rol=?, curso=? WHERE id=?`,
		u.PrimerNombre, u.PrimerApellido, u.Rut, u.Correo, u.Rol, u.Curso, u.ID)
	return err
}

// Delete removes a user.  Loans and reservations keep their usuario_id as
// a historical reference (no FK cascade on purpose).
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
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

// SetSancionTx stamps a borrowing ban on a user inside the return
// transaction.
func (r *UserRepo) SetSancionTx(ctx context.Context, tx *sql.Tx, id uint64, hasta time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET sancion_hasta = ? WHERE id = ?`, hasta, id)
	return err
}

// ClearSancion lifts a user's sanction (admin pardon).
func (r *UserRepo) ClearSancion(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET sancion_hasta = NULL WHERE id = ?`, id)
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

// CountSanctioned counts users under an active sanction (dashboard).
func (r *UserRepo) CountSanctioned(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE sancion_hasta IS NOT NULL AND sancion_hasta > ?`, now).Scan(&n)
	return n, err
}
