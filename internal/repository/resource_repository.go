package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// ResourceRepo persists CRA resources and their physical instances.
// Instance codes follow "<base>-<n>" with n assigned from the current
// instance count inside the insert transaction.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo returns a ResourceRepo bound to the given database.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *ResourceRepo) DB() *sql.DB { return r.db }

const resourceCols = "id, nombre, categoria, sede, ubicacion, created_at, updated_at"

func scanResource(row interface{ Scan(...interface{}) error }) (model.ResourceCRA, error) {
	var rc model.ResourceCRA
	err := row.Scan(&rc.ID, &rc.Nombre, &rc.Categoria, &rc.Sede, &rc.Ubicacion,
		&rc.CreatedAt, &rc.UpdatedAt)
	return rc, err
}

// CreateTx inserts a resource and populates its ID.
func (r *ResourceRepo) CreateTx(ctx context.Context, tx *sql.Tx, rc *model.ResourceCRA) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO resources_cra (nombre, categoria, sede, ubicacion) VALUES (?,?,?,?)`,
		rc.Nombre, rc.Categoria, rc.Sede, rc.Ubicacion)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rc.ID = uint64(id)
	return nil
}

// AddInstancesTx inserts count new instances for a resource with
// sequential codes "<base>-<n>".  The current count is read with a lock on
// the resource's instance rows, so concurrent additions serialize instead
// of producing duplicate codes.
func (r *ResourceRepo) AddInstancesTx(ctx context.Context, tx *sql.Tx, resourceID uint64, base string, count int) error {
	var existing int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM resource_instances WHERE resource_id = ? FOR UPDATE`,
		resourceID).Scan(&existing)
	if err != nil {
		return err
	}
	for i := 1; i <= count; i++ {
		codigo := fmt.Sprintf("%s-%d", base, existing+i)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resource_instances (resource_id, codigo_interno, estado) VALUES (?,?,?)`,
			resourceID, codigo, model.EstadoDisponible); err != nil {
			return err
		}
	}
	return nil
}

// GetByID fetches a resource by id.
func (r *ResourceRepo) GetByID(ctx context.Context, id uint64) (*model.ResourceCRA, error) {
	rc, err := scanResource(r.db.QueryRowContext(ctx,
		`SELECT `+resourceCols+` FROM resources_cra WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// List returns resources, optionally filtered by a search term matched
// against name and category.
func (r *ResourceRepo) List(ctx context.Context, search string) ([]model.ResourceCRA, error) {
	q := `SELECT ` + resourceCols + ` FROM resources_cra`
	var args []interface{}
	if search != "" {
		q += ` WHERE nombre LIKE ? OR categoria LIKE ?`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	q += ` ORDER BY nombre`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ResourceCRA, 0)
	for rows.Next() {
		rc, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// ResourceAvailability is the public-catalog projection of a resource
// with unit counts.
type ResourceAvailability struct {
	ID          uint64 `json:"id"`
	Nombre      string `json:"nombre"`
	Categoria   string `json:"categoria"`
	Sede        string `json:"sede"`
	Ubicacion   string `json:"ubicacion"`
	Unidades    int    `json:"unidades"`
	Disponibles int    `json:"disponibles"`
}

// ListAvailability returns the public view of the resource catalog with
// unit counts, optionally filtered by a search term.
func (r *ResourceRepo) ListAvailability(ctx context.Context, search string) ([]ResourceAvailability, error) {
	q := `SELECT rc.id, rc.nombre, rc.categoria, rc.sede, rc.ubicacion,
	             COUNT(ri.id),
	             COALESCE(SUM(ri.estado = '` + model.EstadoDisponible + `'), 0)
	      FROM resources_cra rc
	      LEFT JOIN resource_instances ri ON ri.resource_id = rc.id`
	var args []interface{}
	if search != "" {
		q += ` WHERE rc.nombre LIKE ? OR rc.categoria LIKE ?`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	q += ` GROUP BY rc.id ORDER BY rc.nombre`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ResourceAvailability, 0)
	for rows.Next() {
		var ra ResourceAvailability
		if err := rows.Scan(&ra.ID, &ra.Nombre, &ra.Categoria, &ra.Sede, &ra.Ubicacion,
			&ra.Unidades, &ra.Disponibles); err != nil {
			return nil, err
		}
		out = append(out, ra)
	}
	return out, rows.Err()
}

// Update rewrites a resource's catalog fields.
func (r *ResourceRepo) Update(ctx context.Context, rc *model.ResourceCRA) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE resources_cra SET nombre=?, categoria=?, sede=?, ubicacion=? WHERE id=?`,
		rc.Nombre, rc.Categoria, rc.Sede, rc.Ubicacion, rc.ID)
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

// DeleteTx removes a resource and all of its instances (cascade).
func (r *ResourceRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM resource_instances WHERE resource_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM resources_cra WHERE id = ?`, id)
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

// ListInstances returns a resource's physical units ordered by code.
func (r *ResourceRepo) ListInstances(ctx context.Context, resourceID uint64) ([]model.ResourceInstance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, resource_id, codigo_interno, estado, observaciones, created_at, updated_at
		 FROM resource_instances WHERE resource_id = ? ORDER BY codigo_interno`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ResourceInstance, 0)
	for rows.Next() {
		var ri model.ResourceInstance
		var obs sql.NullString
		if err := rows.Scan(&ri.ID, &ri.ResourceID, &ri.CodigoInterno, &ri.Estado, &obs,
			&ri.CreatedAt, &ri.UpdatedAt); err != nil {
			return nil, err
		}
		if obs.Valid {
			o := obs.String
			ri.Observaciones = &o
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}
