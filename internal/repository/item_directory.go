package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// ItemDirectory gives the loan and reservation managers uniform access to
// the two physical-item tables.  The kind tag in an ItemRef selects the
// table; everything else reads and writes the shared estado/observaciones
// vocabulary.
//
// ClaimTx is the concurrency guard for the whole lifecycle engine: the
// conditional UPDATE is the only thing that decides which of two
// concurrent borrow requests wins an item, never an earlier SELECT.
type ItemDirectory struct {
	db *sql.DB
}

// NewItemDirectory returns an ItemDirectory bound to the given database.
func NewItemDirectory(db *sql.DB) *ItemDirectory { return &ItemDirectory{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (d *ItemDirectory) DB() *sql.DB { return d.db }

// ItemState is the directory's view of one physical item: just identity,
// lifecycle state and operator notes, regardless of kind.
type ItemState struct {
	Ref           model.ItemRef
	Estado        string
	Observaciones *string
}

// table maps an item kind to its backing table.  Unknown kinds are a
// programming error upstream; the HTTP boundary validates itemModel before
// building an ItemRef.
func table(kind model.ItemKind) (string, error) {
	switch kind {
	case model.KindExemplar:
		return "exemplars", nil
	case model.KindResourceInstance:
		return "resource_instances", nil
	}
	return "", fmt.Errorf("itemdirectory: unknown kind %q", kind)
}

// GetTx loads an item's current state inside a transaction, locking the
// row so the state read holds until commit.  Returns sql.ErrNoRows when
// the item does not exist.
func (d *ItemDirectory) GetTx(ctx context.Context, tx *sql.Tx, ref model.ItemRef) (*ItemState, error) {
	tbl, err := table(ref.Kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT estado, observaciones FROM ` + tbl + ` WHERE id = ? FOR UPDATE`
	st := ItemState{Ref: ref}
	var obs sql.NullString
	if err := tx.QueryRowContext(ctx, q, ref.ID).Scan(&st.Estado, &obs); err != nil {
		return nil, err
	}
	if obs.Valid {
		o := obs.String
		st.Observaciones = &o
	}
	return &st, nil
}

// Get is the read-only variant of GetTx for projections outside a
// transaction.
func (d *ItemDirectory) Get(ctx context.Context, ref model.ItemRef) (*ItemState, error) {
	tbl, err := table(ref.Kind)
	if err != nil {
		return nil, err
	}
	st := ItemState{Ref: ref}
	var obs sql.NullString
	err = d.db.QueryRowContext(ctx, `SELECT estado, observaciones FROM `+tbl+` WHERE id = ?`, ref.ID).
		Scan(&st.Estado, &obs)
	if err != nil {
		return nil, err
	}
	if obs.Valid {
		o := obs.String
		st.Observaciones = &o
	}
	return &st, nil
}

// EnsureStateTx verifies the item exists and currently holds the wanted
// state, locking its row.  Returns sql.ErrNoRows for an absent item and
// ErrItemUnavailable on a state mismatch.  Handlers run this before
// ClaimTx so a later zero-row claim is known to be a lost race rather
// than a bad request.
func (d *ItemDirectory) EnsureStateTx(ctx context.Context, tx *sql.Tx, ref model.ItemRef, want string) error {
	st, err := d.GetTx(ctx, tx, ref)
	if err != nil {
		return err
	}
	if st.Estado != want {
		return ErrItemUnavailable
	}
	return nil
}

// ClaimTx atomically moves an item from one state to another.  The WHERE
// clause carries the precondition, so when two requests race only one
// matches a row; the loser gets ErrConflict and must not write its loan or
// reservation record.  ErrItemUnavailable is never returned here — callers
// that want to distinguish "wrong state" from "lost a race" run
// EnsureStateTx first and treat a later ErrConflict as the race.
func (d *ItemDirectory) ClaimTx(ctx context.Context, tx *sql.Tx, ref model.ItemRef, from, to string) error {
	tbl, err := table(ref.Kind)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE `+tbl+` SET estado = ? WHERE id = ? AND estado = ?`,
		to, ref.ID, from)
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

// SetStateTx unconditionally writes an item's state, optionally together
// with operator notes.  Used on return and by the attention queue, where
// the open loan or reservation already serializes access to the item.
func (d *ItemDirectory) SetStateTx(ctx context.Context, tx *sql.Tx, ref model.ItemRef, estado string, observaciones *string) error {
	tbl, err := table(ref.Kind)
	if err != nil {
		return err
	}
	if observaciones != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE `+tbl+` SET estado = ?, observaciones = ? WHERE id = ?`,
			estado, *observaciones, ref.ID)
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE `+tbl+` SET estado = ? WHERE id = ?`, estado, ref.ID)
	return err
}

// AttentionItem is one row of the operator triage view: an item whose
// state needs housekeeping, tagged with its kind and catalog title.
type AttentionItem struct {
	Ref           model.ItemRef `json:"item"`
	Estado        string        `json:"estado"`
	Observaciones *string       `json:"observaciones,omitempty"`
	Titulo        string        `json:"titulo"`
	Codigo        string        `json:"codigo"`
}

// ListAttention returns every exemplar and resource instance whose state
// is in model.AttentionStates, joined with its catalog entry for display.
func (d *ItemDirectory) ListAttention(ctx context.Context) ([]AttentionItem, error) {
	ph := strings.TrimSuffix(strings.Repeat("?,", len(model.AttentionStates)), ",")
	q := `SELECT 'Exemplar' AS kind, e.id, e.estado, e.observaciones, b.titulo,
	             CONCAT('copia ', e.numero_copia)
	      FROM exemplars e JOIN books b ON b.id = e.libro_id
	      WHERE e.estado IN (` + ph + `)
	      UNION ALL
	      SELECT 'ResourceInstance', ri.id, ri.estado, ri.observaciones, rc.nombre,
	             ri.codigo_interno
	      FROM resource_instances ri JOIN resources_cra rc ON rc.id = ri.resource_id
	      WHERE ri.estado IN (` + ph + `)`
	args := make([]interface{}, 0, 2*len(model.AttentionStates))
	for i := 0; i < 2; i++ {
		for _, s := range model.AttentionStates {
			args = append(args, s)
		}
	}
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]AttentionItem, 0)
	for rows.Next() {
		var it AttentionItem
		var kind string
		var obs sql.NullString
		if err := rows.Scan(&kind, &it.Ref.ID, &it.Estado, &obs, &it.Titulo, &it.Codigo); err != nil {
			return nil, err
		}
		it.Ref.Kind = model.ItemKind(kind)
		if obs.Valid {
			o := obs.String
			it.Observaciones = &o
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Repair moves an item in an attention state back to disponible
// ("repaired"/"found").  Conditional on the current state so an item that
// was decommissioned or re-loaned meanwhile is not silently revived.
func (d *ItemDirectory) Repair(ctx context.Context, ref model.ItemRef) error {
	tbl, err := table(ref.Kind)
	if err != nil {
		return err
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(model.AttentionStates)), ",")
	args := []interface{}{model.EstadoDisponible, ref.ID}
	for _, s := range model.AttentionStates {
		args = append(args, s)
	}
	res, err := d.db.ExecContext(ctx,
		`UPDATE `+tbl+` SET estado = ?, observaciones = NULL WHERE id = ? AND estado IN (`+ph+`)`,
		args...)
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

// DeleteInstance hard-deletes a single copy/instance record
// (decommissioning).  Only items already triaged into an attention state
// can be retired; a disponible, prestado or reservado item has to go
// through the flag or return flow first so no open loan or reservation is
// left pointing at a vanished item.  Returns sql.ErrNoRows for an absent
// item and ErrConflict for one outside the attention states.
func (d *ItemDirectory) DeleteInstance(ctx context.Context, ref model.ItemRef) error {
	tbl, err := table(ref.Kind)
	if err != nil {
		return err
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(model.AttentionStates)), ",")
	args := make([]interface{}, 0, 1+len(model.AttentionStates))
	args = append(args, ref.ID)
	for _, s := range model.AttentionStates {
		args = append(args, s)
	}
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM `+tbl+` WHERE id = ? AND estado IN (`+ph+`)`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		if err := d.db.QueryRowContext(ctx, `SELECT 1 FROM `+tbl+` WHERE id = ?`, ref.ID).Scan(&one); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}
