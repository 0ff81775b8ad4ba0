package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

func newMockDirectory(t *testing.T) (*ItemDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewItemDirectory(db), mock
}

func mockTx(t *testing.T, d *ItemDirectory, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := d.DB().Begin()
	require.NoError(t, err)
	return tx
}

func TestClaimTxZeroRowsIsConflict(t *testing.T) {
	d, mock := newMockDirectory(t)
	tx := mockTx(t, d, mock)

	mock.ExpectExec(`UPDATE exemplars SET estado = \? WHERE id = \? AND estado = \?`).
		WithArgs(model.EstadoPrestado, uint64(7), model.EstadoDisponible).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ref := model.ItemRef{Kind: model.KindExemplar, ID: 7}
	err := d.ClaimTx(context.Background(), tx, ref, model.EstadoDisponible, model.EstadoPrestado)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureStateTx(t *testing.T) {
	ref := model.ItemRef{Kind: model.KindExemplar, ID: 3}
	q := `SELECT estado, observaciones FROM exemplars WHERE id = \? FOR UPDATE`

	t.Run("missing item surfaces as no rows", func(t *testing.T) {
		d, mock := newMockDirectory(t)
		tx := mockTx(t, d, mock)
		mock.ExpectQuery(q).WithArgs(uint64(3)).WillReturnError(sql.ErrNoRows)

		err := d.EnsureStateTx(context.Background(), tx, ref, model.EstadoDisponible)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong state is unavailable, not conflict", func(t *testing.T) {
		d, mock := newMockDirectory(t)
		tx := mockTx(t, d, mock)
		rows := sqlmock.NewRows([]string{"estado", "observaciones"}).
			AddRow(model.EstadoReservado, nil)
		mock.ExpectQuery(q).WithArgs(uint64(3)).WillReturnRows(rows)

		err := d.EnsureStateTx(context.Background(), tx, ref, model.EstadoDisponible)
		assert.ErrorIs(t, err, ErrItemUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wanted state passes", func(t *testing.T) {
		d, mock := newMockDirectory(t)
		tx := mockTx(t, d, mock)
		rows := sqlmock.NewRows([]string{"estado", "observaciones"}).
			AddRow(model.EstadoDisponible, nil)
		mock.ExpectQuery(q).WithArgs(uint64(3)).WillReturnRows(rows)

		err := d.EnsureStateTx(context.Background(), tx, ref, model.EstadoDisponible)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteInstanceRequiresAttentionState(t *testing.T) {
	ref := model.ItemRef{Kind: model.KindResourceInstance, ID: 9}
	del := `DELETE FROM resource_instances WHERE id = \? AND estado IN \(\?,\?,\?\)`
	existsQ := `SELECT 1 FROM resource_instances WHERE id = \?`

	t.Run("attention item is deleted", func(t *testing.T) {
		d, mock := newMockDirectory(t)
		mock.ExpectExec(del).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, d.DeleteInstance(context.Background(), ref))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("item still in circulation is refused", func(t *testing.T) {
		d, mock := newMockDirectory(t)
		mock.ExpectExec(del).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(existsQ).WithArgs(uint64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		err := d.DeleteInstance(context.Background(), ref)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing item surfaces as no rows", func(t *testing.T) {
		d, mock := newMockDirectory(t)
		mock.ExpectExec(del).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(existsQ).WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)

		err := d.DeleteInstance(context.Background(), ref)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
