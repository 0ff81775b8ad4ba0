package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/proyecto-sophia/cra-backend/internal/lending"
	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

const (
	userForUpdateQuery = `SELECT (.+) FROM users WHERE id = \? FOR UPDATE`
	exemplarStateQuery = `SELECT estado, observaciones FROM exemplars WHERE id = \? FOR UPDATE`
	openLoansQuery     = `SELECT COUNT\(\*\) FROM loans WHERE usuario_id = \? AND estado IN`
	pendingCountQuery  = `SELECT COUNT\(\*\) FROM reservations WHERE usuario_id = \? AND estado = \?`
	overdueQuery       = `fecha_vencimiento < \?`
)

func newMockLoanHandler(t *testing.T) (*LoanHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &LoanHandler{
		Loans:        repository.NewLoanRepo(db),
		Reservations: repository.NewReservationRepo(db),
		Users:        repository.NewUserRepo(db),
		Items:        repository.NewItemDirectory(db),
		Rules:        lending.DefaultRules(),
		Log:          zap.NewNop(),
	}, mock
}

func userRow(id uint64, rol string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "primer_nombre", "primer_apellido", "rut", "correo",
		"password_hash", "rol", "curso", "sancion_hasta", "created_at", "updated_at",
	}).AddRow(id, "Ana", "Rojas", "12345678-9", "ana@colegio.cl", "x", rol, nil, nil, now, now)
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(n)
}

func beginMockTx(t *testing.T, h *LoanHandler, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := h.Items.DB().Begin()
	require.NoError(t, err)
	return tx
}

func TestCreateLoanTxMissingItem(t *testing.T) {
	h, mock := newMockLoanHandler(t)
	tx := beginMockTx(t, h, mock)

	mock.ExpectQuery(userForUpdateQuery).WillReturnRows(userRow(4, model.RolAlumno))
	mock.ExpectQuery(exemplarStateQuery).WillReturnError(sql.ErrNoRows)

	ref := model.ItemRef{Kind: model.KindExemplar, ID: 99}
	loan, status, errMap := h.createLoanTx(context.Background(), tx, 4, ref, model.EstadoDisponible, time.Now().UTC())
	assert.Nil(t, loan)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "item not found", errMap["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLoanTxItemInWrongState(t *testing.T) {
	h, mock := newMockLoanHandler(t)
	tx := beginMockTx(t, h, mock)

	mock.ExpectQuery(userForUpdateQuery).WillReturnRows(userRow(4, model.RolAlumno))
	mock.ExpectQuery(exemplarStateQuery).WillReturnRows(
		sqlmock.NewRows([]string{"estado", "observaciones"}).AddRow(model.EstadoReservado, nil))

	// Already reserved by someone else: a bad request, not a 409 race.
	ref := model.ItemRef{Kind: model.KindExemplar, ID: 5}
	loan, status, errMap := h.createLoanTx(context.Background(), tx, 4, ref, model.EstadoDisponible, time.Now().UTC())
	assert.Nil(t, loan)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "item is not available", errMap["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLoanTxCountsRemainingReservations(t *testing.T) {
	// Converting a reservation: the confirmed one is already closed, so a
	// second pending reservation must still block a non-profesor borrower.
	h, mock := newMockLoanHandler(t)
	tx := beginMockTx(t, h, mock)

	mock.ExpectQuery(userForUpdateQuery).WillReturnRows(userRow(4, model.RolAlumno))
	mock.ExpectQuery(exemplarStateQuery).WillReturnRows(
		sqlmock.NewRows([]string{"estado", "observaciones"}).AddRow(model.EstadoReservado, nil))
	mock.ExpectQuery(openLoansQuery).WillReturnRows(countRow(0))
	mock.ExpectQuery(pendingCountQuery).WillReturnRows(countRow(1))
	mock.ExpectQuery(overdueQuery).WillReturnRows(countRow(0))

	ref := model.ItemRef{Kind: model.KindExemplar, ID: 5}
	loan, status, errMap := h.createLoanTx(context.Background(), tx, 4, ref, model.EstadoReservado, time.Now().UTC())
	assert.Nil(t, loan)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, errMap["error"], "límite")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func renewRequest(t *testing.T, h *LoanHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Renew(c))
	return rec
}

func TestRenewRejectsMissingOrInvalidDays(t *testing.T) {
	for name, body := range map[string]string{
		"empty body":    `{}`,
		"zero days":     `{"days": 0}`,
		"negative days": `{"days": -2}`,
		"too many days": `{"days": 40}`,
	} {
		t.Run(name, func(t *testing.T) {
			h, mock := newMockLoanHandler(t)
			rec := renewRequest(t, h, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRenewExtendsFromCurrentDueDate(t *testing.T) {
	h, mock := newMockLoanHandler(t)
	start := time.Now().UTC().Truncate(time.Second)
	due := start.Add(10 * 24 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "usuario_id", "item_kind", "item_id", "fecha_inicio",
		"fecha_vencimiento", "fecha_devolucion", "estado", "created_at", "updated_at",
	}).AddRow(7, 4, "Exemplar", 5, start, due, nil, model.LoanEnCurso, start, start)
	mock.ExpectQuery(`SELECT (.+) FROM loans WHERE id = \?`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE loans SET fecha_vencimiento = \? WHERE id = \? AND estado = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := renewRequest(t, h, `{"days": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		FechaVencimiento time.Time `json:"fechaVencimiento"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// The extension starts at the old due date, never at time of request.
	assert.True(t, lending.AddBusinessDays(due, 3).Equal(resp.FechaVencimiento))
	assert.NoError(t, mock.ExpectationsWereMet())
}
