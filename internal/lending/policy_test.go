package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

func alumno(sancionHasta *time.Time) *model.User {
	return &model.User{ID: 7, Rol: model.RolAlumno, SancionHasta: sancionHasta}
}

func TestCanBorrowHappyPath(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 2, 10, 0)
	assert.NoError(t, r.CanBorrow(alumno(nil), 0, 0, now))
}

func TestCanBorrowSanctionBlocks(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 2, 10, 0)
	hasta := now.AddDate(0, 0, 3)
	err := r.CanBorrow(alumno(&hasta), 0, 0, now)
	require.Error(t, err)
	var d *Denial
	require.ErrorAs(t, err, &d)
	assert.Contains(t, d.Reason, "sancionado")
}

func TestCanBorrowExpiredSanctionDoesNotBlock(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 2, 10, 0)
	hasta := now.AddDate(0, 0, -1)
	assert.NoError(t, r.CanBorrow(alumno(&hasta), 0, 0, now))
}

func TestCanBorrowOverdueLoanBlocks(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 2, 10, 0)
	err := r.CanBorrow(alumno(nil), 0, 1, now)
	require.Error(t, err)
	var d *Denial
	require.ErrorAs(t, err, &d)
	assert.Contains(t, d.Reason, "atrasados")
}

func TestCanBorrowActiveItemLimit(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 2, 10, 0)
	err := r.CanBorrow(alumno(nil), 1, 0, now)
	require.Error(t, err)
	var d *Denial
	require.ErrorAs(t, err, &d)
	assert.Contains(t, d.Reason, "límite")
}

func TestCanBorrowProfesorExemptFromLimit(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 2, 10, 0)
	prof := &model.User{ID: 3, Rol: model.RolProfesor}
	assert.NoError(t, r.CanBorrow(prof, 5, 0, now))
}

func TestCanBorrowProfesorStillBlockedByOverdue(t *testing.T) {
	r := DefaultRules()
	now := mustDate(2026, time.March, 2, 10, 0)
	prof := &model.User{ID: 3, Rol: model.RolProfesor}
	assert.Error(t, r.CanBorrow(prof, 0, 1, now))
}

func TestCanBorrowHigherConfiguredLimit(t *testing.T) {
	r := DefaultRules()
	r.MaxActiveItems = 3
	now := mustDate(2026, time.March, 2, 10, 0)
	assert.NoError(t, r.CanBorrow(alumno(nil), 2, 0, now))
	assert.Error(t, r.CanBorrow(alumno(nil), 3, 0, now))
}
