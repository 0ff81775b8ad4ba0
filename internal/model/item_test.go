package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItemKind(t *testing.T) {
	k, err := ParseItemKind("Exemplar")
	require.NoError(t, err)
	assert.Equal(t, KindExemplar, k)

	k, err = ParseItemKind("ResourceInstance")
	require.NoError(t, err)
	assert.Equal(t, KindResourceInstance, k)

	for _, bad := range []string{"", "exemplar", "Book", "resourceinstance"} {
		_, err := ParseItemKind(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestValidReturnState(t *testing.T) {
	assert.True(t, ValidReturnState(EstadoDisponible))
	assert.True(t, ValidReturnState(EstadoDeteriorado))
	assert.True(t, ValidReturnState(EstadoExtraviado))
	// An item never comes back from a loan as lent, reserved or in
	// maintenance.
	assert.False(t, ValidReturnState(EstadoPrestado))
	assert.False(t, ValidReturnState(EstadoReservado))
	assert.False(t, ValidReturnState(EstadoMantenimiento))
	assert.False(t, ValidReturnState(""))
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RolAdmin, RolProfesor, RolAlumno, RolPersonal, RolVisitante} {
		assert.True(t, ValidRole(r))
	}
	assert.False(t, ValidRole("superuser"))
	assert.False(t, ValidRole(""))
}

func TestUserSanctioned(t *testing.T) {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	u := User{}
	assert.False(t, u.Sanctioned(now))

	future := now.AddDate(0, 0, 2)
	u.SancionHasta = &future
	assert.True(t, u.Sanctioned(now))

	past := now.AddDate(0, 0, -2)
	u.SancionHasta = &past
	assert.False(t, u.Sanctioned(now))
}

func TestLoanOpen(t *testing.T) {
	l := Loan{Estado: LoanEnCurso}
	assert.True(t, l.Open())
	l.Estado = LoanAtrasado
	assert.True(t, l.Open())
	l.Estado = LoanDevuelto
	assert.False(t, l.Open())
}
