package model

import "time"

// Loan states.  enCurso is the only open state a loan is created in;
// atrasado marks an open loan past its due date; devuelto is terminal.
// A returned loan is always devuelto even when it came back late — the
// sanction on the borrower records the lateness, not the loan's state.
const (
	LoanEnCurso  = "enCurso"
	LoanDevuelto = "devuelto"
	LoanAtrasado = "atrasado"
)

// OpenLoanStates are the states in which a loan still occupies its item.
var OpenLoanStates = []string{LoanEnCurso, LoanAtrasado}

// Loan records one borrowing of a physical item by a user.  Item carries
// the polymorphic reference (kind + id).  Loans are historical records and
// are never deleted.
//
// Fields:
//  ID               – primary key identifier.
//  UsuarioID        – borrowing user.
//  Item             – polymorphic reference to the borrowed item.
//  FechaInicio      – creation instant.
//  FechaVencimiento – due instant.
//  FechaDevolucion  – return instant (nullable while open).
//  Estado           – one of the Loan* states.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Loan struct {
	ID               uint64     `json:"id"`
	UsuarioID        uint64     `json:"usuarioId"`
	Item             ItemRef    `json:"item"`
	FechaInicio      time.Time  `json:"fechaInicio"`
	FechaVencimiento time.Time  `json:"fechaVencimiento"`
	FechaDevolucion  *time.Time `json:"fechaDevolucion,omitempty"`
	Estado           string     `json:"estado"`
	CreatedAt        time.Time  `json:"-"`
	UpdatedAt        time.Time  `json:"-"`
}

// Open reports whether the loan still occupies its item.
func (l *Loan) Open() bool {
	return l.Estado == LoanEnCurso || l.Estado == LoanAtrasado
}
