package model

import "time"

// Reservation states.  pendiente is the only open state; the other three
// are terminal and a reservation never transitions back.
const (
	ReservaPendiente  = "pendiente"
	ReservaExpirada   = "expirada"
	ReservaCompletada = "completada"
	ReservaCancelada  = "cancelada"
)

// Reservation holds an item for a user until they pick it up (which
// converts it to a Loan via confirm), cancel it, or let it expire.  A
// pending reservation occupies one active-item slot for its user, exactly
// like an open loan.
type Reservation struct {
	ID           uint64    `json:"id"`
	UsuarioID    uint64    `json:"usuarioId"`
	Item         ItemRef   `json:"item"`
	FechaReserva time.Time `json:"fechaReserva"`
	ExpiraEn     time.Time `json:"expiraEn"`
	Estado       string    `json:"estado"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}
