package model

import "fmt"

// ItemKind discriminates which physical-item table a Loan or Reservation
// points into.  Exactly two kinds exist: exemplars (book copies) and
// resource instances (equipment units).  Keeping the dispatch in one value
// avoids scattering string comparisons across every operation.
type ItemKind string

const (
	KindExemplar         ItemKind = "Exemplar"
	KindResourceInstance ItemKind = "ResourceInstance"
)

// ParseItemKind validates the wire value of an itemModel field.  Unknown
// values are rejected at the HTTP boundary before any query runs.
func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case KindExemplar, KindResourceInstance:
		return ItemKind(s), nil
	}
	return "", fmt.Errorf("unknown itemModel %q", s)
}

// ItemRef couples an ItemKind with a concrete row id.  Loans and
// reservations store this pair instead of a foreign key so that one record
// shape covers both item tables.
type ItemRef struct {
	Kind ItemKind `json:"itemModel"`
	ID   uint64   `json:"itemId"`
}

// Lifecycle states shared by exemplars and resource instances.  disponible,
// prestado and reservado are driven by the loan/reservation managers;
// deteriorado, extraviado and mantenimiento feed the attention queue.
// mantenimiento applies to resource instances only.
const (
	EstadoDisponible    = "disponible"
	EstadoPrestado      = "prestado"
	EstadoReservado     = "reservado"
	EstadoDeteriorado   = "deteriorado"
	EstadoExtraviado    = "extraviado"
	EstadoMantenimiento = "mantenimiento"
)

// AttentionStates are the item states an operator must act on.
var AttentionStates = []string{EstadoDeteriorado, EstadoExtraviado, EstadoMantenimiento}

// ValidReturnState reports whether an item state may be set when a loan is
// returned.  A returned item is either fine, damaged, or lost; it can never
// come back as prestado/reservado.
func ValidReturnState(s string) bool {
	switch s {
	case EstadoDisponible, EstadoDeteriorado, EstadoExtraviado:
		return true
	}
	return false
}
