// Package queue defines message payloads exchanged over the message broker.
package queue

// LoanSanctionedEvent is published when a late return results in a sanction.
// It carries enough information for downstream consumers to log or notify the
// affected user without querying the primary database.
type LoanSanctionedEvent struct {
	LoanID       uint64 `json:"loan_id"`
	UserID       uint64 `json:"user_id"`
	UserCorreo   string `json:"user_correo"`
	ItemKind     string `json:"item_kind"`
	ItemID       uint64 `json:"item_id"`
	ItemTitulo   string `json:"item_titulo"`
	DiasAtraso   int    `json:"dias_atraso"`
	SancionHasta string `json:"sancion_hasta"`
	ReturnedAt   string `json:"returned_at"`
}

// ReservationExpiredEvent is published when a pending reservation passes its
// deadline without being confirmed and the held item is released.
type ReservationExpiredEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	ItemKind      string `json:"item_kind"`
	ItemID        uint64 `json:"item_id"`
	ExpiredAt     string `json:"expired_at"`
}
