// Package queue defines message payloads exchanged over the message broker.
package queue

// Notification is the wire form of an engine event published to the
// inventory.notifications queue.  It carries enough information for
// downstream consumers (toasts, logs, analytics) to act without querying
// the primary database.
type Notification struct {
	Kind          string `json:"kind"` // TicketReserved, TicketSold, ReservationExpired, ReservationCancelled, MathIntegrityViolation
	Numbers       []int  `json:"numbers,omitempty"`
	Holder        string `json:"holder,omitempty"`
	ReservationID string `json:"reservation_id,omitempty"`
	PurchaseID    string `json:"purchase_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	At            string `json:"at"` // RFC3339
}
