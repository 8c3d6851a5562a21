package model

import "time"

// TicketStatus enumerates the lifecycle states of a ticket.  A ticket is
// created exactly once in StatusAvailable, moves to StatusReserved when a
// reservation claims it, and to StatusSold when the attached purchase is
// confirmed.  Expiry and cancellation move it back to StatusAvailable.
// Tickets are never deleted.
type TicketStatus string

const (
	StatusAvailable TicketStatus = "AVAILABLE" // free to be selected and reserved
	StatusReserved  TicketStatus = "RESERVED"  // temporarily held by an unconfirmed reservation
	StatusSold      TicketStatus = "SOLD"      // purchase confirmed
)

// Ticket represents one numbered ticket out of the fixed pool.
//
// Fields:
//  Number     – identity; a number in [1, total], unique for the pool.
//  Status     – current lifecycle state.
//  Holder     – who reserved or bought the ticket (nullable).
//  PurchaseID – external purchase reference set on confirmation (nullable).
//  ReservedAt – when the active reservation was created (nullable).
//  SoldAt     – when the purchase was confirmed (nullable).
type Ticket struct {
	Number     int          // tickets.number
	Status     TicketStatus // tickets.status
	Holder     *string      // tickets.holder (nullable)
	PurchaseID *string      // tickets.purchase_id (nullable)
	ReservedAt *time.Time   // tickets.reserved_at (nullable)
	SoldAt     *time.Time   // tickets.sold_at (nullable)
}
