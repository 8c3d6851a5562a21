package model

import "time"

// Reservation records a time-boxed hold on a set of ticket numbers for a
// single holder.  Every reserved ticket number maps to exactly one active
// reservation.  A reservation is destroyed when its time-to-live elapses
// without confirmation, when the attached purchase is confirmed (tickets move
// to SOLD), or when it is explicitly cancelled.
//
// Fields:
//  ID        – opaque unique identifier (UUID).
//  Numbers   – ticket numbers held by this reservation.
//  Holder    – identity of the party holding the tickets.
//  CreatedAt – when the reservation was accepted.
//  ExpiresAt – CreatedAt plus the configured TTL.
type Reservation struct {
	ID        string    // reservation identifier
	Numbers   []int     // ticket numbers, in the order they were requested
	Holder    string    // holder identity
	CreatedAt time.Time // creation timestamp (UTC)
	ExpiresAt time.Time // expiry deadline (UTC)
}
