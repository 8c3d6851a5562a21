package inventory

import (
	"fmt"
	"time"
)

// InventorySnapshot is the authoritative aggregate over the real layer.
// It is recomputed, never incrementally mutated: every instance is derived
// fresh from store counts so that drift cannot accumulate.  After any
// recomputation the closed-form invariant sold + reserved + available ==
// total must hold.
type InventorySnapshot struct {
	Total      int       `json:"total"`
	Sold       int       `json:"sold"`
	Reserved   int       `json:"reserved"`
	Available  int       `json:"available"`
	ComputedAt time.Time `json:"computed_at"`
	// Stale is set when the snapshot is a carried-over copy served because
	// the store could not be reached on the latest recompute.
	Stale bool `json:"stale"`
}

// CheckInvariant verifies the real-layer closed form.  Available is derived
// as total - sold - reserved, so the sum always closes; what can actually go
// wrong is a negative component, which happens when the store reports
// overlapping or impossible counts.
func (s InventorySnapshot) CheckInvariant() error {
	if s.Sold+s.Reserved+s.Available != s.Total {
		return fmt.Errorf("real layer open: sold=%d + reserved=%d + available=%d != total=%d",
			s.Sold, s.Reserved, s.Available, s.Total)
	}
	if s.Sold < 0 || s.Reserved < 0 || s.Available < 0 {
		return fmt.Errorf("real layer negative: sold=%d reserved=%d available=%d",
			s.Sold, s.Reserved, s.Available)
	}
	return nil
}

// DisplaySnapshot is the display-facing layer derived from an
// InventorySnapshot plus the scarcity policy.  It keeps its own closed form,
// displaySold + displayAvailable + reserved == total, entirely separate from
// the real accounting.  DisplayAvailable is always computed from the other
// terms, never measured independently; that is what keeps the two layers
// from drifting apart.
type DisplaySnapshot struct {
	DisplaySold      int `json:"display_sold"`
	DisplayAvailable int `json:"display_available"`
	Reserved         int `json:"reserved"`
	Total            int `json:"total"`
}

// CheckInvariant verifies the display-layer closed form.
func (d DisplaySnapshot) CheckInvariant() error {
	if d.DisplaySold+d.DisplayAvailable+d.Reserved != d.Total {
		return fmt.Errorf("display layer open: displaySold=%d + displayAvailable=%d + reserved=%d != total=%d",
			d.DisplaySold, d.DisplayAvailable, d.Reserved, d.Total)
	}
	if d.DisplaySold < 0 || d.DisplayAvailable < 0 {
		return fmt.Errorf("display layer negative: displaySold=%d displayAvailable=%d",
			d.DisplaySold, d.DisplayAvailable)
	}
	return nil
}
