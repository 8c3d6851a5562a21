package inventory

import (
	"math"
	"time"
)

// ScarcityPolicy parameterizes the display overlay.  The policy is a pure
// function of the real sold count and elapsed time; the engine consumes it
// and never invents its own growth curve (that curve is configuration,
// decided outside this package).
type ScarcityPolicy struct {
	// MinPercent is a floor on the displayed sold count, expressed as a
	// percentage of the pool, applied early in the sale (e.g. 8).
	MinPercent float64 `json:"min_percent"`
	// DisablePercent is the real sold percentage at or above which the
	// overlay is disabled entirely and displaySold equals sold.
	DisablePercent float64 `json:"disable_percent"`
	// FixedAdditive is the constant synthetic ticket count added to the real
	// sold count while the overlay is active (e.g. 1200).
	FixedAdditive int `json:"fixed_additive"`
	// Ramp optionally scales FixedAdditive in linearly from 0 over this
	// duration measured from StartedAt; zero applies the full additive
	// immediately.
	Ramp time.Duration `json:"ramp,omitempty"`
	// StartedAt anchors the ramp; ignored when Ramp is zero.
	StartedAt time.Time `json:"started_at,omitempty"`
}

// syntheticAt returns the additive in effect at now, scaled by ramp progress.
func (p ScarcityPolicy) syntheticAt(now time.Time) int {
	if p.Ramp <= 0 {
		return p.FixedAdditive
	}
	elapsed := now.Sub(p.StartedAt)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= p.Ramp {
		return p.FixedAdditive
	}
	return int(float64(p.FixedAdditive) * (float64(elapsed) / float64(p.Ramp)))
}

// ApplyOverlay derives the display-facing layer from a real snapshot.  It is
// a pure function of (snapshot, policy, now).
//
// When the overlay is active, displaySold = sold + additive, floored at
// MinPercent of the pool.  displayAvailable is always derived as
// total - displaySold - reserved.  The additive is clamped so the display
// closed form holds exactly and displayAvailable never goes negative:
// shrinking the synthetic amount is always preferred over violating the
// invariant.  displaySold >= sold holds in every branch.
func ApplyOverlay(inv InventorySnapshot, p ScarcityPolicy, now time.Time) DisplaySnapshot {
	displaySold := inv.Sold

	soldPercent := 0.0
	if inv.Total > 0 {
		soldPercent = float64(inv.Sold) / float64(inv.Total) * 100
	}
	if p.DisablePercent <= 0 || soldPercent < p.DisablePercent {
		displaySold = inv.Sold + p.syntheticAt(now)
		if floor := int(math.Ceil(float64(inv.Total) * p.MinPercent / 100)); displaySold < floor {
			displaySold = floor
		}
	}

	// Clamp so the sum closes exactly at total; the synthetic amount gives
	// way, the real reserved count never does.
	if max := inv.Total - inv.Reserved; displaySold > max {
		displaySold = max
	}
	if displaySold < inv.Sold {
		displaySold = inv.Sold
	}

	return DisplaySnapshot{
		DisplaySold:      displaySold,
		DisplayAvailable: inv.Total - displaySold - inv.Reserved,
		Reserved:         inv.Reserved,
		Total:            inv.Total,
	}
}
