// AngelaMos | 2026
// state.go

package entitlement

import (
	"time"
)

type Status string

const (
	StatusFree    Status = "free"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// State is a user's entitlement. Active is the only premium status; Until
// is nil for non-expiring access.
type State struct {
	Status      Status
	PackageID   *string
	Until       *time.Time
	LastEventAt *time.Time
}

func (s State) IsPremium() bool {
	return s.Status == StatusActive
}

// Apply computes the entitlement that results from ev. The returned bool
// reports whether ev changed anything the store must persist.
//
// Purchase events older than the last applied event are ignored so a
// late delivery cannot regress a newer expiry. A clock-stamped purchase
// carries no provider ordering, so it may not shorten the current Until.
// Expiration always revokes.
func Apply(current State, ev Event) (State, bool) {
	switch {
	case ev.Type.IsPurchase():
		return applyPurchase(current, ev)
	case ev.Type == EventExpiration:
		return State{
			Status:      StatusExpired,
			LastEventAt: latest(current.LastEventAt, ev.Timestamp),
		}, true
	default:
		return current, false
	}
}

func applyPurchase(current State, ev Event) (State, bool) {
	if current.LastEventAt != nil && ev.Timestamp.Before(*current.LastEventAt) {
		return current, false
	}

	if ev.ClockStamped && shortens(current.Until, ev.ExpiresAt) {
		return current, false
	}

	ts := ev.Timestamp
	if ev.ExpiresAt != nil && !ev.ExpiresAt.After(ev.Timestamp) {
		return State{
			Status:      StatusExpired,
			LastEventAt: &ts,
		}, true
	}

	return State{
		Status:      StatusActive,
		PackageID:   copyString(ev.PackageID),
		Until:       copyTime(ev.ExpiresAt),
		LastEventAt: &ts,
	}, true
}

func shortens(until, expires *time.Time) bool {
	return until != nil && expires != nil && expires.Before(*until)
}

func latest(prev *time.Time, ts time.Time) *time.Time {
	if prev != nil && prev.After(ts) {
		return copyTime(prev)
	}
	return &ts
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
