// AngelaMos | 2026
// event.go

package entitlement

import (
	"time"
)

type EventType string

const (
	EventInitialPurchase     EventType = "INITIAL_PURCHASE"
	EventRenewal             EventType = "RENEWAL"
	EventNonRenewingPurchase EventType = "NON_RENEWING_PURCHASE"
	EventCancellation        EventType = "CANCELLATION"
	EventExpiration          EventType = "EXPIRATION"
	EventTest                EventType = "TEST"
	EventUnknown             EventType = "UNKNOWN"
)

// ParseEventType maps provider type strings onto the closed set of types
// the state machine understands. Anything else is EventUnknown.
func ParseEventType(raw string) EventType {
	switch t := EventType(raw); t {
	case EventInitialPurchase,
		EventRenewal,
		EventNonRenewingPurchase,
		EventCancellation,
		EventExpiration,
		EventTest:
		return t
	default:
		return EventUnknown
	}
}

func (t EventType) IsPurchase() bool {
	switch t {
	case EventInitialPurchase, EventRenewal, EventNonRenewingPurchase:
		return true
	default:
		return false
	}
}

// Event is a billing event normalized from the provider payload.
// ClockStamped is set when the provider sent no event timestamp and
// Timestamp is the local receive time.
type Event struct {
	ID           string
	Type         EventType
	RawType      string
	UserID       string
	Timestamp    time.Time
	ExpiresAt    *time.Time
	PackageID    *string
	ClockStamped bool
}
