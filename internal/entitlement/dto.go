// AngelaMos | 2026
// dto.go

package entitlement

import (
	"time"
)

type OverrideRequest struct {
	Action       string     `json:"action"        validate:"required,oneof=grant revoke"`
	PackageID    *string    `json:"package_id"    validate:"omitempty,uuid"`
	PremiumUntil *time.Time `json:"premium_until"`
}

type StateResponse struct {
	UserID       string     `json:"user_id"`
	IsPremium    bool       `json:"is_premium"`
	Status       string     `json:"status"`
	PackageID    *string    `json:"package_id"`
	PremiumUntil *time.Time `json:"premium_until"`
	LastEventAt  *time.Time `json:"last_event_at"`
	Result       string     `json:"result"`
}

func ToStateResponse(userID string, o ApplyOutcome) StateResponse {
	return StateResponse{
		UserID:       userID,
		IsPremium:    o.State.IsPremium(),
		Status:       string(o.State.Status),
		PackageID:    o.State.PackageID,
		PremiumUntil: o.State.Until,
		LastEventAt:  o.State.LastEventAt,
		Result:       string(o.Result),
	}
}
