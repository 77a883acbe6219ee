// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type EntitlementResponse struct {
	IsPremium          bool       `json:"is_premium"`
	Status             string     `json:"status"`
	PackageID          *string    `json:"package_id"`
	PremiumUntil       *time.Time `json:"premium_until"`
	LastEventAt        *time.Time `json:"last_event_at"`
	EntitlementVersion int64      `json:"entitlement_version"`
}

type UserResponse struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	Name        string              `json:"name"`
	Role        string              `json:"role"`
	Entitlement EntitlementResponse `json:"entitlement"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func ToEntitlementResponse(u *User) EntitlementResponse {
	return EntitlementResponse{
		IsPremium:          u.IsPremium,
		Status:             u.PremiumStatus,
		PackageID:          u.PremiumPackageID,
		PremiumUntil:       u.PremiumUntil,
		LastEventAt:        u.PremiumLastEventAt,
		EntitlementVersion: u.EntitlementVersion,
	}
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		Entitlement: ToEntitlementResponse(u),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
