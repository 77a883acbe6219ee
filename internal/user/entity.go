// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                 string     `db:"id"`
	Email              string     `db:"email"`
	Name               string     `db:"name"`
	Role               string     `db:"role"`
	TokenVersion       int        `db:"token_version"`
	IsPremium          bool       `db:"is_premium"`
	PremiumStatus      string     `db:"premium_status"`
	PremiumPackageID   *string    `db:"premium_package_id"`
	PremiumUntil       *time.Time `db:"premium_until"`
	PremiumLastEventAt *time.Time `db:"premium_last_event_at"`
	EntitlementVersion int64      `db:"entitlement_version"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	DeletedAt          *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
