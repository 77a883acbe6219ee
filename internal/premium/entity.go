// AngelaMos | 2026
// entity.go

package premium

import (
	"time"
)

type Package struct {
	ID             string    `db:"id"               json:"id"`
	Name           string    `db:"name"             json:"name"`
	StoreProductID *string   `db:"store_product_id" json:"store_product_id"`
	PriceMonthly   float64   `db:"price_monthly"    json:"price_monthly"`
	PriceYearly    float64   `db:"price_yearly"     json:"price_yearly"`
	TrialDays      int       `db:"trial_days"       json:"trial_days"`
	Description    string    `db:"description"      json:"description"`
	IsActive       bool      `db:"is_active"        json:"is_active"`
	CreatedAt      time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"       json:"updated_at"`
}

type PackageResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PriceMonthly float64 `json:"price_monthly"`
	PriceYearly  float64 `json:"price_yearly"`
	TrialDays    int     `json:"trial_days"`
	Description  string  `json:"description"`
}

func ToPackageResponseList(pkgs []Package) []PackageResponse {
	out := make([]PackageResponse, len(pkgs))
	for i, p := range pkgs {
		out[i] = PackageResponse{
			ID:           p.ID,
			Name:         p.Name,
			PriceMonthly: p.PriceMonthly,
			PriceYearly:  p.PriceYearly,
			TrialDays:    p.TrialDays,
			Description:  p.Description,
		}
	}
	return out
}
