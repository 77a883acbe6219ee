// AngelaMos | 2026
// counts.go

package admin

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/recipes-api/internal/core"
)

type DomainCounts struct {
	Users         int64            `json:"users"          db:"users"`
	PremiumUsers  int64            `json:"premium_users"  db:"premium_users"`
	Posts         int64            `json:"posts"          db:"posts"`
	PostLikes     int64            `json:"post_likes"     db:"post_likes"`
	Recipes       int64            `json:"recipes"        db:"recipes"`
	SavedRecipes  int64            `json:"saved_recipes"  db:"saved_recipes"`
	AppliedEvents int64            `json:"applied_events" db:"applied_events"`
	ByStatus      map[string]int64 `json:"by_status"      db:"-"`
}

type CountsReader interface {
	Counts(ctx context.Context) (DomainCounts, error)
}

type countsRepository struct {
	db core.DBTX
}

func NewCountsRepository(db core.DBTX) CountsReader {
	return &countsRepository{db: db}
}

func (r *countsRepository) Counts(ctx context.Context) (DomainCounts, error) {
	query := r.db.Rebind(`
		SELECT
			(SELECT COUNT(*) FROM users WHERE deleted_at IS NULL) AS users,
			(SELECT COUNT(*) FROM users
			 WHERE deleted_at IS NULL AND is_premium = ?) AS premium_users,
			(SELECT COUNT(*) FROM posts) AS posts,
			(SELECT COUNT(*) FROM post_likes) AS post_likes,
			(SELECT COUNT(*) FROM recipes) AS recipes,
			(SELECT COUNT(*) FROM saved_recipes) AS saved_recipes,
			(SELECT COUNT(*) FROM applied_events) AS applied_events`)

	var counts DomainCounts
	if err := r.db.GetContext(ctx, &counts, query, true); err != nil {
		return DomainCounts{}, fmt.Errorf("domain counts: %w", err)
	}

	var rows []struct {
		Status string `db:"premium_status"`
		Total  int64  `db:"total"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT premium_status, COUNT(*) AS total
		FROM users
		WHERE deleted_at IS NULL
		GROUP BY premium_status`)
	if err != nil {
		return DomainCounts{}, fmt.Errorf("status counts: %w", err)
	}

	counts.ByStatus = make(map[string]int64, len(rows))
	for _, row := range rows {
		counts.ByStatus[row.Status] = row.Total
	}

	return counts, nil
}
