// AngelaMos | 2026
// relation.go

package engagement

import (
	"fmt"
)

// Relation describes one engagement kind: a (user, target) table with a
// unique key and the counter column it keeps in step on the target.
type Relation struct {
	Name          string
	Table         string
	TargetColumn  string
	TargetTable   string
	CounterColumn string
	TargetLabel   string
	AddedVerb     string
	RemovedVerb   string
}

var (
	Likes = Relation{
		Name:          "like",
		Table:         "post_likes",
		TargetColumn:  "post_id",
		TargetTable:   "posts",
		CounterColumn: "likes_count",
		TargetLabel:   "Post",
		AddedVerb:     "liked",
		RemovedVerb:   "unliked",
	}

	Saves = Relation{
		Name:          "save",
		Table:         "saved_recipes",
		TargetColumn:  "recipe_id",
		TargetTable:   "recipes",
		CounterColumn: "saves_count",
		TargetLabel:   "Recipe",
		AddedVerb:     "saved",
		RemovedVerb:   "unsaved",
	}
)

type statements struct {
	selectCounter string
	insert        string
	increment     string
	remove        string
	decrement     string
	actorExists   string
}

// Identifiers come from the package-level relations above, never from
// request input.
func (rel Relation) statements() statements {
	return statements{
		selectCounter: fmt.Sprintf(
			`SELECT %s FROM %s WHERE id = ?`,
			rel.CounterColumn, rel.TargetTable,
		),
		insert: fmt.Sprintf(
			`INSERT INTO %s (user_id, %s, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (user_id, %s) DO NOTHING`,
			rel.Table, rel.TargetColumn, rel.TargetColumn,
		),
		increment: fmt.Sprintf(
			`UPDATE %s SET %s = %s + 1 WHERE id = ? RETURNING %s`,
			rel.TargetTable, rel.CounterColumn, rel.CounterColumn,
			rel.CounterColumn,
		),
		remove: fmt.Sprintf(
			`DELETE FROM %s WHERE user_id = ? AND %s = ?`,
			rel.Table, rel.TargetColumn,
		),
		decrement: fmt.Sprintf(
			`UPDATE %s
			 SET %s = CASE WHEN %s > 0 THEN %s - 1 ELSE 0 END
			 WHERE id = ? RETURNING %s`,
			rel.TargetTable, rel.CounterColumn, rel.CounterColumn,
			rel.CounterColumn, rel.CounterColumn,
		),
		actorExists: `SELECT COUNT(*) FROM users WHERE id = ? AND deleted_at IS NULL`,
	}
}
