// AngelaMos | 2026
// repository.go

package engagement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/recipes-api/internal/core"
)

type repository struct {
	rel  Relation
	stmt statements
}

func newRepository(rel Relation) *repository {
	return &repository{rel: rel, stmt: rel.statements()}
}

func (r *repository) counter(
	ctx context.Context,
	q core.DBTX,
	targetID string,
) (int, error) {
	var count int
	err := q.GetContext(ctx, &count, q.Rebind(r.stmt.selectCounter), targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTargetNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%s counter: %w", r.rel.Name, err)
	}
	return count, nil
}

func (r *repository) actorExists(
	ctx context.Context,
	q core.DBTX,
	userID string,
) (bool, error) {
	var count int
	if err := q.GetContext(ctx, &count, q.Rebind(r.stmt.actorExists), userID); err != nil {
		return false, fmt.Errorf("%s actor: %w", r.rel.Name, err)
	}
	return count > 0, nil
}

// insert reports whether a new relation row was written. A conflicting
// row leaves the table untouched.
func (r *repository) insert(
	ctx context.Context,
	q core.DBTX,
	userID, targetID string,
) (bool, error) {
	result, err := q.ExecContext(ctx, q.Rebind(r.stmt.insert),
		userID, targetID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", r.rel.Name, err)
	}

	rows, err := core.RowsAffected(result, "insert "+r.rel.Name)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *repository) delete(
	ctx context.Context,
	q core.DBTX,
	userID, targetID string,
) (bool, error) {
	result, err := q.ExecContext(ctx, q.Rebind(r.stmt.remove), userID, targetID)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", r.rel.Name, err)
	}

	rows, err := core.RowsAffected(result, "delete "+r.rel.Name)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *repository) increment(
	ctx context.Context,
	q core.DBTX,
	targetID string,
) (int, error) {
	var count int
	if err := q.GetContext(ctx, &count, q.Rebind(r.stmt.increment), targetID); err != nil {
		return 0, fmt.Errorf("increment %s: %w", r.rel.CounterColumn, err)
	}
	return count, nil
}

func (r *repository) decrement(
	ctx context.Context,
	q core.DBTX,
	targetID string,
) (int, error) {
	var count int
	if err := q.GetContext(ctx, &count, q.Rebind(r.stmt.decrement), targetID); err != nil {
		return 0, fmt.Errorf("decrement %s: %w", r.rel.CounterColumn, err)
	}
	return count, nil
}
