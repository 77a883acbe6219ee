// AngelaMos | 2026
// ledger.go

package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/recipes-api/internal/core"
)

var (
	ErrTargetNotFound = fmt.Errorf("engagement target: %w", core.ErrNotFound)
	ErrActorNotFound  = fmt.Errorf("engagement actor: %w", core.ErrNotFound)
)

type AddResult int

const (
	Added AddResult = iota
	AlreadyExists
)

func (r AddResult) String() string {
	if r == AlreadyExists {
		return "already_exists"
	}
	return "added"
}

type RemoveResult int

const (
	Removed RemoveResult = iota
	NotFound
)

func (r RemoveResult) String() string {
	if r == NotFound {
		return "not_found"
	}
	return "removed"
}

// Ledger pairs one relation table with the counter on its target. Each
// operation is a single transaction; the relation's unique key decides
// races.
type Ledger struct {
	db   *sqlx.DB
	rel  Relation
	repo *repository
}

func NewLedger(db *sqlx.DB, rel Relation) *Ledger {
	return &Ledger{db: db, rel: rel, repo: newRepository(rel)}
}

func (l *Ledger) Relation() Relation {
	return l.rel
}

// Add returns the target's counter after the call in both outcomes. On
// AlreadyExists the counter is re-read after the conflicting insert, so a
// concurrent winner's increment is visible.
func (l *Ledger) Add(
	ctx context.Context,
	userID, targetID string,
) (AddResult, int, error) {
	ctx, span := core.StartSpan(ctx, "engagement.add",
		attribute.String("relation", l.rel.Name),
		attribute.String("target.id", targetID),
	)
	defer span.End()
	start := time.Now()

	if !validID(targetID) {
		return Added, 0, ErrTargetNotFound
	}
	if !validID(userID) {
		return Added, 0, ErrActorNotFound
	}

	result := Added
	var count int
	err := core.InTx(ctx, l.db, func(tx *sqlx.Tx) error {
		if _, err := l.repo.counter(ctx, tx, targetID); err != nil {
			return err
		}

		ok, err := l.repo.actorExists(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrActorNotFound
		}

		inserted, err := l.repo.insert(ctx, tx, userID, targetID)
		if err != nil {
			return err
		}
		if !inserted {
			result = AlreadyExists
			count, err = l.repo.counter(ctx, tx, targetID)
			return err
		}

		count, err = l.repo.increment(ctx, tx, targetID)
		return err
	})

	l.record(span, result.String(), start, err)
	if err != nil {
		return Added, 0, err
	}
	return result, count, nil
}

// Remove mirrors Add; on NotFound the counter is re-read after the delete.
func (l *Ledger) Remove(
	ctx context.Context,
	userID, targetID string,
) (RemoveResult, int, error) {
	ctx, span := core.StartSpan(ctx, "engagement.remove",
		attribute.String("relation", l.rel.Name),
		attribute.String("target.id", targetID),
	)
	defer span.End()
	start := time.Now()

	if !validID(targetID) {
		return Removed, 0, ErrTargetNotFound
	}
	if !validID(userID) {
		return Removed, 0, ErrActorNotFound
	}

	result := Removed
	var count int
	err := core.InTx(ctx, l.db, func(tx *sqlx.Tx) error {
		if _, err := l.repo.counter(ctx, tx, targetID); err != nil {
			return err
		}

		deleted, err := l.repo.delete(ctx, tx, userID, targetID)
		if err != nil {
			return err
		}
		if !deleted {
			result = NotFound
			count, err = l.repo.counter(ctx, tx, targetID)
			return err
		}

		count, err = l.repo.decrement(ctx, tx, targetID)
		return err
	})

	l.record(span, result.String(), start, err)
	if err != nil {
		return Removed, 0, err
	}
	return result, count, nil
}

func (l *Ledger) record(span trace.Span, result string, start time.Time, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		result = "missing"
	case err != nil:
		result = "error"
		core.SetSpanError(span, err)
	}
	span.SetAttributes(attribute.String("engagement.result", result))
	core.RecordEngagement(l.rel.Name, result, time.Since(start).Seconds())
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
