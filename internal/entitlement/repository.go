// AngelaMos | 2026
// repository.go

package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/recipes-api/internal/core"
)

// Guard is the idempotency decision for one provider event id.
type Guard int

const (
	GuardAccepted Guard = iota
	GuardAlreadyApplied
)

func (g Guard) String() string {
	if g == GuardAlreadyApplied {
		return "already_applied"
	}
	return "accepted"
}

type AppliedEvent struct {
	ProviderEventID string    `db:"provider_event_id" json:"provider_event_id"`
	EventType       string    `db:"event_type"        json:"event_type"`
	TargetUserID    string    `db:"target_user_id"    json:"target_user_id"`
	EventTimestamp  time.Time `db:"event_timestamp"   json:"event_timestamp"`
	StateChanged    bool      `db:"state_changed"     json:"state_changed"`
	AppliedAt       time.Time `db:"applied_at"        json:"applied_at"`
}

// Repository methods take the querier explicitly so every write of one
// delivery runs on the same transaction.
type Repository interface {
	LockUser(ctx context.Context, q core.DBTX, userID string) (bool, error)
	TryApply(ctx context.Context, q core.DBTX, ev AppliedEvent) (Guard, error)
	MarkStateChanged(ctx context.Context, q core.DBTX, eventID string) error
	LoadState(ctx context.Context, q core.DBTX, userID string) (State, error)
	SaveState(ctx context.Context, q core.DBTX, userID string, s State) error
	ListEvents(
		ctx context.Context,
		q core.DBTX,
		userID string,
		limit int,
	) ([]AppliedEvent, error)
}

type repository struct{}

func NewRepository() Repository {
	return repository{}
}

// LockUser takes the user's row lock for the rest of the transaction by
// bumping entitlement_version. It reports false for unknown users.
func (repository) LockUser(
	ctx context.Context,
	q core.DBTX,
	userID string,
) (bool, error) {
	query := q.Rebind(`
		UPDATE users
		SET entitlement_version = entitlement_version + 1
		WHERE id = ? AND deleted_at IS NULL`)

	result, err := q.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("lock user: %w", err)
	}

	rows, err := core.RowsAffected(result, "lock user")
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// TryApply records ev unless its provider id was seen before. The unique
// key is the only arbiter; there is no existence pre-check.
func (repository) TryApply(
	ctx context.Context,
	q core.DBTX,
	ev AppliedEvent,
) (Guard, error) {
	query := q.Rebind(`
		INSERT INTO applied_events (provider_event_id, event_type,
		                            target_user_id, event_timestamp,
		                            state_changed, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_event_id) DO NOTHING`)

	result, err := q.ExecContext(ctx, query,
		ev.ProviderEventID,
		ev.EventType,
		ev.TargetUserID,
		ev.EventTimestamp.UTC(),
		ev.StateChanged,
		ev.AppliedAt.UTC(),
	)
	if err != nil {
		return GuardAccepted, fmt.Errorf("record applied event: %w", err)
	}

	rows, err := core.RowsAffected(result, "record applied event")
	if err != nil {
		return GuardAccepted, err
	}

	if rows == 0 {
		return GuardAlreadyApplied, nil
	}
	return GuardAccepted, nil
}

func (repository) MarkStateChanged(
	ctx context.Context,
	q core.DBTX,
	eventID string,
) error {
	query := q.Rebind(`
		UPDATE applied_events SET state_changed = ?
		WHERE provider_event_id = ?`)

	if _, err := q.ExecContext(ctx, query, true, eventID); err != nil {
		return fmt.Errorf("mark state changed: %w", err)
	}
	return nil
}

type stateRow struct {
	Status      string         `db:"premium_status"`
	PackageID   sql.NullString `db:"premium_package_id"`
	Until       sql.NullTime   `db:"premium_until"`
	LastEventAt sql.NullTime   `db:"premium_last_event_at"`
}

func (repository) LoadState(
	ctx context.Context,
	q core.DBTX,
	userID string,
) (State, error) {
	query := q.Rebind(`
		SELECT premium_status, premium_package_id, premium_until,
		       premium_last_event_at
		FROM users
		WHERE id = ?`)

	var row stateRow
	err := q.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, fmt.Errorf("load entitlement: %w", core.ErrNotFound)
	}
	if err != nil {
		return State{}, fmt.Errorf("load entitlement: %w", err)
	}

	state := State{
		Status:      Status(row.Status),
		Until:       core.TimePtr(row.Until),
		LastEventAt: core.TimePtr(row.LastEventAt),
	}
	if state.Status == "" {
		state.Status = StatusFree
	}
	if row.PackageID.Valid {
		pkg := row.PackageID.String
		state.PackageID = &pkg
	}

	return state, nil
}

func (repository) SaveState(
	ctx context.Context,
	q core.DBTX,
	userID string,
	s State,
) error {
	query := q.Rebind(`
		UPDATE users
		SET is_premium = ?, premium_status = ?, premium_package_id = ?,
		    premium_until = ?, premium_last_event_at = ?, updated_at = ?
		WHERE id = ?`)

	var pkg sql.NullString
	if s.PackageID != nil {
		pkg = sql.NullString{String: *s.PackageID, Valid: true}
	}

	result, err := q.ExecContext(ctx, query,
		s.IsPremium(),
		string(s.Status),
		pkg,
		core.NullTime(s.Until),
		core.NullTime(s.LastEventAt),
		time.Now().UTC(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}

	rows, err := core.RowsAffected(result, "save entitlement")
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("save entitlement: %w", core.ErrNotFound)
	}

	return nil
}

func (repository) ListEvents(
	ctx context.Context,
	q core.DBTX,
	userID string,
	limit int,
) ([]AppliedEvent, error) {
	query := q.Rebind(`
		SELECT provider_event_id, event_type, target_user_id,
		       event_timestamp, state_changed, applied_at
		FROM applied_events
		WHERE target_user_id = ?
		ORDER BY applied_at DESC, provider_event_id
		LIMIT ?`)

	events := []AppliedEvent{}
	if err := q.SelectContext(ctx, &events, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list applied events: %w", err)
	}

	return events, nil
}
