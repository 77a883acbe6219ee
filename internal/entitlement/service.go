// AngelaMos | 2026
// service.go

package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/recipes-api/internal/core"
)

// Result classifies how a delivery ended. None of these are errors.
type Result string

const (
	ResultApplied        Result = "applied"
	ResultNoChange       Result = "no_change"
	ResultAlreadyApplied Result = "already_applied"
	ResultUnknownUser    Result = "unknown_user"
)

type ApplyOutcome struct {
	Result Result
	State  State
}

// PackageCatalog resolves store products to premium packages.
type PackageCatalog interface {
	PackageIDForProduct(ctx context.Context, productID string) (*string, error)
	HasPackage(ctx context.Context, packageID string) (bool, error)
}

type Service struct {
	db      *sqlx.DB
	repo    Repository
	catalog PackageCatalog
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	db *sqlx.DB,
	repo Repository,
	catalog PackageCatalog,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:      db,
		repo:    repo,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for applied_at and admin overrides.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ApplyEvent runs one delivery as a single transaction: lock the user row,
// pass the idempotency guard, transition, persist. Either every write
// commits or none does.
func (s *Service) ApplyEvent(ctx context.Context, ev Event) (ApplyOutcome, error) {
	ctx, span := core.StartSpan(ctx, "entitlement.apply",
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", string(ev.Type)),
		attribute.String("user.id", ev.UserID),
	)
	defer span.End()

	if _, err := uuid.Parse(ev.UserID); err != nil {
		return ApplyOutcome{Result: ResultUnknownUser}, nil
	}

	var outcome ApplyOutcome
	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		found, err := s.repo.LockUser(ctx, tx, ev.UserID)
		if err != nil {
			return err
		}
		if !found {
			outcome.Result = ResultUnknownUser
			return nil
		}

		guard, err := s.repo.TryApply(ctx, tx, AppliedEvent{
			ProviderEventID: ev.ID,
			EventType:       eventTypeLabel(ev),
			TargetUserID:    ev.UserID,
			EventTimestamp:  ev.Timestamp,
			AppliedAt:       s.now(),
		})
		if err != nil {
			return err
		}

		current, err := s.repo.LoadState(ctx, tx, ev.UserID)
		if err != nil {
			return err
		}

		if guard == GuardAlreadyApplied {
			outcome = ApplyOutcome{Result: ResultAlreadyApplied, State: current}
			return nil
		}

		next, changed := Apply(current, ev)
		if !changed {
			outcome = ApplyOutcome{Result: ResultNoChange, State: current}
			return nil
		}

		if err := s.repo.SaveState(ctx, tx, ev.UserID, next); err != nil {
			return err
		}
		if err := s.repo.MarkStateChanged(ctx, tx, ev.ID); err != nil {
			return err
		}

		outcome = ApplyOutcome{Result: ResultApplied, State: next}
		return nil
	})
	if err != nil {
		core.SetSpanError(span, err)
		return ApplyOutcome{}, fmt.Errorf("apply event %s: %w", ev.ID, err)
	}

	span.SetAttributes(attribute.String("entitlement.result", string(outcome.Result)))

	if outcome.Result == ResultApplied {
		core.RecordEntitlementTransition(string(outcome.State.Status))
		s.logger.Info("entitlement updated",
			"user_id", ev.UserID,
			"event_id", ev.ID,
			"event_type", ev.Type,
			"status", outcome.State.Status,
		)
	}

	return outcome, nil
}

type OverrideAction string

const (
	OverrideGrant  OverrideAction = "grant"
	OverrideRevoke OverrideAction = "revoke"
)

type Override struct {
	Action       OverrideAction
	PackageID    *string
	PremiumUntil *time.Time
}

// ApplyOverride turns an admin grant or revoke into a synthetic event so it
// passes through the same guard and transition as provider deliveries.
func (s *Service) ApplyOverride(
	ctx context.Context,
	userID string,
	o Override,
) (ApplyOutcome, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return ApplyOutcome{}, fmt.Errorf("override: %w", core.ErrNotFound)
	}

	now := s.now().UTC()
	ev := Event{
		ID:        "admin:" + uuid.New().String(),
		UserID:    userID,
		Timestamp: now,
	}

	switch o.Action {
	case OverrideGrant:
		if o.PremiumUntil != nil && !o.PremiumUntil.After(now) {
			return ApplyOutcome{}, fmt.Errorf(
				"override: premium_until must be in the future: %w",
				core.ErrInvalidInput,
			)
		}
		if o.PackageID != nil {
			ok, err := s.catalog.HasPackage(ctx, *o.PackageID)
			if err != nil {
				return ApplyOutcome{}, fmt.Errorf("override: %w", err)
			}
			if !ok {
				return ApplyOutcome{}, fmt.Errorf(
					"override: unknown package %q: %w",
					*o.PackageID,
					core.ErrInvalidInput,
				)
			}
		}
		ev.Type = EventNonRenewingPurchase
		ev.PackageID = o.PackageID
		ev.ExpiresAt = o.PremiumUntil
	case OverrideRevoke:
		ev.Type = EventExpiration
	default:
		return ApplyOutcome{}, fmt.Errorf(
			"override: invalid action %q: %w",
			o.Action,
			core.ErrInvalidInput,
		)
	}
	ev.RawType = string(ev.Type)

	outcome, err := s.ApplyEvent(ctx, ev)
	if err != nil {
		return ApplyOutcome{}, err
	}
	if outcome.Result == ResultUnknownUser {
		return ApplyOutcome{}, fmt.Errorf("override: %w", core.ErrNotFound)
	}

	s.logger.Info("entitlement override",
		"user_id", userID,
		"event_id", ev.ID,
		"action", o.Action,
		"result", outcome.Result,
	)

	return outcome, nil
}

func (s *Service) ListEvents(
	ctx context.Context,
	userID string,
	limit int,
) ([]AppliedEvent, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []AppliedEvent{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListEvents(ctx, s.db, userID, limit)
}

// eventTypeLabel keeps unrecognized provider types visible in the audit
// trail.
func eventTypeLabel(ev Event) string {
	if ev.Type == EventUnknown && ev.RawType != "" {
		return ev.RawType
	}
	return string(ev.Type)
}
