// AngelaMos | 2026
// ingestor.go

package entitlement

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/recipes-api/internal/core"
)

type Applier interface {
	ApplyEvent(ctx context.Context, ev Event) (ApplyOutcome, error)
}

// Outcome is the full answer to one webhook delivery. Status is what the
// provider sees; anything non-2xx is retried by the provider.
type Outcome struct {
	Status  int
	Message string
	Result  Result
	EventID string
}

func (o Outcome) OK() bool {
	return o.Status == http.StatusOK
}

type webhookEvent struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	AppUserID        string `json:"app_user_id"`
	ProductID        string `json:"product_id"`
	ExpirationAtMs   *int64 `json:"expiration_at_ms"`
	EventTimestampMs *int64 `json:"event_timestamp_ms"`
}

type Ingestor struct {
	applier Applier
	catalog PackageCatalog
	secret  string
	logger  *slog.Logger
	now     func() time.Time
}

func NewIngestor(
	applier Applier,
	catalog PackageCatalog,
	secret string,
	logger *slog.Logger,
) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		applier: applier,
		catalog: catalog,
		secret:  secret,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock sets the clock that timestamps events carrying none.
func (i *Ingestor) WithClock(now func() time.Time) *Ingestor {
	i.now = now
	return i
}

func (i *Ingestor) Handle(
	ctx context.Context,
	authorization string,
	payload []byte,
) Outcome {
	ctx, span := core.StartSpan(ctx, "entitlement.webhook")
	defer span.End()

	if !core.CompareSecret(authorization, i.secret) {
		i.logger.Warn("webhook rejected: authorization mismatch")
		return i.finish(span, "unauthorized", "", Outcome{
			Status:  http.StatusForbidden,
			Message: "Unauthorized",
		})
	}

	rawEvent, raw, ok := decodeEvent(payload)
	if !ok {
		return i.finish(span, "malformed", "", Outcome{
			Status:  http.StatusBadRequest,
			Message: "Invalid payload",
		})
	}

	eventType := ParseEventType(raw.Type)
	span.SetAttributes(attribute.String("event.type", string(eventType)))

	userID := strings.TrimSpace(raw.AppUserID)
	if userID == "" {
		i.logger.Warn("webhook event without app_user_id",
			"event_type", raw.Type,
		)
		return i.finish(span, "missing_user", eventType, Outcome{
			Status:  http.StatusOK,
			Message: "UserId missing",
			Result:  ResultUnknownUser,
		})
	}

	ev := Event{
		ID:        raw.ID,
		Type:      eventType,
		RawType:   raw.Type,
		UserID:    userID,
		Timestamp: i.now().UTC(),
	}
	if ev.ID == "" {
		ev.ID = "sha256:" + core.DigestHex(rawEvent)
	}
	if raw.EventTimestampMs != nil {
		ev.Timestamp = time.UnixMilli(*raw.EventTimestampMs).UTC()
	} else {
		ev.ClockStamped = true
	}
	if raw.ExpirationAtMs != nil {
		expires := time.UnixMilli(*raw.ExpirationAtMs).UTC()
		ev.ExpiresAt = &expires
	}

	if eventType.IsPurchase() && raw.ProductID != "" {
		ev.PackageID = i.resolvePackage(ctx, ev, raw.ProductID)
	}

	result, err := i.applier.ApplyEvent(ctx, ev)
	if err != nil {
		return i.fail(span, ev, err)
	}

	outcome := Outcome{
		Status:  http.StatusOK,
		Message: "OK",
		Result:  result.Result,
		EventID: ev.ID,
	}

	switch result.Result {
	case ResultUnknownUser:
		i.logger.Warn("webhook event for unknown user",
			"user_id", ev.UserID,
			"event_id", ev.ID,
		)
		outcome.Message = "User not found"
	case ResultAlreadyApplied:
		i.logger.Info("webhook event already applied",
			"user_id", ev.UserID,
			"event_id", ev.ID,
		)
		outcome.Message = "Event already processed"
	case ResultNoChange:
		i.logger.Info("webhook event acknowledged without change",
			"user_id", ev.UserID,
			"event_id", ev.ID,
			"event_type", ev.RawType,
		)
	}

	return i.finish(span, string(result.Result), eventType, outcome)
}

// resolvePackage maps the store product to a package. A catalogue failure
// is not fatal: the purchase still applies, without a package.
func (i *Ingestor) resolvePackage(ctx context.Context, ev Event, productID string) *string {
	if i.catalog == nil {
		return nil
	}

	pkg, err := i.catalog.PackageIDForProduct(ctx, productID)
	if err != nil {
		i.logger.Warn("product lookup failed, applying without package",
			"user_id", ev.UserID,
			"event_id", ev.ID,
			"product_id", productID,
			"error", err,
		)
		return nil
	}
	return pkg
}

func (i *Ingestor) fail(span trace.Span, ev Event, err error) Outcome {
	i.logger.Error("webhook processing failed",
		"user_id", ev.UserID,
		"event_id", ev.ID,
		"event_type", ev.Type,
		"error", err,
	)
	core.SetSpanError(span, err)
	return i.finish(span, "error", ev.Type, Outcome{
		Status:  http.StatusInternalServerError,
		Message: "Server Error",
		EventID: ev.ID,
	})
}

func (i *Ingestor) finish(
	span trace.Span,
	label string,
	eventType EventType,
	o Outcome,
) Outcome {
	if eventType == "" {
		eventType = "none"
	}
	core.RecordWebhookOutcome(label, string(eventType))
	span.SetAttributes(
		attribute.String("webhook.outcome", label),
		attribute.Int("http.status_code", o.Status),
	)
	return o
}

// decodeEvent returns the raw event object and its decoded fields. A
// missing, empty, or non-object event is malformed.
func decodeEvent(payload []byte) (json.RawMessage, webhookEvent, bool) {
	var envelope struct {
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, webhookEvent{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Event, &fields); err != nil || len(fields) == 0 {
		return nil, webhookEvent{}, false
	}

	var ev webhookEvent
	if err := json.Unmarshal(envelope.Event, &ev); err != nil {
		return nil, webhookEvent{}, false
	}

	return envelope.Event, ev, true
}
