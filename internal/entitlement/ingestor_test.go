// AngelaMos | 2026
// ingestor_test.go

package entitlement_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/recipes-api/internal/core"
	"github.com/carterperez-dev/recipes-api/internal/entitlement"
	"github.com/carterperez-dev/recipes-api/internal/premium"
	"github.com/carterperez-dev/recipes-api/internal/testutil"
	"github.com/carterperez-dev/recipes-api/internal/user"
)

const secret = "rc-webhook-secret"

var now = time.Date(2026, 5, 10, 8, 30, 0, 0, time.UTC)

type fixture struct {
	db       *sqlx.DB
	service  *entitlement.Service
	ingestor *entitlement.Ingestor
	users    user.Repository
}

func newFixture(t *testing.T, repo entitlement.Repository) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	catalog := premium.NewService(premium.NewRepository(db), nil, 0, nil)
	if repo == nil {
		repo = entitlement.NewRepository()
	}

	svc := entitlement.NewService(db, repo, catalog, nil).
		WithClock(func() time.Time { return now })

	return &fixture{
		db:       db,
		service:  svc,
		ingestor: entitlement.NewIngestor(svc, catalog, secret, nil).WithClock(func() time.Time { return now }),
		users:    user.NewRepository(db),
	}
}

func (f *fixture) user(t *testing.T, id string) *user.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) deliver(t *testing.T, event map[string]any) entitlement.Outcome {
	t.Helper()
	return f.ingestor.Handle(context.Background(), secret, body(t, event))
}

func body(t *testing.T, event map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event})
	require.NoError(t, err)
	return raw
}

func ms(t time.Time) int64 { return t.UnixMilli() }

func TestHandleRejectsBadSecret(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")

	payload := body(t, map[string]any{
		"id":          "evt-1",
		"type":        "INITIAL_PURCHASE",
		"app_user_id": userID,
	})

	for _, header := range []string{"", "wrong", secret + " ", "Bearer " + secret} {
		out := f.ingestor.Handle(context.Background(), header, payload)
		assert.Equal(t, http.StatusForbidden, out.Status, "header %q", header)
	}

	assert.Equal(t, 0, testutil.Count(t, f.db, "applied_events", ""))
	assert.False(t, f.user(t, userID).IsPremium)
}

func TestHandleEmptySecretNeverMatches(t *testing.T) {
	f := newFixture(t, nil)
	ing := entitlement.NewIngestor(f.service, nil, "", nil)

	out := ing.Handle(context.Background(), "", []byte(`{"event":{"type":"TEST"}}`))

	assert.Equal(t, http.StatusForbidden, out.Status)
}

func TestHandleMalformedPayload(t *testing.T) {
	f := newFixture(t, nil)

	payloads := []string{
		``,
		`not json`,
		`{}`,
		`{"event":null}`,
		`{"event":{}}`,
		`{"event":"INITIAL_PURCHASE"}`,
		`{"event":[1,2]}`,
		`{"event":{"type":42}}`,
		`{"event":{"type":"RENEWAL","expiration_at_ms":"soon"}}`,
	}

	for _, p := range payloads {
		out := f.ingestor.Handle(context.Background(), secret, []byte(p))
		assert.Equal(t, http.StatusBadRequest, out.Status, "payload %q", p)
	}
}

func TestHandleMissingOrUnknownUserIsAcknowledged(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		event   map[string]any
		message string
	}{
		{"missing", map[string]any{"type": "INITIAL_PURCHASE"}, "UserId missing"},
		{"blank", map[string]any{"type": "RENEWAL", "app_user_id": "  "}, "UserId missing"},
		{"anonymous", map[string]any{"type": "RENEWAL", "app_user_id": "$RCAnonymousID:8f1c"}, "User not found"},
		{"unknown uuid", map[string]any{"type": "RENEWAL", "app_user_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7"}, "User not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.deliver(t, tt.event)
			assert.Equal(t, http.StatusOK, out.Status)
			assert.Equal(t, tt.message, out.Message)
			assert.Equal(t, entitlement.ResultUnknownUser, out.Result)
		})
	}

	assert.Equal(t, 0, testutil.Count(t, f.db, "applied_events", ""))
}

func TestHandleInitialPurchaseActivates(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")
	pkgID := testutil.CreatePackage(t, f.db, "Monthly", "recipes_monthly")
	expires := now.Add(30 * 24 * time.Hour)

	out := f.deliver(t, map[string]any{
		"id":                 "evt-purchase",
		"type":               "INITIAL_PURCHASE",
		"app_user_id":        userID,
		"product_id":         "recipes_monthly",
		"event_timestamp_ms": ms(now),
		"expiration_at_ms":   ms(expires),
	})

	require.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, entitlement.ResultApplied, out.Result)

	u := f.user(t, userID)
	assert.True(t, u.IsPremium)
	assert.Equal(t, "active", u.PremiumStatus)
	require.NotNil(t, u.PremiumUntil)
	assert.Equal(t, ms(expires), ms(*u.PremiumUntil))
	require.NotNil(t, u.PremiumPackageID)
	assert.Equal(t, pkgID, *u.PremiumPackageID)

	assert.Equal(t, 1, testutil.Count(t, f.db, "applied_events",
		"provider_event_id = ? AND state_changed = ?", "evt-purchase", true))
}

func TestHandleUnknownProductActivatesWithoutPackage(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")

	out := f.deliver(t, map[string]any{
		"id":               "evt-1",
		"type":             "NON_RENEWING_PURCHASE",
		"app_user_id":      userID,
		"product_id":       "not_in_catalogue",
		"expiration_at_ms": ms(now.Add(time.Hour)),
	})

	require.Equal(t, http.StatusOK, out.Status)
	u := f.user(t, userID)
	assert.True(t, u.IsPremium)
	assert.Nil(t, u.PremiumPackageID)
}

func TestHandleReplayAppliesOnce(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")
	event := map[string]any{
		"id":               "evt-replayed",
		"type":             "RENEWAL",
		"app_user_id":      userID,
		"expiration_at_ms": ms(now.Add(48 * time.Hour)),
	}

	results := map[entitlement.Result]int{}
	for range 5 {
		out := f.deliver(t, event)
		require.Equal(t, http.StatusOK, out.Status)
		results[out.Result]++
	}

	assert.Equal(t, 1, results[entitlement.ResultApplied])
	assert.Equal(t, 4, results[entitlement.ResultAlreadyApplied])
	assert.Equal(t, 1, testutil.Count(t, f.db, "applied_events", ""))

	u := f.user(t, userID)
	assert.True(t, u.IsPremium)
	assert.Equal(t, ms(now.Add(48*time.Hour)), ms(*u.PremiumUntil))
}

func TestHandleEventWithoutIDUsesPayloadDigest(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")
	event := map[string]any{
		"type":             "INITIAL_PURCHASE",
		"app_user_id":      userID,
		"expiration_at_ms": ms(now.Add(time.Hour)),
	}

	first := f.deliver(t, event)
	second := f.deliver(t, event)

	assert.Equal(t, entitlement.ResultApplied, first.Result)
	assert.Equal(t, entitlement.ResultAlreadyApplied, second.Result)
	assert.Contains(t, first.EventID, "sha256:")
	assert.Equal(t, first.EventID, second.EventID)
}

func TestHandleOutOfOrderRenewals(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")
	t1 := now.Add(30 * 24 * time.Hour)
	t2 := now.Add(60 * 24 * time.Hour)

	later := f.deliver(t, map[string]any{
		"id":                 "evt-t2",
		"type":               "RENEWAL",
		"app_user_id":        userID,
		"event_timestamp_ms": ms(now.Add(time.Hour)),
		"expiration_at_ms":   ms(t2),
	})
	earlier := f.deliver(t, map[string]any{
		"id":                 "evt-t1",
		"type":               "INITIAL_PURCHASE",
		"app_user_id":        userID,
		"event_timestamp_ms": ms(now),
		"expiration_at_ms":   ms(t1),
	})

	assert.Equal(t, entitlement.ResultApplied, later.Result)
	assert.Equal(t, entitlement.ResultNoChange, earlier.Result)

	u := f.user(t, userID)
	require.NotNil(t, u.PremiumUntil)
	assert.Equal(t, ms(t2), ms(*u.PremiumUntil))
	assert.Equal(t, 2, testutil.Count(t, f.db, "applied_events", ""))
}

func TestHandleCancellationThenExpiration(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")

	f.deliver(t, map[string]any{
		"id":                 "evt-buy",
		"type":               "INITIAL_PURCHASE",
		"app_user_id":        userID,
		"event_timestamp_ms": ms(now),
		"expiration_at_ms":   ms(now.Add(72 * time.Hour)),
	})

	cancel := f.deliver(t, map[string]any{
		"id":                 "evt-cancel",
		"type":               "CANCELLATION",
		"app_user_id":        userID,
		"event_timestamp_ms": ms(now.Add(time.Hour)),
	})
	assert.Equal(t, entitlement.ResultNoChange, cancel.Result)
	assert.True(t, f.user(t, userID).IsPremium, "cancellation keeps access")

	expire := f.deliver(t, map[string]any{
		"id":                 "evt-expire",
		"type":               "EXPIRATION",
		"app_user_id":        userID,
		"event_timestamp_ms": ms(now.Add(72 * time.Hour)),
	})
	assert.Equal(t, entitlement.ResultApplied, expire.Result)

	u := f.user(t, userID)
	assert.False(t, u.IsPremium)
	assert.Equal(t, "expired", u.PremiumStatus)
	assert.Nil(t, u.PremiumUntil)
	assert.Nil(t, u.PremiumPackageID)

	late := f.deliver(t, map[string]any{
		"id":                 "evt-cancel-late",
		"type":               "CANCELLATION",
		"app_user_id":        userID,
		"event_timestamp_ms": ms(now.Add(2 * time.Hour)),
	})
	assert.Equal(t, http.StatusOK, late.Status)
	assert.False(t, f.user(t, userID).IsPremium)
}

func TestHandleTestAndUnknownTypesAcknowledged(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")

	for i, typ := range []string{"TEST", "BILLING_ISSUE", ""} {
		event := map[string]any{"id": "evt-" + string(rune('a'+i)), "app_user_id": userID}
		if typ != "" {
			event["type"] = typ
		}
		out := f.deliver(t, event)
		assert.Equal(t, http.StatusOK, out.Status)
		assert.Equal(t, entitlement.ResultNoChange, out.Result)
	}

	u := f.user(t, userID)
	assert.False(t, u.IsPremium)
	assert.Equal(t, "free", u.PremiumStatus)
	assert.Equal(t, 1, testutil.Count(t, f.db, "applied_events", "event_type = ?", "BILLING_ISSUE"))
}

func TestHandleConcurrentDuplicateDeliveries(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")
	payload := body(t, map[string]any{
		"id":               "evt-dup",
		"type":             "INITIAL_PURCHASE",
		"app_user_id":      userID,
		"expiration_at_ms": ms(now.Add(time.Hour)),
	})

	const workers = 8
	results := make([]entitlement.Outcome, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.ingestor.Handle(context.Background(), secret, payload)
		}()
	}
	wg.Wait()

	applied := 0
	for _, out := range results {
		require.Equal(t, http.StatusOK, out.Status)
		if out.Result == entitlement.ResultApplied {
			applied++
		}
	}

	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, testutil.Count(t, f.db, "applied_events", ""))
}

type failingRepository struct {
	entitlement.Repository
}

func (failingRepository) SaveState(
	context.Context,
	core.DBTX,
	string,
	entitlement.State,
) error {
	return errors.New("disk full")
}

func TestHandleStoreFailureRollsBack(t *testing.T) {
	f := newFixture(t, failingRepository{Repository: entitlement.NewRepository()})
	userID := testutil.CreateUser(t, f.db, "")

	out := f.deliver(t, map[string]any{
		"id":               "evt-fail",
		"type":             "INITIAL_PURCHASE",
		"app_user_id":      userID,
		"expiration_at_ms": ms(now.Add(time.Hour)),
	})

	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, 0, testutil.Count(t, f.db, "applied_events", ""),
		"guard row must roll back with the failed entitlement write")

	u := f.user(t, userID)
	assert.False(t, u.IsPremium)
	assert.Equal(t, int64(0), u.EntitlementVersion)
}

func TestHandleCanceledContextFailsClosed(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.ingestor.Handle(ctx, secret, body(t, map[string]any{
		"id":          "evt-timeout",
		"type":        "RENEWAL",
		"app_user_id": userID,
	}))

	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, 0, testutil.Count(t, f.db, "applied_events", ""))
}

func TestHandleRenewalsWithoutTimestampsKeepLaterExpiry(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")
	t1 := now.Add(30 * 24 * time.Hour)
	t2 := now.Add(60 * 24 * time.Hour)

	clock := now
	f.ingestor.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	later := f.deliver(t, map[string]any{
		"id":               "evt-t2",
		"type":             "RENEWAL",
		"app_user_id":      userID,
		"expiration_at_ms": ms(t2),
	})
	earlier := f.deliver(t, map[string]any{
		"id":               "evt-t1",
		"type":             "RENEWAL",
		"app_user_id":      userID,
		"expiration_at_ms": ms(t1),
	})

	assert.Equal(t, entitlement.ResultApplied, later.Result)
	assert.Equal(t, entitlement.ResultNoChange, earlier.Result)

	u := f.user(t, userID)
	assert.True(t, u.IsPremium)
	require.NotNil(t, u.PremiumUntil)
	assert.Equal(t, ms(t2), ms(*u.PremiumUntil))

	extended := f.deliver(t, map[string]any{
		"id":               "evt-t3",
		"type":             "RENEWAL",
		"app_user_id":      userID,
		"expiration_at_ms": ms(t2.Add(24 * time.Hour)),
	})
	assert.Equal(t, entitlement.ResultApplied, extended.Result)
	assert.Equal(t, ms(t2.Add(24*time.Hour)), ms(*f.user(t, userID).PremiumUntil))
}

type brokenCatalog struct{}

func (brokenCatalog) PackageIDForProduct(context.Context, string) (*string, error) {
	return nil, errors.New("catalogue unavailable")
}

func (brokenCatalog) HasPackage(context.Context, string) (bool, error) {
	return false, errors.New("catalogue unavailable")
}

func TestHandleCatalogueFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	userID := testutil.CreateUser(t, f.db, "")
	ing := entitlement.NewIngestor(f.service, brokenCatalog{}, secret, nil).
		WithClock(func() time.Time { return now })

	event := map[string]any{
		"id":               "evt-buy",
		"type":             "INITIAL_PURCHASE",
		"app_user_id":      userID,
		"product_id":       "recipes_monthly",
		"expiration_at_ms": ms(now.Add(time.Hour)),
	}

	first := ing.Handle(context.Background(), secret, body(t, event))
	require.Equal(t, http.StatusOK, first.Status)
	assert.Equal(t, entitlement.ResultApplied, first.Result)

	replay := ing.Handle(context.Background(), secret, body(t, event))
	require.Equal(t, http.StatusOK, replay.Status)
	assert.Equal(t, entitlement.ResultAlreadyApplied, replay.Result)

	event["app_user_id"] = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	event["id"] = "evt-stranger"
	stranger := ing.Handle(context.Background(), secret, body(t, event))
	assert.Equal(t, http.StatusOK, stranger.Status)
	assert.Equal(t, entitlement.ResultUnknownUser, stranger.Result)

	u := f.user(t, userID)
	assert.True(t, u.IsPremium)
	assert.Nil(t, u.PremiumPackageID)
}
