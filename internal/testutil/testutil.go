// AngelaMos | 2026
// testutil.go

package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/recipes-api/internal/config"
	"github.com/carterperez-dev/recipes-api/internal/core"
)

var seq atomic.Int64

// NewDB returns a migrated in-memory sqlite database closed at test end.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	database, err := core.NewSQLiteDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, core.Migrate(ctx, database.DB))
	return database.DB
}

// PostgresURLEnv names the DSN that enables tests against a real Postgres.
const PostgresURLEnv = "TEST_DATABASE_URL"

// NewPostgresDB returns a migrated Postgres pool with several connections,
// or skips the test when TEST_DATABASE_URL is unset. Rows are not cleaned
// up; tests must scope assertions to the ids they create.
func NewPostgresDB(t testing.TB) *sqlx.DB {
	t.Helper()

	url := os.Getenv(PostgresURLEnv)
	if url == "" {
		t.Skip(PostgresURLEnv + " not set")
	}

	ctx := context.Background()
	database, err := core.NewDatabase(ctx, config.DatabaseConfig{
		Driver:       core.DriverPostgres,
		URL:          url,
		MaxOpenConns: 16,
		MaxIdleConns: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, core.Migrate(ctx, database.DB))
	return database.DB
}

func CreateUser(t testing.TB, db *sqlx.DB, role string) string {
	t.Helper()

	if role == "" {
		role = "user"
	}
	id := uuid.New().String()
	n := seq.Add(1)
	now := time.Now().UTC()

	_, err := db.Exec(db.Rebind(`
		INSERT INTO users (id, email, name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id, fmt.Sprintf("user%d@example.com", n), fmt.Sprintf("User %d", n),
		role, now, now)
	require.NoError(t, err)
	return id
}

func CreatePost(t testing.TB, db *sqlx.DB, ownerID string) string {
	t.Helper()

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := db.Exec(db.Rebind(`
		INSERT INTO posts (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`),
		id, ownerID, "Weeknight dal", now, now)
	require.NoError(t, err)
	return id
}

func CreateRecipe(t testing.TB, db *sqlx.DB) string {
	t.Helper()

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := db.Exec(db.Rebind(`
		INSERT INTO recipes (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`),
		id, "Shakshuka", now, now)
	require.NoError(t, err)
	return id
}

func CreatePackage(t testing.TB, db *sqlx.DB, name, productID string) string {
	t.Helper()

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := db.Exec(db.Rebind(`
		INSERT INTO premium_packages (id, name, store_product_id,
		                              price_monthly, price_yearly, trial_days,
		                              description, is_active, created_at,
		                              updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, name, productID, 4.99, 49.99, 7, name+" plan", true, now, now)
	require.NoError(t, err)
	return id
}

// Counter reads a counter column straight from the store.
func Counter(t testing.TB, db *sqlx.DB, table, column, id string) int {
	t.Helper()

	var n int
	query := db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", column, table))
	require.NoError(t, db.Get(&n, query, id))
	return n
}

// Count returns the number of rows in table matching where.
func Count(t testing.TB, db *sqlx.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var n int
	require.NoError(t, db.Get(&n, db.Rebind(query), args...))
	return n
}
