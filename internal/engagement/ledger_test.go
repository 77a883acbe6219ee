// AngelaMos | 2026
// ledger_test.go

package engagement_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/recipes-api/internal/engagement"
	"github.com/carterperez-dev/recipes-api/internal/testutil"
)

func TestLikeLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	ledger := engagement.NewLedger(db, engagement.Likes)

	u1 := testutil.CreateUser(t, db, "")
	p1 := testutil.CreatePost(t, db, u1)

	added, count, err := ledger.Add(ctx, u1, p1)
	require.NoError(t, err)
	assert.Equal(t, engagement.Added, added)
	assert.Equal(t, 1, count)

	added, count, err = ledger.Add(ctx, u1, p1)
	require.NoError(t, err)
	assert.Equal(t, engagement.AlreadyExists, added)
	assert.Equal(t, 1, count)

	removed, count, err := ledger.Remove(ctx, u1, p1)
	require.NoError(t, err)
	assert.Equal(t, engagement.Removed, removed)
	assert.Equal(t, 0, count)

	removed, count, err = ledger.Remove(ctx, u1, p1)
	require.NoError(t, err)
	assert.Equal(t, engagement.NotFound, removed)
	assert.Equal(t, 0, count)

	assert.Equal(t, 0, testutil.Counter(t, db, "posts", "likes_count", p1))
	assert.Equal(t, 0, testutil.Count(t, db, "post_likes", ""))
}

func TestSaveCountsAcrossUsers(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	ledger := engagement.NewLedger(db, engagement.Saves)
	recipe := testutil.CreateRecipe(t, db)

	users := make([]string, 3)
	for i := range users {
		users[i] = testutil.CreateUser(t, db, "")
	}

	for i, u := range users {
		res, count, err := ledger.Add(ctx, u, recipe)
		require.NoError(t, err)
		assert.Equal(t, engagement.Added, res)
		assert.Equal(t, i+1, count)
	}

	res, count, err := ledger.Remove(ctx, users[1], recipe)
	require.NoError(t, err)
	assert.Equal(t, engagement.Removed, res)
	assert.Equal(t, 2, count)

	assert.Equal(t, 2, testutil.Counter(t, db, "recipes", "saves_count", recipe))
	assert.Equal(t, 2, testutil.Count(t, db, "saved_recipes", "recipe_id = ?", recipe))
}

// stores runs fn against in-memory sqlite and, when TEST_DATABASE_URL is
// set, Postgres. The sqlite handle has one connection, so its transactions
// run one after another and the unique key never actually races there;
// only the Postgres run exercises lock arbitration between connections.
func stores(t *testing.T, fn func(t *testing.T, db *sqlx.DB)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, testutil.NewDB(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, testutil.NewPostgresDB(t)) })
}

func TestConcurrentAddSamePair(t *testing.T) {
	stores(t, func(t *testing.T, db *sqlx.DB) {
		ledger := engagement.NewLedger(db, engagement.Likes)
		u1 := testutil.CreateUser(t, db, "")
		p1 := testutil.CreatePost(t, db, u1)

		const workers = 10
		results := make([]engagement.AddResult, workers)
		counts := make([]int, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], counts[i], errs[i] = ledger.Add(context.Background(), u1, p1)
			}()
		}
		wg.Wait()

		added := 0
		for i := range workers {
			require.NoError(t, errs[i])
			if results[i] == engagement.Added {
				added++
			}
			assert.Equal(t, 1, counts[i], "worker %d (%s)", i, results[i])
		}

		assert.Equal(t, 1, added)
		assert.Equal(t, 1, testutil.Count(t, db, "post_likes", "post_id = ?", p1))
		assert.Equal(t, 1, testutil.Counter(t, db, "posts", "likes_count", p1))
	})
}

func TestConcurrentToggleKeepsCounterConsistent(t *testing.T) {
	stores(t, func(t *testing.T, db *sqlx.DB) {
		ledger := engagement.NewLedger(db, engagement.Likes)
		owner := testutil.CreateUser(t, db, "")
		post := testutil.CreatePost(t, db, owner)

		users := make([]string, 6)
		for i := range users {
			users[i] = testutil.CreateUser(t, db, "")
		}

		var wg sync.WaitGroup
		for _, u := range users {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx := context.Background()
				for range 3 {
					_, _, _ = ledger.Add(ctx, u, post)
					_, _, _ = ledger.Remove(ctx, u, post)
				}
				_, _, _ = ledger.Add(ctx, u, post)
			}()
		}
		wg.Wait()

		rows := testutil.Count(t, db, "post_likes", "post_id = ?", post)
		assert.Equal(t, len(users), rows)
		assert.Equal(t, rows, testutil.Counter(t, db, "posts", "likes_count", post))
	})
}

func TestUnknownTargetAndActor(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	likes := engagement.NewLedger(db, engagement.Likes)
	u1 := testutil.CreateUser(t, db, "")
	p1 := testutil.CreatePost(t, db, u1)

	_, _, err := likes.Add(ctx, u1, uuid.New().String())
	assert.ErrorIs(t, err, engagement.ErrTargetNotFound)

	_, _, err = likes.Add(ctx, u1, "not-a-post-id")
	assert.ErrorIs(t, err, engagement.ErrTargetNotFound)

	_, _, err = likes.Remove(ctx, u1, uuid.New().String())
	assert.ErrorIs(t, err, engagement.ErrTargetNotFound)

	_, _, err = likes.Add(ctx, uuid.New().String(), p1)
	assert.ErrorIs(t, err, engagement.ErrActorNotFound)

	assert.Equal(t, 0, testutil.Counter(t, db, "posts", "likes_count", p1))
}

func TestRemoveNeverGoesNegative(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	saves := engagement.NewLedger(db, engagement.Saves)
	u1 := testutil.CreateUser(t, db, "")
	recipe := testutil.CreateRecipe(t, db)

	_, _, err := saves.Add(ctx, u1, recipe)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE recipes SET saves_count = 0 WHERE id = ?`, recipe)
	require.NoError(t, err)

	res, count, err := saves.Remove(ctx, u1, recipe)
	require.NoError(t, err)
	assert.Equal(t, engagement.Removed, res)
	assert.Equal(t, 0, count)
}
