//go:build integration

package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupMongoRepo(t *testing.T) *MongoRepository {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db, 0)
	require.NoError(t, repo.CreateIndexes(ctx))
	return repo
}

func TestMongoRepository_MutateCreatesLazily(t *testing.T) {
	repo := setupMongoRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := repo.Mutate(ctx, "s", func(c *Cart) error {
		c.Add("2", 1, 499)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Version)

	got, err := repo.Get(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(499), got.Items[0].PriceAtTime)
}

func TestMongoRepository_ConcurrentMutations(t *testing.T) {
	repo := setupMongoRepo(t)
	ctx := context.Background()

	// Seed the document so every writer contends on the version CAS.
	_, err := repo.Mutate(ctx, "s", func(*Cart) error { return nil })
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Mutate(ctx, "s", func(c *Cart) error {
				c.Add("2", 1, 499)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Count())
}

func TestMongoRepository_PurgeStale(t *testing.T) {
	repo := setupMongoRepo(t)
	ctx := context.Background()

	_, err := repo.Mutate(ctx, "s", func(c *Cart) error {
		c.Add("2", 1, 499)
		return nil
	})
	require.NoError(t, err)

	n, err := repo.PurgeStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
