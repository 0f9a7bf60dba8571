//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonathan/plan-auditor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) *Cache {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := NewRedis(addr, "", 15)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute, nil)
}

func TestCache_RoundTrip(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	key := AnalysisKey("integration")
	defer func() { _ = c.Delete(ctx, key) }()

	var dest map[string]int
	require.ErrorIs(t, c.Get(ctx, key, &dest), ErrCacheMiss)

	require.NoError(t, c.Set(ctx, key, map[string]int{"groups": 3}, 0))
	require.NoError(t, c.Get(ctx, key, &dest))
	assert.Equal(t, 3, dest["groups"])
}

func TestCache_Ratings(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	defer func() { _ = c.Delete(ctx, ratingsKey) }()

	set := &types.RatingSet{TotalCount: 4, Courses: []types.CourseRating{{CourseID: "1", Rating: 4.5, CommentCount: 4}}}
	require.NoError(t, c.SetRatings(ctx, set))

	got, err := c.Ratings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalCount)
	assert.Equal(t, "1", got.Courses[0].CourseID)
}
