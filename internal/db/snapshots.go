package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/plan-auditor/internal/fetch"
	"github.com/jonathan/plan-auditor/internal/types"
)

// GetFreshSnapshot returns the stored plan page for key if it is younger than ttl
func (db *DB) GetFreshSnapshot(ctx context.Context, key string, ttl time.Duration) (*fetch.Snapshot, error) {
	var snap fetch.Snapshot
	err := db.pool.QueryRow(ctx,
		`SELECT key, html, status_code, fetched_at FROM plan_snapshots
		 WHERE key = $1 AND fetched_at > $2`,
		key, time.Now().Add(-ttl),
	).Scan(&snap.Key, &snap.HTML, &snap.StatusCode, &snap.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot stores or replaces the plan page for a key
func (db *DB) SaveSnapshot(ctx context.Context, snap *fetch.Snapshot) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO plan_snapshots (key, html, status_code, fetched_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET html = $2, status_code = $3, fetched_at = $4`,
		snap.Key, snap.HTML, snap.StatusCode, snap.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save plan snapshot: %w", err)
	}
	return nil
}

// SaveRatings appends a rating snapshot
func (db *DB) SaveRatings(ctx context.Context, set *types.RatingSet) error {
	content, err := json.Marshal(set.Courses)
	if err != nil {
		return fmt.Errorf("failed to marshal ratings: %w", err)
	}
	updatedAt := set.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO rating_snapshots (total_count, content, updated_at) VALUES ($1, $2, $3)`,
		set.TotalCount, content, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save ratings: %w", err)
	}
	return nil
}

// LoadRatings returns the newest rating snapshot, or nil if none was saved
func (db *DB) LoadRatings(ctx context.Context) (*types.RatingSet, error) {
	var (
		set     types.RatingSet
		content []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT total_count, content, updated_at FROM rating_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&set.TotalCount, &content, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	if err := json.Unmarshal(content, &set.Courses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ratings: %w", err)
	}
	return &set, nil
}

var _ fetch.SnapshotStore = (*DB)(nil)
