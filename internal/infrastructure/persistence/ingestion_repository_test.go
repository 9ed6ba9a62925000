package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dplus/backend/internal/domain/ingestion"
	"github.com/dplus/backend/internal/domain/order"
)

func TestGormSourceFileRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormSourceFileRepository(db.DB)
	ctx := context.Background()

	t.Run("missing path returns not found", func(t *testing.T) {
		_, err := repo.FindByPath(ctx, "data/missing.csv")
		assert.ErrorIs(t, err, order.ErrNotFound)
	})

	file := &ingestion.SourceFile{
		ID:         uuid.New(),
		Path:       "data/tiktok/orders_2024_03.csv",
		Checksum:   "abc123",
		Platform:   order.PlatformTikTok,
		SizeBytes:  2048,
		RowCount:   150,
		IngestedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, file))

	found, err := repo.FindByPath(ctx, file.Path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", found.Checksum)
	assert.Equal(t, order.PlatformTikTok, found.Platform)
	assert.Equal(t, 150, found.RowCount)

	t.Run("save on same path replaces the record", func(t *testing.T) {
		updated := *file
		updated.ID = uuid.New()
		updated.Checksum = "def456"
		updated.RowCount = 180
		require.NoError(t, repo.Save(ctx, &updated))

		found, err := repo.FindByPath(ctx, file.Path)
		require.NoError(t, err)
		assert.Equal(t, "def456", found.Checksum)
		assert.Equal(t, 180, found.RowCount)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete all empties the registry", func(t *testing.T) {
		require.NoError(t, repo.DeleteAll(ctx))
		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestGormRunRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormRunRepository(db.DB)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := &ingestion.Run{
			ID:          uuid.New(),
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			FinishedAt:  base.Add(time.Duration(i)*time.Hour + time.Minute),
			Status:      ingestion.RunStatusCompleted,
			OrdersAdded: i * 10,
			Message:     fmt.Sprintf("run %d", i),
		}
		require.NoError(t, repo.Save(ctx, run))
	}

	runs, err := repo.FindRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// newest first
	assert.Equal(t, 40, runs[0].OrdersAdded)
	assert.Equal(t, 30, runs[1].OrdersAdded)
	assert.Equal(t, ingestion.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, time.Minute, runs[0].Duration())
}
