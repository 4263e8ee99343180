package reactions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipstream/backend/internal/models"
)

// postgresDB spins up a throwaway postgres for tests that exercise real
// unique-constraint races. sqlite's single-writer model can't reproduce
// those.
func postgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("clipstream_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Video{}, &models.Comment{}, &models.Tweet{}, &models.Reaction{},
	))
	return db
}

func TestConcurrentLikesLeaveExactlyOneRow(t *testing.T) {
	db := postgresDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	video := &models.Video{Title: "race me", OwnerID: 1, Published: true}
	require.NoError(t, db.Create(video).Error)
	target := Target{Type: TargetVideo, ID: video.ID}
	const subject = 42

	// Two concurrent reaction=true requests from the same subject on an
	// empty target. The unique index lets one insert win; the loser must
	// adopt the winner's state rather than surface a duplicate error.
	const racers = 2
	results := make([]Result, racers)
	errs := make([]error, racers)
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i], errs[i] = engine.Apply(ctx, subject, target, StateLiked)
		}(i)
	}
	start.Done()
	done.Wait()

	for i := 0; i < racers; i++ {
		require.NoError(t, errs[i], "racer %d", i)
		assert.Equal(t, StateLiked, results[i].CurrentState, "racer %d", i)
	}

	var rows int64
	require.NoError(t, db.Model(&models.Reaction{}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", subject, target.Type, target.ID).
		Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	liked, disliked, err := engine.Counts(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(1), liked)
	assert.Equal(t, int64(0), disliked)
}

func TestAtMostOneRowUnderConcurrentToggleStorm(t *testing.T) {
	db := postgresDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	video := &models.Video{Title: "storm", OwnerID: 1, Published: true}
	require.NoError(t, db.Create(video).Error)
	target := Target{Type: TargetVideo, ID: video.ID}

	// Many subjects, several racing toggles each, mixed like/dislike.
	const subjects = 8
	const togglesPerSubject = 5
	var wg sync.WaitGroup
	for s := 1; s <= subjects; s++ {
		for i := 0; i < togglesPerSubject; i++ {
			wg.Add(1)
			go func(subject, i int) {
				defer wg.Done()
				requested := StateLiked
				if i%2 == 1 {
					requested = StateDisliked
				}
				// Conflicts between a subject's own racers can exhaust
				// the single internal retry; that surfaces as a
				// retry-safe error, never as a duplicate row.
				_, _ = engine.Apply(ctx, subject, target, requested)
			}(s, i)
		}
	}
	wg.Wait()

	// The invariant: at most one reaction row per (subject, target), and
	// counts always equal the surviving rows.
	var rows []models.Reaction
	require.NoError(t, db.Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Find(&rows).Error)

	seen := map[int]bool{}
	for _, r := range rows {
		assert.False(t, seen[r.UserID], "duplicate row for subject %d", r.UserID)
		seen[r.UserID] = true
	}

	liked, disliked, err := engine.Counts(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(len(rows)), liked+disliked)
}
