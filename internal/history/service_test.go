package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
	"github.com/victornm/teamquiz/internal/event"
	"github.com/victornm/teamquiz/internal/history"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestService_RecordResult(t *testing.T) {
	ctx := context.Background()
	s := history.NewService(history.Config{EventBus: event.NewBus(), Store: history.NewMemory()})

	res := result("s1", "Owls", 2, 66.7, t0, 3*time.Minute)
	require.NoError(t, s.RecordResult(ctx, res))
	require.NoError(t, s.RecordResult(ctx, res), "recording twice is a no-op")

	got, err := s.ListResults(ctx, history.ListResultsRequest{TeamName: "Owls"})
	require.NoError(t, err)
	assert.Equal(t, []domain.GameResult{res}, got)
}

func TestService_SubscribesToSessionCompleted(t *testing.T) {
	ctx := context.Background()
	eb := event.NewBus()
	s := history.NewService(history.Config{EventBus: eb, Store: history.NewMemory()})

	eb.Publish(ctx, domain.EventSessionCompleted{Result: result("s1", "Owls", 1, 50, t0, time.Minute)})
	eb.Stop()

	got, err := s.ListResults(ctx, history.ListResultsRequest{TeamName: "Owls"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
}

func TestService_ListResults(t *testing.T) {
	ctx := context.Background()
	s := history.NewService(history.Config{EventBus: event.NewBus(), Store: history.NewMemory()})

	require.NoError(t, s.RecordResult(ctx, result("s1", "Owls", 1, 50, t0, time.Minute)))
	require.NoError(t, s.RecordResult(ctx, result("s2", "Foxes", 1, 50, t0, time.Minute)))
	require.NoError(t, s.RecordResult(ctx, result("s3", "Owls", 1, 50, t0.Add(time.Hour), time.Minute)))

	got, err := s.ListResults(ctx, history.ListResultsRequest{TeamName: " Owls "})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s3", got[0].SessionID, "most recent first")
	assert.Equal(t, "s1", got[1].SessionID)

	got, err = s.ListResults(ctx, history.ListResultsRequest{TeamName: "Owls", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = s.ListResults(ctx, history.ListResultsRequest{TeamName: ""})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()
	s := history.NewService(history.Config{EventBus: event.NewBus(), Store: history.NewMemory()})

	stats, err := s.Stats(ctx, "Owls")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSessions)
	assert.True(t, stats.AverageScore.IsZero())

	require.NoError(t, s.RecordResult(ctx, result("s1", "Owls", 2, 40, t0, 2*time.Minute)))
	require.NoError(t, s.RecordResult(ctx, result("s2", "Owls", 4, 80, t0.Add(time.Hour), 3*time.Minute)))

	stats, err = s.Stats(ctx, "Owls")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.True(t, decimal.NewFromInt(3).Equal(stats.AverageScore), stats.AverageScore.String())
	assert.True(t, decimal.NewFromInt(4).Equal(stats.BestScore))
	assert.InDelta(t, 60, stats.AverageAccuracy, 0.001)
	assert.Equal(t, 5*time.Minute, stats.TotalTimePlayed)
}

func result(id, team string, score int64, pct float64, start time.Time, d time.Duration) domain.GameResult {
	return domain.GameResult{
		SessionID:         id,
		TeamName:          team,
		Difficulty:        domain.DifficultyEasy,
		Score:             decimal.NewFromInt(score),
		TotalRounds:       5,
		CorrectPercentage: pct,
		StartedAt:         start,
		CompletedAt:       start.Add(d),
		Duration:          d,
	}
}
