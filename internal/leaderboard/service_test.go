package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
	"github.com/victornm/teamquiz/internal/event"
	"github.com/victornm/teamquiz/internal/leaderboard"
)

func TestService_RecordResult(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	for _, res := range []domain.GameResult{
		result("Owls", domain.DifficultyEasy, 3),
		result("Foxes", domain.DifficultyEasy, 5),
		result("Owls", domain.DifficultyEasy, 1),
		result("Owls", domain.DifficultyHard, 2),
	} {
		require.NoError(t, s.RecordResult(ctx, res))
	}

	resp, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		Difficulty: domain.DifficultyEasy,
	})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		Difficulty: domain.DifficultyEasy,
		Entries: []domain.LeaderboardEntry{
			{TeamName: "Foxes", Score: 5},
			{TeamName: "Owls", Score: 3},
		},
	}
	require.Equal(t, want, resp, "a worse result never replaces the best one")
}

func TestService_GetLeaderboard(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	for i, team := range []string{"a", "b", "c"} {
		require.NoError(t, s.RecordResult(ctx, result(team, domain.DifficultyMedium, float64(i))))
	}

	resp, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyMedium, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{TeamName: "c", Score: 2}, {TeamName: "b", Score: 1}}, resp.Entries)

	resp, err = s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyHard})
	require.NoError(t, err)
	require.Empty(t, resp.Entries, "nobody played hard yet")

	_, err = s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: "legendary"})
	require.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestServer_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventSessionCompleted
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct event leaderboard.updated after receiving session.completed": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventSessionCompleted{
						{Result: result("Owls", domain.DifficultyEasy, 1.5)},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					Difficulty: domain.DifficultyEasy,
					Entries: []domain.LeaderboardEntry{
						{TeamName: "Owls", Score: 1.5},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should publish 2 events leaderboard.updated for 2 different difficulties": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventSessionCompleted{
						{Result: result("Owls", domain.DifficultyEasy, 1)},
						{Result: result("Owls", domain.DifficultyHard, 2)},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated event")
			},
		},

		"should publish 1 event leaderboard.updated for the same difficulty within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventSessionCompleted{
						{Result: result("Owls", domain.DifficultyEasy, 1)},
						{Result: result("Foxes", domain.DifficultyEasy, 2)},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.RecordResult(context.Background(), e.Result)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToSessionCompleted(t *testing.T) {
	eb := event.NewBus()
	s := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), domain.EventSessionCompleted{Result: result("Owls", domain.DifficultyHard, 4)})
	eb.Stop()

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyHard})
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{TeamName: "Owls", Score: 4}}, resp.Entries)
}

func result(team string, d domain.Difficulty, score float64) domain.GameResult {
	return domain.GameResult{
		SessionID:   team + string(d),
		TeamName:    team,
		Difficulty:  d,
		Score:       decimal.NewFromFloat(score),
		CompletedAt: time.Now(),
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
