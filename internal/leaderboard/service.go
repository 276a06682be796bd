package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
	"github.com/victornm/teamquiz/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultLimit    = 10
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service keeps the best score of every team per difficulty.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
		return s.RecordResult(ctx, e.(domain.EventSessionCompleted).Result)
	})

	return s
}

type GetLeaderboardRequest struct {
	Difficulty domain.Difficulty
	// Limit caps the number of entries, defaults to 10.
	Limit int
}

// GetLeaderboard returns the best teams of a difficulty. A difficulty nobody played yet has no entries.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	if !req.Difficulty.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown difficulty %q", req.Difficulty))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(req.Difficulty), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			TeamName: z.Member.(string),
			Score:    z.Score,
		})
	}

	return &domain.Leaderboard{
		Difficulty: req.Difficulty,
		Entries:    entries,
	}, nil
}

// RecordResult keeps the result's score when it beats the team's best for that difficulty.
func (s *Service) RecordResult(ctx context.Context, res domain.GameResult) error {
	if err := s.redis.ZAddArgs(ctx, s.leaderboardKey(res.Difficulty), redis.ZAddArgs{
		GT: true,
		Members: []redis.Z{{
			Score:  res.Score.InexactFloat64(),
			Member: res.TeamName,
		}},
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, res)
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per difficulty and interval,
// shared by every instance through a Redis key.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, res domain.GameResult) error {
	ok, err := s.redis.SetNX(ctx, s.publishTimeKey(res.Difficulty), res.CompletedAt.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{Difficulty: res.Difficulty})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: difficulty=%s: %w", res.Difficulty, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) leaderboardKey(d domain.Difficulty) string {
	return fmt.Sprintf("%s:leaderboard:%s", s.prefix, d)
}

func (s *Service) publishTimeKey(d domain.Difficulty) string {
	return fmt.Sprintf("%s:leaderboard:%s:time", s.prefix, d)
}
