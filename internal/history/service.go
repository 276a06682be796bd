package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
	"github.com/victornm/teamquiz/internal/event"
	"github.com/victornm/teamquiz/internal/performance"
)

const defaultLimit = 50

// Store persists the results of completed sessions.
type Store interface {
	// SaveResult fails with AlreadyExists when the session's result is already stored.
	SaveResult(ctx context.Context, res domain.GameResult) error
	// ListResults returns a team's results, most recent first.
	ListResults(ctx context.Context, team string, limit int) ([]domain.GameResult, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
}

// Service records the result of every completed session and reports on a team's history.
type Service struct {
	eb    *event.Bus
	store Store
}

func NewService(c Config) *Service {
	s := &Service{
		eb:    c.EventBus,
		store: c.Store,
	}

	s.eb.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
		return s.RecordResult(ctx, e.(domain.EventSessionCompleted).Result)
	})

	return s
}

// RecordResult stores a result. Recording the same session twice is a no-op.
func (s *Service) RecordResult(ctx context.Context, res domain.GameResult) error {
	err := s.store.SaveResult(ctx, res)
	if errors.Is(err, errors.CodeAlreadyExists) {
		slog.WarnContext(ctx, "history: result already recorded", "session_id", res.SessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("save result: session=%s: %w", res.SessionID, err)
	}

	return nil
}

type ListResultsRequest struct {
	TeamName string
	Limit    int
}

func (s *Service) ListResults(ctx context.Context, req ListResultsRequest) ([]domain.GameResult, error) {
	team := strings.TrimSpace(req.TeamName)
	if team == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("team name is required"))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	results, err := s.store.ListResults(ctx, team, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: team=%s: %w", team, err)
	}

	return results, nil
}

// Stats summarizes the recent sessions of a team.
func (s *Service) Stats(ctx context.Context, team string) (domain.SessionStats, error) {
	results, err := s.ListResults(ctx, ListResultsRequest{TeamName: team})
	if err != nil {
		return domain.SessionStats{}, err
	}

	return performance.ComputeSessionStats(results), nil
}
