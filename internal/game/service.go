package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
	"github.com/victornm/teamquiz/internal/event"
	"github.com/victornm/teamquiz/internal/question"
	"github.com/victornm/teamquiz/internal/timer"
)

const (
	defaultRetention     = 30 * time.Minute
	defaultEvictInterval = time.Minute
)

type Config struct {
	Questions        question.Source
	EventBus         *event.Bus
	PointsPerCorrect decimal.NullDecimal
	Validator        Validator

	// Retention is how long finished sessions stay available for their results.
	Retention     time.Duration
	TickInterval  time.Duration
	NewTickerFunc func(d time.Duration) timer.Ticker
	Now           func() time.Time
}

// Service owns the live sessions of this process.
type Service struct {
	c Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewService(c Config) *Service {
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		c:        c,
		sessions: make(map[string]*Session),
	}
}

// CreateSessionRequest represents a request to create a new game session.
type CreateSessionRequest struct {
	Settings domain.Settings
}

// CreateSession validates the settings and loads every question before the session exists,
// so a shortage of questions is reported instead of starting a shorter game.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	st := req.Settings
	st.TeamName = strings.TrimSpace(st.TeamName)

	if violations := st.Validate(); len(violations) > 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid settings: %s", strings.Join(violations, "; ")))
	}

	feed, err := question.Load(ctx, s.c.Questions, question.FetchRequest{
		Source:     st.Source,
		Difficulty: st.Difficulty,
		Count:      st.RoundCount,
	})
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	ss := NewSession(SessionConfig{
		SessionID:        id.String(),
		Settings:         st,
		Feed:             feed,
		PointsPerCorrect: s.c.PointsPerCorrect,
		Validator:        s.c.Validator,
		EventBus:         s.c.EventBus,
		TickInterval:     s.c.TickInterval,
		NewTickerFunc:    s.c.NewTickerFunc,
		Now:              s.c.Now,
	})

	s.mu.Lock()
	s.sessions[ss.ID()] = ss
	s.mu.Unlock()

	slog.InfoContext(ctx, "game: session created",
		"session_id", ss.ID(),
		"team", st.TeamName,
		"difficulty", st.Difficulty,
		"source", st.Source,
	)

	return ss, nil
}

func (s *Service) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss, ok := s.sessions[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", id))
	}

	return ss, nil
}

// AbandonSession abandons a live session and forgets it.
func (s *Service) AbandonSession(ctx context.Context, id string) error {
	ss, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}

	if err := ss.Abandon(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	return nil
}

// EvictFinished forgets sessions that finished before the retention window and returns how many were removed.
func (s *Service) EvictFinished() int {
	cutoff := s.c.Now().Add(-s.c.Retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for id, ss := range s.sessions {
		snap := ss.Snapshot()
		if snap.Session.Status != domain.StatusCompleted || snap.Session.CompletedAt == nil {
			continue
		}
		if snap.Session.CompletedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}

	return n
}

// Run evicts finished sessions periodically until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(defaultEvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictFinished(); n > 0 {
				slog.InfoContext(ctx, fmt.Sprintf("game: evicted %d finished sessions", n))
			}
		}
	}
}

// Close abandons every live session so that no timer outlives the service.
func (s *Service) Close(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, ss := range sessions {
		if err := ss.Abandon(ctx); err != nil && !errors.Is(err, errors.CodeFailedPrecondition) {
			slog.ErrorContext(ctx, "game: abandon session failed", "session_id", ss.ID(), "error", err)
		}
	}
}
