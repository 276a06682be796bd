package question

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
)

type FetchRequest struct {
	Source     domain.QuestionSource
	Difficulty domain.Difficulty
	Count      int
}

// Source supplies questions. It may return fewer questions than requested, never more.
type Source interface {
	Fetch(ctx context.Context, req FetchRequest) ([]domain.Question, error)
}

// Writer accepts new questions into a bank.
type Writer interface {
	AddQuestion(ctx context.Context, q *domain.Question) error
}

// Router dispatches a fetch to the source registered for the requested policy.
type Router struct {
	sources map[domain.QuestionSource]Source
}

func NewRouter(app, user Source) *Router {
	return &Router{
		sources: map[domain.QuestionSource]Source{
			domain.SourceApp:  app,
			domain.SourceUser: user,
		},
	}
}

func (r *Router) Fetch(ctx context.Context, req FetchRequest) ([]domain.Question, error) {
	src, ok := r.sources[req.Source]
	if !ok || src == nil {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown question source %q", req.Source))
	}

	// User submitted questions are not classified by difficulty.
	if req.Source == domain.SourceUser {
		req.Difficulty = ""
	}

	qs, err := src.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s questions: %w", req.Source, err)
	}

	return qs, nil
}

// Memory is an in-memory question bank.
type Memory struct {
	mu        sync.RWMutex
	questions []domain.Question
}

func NewMemory(qs ...domain.Question) *Memory {
	return &Memory{questions: qs}
}

func (m *Memory) AddQuestion(_ context.Context, q *domain.Question) error {
	if q.QuestionID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate question ID: %w", err)
		}
		q.QuestionID = id.String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.questions = append(m.questions, *q)
	return nil
}

func (m *Memory) Fetch(_ context.Context, req FetchRequest) ([]domain.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return filter(m.questions, req), nil
}

// filter keeps questions matching the requested difficulty, in order, up to the requested count.
func filter(qs []domain.Question, req FetchRequest) []domain.Question {
	out := make([]domain.Question, 0, min(len(qs), max(req.Count, 0)))
	for _, q := range qs {
		if len(out) >= req.Count {
			break
		}
		if req.Difficulty != "" && q.Difficulty != req.Difficulty {
			continue
		}
		out = append(out, q)
	}

	return out
}
