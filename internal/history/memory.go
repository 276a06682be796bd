package history

import (
	"context"
	"slices"
	"sync"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
)

// Memory keeps results in process, for tests and for running without a database.
type Memory struct {
	mu      sync.RWMutex
	results []domain.GameResult
	ids     map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		ids: make(map[string]struct{}),
	}
}

func (m *Memory) SaveResult(_ context.Context, res domain.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ids[res.SessionID]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("result already recorded: session=%s", res.SessionID))
	}

	m.ids[res.SessionID] = struct{}{}
	m.results = append(m.results, res)
	return nil
}

func (m *Memory) ListResults(_ context.Context, team string, limit int) ([]domain.GameResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.GameResult
	for _, res := range slices.Backward(m.results) {
		if len(out) >= limit {
			break
		}
		if res.TeamName == team {
			out = append(out, res)
		}
	}

	slices.SortStableFunc(out, func(a, b domain.GameResult) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})

	return out, nil
}
