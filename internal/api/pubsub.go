package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/teamquiz/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	PhaseChanged struct {
		SessionID string `json:"session_id"`
		Seq       uint64 `json:"seq"`
		Round     int    `json:"round"`
		From      string `json:"from"`
		To        string `json:"to"`
		PhaseName string `json:"phase_name"`
	}

	TimerTicked struct {
		SessionID string `json:"session_id"`
		Seq       uint64 `json:"seq"`
		Remaining int    `json:"remaining"`
	}

	RoundResolved struct {
		SessionID string    `json:"session_id"`
		Round     RoundView `json:"round"`
	}
)

// PublishPhaseChanged notifies the observers of a session that it entered a new phase.
func (a *API) PublishPhaseChanged(ctx context.Context, e domain.EventPhaseChanged) error {
	return a.publishNotification(ctx, a.sessionChannel(e.SessionID), e.Name(), PhaseChanged{
		SessionID: e.SessionID,
		Seq:       e.Seq,
		Round:     e.RoundIndex + 1,
		From:      string(e.From),
		To:        string(e.To),
		PhaseName: e.To.DisplayName(),
	})
}

func (a *API) PublishTimerTicked(ctx context.Context, e domain.EventTimerTicked) error {
	return a.publishNotification(ctx, a.sessionChannel(e.SessionID), e.Name(), TimerTicked{
		SessionID: e.SessionID,
		Seq:       e.Seq,
		Remaining: e.Remaining,
	})
}

func (a *API) PublishRoundResolved(ctx context.Context, e domain.EventRoundResolved) error {
	return a.publishNotification(ctx, a.sessionChannel(e.SessionID), e.Name(), RoundResolved{
		SessionID: e.SessionID,
		Round:     toRoundView(e.Round),
	})
}

// PublishLeaderboardUpdated sends the new leaderboard to its difficulty channel and to every listed team.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboardView(e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.publishNotification(ctx, fmt.Sprintf("%s:leaderboard:%s", a.prefix, data.Difficulty), e.Name(), data)
	})

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, fmt.Sprintf("%s:team:%s", a.prefix, entry.TeamName), e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) sessionChannel(id string) string {
	return fmt.Sprintf("%s:session:%s", a.prefix, id)
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
