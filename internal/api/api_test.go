package api_test

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/teamquiz/internal/api"
	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/event"
	"github.com/victornm/teamquiz/internal/game"
	"github.com/victornm/teamquiz/internal/history"
	"github.com/victornm/teamquiz/internal/leaderboard"
	"github.com/victornm/teamquiz/internal/question"
	"github.com/victornm/teamquiz/internal/timer"
)

func TestAPI_PlayGame(t *testing.T) {
	h := makeHandler(t)

	var ss api.SessionView
	h.do(t, http.MethodPost, "/v1/sessions", map[string]any{
		"team_name":    "Owls",
		"team_members": []string{"alice", "bob"},
		"difficulty":   "easy",
		"round_count":  2,
	}, http.StatusCreated, &ss)

	assert.Equal(t, "Easy", ss.Difficulty)
	assert.Equal(t, 30, ss.RoundTime, "defaults apply to omitted settings")
	assert.Equal(t, "waiting", ss.Phase)
	assert.Equal(t, "Ready to Start", ss.PhaseName)
	assert.Equal(t, 2, ss.TotalRounds)

	base := "/v1/sessions/" + ss.SessionID

	h.do(t, http.MethodPost, base+"/start", nil, http.StatusOK, &ss)
	assert.Equal(t, "question", ss.Phase)
	assert.Equal(t, "What is the capital of France?", ss.Question)
	require.NotNil(t, ss.CurrentRound)
	assert.Empty(t, ss.CurrentRound.CorrectAnswer)

	var hint map[string]string
	h.do(t, http.MethodGet, base+"/hint", nil, http.StatusOK, &hint)
	assert.Equal(t, `The answer begins with "P" and has 1 word.`, hint["hint"])

	h.do(t, http.MethodPost, base+"/discussion", nil, http.StatusOK, &ss)
	assert.Equal(t, "discussion", ss.Phase)
	assert.True(t, ss.ShowsTimer)
	assert.True(t, ss.TimerRunning)

	h.do(t, http.MethodPost, base+"/players/select", map[string]string{"player": "bob"}, http.StatusOK, &ss)
	assert.Equal(t, "bob", ss.SelectedPlayer)

	var answered api.SubmitAnswerResponse
	h.do(t, http.MethodPost, base+"/answer", map[string]string{"answer": "paris", "notes": "easy one"}, http.StatusOK, &answered)
	require.NotNil(t, answered.Round.IsCorrect)
	assert.True(t, *answered.Round.IsCorrect)
	assert.Equal(t, "Paris", answered.Round.CorrectAnswer)
	assert.Equal(t, "feedback", answered.Session.Phase)
	assert.Equal(t, "1", answered.Session.Score)

	h.do(t, http.MethodPost, base+"/next", nil, http.StatusOK, &ss)
	assert.Equal(t, 2, ss.Round)
	assert.True(t, ss.IsLastRound)
	assert.Empty(t, ss.SelectedPlayer, "selection is cleared between rounds")

	h.do(t, http.MethodPost, base+"/players/select", map[string]string{"player": "alice"}, http.StatusOK, &ss)
	h.do(t, http.MethodPost, base+"/answer", map[string]string{"answer": "purple"}, http.StatusOK, &answered)
	assert.False(t, *answered.Round.IsCorrect)

	h.do(t, http.MethodPost, base+"/next", nil, http.StatusOK, &ss)
	assert.Equal(t, "completed", ss.Status)

	var res api.ResultView
	h.do(t, http.MethodGet, base+"/result", nil, http.StatusOK, &res)
	assert.Equal(t, "1", res.Score)
	assert.InDelta(t, 50, res.CorrectPercentage, 0.001)
	assert.Equal(t, "D", res.Grade)
	assert.Len(t, res.Rounds, 2)
	assert.Len(t, res.PlayerPerformances, 2)

	h.bus.Stop()

	var stats api.TeamStatsResponse
	h.do(t, http.MethodGet, "/v1/teams/Owls/stats", nil, http.StatusOK, &stats)
	assert.Equal(t, 1, stats.Stats.TotalSessions)
	assert.Equal(t, "1", stats.Stats.BestScore)
	require.Len(t, stats.Results, 1)
	assert.Equal(t, ss.SessionID, stats.Results[0].SessionID)

	var l api.LeaderboardView
	h.do(t, http.MethodGet, "/v1/leaderboard/EASY", nil, http.StatusOK, &l)
	assert.Equal(t, []api.LeaderboardEntryView{{TeamName: "Owls", Score: "1"}}, l.Entries)
}

func TestAPI_Errors(t *testing.T) {
	tests := map[string]struct {
		arrange    func(t *testing.T, h *handler) (method, path string, body any)
		wantStatus int
	}{
		"unknown session": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				return http.MethodGet, "/v1/sessions/nope", nil
			},
			wantStatus: http.StatusNotFound,
		},
		"invalid settings": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				return http.MethodPost, "/v1/sessions", map[string]any{"team_name": "", "team_members": []string{"a"}, "difficulty": "Easy"}
			},
			wantStatus: http.StatusBadRequest,
		},
		"not enough questions": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				return http.MethodPost, "/v1/sessions", map[string]any{
					"team_name": "Owls", "team_members": []string{"a"}, "difficulty": "Hard", "round_count": 3,
				}
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		"malformed body": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				return http.MethodPost, "/v1/sessions", "{"
			},
			wantStatus: http.StatusBadRequest,
		},
		"answer without a selected player": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				id := h.startedSession(t)
				return http.MethodPost, "/v1/sessions/" + id + "/answer", map[string]string{"answer": "Paris"}
			},
			wantStatus: http.StatusPreconditionFailed,
		},
		"answer twice": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				id := h.startedSession(t)
				h.do(t, http.MethodPost, "/v1/sessions/"+id+"/players/select", map[string]string{"player": "alice"}, http.StatusOK, nil)
				h.do(t, http.MethodPost, "/v1/sessions/"+id+"/answer", map[string]string{"answer": "Paris"}, http.StatusOK, nil)
				return http.MethodPost, "/v1/sessions/" + id + "/answer", map[string]string{"answer": "Rome"}
			},
			wantStatus: http.StatusConflict,
		},
		"select a stranger": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				id := h.startedSession(t)
				return http.MethodPost, "/v1/sessions/" + id + "/players/select", map[string]string{"player": "mallory"}
			},
			wantStatus: http.StatusBadRequest,
		},
		"result before completion": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				id := h.startedSession(t)
				return http.MethodGet, "/v1/sessions/" + id + "/result", nil
			},
			wantStatus: http.StatusPreconditionFailed,
		},
		"unknown difficulty": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				return http.MethodGet, "/v1/leaderboard/legendary", nil
			},
			wantStatus: http.StatusBadRequest,
		},
		"question without answer": {
			arrange: func(t *testing.T, h *handler) (string, string, any) {
				return http.MethodPost, "/v1/questions", map[string]string{"question": "Why?"}
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := makeHandler(t)
			method, path, body := tt.arrange(t, h)

			var resp struct {
				Error struct {
					Code    int    `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			h.do(t, method, path, body, tt.wantStatus, &resp)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestAPI_AbandonSession(t *testing.T) {
	h := makeHandler(t)
	id := h.startedSession(t)

	h.do(t, http.MethodPost, "/v1/sessions/"+id+"/abandon", nil, http.StatusNoContent, nil)
	h.do(t, http.MethodGet, "/v1/sessions/"+id, nil, http.StatusNotFound, nil)
}

func TestAPI_UserQuestions(t *testing.T) {
	h := makeHandler(t)

	var q api.QuestionView
	h.do(t, http.MethodPost, "/v1/questions", map[string]string{
		"question": "Who wrote War and Peace?",
		"answer":   "Tolstoy",
		"author":   "alice",
	}, http.StatusCreated, &q)
	assert.NotEmpty(t, q.QuestionID)

	var ss api.SessionView
	h.do(t, http.MethodPost, "/v1/sessions", map[string]any{
		"team_name":    "Owls",
		"team_members": []string{"alice"},
		"difficulty":   "Hard",
		"round_count":  1,
		"source":       "user",
	}, http.StatusCreated, &ss)

	h.do(t, http.MethodPost, "/v1/sessions/"+ss.SessionID+"/start", nil, http.StatusOK, &ss)
	assert.Equal(t, "Who wrote War and Peace?", ss.Question)
}

func TestAPI_PublishesSessionNotifications(t *testing.T) {
	ctx := context.Background()
	h := makeHandler(t)

	var ss api.SessionView
	h.do(t, http.MethodPost, "/v1/sessions", map[string]any{
		"team_name":    "Owls",
		"team_members": []string{"alice"},
		"difficulty":   "Easy",
		"round_count":  1,
	}, http.StatusCreated, &ss)

	sub := h.redis.Subscribe(ctx, "test:session:"+ss.SessionID)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "subscription should be confirmed")

	base := "/v1/sessions/" + ss.SessionID
	h.do(t, http.MethodPost, base+"/start", nil, http.StatusOK, nil)
	h.do(t, http.MethodPost, base+"/discussion", nil, http.StatusOK, nil)
	h.do(t, http.MethodPost, base+"/players/select", api.SelectPlayerRequest{Player: "alice"}, http.StatusOK, nil)
	h.do(t, http.MethodPost, base+"/answer", api.SubmitAnswerRequest{Answer: "Paris"}, http.StatusOK, nil)

	var changes []api.PhaseChanged
	for len(changes) < 4 {
		select {
		case msg := <-sub.Channel():
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
			if n.Event != domain.EventNamePhaseChanged {
				continue
			}

			var pc api.PhaseChanged
			require.NoError(t, json.Unmarshal(n.Data, &pc))
			assert.Equal(t, 1, pc.Round)
			changes = append(changes, pc)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d phase notifications, want 4", len(changes))
		}
	}

	// Notifications may arrive in any order, seq restores it.
	slices.SortFunc(changes, func(a, b api.PhaseChanged) int { return cmp.Compare(a.Seq, b.Seq) })

	var got []string
	for i, pc := range changes {
		assert.EqualValues(t, i+1, pc.Seq)
		got = append(got, pc.To)
	}
	assert.Equal(t, []string{"question", "discussion", "answer", "feedback"}, got)
}

func TestAPI_SessionEventsGetRequestContext(t *testing.T) {
	h := makeHandler(t)

	var (
		mu      sync.Mutex
		leaked  int
		handled int
	)
	check := func(ctx context.Context, _ event.Event) error {
		mu.Lock()
		defer mu.Unlock()

		handled++
		if ctx.Value(gin.ContextKey) != nil {
			leaked++
		}
		return nil
	}
	h.bus.Subscribe(domain.EventNamePhaseChanged, check)
	h.bus.Subscribe(domain.EventNameRoundResolved, check)
	h.bus.Subscribe(domain.EventNameSessionAbandoned, check)

	id := h.startedSession(t)
	h.do(t, http.MethodPost, "/v1/sessions/"+id+"/players/select", api.SelectPlayerRequest{Player: "alice"}, http.StatusOK, nil)
	h.do(t, http.MethodPost, "/v1/sessions/"+id+"/answer", api.SubmitAnswerRequest{Answer: "Paris"}, http.StatusOK, nil)
	h.do(t, http.MethodPost, "/v1/sessions/"+id+"/abandon", nil, http.StatusNoContent, nil)
	h.bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, handled)
	assert.Zero(t, leaked, "handlers run after the request and must not hold its gin context")
}

type handler struct {
	engine *gin.Engine
	bus    *event.Bus
	redis  redis.UniversalClient
}

func makeHandler(t *testing.T) *handler {
	gin.SetMode(gin.TestMode)

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { _ = rc.Close() })

	eb := event.NewBus()
	users := question.NewUserBank(rc, "test")

	gs := game.NewService(game.Config{
		Questions: question.NewRouter(question.NewMemory(
			domain.Question{QuestionID: "e1", Text: "What is the capital of France?", Answer: "Paris", Difficulty: domain.DifficultyEasy},
			domain.Question{QuestionID: "e2", Text: "What color is grass?", Answer: "Green", Difficulty: domain.DifficultyEasy},
			domain.Question{QuestionID: "h1", Text: "Smallest prime?", Answer: "Two", Difficulty: domain.DifficultyHard},
		), users),
		EventBus:      eb,
		NewTickerFunc: func(time.Duration) timer.Ticker { return idleTicker{} },
	})
	t.Cleanup(func() {
		gs.Close(context.Background())
		eb.Stop()
	})

	e := gin.New()
	api.New(api.Config{
		Router:   e,
		EventBus: eb,
		Game:     gs,
		History:  history.NewService(history.Config{EventBus: eb, Store: history.NewMemory()}),
		Leaderboard: leaderboard.NewService(leaderboard.Config{
			EventBus: eb,
			Redis:    rc,
			Prefix:   "test",
		}),
		Questions:         users,
		Redis:             rc,
		PubsubPrefix:      "test",
		DefaultRoundTime:  30,
		DefaultRoundCount: 5,
	})

	return &handler{engine: e, bus: eb, redis: rc}
}

// do sends a request and decodes the JSON response into out when out is not nil.
func (h *handler) do(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	require.Equal(t, wantStatus, rec.Code, "%s %s: %s", method, path, rec.Body.String())

	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

// startedSession creates an easy single round session for alice and bob and starts it.
func (h *handler) startedSession(t *testing.T) string {
	t.Helper()

	var ss api.SessionView
	h.do(t, http.MethodPost, "/v1/sessions", map[string]any{
		"team_name":    "Owls",
		"team_members": []string{"alice", "bob"},
		"difficulty":   "Easy",
		"round_count":  1,
	}, http.StatusCreated, &ss)
	h.do(t, http.MethodPost, "/v1/sessions/"+ss.SessionID+"/start", nil, http.StatusOK, nil)

	return ss.SessionID
}

// idleTicker never ticks, so countdowns only end when a test says so.
type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}
