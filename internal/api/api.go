package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
	"github.com/victornm/teamquiz/internal/event"
	"github.com/victornm/teamquiz/internal/game"
	"github.com/victornm/teamquiz/internal/history"
	"github.com/victornm/teamquiz/internal/leaderboard"
	"github.com/victornm/teamquiz/internal/question"
)

type Config struct {
	Router      gin.IRouter
	EventBus    *event.Bus
	Game        *game.Service
	History     *history.Service
	Leaderboard *leaderboard.Service
	// Questions receives the questions submitted by users.
	Questions question.Writer

	Redis        Redis
	PubsubPrefix string

	DefaultRoundTime  int
	DefaultRoundCount int
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	gs *game.Service
	hs *history.Service
	ls *leaderboard.Service
	qw question.Writer

	redis  Redis
	prefix string

	defaultRoundTime  int
	defaultRoundCount int
}

func New(c Config) *API {
	a := &API{
		gs:                c.Game,
		hs:                c.History,
		ls:                c.Leaderboard,
		qw:                c.Questions,
		redis:             c.Redis,
		prefix:            c.PubsubPrefix,
		defaultRoundTime:  c.DefaultRoundTime,
		defaultRoundCount: c.DefaultRoundCount,
	}

	// HTTP APIs
	v1 := c.Router.Group("/v1")
	v1.POST("/sessions", a.CreateSession)
	v1.GET("/sessions/:id", a.GetSession)
	v1.POST("/sessions/:id/start", a.StartSession)
	v1.POST("/sessions/:id/discussion", a.StartDiscussion)
	v1.POST("/sessions/:id/players/select", a.SelectPlayer)
	v1.POST("/sessions/:id/players/clear", a.ClearSelection)
	v1.POST("/sessions/:id/answer", a.SubmitAnswer)
	v1.POST("/sessions/:id/next", a.NextRound)
	v1.POST("/sessions/:id/abandon", a.AbandonSession)
	v1.GET("/sessions/:id/hint", a.GetHint)
	v1.GET("/sessions/:id/result", a.GetResult)
	v1.GET("/teams/:team/stats", a.GetTeamStats)
	v1.GET("/leaderboard/:difficulty", a.GetLeaderboard)
	v1.POST("/questions", a.AddQuestion)

	// Register event handlers
	if c.Redis != nil {
		c.EventBus.Subscribe(domain.EventNamePhaseChanged, func(ctx context.Context, e event.Event) error {
			return a.PublishPhaseChanged(ctx, e.(domain.EventPhaseChanged))
		})
		c.EventBus.Subscribe(domain.EventNameTimerTicked, func(ctx context.Context, e event.Event) error {
			return a.PublishTimerTicked(ctx, e.(domain.EventTimerTicked))
		})
		c.EventBus.Subscribe(domain.EventNameRoundResolved, func(ctx context.Context, e event.Event) error {
			return a.PublishRoundResolved(ctx, e.(domain.EventRoundResolved))
		})
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

type CreateSessionRequest struct {
	TeamName    string   `json:"team_name"`
	TeamMembers []string `json:"team_members"`
	Difficulty  string   `json:"difficulty"`
	RoundTime   int      `json:"round_time"`
	RoundCount  int      `json:"round_count"`
	Source      string   `json:"source"`
}

func (a *API) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if !bind(c, &req) {
		return
	}

	st := domain.Settings{
		TeamName:    req.TeamName,
		TeamMembers: req.TeamMembers,
		Difficulty:  parseDifficulty(req.Difficulty),
		RoundTime:   req.RoundTime,
		RoundCount:  req.RoundCount,
		Source:      domain.QuestionSource(strings.ToLower(req.Source)),
	}
	if st.RoundTime == 0 {
		st.RoundTime = a.defaultRoundTime
	}
	if st.RoundCount == 0 {
		st.RoundCount = a.defaultRoundCount
	}
	if st.Source == "" {
		st.Source = domain.SourceApp
	}

	ss, err := a.gs.CreateSession(c.Request.Context(), game.CreateSessionRequest{Settings: st})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionView(ss.Snapshot()))
}

func (a *API) GetSession(c *gin.Context) {
	ss, ok := a.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toSessionView(ss.Snapshot()))
}

func (a *API) StartSession(c *gin.Context) {
	a.transition(c, (*game.Session).Start)
}

func (a *API) StartDiscussion(c *gin.Context) {
	a.transition(c, (*game.Session).StartDiscussion)
}

func (a *API) NextRound(c *gin.Context) {
	a.transition(c, (*game.Session).NextRound)
}

// transition applies a state change to the session in the path and responds with its new state.
// Sessions get the request context, never c.
func (a *API) transition(c *gin.Context, fn func(*game.Session, context.Context) error) {
	ss, ok := a.session(c)
	if !ok {
		return
	}

	if err := fn(ss, c.Request.Context()); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionView(ss.Snapshot()))
}

type SelectPlayerRequest struct {
	Player string `json:"player"`
}

func (a *API) SelectPlayer(c *gin.Context) {
	var req SelectPlayerRequest
	if !bind(c, &req) {
		return
	}

	ss, ok := a.session(c)
	if !ok {
		return
	}

	if err := ss.SelectPlayer(req.Player); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionView(ss.Snapshot()))
}

func (a *API) ClearSelection(c *gin.Context) {
	ss, ok := a.session(c)
	if !ok {
		return
	}

	ss.ClearSelection()
	c.JSON(http.StatusOK, toSessionView(ss.Snapshot()))
}

type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
	Notes  string `json:"notes"`
}

type SubmitAnswerResponse struct {
	Round   RoundView   `json:"round"`
	Session SessionView `json:"session"`
}

func (a *API) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if !bind(c, &req) {
		return
	}

	ss, ok := a.session(c)
	if !ok {
		return
	}

	r, err := ss.SubmitAnswer(c.Request.Context(), req.Answer, req.Notes)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, SubmitAnswerResponse{
		Round:   toRoundView(r),
		Session: toSessionView(ss.Snapshot()),
	})
}

func (a *API) AbandonSession(c *gin.Context) {
	if err := a.gs.AbandonSession(c.Request.Context(), c.Param("id")); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) GetHint(c *gin.Context) {
	ss, ok := a.session(c)
	if !ok {
		return
	}

	hint, err := ss.Hint()
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hint": hint})
}

func (a *API) GetResult(c *gin.Context) {
	ss, ok := a.session(c)
	if !ok {
		return
	}

	res, ok := ss.Result()
	if !ok {
		abort(c, errors.InvalidOperation("session %s is not completed", ss.ID()))
		return
	}

	c.JSON(http.StatusOK, toResultView(res))
}

type TeamStatsResponse struct {
	Stats   StatsView    `json:"stats"`
	Results []ResultView `json:"results"`
}

func (a *API) GetTeamStats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	results, err := a.hs.ListResults(c.Request.Context(), history.ListResultsRequest{
		TeamName: c.Param("team"),
		Limit:    limit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	stats, err := a.hs.Stats(c.Request.Context(), c.Param("team"))
	if err != nil {
		abort(c, err)
		return
	}

	resp := TeamStatsResponse{
		Stats:   toStatsView(stats),
		Results: make([]ResultView, 0, len(results)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, toResultView(res))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		Difficulty: parseDifficulty(c.Param("difficulty")),
		Limit:      limit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboardView(*l))
}

type AddQuestionRequest struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
	Topic      string `json:"topic"`
	Author     string `json:"author"`
}

func (a *API) AddQuestion(c *gin.Context) {
	var req AddQuestionRequest
	if !bind(c, &req) {
		return
	}

	q := &domain.Question{
		Text:       strings.TrimSpace(req.Question),
		Answer:     strings.TrimSpace(req.Answer),
		Difficulty: parseDifficulty(req.Difficulty),
		Topic:      req.Topic,
		Author:     req.Author,
	}
	if q.Text == "" || q.Answer == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("question and answer are required")))
		return
	}
	if req.Difficulty != "" && !q.Difficulty.Valid() {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown difficulty %q", req.Difficulty)))
		return
	}

	if err := a.qw.AddQuestion(c.Request.Context(), q); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toQuestionView(*q))
}

func (a *API) session(c *gin.Context) (*game.Session, bool) {
	ss, err := a.gs.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return nil, false
	}

	return ss, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("malformed request body"),
			errors.WithCause(err)))
		return false
	}

	return true
}

// abort responds with the status and message of err. Internal causes are logged and never exposed.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c, "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}

// parseDifficulty accepts difficulties in any letter case.
func parseDifficulty(s string) domain.Difficulty {
	return domain.Difficulty(cases.Title(language.Und).String(strings.TrimSpace(s)))
}
