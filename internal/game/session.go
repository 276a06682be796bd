package game

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/teamquiz/internal/answer"
	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
	"github.com/victornm/teamquiz/internal/event"
	"github.com/victornm/teamquiz/internal/performance"
	"github.com/victornm/teamquiz/internal/player"
	"github.com/victornm/teamquiz/internal/question"
	"github.com/victornm/teamquiz/internal/telemetry"
	"github.com/victornm/teamquiz/internal/timer"
)

// DefaultPointsPerCorrect is awarded for each correct answer when not configured.
var DefaultPointsPerCorrect = decimal.NewFromInt(1)

type Validator interface {
	Validate(submitted, canonical string) bool
}

type SessionConfig struct {
	SessionID string
	Settings  domain.Settings
	Feed      *question.Feed

	// PointsPerCorrect defaults to DefaultPointsPerCorrect when not set. Negative values award nothing.
	PointsPerCorrect decimal.NullDecimal
	Validator        Validator
	EventBus         *event.Bus

	TickInterval  time.Duration
	NewTickerFunc func(d time.Duration) timer.Ticker
	Now           func() time.Time
}

// Session is the state machine of one game. All mutations are serialized by its mutex;
// the timer callbacks are the only asynchronous entry points.
type Session struct {
	mu      sync.Mutex
	game    domain.GameSession
	rounds  []domain.Round
	feed    *question.Feed
	players *player.Registry
	result  *domain.GameResult

	timer     *timer.Timer
	validator Validator
	points    decimal.Decimal
	eb        *event.Bus
	now       func() time.Time

	// seq numbers phase and timer events. Ticks are published outside of mu.
	seq atomic.Uint64
}

func NewSession(c SessionConfig) *Session {
	s := &Session{
		game: domain.GameSession{
			SessionID:   c.SessionID,
			TeamName:    c.Settings.TeamName,
			TeamMembers: slices.Clone(c.Settings.TeamMembers),
			Difficulty:  c.Settings.Difficulty,
			RoundTime:   c.Settings.RoundTime,
			TotalRounds: c.Feed.Len(),
			Score:       decimal.Zero,
			Phase:       domain.PhaseWaiting,
			Status:      domain.StatusActive,
		},
		feed:      c.Feed,
		players:   player.NewRegistry(c.Settings.TeamMembers),
		validator: c.Validator,
		points:    DefaultPointsPerCorrect,
		eb:        c.EventBus,
		now:       c.Now,
	}

	if s.validator == nil {
		s.validator = answer.Validator{}
	}
	if c.PointsPerCorrect.Valid {
		// The score never decreases.
		s.points = decimal.Max(c.PointsPerCorrect.Decimal, decimal.Zero)
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.timer = timer.New(timer.Config{
		InitialTime:   c.Settings.RoundTime,
		Interval:      c.TickInterval,
		OnTick:        s.onTick,
		OnComplete:    s.onTimeUp,
		NewTickerFunc: c.NewTickerFunc,
	})

	return s
}

func (s *Session) ID() string {
	return s.game.SessionID
}

// Start moves a waiting session to the first question.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	if s.game.Phase != domain.PhaseWaiting || s.game.StartedAt != nil {
		return errors.InvalidOperation("session %s already started", s.game.SessionID)
	}

	now := s.now()
	s.game.StartedAt = &now
	s.game.CurrentRoundIndex = 0
	s.loadRound(now)
	s.setPhase(ctx, domain.PhaseQuestion)

	telemetry.SessionStarted()
	slog.InfoContext(ctx, "game: session started",
		"session_id", s.game.SessionID,
		"team", s.game.TeamName,
		"rounds", s.game.TotalRounds,
	)

	return nil
}

// StartDiscussion opens the discussion of the current question and starts the countdown.
func (s *Session) StartDiscussion(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	if s.game.Phase != domain.PhaseQuestion {
		return errors.InvalidOperation("can't start discussion in phase %s", s.game.Phase)
	}

	s.setPhase(ctx, domain.PhaseDiscussion)
	s.timer.ResetTo(s.game.RoundTime)
	s.timer.Start()

	return nil
}

// SelectPlayer chooses the team member who gives the answer.
func (s *Session) SelectPlayer(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	if !s.players.Select(name) {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%q is not a member of team %s", name, s.game.TeamName))
	}

	return nil
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.players.ClearSelection()
}

// SubmitAnswer resolves the current round with the team's answer.
// It fails without any change when there is no current question or no selected player,
// and when the round is already resolved.
func (s *Session) SubmitAnswer(ctx context.Context, teamAnswer, notes string) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return domain.Round{}, err
	}

	r := s.currentRound()
	if r == nil {
		return domain.Round{}, errors.InvalidOperation("no current question")
	}
	if r.Resolved() {
		s.reportDoubleResolution(ctx, "submit")
		return domain.Round{}, errors.DoubleResolution(r.RoundNumber)
	}

	answerer, ok := s.players.Selected()
	if !ok {
		return domain.Round{}, errors.InvalidOperation("no player selected to answer")
	}

	s.timer.Stop()

	now := s.now()
	correct := s.validator.Validate(teamAnswer, r.CorrectAnswer)
	r.TeamAnswer = &teamAnswer
	r.IsCorrect = &correct
	r.PlayerWhoAnswered = answerer
	r.DiscussionNotes = notes
	r.AnsweredAt = &now

	if correct {
		s.game.Score = s.game.Score.Add(s.points)
	}

	telemetry.AnswerValidated(correct)

	if s.game.Phase != domain.PhaseAnswer {
		s.setPhase(ctx, domain.PhaseAnswer)
	}
	s.setPhase(ctx, domain.PhaseFeedback)

	s.eb.Publish(ctx, domain.EventRoundResolved{
		SessionID: s.game.SessionID,
		Round:     *r,
	})

	return *r, nil
}

// NextRound leaves the feedback of a resolved round, either to the next question or to the end of the game.
func (s *Session) NextRound(ctx context.Context) error {
	completed, err := s.nextRound(ctx)
	if err != nil {
		return err
	}

	if completed {
		s.timer.Close()
	}

	return nil
}

func (s *Session) nextRound(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return false, err
	}
	if s.game.Phase != domain.PhaseFeedback {
		return false, errors.InvalidOperation("can't move to the next round in phase %s", s.game.Phase)
	}

	s.feed.Next()
	s.players.ClearSelection()
	s.timer.Reset()

	if s.game.CurrentRoundIndex+1 >= s.game.TotalRounds {
		s.complete(ctx)
		return true, nil
	}

	s.game.CurrentRoundIndex++
	s.loadRound(s.now())
	s.setPhase(ctx, domain.PhaseQuestion)

	return false, nil
}

// Abandon ends the session at any phase and releases its timer.
func (s *Session) Abandon(ctx context.Context) error {
	if err := s.abandon(ctx); err != nil {
		return err
	}

	s.timer.Close()
	return nil
}

func (s *Session) abandon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}

	s.game.Status = domain.StatusAbandoned

	telemetry.SessionAbandoned()
	slog.InfoContext(ctx, "game: session abandoned",
		"session_id", s.game.SessionID,
		"phase", s.game.Phase,
		"round", s.game.CurrentRoundIndex,
	)

	s.eb.Publish(ctx, domain.EventSessionAbandoned{
		SessionID: s.game.SessionID,
		Phase:     s.game.Phase,
	})

	return nil
}

// Hint returns a hint for the current question.
func (s *Session) Hint() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.currentRound()
	if s.game.Status != domain.StatusActive || r == nil || r.Resolved() {
		return "", errors.InvalidOperation("no question to give a hint for")
	}

	return question.Hint(r.CorrectAnswer, s.game.Difficulty), nil
}

// Result returns the final result once the session is completed.
func (s *Session) Result() (domain.GameResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return domain.GameResult{}, false
	}

	return *s.result, true
}

// Snapshot is a read-only view of a session for presentation.
type Snapshot struct {
	Session         domain.GameSession
	Question        string
	SelectedPlayer  string
	TimeRemaining   int
	TimerRunning    bool
	TimerLevel      timer.Level
	IsLastRound     bool
	ResolvedRounds  []domain.Round
	CurrentRound    *domain.Round
	FinishedAt      *time.Time
	ScorePercentage float64
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Session:       s.game,
		TimeRemaining: s.timer.Remaining(),
		TimerRunning:  s.timer.Running(),
		IsLastRound:   s.game.CurrentRoundIndex+1 >= s.game.TotalRounds,
	}
	snap.Session.TeamMembers = slices.Clone(s.game.TeamMembers)
	snap.TimerLevel = timer.LevelOf(snap.TimeRemaining, s.game.RoundTime)
	snap.SelectedPlayer, _ = s.players.Selected()

	var correct int
	for _, r := range s.rounds {
		if r.Resolved() {
			snap.ResolvedRounds = append(snap.ResolvedRounds, r)
			if r.Correct() {
				correct++
			}
		}
	}
	snap.ScorePercentage = performance.Percentage(correct, s.game.TotalRounds)

	if r := s.currentRound(); r != nil && s.game.Status == domain.StatusActive {
		cur := *r
		if !cur.Resolved() {
			cur.CorrectAnswer = ""
		}
		snap.CurrentRound = &cur
		snap.Question = cur.Question
	}

	return snap
}

func (s *Session) onTick(remaining int) {
	s.eb.Publish(context.Background(), domain.EventTimerTicked{
		SessionID: s.game.SessionID,
		Seq:       s.seq.Add(1),
		Remaining: remaining,
	})
}

// onTimeUp closes the discussion when the countdown of the current round ends.
func (s *Session) onTimeUp() {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game.Status != domain.StatusActive {
		return
	}

	if r := s.currentRound(); r == nil || r.Resolved() {
		s.reportDoubleResolution(ctx, "timer")
		return
	}

	// A completion delivered after the timer was restarted belongs to an earlier countdown.
	if s.game.Phase != domain.PhaseDiscussion || s.timer.Running() || s.timer.Remaining() != 0 {
		return
	}

	s.setPhase(ctx, domain.PhaseAnswer)
}

func (s *Session) checkActive() error {
	if s.game.Status != domain.StatusActive {
		return errors.InvalidOperation("session %s is %s", s.game.SessionID, s.game.Status)
	}
	return nil
}

// currentRound returns the round of the current index, nil before the session starts.
func (s *Session) currentRound() *domain.Round {
	if s.game.CurrentRoundIndex >= len(s.rounds) {
		return nil
	}
	return &s.rounds[s.game.CurrentRoundIndex]
}

func (s *Session) loadRound(now time.Time) {
	q, ok := s.feed.Current()
	if !ok {
		return
	}

	s.rounds = append(s.rounds, domain.Round{
		RoundNumber:   s.game.CurrentRoundIndex + 1,
		Question:      q.Text,
		CorrectAnswer: q.Answer,
		StartedAt:     &now,
	})
}

func (s *Session) setPhase(ctx context.Context, to domain.Phase) {
	from := s.game.Phase
	s.game.Phase = to

	s.eb.Publish(ctx, domain.EventPhaseChanged{
		SessionID:  s.game.SessionID,
		Seq:        s.seq.Add(1),
		RoundIndex: s.game.CurrentRoundIndex,
		From:       from,
		To:         to,
	})
}

func (s *Session) complete(ctx context.Context) {
	now := s.now()
	s.game.CompletedAt = &now
	s.game.Status = domain.StatusCompleted
	s.setPhase(ctx, domain.PhaseWaiting)

	var correct int
	for _, r := range s.rounds {
		if r.Correct() {
			correct++
		}
	}

	res := domain.GameResult{
		SessionID:          s.game.SessionID,
		TeamName:           s.game.TeamName,
		Difficulty:         s.game.Difficulty,
		Score:              s.game.Score,
		TotalRounds:        s.game.TotalRounds,
		CorrectPercentage:  performance.Percentage(correct, s.game.TotalRounds),
		Rounds:             slices.Clone(s.rounds),
		PlayerPerformances: performance.ComputePerformances(s.rounds),
		StartedAt:          *s.game.StartedAt,
		CompletedAt:        now,
		Duration:           now.Sub(*s.game.StartedAt),
	}
	s.result = &res

	telemetry.SessionCompleted()
	slog.InfoContext(ctx, "game: session completed",
		"session_id", s.game.SessionID,
		"score", s.game.Score.String(),
		"correct_percentage", res.CorrectPercentage,
		"duration", performance.FormatDuration(res.StartedAt, res.CompletedAt),
	)

	s.eb.Publish(ctx, domain.EventSessionCompleted{Result: res})
}

func (s *Session) reportDoubleResolution(ctx context.Context, by string) {
	telemetry.DoubleResolution(by)
	slog.WarnContext(ctx, "game: round already resolved",
		"session_id", s.game.SessionID,
		"round", s.game.CurrentRoundIndex+1,
		"by", by,
	)
}
