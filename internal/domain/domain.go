package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionSource selects where the questions of a session come from.
type QuestionSource string

const (
	SourceApp  QuestionSource = "app"
	SourceUser QuestionSource = "user"
)

func (s QuestionSource) Valid() bool {
	return s == SourceApp || s == SourceUser
}

// Phase is one stage of a round's lifecycle.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseQuestion   Phase = "question"
	PhaseDiscussion Phase = "discussion"
	PhaseAnswer     Phase = "answer"
	PhaseFeedback   Phase = "feedback"
)

// DisplayName returns the human readable name of a phase.
func (p Phase) DisplayName() string {
	switch p {
	case PhaseWaiting:
		return "Ready to Start"
	case PhaseQuestion:
		return "Question"
	case PhaseDiscussion:
		return "Team Discussion"
	case PhaseAnswer:
		return "Submit Answer"
	case PhaseFeedback:
		return "Answer Feedback"
	}
	return "Game"
}

// AllowsInput reports whether the team can type in this phase.
func (p Phase) AllowsInput() bool {
	return p == PhaseDiscussion || p == PhaseAnswer
}

// ShowsTimer reports whether the countdown is visible in this phase.
func (p Phase) ShowsTimer() bool {
	return p == PhaseDiscussion
}

// SessionStatus is the lifecycle status of a session, orthogonal to its phase.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// Question is a question with its canonical answer.
type Question struct {
	QuestionID string
	Text       string
	Answer     string
	Difficulty Difficulty
	Topic      string
	Author     string
}

// Settings are the parameters a team chooses before playing.
type Settings struct {
	TeamName    string
	TeamMembers []string
	Difficulty  Difficulty
	RoundTime   int
	RoundCount  int
	Source      QuestionSource
}

const (
	MinRoundCount = 1
	MaxRoundCount = 50
	MinRoundTime  = 10
	MaxRoundTime  = 300
)

// Validate returns every violation found in the settings.
func (s Settings) Validate() []string {
	var violations []string

	if s.TeamName == "" {
		violations = append(violations, "team name is required")
	}
	if len(s.TeamMembers) == 0 {
		violations = append(violations, "at least one team member is required")
	}
	if s.RoundCount < MinRoundCount || s.RoundCount > MaxRoundCount {
		violations = append(violations, fmt.Sprintf("round count must be between %d and %d", MinRoundCount, MaxRoundCount))
	}
	if s.RoundTime < MinRoundTime || s.RoundTime > MaxRoundTime {
		violations = append(violations, fmt.Sprintf("round time must be between %d and %d seconds", MinRoundTime, MaxRoundTime))
	}
	if !s.Difficulty.Valid() {
		violations = append(violations, fmt.Sprintf("unknown difficulty %q", s.Difficulty))
	}
	if !s.Source.Valid() {
		violations = append(violations, fmt.Sprintf("unknown question source %q", s.Source))
	}

	return violations
}

// GameSession represents a team playing a fixed number of rounds.
type GameSession struct {
	SessionID         string
	TeamName          string
	TeamMembers       []string
	Difficulty        Difficulty
	RoundTime         int
	TotalRounds       int
	CurrentRoundIndex int
	Score             decimal.Decimal
	Phase             Phase
	Status            SessionStatus
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// Round is one question-answer cycle within a session.
// TeamAnswer and IsCorrect are either both nil (pending) or both set (resolved).
type Round struct {
	RoundNumber       int
	Question          string
	CorrectAnswer     string
	TeamAnswer        *string
	IsCorrect         *bool
	PlayerWhoAnswered string
	DiscussionNotes   string
	StartedAt         *time.Time
	AnsweredAt        *time.Time
}

func (r Round) Resolved() bool {
	return r.TeamAnswer != nil && r.IsCorrect != nil
}

func (r Round) Correct() bool {
	return r.IsCorrect != nil && *r.IsCorrect
}

// PlayerPerformance aggregates the answers given by one player.
type PlayerPerformance struct {
	PlayerName     string
	CorrectAnswers int
	TotalAnswers   int
	Accuracy       float64
}

// GameResult is a read-only snapshot taken when a session completes.
type GameResult struct {
	SessionID          string
	TeamName           string
	Difficulty         Difficulty
	Score              decimal.Decimal
	TotalRounds        int
	CorrectPercentage  float64
	Rounds             []Round
	PlayerPerformances []PlayerPerformance
	StartedAt          time.Time
	CompletedAt        time.Time
	Duration           time.Duration
}

// SessionStats summarizes a set of completed sessions.
type SessionStats struct {
	TotalSessions   int
	AverageScore    decimal.Decimal
	AverageAccuracy float64
	BestScore       decimal.Decimal
	TotalTimePlayed time.Duration
}

// Leaderboard lists the best team scores for a difficulty, sorted by score in descending order.
type Leaderboard struct {
	Difficulty Difficulty
	Entries    []LeaderboardEntry
}

type LeaderboardEntry struct {
	TeamName string
	Score    float64
}
