package api

import (
	"strconv"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/game"
	"github.com/victornm/teamquiz/internal/performance"
)

type (
	SessionView struct {
		SessionID       string      `json:"session_id"`
		TeamName        string      `json:"team_name"`
		TeamMembers     []string    `json:"team_members"`
		Difficulty      string      `json:"difficulty"`
		Status          string      `json:"status"`
		Phase           string      `json:"phase"`
		PhaseName       string      `json:"phase_name"`
		AllowsInput     bool        `json:"allows_input"`
		ShowsTimer      bool        `json:"shows_timer"`
		Round           int         `json:"round"`
		TotalRounds     int         `json:"total_rounds"`
		IsLastRound     bool        `json:"is_last_round"`
		Score           string      `json:"score"`
		ScorePercentage float64     `json:"score_percentage"`
		RoundTime       int         `json:"round_time"`
		TimeRemaining   int         `json:"time_remaining"`
		TimerRunning    bool        `json:"timer_running"`
		TimerLevel      string      `json:"timer_level"`
		Question        string      `json:"question,omitempty"`
		SelectedPlayer  string      `json:"selected_player,omitempty"`
		CurrentRound    *RoundView  `json:"current_round,omitempty"`
		ResolvedRounds  []RoundView `json:"resolved_rounds"`
	}

	RoundView struct {
		RoundNumber   int     `json:"round_number"`
		Question      string  `json:"question"`
		CorrectAnswer string  `json:"correct_answer,omitempty"`
		TeamAnswer    *string `json:"team_answer,omitempty"`
		IsCorrect     *bool   `json:"is_correct,omitempty"`
		Player        string  `json:"player,omitempty"`
		Notes         string  `json:"notes,omitempty"`
	}

	PlayerPerformanceView struct {
		PlayerName     string  `json:"player_name"`
		CorrectAnswers int     `json:"correct_answers"`
		TotalAnswers   int     `json:"total_answers"`
		Accuracy       float64 `json:"accuracy"`
	}

	ResultView struct {
		SessionID          string                  `json:"session_id"`
		TeamName           string                  `json:"team_name"`
		Difficulty         string                  `json:"difficulty"`
		Score              string                  `json:"score"`
		TotalRounds        int                     `json:"total_rounds"`
		CorrectPercentage  float64                 `json:"correct_percentage"`
		Grade              string                  `json:"grade"`
		GradeMessage       string                  `json:"grade_message"`
		Message            string                  `json:"message"`
		Duration           string                  `json:"duration"`
		Rounds             []RoundView             `json:"rounds"`
		PlayerPerformances []PlayerPerformanceView `json:"player_performances"`
	}

	StatsView struct {
		TotalSessions   int     `json:"total_sessions"`
		AverageScore    string  `json:"average_score"`
		AverageAccuracy float64 `json:"average_accuracy"`
		BestScore       string  `json:"best_score"`
		TotalTimePlayed string  `json:"total_time_played"`
		Grade           string  `json:"grade"`
	}

	LeaderboardView struct {
		Difficulty string                 `json:"difficulty"`
		Entries    []LeaderboardEntryView `json:"entries"`
	}

	LeaderboardEntryView struct {
		TeamName string `json:"team_name"`
		Score    string `json:"score"`
	}

	QuestionView struct {
		QuestionID string `json:"question_id"`
		Question   string `json:"question"`
		Difficulty string `json:"difficulty,omitempty"`
		Topic      string `json:"topic,omitempty"`
		Author     string `json:"author,omitempty"`
	}
)

func toSessionView(snap game.Snapshot) SessionView {
	s := snap.Session

	v := SessionView{
		SessionID:       s.SessionID,
		TeamName:        s.TeamName,
		TeamMembers:     s.TeamMembers,
		Difficulty:      string(s.Difficulty),
		Status:          string(s.Status),
		Phase:           string(s.Phase),
		PhaseName:       s.Phase.DisplayName(),
		AllowsInput:     s.Phase.AllowsInput(),
		ShowsTimer:      s.Phase.ShowsTimer(),
		Round:           s.CurrentRoundIndex + 1,
		TotalRounds:     s.TotalRounds,
		IsLastRound:     snap.IsLastRound,
		Score:           s.Score.String(),
		ScorePercentage: snap.ScorePercentage,
		RoundTime:       s.RoundTime,
		TimeRemaining:   snap.TimeRemaining,
		TimerRunning:    snap.TimerRunning,
		TimerLevel:      string(snap.TimerLevel),
		Question:        snap.Question,
		SelectedPlayer:  snap.SelectedPlayer,
		ResolvedRounds:  toRoundViews(snap.ResolvedRounds),
	}

	if snap.CurrentRound != nil {
		r := toRoundView(*snap.CurrentRound)
		v.CurrentRound = &r
	}

	return v
}

func toRoundView(r domain.Round) RoundView {
	return RoundView{
		RoundNumber:   r.RoundNumber,
		Question:      r.Question,
		CorrectAnswer: r.CorrectAnswer,
		TeamAnswer:    r.TeamAnswer,
		IsCorrect:     r.IsCorrect,
		Player:        r.PlayerWhoAnswered,
		Notes:         r.DiscussionNotes,
	}
}

func toRoundViews(rounds []domain.Round) []RoundView {
	out := make([]RoundView, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, toRoundView(r))
	}
	return out
}

func toResultView(res domain.GameResult) ResultView {
	grade := performance.GradeOf(res.CorrectPercentage)

	v := ResultView{
		SessionID:          res.SessionID,
		TeamName:           res.TeamName,
		Difficulty:         string(res.Difficulty),
		Score:              res.Score.String(),
		TotalRounds:        res.TotalRounds,
		CorrectPercentage:  res.CorrectPercentage,
		Grade:              grade.Letter,
		GradeMessage:       grade.Message,
		Message:            performance.ScoreMessage(res.CorrectPercentage),
		Duration:           performance.FormatDuration(res.StartedAt, res.CompletedAt),
		Rounds:             toRoundViews(res.Rounds),
		PlayerPerformances: make([]PlayerPerformanceView, 0, len(res.PlayerPerformances)),
	}

	for _, p := range res.PlayerPerformances {
		v.PlayerPerformances = append(v.PlayerPerformances, PlayerPerformanceView(p))
	}

	return v
}

func toStatsView(s domain.SessionStats) StatsView {
	return StatsView{
		TotalSessions:   s.TotalSessions,
		AverageScore:    s.AverageScore.StringFixed(2),
		AverageAccuracy: s.AverageAccuracy,
		BestScore:       s.BestScore.String(),
		TotalTimePlayed: s.TotalTimePlayed.String(),
		Grade:           performance.GradeOf(s.AverageAccuracy).Letter,
	}
}

func toLeaderboardView(l domain.Leaderboard) LeaderboardView {
	v := LeaderboardView{
		Difficulty: string(l.Difficulty),
		Entries:    make([]LeaderboardEntryView, 0, len(l.Entries)),
	}

	for _, e := range l.Entries {
		v.Entries = append(v.Entries, LeaderboardEntryView{
			TeamName: e.TeamName,
			Score:    strconv.FormatFloat(e.Score, 'f', -1, 64),
		})
	}

	return v
}

func toQuestionView(q domain.Question) QuestionView {
	return QuestionView{
		QuestionID: q.QuestionID,
		Question:   q.Text,
		Difficulty: string(q.Difficulty),
		Topic:      q.Topic,
		Author:     q.Author,
	}
}
