// Package performance derives player and team statistics from finished rounds and sessions.
package performance

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/teamquiz/internal/domain"
)

// ComputePerformances groups resolved rounds by answerer and sorts players by accuracy, best first.
// Players with equal accuracy keep the order in which they first answered.
func ComputePerformances(rounds []domain.Round) []domain.PlayerPerformance {
	var (
		order []string
		stats = make(map[string]*domain.PlayerPerformance)
	)

	for _, r := range rounds {
		if r.PlayerWhoAnswered == "" || !r.Resolved() {
			continue
		}

		p, ok := stats[r.PlayerWhoAnswered]
		if !ok {
			p = &domain.PlayerPerformance{PlayerName: r.PlayerWhoAnswered}
			stats[r.PlayerWhoAnswered] = p
			order = append(order, r.PlayerWhoAnswered)
		}

		p.TotalAnswers++
		if r.Correct() {
			p.CorrectAnswers++
		}
	}

	out := make([]domain.PlayerPerformance, 0, len(order))
	for _, name := range order {
		p := stats[name]
		p.Accuracy = Percentage(p.CorrectAnswers, p.TotalAnswers)
		out = append(out, *p)
	}

	slices.SortStableFunc(out, func(a, b domain.PlayerPerformance) int {
		return cmp.Compare(b.Accuracy, a.Accuracy)
	})

	return out
}

// ComputeSessionStats summarizes completed sessions. No sessions yields zero stats.
func ComputeSessionStats(results []domain.GameResult) domain.SessionStats {
	stats := domain.SessionStats{
		AverageScore: decimal.Zero,
		BestScore:    decimal.Zero,
	}
	if len(results) == 0 {
		return stats
	}

	var (
		total    = decimal.Zero
		accuracy float64
	)
	for i, r := range results {
		total = total.Add(r.Score)
		accuracy += r.CorrectPercentage
		stats.TotalTimePlayed += r.Duration

		if i == 0 || r.Score.GreaterThan(stats.BestScore) {
			stats.BestScore = r.Score
		}
	}

	n := len(results)
	stats.TotalSessions = n
	stats.AverageScore = total.Div(decimal.NewFromInt(int64(n)))
	stats.AverageAccuracy = accuracy / float64(n)

	return stats
}

// Percentage returns part/total*100, or 0 when total is 0.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// FormatDuration renders the elapsed whole seconds between start and end as "4m 5s" or "5s".
func FormatDuration(start, end time.Time) string {
	ms := max(end.Sub(start).Milliseconds(), 0)
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000

	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

type Grade struct {
	Letter  string
	Message string
}

var grades = []struct {
	min   float64
	grade Grade
}{
	{90, Grade{"A+", "Outstanding!"}},
	{80, Grade{"A", "Excellent!"}},
	{70, Grade{"B", "Great job!"}},
	{60, Grade{"C", "Good effort!"}},
	{50, Grade{"D", "Keep trying!"}},
}

// GradeOf maps a correct answer percentage to a letter grade.
func GradeOf(percentage float64) Grade {
	for _, g := range grades {
		if percentage >= g.min {
			return g.grade
		}
	}
	return Grade{"F", "Need more practice!"}
}

// ScoreMessage returns the closing message shown with the final score.
func ScoreMessage(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Outstanding! Exceptional knowledge!"
	case percentage >= 70:
		return "Great job! Impressive performance!"
	case percentage >= 50:
		return "Good effort! Well done!"
	case percentage >= 30:
		return "Nice try! Keep learning!"
	}
	return "Don't give up! Every game is a learning opportunity!"
}
