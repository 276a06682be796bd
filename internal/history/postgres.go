package history

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
	"github.com/victornm/teamquiz/internal/performance"
)

// Postgres stores results in the game_results and game_rounds tables.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) SaveResult(ctx context.Context, res domain.GameResult) (err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		insResultStmt = `
INSERT INTO game_results (session_id, team_name, difficulty, score, total_rounds, correct_percentage, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
		insRoundStmt = `
INSERT INTO game_rounds (session_id, round_number, question, correct_answer, team_answer, is_correct, player, notes, started_at, answered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	)

	_, err = tx.Exec(ctx, insResultStmt,
		res.SessionID, res.TeamName, res.Difficulty, res.Score, res.TotalRounds,
		res.CorrectPercentage, res.StartedAt, res.CompletedAt)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists, errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	b := &pgx.Batch{}
	for _, r := range res.Rounds {
		b.Queue(insRoundStmt,
			res.SessionID, r.RoundNumber, r.Question, r.CorrectAnswer, r.TeamAnswer,
			r.IsCorrect, r.PlayerWhoAnswered, r.DiscussionNotes, r.StartedAt, r.AnsweredAt)
	}
	if err = tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert rounds: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (p *Postgres) ListResults(ctx context.Context, team string, limit int) ([]domain.GameResult, error) {
	const stmt = `
SELECT session_id, team_name, difficulty, score, total_rounds, correct_percentage, started_at, completed_at
FROM game_results
WHERE team_name = $1
ORDER BY completed_at DESC
LIMIT $2;`

	rows, err := p.db.Query(ctx, stmt, team, limit)
	if err != nil {
		return nil, err
	}

	results, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.GameResult, error) {
		var res domain.GameResult
		err := r.Scan(&res.SessionID, &res.TeamName, &res.Difficulty, &res.Score, &res.TotalRounds,
			&res.CorrectPercentage, &res.StartedAt, &res.CompletedAt)
		res.Duration = res.CompletedAt.Sub(res.StartedAt)
		return res, err
	})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return results, nil
	}

	if err := p.loadRounds(ctx, results); err != nil {
		return nil, err
	}

	return results, nil
}

func (p *Postgres) loadRounds(ctx context.Context, results []domain.GameResult) error {
	const stmt = `
SELECT session_id, round_number, question, correct_answer, team_answer, is_correct, player, notes, started_at, answered_at
FROM game_rounds
WHERE session_id = ANY($1)
ORDER BY session_id, round_number;`

	ids := make([]string, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.SessionID)
	}

	rows, err := p.db.Query(ctx, stmt, ids)
	if err != nil {
		return fmt.Errorf("query rounds: %w", err)
	}

	bySession := make(map[string][]domain.Round, len(results))
	_, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (struct{}, error) {
		var (
			id    string
			round domain.Round
		)
		err := r.Scan(&id, &round.RoundNumber, &round.Question, &round.CorrectAnswer, &round.TeamAnswer,
			&round.IsCorrect, &round.PlayerWhoAnswered, &round.DiscussionNotes, &round.StartedAt, &round.AnsweredAt)
		bySession[id] = append(bySession[id], round)
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("collect rounds: %w", err)
	}

	for i := range results {
		results[i].Rounds = bySession[results[i].SessionID]
		results[i].PlayerPerformances = performance.ComputePerformances(results[i].Rounds)
	}

	return nil
}
