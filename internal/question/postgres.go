package question

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/teamquiz/internal/domain"
)

// Bank is the curated question bank stored in PostgreSQL.
type Bank struct {
	db *pgxpool.Pool
}

func NewBank(db *pgxpool.Pool) *Bank {
	return &Bank{db: db}
}

// Fetch returns random questions of the requested difficulty.
func (b *Bank) Fetch(ctx context.Context, req FetchRequest) ([]domain.Question, error) {
	const stmt = `
SELECT question_id, question, answer, difficulty, topic
FROM questions
WHERE ($1 = '' OR difficulty = $1)
ORDER BY random()
LIMIT $2;`

	rows, err := b.db.Query(ctx, stmt, string(req.Difficulty), req.Count)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}

	qs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var (
			q          domain.Question
			difficulty string
		)
		if err := r.Scan(&q.QuestionID, &q.Text, &q.Answer, &difficulty, &q.Topic); err != nil {
			return domain.Question{}, err
		}
		q.Difficulty = domain.Difficulty(difficulty)
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect questions: %w", err)
	}

	return qs, nil
}

// AddQuestion inserts a curated question and sets its ID.
func (b *Bank) AddQuestion(ctx context.Context, q *domain.Question) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate question ID: %w", err)
	}

	const stmt = `INSERT INTO questions (question_id, question, answer, difficulty, topic) VALUES ($1, $2, $3, $4, $5);`

	if _, err := b.db.Exec(ctx, stmt, id, q.Text, q.Answer, string(q.Difficulty), q.Topic); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	q.QuestionID = id.String()
	return nil
}
