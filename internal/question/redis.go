package question

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/teamquiz/internal/domain"
)

type userQuestion struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Author     string `json:"author,omitempty"`
}

// UserBank stores user submitted questions in a Redis list, oldest first.
type UserBank struct {
	redis  redis.UniversalClient
	prefix string
}

func NewUserBank(r redis.UniversalClient, prefix string) *UserBank {
	return &UserBank{redis: r, prefix: prefix}
}

// AddQuestion appends a question to the bank and sets its ID.
func (b *UserBank) AddQuestion(ctx context.Context, q *domain.Question) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate question ID: %w", err)
	}

	data, err := json.Marshal(userQuestion{
		QuestionID: id.String(),
		Question:   q.Text,
		Answer:     q.Answer,
		Difficulty: string(q.Difficulty),
		Topic:      q.Topic,
		Author:     q.Author,
	})
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}

	if err := b.redis.RPush(ctx, b.key(), data).Err(); err != nil {
		return fmt.Errorf("push question: %w", err)
	}

	q.QuestionID = id.String()
	return nil
}

func (b *UserBank) Fetch(ctx context.Context, req FetchRequest) ([]domain.Question, error) {
	res, err := b.redis.LRange(ctx, b.key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	qs := make([]domain.Question, 0, len(res))
	for _, raw := range res {
		var uq userQuestion
		if err := json.Unmarshal([]byte(raw), &uq); err != nil {
			slog.WarnContext(ctx, "question: skip malformed user question", "error", err)
			continue
		}

		qs = append(qs, domain.Question{
			QuestionID: uq.QuestionID,
			Text:       uq.Question,
			Answer:     uq.Answer,
			Difficulty: domain.Difficulty(uq.Difficulty),
			Topic:      uq.Topic,
			Author:     uq.Author,
		})
	}

	return filter(qs, req), nil
}

func (b *UserBank) key() string {
	return fmt.Sprintf("%s:questions:user", b.prefix)
}
