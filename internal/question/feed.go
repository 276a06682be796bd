package question

import (
	"context"
	"slices"

	"github.com/victornm/teamquiz/internal/domain"
	"github.com/victornm/teamquiz/internal/errors"
)

// Feed is the ordered list of questions of one session with a cursor on the current one.
type Feed struct {
	questions []domain.Question
	cursor    int
}

// Load fetches exactly req.Count questions from src.
// A source that can't supply enough questions yields an InsufficientQuestions error, never a shorter feed.
func Load(ctx context.Context, src Source, req FetchRequest) (*Feed, error) {
	if req.Count <= 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("question count must be positive, got %d", req.Count))
	}

	qs, err := src.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(qs) < req.Count {
		return nil, errors.InsufficientQuestions(req.Count, len(qs))
	}

	return NewFeed(qs[:req.Count]), nil
}

func NewFeed(qs []domain.Question) *Feed {
	return &Feed{questions: slices.Clone(qs)}
}

// Current returns the question under the cursor.
func (f *Feed) Current() (domain.Question, bool) {
	if f.cursor >= len(f.questions) {
		return domain.Question{}, false
	}

	return f.questions[f.cursor], true
}

// Next advances the cursor. Past the last question it is a no-op and returns false.
func (f *Feed) Next() bool {
	if f.cursor+1 >= len(f.questions) {
		return false
	}

	f.cursor++
	return true
}

func (f *Feed) Index() int { return f.cursor }

func (f *Feed) Len() int { return len(f.questions) }
