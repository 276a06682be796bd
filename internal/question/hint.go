package question

import (
	"fmt"
	"strings"

	"github.com/victornm/teamquiz/internal/domain"
)

// Hint describes the shape of answer, revealing less as difficulty grows.
func Hint(answer string, d domain.Difficulty) string {
	words := strings.Fields(answer)
	chars := len([]rune(answer))

	plural := ""
	if len(words) != 1 {
		plural = "s"
	}

	switch d {
	case domain.DifficultyEasy:
		var initials strings.Builder
		for _, w := range words {
			initials.WriteRune([]rune(w)[0])
		}
		return fmt.Sprintf("The answer begins with %q and has %d word%s.", initials.String(), len(words), plural)

	case domain.DifficultyMedium:
		return fmt.Sprintf("The answer has %d characters in %d word%s.", chars, len(words), plural)

	case domain.DifficultyHard:
		if len(words) > 1 {
			return fmt.Sprintf("The answer is a %d-word term.", len(words))
		}
		return fmt.Sprintf("The answer is a single word with %d letters.", chars)
	}

	return fmt.Sprintf("The answer contains %d characters.", chars)
}
