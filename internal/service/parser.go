package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mindspool/recall/internal/domain"
)

// Models frequently wrap JSON in markdown code fences or chatter around it.
// extractJSONArray recovers the first JSON array from raw model output.
func extractJSONArray(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("empty model output")
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if !strings.HasPrefix(s, "[") {
		start := strings.Index(s, "[")
		end := strings.LastIndex(s, "]")
		if start < 0 || end < start {
			return "", errors.New("no JSON array found in model output")
		}
		s = s[start : end+1]
	}

	return s, nil
}

// parseFlashcards validates raw model output into a non-empty ordered list of
// question/answer pairs. Any shape violation is a malformed-output failure.
func parseFlashcards(raw string) ([]domain.Flashcard, error) {
	payload, err := extractJSONArray(raw)
	if err != nil {
		return nil, domain.ErrMalformedOutput(err)
	}

	var cards []domain.Flashcard
	if err := json.Unmarshal([]byte(payload), &cards); err != nil {
		return nil, domain.ErrMalformedOutput(fmt.Errorf("invalid flashcard JSON: %w", err))
	}
	if len(cards) == 0 {
		return nil, domain.ErrMalformedOutput(errors.New("model returned zero flashcards"))
	}

	for i, c := range cards {
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.Answer) == "" {
			return nil, domain.ErrMalformedOutput(fmt.Errorf("flashcard %d is missing a question or answer", i))
		}
	}
	return cards, nil
}

// parseQuiz validates raw model output into quiz questions. Every question
// must carry exactly the four A-D options, a correct_answer naming one of
// them, and an explanation.
func parseQuiz(raw string) ([]domain.QuizQuestion, error) {
	payload, err := extractJSONArray(raw)
	if err != nil {
		return nil, domain.ErrMalformedOutput(err)
	}

	var questions []domain.QuizQuestion
	if err := json.Unmarshal([]byte(payload), &questions); err != nil {
		return nil, domain.ErrMalformedOutput(fmt.Errorf("invalid quiz JSON: %w", err))
	}
	if len(questions) == 0 {
		return nil, domain.ErrMalformedOutput(errors.New("model returned zero questions"))
	}

	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" {
			return nil, domain.ErrMalformedOutput(fmt.Errorf("question %d has no text", i))
		}
		for _, label := range []string{"A", "B", "C", "D"} {
			if strings.TrimSpace(q.Options.Get(label)) == "" {
				return nil, domain.ErrMalformedOutput(fmt.Errorf("question %d is missing option %s", i, label))
			}
		}
		answer := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
		if q.Options.Get(answer) == "" {
			return nil, domain.ErrMalformedOutput(fmt.Errorf("question %d has correct_answer %q, want one of A-D", i, q.CorrectAnswer))
		}
		if strings.TrimSpace(q.Explanation) == "" {
			return nil, domain.ErrMalformedOutput(fmt.Errorf("question %d has no explanation", i))
		}
		questions[i].CorrectAnswer = answer
	}
	return questions, nil
}
