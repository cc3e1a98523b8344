package domain

import "strings"

// TaskKind names a content-generation task.
type TaskKind string

const (
	TaskFlashcards TaskKind = "flashcards"
	TaskQuiz       TaskKind = "quiz"
	TaskChat       TaskKind = "chat"
)

// ChatRole is the author of a conversation turn.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one prior conversation turn, oldest first in history slices.
type ChatMessage struct {
	Role    string
	Content string
}

// Flashcard is a single question/answer study card.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuizOptions holds the four labeled answer choices of a quiz question.
type QuizOptions struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Get returns the option text for a label, or "" for an unknown label.
func (o QuizOptions) Get(label string) string {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "A":
		return o.A
	case "B":
		return o.B
	case "C":
		return o.C
	case "D":
		return o.D
	}
	return ""
}

// QuizQuestion is one multiple-choice question with exactly four options,
// one of which is the correct answer.
type QuizQuestion struct {
	Question      string      `json:"question"`
	Options       QuizOptions `json:"options"`
	CorrectAnswer string      `json:"correct_answer"`
	Explanation   string      `json:"explanation"`
}

// StreamEvent is one element of a chat token stream. A stream is finite and
// always ends with exactly one terminal element: either Done set, or Err set.
type StreamEvent struct {
	Content string
	Done    bool
	Err     error
}
