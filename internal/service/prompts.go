package service

import (
	"fmt"
	"strings"

	"github.com/mindspool/recall/internal/domain"
)

// Study-material sizing: counts scale with how much source material exists,
// clamped so tiny documents still yield a usable set and huge ones stay
// reviewable.
const (
	minGeneratedItems = 3
	maxFlashcards     = 12
	maxQuizQuestions  = 8
)

// flashcardCount picks how many cards to request for a document with
// chunkCount stored chunks, unless the caller asked for a specific count.
func flashcardCount(requested, chunkCount int) int {
	if requested > 0 {
		return requested
	}
	return clamp(chunkCount/2, minGeneratedItems, maxFlashcards)
}

func quizQuestionCount(requested, chunkCount int) int {
	if requested > 0 {
		return requested
	}
	return clamp(chunkCount/3, minGeneratedItems, maxQuizQuestions)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// joinContext concatenates grounding chunks in descending-similarity order.
func joinContext(chunks []string) string {
	return strings.Join(chunks, "\n\n---\n\n")
}

func buildFlashcardMessages(groundingContext string, count int) []domain.ChatMessage {
	prompt := fmt.Sprintf(`You are an expert educator creating study flashcards.

Based on the following study material, create exactly %d flashcards.

STUDY MATERIAL:
%s

Respond with ONLY a JSON array, no other text. Each element must have this shape:
{"question": "...", "answer": "..."}

Rules:
- Questions must be answerable from the study material alone.
- Answers must be concise and factually grounded in the material.
- Cover the material's distinct topics rather than repeating one.`, count, groundingContext)

	return []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: prompt}}
}

func buildQuizMessages(groundingContext string, count int) []domain.ChatMessage {
	prompt := fmt.Sprintf(`You are an expert educator creating a multiple-choice quiz.

Based on the following study material, create exactly %d quiz questions.

STUDY MATERIAL:
%s

Respond with ONLY a JSON array, no other text. Each element must have this shape:
{"question": "...", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, "correct_answer": "A", "explanation": "..."}

Rules:
- Each question has exactly four options labeled A through D.
- correct_answer is the single letter of the correct option.
- Distractors must be plausible but clearly wrong given the material.
- The explanation says why the correct answer is right.`, count, groundingContext)

	return []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: prompt}}
}

// buildChatMessages assembles the chat completion request: a system prompt
// carrying the freshly retrieved grounding context, the prior turns oldest
// first, then the in-flight user message.
func buildChatMessages(groundingContext string, history []domain.ChatMessage, userMessage string) []domain.ChatMessage {
	var system string
	if strings.TrimSpace(groundingContext) == "" {
		system = `You are a helpful study assistant. No relevant excerpts from the user's document were found for this question. Answer from general knowledge, and say clearly that your answer is not based on their document.`
	} else {
		system = fmt.Sprintf(`You are a helpful study assistant. Answer the user's questions using the following excerpts from their document. If the excerpts do not contain the answer, say so rather than inventing one.

DOCUMENT EXCERPTS:
%s`, groundingContext)
	}

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: domain.ChatRoleUser, Content: userMessage})
	return messages
}
