package service

import (
	"context"
	"log"

	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/rotation"
	"github.com/mindspool/recall/internal/telemetry"
)

// DocumentGetter resolves document existence before any generation runs.
type DocumentGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// ChunkLister fetches a document's chunks in their original ordinal order.
type ChunkLister interface {
	ListByDocument(ctx context.Context, documentID string, limit int) ([]domain.Chunk, error)
	CountByDocument(ctx context.Context, documentID string) (int, error)
}

// Generator runs one non-streaming completion on a candidate.
type Generator interface {
	Generate(ctx context.Context, candidate domain.ModelCandidate, messages []domain.ChatMessage) (string, error)
}

// Rotator drives failover across the configured model candidates.
type Rotator interface {
	Run(ctx context.Context, task domain.TaskKind, fn rotation.AttemptFunc) (domain.ModelCandidate, error)
}

// FlashcardSet is a generated deck plus the candidate that produced it.
type FlashcardSet struct {
	Cards     []domain.Flashcard
	Candidate domain.ModelCandidate
}

// QuizSet is a generated quiz plus the candidate that produced it.
type QuizSet struct {
	Questions []domain.QuizQuestion
	Candidate domain.ModelCandidate
}

// StudyService generates flashcards and quizzes from a document's stored
// chunks. Grounding uses the document's leading chunks in ordinal order:
// study material should survey the document, not chase a similarity query.
type StudyService struct {
	documents DocumentGetter
	chunks    ChunkLister
	generator Generator
	rotator   Rotator
}

// NewStudyService creates a new StudyService instance.
func NewStudyService(documents DocumentGetter, chunks ChunkLister, generator Generator, rotator Rotator) *StudyService {
	return &StudyService{
		documents: documents,
		chunks:    chunks,
		generator: generator,
		rotator:   rotator,
	}
}

// GenerateFlashcards produces question/answer cards for the document. A
// count of zero picks a size proportional to the document's chunk count.
func (s *StudyService) GenerateFlashcards(ctx context.Context, documentID string, count int) (*FlashcardSet, error) {
	ctx, span := telemetry.StartSpan(ctx, "StudyService.GenerateFlashcards", telemetry.SpanAttributes{
		DocumentID: documentID,
		Task:       string(domain.TaskFlashcards),
		Operation:  "generate",
	})
	defer span.End()

	groundingContext, chunkCount, err := s.groundingFor(ctx, documentID)
	if err != nil {
		return nil, err
	}

	messages := buildFlashcardMessages(groundingContext, flashcardCount(count, chunkCount))

	var cards []domain.Flashcard
	winner, err := s.rotator.Run(ctx, domain.TaskFlashcards, func(ctx context.Context, candidate domain.ModelCandidate) error {
		raw, genErr := s.generator.Generate(ctx, candidate, messages)
		if genErr != nil {
			return genErr
		}
		parsed, parseErr := parseFlashcards(raw)
		if parseErr != nil {
			return parseErr
		}
		cards = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("generated %d flashcards for document %s via %s", len(cards), documentID, winner)
	return &FlashcardSet{Cards: cards, Candidate: winner}, nil
}

// GenerateQuiz produces multiple-choice questions for the document.
func (s *StudyService) GenerateQuiz(ctx context.Context, documentID string, count int) (*QuizSet, error) {
	ctx, span := telemetry.StartSpan(ctx, "StudyService.GenerateQuiz", telemetry.SpanAttributes{
		DocumentID: documentID,
		Task:       string(domain.TaskQuiz),
		Operation:  "generate",
	})
	defer span.End()

	groundingContext, chunkCount, err := s.groundingFor(ctx, documentID)
	if err != nil {
		return nil, err
	}

	messages := buildQuizMessages(groundingContext, quizQuestionCount(count, chunkCount))

	var questions []domain.QuizQuestion
	winner, err := s.rotator.Run(ctx, domain.TaskQuiz, func(ctx context.Context, candidate domain.ModelCandidate) error {
		raw, genErr := s.generator.Generate(ctx, candidate, messages)
		if genErr != nil {
			return genErr
		}
		parsed, parseErr := parseQuiz(raw)
		if parseErr != nil {
			return parseErr
		}
		questions = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("generated %d quiz questions for document %s via %s", len(questions), documentID, winner)
	return &QuizSet{Questions: questions, Candidate: winner}, nil
}

// groundingFor validates the document and assembles its study context.
func (s *StudyService) groundingFor(ctx context.Context, documentID string) (string, int, error) {
	if _, err := s.documents.GetByID(ctx, documentID); err != nil {
		return "", 0, err
	}

	chunkCount, err := s.chunks.CountByDocument(ctx, documentID)
	if err != nil {
		return "", 0, domain.NewDomainErrorWithCause(domain.ErrCodeRetrieval,
			"similarity search is unavailable", err)
	}
	if chunkCount < MinChunksForGeneration {
		return "", 0, domain.NewDomainError(domain.ErrCodeValidation,
			"document has too little content to generate study material")
	}

	chunks, err := s.chunks.ListByDocument(ctx, documentID, GenerationRetrievalK)
	if err != nil {
		return "", 0, domain.NewDomainErrorWithCause(domain.ErrCodeRetrieval,
			"similarity search is unavailable", err)
	}

	contents := make([]string, 0, len(chunks))
	for _, c := range chunks {
		contents = append(contents, c.Content)
	}
	return joinContext(contents), chunkCount, nil
}
