// Package rotation implements failover across a prioritized list of
// (provider, model) candidates. The engine attempts generation on each
// candidate in list order, retries transient failures with jittered
// exponential backoff, advances past permanent ones, and surfaces a single
// aggregate error when every candidate is exhausted.
package rotation

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mindspool/recall/internal/domain"
)

// Defaults tuned for free-tier upstream providers.
const (
	DefaultRetriesPerCandidate = 2
	DefaultAttemptTimeout      = 90 * time.Second
	DefaultInitialBackoff      = 2 * time.Second
	DefaultMaxBackoff          = 30 * time.Second
)

// AttemptFunc runs one generation attempt against a candidate. Errors it
// returns must already be classified (domain.ProviderError); anything
// unclassified is treated as permanent for that candidate.
type AttemptFunc func(ctx context.Context, candidate domain.ModelCandidate) error

// Config bounds the engine's retry behavior.
type Config struct {
	// RetriesPerCandidate is how many times a transient failure is retried
	// on the same candidate before advancing. Permanent failures advance
	// immediately and never retry.
	RetriesPerCandidate int
	// AttemptTimeout cancels a single in-flight provider call. A timed-out
	// attempt is classified transient.
	AttemptTimeout time.Duration
	// MaxTotalAttempts caps attempts across all candidates. Zero means no
	// cap beyond the per-candidate ceilings.
	MaxTotalAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.RetriesPerCandidate <= 0 {
		c.RetriesPerCandidate = DefaultRetriesPerCandidate
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}

// Engine rotates generation requests through a fixed candidate list. The
// list is read-only; all per-request attempt state lives on the Run stack,
// so one Engine serves any number of concurrent requests.
type Engine struct {
	candidates []domain.ModelCandidate
	cfg        Config
}

// NewEngine creates an engine over the given priority-ordered candidates.
func NewEngine(candidates []domain.ModelCandidate, cfg Config) *Engine {
	return &Engine{candidates: candidates, cfg: cfg.withDefaults()}
}

// Candidates returns the configured failover sequence.
func (e *Engine) Candidates() []domain.ModelCandidate {
	return e.candidates
}

// Run attempts fn against each candidate in priority order until one
// succeeds. On success it returns the winning candidate for attribution.
// On total exhaustion it returns *domain.AllProvidersFailedError carrying
// one failure entry per attempted candidate, in attempt order.
func (e *Engine) Run(ctx context.Context, task domain.TaskKind, fn AttemptFunc) (domain.ModelCandidate, error) {
	if len(e.candidates) == 0 {
		return domain.ModelCandidate{}, &domain.AllProvidersFailedError{Task: task}
	}

	attempts := make([]domain.AttemptFailure, 0, len(e.candidates))
	totalAttempts := 0

	for _, candidate := range e.candidates {
		lastFailure, aborted := e.tryCandidate(ctx, candidate, fn, &totalAttempts)
		if lastFailure == nil && !aborted {
			return candidate, nil
		}
		if aborted {
			if lastFailure != nil {
				attempts = append(attempts, *lastFailure)
			}
			if err := ctx.Err(); err != nil {
				return domain.ModelCandidate{}, err
			}
			break
		}

		attempts = append(attempts, *lastFailure)
		log.Printf("rotation: candidate %s exhausted for %s (%s: %s), advancing",
			candidate, task, lastFailure.Class, lastFailure.Reason)
	}

	return domain.ModelCandidate{}, &domain.AllProvidersFailedError{Task: task, Attempts: attempts}
}

// tryCandidate runs up to 1+RetriesPerCandidate attempts on one candidate.
// It returns the candidate's final failure (nil on success) and whether the
// whole run must stop (caller cancellation or the global attempt cap).
func (e *Engine) tryCandidate(ctx context.Context, candidate domain.ModelCandidate, fn AttemptFunc, totalAttempts *int) (*domain.AttemptFailure, bool) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialBackoff
	bo.MaxInterval = e.cfg.MaxBackoff
	bo.MaxElapsedTime = 0

	maxAttempts := 1 + e.cfg.RetriesPerCandidate
	var last *domain.AttemptFailure

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if e.cfg.MaxTotalAttempts > 0 && *totalAttempts >= e.cfg.MaxTotalAttempts {
			if last == nil {
				last = &domain.AttemptFailure{
					Candidate: candidate,
					Class:     domain.ErrorClassTransient,
					Reason:    "attempt budget exhausted before this candidate was tried",
				}
			}
			return last, true
		}
		*totalAttempts++

		err := e.runAttempt(ctx, candidate, fn)
		if err == nil {
			return nil, false
		}

		if ctx.Err() != nil {
			// Caller cancellation, not a provider verdict.
			return &domain.AttemptFailure{
				Candidate: candidate,
				Class:     domain.ErrorClassTransient,
				Reason:    ctx.Err().Error(),
			}, true
		}

		class := domain.ErrorClassPermanent
		reason := err.Error()
		if pe, ok := domain.AsProviderError(err); ok {
			class = pe.Class
			reason = pe.Err.Error()
		}
		last = &domain.AttemptFailure{Candidate: candidate, Class: class, Reason: reason}

		if class == domain.ErrorClassPermanent {
			return last, false
		}
		if attempt == maxAttempts-1 {
			return last, false
		}

		wait := bo.NextBackOff()
		log.Printf("rotation: transient failure on %s (attempt %d/%d), backing off %s: %v",
			candidate, attempt+1, maxAttempts, wait.Round(time.Millisecond), err)
		select {
		case <-ctx.Done():
			return last, true
		case <-time.After(wait):
		}
	}

	return last, false
}

// runAttempt wraps one fn call in the per-attempt timeout. A timeout is a
// transient failure for classification purposes; the in-flight provider call
// is cancelled with the context, never left running.
func (e *Engine) runAttempt(ctx context.Context, candidate domain.ModelCandidate, fn AttemptFunc) error {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	err := fn(attemptCtx, candidate)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return domain.NewTransientError(errors.New("attempt timed out"))
	}
	return err
}
