package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/staging"
)

// State is the batch run lifecycle.
type State int

const (
	Idle State = iota
	Extracting
	Staged
	Aggregating
	Rendered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Extracting:
		return "EXTRACTING"
	case Staged:
		return "STAGED"
	case Aggregating:
		return "AGGREGATING"
	case Rendered:
		return "RENDERED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrRunInProgress is returned when Run is called on a busy runner.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

// Flusher clears the staging store.
type Flusher interface {
	FlushAll(ctx context.Context) error
}

// HandlerFunc builds the course handler for one scope.
type HandlerFunc func(scope string) CourseHandler

// ReduceFunc aggregates and renders once every scope has been staged.
type ReduceFunc func(ctx context.Context, runID string) error

// RunStats summarises the extraction phase.
type RunStats struct {
	RunID        string
	Courses      int
	Processed    int
	FailedChunks int
	FailedScopes []string
}

// Runner drives IDLE -> EXTRACTING -> STAGED -> AGGREGATING -> RENDERED -> IDLE.
// There is no resume: fragments left by a crashed run are flushed first.
type Runner struct {
	Store      Flusher
	Extractor  *Extractor
	KeepStaged bool
	Log        *logger.Logger

	mu    sync.Mutex
	state State
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) transition(log *logger.Logger, to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()
	log.Info("state", "from", from.String(), "to", to.String())
}

// Run extracts every scope, then calls reduce. A scope whose course search
// fails is skipped; a store outage or reduce error aborts the run.
func (r *Runner) Run(ctx context.Context, scopes []string, handler HandlerFunc, reduce ReduceFunc) (RunStats, error) {
	r.mu.Lock()
	if r.state != Idle {
		r.mu.Unlock()
		return RunStats{}, ErrRunInProgress
	}
	r.state = Extracting
	r.mu.Unlock()

	stats := RunStats{RunID: uuid.NewString()}
	log := logger.OrNop(r.Log).With("run_id", stats.RunID)
	defer func() {
		r.mu.Lock()
		r.state = Idle
		r.mu.Unlock()
	}()
	start := time.Now()

	// restos de una corrida anterior
	if err := r.Store.FlushAll(ctx); err != nil {
		return stats, fmt.Errorf("flush orphan fragments: %w", err)
	}
	log.Info("state", "from", Idle.String(), "to", Extracting.String(), "scopes", len(scopes))

	for _, scope := range scopes {
		courses, err := r.Extractor.Courses(ctx, scope)
		if err != nil {
			log.Error("course search failed", "scope", scope, "error", err)
			stats.FailedScopes = append(stats.FailedScopes, scope)
			continue
		}
		res := r.Extractor.Extract(ctx, courses, handler(scope))
		stats.Courses += len(courses)
		stats.Processed += res.Processed
		stats.FailedChunks += len(res.Errors)
		for _, ce := range res.Errors {
			if errors.Is(ce.Err, staging.ErrStoreUnavailable) {
				return stats, fmt.Errorf("extract %s: %w", scope, ce)
			}
		}
		log.Info("scope staged", "scope", scope, "courses", len(courses), "processed", res.Processed)
	}
	r.transition(log, Staged)

	r.transition(log, Aggregating)
	if err := reduce(ctx, stats.RunID); err != nil {
		return stats, err
	}
	r.transition(log, Rendered)

	if !r.KeepStaged {
		if err := r.Store.FlushAll(ctx); err != nil {
			return stats, fmt.Errorf("flush staged fragments: %w", err)
		}
	}
	r.transition(log, Idle)
	log.Info("run finished", "courses", stats.Courses, "processed", stats.Processed, "failed_chunks", stats.FailedChunks, "took", time.Since(start))
	return stats, nil
}
