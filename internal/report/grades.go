package report

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jorgesolerrr/umet-reports/internal/concurrency"
	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/staging"
)

// GradeSource is the staged data the grades report drains.
type GradeSource interface {
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	Kind(ctx context.Context, key string) (string, error)
	GetGradeRows(ctx context.Context, key string) ([]domain.GradeRow, error)
}

// GradesResult holds every staged grade row plus unreadable keys.
type GradesResult struct {
	Rows         []domain.GradeRow
	WithProblems []string
	MaxCuts      int
}

// CollectGrades merges the grade rows staged under every pattern.
func CollectGrades(ctx context.Context, src GradeSource, patterns []string, workers int, log *logger.Logger) (*GradesResult, error) {
	log = logger.OrNop(log)

	var keys []string
	for _, p := range patterns {
		ks, err := src.KeysByPrefix(ctx, staging.ScopePrefix(p))
		if err != nil {
			return nil, fmt.Errorf("list staged grades for %s: %w", p, err)
		}
		keys = append(keys, ks...)
	}

	var mu sync.Mutex
	out := &GradesResult{}
	res := concurrency.Run(ctx, keys, concurrency.ParallelOptions{MaxWorkers: workers, Log: log}, func(ctx context.Context, chunk []string) (int, error) {
		n := 0
		for _, key := range chunk {
			kind, err := src.Kind(ctx, key)
			if err == nil && kind != staging.KindGrades {
				continue
			}
			var rows []domain.GradeRow
			if err == nil {
				rows, err = src.GetGradeRows(ctx, key)
			}
			if err != nil && isUnavailable(err) {
				return n, err
			}
			mu.Lock()
			if err != nil {
				log.Warn("unreadable staged grades", "key", key, "error", err)
				out.WithProblems = append(out.WithProblems, key)
			} else {
				out.Rows = append(out.Rows, rows...)
				n++
			}
			mu.Unlock()
		}
		return n, nil
	})
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("read staged grades: %w", res.Errors[0])
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		if out.Rows[i].Course != out.Rows[j].Course {
			return out.Rows[i].Course < out.Rows[j].Course
		}
		return out.Rows[i].Student < out.Rows[j].Student
	})
	sort.Strings(out.WithProblems)
	for _, r := range out.Rows {
		if len(r.Cuts) > out.MaxCuts {
			out.MaxCuts = len(r.Cuts)
		}
	}
	log.Info("grades collected", "rows", len(out.Rows), "courses", res.Processed, "max_cuts", out.MaxCuts)
	return out, nil
}
