package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/config"
	"github.com/jorgesolerrr/umet-reports/internal/export"
	"github.com/jorgesolerrr/umet-reports/internal/mappers"
	"github.com/jorgesolerrr/umet-reports/internal/report"
)

// GradesStore is the staging surface of the grades workflow.
type GradesStore interface {
	Flusher
	GradeWriter
	report.GradeSource
}

type GradesReportOptions struct {
	Patterns []string
	Grades   mappers.GradeOptions
	Workers  int
	OutDir   string
	Now      func() time.Time
}

type GradesReportOutput struct {
	Stats    RunStats
	Result   *report.GradesResult
	Workbook string
}

func NewGradesReportOptions(cfg config.Config) GradesReportOptions {
	return GradesReportOptions{
		Patterns: cfg.Grades.Patterns,
		Grades: mappers.GradeOptions{
			OFGPos:         cfg.Grades.OFGPos,
			PeriodPosition: cfg.Grades.PeriodPosition,
		},
		Workers: cfg.Workers,
		OutDir:  cfg.ReportDir,
	}
}

// RunGradesReport stages grade rows per course pattern and renders one
// workbook with every pattern.
func RunGradesReport(ctx context.Context, r *Runner, store GradesStore, opts GradesReportOptions) (*GradesReportOutput, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	opts.Grades.Log = r.Log
	if opts.Grades.Categories == nil {
		opts.Grades.Categories = mappers.NewCategoryCache()
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("report dir: %w", err)
	}

	out := &GradesReportOutput{}
	handler := func(scope string) CourseHandler {
		return &GradesHandler{Store: store, Scope: scope, Options: opts.Grades, Now: now}
	}
	reduce := func(ctx context.Context, _ string) error {
		res, err := report.CollectGrades(ctx, store, opts.Patterns, opts.Workers, r.Log)
		if err != nil {
			return err
		}
		out.Result = res
		out.Workbook = filepath.Join(opts.OutDir, export.GradesFileName(now()))
		return export.WriteGradesWorkbook(out.Workbook, res.Rows, res.MaxCuts)
	}

	stats, err := r.Run(ctx, opts.Patterns, handler, reduce)
	out.Stats = stats
	return out, err
}
