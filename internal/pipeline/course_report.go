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

// CourseStore is the staging surface of the course report workflow.
type CourseStore interface {
	Flusher
	FragmentWriter
	report.Source
}

type CourseReportOptions struct {
	LMSName       string
	Scopes        []string
	Parse         mappers.ParseOptions
	Params        report.Params
	OutDir        string
	WriteCSV      bool
	WriteSnapshot bool
	Now           func() time.Time
}

// CourseReportOutput lists what a run produced.
type CourseReportOutput struct {
	Stats    RunStats
	Result   *report.Result
	Workbook string
	CSV      string
	Snapshot string
}

// NewCourseReportOptions maps one configured LMS onto workflow options.
func NewCourseReportOptions(cfg config.Config, l config.LMSConfig) (CourseReportOptions, error) {
	layout, ok := mappers.LayoutByName(l.Layout)
	if !ok {
		return CourseReportOptions{}, fmt.Errorf("lms %s: unknown layout %q", l.Name, l.Layout)
	}
	th := report.Thresholds{}
	for metric, byCut := range l.Thresholds {
		th[metric] = byCut
	}
	return CourseReportOptions{
		LMSName: l.Name,
		Scopes:  l.Periods,
		Parse: mappers.ParseOptions{
			OFGPos:            l.OFGPos,
			AnnouncementNames: l.AnnouncementNames,
			ClassLinkPatterns: l.ClassLinkPatterns,
		},
		Params: report.Params{
			Cut:                   l.CurrentCut,
			Thresholds:            th,
			Layout:                layout,
			AcceptedApprovalTypes: l.ApprovalTypes,
			SummaryDimensions:     l.SummaryDimensions,
			Workers:               cfg.Workers,
		},
		OutDir:        cfg.ReportDir,
		WriteCSV:      cfg.WriteCSV,
		WriteSnapshot: cfg.WriteSnap,
	}, nil
}

// RunCourseReport extracts every period of one LMS, aggregates the staged
// summaries and writes the workbook (plus CSV and snapshot when asked).
func RunCourseReport(ctx context.Context, r *Runner, store CourseStore, opts CourseReportOptions) (*CourseReportOutput, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	opts.Parse.Log = r.Log
	if opts.Parse.Now == nil {
		opts.Parse.Now = now
	}
	if opts.Parse.Categories == nil {
		opts.Parse.Categories = mappers.NewCategoryCache()
	}
	parser, err := mappers.NewParser(opts.Parse)
	if err != nil {
		return nil, err
	}
	if opts.Params.Log == nil {
		opts.Params.Log = r.Log
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("report dir: %w", err)
	}

	out := &CourseReportOutput{}
	handler := func(scope string) CourseHandler {
		return &SummaryHandler{Store: store, Scope: scope, Parser: parser}
	}
	reduce := func(ctx context.Context, runID string) error {
		res, err := report.Aggregate(ctx, store, opts.Scopes, opts.Params)
		if err != nil {
			return err
		}
		out.Result = res
		at := now()
		dims := opts.Params.Layout.Names()

		out.Workbook = filepath.Join(opts.OutDir, export.CourseReportFileName(opts.LMSName, at, opts.Params.Cut))
		if err := export.WriteCourseWorkbook(out.Workbook, export.CourseReport{
			LMSName:     opts.LMSName,
			Cut:         opts.Params.Cut,
			GeneratedAt: at,
			Dimensions:  dims,
			Result:      res,
		}); err != nil {
			return err
		}
		if opts.WriteCSV {
			out.CSV = replaceExt(out.Workbook, ".csv")
			if err := writeFile(out.CSV, func(f *os.File) error {
				return export.WriteCoursesCSV(f, dims, res.Rows)
			}); err != nil {
				return err
			}
		}
		if opts.WriteSnapshot {
			out.Snapshot = filepath.Join(opts.OutDir, export.SnapshotFileName(opts.LMSName, at, opts.Params.Cut))
			snap := export.Snapshot{
				RunID:       runID,
				LMSName:     opts.LMSName,
				Scopes:      opts.Scopes,
				Cut:         opts.Params.Cut,
				Dimensions:  dims,
				GeneratedAt: at,
				Result:      res,
			}
			if err := writeFile(out.Snapshot, func(f *os.File) error { return export.WriteSnapshot(f, snap) }); err != nil {
				return err
			}
		}
		return nil
	}

	stats, err := r.Run(ctx, opts.Scopes, handler, reduce)
	out.Stats = stats
	if err != nil {
		return out, err
	}
	return out, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func replaceExt(p, ext string) string {
	return p[:len(p)-len(filepath.Ext(p))] + ext
}
