package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jorgesolerrr/umet-reports/internal/concurrency"
	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/mappers"
	"github.com/jorgesolerrr/umet-reports/internal/staging"
)

// DefaultApprovalTypes are the approval types kept in the report.
var DefaultApprovalTypes = []string{"PRESENCIAL", "EN LINEA"}

// DefaultSummaryDimensions get one summary sheet each.
var DefaultSummaryDimensions = []string{mappers.DimFaculty, mappers.DimCareer}

// Source is the staged data the aggregator drains.
type Source interface {
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	Kind(ctx context.Context, key string) (string, error)
	GetSummary(ctx context.Context, key string) (domain.CourseSummary, error)
}

type Params struct {
	Cut        int
	Thresholds Thresholds
	Layout     mappers.Layout

	// ApprovalDimension names the dimension checked against AcceptedApprovalTypes.
	ApprovalDimension string
	// nil means DefaultApprovalTypes; an empty non-nil slice disables the filter.
	AcceptedApprovalTypes []string
	SummaryDimensions     []string

	Workers int
	Log     *logger.Logger
}

type Result struct {
	Rows           []domain.ClassifiedRow
	WithoutTeacher []string
	WithProblems   []string
	Summaries      []Summary
}

// Aggregate drains every summary staged under the scopes, classifies each
// course and builds the per-dimension summaries. Per-course failures end up
// in WithProblems; only store or threshold errors abort.
func Aggregate(ctx context.Context, src Source, scopes []string, p Params) (*Result, error) {
	log := logger.OrNop(p.Log)

	resThreshold, err := p.Thresholds.For(MetricResources, p.Cut)
	if err != nil {
		return nil, err
	}
	actThreshold, err := p.Thresholds.For(MetricActivity, p.Cut)
	if err != nil {
		return nil, err
	}
	if len(p.Layout.Dimensions) == 0 {
		p.Layout = mappers.GradoLayout
	}
	approvalDim := p.ApprovalDimension
	if approvalDim == "" {
		approvalDim = mappers.DimApproval
	}
	accepted := p.AcceptedApprovalTypes
	if accepted == nil {
		accepted = DefaultApprovalTypes
	}
	dims := p.SummaryDimensions
	if len(dims) == 0 {
		dims = DefaultSummaryDimensions
	}

	summaries, problems, err := drainSummaries(ctx, src, scopes, p.Workers, log)
	if err != nil {
		return nil, err
	}

	out := &Result{WithProblems: problems}
	seeds := make(map[string]map[string]struct{}, len(dims))
	for _, d := range dims {
		seeds[d] = map[string]struct{}{}
	}

	for _, s := range summaries {
		teacher, hasTeacher := domain.FirstTeacher(s.Teachers)
		if !hasTeacher {
			out.WithoutTeacher = append(out.WithoutTeacher, courseLabel(s))
		}
		row, err := buildRow(s, teacher, p.Layout, log)
		if err != nil {
			log.Warn("course with problems", "course", s.ShortName, "error", err)
			out.WithProblems = append(out.WithProblems, courseLabel(s))
			continue
		}
		for _, d := range dims {
			seeds[d][row.Dimension(d)] = struct{}{}
		}
		if !approvalAccepted(row.Dimension(approvalDim), accepted) {
			log.Debug("course filtered by approval type", "course", s.ShortName, "type", row.Dimension(approvalDim))
			continue
		}
		out.Rows = append(out.Rows, domain.ClassifiedRow{
			CourseRow:     row,
			ResourceLevel: Classify(row.ResourceTotal, resThreshold),
			ActivityLevel: Classify(row.ActivityTotal, actThreshold),
		})
	}

	sort.SliceStable(out.Rows, func(i, j int) bool { return out.Rows[i].Course < out.Rows[j].Course })
	sort.Strings(out.WithoutTeacher)
	sort.Strings(out.WithProblems)

	for _, d := range dims {
		out.Summaries = append(out.Summaries, Summarize(d, out.Rows, setKeys(seeds[d])))
	}

	log.Info("aggregation finished",
		"scopes", strings.Join(scopes, ","),
		"rows", len(out.Rows),
		"without_teacher", len(out.WithoutTeacher),
		"with_problems", len(out.WithProblems),
	)
	return out, nil
}

// buildRow flattens a staged summary into a report row.
func buildRow(s domain.CourseSummary, teacher domain.Teacher, layout mappers.Layout, log *logger.Logger) (domain.CourseRow, error) {
	ofg, err := strconv.Atoi(strings.TrimSpace(s.OFG))
	if err != nil {
		return domain.CourseRow{}, fmt.Errorf("ofg %q is not numeric", s.OFG)
	}
	dims, complete := layout.Extract(s.CategoryPath)
	if !complete {
		log.Warn("category path shorter than layout", "course", s.ShortName, "layout", layout.Name, "path", strings.Join(s.CategoryPath, "/"))
	}
	return domain.CourseRow{
		Dimensions:     dims,
		TeacherName:    teacher.FullName,
		TeacherID:      teacher.Username,
		Course:         courseLabel(s),
		OFG:            ofg,
		Students:       s.Students,
		Sections:       s.SectionCount,
		Counters:       s.Counters,
		ResourceTotal:  s.Counters.ResourceTotal(),
		ActivityTotal:  s.Counters.ActivityTotal(),
		OpenActivities: s.OpenActivities,
		Documents:      s.Documents,
	}, nil
}

func courseLabel(s domain.CourseSummary) string {
	if s.FullName != "" {
		return s.FullName
	}
	return s.ShortName
}

func approvalAccepted(v string, accepted []string) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, a := range accepted {
		if strings.EqualFold(strings.TrimSpace(v), a) {
			return true
		}
	}
	return false
}

func isUnavailable(err error) bool {
	return errors.Is(err, staging.ErrStoreUnavailable)
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// drainSummaries lists the scope keys and reads the summaries in parallel.
// Keys that cannot be read are returned as problems.
func drainSummaries(ctx context.Context, src Source, scopes []string, workers int, log *logger.Logger) ([]domain.CourseSummary, []string, error) {
	var keys []string
	for _, scope := range scopes {
		ks, err := src.KeysByPrefix(ctx, staging.ScopePrefix(scope))
		if err != nil {
			return nil, nil, fmt.Errorf("list staged fragments for %s: %w", scope, err)
		}
		keys = append(keys, ks...)
	}

	var (
		mu        sync.Mutex
		summaries []domain.CourseSummary
		problems  []string
	)
	res := concurrency.Run(ctx, keys, concurrency.ParallelOptions{MaxWorkers: workers, Log: log}, func(ctx context.Context, chunk []string) (int, error) {
		n := 0
		for _, key := range chunk {
			kind, err := src.Kind(ctx, key)
			if err == nil && kind != staging.KindSummary {
				continue
			}
			var s domain.CourseSummary
			if err == nil {
				s, err = src.GetSummary(ctx, key)
			}
			if err != nil && isUnavailable(err) {
				return n, err
			}
			mu.Lock()
			if err != nil {
				log.Warn("unreadable staged fragment", "key", key, "error", err)
				problems = append(problems, key)
			} else {
				summaries = append(summaries, s)
				n++
			}
			mu.Unlock()
		}
		return n, nil
	})
	if len(res.Errors) > 0 {
		return nil, nil, fmt.Errorf("read staged fragments: %w", res.Errors[0])
	}
	return summaries, problems, nil
}
