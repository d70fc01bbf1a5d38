package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/concurrency"
	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/mappers"
	"github.com/jorgesolerrr/umet-reports/internal/providers"
	"github.com/jorgesolerrr/umet-reports/internal/providers/moodle"
	"github.com/jorgesolerrr/umet-reports/internal/staging"
)

// templateMarker flags template courses, which never enter a report.
const templateMarker = "PLANTILLA"

// ErrCourseNotFound is returned by handlers for courses the LMS no longer has.
var ErrCourseNotFound = errors.New("course not found")

// CourseHandler extracts and stages one course.
type CourseHandler interface {
	Handle(ctx context.Context, api providers.CourseAPI, course moodle.Course) error
}

// FragmentWriter is the staging surface used by SummaryHandler.
type FragmentWriter interface {
	PutFragment(ctx context.Context, scope string, f domain.StagedFragment) error
}

// SummaryHandler builds the course summary and stages it under Scope.
type SummaryHandler struct {
	Store  FragmentWriter
	Scope  string
	Parser *mappers.Parser
}

func (h *SummaryHandler) Handle(ctx context.Context, api providers.CourseAPI, course moodle.Course) error {
	frag, err := h.Parser.BuildCourseSummary(ctx, api, course.ID)
	if err != nil {
		return err
	}
	if frag == nil {
		return ErrCourseNotFound
	}
	return h.Store.PutFragment(ctx, h.Scope, *frag)
}

// GradeWriter is the staging surface used by GradesHandler.
type GradeWriter interface {
	PutGradeRows(ctx context.Context, scope, course string, date time.Time, rows []domain.GradeRow) error
}

// GradesHandler stages the per-student grade rows of a course.
type GradesHandler struct {
	Store   GradeWriter
	Scope   string
	Options mappers.GradeOptions
	Now     func() time.Time
}

func (h *GradesHandler) Handle(ctx context.Context, api providers.CourseAPI, course moodle.Course) error {
	rows, err := mappers.BuildGradeRows(ctx, api, course, h.Options)
	if err != nil {
		return err
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return h.Store.PutGradeRows(ctx, h.Scope, course.ShortName, now(), rows)
}

// Extractor fans a course list out to workers, one API client per chunk.
type Extractor struct {
	Factory providers.Factory
	Workers int
	Log     *logger.Logger
}

// Courses lists the courses matching scope, minus template courses.
func (e *Extractor) Courses(ctx context.Context, scope string) ([]moodle.Course, error) {
	courses, err := e.Factory().SearchCourses(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := courses[:0]
	for _, c := range courses {
		if isTemplate(c) {
			continue
		}
		out = append(out, c)
	}
	logger.OrNop(e.Log).Info("courses found", "scope", scope, "courses", len(out), "templates", len(courses)-len(out))
	return out, nil
}

// Extract runs h over every course. Per-course failures are logged and not
// counted; a store outage fails the chunk.
func (e *Extractor) Extract(ctx context.Context, courses []moodle.Course, h CourseHandler) concurrency.Result {
	log := logger.OrNop(e.Log)
	opts := concurrency.ParallelOptions{MaxWorkers: e.Workers, Log: log}

	return concurrency.Run(ctx, courses, opts, func(ctx context.Context, chunk []moodle.Course) (int, error) {
		api := e.Factory()
		ok := 0
		for _, c := range chunk {
			if isTemplate(c) {
				continue
			}
			err := h.Handle(ctx, api, c)
			switch {
			case err == nil:
				ok++
			case errors.Is(err, staging.ErrStoreUnavailable):
				return ok, err
			case errors.Is(err, ErrCourseNotFound):
				log.Warn("course skipped", "course", c.ShortName, "course_id", c.ID, "reason", "not found")
			default:
				log.Error("course failed", "course", c.ShortName, "course_id", c.ID, "error", err)
			}
		}
		return ok, nil
	})
}

func isTemplate(c moodle.Course) bool {
	return strings.Contains(strings.ToUpper(c.ShortName), templateMarker)
}
