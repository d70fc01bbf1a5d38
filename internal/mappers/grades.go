package mappers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/providers/moodle"
)

// GradeReader is the LMS surface used by the grades workflow.
type GradeReader interface {
	CategoryReader
	EnrolledUsers(ctx context.Context, courseID int) (moodle.Enrolled, error)
	GradeItems(ctx context.Context, courseID int) ([]moodle.UserGrades, error)
}

// GradeOptions configure BuildGradeRows.
type GradeOptions struct {
	OFGPos         int
	PeriodPosition int // 1-based category path position holding the period
	Categories     *CategoryCache
	Log            *logger.Logger
}

// gradeCutType is the item type of the per-cut category totals.
const gradeCutType = "category"

// BuildGradeRows emits one row per student of course, with one cut value per
// grade category total in gradebook order.
func BuildGradeRows(ctx context.Context, api GradeReader, course moodle.Course, opts GradeOptions) ([]domain.GradeRow, error) {
	log := logger.OrNop(opts.Log)

	_, names, err := CategoryPath(ctx, api, opts.Categories, course.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", course.ID, err)
	}
	period := NotAvailable
	if opts.PeriodPosition >= 1 && opts.PeriodPosition <= len(names) {
		period = names[opts.PeriodPosition-1]
	} else {
		log.Warn("category path too short for period", "course", course.ShortName, "path", strings.Join(names, "/"))
	}

	ofg, ok := ExtractOFG(course.ShortName, opts.OFGPos)
	if !ok {
		ofg = NotAvailable
	}

	enrolled, err := api.EnrolledUsers(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", course.ID, err)
	}
	teacher, _ := domain.FirstTeacher(toTeachers(enrolled.Teachers))

	grades, err := api.GradeItems(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", course.ID, err)
	}

	rows := make([]domain.GradeRow, 0, len(grades))
	for _, ug := range grades {
		rows = append(rows, domain.GradeRow{
			Period:      period,
			OFG:         ofg,
			TeacherName: teacher.FullName,
			TeacherID:   teacher.Username,
			Course:      course.ShortName,
			Student:     ug.UserFullName,
			StudentID:   ug.UserIDNumber,
			Cuts:        gradeCuts(ug.GradeItems),
		})
	}
	return rows, nil
}

func gradeCuts(items []moodle.GradeItem) []string {
	var cuts []string
	for _, it := range items {
		if it.ItemType != gradeCutType {
			continue
		}
		if it.GradeRaw == nil {
			cuts = append(cuts, domain.NoGrade)
			continue
		}
		cuts = append(cuts, strconv.FormatFloat(*it.GradeRaw, 'f', -1, 64))
	}
	return cuts
}
