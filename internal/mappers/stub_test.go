package mappers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jorgesolerrr/umet-reports/internal/providers/moodle"
)

type stubAPI struct {
	courses       map[int]moodle.Course
	categories    map[int]moodle.Category
	enrolled      map[int]moodle.Enrolled
	contents      map[int][]moodle.Section
	grades        map[int][]moodle.UserGrades
	categoryCalls int
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		courses: map[int]moodle.Course{},
		categories: map[int]moodle.Category{
			1: {ID: 1, Name: "MOODLE GRADO", Path: "/1"},
			2: {ID: 2, Name: "2025-2026 I", Path: "/1/2"},
			3: {ID: 3, Name: "FACULTAD DE CIENCIAS", Path: "/1/2/3"},
			4: {ID: 4, Name: "INGENIERIA", Path: "/1/2/3/4"},
			5: {ID: 5, Name: "PRESENCIAL", Path: "/1/2/3/4/5"},
		},
		enrolled: map[int]moodle.Enrolled{},
		contents: map[int][]moodle.Section{},
		grades:   map[int][]moodle.UserGrades{},
	}
}

func (s *stubAPI) CourseByField(_ context.Context, field, value string) (*moodle.Course, error) {
	id, err := strconv.Atoi(value)
	if err != nil || field != "id" {
		return nil, errors.New("unsupported lookup")
	}
	c, ok := s.courses[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *stubAPI) EnrolledUsers(_ context.Context, courseID int) (moodle.Enrolled, error) {
	return s.enrolled[courseID], nil
}

func (s *stubAPI) CourseContents(_ context.Context, courseID int) ([]moodle.Section, error) {
	return s.contents[courseID], nil
}

func (s *stubAPI) CategoryInfo(_ context.Context, id int) (moodle.Category, error) {
	s.categoryCalls++
	c, ok := s.categories[id]
	if !ok {
		return moodle.Category{}, errors.New("category not found")
	}
	return c, nil
}

func (s *stubAPI) GradeItems(_ context.Context, courseID int) ([]moodle.UserGrades, error) {
	return s.grades[courseID], nil
}
