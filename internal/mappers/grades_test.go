package mappers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/providers/moodle"
)

func f64(v float64) *float64 { return &v }

func TestBuildGradeRows(t *testing.T) {
	api := newStubAPI()
	course := moodle.Course{ID: 9, ShortName: "GRA-PA66-4321-A-2025", FullName: "Cálculo", CategoryID: 5}
	api.enrolled[9] = moodle.Enrolled{Teachers: []moodle.User{{FullName: "Luis Mora", Username: "0911111111"}}}
	api.grades[9] = []moodle.UserGrades{
		{UserFullName: "Est Uno", UserIDNumber: "001", GradeItems: []moodle.GradeItem{
			{ItemType: "mod", GradeRaw: f64(10)},
			{ItemType: "category", GradeRaw: f64(8.5)},
			{ItemType: "category"},
			{ItemType: "course", GradeRaw: f64(8.5)},
		}},
		{UserFullName: "Est Dos", UserIDNumber: "002", GradeItems: []moodle.GradeItem{
			{ItemType: "category", GradeRaw: f64(7)},
		}},
	}

	rows, err := BuildGradeRows(context.Background(), api, course, GradeOptions{OFGPos: -3, PeriodPosition: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2025-2026 I", rows[0].Period)
	assert.Equal(t, "4321", rows[0].OFG)
	assert.Equal(t, "Luis Mora", rows[0].TeacherName)
	assert.Equal(t, "GRA-PA66-4321-A-2025", rows[0].Course)
	assert.Equal(t, []string{"8.5", domain.NoGrade}, rows[0].Cuts)
	assert.Equal(t, []string{"7"}, rows[1].Cuts)
}

func TestBuildGradeRows_NoTeacherShortPath(t *testing.T) {
	api := newStubAPI()
	course := moodle.Course{ID: 9, ShortName: "X", FullName: "Cálculo", CategoryID: 1}
	api.grades[9] = []moodle.UserGrades{{UserFullName: "Est"}}

	rows, err := BuildGradeRows(context.Background(), api, course, GradeOptions{OFGPos: -3, PeriodPosition: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, NotAvailable, rows[0].Period)
	assert.Equal(t, NotAvailable, rows[0].OFG)
	assert.Equal(t, domain.NoTeacher, rows[0].TeacherName)
	assert.Empty(t, rows[0].Cuts)
}
