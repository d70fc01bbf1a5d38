package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/mappers"
	"github.com/jorgesolerrr/umet-reports/internal/staging"
)

func TestClassifyBoundaries(t *testing.T) {
	const T = 50
	assert.Equal(t, domain.Sufficient, Classify(T, T))
	assert.Equal(t, domain.Sufficient, Classify(T+10, T))
	assert.Equal(t, domain.Insufficient, Classify(T-1, T))
	assert.Equal(t, domain.Insufficient, Classify(T-3, T))
	assert.Equal(t, domain.Deficient, Classify(T-4, T))
	assert.Equal(t, domain.Insufficient, Classify(47, 50))
	assert.Equal(t, domain.Deficient, Classify(46, 50))
	assert.Equal(t, domain.Sufficient, Classify(0, 0))
}

func TestThresholdsFor(t *testing.T) {
	th := Thresholds{MetricResources: {1: 30, 2: 40}}
	v, err := th.For(MetricResources, 2)
	require.NoError(t, err)
	assert.Equal(t, 40, v)

	_, err = th.For(MetricResources, 3)
	assert.Error(t, err)
	_, err = th.For(MetricActivity, 1)
	assert.Error(t, err)
}

type memSource struct {
	kinds     map[string]string
	summaries map[string]domain.CourseSummary
	failKey   string
	listErr   error
}

func (m *memSource) KeysByPrefix(_ context.Context, _ string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []string
	for k := range m.kinds {
		out = append(out, k)
	}
	return out, nil
}

func (m *memSource) Kind(_ context.Context, key string) (string, error) {
	return m.kinds[key], nil
}

func (m *memSource) GetSummary(_ context.Context, key string) (domain.CourseSummary, error) {
	if key == m.failKey {
		return domain.CourseSummary{}, errors.New("corrupt fragment")
	}
	return m.summaries[key], nil
}

func (m *memSource) add(s domain.CourseSummary) {
	key := "P1:" + s.ShortName
	m.kinds[key] = staging.KindSummary
	m.summaries[key] = s
}

func summary(short, faculty, approval string, resources, activities int, teachers ...domain.Teacher) domain.CourseSummary {
	return domain.CourseSummary{
		ShortName:    short,
		FullName:     "Curso " + short,
		OFG:          "12",
		CategoryPath: []string{"GRADO", "2025-2026 I", faculty, "CARRERA " + faculty, approval},
		Teachers:     teachers,
		Counters:     domain.Counters{Files: resources, Quizzes: activities},
	}
}

var ana = domain.Teacher{FullName: "Ana Pérez", Username: "0912345678"}

func testParams() Params {
	return Params{
		Cut: 2,
		Thresholds: Thresholds{
			MetricResources: {1: 30, 2: 50},
			MetricActivity:  {1: 5, 2: 10},
		},
		Layout:  mappers.GradoLayout,
		Workers: 3,
	}
}

func TestAggregate(t *testing.T) {
	src := &memSource{kinds: map[string]string{"P1:modules@X": staging.KindModules}, summaries: map[string]domain.CourseSummary{}}
	src.add(summary("A", "FCI", "PRESENCIAL", 50, 10, ana))
	src.add(summary("B", "FCI", "EN LINEA", 47, 9, ana))
	src.add(summary("C", "FCS", "PRESENCIAL", 46, 2))
	src.add(summary("D", "FCE", "HIBRIDA", 60, 20, ana))
	bad := summary("E", "FCI", "PRESENCIAL", 1, 1, ana)
	bad.OFG = "N/A"
	src.add(bad)
	src.add(summary("F", "FCI", "PRESENCIAL", 0, 0, ana))
	src.failKey = "P1:F"

	res, err := Aggregate(context.Background(), src, []string{"P1"}, testParams())
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, "Curso A", res.Rows[0].Course)
	assert.Equal(t, domain.Sufficient, res.Rows[0].ResourceLevel)
	assert.Equal(t, domain.Sufficient, res.Rows[0].ActivityLevel)
	assert.Equal(t, domain.Insufficient, res.Rows[1].ResourceLevel)
	assert.Equal(t, domain.Insufficient, res.Rows[1].ActivityLevel)
	assert.Equal(t, domain.Deficient, res.Rows[2].ResourceLevel)
	assert.Equal(t, domain.Deficient, res.Rows[2].ActivityLevel)

	// sin profesor: fila emitida con el marcador
	assert.Equal(t, []string{"Curso C"}, res.WithoutTeacher)
	assert.Equal(t, domain.NoTeacher, res.Rows[2].TeacherName)
	assert.Equal(t, domain.NoTeacher, res.Rows[2].TeacherID)
	assert.Equal(t, "0912345678", res.Rows[0].TeacherID)
	assert.Equal(t, 12, res.Rows[0].OFG)

	assert.Equal(t, []string{"Curso E", "P1:F"}, res.WithProblems)

	require.Len(t, res.Summaries, 2)
	fac := res.Summaries[0]
	assert.Equal(t, mappers.DimFaculty, fac.Dimension)
	require.Len(t, fac.Rows, 3)
	assert.Equal(t, "FCI", fac.Rows[0].Group)
	assert.Equal(t, 2, fac.Rows[0].Total)
	assert.Equal(t, 1, fac.Rows[0].Resources.Sufficient)
	assert.Equal(t, 50.0, fac.Rows[0].Resources.SufficientPct)
	assert.Equal(t, "FCS", fac.Rows[1].Group)
	assert.Equal(t, "FCE", fac.Rows[2].Group, "filtered group still listed")
	assert.Equal(t, 0, fac.Rows[2].Total)
	assert.Equal(t, 0.0, fac.Rows[2].Resources.DeficientPct)
}

func TestAggregate_NoFilter(t *testing.T) {
	src := &memSource{kinds: map[string]string{}, summaries: map[string]domain.CourseSummary{}}
	src.add(summary("D", "FCE", "HIBRIDA", 60, 20, ana))
	p := testParams()
	p.AcceptedApprovalTypes = []string{}

	res, err := Aggregate(context.Background(), src, []string{"P1"}, p)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestAggregate_WithoutTeacherBeforeFilters(t *testing.T) {
	src := &memSource{kinds: map[string]string{}, summaries: map[string]domain.CourseSummary{}}
	src.add(summary("H", "FCE", "HIBRIDA", 60, 20))
	noOFG := summary("N", "FCI", "PRESENCIAL", 5, 5)
	noOFG.OFG = "X"
	src.add(noOFG)
	src.add(summary("P", "FCI", "PRESENCIAL", 50, 10))

	res, err := Aggregate(context.Background(), src, []string{"P1"}, testParams())
	require.NoError(t, err)

	// filtrado por tipo de aprobación o con problemas, igual cuenta como sin profesor
	assert.Equal(t, []string{"Curso H", "Curso N", "Curso P"}, res.WithoutTeacher)
	assert.Equal(t, []string{"Curso N"}, res.WithProblems)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Curso P", res.Rows[0].Course)
	assert.Equal(t, domain.NoTeacher, res.Rows[0].TeacherName)
}

func TestAggregate_MissingThreshold(t *testing.T) {
	p := testParams()
	p.Cut = 4
	_, err := Aggregate(context.Background(), &memSource{}, []string{"P1"}, p)
	assert.Error(t, err)
}

func TestAggregate_StoreUnavailable(t *testing.T) {
	src := &memSource{listErr: fmt.Errorf("%w: scan", staging.ErrStoreUnavailable)}
	_, err := Aggregate(context.Background(), src, []string{"P1"}, testParams())
	assert.ErrorIs(t, err, staging.ErrStoreUnavailable)
}

func TestSummarize(t *testing.T) {
	rows := []domain.ClassifiedRow{
		{CourseRow: domain.CourseRow{Dimensions: []domain.Dimension{{Name: "CARRERA", Value: "X"}}}, ResourceLevel: domain.Sufficient, ActivityLevel: domain.Deficient},
		{CourseRow: domain.CourseRow{Dimensions: []domain.Dimension{{Name: "CARRERA", Value: "X"}}}, ResourceLevel: domain.Sufficient, ActivityLevel: domain.Insufficient},
		{CourseRow: domain.CourseRow{Dimensions: []domain.Dimension{{Name: "CARRERA", Value: "X"}}}, ResourceLevel: domain.Deficient, ActivityLevel: domain.Insufficient},
		{CourseRow: domain.CourseRow{Dimensions: []domain.Dimension{{Name: "CARRERA", Value: "Y"}}}, ResourceLevel: domain.Deficient, ActivityLevel: domain.Sufficient},
	}
	s := Summarize("CARRERA", rows, []string{"Z", "Y"})
	require.Len(t, s.Rows, 3)
	x := s.Rows[0]
	assert.Equal(t, "X", x.Group)
	assert.Equal(t, 3, x.Total)
	assert.Equal(t, 66.7, x.Resources.SufficientPct)
	assert.Equal(t, 33.3, x.Resources.DeficientPct)
	assert.Equal(t, 2, x.Activities.Insufficient)
	assert.Equal(t, 66.7, x.Activities.InsufficientPct)
	assert.Equal(t, "Y", s.Rows[1].Group)
	assert.Equal(t, 100.0, s.Rows[1].Activities.SufficientPct)
	assert.Equal(t, domain.SummaryRow{Group: "Z"}, s.Rows[2])
}

func TestAggregateFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	st, err := staging.Connect(context.Background(), staging.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	day := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []domain.CourseSummary{
		summary("A", "FCI", "PRESENCIAL", 55, 12, ana),
		summary("B", "FCS", "EN LINEA", 10, 1),
	} {
		s.ExtractedAt = day
		require.NoError(t, st.PutFragment(ctx, "P1", domain.StagedFragment{
			Summary: s,
			Modules: domain.ModuleIndex{1: {ShortName: s.ShortName, Type: "quiz"}},
		}))
	}
	other := summary("Z", "FCI", "PRESENCIAL", 1, 1, ana)
	other.ExtractedAt = day
	require.NoError(t, st.PutFragment(ctx, "P2", domain.StagedFragment{Summary: other}))

	res, err := Aggregate(ctx, st, []string{"P1"}, testParams())
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, domain.Sufficient, res.Rows[0].ResourceLevel)
	assert.Equal(t, domain.Deficient, res.Rows[1].ResourceLevel)
	assert.Equal(t, []string{"Curso B"}, res.WithoutTeacher)
	assert.Empty(t, res.WithProblems)
}

type memGrades struct {
	rows map[string][]domain.GradeRow
}

func (m *memGrades) KeysByPrefix(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for k := range m.rows {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memGrades) Kind(_ context.Context, _ string) (string, error) { return staging.KindGrades, nil }

func (m *memGrades) GetGradeRows(_ context.Context, key string) ([]domain.GradeRow, error) {
	return m.rows[key], nil
}

func TestCollectGrades(t *testing.T) {
	src := &memGrades{rows: map[string][]domain.GradeRow{
		"GRA-PA66:B:2025-10-01":   {{Course: "B", Student: "z", Cuts: []string{"1"}}, {Course: "B", Student: "a", Cuts: []string{"1", "2", "3"}}},
		"UAFTT-PA12:A:2025-10-01": {{Course: "A", Student: "m", Cuts: []string{domain.NoGrade}}},
		"OTHER:C:2025-10-01":      {{Course: "C"}},
	}}
	res, err := CollectGrades(context.Background(), src, []string{"GRA-PA66", "UAFTT-PA12"}, 2, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "A", res.Rows[0].Course)
	assert.Equal(t, "a", res.Rows[1].Student)
	assert.Equal(t, 3, res.MaxCuts)
}
