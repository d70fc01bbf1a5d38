package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/report"
)

// Sheet names of the course workbook.
const (
	SheetData           = "Datos"
	SheetResources      = "Recursos"
	SheetActivities     = "Actividades"
	SheetWithoutTeacher = "Sin profesor"
	SheetWithProblems   = "Con problemas"
	summaryPrefix       = "Resumen "
)

// CourseReport is everything the course workbook renders.
type CourseReport struct {
	LMSName     string
	Cut         int
	GeneratedAt time.Time
	Dimensions  []string // layout dimension names, in column order
	Result      *report.Result
}

// CourseReportFileName builds "reporte_<lms>_<YYYYMMDD>-<cut>.xlsx".
func CourseReportFileName(lmsName string, at time.Time, cut int) string {
	return fmt.Sprintf("reporte_%s_%s-%d.xlsx", lmsName, at.Format("20060102"), cut)
}

// SummarySheetName is the sheet holding the summary of one dimension.
func SummarySheetName(dimension string) string {
	return sheetName(summaryPrefix + dimension)
}

// WriteCourseWorkbook renders the data, resources, activities, summary and
// exclusion sheets into path.
func WriteCourseWorkbook(path string, r CourseReport) error {
	if r.Result == nil {
		return fmt.Errorf("export: nil report")
	}
	wb, err := newWorkbook()
	if err != nil {
		return err
	}
	defer wb.close()

	rows := r.Result.Rows

	data := make([][]any, 0, len(rows))
	for _, row := range rows {
		data = append(data, dataRow(r.Dimensions, row))
	}
	if err := wb.addTable(SheetData, dataHeader(r.Dimensions), data); err != nil {
		return err
	}

	byRes := sortedByLevel(rows, func(c domain.ClassifiedRow) domain.Level { return c.ResourceLevel })
	res := make([][]any, 0, len(rows))
	for _, row := range byRes {
		res = append(res, resourceRow(r.Dimensions, row))
	}
	if err := wb.addTable(SheetResources, resourceHeader(r.Dimensions), res); err != nil {
		return err
	}

	byAct := sortedByLevel(rows, func(c domain.ClassifiedRow) domain.Level { return c.ActivityLevel })
	act := make([][]any, 0, len(rows))
	for _, row := range byAct {
		act = append(act, activityRow(r.Dimensions, row))
	}
	if err := wb.addTable(SheetActivities, activityHeader(r.Dimensions), act); err != nil {
		return err
	}

	for _, s := range r.Result.Summaries {
		sum := make([][]any, 0, len(s.Rows))
		for _, g := range s.Rows {
			sum = append(sum, summaryRow(g))
		}
		if err := wb.addTable(SummarySheetName(s.Dimension), summaryHeader(s.Dimension), sum); err != nil {
			return err
		}
	}

	if err := wb.addTable(SheetWithoutTeacher, []string{"CURSO"}, listRows(r.Result.WithoutTeacher)); err != nil {
		return err
	}
	if err := wb.addTable(SheetWithProblems, []string{"CURSO"}, listRows(r.Result.WithProblems)); err != nil {
		return err
	}
	return wb.saveAs(path)
}

// sortedByLevel orders DEFICIENTE, INSUFICIENTE, SUFICIENTE, then by course.
func sortedByLevel(rows []domain.ClassifiedRow, level func(domain.ClassifiedRow) domain.Level) []domain.ClassifiedRow {
	out := append([]domain.ClassifiedRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := level(out[i]).Rank(), level(out[j]).Rank()
		if li != lj {
			return li < lj
		}
		return out[i].Course < out[j].Course
	})
	return out
}

func dataHeader(dims []string) []string {
	h := append([]string(nil), dims...)
	h = append(h, "DOCENTE", "CEDULA", "CURSO", "OFG", "ESTUDIANTES", "SECCIONES")
	for _, c := range domain.ResourceCounters {
		h = append(h, c.String())
	}
	h = append(h, "TOTAL RECURSOS", "NIVEL RECURSOS")
	for _, c := range domain.ActivityCounters {
		h = append(h, c.String())
	}
	return append(h, "TOTAL ACTIVIDADES", "ACTIVIDADES ABIERTAS", "NIVEL ACTIVIDADES",
		"SILABO", "HOJA DE VIDA", "GUIA DE ESTUDIO")
}

func dataRow(dims []string, r domain.ClassifiedRow) []any {
	out := dimValues(dims, r)
	out = append(out, r.TeacherName, r.TeacherID, r.Course, r.OFG, r.Students, r.Sections)
	for _, c := range domain.ResourceCounters {
		out = append(out, r.Counters.Get(c))
	}
	out = append(out, r.ResourceTotal, string(r.ResourceLevel))
	for _, c := range domain.ActivityCounters {
		out = append(out, r.Counters.Get(c))
	}
	return append(out, r.ActivityTotal, r.OpenActivities, string(r.ActivityLevel),
		yesNo(r.Documents.Syllabus), yesNo(r.Documents.Curriculum), yesNo(r.Documents.StudyGuide))
}

func resourceHeader(dims []string) []string {
	h := append(append([]string(nil), dims...), "DOCENTE", "CURSO", "OFG")
	for _, c := range domain.ResourceCounters {
		h = append(h, c.String())
	}
	return append(h, "TOTAL RECURSOS", "NIVEL RECURSOS")
}

func resourceRow(dims []string, r domain.ClassifiedRow) []any {
	out := append(dimValues(dims, r), r.TeacherName, r.Course, r.OFG)
	for _, c := range domain.ResourceCounters {
		out = append(out, r.Counters.Get(c))
	}
	return append(out, r.ResourceTotal, string(r.ResourceLevel))
}

func activityHeader(dims []string) []string {
	h := append(append([]string(nil), dims...), "DOCENTE", "CURSO", "OFG")
	for _, c := range domain.ActivityCounters {
		h = append(h, c.String())
	}
	return append(h, "TOTAL ACTIVIDADES", "ACTIVIDADES ABIERTAS", "NIVEL ACTIVIDADES")
}

func activityRow(dims []string, r domain.ClassifiedRow) []any {
	out := append(dimValues(dims, r), r.TeacherName, r.Course, r.OFG)
	for _, c := range domain.ActivityCounters {
		out = append(out, r.Counters.Get(c))
	}
	return append(out, r.ActivityTotal, r.OpenActivities, string(r.ActivityLevel))
}

func summaryHeader(dim string) []string {
	h := []string{dim, "TOTAL CURSOS"}
	for _, prefix := range []string{"RECURSOS", "ACTIVIDADES"} {
		for _, l := range domain.Levels {
			h = append(h, prefix+" "+string(l), "% "+prefix+" "+string(l))
		}
	}
	return h
}

func summaryRow(g domain.SummaryRow) []any {
	out := []any{g.Group, g.Total}
	for _, t := range []domain.TierCounts{g.Resources, g.Activities} {
		for _, l := range domain.Levels {
			out = append(out, t.Count(l), t.Pct(l))
		}
	}
	return out
}

func dimValues(dims []string, r domain.ClassifiedRow) []any {
	out := make([]any, 0, len(dims)+32)
	for _, d := range dims {
		out = append(out, r.Dimension(d))
	}
	return out
}

func listRows(items []string) [][]any {
	out := make([][]any, 0, len(items))
	for _, s := range items {
		out = append(out, []any{s})
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "SI"
	}
	return "NO"
}
