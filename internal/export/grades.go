package export

import (
	"fmt"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
)

const SheetGrades = "Calificaciones"

// GradesFileName builds "reporte_calificaciones_<YYYYMMDD>.xlsx".
func GradesFileName(at time.Time) string {
	return fmt.Sprintf("reporte_calificaciones_%s.xlsx", at.Format("20060102"))
}

func gradesHeader(cuts int) []string {
	h := []string{"PERIODO", "OFG", "DOCENTE", "CEDULA DOCENTE", "CURSO", "ESTUDIANTE", "CEDULA ESTUDIANTE"}
	for i := 1; i <= cuts; i++ {
		h = append(h, fmt.Sprintf("CORTE_%d", i))
	}
	return h
}

// WriteGradesWorkbook renders one sheet with a CORTE_n column per cut.
// Rows with fewer cuts leave the trailing columns empty.
func WriteGradesWorkbook(path string, rows []domain.GradeRow, cuts int) error {
	for _, r := range rows {
		if len(r.Cuts) > cuts {
			cuts = len(r.Cuts)
		}
	}
	wb, err := newWorkbook()
	if err != nil {
		return err
	}
	defer wb.close()

	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		row := []any{r.Period, r.OFG, r.TeacherName, r.TeacherID, r.Course, r.Student, r.StudentID}
		for i := 0; i < cuts; i++ {
			v := ""
			if i < len(r.Cuts) {
				v = r.Cuts[i]
			}
			row = append(row, v)
		}
		data = append(data, row)
	}
	if err := wb.addTable(SheetGrades, gradesHeader(cuts), data); err != nil {
		return err
	}
	return wb.saveAs(path)
}
