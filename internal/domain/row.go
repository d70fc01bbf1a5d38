package domain

// Level is the sufficiency classification of a resource or activity total.
type Level string

const (
	Sufficient   Level = "SUFICIENTE"
	Insufficient Level = "INSUFICIENTE"
	Deficient    Level = "DEFICIENTE"
)

// Levels lists every level in report order (worst first).
var Levels = []Level{Deficient, Insufficient, Sufficient}

// Rank orders levels worst first; unknown levels sort last.
func (l Level) Rank() int {
	switch l {
	case Deficient:
		return 0
	case Insufficient:
		return 1
	case Sufficient:
		return 2
	}
	return 3
}

// Dimension is one named category-path value attached to a row (FACULTAD, CARRERA, ...).
type Dimension struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CourseRow is a course summary re-expressed as a report row, before classification.
type CourseRow struct {
	Dimensions     []Dimension    `json:"dimensions"`
	TeacherName    string         `json:"teacherName"`
	TeacherID      string         `json:"teacherId"`
	Course         string         `json:"course"`
	OFG            int            `json:"ofg"`
	Students       int            `json:"students"`
	Sections       int            `json:"sections"`
	Counters       Counters       `json:"counters"`
	ResourceTotal  int            `json:"resourceTotal"`
	ActivityTotal  int            `json:"activityTotal"`
	OpenActivities int            `json:"openActivities"`
	Documents      AdminDocuments `json:"documents"`
}

// Dimension returns the value of the named dimension, or "" when absent.
func (r CourseRow) Dimension(name string) string {
	for _, d := range r.Dimensions {
		if d.Name == name {
			return d.Value
		}
	}
	return ""
}

// ClassifiedRow is a CourseRow plus the two sufficiency labels.
type ClassifiedRow struct {
	CourseRow
	ResourceLevel Level `json:"resourceLevel"`
	ActivityLevel Level `json:"activityLevel"`
}

// TierCounts counts rows per level; percentages are over the group total.
type TierCounts struct {
	Sufficient      int     `json:"sufficient"`
	Insufficient    int     `json:"insufficient"`
	Deficient       int     `json:"deficient"`
	SufficientPct   float64 `json:"sufficientPct"`
	InsufficientPct float64 `json:"insufficientPct"`
	DeficientPct    float64 `json:"deficientPct"`
}

// Count returns the raw count for a level.
func (t TierCounts) Count(l Level) int {
	switch l {
	case Sufficient:
		return t.Sufficient
	case Insufficient:
		return t.Insufficient
	case Deficient:
		return t.Deficient
	}
	return 0
}

// Pct returns the percentage for a level.
func (t TierCounts) Pct(l Level) float64 {
	switch l {
	case Sufficient:
		return t.SufficientPct
	case Insufficient:
		return t.InsufficientPct
	case Deficient:
		return t.DeficientPct
	}
	return 0
}

// SummaryRow aggregates the rows sharing one grouping-dimension value.
type SummaryRow struct {
	Group      string     `json:"group"`
	Total      int        `json:"total"`
	Resources  TierCounts `json:"resources"`
	Activities TierCounts `json:"activities"`
}

// NoGrade fills grade cuts without a raw grade.
const NoGrade = "SIN CALIFICACION"

// GradeRow is one student of one course in the grades report.
type GradeRow struct {
	Period      string   `json:"period"`
	OFG         string   `json:"ofg"`
	TeacherName string   `json:"teacherName"`
	TeacherID   string   `json:"teacherId"`
	Course      string   `json:"course"`
	Student     string   `json:"student"`
	StudentID   string   `json:"studentId"`
	Cuts        []string `json:"cuts"` // CORTE_1..CORTE_n
}
