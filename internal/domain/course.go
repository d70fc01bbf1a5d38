package domain

import "time"

// CourseSummary is the flat, counted view of one Moodle course.
// The extraction phase builds exactly one per course and stages it; the
// aggregation phase reads it back and turns it into a report row.
type CourseSummary struct {
	CourseID       int       `json:"courseId"`
	ShortName      string    `json:"shortName"`
	FullName       string    `json:"fullName"`
	CategoryIDPath string    `json:"categoryIdPath"`
	CategoryPath   []string  `json:"categoryPath"` // root -> leaf names
	SectionCount   int       `json:"sectionCount"`
	Students       int       `json:"students"`
	Teachers       []Teacher `json:"teachers"`
	OFG            string    `json:"ofg"`

	Counters       Counters         `json:"counters"`
	OpenActivities int              `json:"openActivities"`
	Documents      AdminDocuments   `json:"documents"`
	Sections       []SectionSummary `json:"sections"`

	ExtractedAt time.Time `json:"extractedAt"`
}

// SectionSummary keeps per-section counters. Hidden sections stay as
// zero-valued placeholders so positions match the course layout.
type SectionSummary struct {
	ID             int      `json:"id"`
	Number         int      `json:"number"`
	Name           string   `json:"name"`
	Visible        bool     `json:"visible"`
	Counters       Counters `json:"counters"`
	OpenActivities int      `json:"openActivities"`
}

// AdminDocuments flags administrative documents found in file/folder modules.
type AdminDocuments struct {
	Syllabus   bool `json:"syllabus"`
	Curriculum bool `json:"curriculum"`
	StudyGuide bool `json:"studyGuide"`
}

// ModuleRef is one entry of the module -> course index staged next to the summary.
type ModuleRef struct {
	CourseID  int    `json:"courseId"`
	ShortName string `json:"shortName"`
	Section   int    `json:"section"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

// ModuleIndex maps a Moodle course-module id to where it lives.
type ModuleIndex map[int]ModuleRef

// StagedFragment is what a worker writes to the staging store for one course.
type StagedFragment struct {
	Summary CourseSummary `json:"summary"`
	Modules ModuleIndex   `json:"modules"`
}
