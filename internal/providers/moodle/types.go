package moodle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Role ids used by UMET's Moodle instances.
const (
	StudentRoleID = 5
	TeacherRoleID = 3
)

// Flag decodes Moodle's visibility fields, which arrive as 0/1 or true/false
// depending on the web service function.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true", "1", `"1"`:
		*f = true
		return nil
	case "false", "0", `"0"`, "null", `""`:
		*f = false
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("moodle: invalid flag %s", b)
	}
	*f = n != 0
	return nil
}

/* -------- Courses -------- */

// Course is the subset of course fields shared by search and get-by-field responses.
type Course struct {
	ID           int    `json:"id"`
	ShortName    string `json:"shortname"`
	FullName     string `json:"fullname"`
	DisplayName  string `json:"displayname"`
	CategoryID   int    `json:"categoryid"`
	CategoryName string `json:"categoryname"`
	StartDate    int64  `json:"startdate"`
	EndDate      int64  `json:"enddate"`
	Visible      Flag   `json:"visible"`
}

type searchCoursesResponse struct {
	Total   int      `json:"total"`
	Courses []Course `json:"courses"`
}

type coursesByFieldResponse struct {
	Courses []Course `json:"courses"`
}

/* -------- Enrolment -------- */

type Role struct {
	RoleID    int    `json:"roleid"`
	Name      string `json:"name"`
	ShortName string `json:"shortname"`
}

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
	IDNumber string `json:"idnumber"`
	Roles    []Role `json:"roles"`
}

// Enrolled splits enrolled users by their first role.
type Enrolled struct {
	Students []User
	Teachers []User
}

/* -------- Contents -------- */

type Section struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Visible Flag     `json:"visible"`
	Number  int      `json:"section"`
	Modules []Module `json:"modules"`
}

type Module struct {
	ID           int          `json:"id"`
	URL          string       `json:"url"`
	Name         string       `json:"name"`
	Instance     int          `json:"instance"`
	Visible      Flag         `json:"visible"`
	ModName      string       `json:"modname"`
	Completion   int          `json:"completion"`
	Dates        []ModuleDate `json:"dates"`
	Contents     []Content    `json:"contents"`
	ContentsInfo *ContentInfo `json:"contentsinfo,omitempty"`
}

// ModuleDate is a lifecycle date ("Opened:", "Due:", ...).
type ModuleDate struct {
	Label     string `json:"label"`
	Timestamp int64  `json:"timestamp"`
}

type Content struct {
	Type         string `json:"type"`
	FileName     string `json:"filename"`
	FileSize     int64  `json:"filesize"`
	FileURL      string `json:"fileurl"`
	TimeModified int64  `json:"timemodified"`
	UserID       *int   `json:"userid"`
	Author       string `json:"author"`
}

type ContentInfo struct {
	FilesCount   int   `json:"filescount"`
	FilesSize    int64 `json:"filessize"`
	LastModified int64 `json:"lastmodified"`
}

/* -------- Categories -------- */

type Category struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Parent int    `json:"parent"`
	Path   string `json:"path"` // "/1/7/42"
	Depth  int    `json:"depth"`
}

/* -------- Grades -------- */

type GradeItem struct {
	ID       int      `json:"id"`
	ItemName string   `json:"itemname"`
	ItemType string   `json:"itemtype"`
	GradeRaw *float64 `json:"graderaw"`
}

type UserGrades struct {
	CourseID     int         `json:"courseid"`
	UserID       int         `json:"userid"`
	UserFullName string      `json:"userfullname"`
	UserIDNumber string      `json:"useridnumber"`
	GradeItems   []GradeItem `json:"gradeitems"`
}

type gradeItemsResponse struct {
	UserGrades []UserGrades `json:"usergrades"`
}

// exceptionEnvelope is what Moodle returns (with HTTP 200) when a call fails.
type exceptionEnvelope struct {
	Exception *string `json:"exception"`
	ErrorCode string  `json:"errorcode"`
	Message   string  `json:"message"`
	DebugInfo string  `json:"debuginfo"`
}

var _ json.Unmarshaler = (*Flag)(nil)
