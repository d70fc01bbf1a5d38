package mappers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/providers/moodle"
)

var fixedNow = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(ParseOptions{OFGPos: -3, Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func mod(id int, modName, name string) moodle.Module {
	return moodle.Module{ID: id, ModName: modName, Name: name, Visible: true}
}

func TestParseContents_AnnouncementForumCountsNothing(t *testing.T) {
	p := newTestParser(t)
	s := &domain.CourseSummary{CourseID: 1, ShortName: "A-B-1234-C-D"}
	p.ParseContents(s, []moodle.Section{
		{ID: 10, Number: 0, Visible: true, Modules: []moodle.Module{mod(1, "forum", "Avisos")}},
	})
	if s.Counters != (domain.Counters{}) {
		t.Fatalf("expected zero counters, got %+v", s.Counters)
	}
	if s.SectionCount != 1 || len(s.Sections) != 1 {
		t.Fatalf("sections = %d/%d", s.SectionCount, len(s.Sections))
	}
}

func TestParseContents_HiddenSectionIsPlaceholder(t *testing.T) {
	p := newTestParser(t)
	s := &domain.CourseSummary{CourseID: 1}
	idx := p.ParseContents(s, []moodle.Section{
		{ID: 10, Number: 0, Visible: false, Modules: []moodle.Module{mod(1, "quiz", "hidden quiz")}},
		{ID: 11, Number: 1, Visible: true, Modules: []moodle.Module{mod(2, "quiz", "Quiz 1")}},
	})
	if s.Counters.Quizzes != 1 {
		t.Fatalf("quizzes = %d, want 1", s.Counters.Quizzes)
	}
	if s.Counters.ActivityTotal() != 1 || s.Counters.ResourceTotal() != 0 {
		t.Fatalf("totals = %d/%d", s.Counters.ActivityTotal(), s.Counters.ResourceTotal())
	}
	if s.SectionCount != 2 {
		t.Fatalf("section count = %d", s.SectionCount)
	}
	if s.Sections[0].Visible || s.Sections[0].Counters != (domain.Counters{}) {
		t.Fatalf("hidden section not a zero placeholder: %+v", s.Sections[0])
	}
	if s.Sections[1].Counters.Quizzes != 1 {
		t.Fatalf("section 1 quizzes = %d", s.Sections[1].Counters.Quizzes)
	}
	if _, ok := idx[1]; ok {
		t.Fatal("module of hidden section indexed")
	}
	if ref := idx[2]; ref.Section != 1 || ref.Type != "quiz" {
		t.Fatalf("index entry = %+v", ref)
	}
}

func TestParseContents_HiddenModuleSkipped(t *testing.T) {
	p := newTestParser(t)
	m := mod(1, "assign", "Tarea")
	m.Visible = false
	s := &domain.CourseSummary{}
	p.ParseContents(s, []moodle.Section{{Visible: true, Modules: []moodle.Module{m}}})
	if s.Counters.Assignments != 0 {
		t.Fatalf("hidden assign counted")
	}
}

func TestParseContents_OpenActivity(t *testing.T) {
	p := newTestParser(t)
	open := mod(1, "assign", "Tarea abierta")
	open.Dates = []moodle.ModuleDate{
		{Label: "Opened:", Timestamp: fixedNow.Add(-48 * time.Hour).Unix()},
		{Label: "Due:", Timestamp: fixedNow.Add(48 * time.Hour).Unix()},
	}
	closed := mod(2, "assign", "Tarea cerrada")
	closed.Dates = []moodle.ModuleDate{
		{Label: "Opened:", Timestamp: fixedNow.Add(-96 * time.Hour).Unix()},
		{Label: "Due:", Timestamp: fixedNow.Add(-48 * time.Hour).Unix()},
	}
	oneDate := mod(3, "quiz", "Quiz")
	oneDate.Dates = []moodle.ModuleDate{{Label: "Opened:", Timestamp: fixedNow.Add(48 * time.Hour).Unix()}}

	s := &domain.CourseSummary{}
	p.ParseContents(s, []moodle.Section{{Number: 1, Visible: true, Modules: []moodle.Module{open, closed, oneDate}}})

	if s.OpenActivities != 1 || s.Sections[0].OpenActivities != 1 {
		t.Fatalf("open = %d/%d, want 1", s.OpenActivities, s.Sections[0].OpenActivities)
	}
	if s.Counters.Assignments != 1 {
		t.Fatalf("assignments = %d, want 1 (open one is not bucketed)", s.Counters.Assignments)
	}
	if s.Counters.Quizzes != 1 {
		t.Fatalf("quizzes = %d", s.Counters.Quizzes)
	}
}

func TestParseContents_Links(t *testing.T) {
	p := newTestParser(t)
	zoom := mod(1, "url", "Clase en vivo")
	zoom.Contents = []moodle.Content{{Type: "url", FileURL: "https://umet.zoom.us/j/123"}}
	byToken := mod(2, "url", "Grabación")
	byToken.URL = "https://lms.example/mod/url/view.php?id=2"
	byToken.Contents = []moodle.Content{{Type: "url", FileURL: "https://videos.example/clase-1234/rec.mp4"}}
	plain := mod(3, "url", "Lectura")
	plain.Contents = []moodle.Content{{Type: "url", FileURL: "https://es.wikipedia.org/wiki/Go"}}

	s := &domain.CourseSummary{ShortName: "GRA-INF-1234-A-2025", OFG: "1234"}
	p.ParseContents(s, []moodle.Section{{Visible: true, Modules: []moodle.Module{zoom, byToken, plain}}})

	if s.Counters.ClassLinks != 2 || s.Counters.Links != 1 {
		t.Fatalf("class links = %d, links = %d", s.Counters.ClassLinks, s.Counters.Links)
	}
}

func TestParseContents_FilesAndDocuments(t *testing.T) {
	p := newTestParser(t)
	syl := mod(1, "resource", "Sílabo de la asignatura")
	syl.ContentsInfo = &moodle.ContentInfo{FilesCount: 1}
	folder := mod(2, "folder", "Guía Didáctica y material")
	folder.Contents = []moodle.Content{{Type: "file"}, {Type: "file"}, {Type: "url"}}
	cv := mod(3, "resource", "CV docente")
	cv.ContentsInfo = &moodle.ContentInfo{FilesCount: 3}

	s := &domain.CourseSummary{}
	p.ParseContents(s, []moodle.Section{{Visible: true, Modules: []moodle.Module{syl, folder, cv}}})

	if s.Counters.Files != 6 {
		t.Fatalf("files = %d, want 6", s.Counters.Files)
	}
	want := domain.AdminDocuments{Syllabus: true, Curriculum: true, StudyGuide: true}
	if s.Documents != want {
		t.Fatalf("documents = %+v", s.Documents)
	}
}

func TestParseContents_UnknownTypeSkipped(t *testing.T) {
	p := newTestParser(t)
	s := &domain.CourseSummary{}
	p.ParseContents(s, []moodle.Section{{Visible: true, Modules: []moodle.Module{
		mod(1, "h5pactivity", "H5P"),
		mod(2, "page", "Bienvenida"),
		mod(3, "label", ""),
	}}})
	if s.Counters.Pages != 1 || s.Counters.Labels != 1 {
		t.Fatalf("counters = %+v", s.Counters)
	}
	if s.Counters.ResourceTotal()+s.Counters.ActivityTotal() != 2 {
		t.Fatalf("unknown type was counted")
	}
}

func TestBuildCourseSummary(t *testing.T) {
	api := newStubAPI()
	api.courses[7] = moodle.Course{ID: 7, ShortName: "GRA-INF-1234-A-2025", FullName: "Programación I", CategoryID: 5}
	api.enrolled[7] = moodle.Enrolled{
		Students: []moodle.User{{ID: 1}, {ID: 2}, {ID: 3}},
		Teachers: []moodle.User{{FullName: "Ana Pérez", Username: "0912345678"}},
	}
	api.contents[7] = []moodle.Section{
		{ID: 1, Number: 0, Visible: true, Modules: []moodle.Module{mod(1, "forum", "Avisos"), mod(2, "page", "Inicio")}},
		{ID: 2, Number: 1, Visible: true, Modules: []moodle.Module{mod(3, "quiz", "Quiz"), mod(4, "forum", "Debate")}},
	}

	p := newTestParser(t)
	frag, err := p.BuildCourseSummary(context.Background(), api, 7)
	if err != nil {
		t.Fatalf("BuildCourseSummary: %v", err)
	}
	s := frag.Summary
	if s.OFG != "1234" {
		t.Fatalf("ofg = %q", s.OFG)
	}
	if s.CategoryIDPath != "/1/2/3/4/5" {
		t.Fatalf("id path = %q", s.CategoryIDPath)
	}
	wantPath := []string{"MOODLE GRADO", "2025-2026 I", "FACULTAD DE CIENCIAS", "INGENIERIA", "PRESENCIAL"}
	if !reflect.DeepEqual(s.CategoryPath, wantPath) {
		t.Fatalf("path = %v", s.CategoryPath)
	}
	if s.Students != 3 || len(s.Teachers) != 1 || s.Teachers[0].Username != "0912345678" {
		t.Fatalf("roster = %d students, %+v", s.Students, s.Teachers)
	}
	if s.Counters.Pages != 1 || s.Counters.Quizzes != 1 || s.Counters.Forums != 1 {
		t.Fatalf("counters = %+v", s.Counters)
	}
	if !s.ExtractedAt.Equal(fixedNow) {
		t.Fatalf("extracted at = %v", s.ExtractedAt)
	}
	if len(frag.Modules) != 4 {
		t.Fatalf("index size = %d", len(frag.Modules))
	}

	again, err := p.BuildCourseSummary(context.Background(), api, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(frag, again) {
		t.Fatal("parsing the same course twice gave different summaries")
	}
}

func TestBuildCourseSummary_NotFound(t *testing.T) {
	p := newTestParser(t)
	frag, err := p.BuildCourseSummary(context.Background(), newStubAPI(), 404)
	if err != nil || frag != nil {
		t.Fatalf("got %v, %v; want nil, nil", frag, err)
	}
}

func TestBuildCourseSummary_CategoryError(t *testing.T) {
	api := newStubAPI()
	api.courses[8] = moodle.Course{ID: 8, ShortName: "X", CategoryID: 99}
	p := newTestParser(t)
	if _, err := p.BuildCourseSummary(context.Background(), api, 8); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestNewParser_BadPattern(t *testing.T) {
	if _, err := NewParser(ParseOptions{ClassLinkPatterns: []string{"("}}); err == nil {
		t.Fatal("expected error")
	}
}
