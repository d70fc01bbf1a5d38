package mappers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/providers/moodle"
)

// CourseReader is the part of the LMS API the summary parser walks.
type CourseReader interface {
	CategoryReader
	CourseByField(ctx context.Context, field, value string) (*moodle.Course, error)
	EnrolledUsers(ctx context.Context, courseID int) (moodle.Enrolled, error)
	CourseContents(ctx context.Context, courseID int) ([]moodle.Section, error)
}

// DefaultAnnouncementNames are the reserved forums every course gets.
var DefaultAnnouncementNames = []string{"Avisos"}

// DefaultClassLinkPatterns recognise live-class links. {token} is replaced by
// the course OFG, quoted.
var DefaultClassLinkPatterns = []string{
	`(?i)zoom\.us/`,
	`(?i)teams\.microsoft\.com/`,
	`(?i)meet\.google\.com/`,
	`(?i)clases?[-_/]?{token}`,
}

// ParseOptions configure BuildCourseSummary.
type ParseOptions struct {
	OFGPos            int
	AnnouncementNames []string
	ClassLinkPatterns []string
	Categories        *CategoryCache
	Now               func() time.Time
	Log               *logger.Logger
}

// Parser turns raw course contents into a CourseSummary. It keeps no
// per-course state, so one Parser can serve a whole chunk.
type Parser struct {
	ofgPos       int
	announcement map[string]struct{}
	linkPatterns []string
	categories   *CategoryCache
	now          func() time.Time
	log          *logger.Logger
}

func NewParser(opts ParseOptions) (*Parser, error) {
	names := opts.AnnouncementNames
	if names == nil {
		names = DefaultAnnouncementNames
	}
	patterns := opts.ClassLinkPatterns
	if len(patterns) == 0 {
		patterns = DefaultClassLinkPatterns
	}
	// compila con un token fijo para validar temprano
	for _, p := range patterns {
		if _, err := compileLinkPattern(p, "0"); err != nil {
			return nil, fmt.Errorf("class link pattern %q: %w", p, err)
		}
	}
	p := &Parser{
		ofgPos:       opts.OFGPos,
		announcement: make(map[string]struct{}, len(names)),
		linkPatterns: patterns,
		categories:   opts.Categories,
		now:          opts.Now,
		log:          logger.OrNop(opts.Log),
	}
	if p.now == nil {
		p.now = time.Now
	}
	for _, n := range names {
		p.announcement[foldName(n)] = struct{}{}
	}
	return p, nil
}

func compileLinkPattern(p, token string) (*regexp.Regexp, error) {
	return regexp.Compile(strings.ReplaceAll(p, "{token}", regexp.QuoteMeta(token)))
}

// BuildCourseSummary fetches one course and flattens it. A course the LMS
// does not know yields (nil, nil).
func (p *Parser) BuildCourseSummary(ctx context.Context, api CourseReader, courseID int) (*domain.StagedFragment, error) {
	course, err := api.CourseByField(ctx, "id", strconv.Itoa(courseID))
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", courseID, err)
	}
	if course == nil {
		p.log.Warn("course not found", "course_id", courseID)
		return nil, nil
	}

	idPath, names, err := CategoryPath(ctx, api, p.categories, course.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", courseID, err)
	}
	enrolled, err := api.EnrolledUsers(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", courseID, err)
	}
	sections, err := api.CourseContents(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", courseID, err)
	}

	s := domain.CourseSummary{
		CourseID:       course.ID,
		ShortName:      course.ShortName,
		FullName:       course.FullName,
		CategoryIDPath: idPath,
		CategoryPath:   names,
		Students:       len(enrolled.Students),
		Teachers:       toTeachers(enrolled.Teachers),
		ExtractedAt:    p.now().UTC(),
	}
	if ofg, ok := ExtractOFG(course.ShortName, p.ofgPos); ok {
		s.OFG = ofg
	} else {
		p.log.Warn("ofg not found in shortname", "course", course.ShortName, "pos", p.ofgPos)
	}

	modules := p.ParseContents(&s, sections)
	return &domain.StagedFragment{Summary: s, Modules: modules}, nil
}

func toTeachers(users []moodle.User) []domain.Teacher {
	out := make([]domain.Teacher, 0, len(users))
	for _, u := range users {
		out = append(out, domain.Teacher{FullName: strings.TrimSpace(u.FullName), Username: strings.TrimSpace(u.Username)})
	}
	return out
}

// ParseContents fills counters, open activities, document flags and sections
// of s from the raw section list and returns the module index.
// Calling it twice on fresh summaries gives identical results.
func (p *Parser) ParseContents(s *domain.CourseSummary, sections []moodle.Section) domain.ModuleIndex {
	links := p.compileLinks(s.OFG)
	index := domain.ModuleIndex{}

	s.SectionCount = len(sections)
	s.Sections = make([]domain.SectionSummary, 0, len(sections))
	for _, sec := range sections {
		ss := domain.SectionSummary{ID: sec.ID, Number: sec.Number, Name: sec.Name, Visible: bool(sec.Visible)}
		if !sec.Visible {
			s.Sections = append(s.Sections, ss)
			continue
		}
		for _, m := range sec.Modules {
			index[m.ID] = domain.ModuleRef{
				CourseID:  s.CourseID,
				ShortName: s.ShortName,
				Section:   sec.Number,
				Name:      m.Name,
				Type:      m.ModName,
			}
			err := p.countModule(s, &ss, m, links)
			var unknown *UnknownModuleTypeError
			if errors.As(err, &unknown) {
				p.log.Warn("skipping module", "course", s.ShortName, "module_id", unknown.ModuleID, "modname", unknown.Type)
			}
		}
		s.Sections = append(s.Sections, ss)
	}
	return index
}

func (p *Parser) compileLinks(ofg string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(p.linkPatterns))
	for _, pat := range p.linkPatterns {
		if strings.Contains(pat, "{token}") && ofg == "" {
			continue
		}
		re, err := compileLinkPattern(pat, ofg)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// countModule applies the classification rules in order; the first match wins.
func (p *Parser) countModule(s *domain.CourseSummary, sec *domain.SectionSummary, m moodle.Module, links []*regexp.Regexp) error {
	if !m.Visible {
		return nil
	}
	if m.ModName == modForum && p.isAnnouncement(m.Name) {
		return nil
	}
	if isActivityType(m.ModName) && p.isOpen(m) {
		s.OpenActivities++
		sec.OpenActivities++
		return nil
	}

	switch m.ModName {
	case modURL:
		k := domain.Links
		if matchesAny(links, moduleTarget(m)) {
			k = domain.ClassLinks
		}
		s.Counters.Add(k, 1)
		sec.Counters.Add(k, 1)
		return nil
	case modResource, modFolder:
		n := fileCount(m)
		s.Counters.Add(domain.Files, n)
		sec.Counters.Add(domain.Files, n)
		marks := detectDocuments(m.Name)
		s.Documents.Syllabus = s.Documents.Syllabus || marks.syllabus
		s.Documents.Curriculum = s.Documents.Curriculum || marks.curriculum
		s.Documents.StudyGuide = s.Documents.StudyGuide || marks.studyGuide
		return nil
	}

	k, err := CounterFor(m.ID, m.ModName)
	if err != nil {
		return err
	}
	s.Counters.Add(k, 1)
	sec.Counters.Add(k, 1)
	return nil
}

func (p *Parser) isAnnouncement(name string) bool {
	_, ok := p.announcement[foldName(name)]
	return ok
}

// isOpen reports whether the second lifecycle date (the due/close date) is
// still ahead.
func (p *Parser) isOpen(m moodle.Module) bool {
	if len(m.Dates) < 2 {
		return false
	}
	return m.Dates[1].Timestamp > p.now().Unix()
}

// moduleTarget is the external address of a url module when Moodle exposes
// it, else the module's own view link.
func moduleTarget(m moodle.Module) string {
	for _, c := range m.Contents {
		if c.Type == "url" && c.FileURL != "" {
			return c.FileURL
		}
	}
	return m.URL
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func fileCount(m moodle.Module) int {
	if m.ContentsInfo != nil {
		return m.ContentsInfo.FilesCount
	}
	n := 0
	for _, c := range m.Contents {
		if c.Type == "file" {
			n++
		}
	}
	return n
}
