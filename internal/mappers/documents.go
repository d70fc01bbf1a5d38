package mappers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	syllabusMarker   = regexp.MustCompile(`\b(silabo|silabus|syllabus)\b`)
	curriculumMarker = regexp.MustCompile(`\b(hoja de vida|curriculum( vitae)?|cv)\b`)
	studyGuideMarker = regexp.MustCompile(`\bguia (de estudio|didactica|de aprendizaje)\b`)
)

// foldName lowercases s and strips accents so "Sílabo" matches "silabo".
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

type documentMarks struct {
	syllabus, curriculum, studyGuide bool
}

func detectDocuments(name string) documentMarks {
	n := foldName(name)
	return documentMarks{
		syllabus:   syllabusMarker.MatchString(n),
		curriculum: curriculumMarker.MatchString(n),
		studyGuide: studyGuideMarker.MatchString(n),
	}
}
