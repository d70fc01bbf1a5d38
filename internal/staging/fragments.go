package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
)

// Fragment kinds, stored in each hash under kindField.
const (
	KindSummary = "summary"
	KindModules = "modules"
	KindGrades  = "grades"

	kindField      = "_kind"
	gradeRowsField = "rows"
	modulesEntity  = "modules@"
)

// SummaryKey and ModulesKey address the two pieces of a course fragment.
// Both sit under ScopePrefix(scope).
func SummaryKey(scope, shortName string, date time.Time) string {
	return Key(scope, shortName, date)
}

func ModulesKey(scope, shortName string, date time.Time) string {
	return Key(scope, modulesEntity+shortName, date)
}

// PutFragment stages the summary and its module index. Each top-level field
// becomes one hash field holding its JSON.
func (s *Store) PutFragment(ctx context.Context, scope string, f domain.StagedFragment) error {
	date := f.Summary.ExtractedAt
	if date.IsZero() {
		date = time.Now()
	}
	sum, err := toRecord(f.Summary, KindSummary)
	if err != nil {
		return fmt.Errorf("staging: summary %s: %w", f.Summary.ShortName, err)
	}
	if err := s.Put(ctx, SummaryKey(scope, f.Summary.ShortName, date), sum); err != nil {
		return err
	}
	if len(f.Modules) == 0 {
		return nil
	}
	mods, err := toRecord(f.Modules, KindModules)
	if err != nil {
		return fmt.Errorf("staging: modules %s: %w", f.Summary.ShortName, err)
	}
	return s.Put(ctx, ModulesKey(scope, f.Summary.ShortName, date), mods)
}

// Kind returns the fragment kind stored at key.
func (s *Store) Kind(ctx context.Context, key string) (string, error) {
	return s.getField(ctx, key, kindField)
}

func (s *Store) GetSummary(ctx context.Context, key string) (domain.CourseSummary, error) {
	var out domain.CourseSummary
	err := s.getTyped(ctx, key, KindSummary, &out)
	return out, err
}

func (s *Store) GetModules(ctx context.Context, key string) (domain.ModuleIndex, error) {
	out := domain.ModuleIndex{}
	err := s.getTyped(ctx, key, KindModules, &out)
	return out, err
}

// PutGradeRows stages the grade rows of one course.
func (s *Store) PutGradeRows(ctx context.Context, scope, course string, date time.Time, rows []domain.GradeRow) error {
	b, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("staging: grade rows %s: %w", course, err)
	}
	return s.Put(ctx, Key(scope, course, date), Record{
		kindField:      KindGrades,
		gradeRowsField: json.RawMessage(b),
	})
}

func (s *Store) GetGradeRows(ctx context.Context, key string) ([]domain.GradeRow, error) {
	raw, err := s.getRaw(ctx, key)
	if err != nil {
		return nil, err
	}
	if k := raw[kindField]; k != KindGrades {
		return nil, fmt.Errorf("staging: %s holds %q, not %q", key, k, KindGrades)
	}
	var rows []domain.GradeRow
	if err := json.Unmarshal([]byte(raw[gradeRowsField]), &rows); err != nil {
		return nil, fmt.Errorf("staging: decode %s: %w", key, err)
	}
	return rows, nil
}

func toRecord(v any, kind string) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	rec := make(Record, len(fields)+1)
	for k, raw := range fields {
		rec[k] = raw
	}
	rec[kindField] = kind
	return rec, nil
}

// getTyped rebuilds the JSON object from the raw hash fields and decodes it
// into v, so typed values survive exactly.
func (s *Store) getTyped(ctx context.Context, key, kind string, v any) error {
	raw, err := s.getRaw(ctx, key)
	if err != nil {
		return err
	}
	if k := raw[kindField]; k != kind {
		return fmt.Errorf("staging: %s holds %q, not %q", key, k, kind)
	}
	delete(raw, kindField)
	obj := make(map[string]json.RawMessage, len(raw))
	for k, val := range raw {
		obj[k] = json.RawMessage(val)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("staging: decode %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("staging: decode %s: %w", key, err)
	}
	return nil
}
