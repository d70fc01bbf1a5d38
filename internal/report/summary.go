package report

import (
	"math"
	"sort"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
)

// Summary is the per-group breakdown for one grouping dimension.
type Summary struct {
	Dimension string
	Rows      []domain.SummaryRow
}

// Summarize groups rows by the value of dimension. Every value in seed gets a
// row even when no classified row carries it. Sorted by total desc, then name.
func Summarize(dimension string, rows []domain.ClassifiedRow, seed []string) Summary {
	groups := map[string]*domain.SummaryRow{}
	get := func(v string) *domain.SummaryRow {
		g, ok := groups[v]
		if !ok {
			g = &domain.SummaryRow{Group: v}
			groups[v] = g
		}
		return g
	}
	for _, v := range seed {
		get(v)
	}
	for _, r := range rows {
		g := get(r.Dimension(dimension))
		g.Total++
		addTier(&g.Resources, r.ResourceLevel)
		addTier(&g.Activities, r.ActivityLevel)
	}

	out := Summary{Dimension: dimension, Rows: make([]domain.SummaryRow, 0, len(groups))}
	for _, g := range groups {
		fillPct(&g.Resources, g.Total)
		fillPct(&g.Activities, g.Total)
		out.Rows = append(out.Rows, *g)
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if out.Rows[i].Total != out.Rows[j].Total {
			return out.Rows[i].Total > out.Rows[j].Total
		}
		return out.Rows[i].Group < out.Rows[j].Group
	})
	return out
}

func addTier(t *domain.TierCounts, l domain.Level) {
	switch l {
	case domain.Sufficient:
		t.Sufficient++
	case domain.Insufficient:
		t.Insufficient++
	case domain.Deficient:
		t.Deficient++
	}
}

func fillPct(t *domain.TierCounts, total int) {
	t.SufficientPct = pct(t.Sufficient, total)
	t.InsufficientPct = pct(t.Insufficient, total)
	t.DeficientPct = pct(t.Deficient, total)
}

// pct is count/total as a percentage rounded to one decimal; 0 for empty groups.
func pct(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)*1000/float64(total)) / 10
}
