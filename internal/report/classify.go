package report

import (
	"fmt"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
)

// Metric names used as threshold table keys.
const (
	MetricResources = "resources"
	MetricActivity  = "activity"
)

// insufficientMargin is how far below the threshold a total still counts as
// INSUFICIENTE.
const insufficientMargin = 3

// Thresholds maps metric -> cut period -> minimum total for SUFICIENTE.
type Thresholds map[string]map[int]int

// For returns the threshold for (metric, cut).
func (t Thresholds) For(metric string, cut int) (int, error) {
	byCut, ok := t[metric]
	if !ok {
		return 0, fmt.Errorf("no thresholds for metric %q", metric)
	}
	v, ok := byCut[cut]
	if !ok {
		return 0, fmt.Errorf("no %s threshold for cut %d", metric, cut)
	}
	return v, nil
}

// Classify places total in one of the three tiers for threshold.
func Classify(total, threshold int) domain.Level {
	switch {
	case total >= threshold:
		return domain.Sufficient
	case total >= threshold-insufficientMargin:
		return domain.Insufficient
	default:
		return domain.Deficient
	}
}
