package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/jorgesolerrr/umet-reports/internal/report"
)

// Snapshot is the aggregated report of one LMS, kept so the workbook can be
// rendered again without extracting.
type Snapshot struct {
	RunID       string         `json:"runId"`
	LMSName     string         `json:"lmsName"`
	Scopes      []string       `json:"scopes"`
	Cut         int            `json:"cut"`
	Dimensions  []string       `json:"dimensions"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Result      *report.Result `json:"result"`
}

// SnapshotFileName mirrors the workbook name with a .json.br extension.
func SnapshotFileName(lmsName string, at time.Time, cut int) string {
	return fmt.Sprintf("reporte_%s_%s-%d.json.br", lmsName, at.Format("20060102"), cut)
}

// WriteSnapshot writes s as brotli-compressed JSON.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
	if err := json.NewEncoder(bw).Encode(s); err != nil {
		_ = bw.Close()
		return fmt.Errorf("export: encode snapshot: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("export: compress snapshot: %w", err)
	}
	return nil
}

func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(brotli.NewReader(r)).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("export: decode snapshot: %w", err)
	}
	return s, nil
}

// CourseReport rebuilds the workbook input from the snapshot.
func (s Snapshot) CourseReport() CourseReport {
	return CourseReport{
		LMSName:     s.LMSName,
		Cut:         s.Cut,
		GeneratedAt: s.GeneratedAt,
		Dimensions:  s.Dimensions,
		Result:      s.Result,
	}
}
