package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
)

// WriteCoursesCSV writes the data sheet columns as CSV.
func WriteCoursesCSV(w io.Writer, dims []string, rows []domain.ClassifiedRow) error {
	cw := csv.NewWriter(w)
	// Excel en Windows espera CRLF
	cw.UseCRLF = true

	if err := cw.Write(dataHeader(dims)); err != nil {
		return err
	}
	for _, r := range rows {
		vals := dataRow(dims, r)
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = cleanCell(fmt.Sprint(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// cleanCell flattens line breaks so each course stays on one line.
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
