package mappers

import "strings"

// ExtractOFG returns the "-"-separated token of shortName at pos.
// Negative positions count from the end (-3 is the third token from the right).
func ExtractOFG(shortName string, pos int) (string, bool) {
	parts := strings.Split(shortName, "-")
	idx := pos
	if pos < 0 {
		idx = len(parts) + pos
	}
	if idx < 0 || idx >= len(parts) {
		return "", false
	}
	return strings.TrimSpace(parts[idx]), true
}
