package devutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Pick pasa v a map vía JSON y devuelve solo las keys pedidas.
// Acepta rutas con punto ("counters.quizzes") para entrar en objetos anidados.
func Pick(v any, keys ...string) map[string]any {
	m := toMap(v)
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if val, ok := lookup(m, strings.Split(k, ".")); ok {
			out[k] = val
		}
	}
	return out
}

// Dump escribe v como JSON indentado. Útil para cmd/fetch-course.
func Dump(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("devutil: dump: %w", err)
	}
	return nil
}

func toMap(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func lookup(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}
