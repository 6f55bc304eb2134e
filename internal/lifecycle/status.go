package lifecycle

import (
	"strings"

	dErrors "qsync/pkg/domain-errors"
)

// StatusTable is the single code ↔ label mapping for one record kind.
// Codes are stored and compared; labels are what the UI shows.
type StatusTable[S ~string] struct {
	order  []S
	labels map[S]string
}

// NewStatusTable keeps entries in declaration order.
func NewStatusTable[S ~string](entries ...StatusEntry[S]) StatusTable[S] {
	t := StatusTable[S]{labels: make(map[S]string, len(entries))}
	for _, e := range entries {
		t.order = append(t.order, e.Code)
		t.labels[e.Code] = e.Label
	}
	return t
}

type StatusEntry[S ~string] struct {
	Code  S
	Label string
}

// Label returns the display label, or the code itself when unknown.
func (t StatusTable[S]) Label(s S) string {
	if l, ok := t.labels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is one of the table's codes.
func (t StatusTable[S]) Valid(s S) bool {
	_, ok := t.labels[s]
	return ok
}

// Parse accepts a code or a label, case-insensitively.
func (t StatusTable[S]) Parse(raw string) (S, error) {
	raw = strings.TrimSpace(raw)
	for _, code := range t.order {
		if strings.EqualFold(raw, string(code)) || strings.EqualFold(raw, t.labels[code]) {
			return code, nil
		}
	}
	var zero S
	return zero, dErrors.New(dErrors.CodeValidation, "unknown status: "+raw)
}

// Codes lists the codes in declaration order.
func (t StatusTable[S]) Codes() []S {
	return append([]S(nil), t.order...)
}
