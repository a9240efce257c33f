package normalize

import (
	"fmt"
	"strings"
)

// SchemaError reports a file whose header has no usable column for a required field.
type SchemaError struct {
	Missing []string // Canonical fields with no alias present
	Header  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: no column for %s in header [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Header, ";"))
}

// CoercionWarning reports a cell that could not be converted and was nulled.
type CoercionWarning struct {
	Line   int
	Column string
	Value  string
	Reason string
}

func (w CoercionWarning) String() string {
	return fmt.Sprintf("line %d: column %s: %q: %s", w.Line, w.Column, w.Value, w.Reason)
}
