package domain

import "fmt"

// MalformedGeometryError flags a utility line that cannot take part in
// distance computation (fewer than two vertices or non-finite coordinates).
// It is logged as a data-quality warning and the line is skipped; it never
// aborts a tick.
type MalformedGeometryError struct {
	LineID string
	Reason string
}

func (e *MalformedGeometryError) Error() string {
	return fmt.Sprintf("malformed geometry for line %s: %s", e.LineID, e.Reason)
}
