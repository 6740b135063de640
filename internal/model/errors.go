package model

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable marks a lookup table or flow log that could not be opened or read.
// It is fatal to the phase that hit it.
var ErrSourceUnavailable = errors.New("source unavailable")

// MalformedRecordError describes a single input line that failed validation.
// It is recoverable: the line is reported and skipped.
type MalformedRecordError struct {
	Source string
	Line   int
	Text   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s:%d: %s: %q", e.Source, e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Skip reasons reported in MalformedRecordError.Reason and in metrics labels.
const (
	ReasonFieldCount  = "field_count"
	ReasonBadPort     = "bad_port"
	ReasonLineTooLong = "line_too_long"
)
