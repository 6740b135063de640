// Package layout resolves which whitespace-separated fields of a flow-log line
// hold the destination port and the protocol number.
package layout

import (
	"errors"
	"fmt"
	"strings"
)

// Field names that must appear in every layout.
const (
	DstPortField  = "dstport"
	ProtocolField = "protocol"
)

// ErrMissingField is returned when a custom format lacks dstport or protocol.
var ErrMissingField = errors.New("log format must include 'dstport' and 'protocol'")

// defaultFields is the version 2 VPC flow-log record.
var defaultFields = []string{
	"version", "account-id", "interface-id", "srcaddr", "dstaddr", "srcport",
	"dstport", "protocol", "packets", "bytes", "start", "end", "action", "log-status",
}

// Layout is an ordered list of field names with the two positions the
// classifier reads. It is resolved once and never re-derived per line.
type Layout struct {
	Fields        []string
	DstPortIndex  int
	ProtocolIndex int
}

// Default returns the 14-field flow-log layout: dstport at 6, protocol at 7.
func Default() Layout {
	fields := make([]string, len(defaultFields))
	copy(fields, defaultFields)
	return Layout{Fields: fields, DstPortIndex: 6, ProtocolIndex: 7}
}

// Resolve returns the default layout for an empty format, otherwise the layout
// described by a space-separated list of field names.
func Resolve(format string) (Layout, error) {
	if format == "" {
		return Default(), nil
	}

	fields := strings.Fields(format)
	dst := indexOf(fields, DstPortField)
	proto := indexOf(fields, ProtocolField)
	if dst < 0 || proto < 0 {
		return Layout{}, fmt.Errorf("invalid log format %q: %w", format, ErrMissingField)
	}
	return Layout{Fields: fields, DstPortIndex: dst, ProtocolIndex: proto}, nil
}

// MinFields is the smallest field count a line needs to be classified.
func (l Layout) MinFields() int {
	return max(l.DstPortIndex, l.ProtocolIndex) + 1
}

// String renders the layout back into format-string form.
func (l Layout) String() string {
	return strings.Join(l.Fields, " ")
}

// indexOf returns the first position of name, or -1.
func indexOf(fields []string, name string) int {
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}
