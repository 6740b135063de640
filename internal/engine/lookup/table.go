// Package lookup builds the port/protocol to tag table that drives classification.
package lookup

import (
	"FlowTagger/internal/model"
	"FlowTagger/pkg/lineio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// headerPort marks the optional header line of a lookup table file.
const headerPort = "dstport"

// MaxPort is the largest valid destination port.
const MaxPort = 65535

// Table maps a destination port to a protocol-name to tag mapping.
// It is built once and only read afterwards.
type Table struct {
	entries map[int]map[string]string
	size    int
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[int]map[string]string)}
}

// Set stores tag for (port, protocol), replacing any earlier value.
func (t *Table) Set(port int, protocol, tag string) {
	byProto, ok := t.entries[port]
	if !ok {
		byProto = make(map[string]string)
		t.entries[port] = byProto
	}
	if _, exists := byProto[protocol]; !exists {
		t.size++
	}
	byProto[protocol] = tag
}

// Tag returns the tag stored for (port, protocol).
func (t *Table) Tag(port int, protocol string) (string, bool) {
	byProto, ok := t.entries[port]
	if !ok {
		return "", false
	}
	tag, ok := byProto[protocol]
	return tag, ok
}

// Len returns the number of distinct (port, protocol) entries.
func (t *Table) Len() int {
	return t.size
}

// Ports returns the number of distinct ports with at least one entry.
func (t *Table) Ports() int {
	return len(t.entries)
}

// Load opens the lookup table file at path and builds a Table from it.
func Load(path string, log logrus.FieldLogger) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lookup table '%s': %w: %w", path, model.ErrSourceUnavailable, err)
	}
	defer file.Close()

	return Build(file, log.WithField("source", path))
}

// Build reads comma-separated "port,protocol,tag" lines. Malformed lines are
// reported and skipped; only a read failure aborts the build.
func Build(r io.Reader, log logrus.FieldLogger) (*Table, error) {
	table := New()
	reader := lineio.NewReader(r, lineio.DefaultMaxLineSize)
	skipped := 0

	for reader.Next() {
		lineNo := reader.Line()
		if reader.TooLong() {
			skipped++
			log.WithFields(logrus.Fields{"line": lineNo, "reason": model.ReasonLineTooLong}).
				Warnf("Invalid format for entry: line exceeds %d bytes", lineio.DefaultMaxLineSize)
			continue
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		e, header, err := parseEntry(line)
		if err != nil {
			skipped++
			log.WithFields(logrus.Fields{"line": lineNo, "entry": line}).Warn(err.Error())
			continue
		}
		if header {
			continue
		}
		table.Set(e.port, e.protocol, e.tag)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lookup table: %w: %w", model.ErrSourceUnavailable, err)
	}

	log.WithFields(logrus.Fields{"entries": table.Len(), "ports": table.Ports(), "skipped": skipped}).
		Info("Lookup table loaded")
	return table, nil
}

type entry struct {
	port     int
	protocol string
	tag      string
}

// parseEntry splits a single non-blank line and reports whether it is the header.
func parseEntry(line string) (entry, bool, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return entry{}, false, fmt.Errorf("invalid format for entry: expected 3 fields, got %d", len(parts))
	}

	portField := strings.TrimSpace(parts[0])
	if portField == headerPort {
		return entry{}, true, nil
	}

	port, err := strconv.Atoi(portField)
	if err != nil {
		return entry{}, false, fmt.Errorf("error converting port to integer: %q", portField)
	}
	if port < 0 || port > MaxPort {
		return entry{}, false, fmt.Errorf("port out of range: %d", port)
	}

	return entry{
		port:     port,
		protocol: strings.ToLower(strings.TrimSpace(parts[1])),
		tag:      strings.ToLower(strings.TrimSpace(parts[2])),
	}, false, nil
}
