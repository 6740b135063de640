package writer

import (
	"FlowTagger/internal/model"
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// Output file names written by TextWriter.
const (
	TagCountsFile          = "tag_counts.txt"
	PortProtocolCountsFile = "port_protocol_counts.txt"
)

// TextWriter writes the two plain-text reports: "tag,count" and "port,protocol,count".
// Lines are sorted so repeated runs over the same input produce identical files.
type TextWriter struct {
	rootPath string
	log      logrus.FieldLogger
}

// NewTextWriter creates a text writer that writes into rootPath.
func NewTextWriter(rootPath string, log logrus.FieldLogger) model.Writer {
	if rootPath == "" {
		rootPath = "."
	}
	return &TextWriter{rootPath: rootPath, log: log}
}

// Name returns the writer type.
func (w *TextWriter) Name() string {
	return "text"
}

// Write overwrites the tag and port/protocol count files under the root path.
func (w *TextWriter) Write(report *model.Report, timestamp string) error {
	if err := os.MkdirAll(w.rootPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tagPath := filepath.Join(w.rootPath, TagCountsFile)
	if err := writeLines(tagPath, tagLines(report.TagCounts)); err != nil {
		return err
	}

	pairPath := filepath.Join(w.rootPath, PortProtocolCountsFile)
	if err := writeLines(pairPath, portProtocolLines(report.PortProtocolCounts)); err != nil {
		return err
	}

	w.log.WithFields(logrus.Fields{
		"tags":  len(report.TagCounts),
		"pairs": report.PortProtocolCounts.Pairs(),
	}).Infof("Wrote %s and %s to %s", TagCountsFile, PortProtocolCountsFile, w.rootPath)
	return nil
}

func tagLines(counts model.TagCounts) []string {
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	lines := make([]string, len(tags))
	for i, tag := range tags {
		lines[i] = fmt.Sprintf("%s,%d", tag, counts[tag])
	}
	return lines
}

func portProtocolLines(counts model.PortProtocolCounts) []string {
	ports := make([]int, 0, len(counts))
	for port := range counts {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	lines := make([]string, 0, counts.Pairs())
	for _, port := range ports {
		byProto := counts[port]
		protos := make([]string, 0, len(byProto))
		for proto := range byProto {
			protos = append(protos, proto)
		}
		sort.Strings(protos)
		for _, proto := range protos {
			lines = append(lines, fmt.Sprintf("%d,%s,%d", port, proto, byProto[proto]))
		}
	}
	return lines
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file '%s': %w", path, err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := buf.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("failed to write to '%s': %w", path, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write to '%s': %w", path, err)
	}
	return file.Close()
}
