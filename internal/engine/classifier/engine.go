// Package classifier tags flow-log records by destination port and protocol and
// aggregates per-tag and per-(port, protocol) counts.
package classifier

import (
	"FlowTagger/internal/engine/layout"
	"FlowTagger/internal/engine/lookup"
	"FlowTagger/internal/engine/protocol"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/pkg/lineio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// MaxLineSize bounds a single flow-log line. Longer lines are skipped.
const MaxLineSize = lineio.DefaultMaxLineSize

// longLinePrefix is how much of an over-long line is kept for diagnostics.
const longLinePrefix = 64

// Engine classifies flow-log lines against a lookup table using a fixed field layout.
// The engine itself keeps no per-run state; all counts go into a Result.
type Engine struct {
	table   *lookup.Table
	layout  layout.Layout
	min     int
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-line diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics records line outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine for table and l.
func New(table *lookup.Table, l layout.Layout, opts ...Option) *Engine {
	e := &Engine{
		table:  table,
		layout: l,
		min:    l.MinFields(),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Layout returns the layout the engine reads lines with.
func (e *Engine) Layout() layout.Layout {
	return e.layout
}

// ProcessLine classifies a single line into res. Blank lines are ignored.
// A line that fails validation leaves res untouched apart from Stats.Skipped
// and is returned as a *model.MalformedRecordError.
func (e *Engine) ProcessLine(res *Result, lineNo int, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	if len(parts) < e.min {
		res.Stats.Skipped++
		return &model.MalformedRecordError{
			Line:   lineNo,
			Text:   strings.TrimSpace(line),
			Reason: model.ReasonFieldCount,
		}
	}

	portField := parts[e.layout.DstPortIndex]
	port, err := strconv.Atoi(portField)
	if err != nil || port < 0 || port > lookup.MaxPort {
		res.Stats.Skipped++
		return &model.MalformedRecordError{
			Line:   lineNo,
			Text:   portField,
			Reason: model.ReasonBadPort,
		}
	}

	name := protocol.Resolve(parts[e.layout.ProtocolIndex])
	tag, ok := e.table.Tag(port, strings.ToLower(name))
	if !ok {
		tag = model.UntaggedTag
		res.Stats.Untagged++
	}

	res.TagCounts[tag]++
	res.PortProtocolCounts.Add(port, name, 1)
	res.Stats.Processed++
	e.metrics.ObserveLine(!ok)
	return nil
}

// Classify reads every line of r into a fresh Result. Malformed lines are
// reported and skipped; a read failure aborts the run and returns no counts.
func (e *Engine) Classify(r io.Reader) (*Result, error) {
	return e.classify(r, e.log)
}

// ClassifySource is Classify with every diagnostic tagged with source.
func (e *Engine) ClassifySource(source string, r io.Reader) (*Result, error) {
	return e.classify(r, e.logFor(source))
}

// ClassifyFile opens path and classifies its contents.
func (e *Engine) ClassifyFile(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flow log '%s': %w: %w", path, model.ErrSourceUnavailable, err)
	}
	defer file.Close()

	return e.classify(file, e.logFor(path))
}

// ClassifyLines classifies an in-memory batch read from source. firstLine is
// the line number of lines[0].
func (e *Engine) ClassifyLines(res *Result, source string, firstLine int, lines []string) {
	log := e.logFor(source)
	for i, line := range lines {
		e.report(e.ProcessLine(res, firstLine+i, line), log)
	}
}

// SkipLongLine records line lineNo of source as skipped for exceeding MaxLineSize.
// prefix is the start of the line, kept for the diagnostic.
func (e *Engine) SkipLongLine(res *Result, source string, lineNo int, prefix string) {
	res.Stats.Skipped++
	e.report(longLineError(lineNo, prefix), e.logFor(source))
}

func (e *Engine) classify(r io.Reader, log logrus.FieldLogger) (*Result, error) {
	res := NewResult()
	reader := lineio.NewReader(r, MaxLineSize)

	for reader.Next() {
		if reader.TooLong() {
			res.Stats.Skipped++
			e.report(longLineError(reader.Line(), reader.Text()), log)
			continue
		}
		e.report(e.ProcessLine(res, reader.Line(), reader.Text()), log)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read flow log: %w: %w", model.ErrSourceUnavailable, err)
	}

	log.WithFields(logrus.Fields{
		"processed": res.Stats.Processed,
		"skipped":   res.Stats.Skipped,
		"untagged":  res.Stats.Untagged,
		"tags":      len(res.TagCounts),
	}).Info("Flow log classified")
	return res, nil
}

func (e *Engine) logFor(source string) logrus.FieldLogger {
	if source == "" {
		return e.log
	}
	return e.log.WithField("source", source)
}

func longLineError(lineNo int, text string) *model.MalformedRecordError {
	if len(text) > longLinePrefix {
		text = strings.ToValidUTF8(text[:longLinePrefix], "")
	}
	return &model.MalformedRecordError{
		Line:   lineNo,
		Text:   text,
		Reason: model.ReasonLineTooLong,
	}
}

// report emits the diagnostic for a skipped line.
func (e *Engine) report(err error, log logrus.FieldLogger) {
	if err == nil {
		return
	}
	var mre *model.MalformedRecordError
	if !errors.As(err, &mre) {
		log.WithError(err).Error("Unexpected error classifying line")
		return
	}
	e.metrics.ObserveSkip(mre.Reason)

	entry := log.WithFields(logrus.Fields{"line": mre.Line, "reason": mre.Reason})
	switch mre.Reason {
	case model.ReasonFieldCount:
		entry.Warnf("Invalid log found has less entries than expected (%d): %s", e.min, mre.Text)
	case model.ReasonBadPort:
		entry.Warnf("Invalid port number %q in the flow log entry", mre.Text)
	case model.ReasonLineTooLong:
		entry.Warnf("Flow log entry exceeds %d bytes, skipped: %q...", MaxLineSize, mre.Text)
	default:
		entry.Warn(mre.Error())
	}
}
