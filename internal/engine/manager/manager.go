package manager

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/engine/flowlog"
	"FlowTagger/internal/engine/layout"
	"FlowTagger/internal/engine/lookup"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/writer"
	"FlowTagger/pkg/lineio"
	"FlowTagger/pkg/pcap"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager wires the lookup table, field layout and writers around one
// classification engine and runs the batch pipeline.
type Manager struct {
	cfg     *config.Config
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	table   *lookup.Table
	engine  *classifier.Engine
	writers []model.Writer

	// Worker pool for chunked classification
	numWorkers int
	chunkSize  int
}

// NewManager resolves the layout, loads the lookup table and creates the
// configured writers. A missing lookup table is fatal.
func NewManager(cfg *config.Config, log logrus.FieldLogger, m *metrics.Metrics) (*Manager, error) {
	l, err := layout.Resolve(cfg.Input.LogFormat)
	if err != nil {
		return nil, err
	}

	table, err := lookup.Load(cfg.Input.LookupTable, log)
	if err != nil {
		return nil, fmt.Errorf("error reading lookup table: %w", err)
	}
	m.SetLookupEntries(table.Len())

	writers, err := factory.Create(cfg, log)
	if err != nil {
		return nil, err
	}

	numWorkers := cfg.Engine.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	chunkSize := cfg.Engine.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 4096
	}

	log.Infof("Manager initialized: layout %q (min %d fields), %d writers, %d workers",
		l.String(), l.MinFields(), len(writers), numWorkers)

	return &Manager{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		table:      table,
		engine:     classifier.New(table, l, classifier.WithLogger(log), classifier.WithMetrics(m)),
		writers:    writers,
		numWorkers: numWorkers,
		chunkSize:  chunkSize,
	}, nil
}

// Engine returns the classification engine.
func (m *Manager) Engine() *classifier.Engine {
	return m.engine
}

// Table returns the loaded lookup table.
func (m *Manager) Table() *lookup.Table {
	return m.table
}

// Writers returns the configured writers.
func (m *Manager) Writers() []model.Writer {
	return m.writers
}

// Run classifies the configured flow log, writes the report to every writer
// and returns it. Writer failures are logged and returned joined, alongside the report.
func (m *Manager) Run(ctx context.Context) (*model.Report, error) {
	res, err := m.Classify(ctx)
	if err != nil {
		return nil, err
	}

	report := res.Report(m.cfg.Input.FlowLogs)
	return report, m.WriteReport(report)
}

// Classify runs the engine over the configured source.
func (m *Manager) Classify(ctx context.Context) (*classifier.Result, error) {
	path := m.cfg.Input.FlowLogs

	if m.cfg.Input.SourceType == config.SourcePcap {
		lines, err := m.flowLinesFromCapture(path)
		if err != nil {
			return nil, err
		}
		return m.ClassifyReader(ctx, path, strings.NewReader(strings.Join(lines, "\n")))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error processing the log files '%s': %w: %w", path, model.ErrSourceUnavailable, err)
	}
	defer file.Close()

	return m.ClassifyReader(ctx, path, file)
}

// ClassifyReader classifies r, on the worker pool when more than one worker is configured.
// source names r in diagnostics.
func (m *Manager) ClassifyReader(ctx context.Context, source string, r io.Reader) (*classifier.Result, error) {
	if m.numWorkers == 1 {
		return m.engine.ClassifySource(source, r)
	}
	return m.classifyParallel(ctx, source, r)
}

type chunk struct {
	firstLine int
	lines     []string
}

// classifyParallel splits r into chunks of consecutive lines, classifies each chunk
// into a per-worker Result and merges them once the stream is exhausted.
func (m *Manager) classifyParallel(ctx context.Context, source string, r io.Reader) (*classifier.Result, error) {
	chunks := make(chan chunk, m.numWorkers)
	results := make([]*classifier.Result, m.numWorkers)

	var workerWg sync.WaitGroup
	workerWg.Add(m.numWorkers)
	for i := 0; i < m.numWorkers; i++ {
		results[i] = classifier.NewResult()
		go func(res *classifier.Result) {
			defer workerWg.Done()
			for c := range chunks {
				m.engine.ClassifyLines(res, source, c.firstLine, c.lines)
			}
		}(results[i])
	}

	// Over-long lines are counted by the producer, outside the workers.
	skipped := classifier.NewResult()
	scanErr := m.produceChunks(ctx, source, r, chunks, skipped)
	close(chunks)
	workerWg.Wait()
	if scanErr != nil {
		return nil, scanErr
	}

	merged := classifier.NewResult()
	merged.Merge(skipped)
	for _, res := range results {
		merged.Merge(res)
	}
	m.log.WithFields(logrus.Fields{
		"processed": merged.Stats.Processed,
		"skipped":   merged.Stats.Skipped,
		"untagged":  merged.Stats.Untagged,
		"workers":   m.numWorkers,
		"source":    source,
	}).Info("Flow log classified")
	return merged, nil
}

func (m *Manager) produceChunks(ctx context.Context, source string, r io.Reader, out chan<- chunk, skipped *classifier.Result) error {
	reader := lineio.NewReader(r, classifier.MaxLineSize)
	current := chunk{firstLine: 1, lines: make([]string, 0, m.chunkSize)}

	send := func(c chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case out <- c:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for reader.Next() {
		lineNo := reader.Line()
		if reader.TooLong() {
			// Chunks hold consecutive lines, so the one in progress ends here.
			if len(current.lines) > 0 {
				if err := send(current); err != nil {
					return err
				}
			}
			m.engine.SkipLongLine(skipped, source, lineNo, reader.Text())
			current = chunk{firstLine: lineNo + 1, lines: make([]string, 0, m.chunkSize)}
			continue
		}
		current.lines = append(current.lines, reader.Text())
		if len(current.lines) == m.chunkSize {
			if err := send(current); err != nil {
				return err
			}
			current = chunk{firstLine: lineNo + 1, lines: make([]string, 0, m.chunkSize)}
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("failed to read flow log: %w: %w", model.ErrSourceUnavailable, err)
	}
	if len(current.lines) > 0 {
		return send(current)
	}
	return nil
}

// flowLinesFromCapture converts a packet capture into default-layout flow-log lines.
func (m *Manager) flowLinesFromCapture(path string) ([]string, error) {
	if m.engine.Layout().String() != layout.Default().String() {
		return nil, fmt.Errorf("pcap sources produce the default flow-log layout; log_format must be empty")
	}

	reader, err := pcap.NewReader(path, m.log)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	builder := flowlog.NewBuilder(m.cfg.Engine.NumShards)
	packets, err := reader.Each(builder.ProcessPacket)
	if err != nil {
		return nil, err
	}
	m.log.Infof("Built %d flows from %d packets in '%s'", builder.Len(), packets, path)
	return builder.Lines(), nil
}

// WriteReport hands the report to every writer concurrently and waits for all of them.
func (m *Manager) WriteReport(report *model.Report) error {
	timestamp := writer.SnapshotTimestamp(report)
	m.log.Infof("Writing report %s to %d writers", report.RunID, len(m.writers))

	var wg sync.WaitGroup
	errs := make([]error, len(m.writers))
	wg.Add(len(m.writers))
	for i, w := range m.writers {
		go func(i int, w model.Writer) {
			defer wg.Done()
			err := w.Write(report, timestamp)
			m.metrics.ObserveWrite(w.Name(), err)
			if err != nil {
				m.log.WithError(err).Errorf("Error writing report with writer '%s'", w.Name())
				errs[i] = fmt.Errorf("writer '%s': %w", w.Name(), err)
			}
		}(i, w)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close releases writer connections.
func (m *Manager) Close() {
	factory.Close(m.writers, m.log)
}
