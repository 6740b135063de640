package probe

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/model"
	"FlowTagger/pkg/lineio"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher is responsible for publishing flow-log batches to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	log     logrus.FieldLogger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.StreamConfig, log logrus.FieldLogger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("flowtagger-probe"))
	if err != nil {
		return nil, err
	}
	log.Infof("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject, log: log}, nil
}

// Publish serializes the batch and publishes it to the configured subject.
func (p *Publisher) Publish(b *Batch) error {
	if b.SentAt.IsZero() {
		b.SentAt = time.Now()
	}
	data, err := EncodeBatch(b)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// PublishReader splits r into batches of batchSize lines and publishes them in order.
// Lines longer than classifier.MaxLineSize are logged and dropped.
// It returns the number of lines published.
func (p *Publisher) PublishReader(source string, r io.Reader, batchSize int) (int, error) {
	published, err := splitBatches(source, r, batchSize, p.log, p.Publish)
	if err != nil {
		return published, err
	}
	if err := p.nc.Flush(); err != nil {
		return published, fmt.Errorf("failed to flush: %w", err)
	}
	p.log.Infof("Published %d lines from '%s' to '%s'", published, source, p.subject)
	return published, nil
}

// splitBatches cuts r into batches of consecutive lines and hands each to emit.
// A batch never spans a dropped line, so FirstLine stays exact for every line in it.
func splitBatches(source string, r io.Reader, batchSize int, log logrus.FieldLogger, emit func(*Batch) error) (int, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	reader := lineio.NewReader(r, classifier.MaxLineSize)
	batch := &Batch{Source: source, FirstLine: 1}
	published := 0

	flush := func(next int) error {
		if len(batch.Lines) > 0 {
			if err := emit(batch); err != nil {
				return fmt.Errorf("failed to publish batch: %w", err)
			}
			published += len(batch.Lines)
		}
		batch = &Batch{Source: source, FirstLine: next}
		return nil
	}

	for reader.Next() {
		lineNo := reader.Line()
		if reader.TooLong() {
			log.WithFields(logrus.Fields{"source": source, "line": lineNo, "reason": model.ReasonLineTooLong}).
				Warnf("Dropping flow log entry longer than %d bytes", classifier.MaxLineSize)
			if err := flush(lineNo + 1); err != nil {
				return published, err
			}
			continue
		}
		batch.Lines = append(batch.Lines, reader.Text())
		if len(batch.Lines) == batchSize {
			if err := flush(lineNo + 1); err != nil {
				return published, err
			}
		}
	}
	if err := reader.Err(); err != nil {
		return published, fmt.Errorf("failed to read '%s': %w", source, err)
	}
	if err := flush(reader.Line() + 1); err != nil {
		return published, err
	}
	return published, nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.log.Info("NATS connection drained and closed.")
	}
}
