package stream

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/engine/manager"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/probe"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const drainTimeout = 10 * time.Second

// Aggregator consumes flow-log batches from NATS, classifies them into a
// shared Result and periodically writes a report through the manager's writers.
type Aggregator struct {
	nc  *nats.Conn
	sub *nats.Subscription

	manager  *manager.Manager
	cfg      config.StreamConfig
	interval time.Duration
	log      logrus.FieldLogger

	mu      sync.Mutex
	res     *classifier.Result
	batches uint64

	closed        chan struct{}
	stopChan      chan struct{}
	snapshotterWg sync.WaitGroup
	stopOnce      sync.Once
}

// NewAggregator creates a new real-time aggregator.
func NewAggregator(cfg *config.Config, log logrus.FieldLogger, m *metrics.Metrics) (*Aggregator, error) {
	interval, err := time.ParseDuration(cfg.Stream.SnapshotInterval)
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("invalid snapshot interval '%s'", cfg.Stream.SnapshotInterval)
	}

	// The manager owns the lookup table, the engine and the writers.
	mgr, err := manager.NewManager(cfg, log, m)
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		manager:  mgr,
		cfg:      cfg.Stream,
		interval: interval,
		log:      log.WithField("subject", cfg.Stream.Subject),
		res:      classifier.NewResult(),
		closed:   make(chan struct{}),
		stopChan: make(chan struct{}),
	}, nil
}

// Start connects to NATS, subscribes to the flow-log subject and starts the snapshotter.
func (a *Aggregator) Start() error {
	a.log.Infof("Aggregator starting for nats: %s", a.cfg.NATSURL)
	nc, err := nats.Connect(a.cfg.NATSURL,
		nats.Name("flowtagger-stream"),
		nats.ClosedHandler(func(*nats.Conn) { close(a.closed) }),
	)
	if err != nil {
		return fmt.Errorf("aggregator failed to connect to NATS: %w", err)
	}
	a.nc = nc

	a.sub, err = nc.Subscribe(a.cfg.Subject, probe.MsgHandler(a.HandleBatch, a.log))
	if err != nil {
		nc.Close()
		a.nc = nil
		return fmt.Errorf("aggregator failed to subscribe: %w", err)
	}

	a.snapshotterWg.Add(1)
	go a.runSnapshotter()
	a.log.Infof("Aggregator subscribed, snapshot every %s", a.interval)
	return nil
}

// HandleBatch classifies every line of the batch into the shared result.
func (a *Aggregator) HandleBatch(b *probe.Batch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manager.Engine().ClassifyLines(a.res, b.Source, b.FirstLine, b.Lines)
	a.batches++
}

// Snapshot returns a copy of the counts gathered so far. With reset_on_snapshot
// the shared result is cleared and a new measurement period begins.
func (a *Aggregator) Snapshot() *classifier.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.ResetOnSnapshot {
		res := a.res
		a.res = classifier.NewResult()
		return res
	}
	return a.res.Clone()
}

// TakeSnapshot writes the current counts to every writer.
func (a *Aggregator) TakeSnapshot() error {
	report := a.Snapshot().Report(a.cfg.Subject)
	a.log.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"processed": report.Stats.Processed,
		"skipped":   report.Stats.Skipped,
	}).Info("Taking snapshot")
	return a.manager.WriteReport(report)
}

func (a *Aggregator) runSnapshotter() {
	defer a.snapshotterWg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.TakeSnapshot(); err != nil {
				a.log.WithError(err).Error("Snapshot failed")
			}
		case <-a.stopChan:
			return
		}
	}
}

// Stop unsubscribes, waits for the snapshotter and writes a final snapshot.
func (a *Aggregator) Stop() *model.Report {
	var final *model.Report
	a.stopOnce.Do(func() {
		a.log.Info("Aggregator stopping...")
		if a.nc != nil {
			// Drain lets pending messages reach HandleBatch before the connection closes.
			if err := a.nc.Drain(); err != nil {
				a.log.WithError(err).Warn("NATS drain failed")
				a.nc.Close()
			}
			select {
			case <-a.closed:
			case <-time.After(drainTimeout):
				a.log.Warn("Timed out waiting for NATS drain")
			}
		}
		close(a.stopChan)
		a.snapshotterWg.Wait()

		final = a.Snapshot().Report(a.cfg.Subject)
		if err := a.manager.WriteReport(final); err != nil {
			a.log.WithError(err).Error("Final snapshot failed")
		}
		a.manager.Close()
		a.log.Infof("Aggregator stopped after %d batches.", a.Batches())
	})
	return final
}

// Batches returns the number of batches handled.
func (a *Aggregator) Batches() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.batches
}
