// Package writer persists classification reports: plain text, gob snapshots,
// ClickHouse tables and NATS messages.
package writer

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"

	"github.com/sirupsen/logrus"
)

// --- Factory Registration ---

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewTextWriter(def.Text.RootPath, log), nil
	})
	factory.RegisterWriter("gob", func(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewGobWriter(def.Gob.RootPath, log), nil
	})
	factory.RegisterWriter("clickhouse", func(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse, log)
	})
	factory.RegisterWriter("nats", func(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewNATSWriter(def.NATS, log)
	})
}
