package factory

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	name   string
	closed bool
}

func (w *fakeWriter) Name() string                      { return w.name }
func (w *fakeWriter) Write(*model.Report, string) error { return nil }
func (w *fakeWriter) Close() error                      { w.closed = true; return nil }

var built []*fakeWriter

func init() {
	RegisterWriter("fake", func(def config.WriterDef, _ logrus.FieldLogger) (model.Writer, error) {
		w := &fakeWriter{name: "fake"}
		built = append(built, w)
		return w, nil
	})
	RegisterWriter("broken", func(config.WriterDef, logrus.FieldLogger) (model.Writer, error) {
		return nil, errors.New("cannot connect")
	})
}

func TestCreate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{Output: config.OutputConfig{Writers: []config.WriterDef{
		{Type: "fake", Enabled: true},
		{Type: "fake", Enabled: false},
		{Type: "unknown", Enabled: false},
	}}}

	writers, err := Create(cfg, logger)
	require.NoError(t, err)
	assert.Len(t, writers, 1)
	assert.Equal(t, "fake", writers[0].Name())
}

func TestCreate_UnknownTypeClosesBuiltWriters(t *testing.T) {
	logger, _ := test.NewNullLogger()
	built = nil
	cfg := &config.Config{Output: config.OutputConfig{Writers: []config.WriterDef{
		{Type: "fake", Enabled: true},
		{Type: "carrier-pigeon", Enabled: true},
	}}}

	_, err := Create(cfg, logger)
	assert.ErrorContains(t, err, "carrier-pigeon")
	require.Len(t, built, 1)
	assert.True(t, built[0].closed)
}

func TestCreate_FactoryError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{Output: config.OutputConfig{Writers: []config.WriterDef{
		{Type: "broken", Enabled: true},
	}}}

	_, err := Create(cfg, logger)
	assert.ErrorContains(t, err, "cannot connect")
}

func TestRegisterWriter_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		RegisterWriter("fake", nil)
	})
	assert.Contains(t, Types(), "fake")
}
