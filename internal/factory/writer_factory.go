package factory

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// WriterFactory builds a writer from its config definition.
type WriterFactory func(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Types returns the registered writer types in sorted order.
func Types() []string {
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Create builds every enabled writer in cfg. An unknown type or a failing
// factory aborts creation and closes the writers built so far.
func Create(cfg *config.Config, log logrus.FieldLogger) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Output.Writers {
		if !def.Enabled {
			continue
		}
		log.Infof("Creating writer of type '%s'", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			Close(writers, log)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		writer, err := factory(def, log.WithField("writer", def.Type))
		if err != nil {
			Close(writers, log)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		writers = append(writers, writer)
	}

	return writers, nil
}

// Close releases writers that hold connections.
func Close(writers []model.Writer, log logrus.FieldLogger) {
	for _, w := range writers {
		c, ok := w.(model.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			log.WithError(err).Warnf("Failed to close writer '%s'", w.Name())
		}
	}
}
