package probe

import (
	"FlowTagger/internal/config"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// BatchHandler is a function that processes a received Batch.
type BatchHandler func(b *Batch)

// Subscriber is responsible for subscribing to a NATS subject and decoding batches.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	log     logrus.FieldLogger
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.StreamConfig, log logrus.FieldLogger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("flowtagger-subscriber"))
	if err != nil {
		return nil, err
	}
	log.Infof("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject, log: log}, nil
}

// Start subscribes to the configured subject and hands every decoded batch to handler.
func (s *Subscriber) Start(handler BatchHandler) error {
	sub, err := s.nc.Subscribe(s.subject, MsgHandler(handler, s.log))
	if err != nil {
		return err
	}
	s.sub = sub
	s.log.Infof("Subscribed to '%s'. Waiting for messages...", s.subject)
	return nil
}

// MsgHandler adapts a BatchHandler to a NATS message callback. Messages that
// fail to decode are logged and dropped.
func MsgHandler(handler BatchHandler, log logrus.FieldLogger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		b, err := DecodeBatch(msg.Data)
		if err != nil {
			log.WithError(err).Warnf("Dropping undecodable message on '%s'", msg.Subject)
			return
		}
		handler(b)
	}
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		s.log.Info("NATS connection closed.")
	}
}
