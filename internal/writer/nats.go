package writer

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ContentTypeProtobuf is set on every published report.
const ContentTypeProtobuf = "application/protobuf"

// NATSWriter publishes each report as a protobuf Struct to a NATS subject.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
	log     logrus.FieldLogger
}

// NewNATSWriter connects to NATS and returns a writer publishing to cfg.Subject.
func NewNATSWriter(cfg config.NATSConfig, log logrus.FieldLogger) (model.Writer, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats writer requires a subject")
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("flowtagger-report-writer"))
	if err != nil {
		return nil, err
	}
	log.Infof("Connected to NATS server at %s", url)
	return &NATSWriter{nc: nc, subject: cfg.Subject, log: log}, nil
}

// Name returns the writer type.
func (w *NATSWriter) Name() string {
	return "nats"
}

// Write encodes and publishes the report, then flushes so delivery errors surface here.
func (w *NATSWriter) Write(report *model.Report, timestamp string) error {
	data, err := EncodeReport(report)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(w.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, report.RunID)
	msg.Header.Set("Content-Type", ContentTypeProtobuf)
	msg.Header.Set("Snapshot", timestamp)
	if err := w.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	if err := w.nc.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}

	w.log.Infof("Published run %s to '%s' (%d bytes)", report.RunID, w.subject, len(data))
	return nil
}

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() error {
	return w.nc.Drain()
}

// EncodeReport serializes a report as a protobuf google.protobuf.Struct.
func EncodeReport(report *model.Report) ([]byte, error) {
	tags := make(map[string]interface{}, len(report.TagCounts))
	for tag, n := range report.TagCounts {
		tags[tag] = n
	}

	pairs := make([]interface{}, 0, report.PortProtocolCounts.Pairs())
	for port, byProto := range report.PortProtocolCounts {
		for proto, n := range byProto {
			pairs = append(pairs, map[string]interface{}{
				"port":     port,
				"protocol": proto,
				"count":    n,
			})
		}
	}

	st, err := structpb.NewStruct(map[string]interface{}{
		"run_id":               report.RunID,
		"source":               report.Source,
		"generated_at":         report.GeneratedAt.UTC().Format(time.RFC3339Nano),
		"tag_counts":           tags,
		"port_protocol_counts": pairs,
		"stats": map[string]interface{}{
			"processed": report.Stats.Processed,
			"skipped":   report.Stats.Skipped,
			"untagged":  report.Stats.Untagged,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report struct: %w", err)
	}
	return proto.Marshal(st)
}

// DecodeReport is the inverse of EncodeReport.
func DecodeReport(data []byte) (*model.Report, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	fields := st.GetFields()

	report := &model.Report{
		RunID:              fields["run_id"].GetStringValue(),
		Source:             fields["source"].GetStringValue(),
		TagCounts:          make(model.TagCounts),
		PortProtocolCounts: make(model.PortProtocolCounts),
	}
	if ts := fields["generated_at"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid generated_at: %w", err)
		}
		report.GeneratedAt = t
	}

	for tag, v := range fields["tag_counts"].GetStructValue().GetFields() {
		report.TagCounts[tag] = uint64(v.GetNumberValue())
	}
	for _, v := range fields["port_protocol_counts"].GetListValue().GetValues() {
		pair := v.GetStructValue().GetFields()
		report.PortProtocolCounts.Add(
			int(pair["port"].GetNumberValue()),
			pair["protocol"].GetStringValue(),
			uint64(pair["count"].GetNumberValue()),
		)
	}

	stats := fields["stats"].GetStructValue().GetFields()
	report.Stats = model.Stats{
		Processed: uint64(stats["processed"].GetNumberValue()),
		Skipped:   uint64(stats["skipped"].GetNumberValue()),
		Untagged:  uint64(stats["untagged"].GetNumberValue()),
	}
	return report, nil
}
