package probe

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Batch is a run of consecutive flow-log lines taken from one source.
type Batch struct {
	Source    string
	FirstLine int
	Lines     []string
	SentAt    time.Time
}

// EncodeBatch serializes a batch as a protobuf google.protobuf.Struct.
// Protobuf strings must be UTF-8, so invalid bytes are replaced with U+FFFD.
func EncodeBatch(b *Batch) ([]byte, error) {
	lines := make([]interface{}, len(b.Lines))
	for i, line := range b.Lines {
		lines[i] = strings.ToValidUTF8(line, "\uFFFD")
	}

	st, err := structpb.NewStruct(map[string]interface{}{
		"source":     strings.ToValidUTF8(b.Source, "\uFFFD"),
		"first_line": b.FirstLine,
		"sent_at":    b.SentAt.UTC().Format(time.RFC3339Nano),
		"lines":      lines,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build batch struct: %w", err)
	}
	return proto.Marshal(st)
}

// DecodeBatch is the inverse of EncodeBatch.
func DecodeBatch(data []byte) (*Batch, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}
	fields := st.GetFields()

	b := &Batch{
		Source:    fields["source"].GetStringValue(),
		FirstLine: int(fields["first_line"].GetNumberValue()),
	}
	if ts := fields["sent_at"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid sent_at: %w", err)
		}
		b.SentAt = t
	}

	values := fields["lines"].GetListValue().GetValues()
	b.Lines = make([]string, len(values))
	for i, v := range values {
		b.Lines[i] = v.GetStringValue()
	}
	return b, nil
}
