package classifier

import (
	"FlowTagger/internal/model"
	"time"

	"github.com/google/uuid"
)

// Result accumulates the two aggregate maps of a classification run.
// A Result is not safe for concurrent use.
type Result struct {
	TagCounts          model.TagCounts
	PortProtocolCounts model.PortProtocolCounts
	Stats              model.Stats
}

// NewResult returns an empty Result.
func NewResult() *Result {
	return &Result{
		TagCounts:          make(model.TagCounts),
		PortProtocolCounts: make(model.PortProtocolCounts),
	}
}

// Merge adds every count of other into r. Aggregation is commutative and
// associative, so results of independent chunks can be merged in any order.
func (r *Result) Merge(other *Result) {
	for tag, n := range other.TagCounts {
		r.TagCounts[tag] += n
	}
	for port, byProto := range other.PortProtocolCounts {
		for proto, n := range byProto {
			r.PortProtocolCounts.Add(port, proto, n)
		}
	}
	r.Stats.Processed += other.Stats.Processed
	r.Stats.Skipped += other.Stats.Skipped
	r.Stats.Untagged += other.Stats.Untagged
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	c := NewResult()
	c.Merge(r)
	return c
}

// Report wraps a deep copy of the result in a model.Report with a fresh run ID.
func (r *Result) Report(source string) *model.Report {
	c := r.Clone()
	return &model.Report{
		RunID:              uuid.NewString(),
		GeneratedAt:        time.Now().UTC(),
		Source:             source,
		TagCounts:          c.TagCounts,
		PortProtocolCounts: c.PortProtocolCounts,
		Stats:              c.Stats,
	}
}
