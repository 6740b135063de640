package classifier

import (
	"FlowTagger/internal/engine/layout"
	"FlowTagger/internal/engine/lookup"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lookupSrc = "dstport,protocol,tag\n80,tcp,http\n443,tcp,https\n53,udp,dns\n"

// flowLine builds a default-layout record with the given destination port and protocol number.
func flowLine(dstPort, proto string) string {
	return "2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2 1234 " + dstPort + " " + proto +
		" 25 20000 1620140761 1620140821 ACCEPT OK"
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	table, err := lookup.Build(strings.NewReader(lookupSrc), logger)
	require.NoError(t, err)
	hook.Reset()
	return New(table, layout.Default(), append([]Option{WithLogger(logger)}, opts...)...), hook
}

func warnings(hook *test.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			n++
		}
	}
	return n
}

func TestClassify_TaggedRecord(t *testing.T) {
	engine, hook := newEngine(t)

	res, err := engine.Classify(strings.NewReader(flowLine("80", "6") + "\n"))
	require.NoError(t, err)

	assert.Equal(t, model.TagCounts{"http": 1}, res.TagCounts)
	assert.Equal(t, uint64(1), res.PortProtocolCounts[80]["tcp"])
	assert.Equal(t, model.Stats{Processed: 1}, res.Stats)
	assert.Zero(t, warnings(hook))
}

func TestClassify_ProtocolNotUnderPortIsUntagged(t *testing.T) {
	engine, _ := newEngine(t)

	// Port 53 is only registered for udp.
	res, err := engine.Classify(strings.NewReader(flowLine("53", "6")))
	require.NoError(t, err)

	assert.Equal(t, model.TagCounts{model.UntaggedTag: 1}, res.TagCounts)
	assert.Equal(t, uint64(1), res.PortProtocolCounts[53]["tcp"])
	assert.Equal(t, uint64(1), res.Stats.Untagged)
}

func TestClassify_UnknownPortIsUntagged(t *testing.T) {
	engine, _ := newEngine(t)

	res, err := engine.Classify(strings.NewReader(flowLine("8080", "17")))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.TagCounts["Untagged"])
	assert.Equal(t, uint64(1), res.PortProtocolCounts[8080]["udp"])
}

func TestClassify_UnknownProtocolNumber(t *testing.T) {
	engine, _ := newEngine(t)

	res, err := engine.Classify(strings.NewReader(flowLine("80", "253")))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.TagCounts[model.UntaggedTag])
	assert.Equal(t, uint64(1), res.PortProtocolCounts[80]["unknown"])
}

func TestClassify_NonNumericPortIsSkipped(t *testing.T) {
	engine, hook := newEngine(t)

	res, err := engine.Classify(strings.NewReader(flowLine("http", "6")))
	require.NoError(t, err)

	assert.Empty(t, res.TagCounts)
	assert.Empty(t, res.PortProtocolCounts)
	assert.Equal(t, uint64(1), res.Stats.Skipped)
	assert.Equal(t, 1, warnings(hook))
}

func TestClassify_OutOfRangePortIsSkipped(t *testing.T) {
	engine, hook := newEngine(t)

	res, err := engine.Classify(strings.NewReader(flowLine("65536", "6") + "\n" + flowLine("-80", "6")))
	require.NoError(t, err)

	assert.Empty(t, res.TagCounts)
	assert.Equal(t, 2, warnings(hook))
}

func TestClassify_ShortLineIsSkipped(t *testing.T) {
	engine, hook := newEngine(t)

	res, err := engine.Classify(strings.NewReader("2 123 eni-1 10.0.0.1 10.0.0.2 1234 80\n"))
	require.NoError(t, err)

	assert.Empty(t, res.TagCounts)
	assert.Empty(t, res.PortProtocolCounts)
	assert.Equal(t, 1, warnings(hook))
}

func TestClassify_MinimumFieldCountIsEnough(t *testing.T) {
	engine, _ := newEngine(t)

	// Exactly 8 fields: the default layout needs nothing past the protocol.
	res, err := engine.Classify(strings.NewReader("2 123 eni-1 10.0.0.1 10.0.0.2 1234 443 6"))
	require.NoError(t, err)
	assert.Equal(t, model.TagCounts{"https": 1}, res.TagCounts)
}

func TestClassify_BlankLinesAreSilent(t *testing.T) {
	engine, hook := newEngine(t)

	res, err := engine.Classify(strings.NewReader("\n   \n\t\n" + flowLine("443", "6") + "\n\n"))
	require.NoError(t, err)

	assert.Equal(t, model.TagCounts{"https": 1}, res.TagCounts)
	assert.Equal(t, model.Stats{Processed: 1}, res.Stats)
	assert.Zero(t, warnings(hook))
}

func TestClassify_MixedStream(t *testing.T) {
	engine, hook := newEngine(t)
	lines := []string{
		flowLine("80", "6"),
		flowLine("80", "6"),
		flowLine("443", "6"),
		flowLine("53", "17"),
		flowLine("53", "6"),
		flowLine("x", "6"),
		"too short",
		flowLine("8080", "1"),
	}

	res, err := engine.Classify(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)

	assert.Equal(t, model.TagCounts{"http": 2, "https": 1, "dns": 1, "Untagged": 2}, res.TagCounts)
	assert.Equal(t, model.PortProtocolCounts{
		80:   {"tcp": 2},
		443:  {"tcp": 1},
		53:   {"udp": 1, "tcp": 1},
		8080: {"icmp": 1},
	}, res.PortProtocolCounts)
	assert.Equal(t, model.Stats{Processed: 6, Skipped: 2, Untagged: 2}, res.Stats)
	assert.Equal(t, 2, warnings(hook))
}

func TestClassify_CustomLayout(t *testing.T) {
	logger, hook := test.NewNullLogger()
	table, err := lookup.Build(strings.NewReader(lookupSrc), logger)
	require.NoError(t, err)
	l, err := layout.Resolve("timestamp srcaddr dstaddr dstport srcport protocol")
	require.NoError(t, err)
	engine := New(table, l, WithLogger(logger))
	hook.Reset()

	src := "1620140761 10.0.0.1 10.0.0.2 443 50000 6\n" +
		"1620140761 10.0.0.1 10.0.0.2 53 50000\n"
	res, err := engine.Classify(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, model.TagCounts{"https": 1}, res.TagCounts)
	assert.Equal(t, 1, warnings(hook))
}

type brokenReader struct{ data string }

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, errors.New("connection reset")
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestClassify_ReadFailureReturnsNoCounts(t *testing.T) {
	engine, _ := newEngine(t)

	res, err := engine.Classify(&brokenReader{data: flowLine("80", "6") + "\n"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
}

func TestClassifyFile(t *testing.T) {
	engine, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "log_files.txt")
	require.NoError(t, os.WriteFile(path, []byte(flowLine("80", "6")+"\n"+flowLine("443", "6")+"\n"), 0644))

	res, err := engine.ClassifyFile(path)
	require.NoError(t, err)
	assert.Equal(t, model.TagCounts{"http": 1, "https": 1}, res.TagCounts)
}

func TestClassifyFile_Missing(t *testing.T) {
	engine, _ := newEngine(t)

	res, err := engine.ClassifyFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
}

func TestProcessLine_ReturnsMalformedRecord(t *testing.T) {
	engine, _ := newEngine(t)
	res := NewResult()

	err := engine.ProcessLine(res, 7, flowLine("eighty", "6"))
	var mre *model.MalformedRecordError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, 7, mre.Line)
	assert.Equal(t, model.ReasonBadPort, mre.Reason)
	assert.Equal(t, "eighty", mre.Text)

	err = engine.ProcessLine(res, 8, "a b c")
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, model.ReasonFieldCount, mre.Reason)

	assert.Empty(t, res.TagCounts)
	assert.Equal(t, uint64(2), res.Stats.Skipped)
}

func TestClassifyLines(t *testing.T) {
	engine, hook := newEngine(t)
	res := NewResult()

	engine.ClassifyLines(res, "flows-b.log", 100, []string{flowLine("80", "6"), "bad", flowLine("53", "17")})

	assert.Equal(t, model.TagCounts{"http": 1, "dns": 1}, res.TagCounts)
	require.Equal(t, 1, warnings(hook))
	assert.Equal(t, 101, hook.LastEntry().Data["line"])
	assert.Equal(t, "flows-b.log", hook.LastEntry().Data["source"])
}

func TestClassifyLines_NoSource(t *testing.T) {
	engine, hook := newEngine(t)

	engine.ClassifyLines(NewResult(), "", 1, []string{"bad"})

	require.Equal(t, 1, warnings(hook))
	assert.NotContains(t, hook.LastEntry().Data, "source")
}

func TestClassifySource_TagsDiagnostics(t *testing.T) {
	engine, hook := newEngine(t)

	_, err := engine.ClassifySource("flows-a.log", strings.NewReader("bad\n"+flowLine("80", "6")))
	require.NoError(t, err)

	for _, e := range hook.AllEntries() {
		assert.Equal(t, "flows-a.log", e.Data["source"])
	}
}

func TestClassify_OverlongLineIsSkipped(t *testing.T) {
	m := metrics.NewMetrics()
	engine, hook := newEngine(t, WithMetrics(m))
	src := flowLine("80", "6") + "\n" + strings.Repeat("z", 2<<20) + "\n" + flowLine("443", "6") + "\n"

	res, err := engine.Classify(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, model.TagCounts{"http": 1, "https": 1}, res.TagCounts)
	assert.Equal(t, uint64(2), res.Stats.Processed)
	assert.Equal(t, uint64(1), res.Stats.Skipped)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesSkipped.WithLabelValues(model.ReasonLineTooLong)))

	require.Equal(t, 1, warnings(hook))
	var warn *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warn = e
		}
	}
	assert.Equal(t, 2, warn.Data["line"])
	assert.Equal(t, model.ReasonLineTooLong, warn.Data["reason"])
	assert.Less(t, len(warn.Message), 200)
}

func TestSkipLongLine(t *testing.T) {
	engine, hook := newEngine(t)
	res := NewResult()

	engine.SkipLongLine(res, "flows.log", 12, strings.Repeat("q", 500))

	assert.Equal(t, uint64(1), res.Stats.Skipped)
	require.Equal(t, 1, warnings(hook))
	assert.Equal(t, 12, hook.LastEntry().Data["line"])
	assert.Equal(t, "flows.log", hook.LastEntry().Data["source"])
	assert.Contains(t, hook.LastEntry().Message, strings.Repeat("q", longLinePrefix))
	assert.NotContains(t, hook.LastEntry().Message, strings.Repeat("q", longLinePrefix+1))
}

func TestClassify_Metrics(t *testing.T) {
	m := metrics.NewMetrics()
	engine, _ := newEngine(t, WithMetrics(m))

	_, err := engine.Classify(strings.NewReader(strings.Join([]string{
		flowLine("80", "6"),
		flowLine("81", "6"),
		flowLine("bad", "6"),
		"short",
	}, "\n")))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LinesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues(metrics.OutcomeTagged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues(metrics.OutcomeUntagged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesSkipped.WithLabelValues(model.ReasonBadPort)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesSkipped.WithLabelValues(model.ReasonFieldCount)))
}
