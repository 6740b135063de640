package writer

import (
	"FlowTagger/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// File names inside a gob snapshot directory.
const (
	ReportFile  = "report.dat"
	SummaryFile = "summary.json"
)

// SummaryData holds the metadata for a snapshot, internal to the writer.
type SummaryData struct {
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	Tags      int    `json:"tags"`
	Pairs     int    `json:"pairs"`
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"`
	Untagged  uint64 `json:"untagged"`
	Timestamp string `json:"timestamp"`
}

// GobWriter writes each report to <root>/<timestamp>/ in gob format with a JSON summary.
type GobWriter struct {
	rootPath string
	log      logrus.FieldLogger
}

// NewGobWriter creates a new gob snapshot writer.
func NewGobWriter(rootPath string, log logrus.FieldLogger) model.Writer {
	return &GobWriter{rootPath: rootPath, log: log}
}

// Name returns the writer type.
func (w *GobWriter) Name() string {
	return "gob"
}

// Write serializes the report into a timestamped snapshot directory.
func (w *GobWriter) Write(report *model.Report, timestamp string) error {
	snapshotDir := filepath.Join(w.rootPath, timestamp)
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filePath := filepath.Join(snapshotDir, ReportFile)
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(report); err != nil {
		return fmt.Errorf("failed to encode report to gob for file '%s': %w", filePath, err)
	}

	summary := SummaryData{
		RunID:     report.RunID,
		Source:    report.Source,
		Tags:      len(report.TagCounts),
		Pairs:     report.PortProtocolCounts.Pairs(),
		Processed: report.Stats.Processed,
		Skipped:   report.Stats.Skipped,
		Untagged:  report.Stats.Untagged,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	summaryFilePath := filepath.Join(snapshotDir, SummaryFile)
	summaryFile, err := os.Create(summaryFilePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	w.log.Infof("Wrote gob snapshot of run %s to %s", report.RunID, snapshotDir)
	return nil
}

// ReadGob decodes a report written by GobWriter.
func ReadGob(path string) (*model.Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open gob file: %w", err)
	}
	defer file.Close()

	var report model.Report
	if err := gob.NewDecoder(file).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode gob data: %w", err)
	}
	return &report, nil
}
