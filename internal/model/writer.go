package model

// Writer defines a generic interface for persisting a classification report.
type Writer interface {
	// Name identifies the writer type in logs, e.g. "text" or "clickhouse".
	Name() string

	// Write persists the report. The timestamp is formatted as 2006-01-02_15-04-05
	// and is used by writers that keep one snapshot per run.
	Write(report *Report, timestamp string) error
}

// Closer is implemented by writers that hold a connection.
type Closer interface {
	Close() error
}
