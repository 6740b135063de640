package query

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/writer"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// TagTotal is the summed count of one tag over a time window.
type TagTotal struct {
	Tag   string `json:"tag"`
	Count uint64 `json:"count"`
	Runs  uint64 `json:"runs"`
}

// PortProtocolTotal is the summed count of one (port, protocol) pair.
type PortProtocolTotal struct {
	Port     uint16 `json:"port"`
	Protocol string `json:"protocol"`
	Count    uint64 `json:"count"`
}

// Window restricts a query to reports written in [Since, Until]. Zero values are open ends.
type Window struct {
	Since  time.Time
	Until  time.Time
	Source string
	Limit  int
}

// Querier defines the interface for querying stored reports.
type Querier interface {
	TagTotals(ctx context.Context, w Window) ([]TagTotal, error)
	PortProtocolTotals(ctx context.Context, w Window) ([]PortProtocolTotal, error)
	Close() error
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := writer.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// TagTotals sums tag counts across every stored report in the window.
func (q *clickhouseQuerier) TagTotals(ctx context.Context, w Window) ([]TagTotal, error) {
	query, args := buildQuery(`
		SELECT
			Tag,
			SUM(Count) AS Total,
			uniqExact(RunID) AS Runs
		FROM tag_counts`, "GROUP BY Tag ORDER BY Total DESC, Tag", w)

	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var totals []TagTotal
	for rows.Next() {
		var t TagTotal
		if err := rows.Scan(&t.Tag, &t.Count, &t.Runs); err != nil {
			return nil, fmt.Errorf("failed to scan tag total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// PortProtocolTotals sums pair counts across every stored report in the window.
func (q *clickhouseQuerier) PortProtocolTotals(ctx context.Context, w Window) ([]PortProtocolTotal, error) {
	query, args := buildQuery(`
		SELECT
			Port,
			Protocol,
			SUM(Count) AS Total
		FROM port_protocol_counts`, "GROUP BY Port, Protocol ORDER BY Total DESC, Port, Protocol", w)

	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var totals []PortProtocolTotal
	for rows.Next() {
		var t PortProtocolTotal
		if err := rows.Scan(&t.Port, &t.Protocol, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan port/protocol total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}

// buildQuery appends the window's WHERE clause, the tail and an optional LIMIT.
func buildQuery(head, tail string, w Window) (string, []interface{}) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(head)

	var whereClauses []string
	args := []interface{}{}

	if !w.Since.IsZero() {
		whereClauses = append(whereClauses, "Timestamp >= ?")
		args = append(args, w.Since)
	}
	if !w.Until.IsZero() {
		whereClauses = append(whereClauses, "Timestamp <= ?")
		args = append(args, w.Until)
	}
	if w.Source != "" {
		whereClauses = append(whereClauses, "Source = ?")
		args = append(args, w.Source)
	}

	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	queryBuilder.WriteString(" " + tail)
	if w.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", w.Limit))
	}
	return queryBuilder.String(), args
}
