package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Options customises how EXPLAIN is executed.
type Options struct {
	Timeout time.Duration
	// Analyze asks the engine to execute the statement so the plan text
	// carries runtime annotations.
	Analyze bool
}

// Run executes EXPLAIN for the provided statement against an engine
// speaking the PostgreSQL wire protocol and returns the plan text. Each
// result row is one plan line.
func Run(ctx context.Context, dsn, sqlStatement string, opts Options) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("runner: empty DSN")
	}
	query := strings.TrimSpace(sqlStatement)
	if query == "" {
		return "", fmt.Errorf("runner: empty sql statement")
	}

	explainSQL := "EXPLAIN " + query
	if opts.Analyze {
		explainSQL = "EXPLAIN ANALYZE " + query
	}

	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return "", fmt.Errorf("runner: connect: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, explainSQL)
	if err != nil {
		return "", fmt.Errorf("runner: query: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", fmt.Errorf("runner: scan: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("runner: read: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
