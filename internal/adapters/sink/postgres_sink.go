// Package sink persists per-sample outcome records for post-session
// analysis. Writes happen off the hot path behind AsyncWriter.
package sink

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

type PostgresSink struct {
	db        *sql.DB
	tableName string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, tableName: table}
}

func OpenPostgres(dsn, table string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresSink(db, table), nil
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) WriteBatch(outcomes []domain.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	// Idempotent: a replayed batch hits the unique key and is a no-op.
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (car_id, seq, priority, status, latency_us, met_deadline, recorded_at, detail) VALUES ")

	args := make([]any, 0, len(outcomes)*8)
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4,
			len(args)+5, len(args)+6, len(args)+7, len(args)+8))

		args = append(args,
			int16(o.CarID),
			int64(o.Seq),
			o.Priority.String(),
			o.Status.String(),
			o.Latency.Microseconds(),
			o.MetDeadline,
			o.RecordedAt,
			o.Detail,
		)
	}

	b.WriteString(" ON CONFLICT (car_id, seq) DO NOTHING")

	_, err := p.db.Exec(b.String(), args...)
	return err
}

func (p *PostgresSink) Close() error { return p.db.Close() }

var _ ports.OutcomeSink = (*PostgresSink)(nil)
