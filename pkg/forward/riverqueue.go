package forward

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"reviewhooks/internal"

	"github.com/lib/pq"
)

// riverQueuePublisher inserts finished reviews as jobs into a river jobs
// table, for worker fleets that consume reviews as background jobs.
type riverQueuePublisher struct {
	db  *sql.DB
	cfg internal.RiverQueueConfig
}

func newRiverQueuePublisher(cfg internal.RiverQueueConfig) (*riverQueuePublisher, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &riverQueuePublisher{db: db, cfg: cfg}, nil
}

// Publish inserts one job into the river jobs table.
func (p *riverQueuePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	metadata, err := json.Marshal(map[string]interface{}{
		"topic": topic,
	})
	if err != nil {
		return err
	}

	table := strings.TrimSpace(p.cfg.Table)
	if table == "" {
		table = "river_job"
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (args, kind, max_attempts, metadata, priority, queue, scheduled_at, tags)
VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		table,
	)

	_, err = p.db.ExecContext(
		ctx,
		query,
		string(payload),
		p.cfg.Kind,
		p.cfg.MaxAttempts,
		string(metadata),
		p.cfg.Priority,
		p.cfg.Queue,
		pq.Array(p.cfg.Tags),
	)
	return err
}

// Close closes the underlying database connection.
func (p *riverQueuePublisher) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
