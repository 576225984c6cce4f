package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const createLogTable = `
	CREATE TABLE IF NOT EXISTS busybee_log (
		seq        BIGSERIAL PRIMARY KEY,
		log_key    TEXT NOT NULL,
		line       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

const createLogIndex = `CREATE INDEX IF NOT EXISTS busybee_log_key_seq ON busybee_log (log_key, seq)`

type postgresConn struct {
	db       *sql.DB
	migrated bool
}

func openPostgres(ctx context.Context, databaseURL string) (*postgresConn, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for postgres store")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &postgresConn{db: db}, nil
}

func (c *postgresConn) log(ctx context.Context, key string) (*PostgresLog, error) {
	if !c.migrated {
		if err := migrate(ctx, c.db); err != nil {
			return nil, err
		}
		c.migrated = true
	}
	return NewPostgresLog(c.db, key), nil
}

func (c *postgresConn) close() error { return c.db.Close() }

func migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range []string{createLogTable, createLogIndex} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate busybee_log: %w", err)
		}
	}
	return nil
}

// PostgresLog stores one row per record; seq preserves append order.
type PostgresLog struct {
	db  *sql.DB
	key string
}

func NewPostgresLog(db *sql.DB, key string) *PostgresLog {
	return &PostgresLog{db: db, key: strings.TrimSpace(key)}
}

func (p *PostgresLog) Load(ctx context.Context) ([]string, error) {
	const query = `
		SELECT line
		FROM busybee_log
		WHERE log_key = $1
		ORDER BY seq ASC`

	rows, err := p.db.QueryContext(ctx, query, p.key)
	if err != nil {
		return nil, fmt.Errorf("select busybee_log: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan busybee_log: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate busybee_log: %w", err)
	}
	return lines, nil
}

func (p *PostgresLog) Append(ctx context.Context, line string) error {
	if err := validateLine(line); err != nil {
		return err
	}
	const query = `INSERT INTO busybee_log (log_key, line) VALUES ($1, $2)`
	if _, err := p.db.ExecContext(ctx, query, p.key, line); err != nil {
		return fmt.Errorf("insert busybee_log: %w", err)
	}
	return nil
}

func (p *PostgresLog) Close() error { return nil }
