// Package postgres implements docstore.Store on top of PostgreSQL via
// lib/pq, for callers that want document bodies durable across process
// restarts instead of living only in the in-memory docstore.Memory.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lucid-search/lucid/internal/idstore"
	"github.com/lucid-search/lucid/pkg/config"
	"github.com/lucid-search/lucid/pkg/resilience"
)

// Client wraps a *sql.DB configured for the postgres driver.
type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

// New opens a connection pool to cfg and verifies it with a ping.
func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// EnsureSchema creates the backing table if it doesn't already exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	_, err := c.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lucid_documents (
			internal_id BIGINT PRIMARY KEY,
			body JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensuring documents table: %w", err)
	}
	return nil
}

// Store is a docstore.Store backed by the lucid_documents table. It
// keeps no in-process cache: every Get/Put round-trips to Postgres,
// trading latency for durability across restarts.
type Store struct {
	client *Client
}

// NewStore wraps client as a docstore.Store.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) Put(id idstore.InternalID, doc map[string]any) {
	body, err := json.Marshal(doc)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = s.client.DB.ExecContext(ctx, `
		INSERT INTO lucid_documents (internal_id, body) VALUES ($1, $2)
		ON CONFLICT (internal_id) DO UPDATE SET body = EXCLUDED.body
	`, int64(id), body)
}

func (s *Store) Get(id idstore.InternalID) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var body []byte
	err := s.client.DB.QueryRowContext(ctx, `SELECT body FROM lucid_documents WHERE internal_id = $1`, int64(id)).Scan(&body)
	if err != nil {
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false
	}
	return doc, true
}

func (s *Store) Delete(id idstore.InternalID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = s.client.DB.ExecContext(ctx, `DELETE FROM lucid_documents WHERE internal_id = $1`, int64(id))
}

func (s *Store) Snapshot() map[idstore.InternalID]map[string]any {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out := make(map[idstore.InternalID]map[string]any)
	rows, err := s.client.DB.QueryContext(ctx, `SELECT internal_id, body FROM lucid_documents`)
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var rawID int64
		var body []byte
		if err := rows.Scan(&rawID, &body); err != nil {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			continue
		}
		out[idstore.InternalID(rawID)] = doc
	}
	return out
}

func (s *Store) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var n int
	if err := s.client.DB.QueryRowContext(ctx, `SELECT count(*) FROM lucid_documents`).Scan(&n); err != nil {
		return 0
	}
	return n
}
