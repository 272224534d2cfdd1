package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS responses (
	key         TEXT PRIMARY KEY,
	status_code INTEGER NOT NULL,
	status      TEXT NOT NULL,
	headers     TEXT NOT NULL,
	body        BLOB,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	expires_at  INTEGER NOT NULL
)`

// SQLiteStore keeps entries in the responses table of a SQLite database,
// so a cache can be shared by several processes.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates the database. The path may carry a
// sqlite:// or sqlite: prefix.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := parseDSN(path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create responses table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func parseDSN(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "sqlite://") {
		return strings.TrimPrefix(path, "sqlite://")
	}
	return strings.TrimPrefix(path, "sqlite:")
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*hammx.Response, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT status_code, status, headers, body, method, url, expires_at FROM responses WHERE key = ?`, key)

	var (
		e         entry
		headers   string
		expiresAt int64
	)
	err := row.Scan(&e.StatusCode, &e.Status, &headers, &e.Body, &e.Method, &e.URL, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query failed: %w", err)
	}

	if s.now().UnixMilli() > expiresAt {
		if err := s.Delete(ctx, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	if err := json.Unmarshal([]byte(headers), &e.Headers); err != nil {
		return nil, false, fmt.Errorf("decoding cached headers: %w", err)
	}

	return e.response(), true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, resp *hammx.Response, ttl time.Duration) error {
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (key, status_code, status, headers, body, method, url, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			status_code = excluded.status_code,
			status = excluded.status,
			headers = excluded.headers,
			body = excluded.body,
			method = excluded.method,
			url = excluded.url,
			expires_at = excluded.expires_at`,
		key, resp.StatusCode, resp.Status, string(headers), resp.Body, resp.Method, resp.URL,
		s.now().Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storing response: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting response: %w", err)
	}
	return nil
}

// Purge removes every expired entry and reports how many were dropped.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE expires_at < ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purging responses: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
