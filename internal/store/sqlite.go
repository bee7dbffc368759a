package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/notificationd/internal/notification"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user TEXT NOT NULL,
	title TEXT,
	body TEXT,
	tags TEXT,
	timestamp INTEGER NOT NULL
);
`

// SQLite stores notifications in a single SQLite table
type SQLite struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens (and creates if needed) the history database at dbPath
func OpenSQLite(dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers anyway; one connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.dbPath
}

func (s *SQLite) Enabled() bool { return true }

func (s *SQLite) Save(ctx context.Context, env notification.Envelope) (uint32, error) {
	var tags sql.NullString
	if len(env.Tags) > 0 {
		tags = sql.NullString{String: notification.JoinTags(env.Tags), Valid: true}
	}

	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var id any
	if env.ID != 0 {
		id = int64(env.ID)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user, title, body, tags, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		id, env.User, nullString(env.Title), nullString(env.Body), tags, ts.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}

	rowID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return uint32(rowID), nil
}

func (s *SQLite) LoadAll(ctx context.Context, limit int) ([]notification.Envelope, error) {
	query := `SELECT id, user, title, body, tags, timestamp FROM notifications ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []notification.Envelope
	for rows.Next() {
		var (
			id          int64
			env         notification.Envelope
			title, body sql.NullString
			tags        sql.NullString
			ts          int64
		)
		if err := rows.Scan(&id, &env.User, &title, &body, &tags, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		env.ID = uint32(id)
		env.Title = fromNull(title)
		env.Body = fromNull(body)
		if tags.Valid {
			env.Tags = notification.SplitTags(tags.String)
		}
		env.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	// newest first from the query, callers want oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLite) LastID(ctx context.Context) (uint32, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM notifications`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read last id: %w", err)
	}
	return uint32(id.Int64), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
