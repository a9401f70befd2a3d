package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite keeps documents as JSON text in a local database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens the SQLite database at databasePath.
func NewSQLite(ctx context.Context, databasePath string, logger *slog.Logger) (*SQLite, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, errors.New("sqlite database path is empty")
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer keeps the read-merge-write in Save atomic.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLite{
		db:     db,
		logger: logger.With("component", "store_sqlite"),
	}, nil
}

// Ping ensures the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

// RunMigrations applies the sqlite schema files from filesystem.
func (s *SQLite) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return applyMigrations(ctx, filesystem, "sqlite", func(ctx context.Context, query string) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, collection string, id int64) (Document, bool, error) {
	doc, found, err := s.get(ctx, s.db, collection, id)
	if err != nil {
		return nil, false, storageErr("get", collection, id, err)
	}
	return doc, found, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) get(ctx context.Context, q queryer, collection string, id int64) (Document, bool, error) {
	const query = `SELECT body FROM documents WHERE collection = ? AND id = ?;`

	var body string
	err := q.QueryRowContext(ctx, query, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	doc, err := unmarshalDocument([]byte(body))
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Save implements Store.
func (s *SQLite) Save(ctx context.Context, rec Record) error {
	collection, id := rec.CollectionName(), rec.RecordID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("save", collection, id, err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, found, err := s.get(ctx, tx, collection, id)
	if err != nil {
		return storageErr("lookup", collection, id, err)
	}

	var (
		op  = "insert"
		doc Document
	)
	if found {
		op = "update"
		update, err := rec.UpdateDocument()
		if err != nil {
			return storageErr(op, collection, id, err)
		}
		doc = mergeInto(existing, update)
	} else {
		doc, err = rec.Document()
		if err != nil {
			return storageErr(op, collection, id, err)
		}
		doc = doc.Clone()
		doc["id"] = id
	}

	body, err := marshalDocument(doc)
	if err != nil {
		return storageErr(op, collection, id, err)
	}

	const upsert = `
INSERT INTO documents (collection, id, body, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (collection, id) DO UPDATE SET
    body = excluded.body,
    updated_at = CURRENT_TIMESTAMP;
`
	if _, err := tx.ExecContext(ctx, upsert, collection, id, string(body)); err != nil {
		return storageErr(op, collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, collection, id, err)
	}
	return nil
}
