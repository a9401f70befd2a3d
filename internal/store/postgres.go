package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps documents as JSONB rows keyed by (collection, id).
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres opens a connection pool to databaseURL.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		logger: logger.With("component", "store_postgres"),
	}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Ping ensures the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

// RunMigrations applies the postgres schema files from filesystem.
func (p *Postgres) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return applyMigrations(ctx, filesystem, "postgres", func(ctx context.Context, sql string) error {
		return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, sql)
			return err
		})
	})
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, collection string, id int64) (Document, bool, error) {
	const q = `SELECT body::text FROM documents WHERE collection = $1 AND id = $2;`

	var body string
	err := p.pool.QueryRow(ctx, q, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get", collection, id, err)
	}
	doc, err := unmarshalDocument([]byte(body))
	if err != nil {
		return nil, false, storageErr("get", collection, id, err)
	}
	return doc, true, nil
}

// Save implements Store. The insert and the merge happen in one statement,
// so concurrent saves of the same id cannot produce two rows.
func (p *Postgres) Save(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO documents (collection, id, body, updated_at)
VALUES ($1, $2, $3::jsonb, NOW())
ON CONFLICT (collection, id) DO UPDATE SET
    body = documents.body || $4::jsonb,
    updated_at = NOW();
`
	collection, id := rec.CollectionName(), rec.RecordID()

	doc, err := rec.Document()
	if err != nil {
		return storageErr("save", collection, id, err)
	}
	doc = doc.Clone()
	doc["id"] = id
	update, err := rec.UpdateDocument()
	if err != nil {
		return storageErr("save", collection, id, err)
	}
	if update == nil {
		update = Document{}
	}

	insertBody, err := marshalDocument(doc)
	if err != nil {
		return storageErr("save", collection, id, err)
	}
	updateBody, err := marshalDocument(update)
	if err != nil {
		return storageErr("save", collection, id, err)
	}

	if _, err := p.pool.Exec(ctx, q, collection, id, string(insertBody), string(updateBody)); err != nil {
		return storageErr("save", collection, id, err)
	}
	return nil
}
