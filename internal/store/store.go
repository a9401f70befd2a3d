package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
)

// ErrStorage matches every error produced by a document backend.
var ErrStorage = errors.New("storage error")

// StorageError describes a failed document-store operation.
type StorageError struct {
	Op         string
	Collection string
	ID         int64
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s[%d]: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func storageErr(op, collection string, id int64, err error) error {
	return &StorageError{Op: op, Collection: collection, ID: id, Err: err}
}

// Record is an entity that knows where and how it is stored.
type Record interface {
	CollectionName() string
	RecordID() int64
	// Document is the full representation written on first insert.
	Document() (Document, error)
	// UpdateDocument holds the fields replaced when the record already exists.
	UpdateDocument() (Document, error)
}

// Store is the persistence contract shared by every backend.
type Store interface {
	// Get returns the document stored under id, found is false when there is none.
	Get(ctx context.Context, collection string, id int64) (doc Document, found bool, err error)
	// Save inserts the record when absent and applies its update document otherwise.
	Save(ctx context.Context, rec Record) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Migrator is implemented by SQL backends that need a schema.
type Migrator interface {
	RunMigrations(ctx context.Context, filesystem fs.FS) error
}

// Options selects and configures a backend.
type Options struct {
	Driver   string
	URL      string
	Database string
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "mongo", "mongodb":
		return NewMongo(ctx, opts.URL, opts.Database, logger)
	case "postgres", "postgresql":
		return NewPostgres(ctx, opts.URL, logger)
	case "sqlite":
		return NewSQLite(ctx, opts.URL, logger)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// mergeInto applies a partial update onto an existing document.
func mergeInto(dst, update Document) Document {
	if dst == nil {
		dst = Document{}
	}
	for k, v := range update {
		dst[k] = v
	}
	return dst
}
