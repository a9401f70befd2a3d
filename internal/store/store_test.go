package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"scamwatch/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testRecord struct {
	id    int64
	title string
	kind  string
	err   error
}

func (r testRecord) CollectionName() string { return "chats" }
func (r testRecord) RecordID() int64        { return r.id }

func (r testRecord) Document() (Document, error) {
	if r.err != nil {
		return nil, r.err
	}
	return Document{"title": r.title, "type": r.kind}, nil
}

func (r testRecord) UpdateDocument() (Document, error) {
	if r.err != nil {
		return nil, r.err
	}
	return Document{"title": r.title}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	ctx := context.Background()
	s, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "docs.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	require.NoError(t, s.RunMigrations(ctx, migrations.Files))
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": openSQLite(t),
	}
}

func TestSaveInsertsThenMerges(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, testRecord{id: -100123, title: "first", kind: "Supergroup"}))
			require.NoError(t, s.Save(ctx, testRecord{id: -100123, title: "second", kind: "BasicGroup"}))

			doc, found, err := s.Get(ctx, "chats", -100123)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "second", doc.String("title"))
			// type is not part of the update document
			assert.Equal(t, "Supergroup", doc.String("type"))
			id, ok := doc.Int64("id")
			require.True(t, ok)
			assert.Equal(t, int64(-100123), id)
		})
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	rec := testRecord{id: 7, title: "same", kind: "Private"}
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Save(ctx, rec))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = 'chats'`).Scan(&count))
	assert.Equal(t, 1, count)

	mem := NewMemory()
	require.NoError(t, mem.Save(ctx, rec))
	require.NoError(t, mem.Save(ctx, rec))
	assert.Equal(t, 1, mem.Count("chats"))
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc, found, err := s.Get(ctx, "users", 42)
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, doc)
		})
	}
}

func TestSaveSerializationFailureIsStorageError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Save(ctx, testRecord{id: 1, err: boom})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStorage)
			assert.ErrorIs(t, err, boom)

			var se *StorageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "chats", se.Collection)
			assert.Equal(t, int64(1), se.ID)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "cassandra"}, discardLogger())
	require.Error(t, err)
}

func TestDocumentAccessors(t *testing.T) {
	doc := Document{
		"i32":   int32(5),
		"f64":   float64(6),
		"frac":  1.5,
		"num":   json.Number("-1001"),
		"list":  primitive.A{"A", 3, "B"},
		"plain": []any{"C"},
		"flag":  true,
		"name":  "x",
	}

	n, ok := doc.Int64("i32")
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)
	n, ok = doc.Int64("f64")
	assert.True(t, ok)
	assert.Equal(t, int64(6), n)
	_, ok = doc.Int64("frac")
	assert.False(t, ok)
	n, ok = doc.Int64("num")
	assert.True(t, ok)
	assert.Equal(t, int64(-1001), n)
	_, ok = doc.Int64("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"A", "B"}, doc.Strings("list"))
	assert.Equal(t, []string{"C"}, doc.Strings("plain"))
	assert.Nil(t, doc.Strings("missing"))
	assert.True(t, doc.Bool("flag"))
	assert.False(t, doc.Bool("name"))
	assert.Equal(t, "x", doc.String("name"))
	assert.Equal(t, "", doc.String("missing"))

	nested := Document{"sub": map[string]any{"k": json.Number("7")}, "bson": primitive.M{"k": int64(8)}}
	n, ok = nested.Map("sub").Int64("k")
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)
	n, _ = nested.Map("bson").Int64("k")
	assert.Equal(t, int64(8), n)
	assert.Nil(t, nested.Map("missing"))
}

func TestFromBSONDropsObjectID(t *testing.T) {
	doc := fromBSON(map[string]any{
		"_id":   primitive.NewObjectID(),
		"id":    int64(3),
		"names": primitive.A{"X"},
	})
	_, has := doc["_id"]
	assert.False(t, has)
	assert.Equal(t, []any{"X"}, doc["names"])
}
