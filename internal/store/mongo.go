package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo stores records as documents in a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger

	indexMu sync.Mutex
	indexed map[string]bool
}

// NewMongo connects to uri and selects database.
func NewMongo(ctx context.Context, uri, database string, logger *slog.Logger) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongo url is empty")
	}
	if database == "" {
		return nil, errors.New("mongo database is empty")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	m := &Mongo{
		client:  client,
		db:      client.Database(database),
		logger:  logger.With("component", "store_mongo"),
		indexed: make(map[string]bool),
	}

	if err := m.Ping(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

// Ping ensures the server is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, collection string, id int64) (Document, bool, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get", collection, id, err)
	}
	return fromBSON(raw), true, nil
}

// Save implements Store.
func (m *Mongo) Save(ctx context.Context, rec Record) error {
	collection, id := rec.CollectionName(), rec.RecordID()
	coll := m.db.Collection(collection)
	m.ensureIndex(ctx, coll)

	count, err := coll.CountDocuments(ctx, bson.M{"id": id}, options.Count().SetLimit(1))
	if err != nil {
		return storageErr("lookup", collection, id, err)
	}
	if count == 0 {
		doc, err := rec.Document()
		if err != nil {
			return storageErr("insert", collection, id, err)
		}
		doc = doc.Clone()
		doc["id"] = id
		_, err = coll.InsertOne(ctx, bson.M(doc))
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return storageErr("insert", collection, id, err)
		}
		m.logger.Debug("concurrent insert detected, updating instead", "collection", collection, "id", id)
	}

	update, err := rec.UpdateDocument()
	if err != nil {
		return storageErr("update", collection, id, err)
	}
	if len(update) == 0 {
		return nil
	}
	if _, err := coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M(update)}); err != nil {
		return storageErr("update", collection, id, err)
	}
	return nil
}

// ensureIndex creates the unique id index once per collection.
func (m *Mongo) ensureIndex(ctx context.Context, coll *mongo.Collection) {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	if m.indexed[coll.Name()] {
		return
	}
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		m.logger.Warn("failed creating id index", "collection", coll.Name(), "error", err)
		return
	}
	m.indexed[coll.Name()] = true
}

func fromBSON(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = fromBSONValue(v)
	}
	return doc
}

func fromBSONValue(v any) any {
	switch val := v.(type) {
	case primitive.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromBSONValue(item)
		}
		return out
	case bson.M:
		return map[string]any(fromBSON(val))
	case primitive.D:
		return map[string]any(fromBSON(val.Map()))
	default:
		return v
	}
}
