package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is the backend-neutral representation of a stored record.
// Values decoded from different backends arrive with different Go types, so
// readers go through the lenient accessors below instead of type-asserting.
type Document map[string]any

// Int64 returns the integer stored under key.
func (d Document) Int64(key string) (int64, bool) {
	switch v := d[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case primitive.DateTime:
		return v.Time().Unix(), true
	}
	return 0, false
}

// String returns the string stored under key, or "" when absent.
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// Bool returns the boolean stored under key, false when absent.
func (d Document) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

// Strings returns the string list stored under key, skipping non-string items.
func (d Document) Strings(key string) []string {
	var items []any
	switch v := d[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		items = v
	case primitive.A:
		items = v
	default:
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Map returns the sub-document stored under key, or nil when absent.
func (d Document) Map(key string) Document {
	switch v := d[key].(type) {
	case Document:
		return v
	case map[string]any:
		return Document(v)
	case primitive.M:
		return Document(v)
	}
	return nil
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func marshalDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return data, nil
}

func unmarshalDocument(data []byte) (Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return doc, nil
}
