package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Document is a schema-less record. Values must be JSON encodable.
type Document map[string]any

// Filter matches documents whose top level fields equal the given values.
type Filter map[string]any

// ByID returns a filter matching the document with the given ID.
func ByID(id string) Filter {
	return Filter{IDField: id}
}

// ID returns the document's _id, or "" if it has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// String returns the string value of field, or "" if absent or not a string.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Clone returns a deep copy of d, normalised through its JSON encoding so
// that every backend hands back the same value types.
func (d Document) Clone() (Document, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return DecodeDocument(data)
}

// WithoutID returns a copy of d with the _id field removed.
func (d Document) WithoutID() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out
}

// DecodeDocument decodes a JSON object into a Document.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// Prepare validates doc for insertion, assigning a UUIDv7 _id if it has none,
// and returns a normalised copy.
func Prepare(doc Document) (Document, error) {
	out, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = Document{}
	}

	switch id := out[IDField].(type) {
	case nil:
		newID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate document id: %w", err)
		}
		out[IDField] = newID.String()
	case string:
		if id == "" {
			return nil, fmt.Errorf("document _id must not be empty")
		}
	default:
		return nil, fmt.Errorf("document _id must be a string, got %T", id)
	}

	return out, nil
}

// Merge applies set on top of doc as a $set update and returns the result.
// Any _id in set is ignored.
func Merge(doc, set Document) (Document, error) {
	out, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	patch, err := set.Clone()
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Matches reports whether doc satisfies filter. Values are compared by
// their JSON encoding.
func Matches(doc Document, filter Filter) bool {
	for field, want := range filter {
		got, ok := doc[field]
		if !ok {
			return false
		}
		if !ValuesEqual(got, want) {
			return false
		}
	}
	return true
}

// ValuesEqual compares two document values by their JSON encoding.
func ValuesEqual(a, b any) bool {
	ea, err := json.Marshal(a)
	if err != nil {
		return false
	}
	eb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// IndexKey returns the value used to enforce a unique index on field, and
// false when the document has no value for it. Missing and null values are
// never considered duplicates.
func IndexKey(doc Document, field string) (string, bool) {
	v, ok := doc[field]
	if !ok || v == nil {
		return "", false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// ViolatesUnique reports whether candidate clashes with any of docs on _id or
// on one of the unique fields. When replacing is set, the document sharing
// candidate's _id is the one being updated and is skipped.
func ViolatesUnique(docs []Document, candidate Document, fields []string, replacing bool) bool {
	id := candidate.ID()
	for _, doc := range docs {
		if doc.ID() == id {
			if replacing {
				continue
			}
			return true
		}
		for _, field := range fields {
			want, ok := IndexKey(candidate, field)
			if !ok {
				continue
			}
			if got, ok := IndexKey(doc, field); ok && got == want {
				return true
			}
		}
	}
	return false
}
