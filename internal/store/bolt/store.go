// Package bolt implements store.Store on an embedded bbolt database file.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgmgr/internal/store"
	bolt "go.etcd.io/bbolt"
)

const collectionPrefix = "coll/"

var indexesBucket = []byte("__indexes")

// Store implements store.Store with one bbolt bucket per collection.
// Documents are keyed by the bucket sequence so iteration follows insertion
// order. Every write runs in a single read-write transaction, which bbolt
// serialises, so unique index checks cannot race.
type Store struct {
	path string
	db   *bolt.DB
}

// Open creates the database file if it doesn't exist and opens it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("unable to create directory for %s: %w", path, err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open bolt file %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialise bolt file %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Bolt store opened")

	return &Store{path: path, db: db}, nil
}

// Collection implements store.Store.
func (s *Store) Collection(name string) store.Collection {
	return &Collection{db: s.db, name: name, bucket: []byte(collectionPrefix + name)}
}

// Close implements store.Store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Collection implements store.Collection as a bbolt bucket.
type Collection struct {
	db     *bolt.DB
	name   string
	bucket []byte
}

var _ store.Collection = (*Collection)(nil)

type entry struct {
	key []byte
	doc store.Document
}

// Name implements store.Collection.
func (c *Collection) Name() string {
	return c.name
}

// FindOne implements store.Collection.
func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	var found store.Document

	err := c.db.View(func(tx *bolt.Tx) error {
		e, err := c.first(tx, filter)
		if err != nil {
			return err
		}
		found = e.doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// Find implements store.Collection.
func (c *Collection) Find(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	result := []store.Document{}

	err := c.db.View(func(tx *bolt.Tx) error {
		entries, err := c.scan(tx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if store.Matches(e.doc, filter) {
				result = append(result, e.doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// InsertOne implements store.Collection.
func (c *Collection) InsertOne(ctx context.Context, doc store.Document) (string, error) {
	ids, err := c.InsertMany(ctx, []store.Document{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertMany implements store.Collection.
func (c *Collection) InsertMany(ctx context.Context, docs []store.Document) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}

	prepared := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		p, err := store.Prepare(doc)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}

	ids := make([]string, 0, len(prepared))

	err := c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}

		unique, err := c.uniqueFields(tx)
		if err != nil {
			return err
		}

		entries, err := c.scan(tx)
		if err != nil {
			return err
		}
		existing := documents(entries)

		for i, doc := range prepared {
			if store.ViolatesUnique(existing, doc, unique, false) ||
				store.ViolatesUnique(prepared[:i], doc, unique, false) {
				return fmt.Errorf("%w: collection %s", store.ErrDuplicateKey, c.name)
			}

			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			if err := putDocument(b, itob(seq), doc); err != nil {
				return err
			}
			ids = append(ids, doc.ID())
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("collection", c.name).Int("count", len(ids)).Msg("Inserted documents")

	return ids, nil
}

// UpdateOne implements store.Collection.
func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, set store.Document) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return store.ErrNoDocuments
		}

		entries, err := c.scan(tx)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(entries, func(e entry) bool {
			return store.Matches(e.doc, filter)
		})
		if idx < 0 {
			return store.ErrNoDocuments
		}

		updated, err := store.Merge(entries[idx].doc, set)
		if err != nil {
			return err
		}

		unique, err := c.uniqueFields(tx)
		if err != nil {
			return err
		}
		if store.ViolatesUnique(documents(entries), updated, unique, true) {
			return fmt.Errorf("%w: collection %s", store.ErrDuplicateKey, c.name)
		}

		return putDocument(b, entries[idx].key, updated)
	})
}

// DeleteOne implements store.Collection.
func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		e, err := c.first(tx, filter)
		if errors.Is(err, store.ErrNoDocuments) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Bucket(c.bucket).Delete(e.key)
	})
}

// Drop implements store.Collection.
func (c *Collection) Drop(ctx context.Context) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(c.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		return tx.Bucket(indexesBucket).Delete([]byte(c.name))
	})
	if err != nil {
		return err
	}

	log.Debug().Str("collection", c.name).Msg("Dropped collection")
	return nil
}

// CreateUniqueIndex implements store.Collection.
func (c *Collection) CreateUniqueIndex(ctx context.Context, field string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(c.bucket); err != nil {
			return err
		}

		unique, err := c.uniqueFields(tx)
		if err != nil {
			return err
		}
		if slices.Contains(unique, field) {
			return nil
		}

		entries, err := c.scan(tx)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			key, ok := store.IndexKey(e.doc, field)
			if !ok {
				continue
			}
			if _, dup := seen[key]; dup {
				return fmt.Errorf("%w: existing documents in %s share %s", store.ErrDuplicateKey, c.name, field)
			}
			seen[key] = struct{}{}
		}

		data, err := json.Marshal(append(unique, field))
		if err != nil {
			return err
		}
		return tx.Bucket(indexesBucket).Put([]byte(c.name), data)
	})
}

func (c *Collection) first(tx *bolt.Tx, filter store.Filter) (entry, error) {
	b := tx.Bucket(c.bucket)
	if b == nil {
		return entry{}, store.ErrNoDocuments
	}

	cur := b.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		doc, err := store.DecodeDocument(v)
		if err != nil {
			return entry{}, fmt.Errorf("collection %s: %w", c.name, err)
		}
		if store.Matches(doc, filter) {
			return entry{key: slices.Clone(k), doc: doc}, nil
		}
	}

	return entry{}, store.ErrNoDocuments
}

func (c *Collection) scan(tx *bolt.Tx) ([]entry, error) {
	b := tx.Bucket(c.bucket)
	if b == nil {
		return nil, nil
	}

	var entries []entry
	err := b.ForEach(func(k, v []byte) error {
		doc, err := store.DecodeDocument(v)
		if err != nil {
			return fmt.Errorf("collection %s: %w", c.name, err)
		}
		// keys point into the mmap, which may move when the transaction writes
		entries = append(entries, entry{key: slices.Clone(k), doc: doc})
		return nil
	})
	return entries, err
}

func (c *Collection) uniqueFields(tx *bolt.Tx) ([]string, error) {
	data := tx.Bucket(indexesBucket).Get([]byte(c.name))
	if data == nil {
		return nil, nil
	}

	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("corrupt index metadata for %s: %w", c.name, err)
	}
	return fields, nil
}

func putDocument(b *bolt.Bucket, key []byte, doc store.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return b.Put(key, data)
}

func documents(entries []entry) []store.Document {
	docs := make([]store.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e.doc)
	}
	return docs
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
