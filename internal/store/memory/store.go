package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/wolfeidau/orgmgr/internal/store"
)

// Store implements store.Store using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type Store struct {
	mu sync.RWMutex

	collections map[string]*collectionData // collection name -> documents
}

type collectionData struct {
	docs   []store.Document // insertion order
	unique []string         // uniquely indexed fields
}

// NewStore creates a new in-memory document store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*collectionData),
	}
}

// Collection implements store.Store.
func (s *Store) Collection(name string) store.Collection {
	return &Collection{s: s, name: name}
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}

// CollectionNames returns the names of collections that currently exist.
func (s *Store) CollectionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Collection implements store.Collection over a Store.
type Collection struct {
	s    *Store
	name string
}

var _ store.Collection = (*Collection)(nil)

// Name implements store.Collection.
func (c *Collection) Name() string {
	return c.name
}

// FindOne implements store.Collection.
func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	data, ok := c.s.collections[c.name]
	if !ok {
		return nil, store.ErrNoDocuments
	}

	idx := findIndex(data.docs, filter)
	if idx < 0 {
		return nil, store.ErrNoDocuments
	}

	// Clone to avoid external modifications
	return data.docs[idx].Clone()
}

// Find implements store.Collection.
func (c *Collection) Find(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	data, ok := c.s.collections[c.name]
	if !ok {
		return []store.Document{}, nil
	}

	result := []store.Document{}
	for _, doc := range data.docs {
		if !store.Matches(doc, filter) {
			continue
		}
		clone, err := doc.Clone()
		if err != nil {
			return nil, err
		}
		result = append(result, clone)
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

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	data := c.s.collections[c.name]
	var existing []store.Document
	var unique []string
	if data != nil {
		existing = data.docs
		unique = data.unique
	}

	// Check the whole batch before writing anything
	ids := make([]string, 0, len(prepared))
	for i, doc := range prepared {
		if store.ViolatesUnique(existing, doc, unique, false) ||
			store.ViolatesUnique(prepared[:i], doc, unique, false) {
			return nil, fmt.Errorf("%w: collection %s", store.ErrDuplicateKey, c.name)
		}
		ids = append(ids, doc.ID())
	}

	if data == nil {
		data = &collectionData{}
		c.s.collections[c.name] = data
	}
	data.docs = append(data.docs, prepared...)

	return ids, nil
}

// UpdateOne implements store.Collection.
func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, set store.Document) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	data, ok := c.s.collections[c.name]
	if !ok {
		return store.ErrNoDocuments
	}

	idx := findIndex(data.docs, filter)
	if idx < 0 {
		return store.ErrNoDocuments
	}

	updated, err := store.Merge(data.docs[idx], set)
	if err != nil {
		return err
	}

	if store.ViolatesUnique(data.docs, updated, data.unique, true) {
		return fmt.Errorf("%w: collection %s", store.ErrDuplicateKey, c.name)
	}

	data.docs[idx] = updated
	return nil
}

// DeleteOne implements store.Collection.
func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	data, ok := c.s.collections[c.name]
	if !ok {
		return nil
	}

	if idx := findIndex(data.docs, filter); idx >= 0 {
		data.docs = slices.Delete(data.docs, idx, idx+1)
	}
	return nil
}

// Drop implements store.Collection.
func (c *Collection) Drop(ctx context.Context) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	delete(c.s.collections, c.name)
	return nil
}

// CreateUniqueIndex implements store.Collection.
func (c *Collection) CreateUniqueIndex(ctx context.Context, field string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	data := c.s.collections[c.name]
	if data == nil {
		data = &collectionData{}
		c.s.collections[c.name] = data
	}

	if slices.Contains(data.unique, field) {
		return nil
	}

	seen := make(map[string]struct{}, len(data.docs))
	for _, doc := range data.docs {
		key, ok := store.IndexKey(doc, field)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: existing documents in %s share %s", store.ErrDuplicateKey, c.name, field)
		}
		seen[key] = struct{}{}
	}

	data.unique = append(data.unique, field)
	return nil
}

func findIndex(docs []store.Document, filter store.Filter) int {
	for i, doc := range docs {
		if store.Matches(doc, filter) {
			return i
		}
	}
	return -1
}
