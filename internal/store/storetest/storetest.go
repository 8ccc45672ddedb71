// Package storetest is a conformance suite shared by the store backends.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgmgr/internal/store"
)

// Factory returns an empty store. The suite closes it when the test ends.
type Factory func(t *testing.T) store.Store

// Run exercises every store.Collection operation against the backend.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAndFind", testInsertAndFind},
		{"FindOneMissing", testFindOneMissing},
		{"InsertPreservesID", testInsertPreservesID},
		{"InsertMany", testInsertMany},
		{"InsertManyEmpty", testInsertManyEmpty},
		{"InsertManyAtomic", testInsertManyAtomic},
		{"UniqueIndex", testUniqueIndex},
		{"UniqueIndexIdempotent", testUniqueIndexIdempotent},
		{"UniqueIndexExistingDuplicates", testUniqueIndexExistingDuplicates},
		{"UpdateOne", testUpdateOne},
		{"UpdateOneMissing", testUpdateOneMissing},
		{"UpdateOneUniqueViolation", testUpdateOneUniqueViolation},
		{"DeleteOne", testDeleteOne},
		{"Drop", testDrop},
		{"CollectionsAreIsolated", testCollectionsAreIsolated},
		{"FilterTypes", testFilterTypes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() {
				require.NoError(t, s.Close())
			})
			tt.fn(t, s)
		})
	}
}

func testInsertAndFind(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("people")
	require.Equal(t, "people", coll.Name())

	id, err := coll.InsertOne(ctx, store.Document{"name": "alice", "team": "red"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = coll.InsertOne(ctx, store.Document{"name": "bob", "team": "red"})
	require.NoError(t, err)

	doc, err := coll.FindOne(ctx, store.ByID(id))
	require.NoError(t, err)
	require.Equal(t, "alice", doc.String("name"))
	require.Equal(t, id, doc.ID())

	doc, err = coll.FindOne(ctx, store.Filter{"team": "red"})
	require.NoError(t, err)
	require.Equal(t, "alice", doc.String("name"), "FindOne returns the first match in insertion order")

	docs, err := coll.Find(ctx, store.Filter{"team": "red"})
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, names(docs))

	all, err := coll.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func testFindOneMissing(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Collection("never_written").FindOne(ctx, store.Filter{"name": "alice"})
	require.ErrorIs(t, err, store.ErrNoDocuments)

	docs, err := s.Collection("never_written").Find(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, docs)

	coll := s.Collection("people")
	_, err = coll.InsertOne(ctx, store.Document{"name": "alice"})
	require.NoError(t, err)

	_, err = coll.FindOne(ctx, store.Filter{"name": "bob"})
	require.ErrorIs(t, err, store.ErrNoDocuments)

	_, err = coll.FindOne(ctx, store.Filter{"missing_field": "alice"})
	require.ErrorIs(t, err, store.ErrNoDocuments)
}

func testInsertPreservesID(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("people")

	id, err := coll.InsertOne(ctx, store.Document{store.IDField: "fixed-id", "name": "alice"})
	require.NoError(t, err)
	require.Equal(t, "fixed-id", id)

	_, err = coll.InsertOne(ctx, store.Document{store.IDField: "fixed-id", "name": "bob"})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	_, err = coll.InsertOne(ctx, store.Document{store.IDField: 42, "name": "carol"})
	require.Error(t, err)
}

func testInsertMany(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("people")

	ids, err := coll.InsertMany(ctx, []store.Document{
		{"name": "alice", "age": 30},
		{"name": "bob", "tags": []any{"a", "b"}},
		{"name": "carol", "address": map[string]any{"city": "Perth"}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	docs, err := coll.Find(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol"}, names(docs))

	for i, doc := range docs {
		require.Equal(t, ids[i], doc.ID())
	}

	carol := docs[2].WithoutID()
	if diff := cmp.Diff(store.Document{"name": "carol", "address": map[string]any{"city": "Perth"}}, carol); diff != "" {
		t.Errorf("nested document mismatch (-want +got):\n%s", diff)
	}
}

func testInsertManyEmpty(t *testing.T, s store.Store) {
	ids, err := s.Collection("people").InsertMany(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func testInsertManyAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("people")
	require.NoError(t, coll.CreateUniqueIndex(ctx, "email"))

	_, err := coll.InsertMany(ctx, []store.Document{
		{"email": "a@example.com"},
		{"email": "b@example.com"},
		{"email": "a@example.com"},
	})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	docs, err := coll.Find(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, docs, "a failed batch must not leave partial writes")
}

func testUniqueIndex(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("admins")
	require.NoError(t, coll.CreateUniqueIndex(ctx, "email"))

	_, err := coll.InsertOne(ctx, store.Document{"email": "a@example.com"})
	require.NoError(t, err)

	_, err = coll.InsertOne(ctx, store.Document{"email": "a@example.com"})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	_, err = coll.InsertOne(ctx, store.Document{"email": "b@example.com"})
	require.NoError(t, err)

	// documents without the field never clash
	_, err = coll.InsertOne(ctx, store.Document{"name": "no email"})
	require.NoError(t, err)
	_, err = coll.InsertOne(ctx, store.Document{"name": "no email either"})
	require.NoError(t, err)
}

func testUniqueIndexIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("admins")

	require.NoError(t, coll.CreateUniqueIndex(ctx, "email"))
	require.NoError(t, coll.CreateUniqueIndex(ctx, "email"))

	_, err := coll.InsertOne(ctx, store.Document{"email": "a@example.com"})
	require.NoError(t, err)
	require.NoError(t, coll.CreateUniqueIndex(ctx, "email"))
}

func testUniqueIndexExistingDuplicates(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("admins")

	_, err := coll.InsertMany(ctx, []store.Document{{"email": "a@example.com"}, {"email": "a@example.com"}})
	require.NoError(t, err)

	err = coll.CreateUniqueIndex(ctx, "email")
	require.ErrorIs(t, err, store.ErrDuplicateKey)
}

func testUpdateOne(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("people")

	id, err := coll.InsertOne(ctx, store.Document{"name": "alice", "team": "red"})
	require.NoError(t, err)

	err = coll.UpdateOne(ctx, store.ByID(id), store.Document{"team": "blue", "level": "senior", store.IDField: "ignored"})
	require.NoError(t, err)

	doc, err := coll.FindOne(ctx, store.ByID(id))
	require.NoError(t, err)
	require.Equal(t, "alice", doc.String("name"))
	require.Equal(t, "blue", doc.String("team"))
	require.Equal(t, "senior", doc.String("level"))
	require.Equal(t, id, doc.ID())
}

func testUpdateOneMissing(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.Collection("never_written").UpdateOne(ctx, store.ByID("nope"), store.Document{"a": "b"})
	require.ErrorIs(t, err, store.ErrNoDocuments)

	coll := s.Collection("people")
	_, err = coll.InsertOne(ctx, store.Document{"name": "alice"})
	require.NoError(t, err)

	err = coll.UpdateOne(ctx, store.Filter{"name": "bob"}, store.Document{"a": "b"})
	require.ErrorIs(t, err, store.ErrNoDocuments)
}

func testUpdateOneUniqueViolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("admins")
	require.NoError(t, coll.CreateUniqueIndex(ctx, "email"))

	first, err := coll.InsertOne(ctx, store.Document{"email": "a@example.com"})
	require.NoError(t, err)
	_, err = coll.InsertOne(ctx, store.Document{"email": "b@example.com"})
	require.NoError(t, err)

	err = coll.UpdateOne(ctx, store.ByID(first), store.Document{"email": "b@example.com"})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	// re-setting a document's own value is not a clash
	err = coll.UpdateOne(ctx, store.ByID(first), store.Document{"email": "a@example.com"})
	require.NoError(t, err)

	doc, err := coll.FindOne(ctx, store.ByID(first))
	require.NoError(t, err)
	require.Equal(t, "a@example.com", doc.String("email"))
}

func testDeleteOne(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("people")

	ids, err := coll.InsertMany(ctx, []store.Document{{"team": "red"}, {"team": "red"}})
	require.NoError(t, err)

	require.NoError(t, coll.DeleteOne(ctx, store.Filter{"team": "red"}))

	docs, err := coll.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1, "DeleteOne removes a single document")
	require.Equal(t, ids[1], docs[0].ID())

	require.NoError(t, coll.DeleteOne(ctx, store.ByID("missing")))
	require.NoError(t, s.Collection("never_written").DeleteOne(ctx, store.ByID("missing")))
}

func testDrop(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("tenant_data")
	require.NoError(t, coll.CreateUniqueIndex(ctx, "sku"))

	_, err := coll.InsertMany(ctx, []store.Document{{"sku": "a"}, {"sku": "b"}})
	require.NoError(t, err)

	require.NoError(t, coll.Drop(ctx))

	docs, err := coll.Find(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, docs)

	// indexes go with the collection
	_, err = coll.InsertMany(ctx, []store.Document{{"sku": "a"}, {"sku": "a"}})
	require.NoError(t, err)

	require.NoError(t, s.Collection("never_written").Drop(ctx))
}

func testCollectionsAreIsolated(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := s.Collection("org_a")
	b := s.Collection("org_b")

	for i := range 3 {
		_, err := a.InsertOne(ctx, store.Document{"n": fmt.Sprintf("a%d", i)})
		require.NoError(t, err)
	}
	_, err := b.InsertOne(ctx, store.Document{"n": "b0"})
	require.NoError(t, err)

	docs, err := a.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	require.NoError(t, a.Drop(ctx))

	docs, err = b.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func testFilterTypes(t *testing.T, s store.Store) {
	ctx := context.Background()
	coll := s.Collection("values")

	_, err := coll.InsertMany(ctx, []store.Document{
		{"k": "str", "v": "123"},
		{"k": "num", "v": 123},
		{"k": "bool", "v": true},
	})
	require.NoError(t, err)

	doc, err := coll.FindOne(ctx, store.Filter{"v": 123})
	require.NoError(t, err)
	require.Equal(t, "num", doc.String("k"))

	doc, err = coll.FindOne(ctx, store.Filter{"v": "123"})
	require.NoError(t, err)
	require.Equal(t, "str", doc.String("k"))

	doc, err = coll.FindOne(ctx, store.Filter{"v": true, "k": "bool"})
	require.NoError(t, err)
	require.Equal(t, "bool", doc.String("k"))
}

func names(docs []store.Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.String("name"))
	}
	return out
}
