package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgmgr/internal/store"
	"github.com/wolfeidau/orgmgr/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return NewStore()
	})
}

func TestStore_returnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	coll := s.Collection("people")

	input := store.Document{"name": "alice"}
	id, err := coll.InsertOne(ctx, input)
	require.NoError(t, err)

	// mutating the caller's document after insert has no effect
	input["name"] = "mallory"
	require.NotContains(t, input, store.IDField)

	doc, err := coll.FindOne(ctx, store.ByID(id))
	require.NoError(t, err)
	doc["name"] = "eve"

	again, err := coll.FindOne(ctx, store.ByID(id))
	require.NoError(t, err)
	require.Equal(t, "alice", again.String("name"))
}

func TestStore_collectionNames(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Collection("org_b").InsertOne(ctx, store.Document{"x": "1"})
	require.NoError(t, err)
	_, err = s.Collection("org_a").InsertOne(ctx, store.Document{"x": "1"})
	require.NoError(t, err)
	_ = s.Collection("org_never_written")

	require.Equal(t, []string{"org_a", "org_b"}, s.CollectionNames())

	require.NoError(t, s.Collection("org_a").Drop(ctx))
	require.Equal(t, []string{"org_b"}, s.CollectionNames())
}
