package orgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgmgr/internal/auth"
	"github.com/wolfeidau/orgmgr/internal/models"
	"github.com/wolfeidau/orgmgr/internal/store"
	"github.com/wolfeidau/orgmgr/internal/store/memory"
)

// cheap parameters keep hashing fast in tests
var testHasher = auth.NewArgon2Hasher(auth.PasswordParams{
	Memory:      64,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
})

// faultStore injects errors keyed by "<collection>.<operation>".
type faultStore struct {
	store.Store
	faults map[string]error
}

func newFaultStore() *faultStore {
	return &faultStore{Store: memory.NewStore(), faults: map[string]error{}}
}

func (f *faultStore) fail(collection, op string, err error) {
	f.faults[collection+"."+op] = err
}

func (f *faultStore) Collection(name string) store.Collection {
	return &faultCollection{Collection: f.Store.Collection(name), faults: f.faults}
}

type faultCollection struct {
	store.Collection
	faults map[string]error
}

func (c *faultCollection) fault(op string) error {
	return c.faults[c.Name()+"."+op]
}

func (c *faultCollection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	if err := c.fault("FindOne"); err != nil {
		return nil, err
	}
	return c.Collection.FindOne(ctx, filter)
}

func (c *faultCollection) Find(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	if err := c.fault("Find"); err != nil {
		return nil, err
	}
	return c.Collection.Find(ctx, filter)
}

func (c *faultCollection) InsertOne(ctx context.Context, doc store.Document) (string, error) {
	if err := c.fault("InsertOne"); err != nil {
		return "", err
	}
	return c.Collection.InsertOne(ctx, doc)
}

func (c *faultCollection) InsertMany(ctx context.Context, docs []store.Document) ([]string, error) {
	if err := c.fault("InsertMany"); err != nil {
		return nil, err
	}
	return c.Collection.InsertMany(ctx, docs)
}

func (c *faultCollection) UpdateOne(ctx context.Context, filter store.Filter, set store.Document) error {
	if err := c.fault("UpdateOne"); err != nil {
		return err
	}
	return c.Collection.UpdateOne(ctx, filter, set)
}

func (c *faultCollection) DeleteOne(ctx context.Context, filter store.Filter) error {
	if err := c.fault("DeleteOne"); err != nil {
		return err
	}
	return c.Collection.DeleteOne(ctx, filter)
}

func (c *faultCollection) Drop(ctx context.Context) error {
	if err := c.fault("Drop"); err != nil {
		return err
	}
	return c.Collection.Drop(ctx)
}

func (c *faultCollection) CreateUniqueIndex(ctx context.Context, field string) error {
	if err := c.fault("CreateUniqueIndex"); err != nil {
		return err
	}
	return c.Collection.CreateUniqueIndex(ctx, field)
}

func countDocs(t *testing.T, s store.Store, collection string) int {
	t.Helper()
	docs, err := s.Collection(collection).Find(context.Background(), store.Filter{})
	require.NoError(t, err)
	return len(docs)
}

func findAdmin(t *testing.T, s store.Store, email string) *models.Admin {
	t.Helper()
	doc, err := s.Collection(models.AdminsCollection).FindOne(context.Background(), store.Filter{models.FieldEmail: email})
	require.NoError(t, err)
	return models.AdminFromDocument(doc)
}
