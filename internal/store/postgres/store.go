package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgmgr/internal/store"
)

// maxIdentifierLen is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLen = 63

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements store.Store using one JSONB table per collection.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed document store on a shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Collection implements store.Store.
func (s *Store) Collection(name string) store.Collection {
	table := tableName(name)
	return &Collection{
		pool:  s.pool,
		name:  name,
		table: table,
		ident: pgx.Identifier{table}.Sanitize(),
	}
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Collection implements store.Collection as a table of (id, seq, doc).
type Collection struct {
	pool  *pgxpool.Pool
	name  string
	table string
	ident string
}

var _ store.Collection = (*Collection)(nil)

// Name implements store.Collection.
func (c *Collection) Name() string {
	return c.name
}

// FindOne implements store.Collection.
func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	containment, err := encodeFilter(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT doc FROM %s WHERE doc @> $1::jsonb ORDER BY seq LIMIT 1`, c.ident)

	var raw []byte
	err = c.pool.QueryRow(ctx, query, containment).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return nil, store.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to find document in %s: %w", c.name, mapPostgresError(err))
	}

	return store.DecodeDocument(raw)
}

// Find implements store.Collection.
func (c *Collection) Find(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	containment, err := encodeFilter(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT doc FROM %s WHERE doc @> $1::jsonb ORDER BY seq`, c.ident)

	rows, err := c.pool.Query(ctx, query, containment)
	if err != nil {
		if isUndefinedTable(err) {
			return []store.Document{}, nil
		}
		return nil, fmt.Errorf("failed to find documents in %s: %w", c.name, mapPostgresError(err))
	}

	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		if isUndefinedTable(err) {
			return []store.Document{}, nil
		}
		return nil, fmt.Errorf("failed to read documents from %s: %w", c.name, mapPostgresError(err))
	}

	docs := make([]store.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := store.DecodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// InsertOne implements store.Collection.
func (c *Collection) InsertOne(ctx context.Context, doc store.Document) (string, error) {
	ids, err := c.InsertMany(ctx, []store.Document{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertMany implements store.Collection. The table is created on first write.
func (c *Collection) InsertMany(ctx context.Context, docs []store.Document) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}

	ids := make([]string, 0, len(docs))
	encoded := make([]string, 0, len(docs))
	for _, doc := range docs {
		prepared, err := store.Prepare(doc)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(prepared)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
		ids = append(ids, prepared.ID())
		encoded = append(encoded, string(data))
	}

	err := c.insert(ctx, ids, encoded)
	if isUndefinedTable(err) {
		if err = c.ensureTable(ctx); err != nil {
			return nil, err
		}
		err = c.insert(ctx, ids, encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", c.name, mapPostgresError(err))
	}

	log.Debug().Str("collection", c.name).Int("count", len(ids)).Msg("Inserted documents")

	return ids, nil
}

func (c *Collection) insert(ctx context.Context, ids, encoded []string) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, c.ident)

	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range ids {
			batch.Queue(query, ids[i], encoded[i])
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// UpdateOne implements store.Collection.
func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, set store.Document) error {
	containment, err := encodeFilter(filter)
	if err != nil {
		return err
	}

	patch, err := json.Marshal(set.WithoutID())
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %[1]s SET doc = doc || $2::jsonb
		WHERE id = (SELECT id FROM %[1]s WHERE doc @> $1::jsonb ORDER BY seq LIMIT 1)
	`, c.ident)

	result, err := c.pool.Exec(ctx, query, containment, string(patch))
	if err != nil {
		if isUndefinedTable(err) {
			return store.ErrNoDocuments
		}
		return fmt.Errorf("failed to update document in %s: %w", c.name, mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrNoDocuments
	}

	return nil
}

// DeleteOne implements store.Collection.
func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	containment, err := encodeFilter(filter)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE id = (SELECT id FROM %[1]s WHERE doc @> $1::jsonb ORDER BY seq LIMIT 1)
	`, c.ident)

	if _, err := c.pool.Exec(ctx, query, containment); err != nil {
		if isUndefinedTable(err) {
			return nil
		}
		return fmt.Errorf("failed to delete document from %s: %w", c.name, mapPostgresError(err))
	}

	return nil
}

// Drop implements store.Collection.
func (c *Collection) Drop(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, c.ident)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", c.name, mapPostgresError(err))
	}

	log.Debug().Str("collection", c.name).Str("table", c.table).Msg("Dropped collection")
	return nil
}

// CreateUniqueIndex implements store.Collection with an expression index on
// doc->>field, so values are compared by their text form.
func (c *Collection) CreateUniqueIndex(ctx context.Context, field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("invalid index field %q", field)
	}

	if err := c.ensureTable(ctx); err != nil {
		return err
	}

	index := pgx.Identifier{tableName(c.table + "__" + field + "_uidx")}.Sanitize()
	// field is restricted to fieldPattern so it is safe as a literal
	query := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((doc->>'%s'))`,
		index, c.ident, field)

	if _, err := c.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create unique index on %s.%s: %w", c.name, field, mapPostgresError(err))
	}

	return nil
}

// ensureTable creates the collection table. Concurrent creators are
// serialised with an advisory lock because CREATE TABLE IF NOT EXISTS can
// still fail with a unique violation on the catalog when two sessions race.
func (c *Collection) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id  TEXT PRIMARY KEY,
			seq BIGSERIAL NOT NULL,
			doc JSONB NOT NULL
		)
	`, c.ident)

	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, c.table); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, query)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.name, mapPostgresError(err))
	}

	return nil
}

func encodeFilter(filter store.Filter) (string, error) {
	if len(filter) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter: %w", err)
	}
	return string(data), nil
}

// tableName maps a collection name onto a PostgreSQL identifier. Names longer
// than the identifier limit keep a prefix and gain a crc64 suffix of the
// full name.
func tableName(name string) string {
	if len(name) <= maxIdentifierLen {
		return name
	}

	h := crc64nvme.New()
	_, _ = h.Write([]byte(name))
	suffix := "_" + strconv.FormatUint(h.Sum64(), 16)

	prefix := name[:maxIdentifierLen-len(suffix)]
	// avoid splitting a multi-byte rune
	for len(prefix) > 0 && !isRuneStart(name[len(prefix)]) {
		prefix = prefix[:len(prefix)-1]
	}

	return prefix + suffix
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
