// Package orgs implements the organization lifecycle: creating a tenant with
// its admin, reading it, renaming it with a migration of its collection, and
// deleting it.
package orgs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/wolfeidau/orgmgr/internal/auth"
	"github.com/wolfeidau/orgmgr/internal/models"
	"github.com/wolfeidau/orgmgr/internal/store"
	"github.com/wolfeidau/orgmgr/internal/telemetry"
	"github.com/wolfeidau/orgmgr/internal/tenant"
)

const compensationTimeout = 10 * time.Second

// Client facing messages.
const (
	msgOrgExists        = "Organization already exists"
	msgAdminExists      = "Admin email already in use"
	msgNewNameExists    = "New organization name already exists"
	msgOrgNotFound      = "Organization not found"
	msgNameRequired     = "Organization name is required"
	msgNamesRequired    = "Organization names cannot be empty"
	msgEmailRequired    = "A valid admin email is required"
	msgPasswordRequired = "Admin password is required"
	msgCreateFailed     = "Failed to create organization"
	msgUpdateFailed     = "Failed to update organization"
	msgDeleteFailed     = "Failed to delete organization"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager coordinates the organizations and admins collections with the
// per tenant collections in a single store.
type Manager struct {
	store   store.Store
	hasher  auth.PasswordHasher
	now     func() time.Time
	metrics *telemetry.Metrics
}

// NewManager creates a Manager over s.
func NewManager(s store.Store, hasher auth.PasswordHasher, opts ...Option) *Manager {
	m := &Manager{
		store:   s,
		hasher:  hasher,
		now:     time.Now,
		metrics: telemetry.GetMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) orgs() store.Collection {
	return m.store.Collection(models.OrganizationsCollection)
}

func (m *Manager) admins() store.Collection {
	return m.store.Collection(models.AdminsCollection)
}

// EnsureIndexes creates the unique indexes on organization names, tenant
// collection names and admin emails. Failures are logged and counted; lookups
// before each write still reject duplicates without them.
func (m *Manager) EnsureIndexes(ctx context.Context) {
	indexes := []struct {
		coll  store.Collection
		field string
	}{
		{m.orgs(), models.FieldOrganizationName},
		{m.orgs(), models.FieldCollectionName},
		{m.admins(), models.FieldEmail},
	}

	for _, idx := range indexes {
		if err := idx.coll.CreateUniqueIndex(ctx, idx.field); err != nil {
			m.metrics.IndexCreateErrorsTotal.Add(ctx, 1)
			log.Warn().Err(err).
				Str("collection", idx.coll.Name()).
				Str("field", idx.field).
				Msg("Failed to create unique index")
			continue
		}
		log.Debug().Str("collection", idx.coll.Name()).Str("field", idx.field).Msg("Unique index ready")
	}
}

// Create registers a new organization with its admin and returns its summary.
//
// The admin is written first, then the organization, then the admin's org
// reference. If a later write fails the earlier ones are deleted again.
func (m *Manager) Create(ctx context.Context, orgName, email, password string) (view *models.OrgView, err error) {
	defer m.observe(ctx, "create", time.Now(), &err)

	name := strings.TrimSpace(orgName)
	email = normalizeEmail(email)
	if err := validateCredentials(name, msgNameRequired, email, password); err != nil {
		return nil, err
	}
	collName := tenant.CollectionName(name)

	if err := m.checkOrgAvailable(ctx, name, collName, ""); err != nil {
		return nil, err
	}
	if err := m.checkEmailAvailable(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, newError(KindCreateFailed, msgCreateFailed, err)
	}

	adminID, orgID, err := newIDs()
	if err != nil {
		return nil, newError(KindCreateFailed, msgCreateFailed, err)
	}

	now := m.now().UTC()
	admin := &models.Admin{
		ID:           adminID,
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := m.admins().InsertOne(ctx, admin.Document()); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, newError(KindDuplicateAdmin, msgAdminExists, err)
		}
		return nil, m.failCreate(ctx, err, adminID, "")
	}

	org := &models.Organization{
		ID:             orgID,
		Name:           name,
		CollectionName: collName,
		AdminID:        adminID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := m.orgs().InsertOne(ctx, org.Document()); err != nil {
		cause := m.failCreate(ctx, err, adminID, orgID)
		if errors.Is(err, store.ErrDuplicateKey) {
			cause.Kind, cause.Message = KindDuplicateOrganization, msgOrgExists
		}
		return nil, cause
	}

	set := store.Document{models.FieldOrgID: orgID, models.FieldUpdatedAt: now.Format(time.RFC3339Nano)}
	if err := m.admins().UpdateOne(ctx, store.ByID(adminID), set); err != nil {
		return nil, m.failCreate(ctx, err, adminID, orgID)
	}

	log.Info().Str("org_id", orgID).Str("organization", name).Str("collection", collName).Msg("Organization created")

	return &models.OrgView{ID: orgID, Name: name, CollectionName: collName, AdminEmail: email}, nil
}

// failCreate removes whatever Create managed to write and returns a
// CreateFailed error carrying cause and any compensation failure.
func (m *Manager) failCreate(ctx context.Context, cause error, adminID, orgID string) *Error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	m.metrics.OrgCompensationsTotal.Add(ctx, 1)

	var compErr error
	if orgID != "" {
		compErr = multierr.Append(compErr, m.orgs().DeleteOne(ctx, store.ByID(orgID)))
	}
	compErr = multierr.Append(compErr, m.admins().DeleteOne(ctx, store.ByID(adminID)))

	if compErr != nil {
		log.Error().Err(compErr).AnErr("cause", cause).
			Str("admin_id", adminID).
			Str("org_id", orgID).
			Msg("Failed to roll back partial organization create")
		cause = multierr.Append(cause, fmt.Errorf("rollback: %w", compErr))
	}

	return newError(KindCreateFailed, msgCreateFailed, cause)
}

// GetByName returns the organization whose stored name equals orgName after
// trimming surrounding whitespace.
func (m *Manager) GetByName(ctx context.Context, orgName string) (*models.OrgView, error) {
	org, err := m.findOrg(ctx, store.Filter{models.FieldOrganizationName: strings.TrimSpace(orgName)})
	if err != nil {
		return nil, err
	}
	return m.view(ctx, org), nil
}

// GetByID returns the organization with the given id.
func (m *Manager) GetByID(ctx context.Context, id string) (*models.OrgView, error) {
	org, err := m.findOrg(ctx, store.ByID(id))
	if err != nil {
		return nil, err
	}
	return m.view(ctx, org), nil
}

// view builds the summary of org. A missing or unreadable admin leaves the
// email empty rather than failing the read.
func (m *Manager) view(ctx context.Context, org *models.Organization) *models.OrgView {
	v := &models.OrgView{ID: org.ID, Name: org.Name, CollectionName: org.CollectionName}

	doc, err := m.admins().FindOne(ctx, store.ByID(org.AdminID))
	if err != nil {
		log.Warn().Err(err).Str("org_id", org.ID).Str("admin_id", org.AdminID).Msg("Failed to load organization admin")
		return v
	}
	v.AdminEmail = models.AdminFromDocument(doc).Email
	return v
}

// Update renames the organization oldName to newName and replaces its admin
// credentials. When the tenant collection name changes every document is
// copied to the new collection before the old one is dropped.
func (m *Manager) Update(ctx context.Context, oldName, newName, email, password string) (err error) {
	defer m.observe(ctx, "update", time.Now(), &err)

	oldName = strings.TrimSpace(oldName)
	newName = strings.TrimSpace(newName)
	email = normalizeEmail(email)
	if oldName == "" {
		return newError(KindValidation, msgNamesRequired, nil)
	}
	if err := validateCredentials(newName, msgNamesRequired, email, password); err != nil {
		return err
	}

	org, err := m.findOrg(ctx, store.Filter{models.FieldOrganizationName: oldName})
	if err != nil {
		return err
	}

	newColl := tenant.CollectionName(newName)
	if newName != org.Name {
		if err := m.checkOrgAvailable(ctx, newName, newColl, org.ID); err != nil {
			var e *Error
			if errors.As(err, &e) && e.Kind == KindDuplicateOrganization {
				e.Message = msgNewNameExists
			}
			return err
		}
	}
	if err := m.checkEmailAvailable(ctx, email, org.AdminID); err != nil {
		return err
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return newError(KindUpdateFailed, msgUpdateFailed, err)
	}

	if newColl != org.CollectionName {
		if err := m.migrateCollection(ctx, org.CollectionName, newColl); err != nil {
			return newError(KindUpdateFailed, msgUpdateFailed, err)
		}
	}

	now := m.now().UTC().Format(time.RFC3339Nano)

	err = m.orgs().UpdateOne(ctx, store.ByID(org.ID), store.Document{
		models.FieldOrganizationName: newName,
		models.FieldCollectionName:   newColl,
		models.FieldUpdatedAt:        now,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return newError(KindDuplicateOrganization, msgNewNameExists, err)
		}
		return newError(KindUpdateFailed, msgUpdateFailed, err)
	}

	err = m.admins().UpdateOne(ctx, store.ByID(org.AdminID), store.Document{
		models.FieldEmail:     email,
		models.FieldPassword:  hash,
		models.FieldUpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return newError(KindDuplicateAdmin, msgAdminExists, err)
		}
		return newError(KindUpdateFailed, msgUpdateFailed, err)
	}

	log.Info().Str("org_id", org.ID).Str("from", org.Name).Str("to", newName).Msg("Organization updated")

	return nil
}

// migrateCollection copies every document of from into to without their ids
// and then drops from.
func (m *Manager) migrateCollection(ctx context.Context, from, to string) error {
	src := m.store.Collection(from)

	docs, err := src.Find(ctx, store.Filter{})
	if err != nil {
		return fmt.Errorf("failed to read collection %s: %w", from, err)
	}

	if len(docs) > 0 {
		copies := make([]store.Document, len(docs))
		for i, doc := range docs {
			copies[i] = doc.WithoutID()
		}
		if _, err := m.store.Collection(to).InsertMany(ctx, copies); err != nil {
			return fmt.Errorf("failed to copy documents to %s: %w", to, err)
		}
	}

	if err := src.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", from, err)
	}

	m.metrics.OrgMigratedDocuments.Record(ctx, int64(len(docs)))
	log.Info().Str("from", from).Str("to", to).Int("documents", len(docs)).Msg("Tenant collection migrated")

	return nil
}

// Delete removes the organization's collection, its admin and finally the
// organization itself.
func (m *Manager) Delete(ctx context.Context, orgName string) (err error) {
	defer m.observe(ctx, "delete", time.Now(), &err)

	org, err := m.findOrg(ctx, store.Filter{models.FieldOrganizationName: strings.TrimSpace(orgName)})
	if err != nil {
		return err
	}

	if err := m.store.Collection(org.CollectionName).Drop(ctx); err != nil {
		return newError(KindDeleteFailed, msgDeleteFailed, err)
	}
	if err := m.admins().DeleteOne(ctx, store.ByID(org.AdminID)); err != nil {
		return newError(KindDeleteFailed, msgDeleteFailed, err)
	}
	if err := m.orgs().DeleteOne(ctx, store.ByID(org.ID)); err != nil {
		return newError(KindDeleteFailed, msgDeleteFailed, err)
	}

	log.Info().Str("org_id", org.ID).Str("organization", org.Name).Msg("Organization deleted")

	return nil
}

func (m *Manager) findOrg(ctx context.Context, filter store.Filter) (*models.Organization, error) {
	doc, err := m.orgs().FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, store.ErrNoDocuments) {
			return nil, newError(KindOrgNotFound, msgOrgNotFound, err)
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return models.OrganizationFromDocument(doc), nil
}

// checkOrgAvailable fails when another organization already uses name or
// would share the tenant collection collName. selfID is ignored.
func (m *Manager) checkOrgAvailable(ctx context.Context, name, collName, selfID string) error {
	filters := []store.Filter{
		{models.FieldOrganizationName: name},
		{models.FieldCollectionName: collName},
	}
	for _, filter := range filters {
		doc, err := m.orgs().FindOne(ctx, filter)
		switch {
		case errors.Is(err, store.ErrNoDocuments):
			continue
		case err != nil:
			return fmt.Errorf("failed to check organization name: %w", err)
		case doc.ID() != selfID:
			return newError(KindDuplicateOrganization, msgOrgExists, nil)
		}
	}
	return nil
}

// checkEmailAvailable fails when an admin other than selfID owns email.
func (m *Manager) checkEmailAvailable(ctx context.Context, email, selfID string) error {
	doc, err := m.admins().FindOne(ctx, store.Filter{models.FieldEmail: email})
	switch {
	case errors.Is(err, store.ErrNoDocuments):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check admin email: %w", err)
	case doc.ID() != selfID:
		return newError(KindDuplicateAdmin, msgAdminExists, nil)
	}
	return nil
}

func (m *Manager) observe(ctx context.Context, op string, started time.Time, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = KindOf(*err).String()
	}
	m.metrics.RecordOrgOperation(ctx, op, outcome, float64(time.Since(started).Microseconds())/1000)
}

func validateCredentials(name, nameMsg, email, password string) error {
	if name == "" {
		return newError(KindValidation, nameMsg, nil)
	}
	if email == "" || !strings.Contains(email, "@") {
		return newError(KindValidation, msgEmailRequired, nil)
	}
	if password == "" {
		return newError(KindValidation, msgPasswordRequired, nil)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newIDs() (string, string, error) {
	a, err := uuid.NewV7()
	if err != nil {
		return "", "", err
	}
	o, err := uuid.NewV7()
	if err != nil {
		return "", "", err
	}
	return a.String(), o.String(), nil
}
