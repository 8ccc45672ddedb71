package orgs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgmgr/internal/auth"
	"github.com/wolfeidau/orgmgr/internal/models"
	"github.com/wolfeidau/orgmgr/internal/store"
	"github.com/wolfeidau/orgmgr/internal/telemetry"
)

// TokenIssuer signs access tokens for authenticated admins.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

// Authenticator exchanges admin credentials for access tokens.
type Authenticator struct {
	store   store.Store
	hasher  auth.PasswordHasher
	issuer  TokenIssuer
	metrics *telemetry.Metrics
}

// NewAuthenticator creates an Authenticator over s.
func NewAuthenticator(s store.Store, hasher auth.PasswordHasher, issuer TokenIssuer) *Authenticator {
	return &Authenticator{
		store:   s,
		hasher:  hasher,
		issuer:  issuer,
		metrics: telemetry.GetMetrics(),
	}
}

// Login returns a signed token for the admin with email and password. ok is
// false when the email is unknown, the password is wrong or the admin has no
// organization; these cases are indistinguishable to the caller. err is
// reserved for store, hash and signing failures.
func (a *Authenticator) Login(ctx context.Context, email, password string) (token string, ok bool, err error) {
	started := time.Now()
	result := "success"
	defer func() {
		if err != nil {
			result = "error"
		}
		a.metrics.RecordLogin(ctx, result)
		log.Debug().Str("result", result).Dur("duration", time.Since(started)).Msg("Admin login")
	}()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		result = "rejected"
		return "", false, nil
	}

	doc, err := a.store.Collection(models.AdminsCollection).FindOne(ctx, store.Filter{models.FieldEmail: email})
	if err != nil {
		if errors.Is(err, store.ErrNoDocuments) {
			result = "rejected"
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to find admin: %w", err)
	}
	admin := models.AdminFromDocument(doc)

	match, err := a.hasher.Verify(password, admin.PasswordHash)
	if err != nil {
		return "", false, fmt.Errorf("failed to verify admin password: %w", err)
	}
	if !match {
		result = "rejected"
		return "", false, nil
	}

	if admin.OrgID == "" {
		log.Warn().Str("admin_id", admin.ID).Msg("Admin has no organization")
		result = "rejected"
		return "", false, nil
	}

	orgDoc, err := a.store.Collection(models.OrganizationsCollection).FindOne(ctx, store.ByID(admin.OrgID))
	if err != nil {
		if errors.Is(err, store.ErrNoDocuments) {
			log.Warn().Str("admin_id", admin.ID).Str("org_id", admin.OrgID).Msg("Admin organization not found")
			result = "rejected"
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to find organization: %w", err)
	}
	org := models.OrganizationFromDocument(orgDoc)
	if org.AdminID != admin.ID {
		log.Warn().Str("admin_id", admin.ID).Str("org_id", org.ID).Msg("Organization admin mismatch")
		result = "rejected"
		return "", false, nil
	}

	token, err = a.issuer.Issue(auth.Identity{Subject: admin.ID, OrgID: org.ID, Role: auth.RoleAdmin})
	if err != nil {
		return "", false, fmt.Errorf("failed to issue token: %w", err)
	}

	return token, true, nil
}
