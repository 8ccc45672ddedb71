package models

import (
	"time"

	"github.com/wolfeidau/orgmgr/internal/store"
)

// Collection and field names of admin documents.
const (
	AdminsCollection = "admins"

	FieldEmail    = "email"
	FieldPassword = "password"
	FieldRole     = "role"
	FieldOrgID    = "org_id"
)

// Admin is the single administrator of an organization.
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	OrgID        string // empty until the organization is created
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Document returns the admin as a store document. The org reference is only
// written once it is known.
func (a *Admin) Document() store.Document {
	doc := store.Document{
		FieldEmail:     a.Email,
		FieldPassword:  a.PasswordHash,
		FieldRole:      a.Role,
		FieldCreatedAt: formatTime(a.CreatedAt),
		FieldUpdatedAt: formatTime(a.UpdatedAt),
	}
	if a.OrgID != "" {
		doc[FieldOrgID] = a.OrgID
	}
	if a.ID != "" {
		doc[store.IDField] = a.ID
	}
	return doc
}

// AdminFromDocument converts a stored document into an Admin.
func AdminFromDocument(doc store.Document) *Admin {
	return &Admin{
		ID:           doc.ID(),
		Email:        doc.String(FieldEmail),
		PasswordHash: doc.String(FieldPassword),
		Role:         doc.String(FieldRole),
		OrgID:        doc.String(FieldOrgID),
		CreatedAt:    parseTime(doc.String(FieldCreatedAt)),
		UpdatedAt:    parseTime(doc.String(FieldUpdatedAt)),
	}
}
