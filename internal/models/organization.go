package models

import (
	"time"

	"github.com/wolfeidau/orgmgr/internal/store"
)

// Collection and field names of organization documents.
const (
	OrganizationsCollection = "organizations"

	FieldOrganizationName = "organization_name"
	FieldCollectionName   = "collection_name"
	FieldAdminID          = "admin_id"
	FieldCreatedAt        = "created_at"
	FieldUpdatedAt        = "updated_at"
)

// Organization represents a tenant. Its collection holds the tenant's data.
type Organization struct {
	ID             string
	Name           string // stored verbatim
	CollectionName string // always tenant.CollectionName(Name)
	AdminID        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Document returns the organization as a store document without an _id.
func (o *Organization) Document() store.Document {
	doc := store.Document{
		FieldOrganizationName: o.Name,
		FieldCollectionName:   o.CollectionName,
		FieldAdminID:          o.AdminID,
		FieldCreatedAt:        formatTime(o.CreatedAt),
		FieldUpdatedAt:        formatTime(o.UpdatedAt),
	}
	if o.ID != "" {
		doc[store.IDField] = o.ID
	}
	return doc
}

// OrganizationFromDocument converts a stored document into an Organization.
func OrganizationFromDocument(doc store.Document) *Organization {
	return &Organization{
		ID:             doc.ID(),
		Name:           doc.String(FieldOrganizationName),
		CollectionName: doc.String(FieldCollectionName),
		AdminID:        doc.String(FieldAdminID),
		CreatedAt:      parseTime(doc.String(FieldCreatedAt)),
		UpdatedAt:      parseTime(doc.String(FieldUpdatedAt)),
	}
}

// OrgView is the externally visible summary of an organization.
type OrgView struct {
	ID             string `json:"id"`
	Name           string `json:"organization_name"`
	CollectionName string `json:"collection_name"`
	// AdminEmail is empty when the admin record could not be read.
	AdminEmail string `json:"admin_email,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
