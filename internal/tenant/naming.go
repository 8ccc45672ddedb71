// Package tenant maps organization names onto the storage collections that
// hold each organization's data.
package tenant

import "strings"

// CollectionPrefix is prepended to every tenant collection name.
const CollectionPrefix = "org_"

// Normalize lower-cases and trims an organization name and replaces spaces
// with underscores. Normalize(Normalize(s)) == Normalize(s).
func Normalize(orgName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(orgName)), " ", "_")
}

// CollectionName returns the storage collection identifier for an
// organization name. It must be recomputed whenever the name changes.
func CollectionName(orgName string) string {
	return CollectionPrefix + Normalize(orgName)
}
