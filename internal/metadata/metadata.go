// Package metadata implements the Metadata Catalog (C2): the hard-coded
// shape of the self-describing _metadata collection, returned from memory
// rather than round-tripping through the adapter or cache.
package metadata

import "github.com/kailas-cloud/docbase/internal/domain"

// Bootstrap returns the hard-coded _metadata collection descriptor:
// attributes, indexes and $permissions stored as large string fields
// carrying the json filter, and name as a required string of at most
// KeyLengthLimit with no filter, with a single key index on name.
func Bootstrap() domain.Collection {
	return domain.Collection{
		Name: domain.MetadataCollection,
		Attributes: []domain.Attribute{
			{ID: "name", Type: domain.TypeString, Size: domain.KeyLengthLimit, Required: true},
			{ID: "attributes", Type: domain.TypeString, Size: 1_000_000, Filters: []string{"json"}},
			{ID: "indexes", Type: domain.TypeString, Size: 1_000_000, Filters: []string{"json"}},
			{ID: domain.FieldPermissions, Type: domain.TypeString, Size: 1_000_000, Filters: []string{"json"}},
		},
		Indexes: []domain.Index{
			{ID: "name_key", Type: domain.IndexKey, Attributes: []string{"name"}, Orders: []string{domain.OrderASC}},
		},
		Permissions: domain.Permissions{
			Read: []string{domain.RoleAny}, Create: []string{domain.RoleAny},
			Update: []string{domain.RoleAny}, Delete: []string{domain.RoleAny},
		},
	}
}
