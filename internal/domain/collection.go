package domain

import "strings"

// RelationshipOptions is carried only by attributes of type relationship.
type RelationshipOptions struct {
	RelatedCollection string
	RelationType      string // one of Relation* constants
	TwoWay            bool
	TwoWayID          string
	OnUpdate          string
	OnDelete          string
	Side              string // SideParent or SideChild
}

// Attribute is a collection's per-field descriptor.
type Attribute struct {
	ID            string // case-insensitive unique within a collection
	Type          string // one of Type* constants
	Size          int
	Required      bool
	Signed        bool
	Array         bool
	Default       any
	Format        string
	FormatOptions map[string]any
	Filters       []string // applied in order on encode, reversed on decode
	Relationship  *RelationshipOptions
}

// Index is a collection's per-index descriptor.
type Index struct {
	ID         string
	Type       string // one of Index* constants
	Attributes []string
	Lengths    []int
	Orders     []string // one of Order* constants, aligned with Attributes
}

// Collection is the schema document stored in _metadata: name, attributes,
// indexes, and the permission set governing the collection document itself.
type Collection struct {
	Name        string
	Attributes  []Attribute
	Indexes     []Index
	Permissions Permissions
}

// AttributeByID performs a case-insensitive lookup, matching invariant 1
// (attribute ids are unique case-insensitively).
func (c Collection) AttributeByID(id string) (Attribute, bool) {
	for _, a := range c.Attributes {
		if strings.EqualFold(a.ID, id) {
			return a, true
		}
	}
	return Attribute{}, false
}

// IndexByID performs a case-insensitive lookup, matching invariant 2.
func (c Collection) IndexByID(id string) (Index, bool) {
	for _, idx := range c.Indexes {
		if strings.EqualFold(idx.ID, id) {
			return idx, true
		}
	}
	return Index{}, false
}

// IsMetadata reports whether this is the self-describing _metadata
// collection, which is exempt from the permission gate and from mirroring
// its own schema mutations back onto itself.
func (c Collection) IsMetadata() bool {
	return c.Name == MetadataCollection
}
