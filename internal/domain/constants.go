// Package domain holds the core value types, sentinel errors, and external
// collaborator contracts shared by every component of the engine.
package domain

// Attribute type names. Bit-exact: callers and adapters compare against these
// literals, never against a local enum's String().
const (
	TypeString       = "string"
	TypeInteger      = "integer"
	TypeDouble       = "double"
	TypeBoolean      = "boolean"
	TypeDatetime     = "datetime"
	TypeRelationship = "relationship"
)

// Index type names.
const (
	IndexKey      = "key"
	IndexFulltext = "fulltext"
	IndexUnique   = "unique"
	IndexSpatial  = "spatial"
	IndexArray    = "array"
)

// Relationship cardinalities.
const (
	RelationOneToOne   = "oneToOne"
	RelationOneToMany  = "oneToMany"
	RelationManyToOne  = "manyToOne"
	RelationManyToMany = "manyToMany"
)

// Relationship sides.
const (
	SideParent = "parent"
	SideChild  = "child"
)

// Sort orders.
const (
	OrderASC  = "ASC"
	OrderDESC = "DESC"
)

// Cursor directions.
const (
	CursorBefore = "before"
	CursorAfter  = "after"
)

// MetadataCollection is the id of the self-describing catalog collection.
const MetadataCollection = "_metadata"

// EventAll is the catch-all event-bus channel token.
const EventAll = "*"

// KeyLengthLimit bounds any attribute/index/collection id.
const KeyLengthLimit = 255

// DefaultCacheTTLSeconds is the fallback TTL for cache.Save when the caller
// does not specify one.
const DefaultCacheTTLSeconds = 86400

// System document fields present on every document.
const (
	FieldID           = "$id"
	FieldCollection   = "$collection"
	FieldCreatedAt    = "$createdAt"
	FieldUpdatedAt    = "$updatedAt"
	FieldPermissions  = "$permissions"
	FieldInternalID   = "$internalId"
)

// Event names emitted by the Schema Manager and Document Engine. Per the
// source's documented bug, create and delete must NOT share a string.
const (
	EventCollectionCreate = "collection_create"
	EventCollectionDelete = "collection_delete"
	EventAttributeCreate  = "attribute_create"
	EventAttributeUpdate  = "attribute_update"
	EventAttributeDelete  = "attribute_delete"
	EventIndexCreate      = "index_create"
	EventIndexDelete      = "index_delete"
	EventIndexRename      = "index_rename"
	EventDocumentCreate   = "document_create"
	EventDocumentRead     = "document_read"
	EventDocumentUpdate   = "document_update"
	EventDocumentDelete   = "document_delete"
)
