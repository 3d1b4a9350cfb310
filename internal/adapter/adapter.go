// Package adapter declares the external storage Adapter and Cache contracts
// the core depends on. The core owns no implementation of either; it only
// consumes these interfaces. See internal/adapter/memory and
// internal/adapter/redis for concrete backends.
package adapter

import (
	"context"

	"github.com/kailas-cloud/docbase/internal/domain"
)

// Row is a single persisted record as the adapter sees it: a flat
// attribute-name to value mapping, opaque to the adapter beyond that.
type Row map[string]any

// FindResult is one page of a find() call.
type FindResult struct {
	Rows  []Row
	Total int // -1 when the adapter does not report a total cheaply
}

// Adapter is the pluggable storage backend contract (§6). The core depends
// on this contract, never on a concrete backend.
type Adapter interface {
	SetNamespace(ns string)
	GetNamespace() string
	SetDefaultDatabase(db string)
	GetDefaultDatabase() string
	Ping(ctx context.Context) error

	Create(ctx context.Context, database string) error
	Delete(ctx context.Context, database string) error
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, database, collection string) (bool, error)

	CreateCollection(ctx context.Context, collection string) error
	DeleteCollection(ctx context.Context, collection string) error

	CreateAttribute(ctx context.Context, collection string, attr domain.Attribute) error
	UpdateAttribute(ctx context.Context, collection string, attr domain.Attribute) error
	DeleteAttribute(ctx context.Context, collection, attributeID string) error
	RenameAttribute(ctx context.Context, collection, oldID, newID string) error

	CreateIndex(ctx context.Context, collection string, idx domain.Index) error
	DeleteIndex(ctx context.Context, collection, indexID string) error
	RenameIndex(ctx context.Context, collection, oldID, newID string) error

	CreateRelationship(ctx context.Context, collection string, attr domain.Attribute) error

	GetDocument(ctx context.Context, collection, id string) (Row, error)
	CreateDocument(ctx context.Context, collection string, row Row) error
	UpdateDocument(ctx context.Context, collection, id string, row Row) error
	DeleteDocument(ctx context.Context, collection, id string) error

	// IncreaseDocumentAttribute applies delta (negative for a decrease) to
	// attribute, enforcing min/max bounds (nil means unbounded on that
	// side), and returns the resulting value.
	IncreaseDocumentAttribute(ctx context.Context, collection, id, attribute string, delta float64, min, max *float64) (float64, error)

	Find(ctx context.Context, collection string, filters []Row, limit, offset int,
		orderAttrs, orderTypes []string, cursor, direction string) (FindResult, error)
	Count(ctx context.Context, collection string, filters []Row, max int) (int, error)
	Sum(ctx context.Context, collection, attribute string, filters []Row, max int) (float64, error)

	Capabilities
}

// Capabilities exposes the adapter's reported limits, used by the Schema
// Manager to enforce §4.6's width/count contracts before mutating.
type Capabilities interface {
	GetLimitForAttributes() int
	GetLimitForIndexes() int
	GetLimitForString() int
	GetLimitForInt() int
	GetCountOfAttributes(ctx context.Context, collection string) (int, error)
	GetCountOfIndexes(ctx context.Context, collection string) (int, error)
	GetCountOfDefaultAttributes() int
	GetCountOfDefaultIndexes() int
	GetAttributeWidth(ctx context.Context, collection string) (int, error)
	GetDocumentSizeLimit() int
	GetSupportForIndex() bool
	GetSupportForUniqueIndex() bool
	GetSupportForCasting() bool
	GetKeywords() []string
}
