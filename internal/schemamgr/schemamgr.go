// Package schemamgr implements the Schema Manager (C6): collection,
// attribute, index, and relationship mutations, mirrored into the
// _metadata catalog in lock-step with the adapter.
package schemamgr

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/kailas-cloud/docbase/internal/adapter"
	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/domain/query"
	"github.com/kailas-cloud/docbase/internal/events"
	"github.com/kailas-cloud/docbase/internal/metadata"
)

// MetadataStore is the narrow slice of the Document Engine the Schema
// Manager needs to read and mirror _metadata documents. _metadata is an
// ordinary collection from the engine's point of view, so the same CRUD
// code path that serves user documents serves schema mutations.
type MetadataStore interface {
	GetDocument(ctx context.Context, collection, id string, selections []string) (domain.Document, error)
	CreateDocument(ctx context.Context, collection string, doc domain.Document) (domain.Document, error)
	UpdateDocument(ctx context.Context, collection, id string, doc domain.Document) (domain.Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection string, queries []query.Query) ([]domain.Document, string, error)
}

// knownFormats whitelists the formats registered for each attribute type;
// an attribute requesting a format absent from its type's set is rejected
// (ErrUnknownFormat) per §4.6.4.
var knownFormats = map[string]map[string]bool{
	domain.TypeString: {"email": true, "url": true, "uuid": true, "ip": true},
	domain.TypeInteger: {},
	domain.TypeDouble:  {},
}

// Manager mutates collection/attribute/index/relationship schema, keeping
// the adapter and the _metadata catalog in lock-step.
type Manager struct {
	adapter adapter.Adapter
	meta    MetadataStore
	events  *events.Bus
}

// New builds a Manager.
func New(ad adapter.Adapter, meta MetadataStore, bus *events.Bus) *Manager {
	return &Manager{adapter: ad, meta: meta, events: bus}
}

// loadCollection fetches a collection's metadata document and decodes it
// into a domain.Collection; missing collections surface ErrCollectionNotFound.
func (m *Manager) loadCollection(ctx context.Context, name string) (domain.Collection, error) {
	doc, err := m.meta.GetDocument(ctx, domain.MetadataCollection, name, nil)
	if err != nil {
		return domain.Collection{}, err
	}
	if doc.IsEmpty() {
		return domain.Collection{}, fmt.Errorf("collection %q: %w: %w", name, domain.ErrCollectionNotFound, domain.ErrGeneric)
	}
	return metadata.DecodeCollectionDoc(doc), nil
}

// mirror writes (or rewrites) the collection's metadata document. A
// mutation against _metadata itself is never mirrored onto itself.
func (m *Manager) mirror(ctx context.Context, col domain.Collection) error {
	if col.IsMetadata() {
		return nil
	}
	doc := metadata.EncodeCollectionDoc(col)
	existing, err := m.meta.GetDocument(ctx, domain.MetadataCollection, col.Name, nil)
	if err != nil {
		return err
	}
	if existing.IsEmpty() {
		_, err = m.meta.CreateDocument(ctx, domain.MetadataCollection, doc)
		return err
	}
	_, err = m.meta.UpdateDocument(ctx, domain.MetadataCollection, col.Name, doc)
	return err
}

// CreateCollection creates an empty collection with the given permission
// set. The source's undefined `$private` local is intentionally omitted —
// every collection is created with exactly the permissions given.
func (m *Manager) CreateCollection(ctx context.Context, name string, perms domain.Permissions) (domain.Collection, error) {
	if name != domain.MetadataCollection {
		if existing, err := m.meta.GetDocument(ctx, domain.MetadataCollection, name, nil); err == nil && !existing.IsEmpty() {
			return domain.Collection{}, fmt.Errorf("collection %q already exists: %w", name, domain.ErrDuplicate)
		}
	}
	if err := m.adapter.CreateCollection(ctx, name); err != nil {
		return domain.Collection{}, err
	}
	col := domain.Collection{Name: name, Permissions: perms}
	if err := m.mirror(ctx, col); err != nil {
		return domain.Collection{}, err
	}
	m.events.Trigger(domain.EventCollectionCreate, col)
	return col, nil
}

// DeleteCollection reads the metadata document, then deletes from the
// adapter, then deletes the metadata document — read-metadata,
// adapter-delete, metadata-delete, not the source's adapter-delete-first
// ordering.
func (m *Manager) DeleteCollection(ctx context.Context, name string) error {
	col, err := m.loadCollection(ctx, name)
	if err != nil {
		return err
	}
	if err := m.adapter.DeleteCollection(ctx, name); err != nil {
		return err
	}
	if err := m.meta.DeleteDocument(ctx, domain.MetadataCollection, name); err != nil {
		return err
	}
	m.events.Trigger(domain.EventCollectionDelete, col)
	return nil
}

// ListCollections returns every collection document in _metadata, excluding
// _metadata itself.
func (m *Manager) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	docs, _, err := m.meta.Find(ctx, domain.MetadataCollection, []query.Query{query.Limit(1 << 30)})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Collection, 0, len(docs))
	for _, d := range docs {
		out = append(out, metadata.DecodeCollectionDoc(d))
	}
	return out, nil
}

// CreateAttribute validates and adds attr to collection name.
func (m *Manager) CreateAttribute(ctx context.Context, name string, attr domain.Attribute) (domain.Attribute, error) {
	col, err := m.loadCollection(ctx, name)
	if err != nil {
		return domain.Attribute{}, err
	}
	if err := m.validateNewAttribute(ctx, col, attr); err != nil {
		return domain.Attribute{}, err
	}
	if err := m.adapter.CreateAttribute(ctx, name, attr); err != nil {
		return domain.Attribute{}, err
	}
	col.Attributes = append(col.Attributes, attr)
	if err := m.mirror(ctx, col); err != nil {
		return domain.Attribute{}, err
	}
	m.events.Trigger(domain.EventAttributeCreate, col, attr)
	return attr, nil
}

func (m *Manager) validateNewAttribute(ctx context.Context, col domain.Collection, attr domain.Attribute) error {
	var errs error

	if len(attr.ID) == 0 || len(attr.ID) > domain.KeyLengthLimit {
		errs = multierr.Append(errs, fmt.Errorf("attribute id length: %w", domain.ErrGeneric))
	}
	if _, exists := col.AttributeByID(attr.ID); exists {
		errs = multierr.Append(errs, fmt.Errorf("attribute %q: %w", attr.ID, domain.ErrDuplicate))
	}
	if !isKnownType(attr.Type) {
		errs = multierr.Append(errs, fmt.Errorf("attribute %q type %q: %w: %w", attr.ID, attr.Type, domain.ErrUnknownType, domain.ErrGeneric))
	}
	if attr.Required && attr.Default != nil {
		errs = multierr.Append(errs, fmt.Errorf("attribute %q: cannot set a default value on a required attribute: %w", attr.ID, domain.ErrGeneric))
	}
	if attr.Type == domain.TypeDatetime && !hasFilter(attr.Filters, "datetime") {
		errs = multierr.Append(errs, fmt.Errorf("attribute %q: datetime type requires the datetime filter: %w", attr.ID, domain.ErrGeneric))
	}
	if attr.Format != "" {
		if formats, ok := knownFormats[attr.Type]; !ok || !formats[attr.Format] {
			errs = multierr.Append(errs, fmt.Errorf("attribute %q format %q: %w: %w", attr.ID, attr.Format, domain.ErrUnknownFormat, domain.ErrGeneric))
		}
	}
	if errs != nil {
		return errs
	}

	if len(col.Attributes)+1 > m.adapter.GetLimitForAttributes() {
		return fmt.Errorf("collection %q: attribute count would exceed adapter limit: %w", col.Name, domain.ErrLimit)
	}
	switch attr.Type {
	case domain.TypeString:
		if attr.Size > m.adapter.GetLimitForString() {
			return fmt.Errorf("attribute %q: string size exceeds adapter limit: %w", attr.ID, domain.ErrLimit)
		}
	case domain.TypeInteger:
		limit := m.adapter.GetLimitForInt()
		if attr.Signed {
			limit /= 2
		}
		if attr.Size > limit {
			return fmt.Errorf("attribute %q: int size exceeds adapter limit: %w", attr.ID, domain.ErrLimit)
		}
	}
	width, err := m.adapter.GetAttributeWidth(ctx, col.Name)
	if err != nil {
		return err
	}
	if width+attr.Size > m.adapter.GetDocumentSizeLimit() {
		return fmt.Errorf("collection %q: row width would exceed adapter limit: %w", col.Name, domain.ErrLimit)
	}
	return nil
}

func isKnownType(t string) bool {
	switch t {
	case domain.TypeString, domain.TypeInteger, domain.TypeDouble, domain.TypeBoolean, domain.TypeDatetime, domain.TypeRelationship:
		return true
	default:
		return false
	}
}

func hasFilter(filters []string, name string) bool {
	for _, f := range filters {
		if f == name {
			return true
		}
	}
	return false
}

// UpdateAttribute replaces an existing attribute's descriptor in place.
func (m *Manager) UpdateAttribute(ctx context.Context, name string, attr domain.Attribute) (domain.Attribute, error) {
	col, err := m.loadCollection(ctx, name)
	if err != nil {
		return domain.Attribute{}, err
	}
	idx := -1
	for i, a := range col.Attributes {
		if a.ID == attr.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Attribute{}, fmt.Errorf("attribute %q: %w: %w", attr.ID, domain.ErrAttributeNotFound, domain.ErrGeneric)
	}
	if attr.Required && attr.Default != nil {
		return domain.Attribute{}, fmt.Errorf("attribute %q: cannot set a default value on a required attribute: %w", attr.ID, domain.ErrGeneric)
	}
	if err := m.adapter.UpdateAttribute(ctx, name, attr); err != nil {
		return domain.Attribute{}, err
	}
	col.Attributes[idx] = attr
	if err := m.mirror(ctx, col); err != nil {
		return domain.Attribute{}, err
	}
	m.events.Trigger(domain.EventAttributeUpdate, col, attr)
	return attr, nil
}

// DeleteAttribute removes attributeID from collection name.
func (m *Manager) DeleteAttribute(ctx context.Context, name, attributeID string) error {
	col, err := m.loadCollection(ctx, name)
	if err != nil {
		return err
	}
	if err := m.adapter.DeleteAttribute(ctx, name, attributeID); err != nil {
		return err
	}
	kept := col.Attributes[:0]
	for _, a := range col.Attributes {
		if a.ID != attributeID {
			kept = append(kept, a)
		}
	}
	col.Attributes = kept
	if err := m.mirror(ctx, col); err != nil {
		return err
	}
	m.events.Trigger(domain.EventAttributeDelete, col, attributeID)
	return nil
}

// RenameAttribute renames an attribute and rewrites any index attribute
// lists in metadata that referenced the old id.
func (m *Manager) RenameAttribute(ctx context.Context, name, oldID, newID string) error {
	col, err := m.loadCollection(ctx, name)
	if err != nil {
		return err
	}
	if _, exists := col.AttributeByID(newID); exists {
		return fmt.Errorf("attribute %q: %w", newID, domain.ErrDuplicate)
	}
	if err := m.adapter.RenameAttribute(ctx, name, oldID, newID); err != nil {
		return err
	}
	for i, a := range col.Attributes {
		if a.ID == oldID {
			col.Attributes[i].ID = newID
		}
	}
	for i, idx := range col.Indexes {
		for j, a := range idx.Attributes {
			if a == oldID {
				col.Indexes[i].Attributes[j] = newID
			}
		}
	}
	if err := m.mirror(ctx, col); err != nil {
		return err
	}
	m.events.Trigger(domain.EventAttributeUpdate, col)
	return nil
}

// CreateIndex validates and adds idx to collection name. A fulltext index
// is gated on the adapter's unique-index capability — per the source's
// documented behavior, there is no separate fulltext support flag.
func (m *Manager) CreateIndex(ctx context.Context, name string, idx domain.Index) (domain.Index, error) {
	col, err := m.loadCollection(ctx, name)
	if err != nil {
		return domain.Index{}, err
	}
	if _, exists := col.IndexByID(idx.ID); exists {
		return domain.Index{}, fmt.Errorf("index %q: %w", idx.ID, domain.ErrDuplicate)
	}
	if !isKnownIndexType(idx.Type) {
		return domain.Index{}, fmt.Errorf("index %q type %q: unsupported index type: %w", idx.ID, idx.Type, domain.ErrGeneric)
	}
	switch idx.Type {
	case domain.IndexFulltext, domain.IndexUnique:
		if !m.adapter.GetSupportForUniqueIndex() {
			return domain.Index{}, fmt.Errorf("index %q: backend does not support unique/fulltext indexes: %w", idx.ID, domain.ErrGeneric)
		}
	default:
		if !m.adapter.GetSupportForIndex() {
			return domain.Index{}, fmt.Errorf("index %q: backend does not support indexes: %w", idx.ID, domain.ErrGeneric)
		}
	}
	if len(col.Indexes)+1 > m.adapter.GetLimitForIndexes() {
		return domain.Index{}, fmt.Errorf("collection %q: index count would exceed adapter limit: %w", name, domain.ErrLimit)
	}
	if err := m.adapter.CreateIndex(ctx, name, idx); err != nil {
		return domain.Index{}, err
	}
	col.Indexes = append(col.Indexes, idx)
	if err := m.mirror(ctx, col); err != nil {
		return domain.Index{}, err
	}
	m.events.Trigger(domain.EventIndexCreate, col, idx)
	return idx, nil
}

func isKnownIndexType(t string) bool {
	switch t {
	case domain.IndexKey, domain.IndexFulltext, domain.IndexUnique, domain.IndexSpatial, domain.IndexArray:
		return true
	default:
		return false
	}
}

// DeleteIndex removes indexID from collection name.
func (m *Manager) DeleteIndex(ctx context.Context, name, indexID string) error {
	col, err := m.loadCollection(ctx, name)
	if err != nil {
		return err
	}
	if err := m.adapter.DeleteIndex(ctx, name, indexID); err != nil {
		return err
	}
	kept := col.Indexes[:0]
	for _, idx := range col.Indexes {
		if idx.ID != indexID {
			kept = append(kept, idx)
		}
	}
	col.Indexes = kept
	if err := m.mirror(ctx, col); err != nil {
		return err
	}
	m.events.Trigger(domain.EventIndexDelete, col, indexID)
	return nil
}

// RenameIndex renames indexID to newID on collection name.
func (m *Manager) RenameIndex(ctx context.Context, name, oldID, newID string) error {
	col, err := m.loadCollection(ctx, name)
	if err != nil {
		return err
	}
	if _, exists := col.IndexByID(newID); exists {
		return fmt.Errorf("index %q: %w", newID, domain.ErrDuplicate)
	}
	if err := m.adapter.RenameIndex(ctx, name, oldID, newID); err != nil {
		return err
	}
	for i, idx := range col.Indexes {
		if idx.ID == oldID {
			col.Indexes[i].ID = newID
		}
	}
	if err := m.mirror(ctx, col); err != nil {
		return err
	}
	m.events.Trigger(domain.EventIndexRename, col, oldID, newID)
	return nil
}

// CreateRelationship adds a relationship attribute parentAttr (side=parent)
// to parentCollection, mirrors a swapped-id side=child attribute onto
// childCollection, and for manyToMany creates the junction collection
// "{parent}_{child}" with two required non-array string(36) attributes
// named "id" and "twoWayId".
func (m *Manager) CreateRelationship(
	ctx context.Context, parentCollection, childCollection string, parentAttr domain.Attribute,
) (domain.Attribute, error) {
	if parentAttr.Type != domain.TypeRelationship || parentAttr.Relationship == nil {
		return domain.Attribute{}, fmt.Errorf("createRelationship requires a relationship attribute: %w", domain.ErrGeneric)
	}
	opts := *parentAttr.Relationship
	opts.Side = domain.SideParent
	opts.RelatedCollection = childCollection
	parentAttr.Relationship = &opts
	parentAttr.Array = arrayForSide(opts.RelationType, domain.SideParent)

	created, err := m.CreateAttribute(ctx, parentCollection, parentAttr)
	if err != nil {
		return domain.Attribute{}, err
	}

	childOpts := opts
	childOpts.Side = domain.SideChild
	childOpts.RelatedCollection = parentCollection
	childOpts.TwoWayID = parentAttr.ID
	childAttr := domain.Attribute{
		ID:           childIDOrDefault(opts.TwoWayID, parentAttr.ID),
		Type:         domain.TypeRelationship,
		Array:        arrayForSide(opts.RelationType, domain.SideChild),
		Relationship: &childOpts,
	}
	if _, err := m.CreateAttribute(ctx, childCollection, childAttr); err != nil {
		return domain.Attribute{}, err
	}

	if opts.RelationType == domain.RelationManyToMany {
		junctionName := parentCollection + "_" + childCollection
		if _, err := m.CreateCollection(ctx, junctionName, domain.Permissions{}); err != nil {
			return domain.Attribute{}, err
		}
		for _, attrID := range []string{"id", "twoWayId"} {
			if _, err := m.CreateAttribute(ctx, junctionName, domain.Attribute{
				ID: attrID, Type: domain.TypeString, Size: 36, Required: true,
			}); err != nil {
				return domain.Attribute{}, err
			}
		}
	}

	return created, nil
}

func childIDOrDefault(twoWayID, parentAttrID string) string {
	if twoWayID != "" {
		return twoWayID
	}
	return parentAttrID
}

// arrayForSide reports whether a relationship attribute on the given side
// holds a list rather than a single related document: the "many" side of
// oneToMany/manyToOne, and both sides of manyToMany.
func arrayForSide(relationType, side string) bool {
	switch relationType {
	case domain.RelationOneToMany:
		return side == domain.SideParent
	case domain.RelationManyToOne:
		return side == domain.SideChild
	case domain.RelationManyToMany:
		return true
	default: // oneToOne
		return false
	}
}
