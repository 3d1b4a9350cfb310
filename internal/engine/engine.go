// Package engine implements the Document Engine (C7): CRUD, find/count/sum,
// orchestrating the Permission Gate, Codec Pipeline, Cache Layer, and the
// storage adapter, and re-entering itself through the Relationship
// Resolver for related collections.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/docbase/internal/adapter"
	"github.com/kailas-cloud/docbase/internal/cache"
	"github.com/kailas-cloud/docbase/internal/codec"
	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/domain/query"
	"github.com/kailas-cloud/docbase/internal/events"
	"github.com/kailas-cloud/docbase/internal/filter"
	"github.com/kailas-cloud/docbase/internal/gate"
	"github.com/kailas-cloud/docbase/internal/metadata"
	"github.com/kailas-cloud/docbase/internal/normalizer"
	"github.com/kailas-cloud/docbase/internal/relationship"
	"github.com/kailas-cloud/docbase/internal/structure"
)

// Engine is the Document Engine. Construct with New; it is a single
// logical actor — callers issue operations sequentially against one
// Engine, per the concurrency model.
type Engine struct {
	adapter    adapter.Adapter
	cacheLayer *cache.Layer
	gate       *gate.Gate
	filters    *filter.Registry
	codec      *codec.Codec
	normalizer *normalizer.Normalizer
	events     *events.Bus
	resolver   *relationship.Resolver
	idGen      domain.IDGenerator
	clock      domain.Clock
	structure  domain.Structure // optional override; nil uses structureFor's per-collection default
	namespace  string
	cacheTTL   int
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithIDGenerator overrides the default UUID generator.
func WithIDGenerator(g domain.IDGenerator) Option { return func(e *Engine) { e.idGen = g } }

// WithClock overrides the default system clock.
func WithClock(c domain.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithStructure overrides the default per-collection attribute Structure
// validator (internal/structure) with a caller-supplied one, consulted on
// every create and update.
func WithStructure(s domain.Structure) Option { return func(e *Engine) { e.structure = s } }

// WithCacheTTL overrides the default cache TTL in seconds.
func WithCacheTTL(seconds int) Option {
	return func(e *Engine) { e.cacheTTL = seconds }
}

// New wires an Engine against a storage adapter, a cache backend, an
// identity oracle, and a namespace. The built-in json/datetime filters are
// registered exactly once per the shared Filter Registry's idempotent init.
func New(store adapter.Adapter, cacheBackend adapter.Cache, identity domain.IdentityOracle, namespace string, opts ...Option) *Engine {
	e := &Engine{
		adapter:   store,
		gate:      gate.New(identity),
		filters:   filter.NewRegistry(),
		events:    events.New(),
		idGen:     domain.UUIDGenerator{},
		clock:     domain.SystemClock{},
		namespace: namespace,
		cacheTTL:  domain.DefaultCacheTTLSeconds,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.codec = codec.New(e.filters)
	e.normalizer = normalizer.New(e.clock)
	e.cacheLayer = cache.New(cacheBackend, namespace, e.cacheTTL)
	e.resolver = relationship.New(e)
	return e
}

// Bootstrap ensures the _metadata collection exists in the storage adapter.
// Every composition root calls this once before issuing any schema or
// document operation; it is idempotent against a backend that reports
// ErrDuplicate on a second CreateCollection.
func (e *Engine) Bootstrap(ctx context.Context) error {
	err := e.adapter.CreateCollection(ctx, domain.MetadataCollection)
	if err == nil || errors.Is(err, domain.ErrDuplicate) {
		return nil
	}
	return err
}

// Events exposes the engine-scoped Event Bus so callers can register
// listeners.
func (e *Engine) Events() *events.Bus { return e.events }

// Filters exposes the Filter Registry so callers can register custom
// instance-scoped filters before issuing operations.
func (e *Engine) Filters() *filter.Registry { return e.filters }

// structureFor resolves the Structure validator for a create/update against
// col: the caller-supplied override from WithStructure if one was given,
// otherwise the default per-collection attribute validator.
func (e *Engine) structureFor(col domain.Collection) domain.Structure {
	if e.structure != nil {
		return e.structure
	}
	return structure.New(col)
}

func toRow(doc domain.Document) adapter.Row {
	return adapter.Row(doc.ToMap())
}

func fromRow(row adapter.Row) domain.Document {
	if row == nil {
		return domain.Document{}
	}
	return domain.DocumentFromMap(map[string]any(row))
}

// encodeForCache/decodeCachedJSON serialize a fully decoded document to and
// from the string form the external Cache contract stores.
func encodeForCache(doc domain.Document) (string, error) {
	b, err := json.Marshal(doc.ToMap())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCachedJSON(raw string) domain.Document {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return domain.Document{}
	}
	return domain.DocumentFromMap(m)
}

// CollectionByName loads a collection's shape. The _metadata collection
// itself is returned from the hard-coded bootstrap description (C2); every
// other collection is read as an ordinary document from _metadata.
func (e *Engine) CollectionByName(ctx context.Context, name string) (domain.Collection, error) {
	if name == domain.MetadataCollection {
		return metadata.Bootstrap(), nil
	}
	doc, err := e.rawGet(ctx, domain.MetadataCollection, name)
	if err != nil {
		return domain.Collection{}, err
	}
	if doc.IsEmpty() {
		return domain.Collection{}, fmt.Errorf("collection %q: %w: %w", name, domain.ErrCollectionNotFound, domain.ErrGeneric)
	}
	return metadata.DecodeCollectionDoc(doc), nil
}

// rawGet fetches straight from the adapter, bypassing cache and gate —
// used internally for metadata lookups and for fetching the "prior"
// document under gate.Skip.
func (e *Engine) rawGet(ctx context.Context, collection, id string) (domain.Document, error) {
	row, err := e.adapter.GetDocument(ctx, collection, id)
	if err != nil {
		return domain.Document{}, err
	}
	if row == nil {
		return domain.Document{}, nil
	}
	return fromRow(row), nil
}

// readContextKey carries the relationship.ReadContext of the outermost
// GetDocument call on the context, so the reads the Resolver makes back into
// GetDocument share one visited set.
type readContextKey struct{}

// GetDocument implements §4.7's getDocument: selection validation, cache
// lookup, relationship hydration on miss, and the read permission check.
// Returns an empty document when id is empty or when the gate denies read.
func (e *Engine) GetDocument(ctx context.Context, collection, id string, selections []string) (domain.Document, error) {
	if id == "" {
		return domain.Document{}, nil
	}
	if collection == domain.MetadataCollection && id == domain.MetadataCollection {
		return metadata.EncodeCollectionDoc(metadata.Bootstrap()), nil
	}

	col, err := e.CollectionByName(ctx, collection)
	if err != nil {
		return domain.Document{}, err
	}
	if err := validateSelections(col, selections); err != nil {
		return domain.Document{}, err
	}

	key := e.cacheLayer.Key(collection, id, selections)
	if cached, hit, err := e.cacheLayer.Load(ctx, key); err == nil && hit {
		doc := decodeCachedJSON(cached)
		if !e.checkReadPermission(col, doc) {
			return domain.Document{}, nil
		}
		return doc, nil
	}

	row, err := e.adapter.GetDocument(ctx, collection, id)
	if err != nil {
		return domain.Document{}, err
	}
	if row == nil {
		return domain.Document{}, nil
	}
	doc := fromRow(row)
	doc = doc.Set(domain.FieldCollection, collection)

	if !e.checkReadPermission(col, doc) {
		return domain.Document{}, nil
	}

	rc, nested := ctx.Value(readContextKey{}).(*relationship.ReadContext)
	if !nested {
		rc = relationship.NewReadContext()
		ctx = context.WithValue(ctx, readContextKey{}, rc)
	}
	doc, err = rc.HydrateRead(ctx, e.resolver, col, doc)
	if err != nil {
		return domain.Document{}, err
	}
	if !e.adapter.GetSupportForCasting() {
		doc, err = e.codec.Cast(col, doc)
		if err != nil {
			return domain.Document{}, err
		}
	}
	doc, err = e.codec.Decode(col, doc, selections)
	if err != nil {
		return domain.Document{}, err
	}

	if cacheable, err := encodeForCache(doc); err == nil {
		_ = e.cacheLayer.Save(ctx, key, cacheable)
	}
	e.events.Trigger(domain.EventDocumentRead, col.Name, doc)
	return doc, nil
}

func (e *Engine) checkReadPermission(col domain.Collection, doc domain.Document) bool {
	if col.IsMetadata() {
		return true
	}
	return e.gate.Check("read", doc.Permissions().Read)
}

func validateSelections(col domain.Collection, selections []string) error {
	for _, s := range selections {
		if _, ok := col.AttributeByID(s); !ok && s != domain.FieldID {
			return fmt.Errorf("select %q: %w: %w", s, domain.ErrUnknownSelection, domain.ErrGeneric)
		}
	}
	return nil
}

// CreateDocument implements §4.7's createDocument: stamps $id/$collection/
// timestamps, encodes, validates structure, dispatches relationship
// attributes, then writes through the adapter. No explicit permission
// check — the caller is trusted to have assembled a document it is
// permitted to create.
func (e *Engine) CreateDocument(ctx context.Context, collection string, doc domain.Document) (domain.Document, error) {
	col, err := e.CollectionByName(ctx, collection)
	if err != nil {
		return domain.Document{}, err
	}

	id := doc.GetID()
	if id == "" {
		id = e.idGen.Generate()
	}
	now := e.clock.Now().Format(time.RFC3339Nano)
	doc = doc.Set(domain.FieldID, id)
	doc = doc.Set(domain.FieldCollection, collection)
	doc = doc.Set(domain.FieldCreatedAt, now)
	doc = doc.Set(domain.FieldUpdatedAt, now)

	encoded, err := e.codec.Encode(col, doc)
	if err != nil {
		return domain.Document{}, err
	}
	if validator := e.structureFor(col); !validator.IsValid(encoded) {
		return domain.Document{}, fmt.Errorf("document %q: %s: %w", id, validator.GetDescription(), domain.ErrStructure)
	}

	stripped, err := e.resolver.ResolveWrite(ctx, col, encoded)
	if err != nil {
		return domain.Document{}, err
	}

	if err := e.adapter.CreateDocument(ctx, collection, toRow(stripped)); err != nil {
		return domain.Document{}, err
	}

	decoded, err := e.codec.Decode(col, stripped, nil)
	if err != nil {
		return domain.Document{}, err
	}
	e.events.Trigger(domain.EventDocumentCreate, col.Name, decoded)
	return decoded, nil
}

// UpdateDocument implements §4.7's updateDocument: requires id, fetches the
// prior document with the gate skipped, checks update permission against
// the prior document (never the caller's read rights), merges changes,
// stamps $updatedAt, encodes, validates, writes through, purges cache,
// decodes, and returns.
func (e *Engine) UpdateDocument(ctx context.Context, collection, id string, changes domain.Document) (domain.Document, error) {
	if id == "" {
		return domain.Document{}, fmt.Errorf("update requires a document id: %w", domain.ErrGeneric)
	}
	col, err := e.CollectionByName(ctx, collection)
	if err != nil {
		return domain.Document{}, err
	}

	var prior domain.Document
	if err := e.gate.Skip(func() error {
		var gerr error
		prior, gerr = e.rawGet(ctx, collection, id)
		return gerr
	}); err != nil {
		return domain.Document{}, err
	}
	if prior.IsEmpty() {
		return domain.Document{}, fmt.Errorf("document %q: %w", id, domain.ErrGeneric)
	}
	if !col.IsMetadata() && !e.gate.Check("update", prior.Permissions().Update) {
		return domain.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrAuthorization)
	}

	merged := prior
	for _, k := range changes.Keys() {
		v, _ := changes.Get(k)
		merged = merged.Set(k, v)
	}
	merged = merged.Set(domain.FieldUpdatedAt, e.clock.Now().Format(time.RFC3339Nano))

	encoded, err := e.codec.Encode(col, merged)
	if err != nil {
		return domain.Document{}, err
	}
	if validator := e.structureFor(col); !validator.IsValid(encoded) {
		return domain.Document{}, fmt.Errorf("document %q: %s: %w", id, validator.GetDescription(), domain.ErrStructure)
	}
	stripped, err := e.resolver.ResolveWrite(ctx, col, encoded)
	if err != nil {
		return domain.Document{}, err
	}

	if err := e.adapter.UpdateDocument(ctx, collection, id, toRow(stripped)); err != nil {
		return domain.Document{}, err
	}
	if err := e.cacheLayer.PurgeDocument(ctx, collection, id); err != nil {
		return domain.Document{}, err
	}

	decoded, err := e.codec.Decode(col, stripped, nil)
	if err != nil {
		return domain.Document{}, err
	}
	e.events.Trigger(domain.EventDocumentUpdate, col.Name, decoded)
	return decoded, nil
}

// DeleteDocument implements §4.7's deleteDocument: fetch prior with the
// gate skipped, check delete permission on the prior document, purge the
// cache family, then delete through the adapter.
func (e *Engine) DeleteDocument(ctx context.Context, collection, id string) error {
	col, err := e.CollectionByName(ctx, collection)
	if err != nil {
		return err
	}

	var prior domain.Document
	if err := e.gate.Skip(func() error {
		var gerr error
		prior, gerr = e.rawGet(ctx, collection, id)
		return gerr
	}); err != nil {
		return err
	}
	if prior.IsEmpty() {
		return fmt.Errorf("document %q: %w", id, domain.ErrGeneric)
	}
	if !col.IsMetadata() && !e.gate.Check("delete", prior.Permissions().Delete) {
		return fmt.Errorf("delete %s/%s: %w", collection, id, domain.ErrAuthorization)
	}

	if err := e.cacheLayer.PurgeDocument(ctx, collection, id); err != nil {
		return err
	}
	if err := e.adapter.DeleteDocument(ctx, collection, id); err != nil {
		return err
	}
	e.events.Trigger(domain.EventDocumentDelete, col.Name, id)
	return nil
}

// IncreaseDocumentAttribute implements §4.7's increase/decrease (delta >
// 0): requires update permission on the prior document, the attribute must
// be integer or float, and max (the upper bound) is enforced against the
// combined result.
func (e *Engine) IncreaseDocumentAttribute(ctx context.Context, collection, id, attribute string, value float64, max *float64) (float64, error) {
	return e.stepDocumentAttribute(ctx, collection, id, attribute, value, false, nil, max)
}

// DecreaseDocumentAttribute is IncreaseDocumentAttribute with the delta
// negated; min is the lower bound enforced against the result.
func (e *Engine) DecreaseDocumentAttribute(ctx context.Context, collection, id, attribute string, value float64, min *float64) (float64, error) {
	return e.stepDocumentAttribute(ctx, collection, id, attribute, value, true, min, nil)
}

func (e *Engine) stepDocumentAttribute(ctx context.Context, collection, id, attribute string, value float64, negate bool, min, max *float64) (float64, error) {
	if value <= 0 {
		return 0, fmt.Errorf("increase/decrease value must be positive: %w: %w", domain.ErrNonPositiveDelta, domain.ErrGeneric)
	}
	delta := value
	if negate {
		delta = -value
	}
	col, err := e.CollectionByName(ctx, collection)
	if err != nil {
		return 0, err
	}
	attr, ok := col.AttributeByID(attribute)
	if !ok {
		return 0, fmt.Errorf("attribute %q: %w: %w", attribute, domain.ErrAttributeNotFound, domain.ErrGeneric)
	}
	if attr.Type != domain.TypeInteger && attr.Type != domain.TypeDouble {
		return 0, fmt.Errorf("attribute %q is not numeric: %w", attribute, domain.ErrGeneric)
	}

	var prior domain.Document
	if err := e.gate.Skip(func() error {
		var gerr error
		prior, gerr = e.rawGet(ctx, collection, id)
		return gerr
	}); err != nil {
		return 0, err
	}
	if prior.IsEmpty() {
		return 0, fmt.Errorf("document %q: %w", id, domain.ErrGeneric)
	}
	if !e.gate.Check("update", prior.Permissions().Update) {
		return 0, fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrAuthorization)
	}

	result, err := e.adapter.IncreaseDocumentAttribute(ctx, collection, id, attribute, delta, min, max)
	if err != nil {
		return 0, err
	}
	if err := e.cacheLayer.PurgeDocument(ctx, collection, id); err != nil {
		return 0, err
	}
	return result, nil
}

// Find implements §4.7's find: groups queries, validates the cursor's
// collection, normalizes filter values, delegates to the adapter, and
// post-processes each row through cast + decode restricted to the
// validated selections.
func (e *Engine) Find(ctx context.Context, collection string, queries []query.Query) ([]domain.Document, string, error) {
	col, err := e.CollectionByName(ctx, collection)
	if err != nil {
		return nil, "", err
	}
	grouped := query.GroupByType(queries)
	if err := validateSelections(col, grouped.Selections); err != nil {
		return nil, "", err
	}

	cursorID := grouped.Cursor
	if cursorID != "" {
		if parts := strings.SplitN(cursorID, ":", 2); len(parts) == 2 {
			if parts[0] != collection {
				return nil, "", fmt.Errorf("cursor belongs to collection %q, not %q: %w: %w", parts[0], collection, domain.ErrCursorCollection, domain.ErrGeneric)
			}
			cursorID = parts[1]
		}
	}

	normalized := e.normalizer.Normalize(col, grouped.Filters)
	filters := make([]adapter.Row, 0, len(normalized))
	for _, q := range normalized {
		if len(q.GetValues()) == 0 {
			continue
		}
		filters = append(filters, adapter.Row{q.GetAttribute(): q.GetValues()[0]})
	}

	res, err := e.adapter.Find(ctx, collection, filters, grouped.Limit, grouped.Offset,
		grouped.OrderAttributes, grouped.OrderTypes, cursorID, grouped.CursorDirection)
	if err != nil {
		return nil, "", err
	}

	docs := make([]domain.Document, 0, len(res.Rows))
	for _, row := range res.Rows {
		doc := fromRow(row)
		if !e.adapter.GetSupportForCasting() {
			if doc, err = e.codec.Cast(col, doc); err != nil {
				return nil, "", err
			}
		}
		if doc, err = e.codec.Decode(col, doc, grouped.Selections); err != nil {
			return nil, "", err
		}
		docs = append(docs, doc)
	}

	nextCursor := ""
	if len(docs) > 0 {
		nextCursor = collection + ":" + docs[len(docs)-1].GetID()
	}
	return docs, nextCursor, nil
}

// FindOne runs Find with limit 1, returning the first row or an empty
// (falsy) document when none match.
func (e *Engine) FindOne(ctx context.Context, collection string, queries []query.Query) (domain.Document, error) {
	docs, _, err := e.Find(ctx, collection, append(queries, query.Limit(1)))
	if err != nil {
		return domain.Document{}, err
	}
	if len(docs) == 0 {
		return domain.Document{}, nil
	}
	return docs[0], nil
}

// Count delegates to the adapter after normalizing filter queries. max=0
// means unbounded.
func (e *Engine) Count(ctx context.Context, collection string, queries []query.Query, max int) (int, error) {
	col, err := e.CollectionByName(ctx, collection)
	if err != nil {
		return 0, err
	}
	grouped := query.GroupByType(queries)
	normalized := e.normalizer.Normalize(col, grouped.Filters)
	filters := toAdapterFilters(normalized)
	return e.adapter.Count(ctx, collection, filters, max)
}

// Sum delegates to the adapter after normalizing filter queries. max=0
// means unbounded.
func (e *Engine) Sum(ctx context.Context, collection, attribute string, queries []query.Query, max int) (float64, error) {
	col, err := e.CollectionByName(ctx, collection)
	if err != nil {
		return 0, err
	}
	grouped := query.GroupByType(queries)
	normalized := e.normalizer.Normalize(col, grouped.Filters)
	filters := toAdapterFilters(normalized)
	return e.adapter.Sum(ctx, collection, attribute, filters, max)
}

func toAdapterFilters(queries []query.Query) []adapter.Row {
	filters := make([]adapter.Row, 0, len(queries))
	for _, q := range queries {
		if len(q.GetValues()) == 0 {
			continue
		}
		filters = append(filters, adapter.Row{q.GetAttribute(): q.GetValues()[0]})
	}
	return filters
}
