// Package relationship implements the Relationship Resolver (C8):
// materializing related documents on read and persisting relationship
// writes across the four cardinalities, re-entering the Document Engine
// for every related collection it touches.
package relationship

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/domain/query"
)

// Store is the narrow slice of the Document Engine the Resolver re-enters:
// get/find/create/update against arbitrary collections, including related
// ones. Engine implements this directly.
type Store interface {
	GetDocument(ctx context.Context, collection, id string, selections []string) (domain.Document, error)
	Find(ctx context.Context, collection string, queries []query.Query) ([]domain.Document, string, error)
	CreateDocument(ctx context.Context, collection string, doc domain.Document) (domain.Document, error)
	UpdateDocument(ctx context.Context, collection, id string, doc domain.Document) (domain.Document, error)
	CollectionByName(ctx context.Context, name string) (domain.Collection, error)
}

// Resolver hydrates and persists relationship attributes.
type Resolver struct {
	store Store
}

// New builds a Resolver against store. engine.New passes the Engine it is
// building as store, so the Engine re-enters itself through this interface.
func New(store Store) *Resolver {
	return &Resolver{store: store}
}

// ReadContext threads the cycle-breaking visited set through a single
// getDocument call tree — the §9-recommended replacement for the source's
// mutable depth counter. Each (collection, id) pair may be entered twice
// (depth cap 2); a third visit short-circuits, leaving the attribute's
// stored id in place instead of recursing.
type ReadContext struct {
	visited map[string]int
}

// NewReadContext builds an empty ReadContext for one top-level getDocument
// call.
func NewReadContext() *ReadContext {
	return &ReadContext{visited: map[string]int{}}
}

func (rc *ReadContext) enter(collection, id string) (depth int, cycle bool) {
	key := collection + "/" + id
	depth = rc.visited[key]
	if depth >= 2 {
		return depth, true
	}
	rc.visited[key] = depth + 1
	return depth, false
}

// HydrateRead resolves every relationship attribute on doc (a document of
// collection col) per the read table in §4.8.
func (rc *ReadContext) HydrateRead(ctx context.Context, r *Resolver, col domain.Collection, doc domain.Document) (domain.Document, error) {
	out := doc
	for _, attr := range col.Attributes {
		if attr.Type != domain.TypeRelationship || attr.Relationship == nil {
			continue
		}
		hydrated, err := r.hydrateAttribute(ctx, rc, attr, out)
		if err != nil {
			return domain.Document{}, err
		}
		out = hydrated
	}
	return out, nil
}

func (r *Resolver) hydrateAttribute(ctx context.Context, rc *ReadContext, attr domain.Attribute, doc domain.Document) (domain.Document, error) {
	opts := attr.Relationship
	switch opts.RelationType {
	case domain.RelationOneToOne:
		return r.hydrateOneToOne(ctx, rc, attr, doc)
	case domain.RelationOneToMany:
		if opts.Side == domain.SideParent {
			return r.hydrateMany(ctx, rc, attr, doc)
		}
		return r.hydrateChildSingle(ctx, rc, attr, doc)
	case domain.RelationManyToOne:
		if opts.Side == domain.SideChild {
			return r.hydrateMany(ctx, rc, attr, doc)
		}
		return r.hydrateChildSingle(ctx, rc, attr, doc)
	case domain.RelationManyToMany:
		// No hydration at read; traversal through the junction collection
		// is deferred.
		return doc, nil
	default:
		return doc, nil
	}
}

// hydrateOneToOne hydrates by id if the stored value is non-null,
// regardless of side, capping recursion at depth 2 via rc.
func (r *Resolver) hydrateOneToOne(ctx context.Context, rc *ReadContext, attr domain.Attribute, doc domain.Document) (domain.Document, error) {
	v, ok := doc.Get(attr.ID)
	if !ok || v == nil {
		return doc, nil
	}
	id, _ := v.(string)
	if id == "" {
		return doc, nil
	}
	related := attr.Relationship.RelatedCollection
	if _, cycle := rc.enter(related, id); cycle {
		return doc, nil
	}
	relCol, err := r.store.CollectionByName(ctx, related)
	if err != nil {
		return domain.Document{}, err
	}
	child, err := r.store.GetDocument(ctx, related, id, nil)
	if err != nil {
		return domain.Document{}, err
	}
	if child.IsEmpty() {
		return doc, nil
	}
	hydrated, err := rc.HydrateRead(ctx, r, relCol, child)
	if err != nil {
		return domain.Document{}, err
	}
	return doc.Set(attr.ID, hydrated), nil
}

// hydrateMany finds children where child.twoWayId == parent.$id, stripping
// the back-pointer from each child before attaching the list to parent.
func (r *Resolver) hydrateMany(ctx context.Context, rc *ReadContext, attr domain.Attribute, doc domain.Document) (domain.Document, error) {
	opts := attr.Relationship
	related := opts.RelatedCollection
	parentID := doc.GetID()
	if parentID == "" {
		return doc, nil
	}
	backPointer := opts.TwoWayID
	if backPointer == "" {
		backPointer = attr.ID
	}
	relCol, err := r.store.CollectionByName(ctx, related)
	if err != nil {
		return domain.Document{}, err
	}
	children, _, err := r.store.Find(ctx, related, []query.Query{query.Equal(backPointer, parentID)})
	if err != nil {
		return domain.Document{}, err
	}
	out := make([]any, 0, len(children))
	for _, child := range children {
		hydrated, err := rc.HydrateRead(ctx, r, relCol, child)
		if err != nil {
			return domain.Document{}, err
		}
		out = append(out, hydrated.Remove(backPointer))
	}
	return doc.Set(attr.ID, out), nil
}

// hydrateChildSingle implements the child-side oneToMany/manyToOne
// behavior: hydrate by id when twoWay, else drop the attribute entirely.
func (r *Resolver) hydrateChildSingle(ctx context.Context, rc *ReadContext, attr domain.Attribute, doc domain.Document) (domain.Document, error) {
	if !attr.Relationship.TwoWay {
		return doc.Remove(attr.ID), nil
	}
	return r.hydrateOneToOne(ctx, rc, attr, doc)
}

// ResolveWrite extracts every relationship attribute from doc and dispatches
// it per §4.8's write table. A scalar-cardinality attribute (either side of
// oneToOne, the child side of oneToMany, the parent side of manyToOne) *is*
// the foreign key this row carries, so it is resolved to a plain id and
// kept on the returned document. An array-cardinality attribute (the
// parent side of oneToMany, either side of manyToMany) is never stored
// locally — hydration reconstructs it via a Find against the related
// collection's back-pointer, or via the junction collection — so it is
// removed after its per-element side effects are dispatched.
func (r *Resolver) ResolveWrite(ctx context.Context, col domain.Collection, doc domain.Document) (domain.Document, error) {
	out := doc
	for _, attr := range col.Attributes {
		if attr.Type != domain.TypeRelationship || attr.Relationship == nil {
			continue
		}
		v, ok := out.Get(attr.ID)
		if !ok {
			continue
		}
		if attr.Array {
			if err := r.writeAttribute(ctx, col.Name, attr, out.GetID(), v); err != nil {
				return domain.Document{}, err
			}
			out = out.Remove(attr.ID)
			continue
		}
		resolved, err := r.resolveScalar(ctx, attr, v)
		if err != nil {
			return domain.Document{}, err
		}
		out = out.Set(attr.ID, resolved)
	}
	return out, nil
}

// resolveScalar reduces a scalar relationship value — a plain id, or a
// nested document to create/update — to the id string stored as this
// attribute's own value.
func (r *Resolver) resolveScalar(ctx context.Context, attr domain.Attribute, value any) (string, error) {
	opts := attr.Relationship
	switch v := value.(type) {
	case string:
		return v, nil
	case domain.Document:
		id := v.GetID()
		if id == "" {
			created, err := r.store.CreateDocument(ctx, opts.RelatedCollection, v)
			if err != nil {
				return "", err
			}
			return created.GetID(), nil
		}
		existing, err := r.store.GetDocument(ctx, opts.RelatedCollection, id, nil)
		if err != nil {
			return "", err
		}
		if existing.IsEmpty() {
			if _, err := r.store.CreateDocument(ctx, opts.RelatedCollection, v); err != nil {
				return "", err
			}
		} else if !sameDocument(existing, v) {
			if _, err := r.store.UpdateDocument(ctx, opts.RelatedCollection, id, v); err != nil {
				return "", err
			}
		}
		return id, nil
	default:
		return "", fmt.Errorf("relationship %q: unrecognized value shape: %w: %w", attr.ID, domain.ErrRelationshipShape, domain.ErrGeneric)
	}
}

func (r *Resolver) writeAttribute(ctx context.Context, parentCollection string, attr domain.Attribute, parentID string, value any) error {
	if value == nil {
		return nil
	}
	if list, ok := value.([]any); ok {
		for _, el := range list {
			if err := r.writeOne(ctx, parentCollection, attr, parentID, el); err != nil {
				return err
			}
		}
		return nil
	}
	return r.writeOne(ctx, parentCollection, attr, parentID, value)
}

func (r *Resolver) writeOne(ctx context.Context, parentCollection string, attr domain.Attribute, parentID string, value any) error {
	opts := attr.Relationship
	related := opts.RelatedCollection

	switch v := value.(type) {
	case string:
		return r.backpatchChild(ctx, parentCollection, attr, parentID, v)
	case domain.Document:
		id := v.GetID()
		if id == "" {
			created, err := r.store.CreateDocument(ctx, related, v)
			if err != nil {
				return err
			}
			id = created.GetID()
		} else {
			existing, err := r.store.GetDocument(ctx, related, id, nil)
			if err != nil {
				return err
			}
			if existing.IsEmpty() {
				if _, err := r.store.CreateDocument(ctx, related, v); err != nil {
					return err
				}
			} else if !sameDocument(existing, v) {
				if _, err := r.store.UpdateDocument(ctx, related, id, v); err != nil {
					return err
				}
			}
		}
		if opts.RelationType == domain.RelationManyToMany {
			return r.insertJunctionRow(ctx, parentCollection, related, parentID, id)
		}
		return r.backpatchChild(ctx, parentCollection, attr, parentID, id)
	default:
		return fmt.Errorf("relationship %q: unrecognized value shape: %w: %w", attr.ID, domain.ErrRelationshipShape, domain.ErrGeneric)
	}
}

// backpatchChild writes the parent's id onto the child's twoWayId
// attribute, but only for oneToOne(twoWay) and oneToMany relations — the
// cardinalities where the child carries a single back-pointer.
func (r *Resolver) backpatchChild(ctx context.Context, parentCollection string, attr domain.Attribute, parentID, childID string) error {
	opts := attr.Relationship
	if opts.RelationType == domain.RelationManyToMany {
		return r.insertJunctionRow(ctx, parentCollection, opts.RelatedCollection, parentID, childID)
	}
	eligible := (opts.RelationType == domain.RelationOneToOne && opts.TwoWay) || opts.RelationType == domain.RelationOneToMany
	if !eligible {
		return nil
	}
	backPointer := opts.TwoWayID
	if backPointer == "" {
		backPointer = attr.ID
	}
	patch := domain.NewDocument().Set(backPointer, parentID)
	_, err := r.store.UpdateDocument(ctx, opts.RelatedCollection, childID, patch)
	return err
}

// insertJunctionRow writes a row into the manyToMany junction collection,
// named "{parent}_{child}" per the parent side's createRelationship call.
func (r *Resolver) insertJunctionRow(ctx context.Context, parentCollection, childCollection, parentID, childID string) error {
	junction := parentCollection + "_" + childCollection
	row := domain.NewDocument().Set("id", parentID).Set("twoWayId", childID)
	_, err := r.store.CreateDocument(ctx, junction, row)
	return err
}

func sameDocument(a, b domain.Document) bool {
	ak, bk := a.Keys(), b.Keys()
	if len(ak) != len(bk) {
		return false
	}
	for _, k := range ak {
		av, _ := a.Get(k)
		bv, ok := b.Get(k)
		if !ok || fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}
