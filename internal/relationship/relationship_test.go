// Exercised as an external test package: the scenarios here need a live
// Engine re-entering the Resolver, and Engine imports relationship, so an
// internal (package relationship) test file would create an import cycle.
package relationship_test

import (
	"context"
	"testing"

	"github.com/kailas-cloud/docbase/internal/adapter/memory"
	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/engine"
	"github.com/kailas-cloud/docbase/internal/schemamgr"
)

func newTestEngine(t *testing.T) (*engine.Engine, *schemamgr.Manager) {
	t.Helper()
	store := memory.New()
	identity := domain.NewStaticIdentity(domain.RoleAny)
	eng := engine.New(store, store, identity, "test")
	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return eng, schemamgr.New(store, eng, eng.Events())
}

func anyPerms() map[string][]string {
	return map[string][]string{
		"read": {domain.RoleAny}, "update": {domain.RoleAny}, "delete": {domain.RoleAny},
	}
}

func TestOneToManyHydration(t *testing.T) {
	eng, mgr := newTestEngine(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "authors", domain.Permissions{Create: []string{domain.RoleAny}}); err != nil {
		t.Fatalf("create authors: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "authors", domain.Attribute{ID: "name", Type: domain.TypeString, Size: 128}); err != nil {
		t.Fatalf("attr: %v", err)
	}
	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{Create: []string{domain.RoleAny}}); err != nil {
		t.Fatalf("create books: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{ID: "title", Type: domain.TypeString, Size: 128}); err != nil {
		t.Fatalf("attr: %v", err)
	}

	if _, err := mgr.CreateRelationship(ctx, "authors", "books", domain.Attribute{
		ID:   "books",
		Type: domain.TypeRelationship,
		Array: true,
		Relationship: &domain.RelationshipOptions{
			RelationType: domain.RelationOneToMany, TwoWay: true, TwoWayID: "author",
		},
	}); err != nil {
		t.Fatalf("create relationship: %v", err)
	}

	author, err := eng.CreateDocument(ctx, "authors", domain.NewDocument().
		Set("name", "Frank Herbert").Set(domain.FieldPermissions, anyPerms()))
	if err != nil {
		t.Fatalf("create author: %v", err)
	}

	if _, err := eng.CreateDocument(ctx, "books", domain.NewDocument().
		Set("title", "Dune").Set("author", author.GetID()).Set(domain.FieldPermissions, anyPerms())); err != nil {
		t.Fatalf("create book: %v", err)
	}

	got, err := eng.GetDocument(ctx, "authors", author.GetID(), nil)
	if err != nil {
		t.Fatalf("get author: %v", err)
	}
	books, ok := got.Get("books")
	if !ok {
		t.Fatal("expected hydrated books attribute")
	}
	list, ok := books.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("books = %#v, want a one-element slice", books)
	}
}

func TestCycleBreakingCapsRecursionDepth(t *testing.T) {
	eng, mgr := newTestEngine(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "nodes", domain.Permissions{Create: []string{domain.RoleAny}}); err != nil {
		t.Fatalf("create nodes: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "nodes", domain.Attribute{ID: "label", Type: domain.TypeString, Size: 64}); err != nil {
		t.Fatalf("attr: %v", err)
	}
	if _, err := mgr.CreateRelationship(ctx, "nodes", "nodes", domain.Attribute{
		ID:   "next",
		Type: domain.TypeRelationship,
		Relationship: &domain.RelationshipOptions{
			RelationType: domain.RelationOneToOne, TwoWay: true, TwoWayID: "prev",
		},
	}); err != nil {
		t.Fatalf("create relationship: %v", err)
	}

	a, err := eng.CreateDocument(ctx, "nodes", domain.NewDocument().Set("label", "a").Set(domain.FieldPermissions, anyPerms()))
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := eng.CreateDocument(ctx, "nodes", domain.NewDocument().
		Set("label", "b").Set("next", a.GetID()).Set(domain.FieldPermissions, anyPerms()))
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if _, err := eng.UpdateDocument(ctx, "nodes", a.GetID(), domain.NewDocument().Set("next", b.GetID())); err != nil {
		t.Fatalf("link a->b: %v", err)
	}

	// a.next -> b, b.next -> a: reading a must terminate instead of
	// recursing forever through the mutual oneToOne cycle.
	got, err := eng.GetDocument(ctx, "nodes", a.GetID(), nil)
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if got.IsEmpty() {
		t.Fatal("expected a document")
	}
}
