package schemamgr_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/docbase/internal/adapter/memory"
	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/engine"
	"github.com/kailas-cloud/docbase/internal/schemamgr"
)

func newTestManager(t *testing.T) *schemamgr.Manager {
	t.Helper()
	store := memory.New()
	identity := domain.NewStaticIdentity(domain.RoleAny)
	eng := engine.New(store, store, identity, "test")
	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return schemamgr.New(store, eng, eng.Events())
}

func TestCreateCollectionRejectsDuplicate(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{Create: []string{domain.RoleAny}}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{Create: []string{domain.RoleAny}}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateAttributeRejectsDuplicateID(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{ID: "title", Type: domain.TypeString, Size: 128}); err != nil {
		t.Fatalf("create attribute: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{ID: "title", Type: domain.TypeString, Size: 128}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateAttributeRejectsCaseInsensitiveCollision(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{ID: "Title", Type: domain.TypeString, Size: 128}); err != nil {
		t.Fatalf("create attribute: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{ID: "title", Type: domain.TypeString, Size: 128}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for case-insensitive collision, got %v", err)
	}
}

func TestCreateAttributeRejectsUnknownType(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{ID: "weird", Type: "imaginary"}); !errors.Is(err, domain.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestCreateAttributeRejectsRequiredWithDefault(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	attr := domain.Attribute{ID: "pages", Type: domain.TypeInteger, Size: 4, Required: true, Default: 0}
	if _, err := mgr.CreateAttribute(ctx, "books", attr); err == nil {
		t.Fatal("expected error for required attribute with a default")
	}
}

func TestCreateAttributeRejectsUnknownFormat(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	attr := domain.Attribute{ID: "isbn", Type: domain.TypeString, Size: 32, Format: "not-a-real-format"}
	if _, err := mgr.CreateAttribute(ctx, "books", attr); !errors.Is(err, domain.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestDeleteAttributeRemovesItFromCollection(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{ID: "title", Type: domain.TypeString, Size: 128}); err != nil {
		t.Fatalf("create attribute: %v", err)
	}
	if err := mgr.DeleteAttribute(ctx, "books", "title"); err != nil {
		t.Fatalf("delete attribute: %v", err)
	}
	cols, err := mgr.ListCollections(ctx)
	if err != nil {
		t.Fatalf("list collections: %v", err)
	}
	for _, c := range cols {
		if c.Name != "books" {
			continue
		}
		if _, exists := c.AttributeByID("title"); exists {
			t.Fatal("title attribute should have been removed")
		}
	}
}

func TestRenameAttributeRewritesIndexReferences(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{ID: "title", Type: domain.TypeString, Size: 128}); err != nil {
		t.Fatalf("create attribute: %v", err)
	}
	if _, err := mgr.CreateIndex(ctx, "books", domain.Index{ID: "idx_title", Type: domain.IndexKey, Attributes: []string{"title"}}); err != nil {
		t.Fatalf("create index: %v", err)
	}
	if err := mgr.RenameAttribute(ctx, "books", "title", "name"); err != nil {
		t.Fatalf("rename attribute: %v", err)
	}
	cols, err := mgr.ListCollections(ctx)
	if err != nil {
		t.Fatalf("list collections: %v", err)
	}
	for _, c := range cols {
		if c.Name != "books" {
			continue
		}
		idx, exists := c.IndexByID("idx_title")
		if !exists {
			t.Fatal("index disappeared")
		}
		if len(idx.Attributes) != 1 || idx.Attributes[0] != "name" {
			t.Fatalf("index attributes = %v, want [name]", idx.Attributes)
		}
	}
}

func TestCreateRelationshipOneToManyArrayFlagsDifferBySide(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "authors", domain.Permissions{}); err != nil {
		t.Fatalf("create authors: %v", err)
	}
	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create books: %v", err)
	}
	if _, err := mgr.CreateRelationship(ctx, "authors", "books", domain.Attribute{
		ID:   "books",
		Type: domain.TypeRelationship,
		Relationship: &domain.RelationshipOptions{
			RelationType: domain.RelationOneToMany, TwoWay: true, TwoWayID: "author",
		},
	}); err != nil {
		t.Fatalf("create relationship: %v", err)
	}

	cols, err := mgr.ListCollections(ctx)
	if err != nil {
		t.Fatalf("list collections: %v", err)
	}
	var authors, books domain.Collection
	for _, c := range cols {
		switch c.Name {
		case "authors":
			authors = c
		case "books":
			books = c
		}
	}

	parentAttr, ok := authors.AttributeByID("books")
	if !ok {
		t.Fatal("authors.books attribute missing")
	}
	if !parentAttr.Array {
		t.Fatal("authors.books (parent side of oneToMany) should be an array attribute")
	}

	childAttr, ok := books.AttributeByID("author")
	if !ok {
		t.Fatal("books.author attribute missing")
	}
	if childAttr.Array {
		t.Fatal("books.author (child side of oneToMany) should NOT be an array attribute")
	}
}

func TestCreateRelationshipManyToManyCreatesJunctionCollection(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{}); err != nil {
		t.Fatalf("create books: %v", err)
	}
	if _, err := mgr.CreateCollection(ctx, "tags", domain.Permissions{}); err != nil {
		t.Fatalf("create tags: %v", err)
	}
	if _, err := mgr.CreateRelationship(ctx, "books", "tags", domain.Attribute{
		ID:   "tags",
		Type: domain.TypeRelationship,
		Relationship: &domain.RelationshipOptions{
			RelationType: domain.RelationManyToMany, TwoWay: true, TwoWayID: "books",
		},
	}); err != nil {
		t.Fatalf("create relationship: %v", err)
	}

	cols, err := mgr.ListCollections(ctx)
	if err != nil {
		t.Fatalf("list collections: %v", err)
	}
	var found bool
	for _, c := range cols {
		if c.Name == "books_tags" {
			found = true
			if _, ok := c.AttributeByID("id"); !ok {
				t.Fatal("junction collection missing id attribute")
			}
			if _, ok := c.AttributeByID("twoWayId"); !ok {
				t.Fatal("junction collection missing twoWayId attribute")
			}
		}
	}
	if !found {
		t.Fatal("expected books_tags junction collection to be created")
	}
}
