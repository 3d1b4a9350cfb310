package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/docbase/internal/adapter/memory"
	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/domain/query"
	"github.com/kailas-cloud/docbase/internal/schemamgr"
)

func newTestEngine(t *testing.T, roles ...string) (*Engine, *schemamgr.Manager) {
	t.Helper()
	store := memory.New()
	identity := domain.NewStaticIdentity(roles...)
	eng := New(store, store, identity, "test")
	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	mgr := schemamgr.New(store, eng, eng.Events())
	return eng, mgr
}

// perms builds the raw $permissions shape a document stamps for itself, per
// scenario S1: read/update/delete role-token sets given at create time.
func perms(read, update, del []string) map[string][]string {
	return map[string][]string{"read": read, "update": update, "delete": del}
}

func mustCreateBooksCollection(t *testing.T, mgr *schemamgr.Manager) {
	t.Helper()
	ctx := context.Background()
	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{
		Read: []string{domain.RoleAny}, Create: []string{domain.RoleAny},
	}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{
		ID: "title", Type: domain.TypeString, Size: 256, Required: true,
	}); err != nil {
		t.Fatalf("create attribute: %v", err)
	}
	if _, err := mgr.CreateAttribute(ctx, "books", domain.Attribute{
		ID: "pages", Type: domain.TypeInteger, Size: 4,
	}); err != nil {
		t.Fatalf("create attribute: %v", err)
	}
}

func TestCreateReadRoundTrip(t *testing.T) {
	eng, mgr := newTestEngine(t, domain.RoleAny)
	mustCreateBooksCollection(t, mgr)
	ctx := context.Background()

	doc := domain.NewDocument().Set("title", "Dune").Set("pages", 412).
		Set(domain.FieldPermissions, perms([]string{domain.RoleAny}, []string{domain.RoleAny}, []string{domain.RoleAny}))
	created, err := eng.CreateDocument(ctx, "books", doc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.GetID() == "" {
		t.Fatal("expected a generated id")
	}

	got, err := eng.GetDocument(ctx, "books", created.GetID(), nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsEmpty() {
		t.Fatal("expected a document, got empty")
	}
	title, _ := got.Get("title")
	if title != "Dune" {
		t.Errorf("title = %v, want Dune", title)
	}
	createdAt, _ := got.Get(domain.FieldCreatedAt)
	updatedAt, _ := got.Get(domain.FieldUpdatedAt)
	if createdAt != updatedAt {
		t.Errorf("$createdAt (%v) != $updatedAt (%v) on a fresh document", createdAt, updatedAt)
	}
}

func TestGetDocumentDeniedReadReturnsEmpty(t *testing.T) {
	eng, mgr := newTestEngine(t, "nobody")
	ctx := context.Background()
	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{Create: []string{domain.RoleAny}}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	doc := domain.NewDocument().Set("title", "Dune").
		Set(domain.FieldPermissions, perms([]string{"owners"}, nil, nil))
	created, err := eng.CreateDocument(ctx, "books", doc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := eng.GetDocument(ctx, "books", created.GetID(), nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsEmpty() {
		t.Fatal("expected an empty document for a denied read")
	}
}

func TestUpdateDocumentChecksPriorPermissions(t *testing.T) {
	eng, mgr := newTestEngine(t, "bob")
	ctx := context.Background()
	if _, err := mgr.CreateCollection(ctx, "books", domain.Permissions{Create: []string{domain.RoleAny}}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	doc := domain.NewDocument().Set("title", "Dune").
		Set(domain.FieldPermissions, perms([]string{domain.RoleAny}, []string{"alice"}, nil))
	created, err := eng.CreateDocument(ctx, "books", doc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = eng.UpdateDocument(ctx, "books", created.GetID(), domain.NewDocument().Set("title", "Dune 2"))
	if !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("err = %v, want ErrAuthorization", err)
	}
}

func TestCacheInvalidationOnUpdate(t *testing.T) {
	eng, mgr := newTestEngine(t, domain.RoleAny)
	mustCreateBooksCollection(t, mgr)
	ctx := context.Background()

	doc := domain.NewDocument().Set("title", "Dune").Set("pages", 412).
		Set(domain.FieldPermissions, perms([]string{domain.RoleAny}, []string{domain.RoleAny}, []string{domain.RoleAny}))
	created, err := eng.CreateDocument(ctx, "books", doc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Warm the cache with the pre-update value.
	got, err := eng.GetDocument(ctx, "books", created.GetID(), nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if title, _ := got.Get("title"); title != "Dune" {
		t.Fatalf("title = %v, want Dune", title)
	}

	if _, err := eng.UpdateDocument(ctx, "books", created.GetID(), domain.NewDocument().Set("title", "Dune Messiah")); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = eng.GetDocument(ctx, "books", created.GetID(), nil)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if title, _ := got.Get("title"); title != "Dune Messiah" {
		t.Fatalf("title after update = %v, want Dune Messiah (stale cache entry was not purged)", title)
	}
}

func TestDeleteDocumentRemovesDocumentAndCacheEntry(t *testing.T) {
	eng, mgr := newTestEngine(t, domain.RoleAny)
	mustCreateBooksCollection(t, mgr)
	ctx := context.Background()

	doc := domain.NewDocument().Set("title", "Dune").
		Set(domain.FieldPermissions, perms([]string{domain.RoleAny}, []string{domain.RoleAny}, []string{domain.RoleAny}))
	created, err := eng.CreateDocument(ctx, "books", doc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.GetDocument(ctx, "books", created.GetID(), nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := eng.DeleteDocument(ctx, "books", created.GetID()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := eng.GetDocument(ctx, "books", created.GetID(), nil)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if !got.IsEmpty() {
		t.Fatal("expected empty document after delete")
	}
}

func TestIncreaseDocumentAttributeEnforcesMax(t *testing.T) {
	eng, mgr := newTestEngine(t, domain.RoleAny)
	mustCreateBooksCollection(t, mgr)
	ctx := context.Background()

	doc := domain.NewDocument().Set("title", "Dune").Set("pages", 10).
		Set(domain.FieldPermissions, perms([]string{domain.RoleAny}, []string{domain.RoleAny}, []string{domain.RoleAny}))
	created, err := eng.CreateDocument(ctx, "books", doc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	max := 15.0
	if _, err := eng.IncreaseDocumentAttribute(ctx, "books", created.GetID(), "pages", 3, &max); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if _, err := eng.IncreaseDocumentAttribute(ctx, "books", created.GetID(), "pages", 10, &max); err == nil {
		t.Fatal("expected bound violation")
	}
}

func TestIncreaseDocumentAttributeRejectsNonPositive(t *testing.T) {
	eng, mgr := newTestEngine(t, domain.RoleAny)
	mustCreateBooksCollection(t, mgr)
	ctx := context.Background()
	doc := domain.NewDocument().Set("title", "Dune").
		Set(domain.FieldPermissions, perms([]string{domain.RoleAny}, []string{domain.RoleAny}, []string{domain.RoleAny}))
	created, err := eng.CreateDocument(ctx, "books", doc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.IncreaseDocumentAttribute(ctx, "books", created.GetID(), "pages", 0, nil); !errors.Is(err, domain.ErrNonPositiveDelta) {
		t.Fatalf("err = %v, want ErrNonPositiveDelta", err)
	}
}

func TestFindCursorRejectsForeignCollection(t *testing.T) {
	eng, mgr := newTestEngine(t, domain.RoleAny)
	mustCreateBooksCollection(t, mgr)
	ctx := context.Background()

	_, _, err := eng.Find(ctx, "books", []query.Query{query.New(query.MethodCursorAfter, "", "other:abc")})
	if !errors.Is(err, domain.ErrCursorCollection) {
		t.Fatalf("err = %v, want ErrCursorCollection", err)
	}
}

func TestFindOneReturnsFirstMatch(t *testing.T) {
	eng, mgr := newTestEngine(t, domain.RoleAny)
	mustCreateBooksCollection(t, mgr)
	ctx := context.Background()
	doc := domain.NewDocument().Set("title", "Dune").
		Set(domain.FieldPermissions, perms([]string{domain.RoleAny}, nil, nil))
	if _, err := eng.CreateDocument(ctx, "books", doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := eng.FindOne(ctx, "books", []query.Query{query.Equal("title", "Dune")})
	if err != nil {
		t.Fatalf("findOne: %v", err)
	}
	if got.IsEmpty() {
		t.Fatal("expected a match")
	}
}

func TestCollectionByNameReturnsMetadataBootstrap(t *testing.T) {
	eng, _ := newTestEngine(t, domain.RoleAny)
	col, err := eng.CollectionByName(context.Background(), domain.MetadataCollection)
	if err != nil {
		t.Fatalf("collectionByName: %v", err)
	}
	if col.Name != domain.MetadataCollection {
		t.Errorf("name = %q, want %q", col.Name, domain.MetadataCollection)
	}
	if _, ok := col.AttributeByID("name"); !ok {
		t.Error("expected a name attribute on the bootstrap collection")
	}
}

func TestSelectUnknownAttributeIsRejected(t *testing.T) {
	eng, mgr := newTestEngine(t, domain.RoleAny)
	mustCreateBooksCollection(t, mgr)
	ctx := context.Background()
	doc := domain.NewDocument().Set("title", "Dune").
		Set(domain.FieldPermissions, perms([]string{domain.RoleAny}, nil, nil))
	created, err := eng.CreateDocument(ctx, "books", doc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = eng.GetDocument(ctx, "books", created.GetID(), []string{"nonexistent"})
	if !errors.Is(err, domain.ErrUnknownSelection) {
		t.Fatalf("err = %v, want ErrUnknownSelection", err)
	}
}
