package cache_test

import (
	"context"
	"testing"

	"github.com/kailas-cloud/docbase/internal/adapter/memory"
	"github.com/kailas-cloud/docbase/internal/cache"
)

func TestKeyIsStableAcrossSelectionOrder(t *testing.T) {
	l := cache.New(memory.New(), "test", 60)
	a := l.Key("books", "doc1", []string{"title", "pages"})
	b := l.Key("books", "doc1", []string{"pages", "title"})
	if a != b {
		t.Fatalf("keys differ for reordered selections: %q vs %q", a, b)
	}
}

func TestKeyUsesWildcardForEmptySelection(t *testing.T) {
	l := cache.New(memory.New(), "test", 60)
	if got := l.Key("books", "doc1", nil); got != "cache-test:books:doc1:*" {
		t.Fatalf("key = %q, want wildcard suffix", got)
	}
}

func TestLoadMissThenSaveThenHit(t *testing.T) {
	l := cache.New(memory.New(), "test", 60)
	ctx := context.Background()
	key := l.Key("books", "doc1", nil)

	if _, ok, err := l.Load(ctx, key); err != nil || ok {
		t.Fatalf("expected a miss, got ok=%v err=%v", ok, err)
	}
	if err := l.Save(ctx, key, `{"title":"Dune"}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	val, ok, err := l.Load(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected a hit, got ok=%v err=%v", ok, err)
	}
	if val != `{"title":"Dune"}` {
		t.Fatalf("val = %q", val)
	}
}

func TestPurgeDocumentRemovesEveryKeyInTheFamily(t *testing.T) {
	l := cache.New(memory.New(), "test", 60)
	ctx := context.Background()

	wildcardKey := l.Key("books", "doc1", nil)
	selectedKey := l.Key("books", "doc1", []string{"title"})
	if err := l.Save(ctx, wildcardKey, "a"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := l.Save(ctx, selectedKey, "b"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := l.PurgeDocument(ctx, "books", "doc1"); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if _, ok, _ := l.Load(ctx, wildcardKey); ok {
		t.Fatal("expected wildcard key to be purged")
	}
	if _, ok, _ := l.Load(ctx, selectedKey); ok {
		t.Fatal("expected selection-scoped key to be purged")
	}
}

func TestPurgeCollectionLeavesOtherCollectionsIntact(t *testing.T) {
	l := cache.New(memory.New(), "test", 60)
	ctx := context.Background()

	booksKey := l.Key("books", "doc1", nil)
	authorsKey := l.Key("authors", "doc1", nil)
	if err := l.Save(ctx, booksKey, "a"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := l.Save(ctx, authorsKey, "b"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := l.PurgeCollection(ctx, "books"); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if _, ok, _ := l.Load(ctx, booksKey); ok {
		t.Fatal("expected books entry to be purged")
	}
	if _, ok, _ := l.Load(ctx, authorsKey); !ok {
		t.Fatal("expected authors entry to survive a books-scoped purge")
	}
}
