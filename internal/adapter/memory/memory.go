// Package memory is a dependency-free Adapter + Cache implementation used
// by the engine's own test suite, mirroring the narrow-interface-facade
// shape of the storage Store this stack otherwise backs with Redis.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/kailas-cloud/docbase/internal/adapter"
	"github.com/kailas-cloud/docbase/internal/domain"
)

// Store is an in-memory Adapter and Cache. Zero value is not usable; call
// New. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	namespace string
	database  string
	databases map[string]struct{}
	docs      map[string]map[string]adapter.Row // collection -> id -> row
	cache     map[string]string

	limitAttributes int
	limitIndexes    int
	limitString     int
	limitInt        int
	docSizeLimit    int
}

// New builds a Store with generous default adapter capability limits.
func New() *Store {
	return &Store{
		databases:       map[string]struct{}{},
		docs:            map[string]map[string]adapter.Row{},
		cache:           map[string]string{},
		limitAttributes: 1024,
		limitIndexes:    64,
		limitString:     1_073_741_824,
		limitInt:        8,
		docSizeLimit:    16 * 1024 * 1024,
	}
}

func (s *Store) SetNamespace(ns string) { s.mu.Lock(); defer s.mu.Unlock(); s.namespace = ns }
func (s *Store) GetNamespace() string   { s.mu.RLock(); defer s.mu.RUnlock(); return s.namespace }
func (s *Store) SetDefaultDatabase(db string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.database = db
}
func (s *Store) GetDefaultDatabase() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.database }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Create(_ context.Context, database string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases[database] = struct{}{}
	return nil
}

func (s *Store) Delete(_ context.Context, database string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.databases, database)
	return nil
}

func (s *Store) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.databases))
	for db := range s.databases {
		out = append(out, db)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Exists(_ context.Context, database, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if collection == "" {
		_, ok := s.databases[database]
		return ok, nil
	}
	_, ok := s.docs[collection]
	return ok, nil
}

func (s *Store) CreateCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[collection]; ok {
		return fmt.Errorf("collection %q: %w", collection, domain.ErrDuplicate)
	}
	s.docs[collection] = map[string]adapter.Row{}
	return nil
}

func (s *Store) DeleteCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, collection)
	return nil
}

// Schema mutation operations (attributes/indexes/relationships) are no-ops
// on this backend: it has no physical columns, only rows keyed by id. The
// Schema Manager's _metadata mirror is the single source of truth for
// shape; this adapter's job is only to not reject any of these calls.
func (s *Store) CreateAttribute(context.Context, string, domain.Attribute) error    { return nil }
func (s *Store) UpdateAttribute(context.Context, string, domain.Attribute) error    { return nil }
func (s *Store) DeleteAttribute(context.Context, string, string) error             { return nil }
func (s *Store) RenameAttribute(context.Context, string, string, string) error     { return nil }
func (s *Store) CreateIndex(context.Context, string, domain.Index) error           { return nil }
func (s *Store) DeleteIndex(context.Context, string, string) error                 { return nil }
func (s *Store) RenameIndex(context.Context, string, string, string) error         { return nil }
func (s *Store) CreateRelationship(context.Context, string, domain.Attribute) error { return nil }

func (s *Store) GetDocument(_ context.Context, collection, id string) (adapter.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.docs[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w: %w", collection, domain.ErrCollectionNotFound, domain.ErrGeneric)
	}
	row, ok := coll[id]
	if !ok {
		return nil, nil
	}
	return cloneRow(row), nil
}

func (s *Store) CreateDocument(_ context.Context, collection string, row adapter.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.docs[collection]
	if !ok {
		coll = map[string]adapter.Row{}
		s.docs[collection] = coll
	}
	id, _ := row[domain.FieldID].(string)
	coll[id] = cloneRow(row)
	return nil
}

func (s *Store) UpdateDocument(_ context.Context, collection, id string, row adapter.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.docs[collection]
	if !ok {
		return fmt.Errorf("collection %q: %w: %w", collection, domain.ErrCollectionNotFound, domain.ErrGeneric)
	}
	coll[id] = cloneRow(row)
	return nil
}

func (s *Store) DeleteDocument(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if coll, ok := s.docs[collection]; ok {
		delete(coll, id)
	}
	return nil
}

func (s *Store) IncreaseDocumentAttribute(
	_ context.Context, collection, id, attribute string, delta float64, min, max *float64,
) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.docs[collection]
	if !ok {
		return 0, fmt.Errorf("collection %q: %w: %w", collection, domain.ErrCollectionNotFound, domain.ErrGeneric)
	}
	row, ok := coll[id]
	if !ok {
		return 0, fmt.Errorf("document %q: %w", id, domain.ErrGeneric)
	}
	current := toFloat(row[attribute])
	next := current + delta
	if max != nil && next > *max {
		return 0, fmt.Errorf("increase %s beyond %v: %w: %w", attribute, *max, domain.ErrBoundViolation, domain.ErrGeneric)
	}
	if min != nil && next < *min {
		return 0, fmt.Errorf("decrease %s below %v: %w: %w", attribute, *min, domain.ErrBoundViolation, domain.ErrGeneric)
	}
	row[attribute] = next
	return next, nil
}

func (s *Store) Find(
	_ context.Context, collection string, filters []adapter.Row, limit, offset int,
	orderAttrs, orderTypes []string, cursor, direction string,
) (adapter.FindResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.docs[collection]
	rows := make([]adapter.Row, 0, len(coll))
	for _, row := range coll {
		if matchesAll(row, filters) {
			rows = append(rows, cloneRow(row))
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		idI, _ := rows[i][domain.FieldID].(string)
		idJ, _ := rows[j][domain.FieldID].(string)
		return idI < idJ
	})
	if len(orderAttrs) > 0 {
		attr, desc := orderAttrs[0], len(orderTypes) > 0 && orderTypes[0] == domain.OrderDESC
		sort.SliceStable(rows, func(i, j int) bool {
			vi := fmt.Sprint(rows[i][attr])
			vj := fmt.Sprint(rows[j][attr])
			if desc {
				return vi > vj
			}
			return vi < vj
		})
	}

	start := offset
	if cursor != "" {
		for i, r := range rows {
			id, _ := r[domain.FieldID].(string)
			if id == cursor {
				if direction == domain.CursorBefore {
					start = i - limit
				} else {
					start = i + 1
				}
				break
			}
		}
	}
	if start < 0 {
		start = 0
	}
	if start > len(rows) {
		start = len(rows)
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return adapter.FindResult{Rows: rows[start:end], Total: len(rows)}, nil
}

func (s *Store) Count(ctx context.Context, collection string, filters []adapter.Row, max int) (int, error) {
	res, err := s.Find(ctx, collection, filters, 1<<30, 0, nil, nil, "", domain.CursorAfter)
	if err != nil {
		return 0, err
	}
	n := len(res.Rows)
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

func (s *Store) Sum(ctx context.Context, collection, attribute string, filters []adapter.Row, max int) (float64, error) {
	res, err := s.Find(ctx, collection, filters, 1<<30, 0, nil, nil, "", domain.CursorAfter)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, row := range res.Rows {
		if max > 0 && i >= max {
			break
		}
		sum += toFloat(row[attribute])
	}
	return sum, nil
}

// Capabilities.
func (s *Store) GetLimitForAttributes() int { return s.limitAttributes }
func (s *Store) GetLimitForIndexes() int    { return s.limitIndexes }
func (s *Store) GetLimitForString() int     { return s.limitString }
func (s *Store) GetLimitForInt() int        { return s.limitInt }

func (s *Store) GetCountOfAttributes(_ context.Context, collection string) (int, error) {
	return 0, nil
}
func (s *Store) GetCountOfIndexes(_ context.Context, collection string) (int, error) { return 0, nil }
func (s *Store) GetCountOfDefaultAttributes() int                                    { return 4 }
func (s *Store) GetCountOfDefaultIndexes() int                                       { return 1 }
func (s *Store) GetAttributeWidth(_ context.Context, collection string) (int, error)  { return 0, nil }
func (s *Store) GetDocumentSizeLimit() int                                           { return s.docSizeLimit }
func (s *Store) GetSupportForIndex() bool                                            { return true }
func (s *Store) GetSupportForUniqueIndex() bool                                       { return true }
func (s *Store) GetSupportForCasting() bool                                           { return false }
func (s *Store) GetKeywords() []string                                               { return nil }

// Cache.
func (s *Store) Load(_ context.Context, key string, _ int) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok, nil
}

func (s *Store) Save(_ context.Context, key string, value string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = value
	return nil
}

func (s *Store) Purge(_ context.Context, keyPattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.HasSuffix(keyPattern, "*") {
		delete(s.cache, keyPattern)
		return nil
	}
	prefix := strings.TrimSuffix(keyPattern, "*")
	for k := range s.cache {
		if matched, _ := path.Match(keyPattern, k); matched || strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	return nil
}

func cloneRow(row adapter.Row) adapter.Row {
	out := make(adapter.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func matchesAll(row adapter.Row, filters []adapter.Row) bool {
	for _, f := range filters {
		for k, v := range f {
			if fmt.Sprint(row[k]) != fmt.Sprint(v) {
				return false
			}
		}
	}
	return true
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
