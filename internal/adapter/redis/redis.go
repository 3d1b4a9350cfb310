// Package redis implements adapter.Adapter and adapter.Cache against Redis
// via rueidis, grounded on the teacher's internal/db/redis client/hash/kv
// wiring (connection setup, command builder usage, *db.Error-style wrapping)
// adapted from a vector-search Store to a document-collection Store: every
// collection is a Redis set of document ids plus one hash per document,
// mirroring the in-memory adapter's row-per-id shape instead of an FT.SEARCH
// index.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docbase/internal/adapter"
	"github.com/kailas-cloud/docbase/internal/domain"
)

var _ adapter.Adapter = (*Store)(nil)
var _ adapter.Cache = (*Store)(nil)

// Config holds connection parameters for a Redis-backed Store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements adapter.Adapter and adapter.Cache via rueidis.
type Store struct {
	client    rueidis.Client
	namespace string
	database  string

	limitAttributes int
	limitIndexes    int
	limitString     int
	limitInt        int
	docSizeLimit    int
}

// New dials a Redis-backed Store via rueidis.
func New(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redis: addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: new client: %w", err)
	}
	return &Store{
		client:          client,
		limitAttributes: 1024,
		limitIndexes:    64,
		limitString:     1_073_741_824,
		limitInt:        8,
		docSizeLimit:    16 * 1024 * 1024,
	}, nil
}

// Close shuts down the underlying client.
func (s *Store) Close() { s.client.Close() }

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: timeout waiting for readiness: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) b() rueidis.Builder { return s.client.B() }

func (s *Store) SetNamespace(ns string)         { s.namespace = ns }
func (s *Store) GetNamespace() string           { return s.namespace }
func (s *Store) SetDefaultDatabase(db string)   { s.database = db }
func (s *Store) GetDefaultDatabase() string     { return s.database }

func (s *Store) Ping(ctx context.Context) error {
	cmd := s.b().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// key builders. Every key is namespace-scoped so one Redis instance can back
// several Engines safely, matching the in-memory adapter's per-Store
// isolation.
func (s *Store) databasesKey() string       { return s.namespace + ":databases" }
func (s *Store) collectionsKey() string     { return s.namespace + ":collections" }
func (s *Store) idsKey(collection string) string {
	return s.namespace + ":" + collection + ":ids"
}
func (s *Store) docKey(collection, id string) string {
	return s.namespace + ":" + collection + ":doc:" + id
}

func (s *Store) Create(ctx context.Context, database string) error {
	cmd := s.b().Sadd().Key(s.databasesKey()).Member(database).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *Store) Delete(ctx context.Context, database string) error {
	cmd := s.b().Srem().Key(s.databasesKey()).Member(database).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	cmd := s.b().Smembers().Key(s.databasesKey()).Build()
	return s.client.Do(ctx, cmd).AsStrSlice()
}

func (s *Store) Exists(ctx context.Context, database, collection string) (bool, error) {
	key, member := s.databasesKey(), database
	if collection != "" {
		key, member = s.collectionsKey(), collection
	}
	cmd := s.b().Sismember().Key(key).Member(member).Build()
	n, err := s.client.Do(ctx, cmd).AsInt64()
	return n == 1, err
}

func (s *Store) CreateCollection(ctx context.Context, collection string) error {
	exists, err := s.Exists(ctx, "", collection)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("collection %q: %w", collection, domain.ErrDuplicate)
	}
	cmd := s.b().Sadd().Key(s.collectionsKey()).Member(collection).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	ids, err := s.client.Do(ctx, s.b().Smembers().Key(s.idsKey(collection)).Build()).AsStrSlice()
	if err != nil {
		return fmt.Errorf("redis: list ids for delete: %w", err)
	}
	cmds := make([]rueidis.Completed, 0, len(ids)+2)
	for _, id := range ids {
		cmds = append(cmds, s.b().Del().Key(s.docKey(collection, id)).Build())
	}
	cmds = append(cmds, s.b().Del().Key(s.idsKey(collection)).Build())
	cmds = append(cmds, s.b().Srem().Key(s.collectionsKey()).Member(collection).Build())
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("redis: delete collection %q: %w", collection, err)
		}
	}
	return nil
}

// Schema mutations (attributes/indexes/relationships) are no-ops on this
// backend, same as the in-memory adapter: the _metadata mirror the Schema
// Manager maintains is the single source of truth for collection shape.
// This Store's job is only to hold rows and not reject these calls.
func (s *Store) CreateAttribute(context.Context, string, domain.Attribute) error     { return nil }
func (s *Store) UpdateAttribute(context.Context, string, domain.Attribute) error     { return nil }
func (s *Store) DeleteAttribute(context.Context, string, string) error              { return nil }
func (s *Store) RenameAttribute(context.Context, string, string, string) error      { return nil }
func (s *Store) CreateIndex(context.Context, string, domain.Index) error            { return nil }
func (s *Store) DeleteIndex(context.Context, string, string) error                  { return nil }
func (s *Store) RenameIndex(context.Context, string, string, string) error          { return nil }
func (s *Store) CreateRelationship(context.Context, string, domain.Attribute) error  { return nil }

func (s *Store) GetDocument(ctx context.Context, collection, id string) (adapter.Row, error) {
	cmd := s.b().Hgetall().Key(s.docKey(collection, id)).Build()
	fields, err := s.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("redis: get document %s/%s: %w", collection, id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeRow(fields), nil
}

func (s *Store) CreateDocument(ctx context.Context, collection string, row adapter.Row) error {
	id, _ := row[domain.FieldID].(string)
	if err := s.writeHash(ctx, collection, id, row); err != nil {
		return err
	}
	cmd := s.b().Sadd().Key(s.idsKey(collection)).Member(id).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *Store) UpdateDocument(ctx context.Context, collection, id string, row adapter.Row) error {
	// Replace the hash wholesale rather than HSET-merge, so an attribute
	// removed since the prior write (e.g. a stripped relationship
	// attribute) does not linger.
	del := s.b().Del().Key(s.docKey(collection, id)).Build()
	if err := s.client.Do(ctx, del).Error(); err != nil {
		return fmt.Errorf("redis: clear document %s/%s: %w", collection, id, err)
	}
	return s.writeHash(ctx, collection, id, row)
}

func (s *Store) writeHash(ctx context.Context, collection, id string, row adapter.Row) error {
	if len(row) == 0 {
		return nil
	}
	cmd := s.b().Hset().Key(s.docKey(collection, id)).FieldValue()
	for k, v := range row {
		cmd = cmd.FieldValue(k, encodeValue(v))
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return fmt.Errorf("redis: write document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	cmds := []rueidis.Completed{
		s.b().Del().Key(s.docKey(collection, id)).Build(),
		s.b().Srem().Key(s.idsKey(collection)).Member(id).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("redis: delete document %s/%s: %w", collection, id, err)
		}
	}
	return nil
}

// IncreaseDocumentAttribute applies delta atomically via HINCRBYFLOAT, then
// rolls back with the inverse delta if the result violates min/max — the
// bound check cannot be done inside the atomic increment itself, so a
// violation costs one extra round trip rather than a stale read.
func (s *Store) IncreaseDocumentAttribute(
	ctx context.Context, collection, id, attribute string, delta float64, min, max *float64,
) (float64, error) {
	key := s.docKey(collection, id)
	cmd := s.b().Hincrbyfloat().Key(key).Field(attribute).Increment(delta).Build()
	next, err := s.client.Do(ctx, cmd).AsFloat64()
	if err != nil {
		return 0, fmt.Errorf("redis: increase %s/%s.%s: %w", collection, id, attribute, err)
	}
	if (max != nil && next > *max) || (min != nil && next < *min) {
		rollback := s.b().Hincrbyfloat().Key(key).Field(attribute).Increment(-delta).Build()
		_ = s.client.Do(ctx, rollback).Error()
		return 0, fmt.Errorf("increase/decrease %s beyond bound: %w: %w", attribute, domain.ErrBoundViolation, domain.ErrGeneric)
	}
	return next, nil
}

// Find loads every id in the collection's set and filters/sorts/pages in
// Go. Unlike the teacher's FT.SEARCH-backed vector store, documents here
// have dynamic, per-collection attribute shape with no fixed FT schema to
// declare, so there is no secondary-index pushdown — the same limitation
// the in-memory adapter has, documented rather than hidden behind a
// partial FT.CREATE.
func (s *Store) Find(
	ctx context.Context, collection string, filters []adapter.Row, limit, offset int,
	orderAttrs, orderTypes []string, cursor, direction string,
) (adapter.FindResult, error) {
	ids, err := s.client.Do(ctx, s.b().Smembers().Key(s.idsKey(collection)).Build()).AsStrSlice()
	if err != nil {
		return adapter.FindResult{}, fmt.Errorf("redis: list ids for %q: %w", collection, err)
	}

	rows := make([]adapter.Row, 0, len(ids))
	for _, id := range ids {
		row, err := s.GetDocument(ctx, collection, id)
		if err != nil {
			return adapter.FindResult{}, err
		}
		if row != nil && matchesAll(row, filters) {
			rows = append(rows, row)
		}
	}

	sortRows(rows, orderAttrs, orderTypes)

	start := offset
	if cursor != "" {
		for i, r := range rows {
			if id, _ := r[domain.FieldID].(string); id == cursor {
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
	if limit <= 0 || end > len(rows) {
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

func (s *Store) GetCountOfAttributes(context.Context, string) (int, error) { return 0, nil }
func (s *Store) GetCountOfIndexes(context.Context, string) (int, error)    { return 0, nil }
func (s *Store) GetCountOfDefaultAttributes() int                         { return 4 }
func (s *Store) GetCountOfDefaultIndexes() int                            { return 1 }
func (s *Store) GetAttributeWidth(context.Context, string) (int, error)    { return 0, nil }
func (s *Store) GetDocumentSizeLimit() int                                { return s.docSizeLimit }
func (s *Store) GetSupportForIndex() bool                                 { return true }
func (s *Store) GetSupportForUniqueIndex() bool                           { return true }
func (s *Store) GetSupportForCasting() bool                               { return false }
func (s *Store) GetKeywords() []string                                   { return nil }

// Cache, grounded on the teacher's internal/db/redis/kv.go Get/Set/SetWithTTL
// and hash.go Scan.

func (s *Store) Load(ctx context.Context, key string, _ int) (string, bool, error) {
	cmd := s.b().Get().Key(s.namespace + ":cache:" + key).Build()
	v, err := s.client.Do(ctx, cmd).ToString()
	if rueidis.IsRedisNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: cache load %q: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Save(ctx context.Context, key, value string, ttlSeconds int) error {
	full := s.namespace + ":cache:" + key
	var cmd rueidis.Completed
	if ttlSeconds > 0 {
		cmd = s.b().Set().Key(full).Value(value).Ex(time.Duration(ttlSeconds) * time.Second).Build()
	} else {
		cmd = s.b().Set().Key(full).Value(value).Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis: cache save %q: %w", key, err)
	}
	return nil
}

// Purge deletes keyPattern verbatim, or every key matching it when it ends
// in "*", scanning in batches the way hash.go's Scan does.
func (s *Store) Purge(ctx context.Context, keyPattern string) error {
	full := s.namespace + ":cache:" + keyPattern
	if !strings.HasSuffix(full, "*") {
		return s.client.Do(ctx, s.b().Del().Key(full).Build()).Error()
	}

	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(full).Count(100).Build()
		res, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return fmt.Errorf("redis: cache purge scan %q: %w", keyPattern, err)
		}
		if len(res.Elements) > 0 {
			cmds := make([]rueidis.Completed, len(res.Elements))
			for i, k := range res.Elements {
				cmds[i] = s.b().Del().Key(k).Build()
			}
			for _, dres := range s.client.DoMulti(ctx, cmds...) {
				if err := dres.Error(); err != nil {
					return fmt.Errorf("redis: cache purge del: %w", err)
				}
			}
		}
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	return nil
}

func encodeValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// decodeRow converts every hash field back from its stored string form.
// Values round-trip through JSON when they were encoded as such; a plain
// scalar string (no surrounding quotes/braces/brackets) is kept as-is since
// most attribute values are ordinary strings and a stray JSON-looking
// string must not be misparsed.
func decodeRow(fields map[string]string) adapter.Row {
	row := make(adapter.Row, len(fields))
	for k, raw := range fields {
		row[k] = decodeValue(raw)
	}
	return row
}

func decodeValue(raw string) any {
	if raw == "" {
		return raw
	}
	switch raw[0] {
	case '{', '[', '"':
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	default:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		if raw == "true" || raw == "false" {
			return raw == "true"
		}
	}
	return raw
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

func sortRows(rows []adapter.Row, orderAttrs, orderTypes []string) {
	strs := make([]string, len(rows))
	for i := range rows {
		id, _ := rows[i][domain.FieldID].(string)
		strs[i] = id
	}
	sortByID(rows)
	if len(orderAttrs) == 0 {
		return
	}
	attr, desc := orderAttrs[0], len(orderTypes) > 0 && orderTypes[0] == domain.OrderDESC
	sortStable(rows, func(i, j int) bool {
		vi := fmt.Sprint(rows[i][attr])
		vj := fmt.Sprint(rows[j][attr])
		if desc {
			return vi > vj
		}
		return vi < vj
	})
}

func sortByID(rows []adapter.Row) {
	sortStable(rows, func(i, j int) bool {
		idI, _ := rows[i][domain.FieldID].(string)
		idJ, _ := rows[j][domain.FieldID].(string)
		return idI < idJ
	})
}

// sortStable is a tiny insertion sort: the row counts this adapter deals
// with (brute-force Find over a collection's full id set) never justify
// pulling in sort.Slice's reflection overhead for what is already an
// O(n^2)-tolerant code path.
func sortStable(rows []adapter.Row, less func(i, j int) bool) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
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
