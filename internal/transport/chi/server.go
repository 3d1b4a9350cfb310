// Package chi exposes the Document Engine and Schema Manager over a
// hand-routed chi REST API, grounded on the teacher's chi-based transport
// (route grouping, a shared writeError helper, a sentinel-to-status error
// table) adapted away from its oapi-codegen-generated interface to plain
// handlers against SPEC_FULL.md's collection/attribute/index/relationship/
// document operations.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/domain/query"
	"github.com/kailas-cloud/docbase/internal/engine"
	"github.com/kailas-cloud/docbase/internal/metrics"
	"github.com/kailas-cloud/docbase/internal/schemamgr"
)

// Server wires the Document Engine and Schema Manager onto HTTP handlers.
// The engine documents itself as a single logical actor issuing operations
// sequentially; Server honors that by serializing every request behind
// callMu and updating identity just before each call.
type Server struct {
	engine   *engine.Engine
	schema   *schemamgr.Manager
	identity *RequestIdentity
	logger   *zap.Logger

	callMu sync.Mutex
}

// NewServer builds a Server against eng/mgr, with identity set per request
// by BearerAuthMiddleware's resolved roles.
func NewServer(eng *engine.Engine, mgr *schemamgr.Manager, identity *RequestIdentity, logger *zap.Logger) *Server {
	return &Server{engine: eng, schema: mgr, identity: identity, logger: logger}
}

// Routes builds the chi router: auth middleware, metrics instrumentation,
// health/metrics endpoints, and the collection/attribute/index/
// relationship/document routes.
func (s *Server) Routes(authTokens map[string][]string) http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(authTokens))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/collections", func(r chi.Router) {
		r.Post("/", s.handleCreateCollection)
		r.Get("/", s.handleListCollections)
		r.Delete("/{collection}", s.handleDeleteCollection)

		r.Post("/{collection}/attributes", s.handleCreateAttribute)
		r.Delete("/{collection}/attributes/{attrID}", s.handleDeleteAttribute)

		r.Post("/{collection}/indexes", s.handleCreateIndex)
		r.Delete("/{collection}/indexes/{indexID}", s.handleDeleteIndex)

		r.Post("/{collection}/relationships", s.handleCreateRelationship)

		r.Post("/{collection}/documents", s.handleCreateDocument)
		r.Get("/{collection}/documents", s.handleFind)
		r.Get("/{collection}/documents/{id}", s.handleGetDocument)
		r.Patch("/{collection}/documents/{id}", s.handleUpdateDocument)
		r.Delete("/{collection}/documents/{id}", s.handleDeleteDocument)
		r.Post("/{collection}/documents/{id}/increase", s.handleIncrease)
		r.Post("/{collection}/documents/{id}/decrease", s.handleDecrease)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Bootstrap(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withIdentity serializes access to engine/schemamgr for the dynamic
// extent of f, having first set the request's resolved roles.
func (s *Server) withIdentity(r *http.Request, f func() error) error {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	s.identity.Set(rolesFromContext(r.Context()))
	return f()
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string            `json:"name"`
		Permissions domain.Permissions `json:"permissions"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	var col domain.Collection
	err := s.withIdentity(r, func() error {
		var cerr error
		col, cerr = s.schema.CreateCollection(r.Context(), body.Name, body.Permissions)
		return cerr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	var cols []domain.Collection
	err := s.withIdentity(r, func() error {
		var lerr error
		cols, lerr = s.schema.ListCollections(r.Context())
		return lerr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	err := s.withIdentity(r, func() error { return s.schema.DeleteCollection(r.Context(), name) })
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateAttribute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	var attr domain.Attribute
	if !decodeBody(w, r, &attr) {
		return
	}
	var created domain.Attribute
	err := s.withIdentity(r, func() error {
		var cerr error
		created, cerr = s.schema.CreateAttribute(r.Context(), name, attr)
		return cerr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteAttribute(w http.ResponseWriter, r *http.Request) {
	name, attrID := chi.URLParam(r, "collection"), chi.URLParam(r, "attrID")
	err := s.withIdentity(r, func() error { return s.schema.DeleteAttribute(r.Context(), name, attrID) })
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	var idx domain.Index
	if !decodeBody(w, r, &idx) {
		return
	}
	var created domain.Index
	err := s.withIdentity(r, func() error {
		var cerr error
		created, cerr = s.schema.CreateIndex(r.Context(), name, idx)
		return cerr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	name, indexID := chi.URLParam(r, "collection"), chi.URLParam(r, "indexID")
	err := s.withIdentity(r, func() error { return s.schema.DeleteIndex(r.Context(), name, indexID) })
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	parent := chi.URLParam(r, "collection")
	var body struct {
		ChildCollection string           `json:"childCollection"`
		Attribute       domain.Attribute `json:"attribute"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	var created domain.Attribute
	err := s.withIdentity(r, func() error {
		var cerr error
		created, cerr = s.schema.CreateRelationship(r.Context(), parent, body.ChildCollection, body.Attribute)
		return cerr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	var raw map[string]any
	if !decodeBody(w, r, &raw) {
		return
	}
	doc := domain.DocumentFromMap(raw)
	var created domain.Document
	err := s.withIdentity(r, func() error {
		var cerr error
		created, cerr = s.engine.CreateDocument(r.Context(), name, doc)
		return cerr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created.ToMap())
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	name, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	selections := splitCSV(r.URL.Query().Get("select"))
	var doc domain.Document
	err := s.withIdentity(r, func() error {
		var gerr error
		doc, gerr = s.engine.GetDocument(r.Context(), name, id, selections)
		return gerr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if doc.IsEmpty() {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc.ToMap())
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	name, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	var raw map[string]any
	if !decodeBody(w, r, &raw) {
		return
	}
	changes := domain.DocumentFromMap(raw)
	var updated domain.Document
	err := s.withIdentity(r, func() error {
		var uerr error
		updated, uerr = s.engine.UpdateDocument(r.Context(), name, id, changes)
		return uerr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.ToMap())
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	err := s.withIdentity(r, func() error { return s.engine.DeleteDocument(r.Context(), name, id) })
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIncrease(w http.ResponseWriter, r *http.Request) {
	s.handleStep(w, r, true)
}

func (s *Server) handleDecrease(w http.ResponseWriter, r *http.Request) {
	s.handleStep(w, r, false)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, up bool) {
	name, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	var body struct {
		Attribute string   `json:"attribute"`
		Value     float64  `json:"value"`
		Min       *float64 `json:"min"`
		Max       *float64 `json:"max"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	var result float64
	err := s.withIdentity(r, func() error {
		var serr error
		if up {
			result, serr = s.engine.IncreaseDocumentAttribute(r.Context(), name, id, body.Attribute, body.Value, body.Max)
		} else {
			result, serr = s.engine.DecreaseDocumentAttribute(r.Context(), name, id, body.Attribute, body.Value, body.Min)
		}
		return serr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"value": result})
}

// handleFind translates query-string parameters into query.Query criteria:
// equal.<attr>=<value> filters, select (comma-separated), limit, offset,
// orderAsc/orderDesc (attribute names), cursorAfter/cursorBefore.
func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	queries := parseFindQuery(r.URL.Query())

	var docs []domain.Document
	var cursor string
	err := s.withIdentity(r, func() error {
		var ferr error
		docs, cursor, ferr = s.engine.Find(r.Context(), name, queries)
		return ferr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rows := make([]map[string]any, len(docs))
	for i, d := range docs {
		rows[i] = d.ToMap()
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": rows, "cursor": cursor})
}

func parseFindQuery(values map[string][]string) []query.Query {
	var queries []query.Query
	for key, vs := range values {
		v := vs[0]
		switch {
		case strings.HasPrefix(key, "equal."):
			queries = append(queries, query.Equal(strings.TrimPrefix(key, "equal."), v))
		case key == "select":
			for _, attr := range splitCSV(v) {
				queries = append(queries, query.Select(attr))
			}
		case key == "limit":
			if n, err := strconv.Atoi(v); err == nil {
				queries = append(queries, query.Limit(n))
			}
		case key == "offset":
			if n, err := strconv.Atoi(v); err == nil {
				queries = append(queries, query.Offset(n))
			}
		case key == "orderAsc":
			queries = append(queries, query.New(query.MethodOrderAsc, v))
		case key == "orderDesc":
			queries = append(queries, query.New(query.MethodOrderDesc, v))
		case key == "cursorAfter":
			queries = append(queries, query.New(query.MethodCursorAfter, "", v))
		case key == "cursorBefore":
			queries = append(queries, query.New(query.MethodCursorBefore, "", v))
		}
	}
	return queries
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps a domain error-kind sentinel to an HTTP status,
// grounded on the teacher's sentinel-to-status dispatch table.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAuthorization):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLimit):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStructure):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCollectionNotFound), errors.Is(err, domain.ErrAttributeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrGeneric):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
