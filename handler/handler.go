// Package handler exposes a document store over HTTP and websockets.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevemurr/reactive-docstore/crud"
	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/logging"
	"github.com/stevemurr/reactive-docstore/schema"
	"github.com/stevemurr/reactive-docstore/store"
)

// Settings tune the watch streams.
type Settings struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	// CheckOrigin gates websocket upgrades; nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
}

func DefaultSettings() Settings {
	return Settings{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

type Option func(*Handler)

func WithLogger(l logging.Logger) Option {
	return func(h *Handler) { h.log = l }
}

func WithSettings(s Settings) Option {
	return func(h *Handler) { h.settings = s }
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store    *store.DocumentStore
	schemas  *schema.Registry
	log      logging.Logger
	settings Settings
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(s *store.DocumentStore, opts ...Option) *Handler {
	h := &Handler{
		store:    s,
		schemas:  schema.NewRegistry(s),
		log:      logging.Nop(),
		settings: DefaultSettings(),
		mux:      http.NewServeMux(),
	}
	for _, o := range opts {
		o(h)
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.settings.CheckOrigin}
	if h.upgrader.CheckOrigin == nil {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	// --- Collection endpoints ---
	h.mux.HandleFunc("GET /collections", h.listCollections)
	h.mux.HandleFunc("GET /collections/{collection}/items", h.getAllItems)
	h.mux.HandleFunc("GET /collections/{collection}/items/{key}", h.getItem)
	h.mux.HandleFunc("PUT /collections/{collection}/items/{key}", h.putItem)
	h.mux.HandleFunc("PATCH /collections/{collection}/items/{key}", h.patchItem)
	h.mux.HandleFunc("DELETE /collections/{collection}/items/{key}", h.deleteItem)

	// --- Watch streams (websocket) ---
	h.mux.HandleFunc("GET /collections/{collection}/watch", h.watchCollection)
	h.mux.HandleFunc("GET /collections/{collection}/items/{key}/watch", h.watchItem)

	// --- Schema endpoints ---
	h.mux.HandleFunc("GET /schemas", h.listSchemas)
	h.mux.HandleFunc("GET /schemas/{collection}", h.getSchema)
	h.mux.HandleFunc("PUT /schemas/{collection}", h.putSchema)
	h.mux.HandleFunc("DELETE /schemas/{collection}", h.deleteSchema)
}

// ---------- helpers ----------

// Item is the wire form of one document.
type Item struct {
	ID  string      `json:"id"`
	Doc jsonv.Value `json:"doc"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// fail reports err with the status its kind maps to.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WarnCtx(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	detail := err.Error()
	var e *crud.Error
	if errors.As(err, &e) {
		detail = e.Message
	}
	writeJSON(w, status, map[string]string{"detail": detail, "kind": kindFor(err).String()})
}

// kindFor is the kind reported to clients. Schema violations reach the
// facade through the codec, which files them as Unexpected.
func kindFor(err error) crud.ErrorKind {
	if errors.Is(err, schema.ErrInvalid) {
		return crud.InvalidArgument
	}
	return crud.KindOf(err)
}

func statusFor(err error) int {
	if errors.Is(err, schema.ErrInvalid) {
		return http.StatusUnprocessableEntity
	}
	switch crud.KindOf(err) {
	case crud.InvalidArgument:
		return http.StatusBadRequest
	case crud.NotFound:
		return http.StatusNotFound
	case crud.Conflict:
		return http.StatusConflict
	case crud.Disposed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func readValue(r *http.Request) (jsonv.Value, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return jsonv.Value{}, err
	}
	return jsonv.Parse(data)
}

// docs returns a facade for collection whose writes are validated against
// the collection's schema.
func (h *Handler) docs(ctx context.Context, collection string) *crud.Facade[jsonv.Value] {
	codec := crud.ValueCodec()
	encode := codec.Encode
	codec.Encode = func(v jsonv.Value) (jsonv.Value, error) {
		if err := h.schemas.Check(ctx, collection, v); err != nil {
			return jsonv.Value{}, err
		}
		return encode(v)
	}
	return crud.New(h.store, collection, codec)
}

// writable rejects direct item writes to the schema collection.
func writable(w http.ResponseWriter, collection string) bool {
	if collection == schema.Collection {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("collection %q is managed through /schemas", collection))
		return false
	}
	return true
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Reactive Document Store",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.store.Disposed() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "disposed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"watchers": h.store.Watches().Total(),
	})
}

// ---------- collections and items ----------

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	names := h.store.Collections()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) getAllItems(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ReadAll(r.Context(), r.PathValue("collection"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items := make([]Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, Item{ID: d.ID, Doc: d.Value})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	collection, key := r.PathValue("collection"), r.PathValue("key")
	doc, err := h.docs(r.Context(), collection).Read(r.Context(), key).Get()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Item{ID: key, Doc: doc})
}

func (h *Handler) putItem(w http.ResponseWriter, r *http.Request) {
	collection, key := r.PathValue("collection"), r.PathValue("key")
	if !writable(w, collection) {
		return
	}
	incoming, err := readValue(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	stored, err := h.docs(r.Context(), collection).Write(r.Context(), key, incoming).Get()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Item{ID: key, Doc: stored})
}

func (h *Handler) patchItem(w http.ResponseWriter, r *http.Request) {
	collection, key := r.PathValue("collection"), r.PathValue("key")
	if !writable(w, collection) {
		return
	}
	partial, err := readValue(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	stored, err := h.docs(r.Context(), collection).Patch(r.Context(), key, partial).Get()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Item{ID: key, Doc: stored})
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	collection, key := r.PathValue("collection"), r.PathValue("key")
	if !writable(w, collection) {
		return
	}
	if _, err := h.docs(r.Context(), collection).Delete(r.Context(), key).Get(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "key": key})
}

// ---------- schema endpoints ----------

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.schemas.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas)
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	s, ok, err := h.schemas.Get(r.Context(), collection)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no schema for collection %q", collection))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) putSchema(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	s, err := readValue(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.schemas.Put(r.Context(), collection, s); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) deleteSchema(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	existed, err := h.schemas.Delete(r.Context(), collection)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no schema for collection %q", collection))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "collection": collection})
}
