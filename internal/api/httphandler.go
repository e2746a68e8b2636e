package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"optcache/internal/types"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// OptionsCache is the part of *cache.Store the API serves.
type OptionsCache interface {
	GetOptions(e types.EntityType, parentID string) []types.Option
	Ensure(ctx context.Context, e types.EntityType, parentID string) (types.CacheEntry, error)
	Entry(e types.EntityType, parentID string) (types.CacheEntry, bool)
	SearchOptions(ctx context.Context, e types.EntityType, search, parentID string) ([]types.Option, error)
	RefreshOptions(ctx context.Context, e types.EntityType, parentID, search string) ([]types.Option, error)
	CreateOption(ctx context.Context, e types.EntityType, name, parentID string) (types.Option, error)
	InvalidateCache(e types.EntityType, parentID string)
	PrefetchAll(ctx context.Context, entities ...types.EntityType) error
}

type Handler struct {
	Cache OptionsCache
}

func NewHandler(c OptionsCache) *Handler {
	return &Handler{Cache: c}
}

type optionsResponse struct {
	Options   []types.Option `json:"options"`
	IsLoading bool           `json:"is_loading"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Fallback  bool           `json:"fallback,omitempty"`
}

type createRequest struct {
	Label    string `json:"label" validate:"required,max=255"`
	ParentID string `json:"parent_id" validate:"max=128"`
}

type prefetchRequest struct {
	Entities []string `json:"entities" validate:"dive,oneof=clients categories items sizes suppliers"`
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/prefetch", h.handlePrefetch)
	r.Route("/options/{entity}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/", h.handleCreate)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/invalidate", h.handleInvalidate)
	})
	return r
}

// entityParam resolves the {entity} segment, answering 404 itself when it is unknown.
func entityParam(w http.ResponseWriter, r *http.Request) (types.EntityType, bool) {
	e, err := types.ParseEntityType(chi.URLParam(r, "entity"))
	if err != nil {
		writeError(w, http.StatusNotFound, types.Message(err))
		return "", false
	}
	return e, true
}

// handleGet serves the cached options. By default it never waits for the backend: a stale entry is
// returned as-is with is_loading set. wait=true blocks until the entry is fresh or the fetch failed.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := entityParam(w, r)
	if !ok {
		return
	}
	parent := r.URL.Query().Get("parent")

	if search := r.URL.Query().Get("search"); search != "" {
		opts, err := h.Cache.SearchOptions(r.Context(), e, search, parent)
		if err != nil {
			writeError(w, statusFor(err), types.Message(err))
			return
		}
		_ = writeJSON(w, http.StatusOK, optionsResponse{Options: nonNil(opts)})
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	var entry types.CacheEntry
	if wait {
		// the failure is already recorded on the entry
		entry, _ = h.Cache.Ensure(r.Context(), e, parent)
	} else {
		h.Cache.GetOptions(e, parent)
		entry, _ = h.Cache.Entry(e, parent)
	}
	_ = writeJSON(w, http.StatusOK, responseOf(entry))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	e, ok := entityParam(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := readJSON(r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opt, err := h.Cache.CreateOption(r.Context(), e, req.Label, req.ParentID)
	if err != nil {
		writeError(w, statusFor(err), types.Message(err))
		return
	}
	_ = writeJSON(w, http.StatusCreated, map[string]any{"option": opt})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	e, ok := entityParam(w, r)
	if !ok {
		return
	}
	parent := r.URL.Query().Get("parent")
	_, err := h.Cache.RefreshOptions(r.Context(), e, parent, "")
	entry, _ := h.Cache.Entry(e, parent)
	if err != nil && len(entry.Data) == 0 {
		writeError(w, statusFor(err), types.Message(err))
		return
	}
	_ = writeJSON(w, http.StatusOK, responseOf(entry))
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	e, ok := entityParam(w, r)
	if !ok {
		return
	}
	h.Cache.InvalidateCache(e, r.URL.Query().Get("parent"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	var req prefetchRequest
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entities := make([]types.EntityType, 0, len(req.Entities))
	for _, name := range req.Entities {
		entities = append(entities, types.EntityType(name))
	}
	if err := h.Cache.PrefetchAll(r.Context(), entities...); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func responseOf(entry types.CacheEntry) optionsResponse {
	return optionsResponse{
		Options:   nonNil(entry.Data),
		IsLoading: entry.IsLoading,
		Error:     entry.Error,
		Timestamp: entry.Timestamp,
		Fallback:  entry.Fallback,
	}
}

func nonNil(opts []types.Option) []types.Option {
	if opts == nil {
		return []types.Option{}
	}
	return opts
}

// statusClientClosedRequest is reported when the caller went away before the backend answered.
const statusClientClosedRequest = 499

// statusFor maps cache and gateway errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, types.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrBackend):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func readJSON(r *http.Request, v any) error {
	defer func() {
		_ = r.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return errors.New("read error")
	}
	if len(body) == 0 {
		return io.EOF
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	if err := writeJSON(w, code, map[string]string{"error": msg}); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": chimiddleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
