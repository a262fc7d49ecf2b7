package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/electronics-store/internal/cache"
	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/metrics"
	"github.com/safar/electronics-store/internal/models"
	"github.com/safar/electronics-store/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Handler struct {
	db      *sql.DB
	catalog *cache.Catalog
	linker  storage.Linker
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewHandler(db *sql.DB, catalog *cache.Catalog, linker storage.Linker, m *metrics.Metrics, log *zap.Logger) *Handler {
	return &Handler{db: db, catalog: catalog, linker: linker, metrics: m, log: log}
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	return page, pageSize
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, database.InvalidArgument("id", "A valid integer is required.")
	}
	return id, nil
}

// scopedCaller lets a guest prove ownership of past orders by email on
// listing endpoints.
func scopedCaller(r *http.Request) models.Caller {
	caller := callerFrom(r.Context())
	if caller.Identity.IsGuest() {
		if email := r.URL.Query().Get("customer_email"); email != "" {
			caller.Email = email
		}
	}
	return caller
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := database.Ping(r.Context(), h.db); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method_not_allowed",
		"Method \""+r.Method+"\" not allowed.")
}
