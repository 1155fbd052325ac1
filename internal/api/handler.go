// Package api provides the HTTP surface of the permission service: the
// decision endpoints Trino's policy agent plugin calls on every query,
// and the administrative API for managing grants and policies.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thaihung110/permission-api/internal/domain"
	"github.com/thaihung110/permission-api/internal/service/catalog"
	"github.com/thaihung110/permission-api/internal/service/security"
)

// Handler serves the decision and administration endpoints.
type Handler struct {
	permissions *security.PermissionService
	grants      *security.GrantService
	rowFilters  *security.RowFilterService
	masks       *security.ColumnMaskService
	resources   *catalog.ResourceService
	store       domain.RelationshipStore

	batchConcurrency int
	logger           *slog.Logger
}

// NewHandler creates a Handler. batchConcurrency bounds the fan-out of
// the batch decision endpoints.
func NewHandler(
	permissions *security.PermissionService,
	grants *security.GrantService,
	rowFilters *security.RowFilterService,
	masks *security.ColumnMaskService,
	resources *catalog.ResourceService,
	store domain.RelationshipStore,
	batchConcurrency int,
	logger *slog.Logger,
) *Handler {
	if batchConcurrency <= 0 {
		batchConcurrency = 8
	}
	return &Handler{
		permissions:      permissions,
		grants:           grants,
		rowFilters:       rowFilters,
		masks:            masks,
		resources:        resources,
		store:            store,
		batchConcurrency: batchConcurrency,
		logger:           logger.With("component", "api"),
	}
}

// Routes mounts all endpoints under /api/v1 plus the health probes.
// adminGuard, when non-nil, wraps the administrative routes only; the
// decision endpoints stay open because Trino authenticates at the
// network layer and asserts the end-user identity in the request body.
func (h *Handler) Routes(adminGuard func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)

	r.Route("/api/v1", func(r chi.Router) {
		// Decision endpoints, one call per Trino access check.
		r.Post("/allow", h.handleAllow)
		r.Post("/batch", h.handleBatch)
		r.Post("/row-filter/query", h.handleRowFilterQuery)
		r.Post("/column-mask/batch", h.handleColumnMaskBatch)

		// Administrative endpoints.
		r.Group(func(r chi.Router) {
			if adminGuard != nil {
				r.Use(adminGuard)
			}
			r.Post("/permissions/check", h.handlePermissionCheck)
			r.Post("/permissions/grant", h.handlePermissionGrant)
			r.Post("/permissions/revoke", h.handlePermissionRevoke)
			r.Post("/row-filter/grant", h.handleRowFilterGrant)
			r.Post("/row-filter/revoke", h.handleRowFilterRevoke)
			r.Post("/row-filter/list", h.handleRowFilterList)
			r.Post("/column-mask/grant", h.handleColumnMaskGrant)
			r.Post("/column-mask/revoke", h.handleColumnMaskRevoke)
			r.Post("/column-mask/list", h.handleColumnMaskList)
			r.Get("/catalogs/{catalog}/resources", h.handleCatalogResources)
		})
	})

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness probe failed", "error", err)
		writeError(w, domain.ErrUnavailable("relationship store unreachable: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
