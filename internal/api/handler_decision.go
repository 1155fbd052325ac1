package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/thaihung110/permission-api/internal/domain"
	"github.com/thaihung110/permission-api/internal/trino"
)

// The decision endpoints never return an error status: Trino treats a
// non-200 as a hard query failure, so every failure path degrades to
// deny (or an empty result) instead.

func (h *Handler) handleAllow(w http.ResponseWriter, r *http.Request) {
	var req trino.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("malformed allow request", "error", err)
		writeJSON(w, http.StatusOK, trino.AllowResponse{Result: false})
		return
	}

	user := req.Input.Context.Identity.User
	if user == "" {
		writeJSON(w, http.StatusOK, trino.AllowResponse{Result: false})
		return
	}

	allowed := h.permissions.Check(r.Context(),
		domain.UserSubject(user),
		req.Input.Action.Operation,
		req.Input.Action.Resource.Spec())
	writeJSON(w, http.StatusOK, trino.AllowResponse{Result: allowed})
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req trino.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("malformed batch request", "error", err)
		writeJSON(w, http.StatusOK, trino.BatchResponse{Result: []int{}})
		return
	}

	user := req.Input.Context.Identity.User
	if user == "" {
		writeJSON(w, http.StatusOK, trino.BatchResponse{Result: []int{}})
		return
	}
	subject := domain.UserSubject(user)
	operation := domain.SingularOperation(req.Input.Action.Operation)

	allowed := make([]int, 0, len(req.Input.Action.FilterResources))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(h.batchConcurrency)
	for i, res := range req.Input.Action.FilterResources {
		i, res := i, res
		g.Go(func() error {
			if h.permissions.Check(gctx, subject, operation, res.Spec()) {
				mu.Lock()
				allowed = append(allowed, i)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // items deny on failure, never abort

	sort.Ints(allowed)
	writeJSON(w, http.StatusOK, trino.BatchResponse{Result: allowed})
}

// legacyRowFilterRequest is the pre-agent request shape still sent by
// older plugin configurations.
type legacyRowFilterRequest struct {
	UserID   string `json:"user_id"`
	Resource struct {
		CatalogName string `json:"catalog_name"`
		SchemaName  string `json:"schema_name"`
		TableName   string `json:"table_name"`
	} `json:"resource"`
}

func (h *Handler) handleRowFilterQuery(w http.ResponseWriter, r *http.Request) {
	empty := trino.RowFiltersResponse{Result: []trino.Expression{}}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.logger.Warn("malformed row filter request", "error", err)
		writeJSON(w, http.StatusOK, empty)
		return
	}

	var user string
	var spec domain.ResourceSpec
	if _, ok := raw["input"]; ok {
		var input trino.Input
		if err := json.Unmarshal(raw["input"], &input); err != nil {
			h.logger.Warn("malformed row filter request", "error", err)
			writeJSON(w, http.StatusOK, empty)
			return
		}
		user = input.Context.Identity.User
		spec = input.Action.Resource.Spec()
	} else {
		var legacy legacyRowFilterRequest
		if err := decodeRaw(raw, &legacy); err != nil {
			h.logger.Warn("malformed row filter request", "error", err)
			writeJSON(w, http.StatusOK, empty)
			return
		}
		user = legacy.UserID
		spec = domain.ResourceSpec{
			Catalog: legacy.Resource.CatalogName,
			Schema:  legacy.Resource.SchemaName,
			Table:   legacy.Resource.TableName,
		}
	}

	if user == "" || spec.Catalog == "" || spec.Schema == "" || spec.Table == "" {
		writeJSON(w, http.StatusOK, empty)
		return
	}

	table := domain.TableObject(spec.Catalog, spec.Schema, spec.Table)
	predicate := h.rowFilters.BuildPredicate(r.Context(), domain.UserSubject(user), table)
	if predicate == "" {
		writeJSON(w, http.StatusOK, empty)
		return
	}
	writeJSON(w, http.StatusOK, trino.RowFiltersResponse{
		Result: []trino.Expression{{Expression: predicate}},
	})
}

func (h *Handler) handleColumnMaskBatch(w http.ResponseWriter, r *http.Request) {
	var req trino.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("malformed column mask request", "error", err)
		writeJSON(w, http.StatusOK, trino.ColumnMaskResponse{Result: []trino.MaskEntry{}})
		return
	}

	identity := req.Input.Context.Identity
	result := []trino.MaskEntry{}
	if identity.User != "" {
		columns := make([]domain.Object, 0, len(req.Input.Action.FilterResources))
		for _, res := range req.Input.Action.FilterResources {
			spec := res.Spec()
			columns = append(columns, domain.ColumnObject(spec.Catalog, spec.Schema, spec.Table, spec.Column))
		}

		masked := h.masks.ResolveMasks(r.Context(), domain.UserSubject(identity.User), identity.Groups, columns)
		for _, m := range masked {
			result = append(result, trino.MaskEntry{
				Index:          m.Index,
				ViewExpression: trino.Expression{Expression: m.Expression},
			})
		}
	}
	writeJSON(w, http.StatusOK, trino.ColumnMaskResponse{Result: result})
}

// decodeRaw round-trips an already-split body into a concrete shape.
func decodeRaw(raw map[string]json.RawMessage, dst interface{}) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, dst)
}
