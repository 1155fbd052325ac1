package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thaihung110/permission-api/internal/domain"
)

// adminResource is the loose resource naming used by the admin API.
type adminResource struct {
	RoleName    string `json:"role_name,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
	CatalogName string `json:"catalog_name,omitempty"`
	SchemaName  string `json:"schema_name,omitempty"`
	TableName   string `json:"table_name,omitempty"`
	ColumnName  string `json:"column_name,omitempty"`
}

func (r adminResource) spec() domain.ResourceSpec {
	return domain.ResourceSpec{
		Role:    r.RoleName,
		Project: r.ProjectName,
		Catalog: r.CatalogName,
		Schema:  r.SchemaName,
		Table:   r.TableName,
		Column:  r.ColumnName,
	}
}

// conditionPayload is an optional relationship condition on a grant.
type conditionPayload struct {
	AttributeName string   `json:"attribute_name"`
	AllowedValues []string `json:"allowed_values"`
}

// subjectFrom resolves the admin API's user_id/user_type pair into a
// subject. user_type defaults to "user"; "userset" expects a
// "<type>:<name>#<relation>" reference such as "role:analyst#assignee".
func subjectFrom(userID, userType string) (domain.Subject, error) {
	if userID == "" {
		return domain.Subject{}, domain.ErrValidation("user_id is required")
	}
	switch userType {
	case "", "user":
		return domain.UserSubject(userID), nil
	case "userset":
		subject, err := domain.ParseSubject(userID)
		if err != nil {
			return domain.Subject{}, err
		}
		if !subject.IsUserset() {
			return domain.Subject{}, domain.ErrValidation("user_id %q is not a userset reference", userID)
		}
		return subject, nil
	default:
		return domain.Subject{}, domain.ErrValidation("user_type %q must be user or userset", userType)
	}
}

// objectResponse is the canonical description of the object a write
// landed on.
type objectResponse struct {
	Object       string `json:"object"`
	ResourceType string `json:"resource_type"`
	Resource     string `json:"resource"`
}

func objectResponseFrom(o domain.Object) objectResponse {
	return objectResponse{
		Object:       o.Ref(),
		ResourceType: string(o.Kind),
		Resource:     o.Path(),
	}
}

// --- permissions ---

type permissionCheckRequest struct {
	UserID    string        `json:"user_id"`
	UserType  string        `json:"user_type,omitempty"`
	Operation string        `json:"operation"`
	Resource  adminResource `json:"resource"`
}

func (h *Handler) handlePermissionCheck(w http.ResponseWriter, r *http.Request) {
	var req permissionCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Operation == "" {
		writeValidationError(w, "operation is required")
		return
	}

	allowed := h.permissions.Check(r.Context(), subject, req.Operation, req.Resource.spec())
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

type permissionWriteRequest struct {
	UserID    string            `json:"user_id"`
	UserType  string            `json:"user_type,omitempty"`
	Relation  string            `json:"relation"`
	Resource  adminResource     `json:"resource"`
	Condition *conditionPayload `json:"condition,omitempty"`
}

func (h *Handler) handlePermissionGrant(w http.ResponseWriter, r *http.Request) {
	var req permissionWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}

	var cond *domain.Condition
	if req.Condition != nil {
		cond = &domain.Condition{
			Name:          domain.HasAttributeAccess,
			AttributeName: req.Condition.AttributeName,
			AllowedValues: req.Condition.AllowedValues,
		}
	}

	object, err := h.grants.GrantConditional(r.Context(), subject, domain.Relation(req.Relation), req.Resource.spec(), cond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, objectResponseFrom(object))
}

func (h *Handler) handlePermissionRevoke(w http.ResponseWriter, r *http.Request) {
	var req permissionWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}

	object, err := h.grants.Revoke(r.Context(), subject, domain.Relation(req.Relation), req.Resource.spec())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, objectResponseFrom(object))
}

// --- row filter policies ---

type rowFilterWriteRequest struct {
	UserID        string        `json:"user_id"`
	UserType      string        `json:"user_type,omitempty"`
	Resource      adminResource `json:"resource"`
	AttributeName string        `json:"attribute_name"`
	AllowedValues []string      `json:"allowed_values,omitempty"`
}

func (r rowFilterWriteRequest) table() (domain.Object, error) {
	if r.Resource.CatalogName == "" || r.Resource.SchemaName == "" || r.Resource.TableName == "" {
		return domain.Object{}, domain.ErrValidation("resource must name catalog, schema, and table")
	}
	return domain.TableObject(r.Resource.CatalogName, r.Resource.SchemaName, r.Resource.TableName), nil
}

type policyGrantResponse struct {
	PolicyID      string   `json:"policy_id"`
	AttributeName string   `json:"attribute_name"`
	Subject       string   `json:"subject"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

func (h *Handler) handleRowFilterGrant(w http.ResponseWriter, r *http.Request) {
	var req rowFilterWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}
	table, err := req.table()
	if err != nil {
		writeError(w, err)
		return
	}

	policy, err := h.rowFilters.GrantPolicy(r.Context(), subject, table, req.AttributeName, req.AllowedValues)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policyGrantResponse{
		PolicyID:      policy.ID,
		AttributeName: policy.Attribute,
		Subject:       subject.Ref(),
		AllowedValues: req.AllowedValues,
	})
}

func (h *Handler) handleRowFilterRevoke(w http.ResponseWriter, r *http.Request) {
	var req rowFilterWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}
	table, err := req.table()
	if err != nil {
		writeError(w, err)
		return
	}

	policy, err := h.rowFilters.RevokePolicy(r.Context(), subject, table, req.AttributeName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policyGrantResponse{
		PolicyID:      policy.ID,
		AttributeName: policy.Attribute,
		Subject:       subject.Ref(),
	})
}

func (h *Handler) handleRowFilterList(w http.ResponseWriter, r *http.Request) {
	var req rowFilterWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}
	table, err := req.table()
	if err != nil {
		writeError(w, err)
		return
	}

	grants, err := h.rowFilters.ListGrants(r.Context(), subject, table)
	if err != nil {
		writeError(w, err)
		return
	}

	policies := make([]policyGrantResponse, 0, len(grants))
	for _, g := range grants {
		policies = append(policies, policyGrantResponse{
			PolicyID:      g.Policy.ID,
			AttributeName: g.Policy.Attribute,
			Subject:       g.Subject.Ref(),
			AllowedValues: g.AllowedValues,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"policies": policies})
}

// --- column masks ---

type columnMaskWriteRequest struct {
	UserID   string        `json:"user_id"`
	UserType string        `json:"user_type,omitempty"`
	Resource adminResource `json:"resource"`
}

func (h *Handler) handleColumnMaskGrant(w http.ResponseWriter, r *http.Request) {
	var req columnMaskWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}

	object, err := h.masks.Grant(r.Context(), subject, req.Resource.spec())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, objectResponseFrom(object))
}

func (h *Handler) handleColumnMaskRevoke(w http.ResponseWriter, r *http.Request) {
	var req columnMaskWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}

	object, err := h.masks.Revoke(r.Context(), subject, req.Resource.spec())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, objectResponseFrom(object))
}

func (h *Handler) handleColumnMaskList(w http.ResponseWriter, r *http.Request) {
	var req columnMaskWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body: %v", err)
		return
	}
	subject, err := subjectFrom(req.UserID, req.UserType)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Resource.CatalogName == "" || req.Resource.SchemaName == "" || req.Resource.TableName == "" {
		writeValidationError(w, "resource must name catalog, schema, and table")
		return
	}
	table := domain.TableObject(req.Resource.CatalogName, req.Resource.SchemaName, req.Resource.TableName)

	columns, err := h.masks.MaskedColumns(r.Context(), subject, table)
	if err != nil {
		writeError(w, err)
		return
	}
	if columns == nil {
		columns = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"masked_columns": columns})
}

// --- resource enumeration ---

func (h *Handler) handleCatalogResources(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeValidationError(w, "user query parameter is required")
		return
	}

	tree, err := h.resources.Tree(r.Context(), domain.UserSubject(user), chi.URLParam(r, "catalog"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}
