// Package trino defines the wire contract of the query engine's policy
// agent plugin. Requests arrive in the agent's input envelope and
// responses use its result shapes, so the service is a drop-in
// replacement for the agent endpoint Trino is configured against.
package trino

import "github.com/thaihung110/permission-api/internal/domain"

// Identity is the requesting principal as asserted by the engine.
type Identity struct {
	User   string   `json:"user"`
	Groups []string `json:"groups,omitempty"`
}

// SoftwareStack carries engine version metadata. Informational only.
type SoftwareStack struct {
	TrinoVersion string `json:"trinoVersion,omitempty"`
}

// Context wraps the identity in the agent envelope.
type Context struct {
	Identity      Identity       `json:"identity"`
	SoftwareStack *SoftwareStack `json:"softwareStack,omitempty"`
}

// CatalogResource names a catalog.
type CatalogResource struct {
	Name string `json:"name"`
}

// SchemaResource names a schema inside a catalog.
type SchemaResource struct {
	CatalogName string `json:"catalogName"`
	SchemaName  string `json:"schemaName"`
}

// TableResource names a table, optionally with the columns touched.
type TableResource struct {
	CatalogName string   `json:"catalogName"`
	SchemaName  string   `json:"schemaName"`
	TableName   string   `json:"tableName"`
	Columns     []string `json:"columns,omitempty"`
}

// ColumnResource names a single column.
type ColumnResource struct {
	CatalogName string `json:"catalogName"`
	SchemaName  string `json:"schemaName"`
	TableName   string `json:"tableName"`
	ColumnName  string `json:"columnName"`
}

// FunctionResource names a function, possibly catalog- or
// schema-qualified.
type FunctionResource struct {
	CatalogName  string `json:"catalogName,omitempty"`
	SchemaName   string `json:"schemaName,omitempty"`
	FunctionName string `json:"functionName"`
}

// ProcedureResource names a procedure.
type ProcedureResource struct {
	CatalogName   string `json:"catalogName"`
	SchemaName    string `json:"schemaName"`
	ProcedureName string `json:"procedureName"`
}

// Resource is the union of resource shapes the engine sends; exactly
// one field is populated per request. The same shape appears both as
// action.resource and as a filterResources element.
type Resource struct {
	Catalog   *CatalogResource   `json:"catalog,omitempty"`
	Schema    *SchemaResource    `json:"schema,omitempty"`
	Table     *TableResource     `json:"table,omitempty"`
	Column    *ColumnResource    `json:"column,omitempty"`
	Function  *FunctionResource  `json:"function,omitempty"`
	Procedure *ProcedureResource `json:"procedure,omitempty"`
}

// Action is the operation being authorized, with either a single
// resource or a batch of filter resources.
type Action struct {
	Operation       string     `json:"operation"`
	Resource        *Resource  `json:"resource,omitempty"`
	TargetResource  *Resource  `json:"targetResource,omitempty"`
	FilterResources []Resource `json:"filterResources,omitempty"`
	Grantee         *Identity  `json:"grantee,omitempty"`
}

// Input is the agent envelope body.
type Input struct {
	Context Context `json:"context"`
	Action  Action  `json:"action"`
}

// Request is the full envelope for both single and batch checks.
type Request struct {
	Input Input `json:"input"`
}

// AllowResponse answers a single check.
type AllowResponse struct {
	Result bool `json:"result"`
}

// BatchResponse answers a filter batch with the indices of allowed
// resources.
type BatchResponse struct {
	Result []int `json:"result"`
}

// Expression is a SQL fragment returned to the engine.
type Expression struct {
	Expression string `json:"expression"`
}

// RowFiltersResponse carries zero or one row filter predicates.
type RowFiltersResponse struct {
	Result []Expression `json:"result"`
}

// MaskEntry directs the engine to mask the filter resource at Index.
type MaskEntry struct {
	Index          int        `json:"index"`
	ViewExpression Expression `json:"viewExpression"`
}

// ColumnMaskResponse lists only the columns that need masking.
type ColumnMaskResponse struct {
	Result []MaskEntry `json:"result"`
}

// Spec flattens the resource union into the loose resource naming the
// decision engine consumes. Later fields override earlier ones when the
// engine sends more than one shape, matching the agent's precedence.
func (r *Resource) Spec() domain.ResourceSpec {
	var spec domain.ResourceSpec
	if r == nil {
		return spec
	}
	if r.Catalog != nil {
		spec.Catalog = r.Catalog.Name
	}
	if r.Schema != nil {
		spec.Catalog = r.Schema.CatalogName
		spec.Schema = r.Schema.SchemaName
	}
	if r.Table != nil {
		spec.Catalog = r.Table.CatalogName
		spec.Schema = r.Table.SchemaName
		spec.Table = r.Table.TableName
	}
	if r.Column != nil {
		spec.Catalog = r.Column.CatalogName
		spec.Schema = r.Column.SchemaName
		spec.Table = r.Column.TableName
		spec.Column = r.Column.ColumnName
	}
	if r.Function != nil {
		if r.Function.CatalogName != "" {
			spec.Catalog = r.Function.CatalogName
		}
		if r.Function.SchemaName != "" {
			spec.Schema = r.Function.SchemaName
		}
	}
	if r.Procedure != nil {
		spec.Catalog = r.Procedure.CatalogName
		spec.Schema = r.Procedure.SchemaName
	}
	return spec
}
