package domain

// ResourceTree is a permission-annotated view of a catalog: the subject
// asking for the tree gets, per node, the relations they hold. Branches
// that failed to enumerate appear in Errors with their path.
type ResourceTree struct {
	Catalog     string             `json:"catalog"`
	Permissions []Relation         `json:"permissions"`
	Schemas     []*SchemaResource  `json:"schemas"`
	Errors      []EnumerationError `json:"errors,omitempty"`
}

// SchemaResource is one schema node of a resource tree.
type SchemaResource struct {
	Name        string           `json:"name"`
	Permissions []Relation       `json:"permissions"`
	Tables      []*TableResource `json:"tables"`
}

// TableResource is one table node of a resource tree. MaskedColumns and
// RowFilters reflect the policies visible to the requesting subject, not
// every policy on the table.
type TableResource struct {
	Name          string     `json:"name"`
	Permissions   []Relation `json:"permissions"`
	Columns       []string   `json:"columns,omitempty"`
	MaskedColumns []string   `json:"masked_columns,omitempty"`
	RowFilters    []string   `json:"row_filters,omitempty"`
}

// EnumerationError records a branch of the tree that could not be
// walked; the rest of the enumeration continues without it.
type EnumerationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}
