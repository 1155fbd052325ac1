package domain

// ResourceSpec is the raw resource naming extracted from a decision
// request. Fields are optional; BuildTarget decides which object the
// combination identifies.
type ResourceSpec struct {
	Role    string
	Project string
	Catalog string
	Schema  string
	Table   string
	Column  string
}

// IsEmpty reports whether the spec names nothing at all.
func (s ResourceSpec) IsEmpty() bool {
	return s == ResourceSpec{}
}

// BuildTarget resolves a resource spec and operation to the object the
// permission check targets.
//
// Priority: an explicit role or project wins over hierarchy fields.
// Creation operations target the parent of the object being created
// (CreateCatalog targets the fixed system catalog). A column requires
// its full ancestry. Otherwise the deepest fully-specified hierarchy
// level is chosen; a deeper field without its ancestors is invalid.
func BuildTarget(op string, spec ResourceSpec) (Object, error) {
	if spec.Role != "" {
		return RoleObject(spec.Role), nil
	}
	if spec.Project != "" {
		return ProjectObject(spec.Project), nil
	}

	if parentKind, ok := CreationParentKind(op); ok {
		switch parentKind {
		case KindCatalog:
			if op == "CreateCatalog" {
				return CatalogObject(SystemCatalog), nil
			}
			if spec.Catalog == "" {
				return Object{}, ErrValidation("operation %s requires a catalog", op)
			}
			return CatalogObject(spec.Catalog), nil
		case KindSchema:
			if spec.Catalog == "" || spec.Schema == "" {
				return Object{}, ErrValidation("operation %s requires a catalog and schema", op)
			}
			return SchemaObject(spec.Catalog, spec.Schema), nil
		}
	}

	if spec.Column != "" {
		if spec.Catalog == "" || spec.Schema == "" || spec.Table == "" {
			return Object{}, ErrValidation("column %q requires catalog, schema, and table", spec.Column)
		}
		return ColumnObject(spec.Catalog, spec.Schema, spec.Table, spec.Column), nil
	}
	if spec.Table != "" {
		if spec.Catalog == "" || spec.Schema == "" {
			return Object{}, ErrValidation("table %q requires catalog and schema", spec.Table)
		}
		return TableObject(spec.Catalog, spec.Schema, spec.Table), nil
	}
	if spec.Schema != "" {
		if spec.Catalog == "" {
			return Object{}, ErrValidation("schema %q requires a catalog", spec.Schema)
		}
		return SchemaObject(spec.Catalog, spec.Schema), nil
	}
	if spec.Catalog != "" {
		return CatalogObject(spec.Catalog), nil
	}
	return Object{}, ErrValidation("request names no resource")
}
