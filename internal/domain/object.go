package domain

import (
	"fmt"
	"strings"
)

// ObjectKind identifies the type of an authorization object.
type ObjectKind string

// Object kinds used in the public API. The relationship store may use
// different lexical names for some of these (catalog→warehouse etc.);
// that renaming happens exclusively at the store boundary.
const (
	KindProject         ObjectKind = "project"
	KindCatalog         ObjectKind = "catalog"
	KindSchema          ObjectKind = "schema"
	KindTable           ObjectKind = "table"
	KindColumn          ObjectKind = "column"
	KindRole            ObjectKind = "role"
	KindTenant          ObjectKind = "tenant"
	KindRowFilterPolicy ObjectKind = "row_filter_policy"
)

// SystemCatalog is the fixed catalog object that CreateCatalog checks
// authorize against: the catalog does not exist yet, so the permission
// is modeled as "create on the system catalog".
const SystemCatalog = "system"

// Object is a canonical authorization target. It is a tagged variant:
// the Kind determines which name fields are populated. Hierarchical
// kinds (catalog/schema/table/column) fill the ancestor chain; flat
// kinds (project/role) fill only Name.
type Object struct {
	Kind ObjectKind

	Catalog string
	Schema  string
	Table   string
	Column  string

	// Name is the identifier for flat kinds (project, role).
	Name string
}

// CatalogObject builds a catalog-level object.
func CatalogObject(catalog string) Object {
	return Object{Kind: KindCatalog, Catalog: catalog}
}

// SchemaObject builds a schema-level object. The catalog is a required
// ancestor and is always part of the serialized path.
func SchemaObject(catalog, schema string) Object {
	return Object{Kind: KindSchema, Catalog: catalog, Schema: schema}
}

// TableObject builds a table-level object.
func TableObject(catalog, schema, table string) Object {
	return Object{Kind: KindTable, Catalog: catalog, Schema: schema, Table: table}
}

// ColumnObject builds a column-level object.
func ColumnObject(catalog, schema, table, column string) Object {
	return Object{Kind: KindColumn, Catalog: catalog, Schema: schema, Table: table, Column: column}
}

// RoleObject builds a role object. Roles are a flat namespace.
func RoleObject(name string) Object {
	return Object{Kind: KindRole, Name: name}
}

// ProjectObject builds a project object. Projects are a flat namespace.
func ProjectObject(name string) Object {
	return Object{Kind: KindProject, Name: name}
}

// Path returns the dot-joined resource path for the object, without the
// kind prefix (e.g. "cat.sch.tbl" for a table).
func (o Object) Path() string {
	switch o.Kind {
	case KindCatalog:
		return o.Catalog
	case KindSchema:
		return o.Catalog + "." + o.Schema
	case KindTable:
		return o.Catalog + "." + o.Schema + "." + o.Table
	case KindColumn:
		return o.Catalog + "." + o.Schema + "." + o.Table + "." + o.Column
	default:
		return o.Name
	}
}

// Ref returns the canonical object reference "<kind>:<path>".
func (o Object) Ref() string {
	return string(o.Kind) + ":" + o.Path()
}

// String implements fmt.Stringer.
func (o Object) String() string { return o.Ref() }

// Parent returns the object one level up the hierarchy
// (column→table→schema→catalog) and whether such a parent exists.
// Flat kinds and catalogs have no parent.
func (o Object) Parent() (Object, bool) {
	switch o.Kind {
	case KindColumn:
		return TableObject(o.Catalog, o.Schema, o.Table), true
	case KindTable:
		return SchemaObject(o.Catalog, o.Schema), true
	case KindSchema:
		return CatalogObject(o.Catalog), true
	default:
		return Object{}, false
	}
}

// OwningTable returns the table that owns a column object.
func (o Object) OwningTable() (Object, error) {
	if o.Kind != KindColumn {
		return Object{}, fmt.Errorf("object %s is not a column", o.Ref())
	}
	return TableObject(o.Catalog, o.Schema, o.Table), nil
}

// ParseRef parses a "<kind>:<path>" reference back into an Object.
// Hierarchical kinds validate that the path has the expected number of
// dot-separated ancestor parts.
func ParseRef(ref string) (Object, error) {
	kind, path, ok := strings.Cut(ref, ":")
	if !ok {
		return Object{}, ErrValidation("object reference %q has no kind prefix", ref)
	}
	parts := strings.Split(path, ".")
	switch ObjectKind(kind) {
	case KindCatalog:
		if len(parts) != 1 || parts[0] == "" {
			return Object{}, ErrValidation("catalog reference %q must have a single path segment", ref)
		}
		return CatalogObject(parts[0]), nil
	case KindSchema:
		if len(parts) != 2 {
			return Object{}, ErrValidation("schema reference %q must be catalog.schema", ref)
		}
		return SchemaObject(parts[0], parts[1]), nil
	case KindTable:
		if len(parts) != 3 {
			return Object{}, ErrValidation("table reference %q must be catalog.schema.table", ref)
		}
		return TableObject(parts[0], parts[1], parts[2]), nil
	case KindColumn:
		if len(parts) != 4 {
			return Object{}, ErrValidation("column reference %q must be catalog.schema.table.column", ref)
		}
		return ColumnObject(parts[0], parts[1], parts[2], parts[3]), nil
	case KindRole:
		return RoleObject(path), nil
	case KindProject:
		return ProjectObject(path), nil
	default:
		return Object{Kind: ObjectKind(kind), Name: path}, nil
	}
}
