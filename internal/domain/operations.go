package domain

// operationRelations maps every recognized Trino operation to the
// relation it requires. Operations absent from this map and from
// AlwaysAllowed are denied.
var operationRelations = map[string]Relation{
	"AccessCatalog":           RelationSelect,
	"ShowCatalogs":            RelationDescribe,
	"CreateCatalog":           RelationCreate,
	"DropCatalog":             RelationModify,
	"FilterCatalogs":          RelationDescribe,
	"ShowSchemas":             RelationDescribe,
	"CreateSchema":            RelationCreate,
	"DropSchema":              RelationModify,
	"RenameSchema":            RelationModify,
	"SetSchemaAuthorization":  RelationManageGrants,
	"FilterSchemas":           RelationDescribe,
	"CreateTable":             RelationCreate,
	"CreateView":              RelationCreate,
	"ShowTables":              RelationDescribe,
	"DropTable":               RelationModify,
	"RenameTable":             RelationModify,
	"SetTableComment":         RelationDescribe,
	"SetTableAuthorization":   RelationManageGrants,
	"FilterTables":            RelationDescribe,
	"SelectFromColumns":       RelationSelect,
	"InsertIntoTable":         RelationModify,
	"UpdateTableColumns":      RelationModify,
	"DeleteFromTable":         RelationModify,
	"TruncateTable":           RelationModify,
	"ShowColumns":             RelationDescribe,
	"FilterColumns":           RelationDescribe,
	"AddColumn":               RelationModify,
	"DropColumn":              RelationModify,
	"RenameColumn":            RelationModify,
	"SetColumnComment":        RelationDescribe,
	"MaskColumn":              RelationMask,
	"DropView":                RelationModify,
	"RenameView":              RelationModify,
	"SetViewComment":          RelationDescribe,
	"RefreshMaterializedView": RelationModify,
	"ExecuteQuery":            RelationDescribe,
}

// alwaysAllowed are session- and engine-level operations that carry no
// governable resource; they are permitted unconditionally.
var alwaysAllowed = map[string]struct{}{
	"ExecuteQuery":              {},
	"ExecuteTableProcedure":     {},
	"ReadSystemInformation":     {},
	"WriteSystemInformation":    {},
	"SetCatalogSessionProperty": {},
	"SetSystemSessionProperty":  {},
	"ImpersonateUser":           {},
	"ViewQueryOwnedBy":          {},
	"KillQueryOwnedBy":          {},
	"ExecuteFunction":           {},
}

// filterSingular maps a batch filter operation to the singular
// operation whose decision logic applies per element.
var filterSingular = map[string]string{
	"FilterCatalogs":         "AccessCatalog",
	"FilterSchemas":          "ShowSchemas",
	"FilterTables":           "ShowTables",
	"FilterColumns":          "ShowColumns",
	"FilterViewQueryOwnedBy": "ViewQueryOwnedBy",
}

// informationSchemaRead are operations permitted on the
// information_schema schema without a store check; every client needs
// to introspect metadata there.
var informationSchemaRead = map[string]struct{}{
	"SelectFromColumns": {},
	"ShowTables":        {},
	"ShowColumns":       {},
	"ShowSchemas":       {},
	"GetColumnMask":     {},
}

// creationParents maps creation operations to the kind of object the
// check actually targets: the object being created does not exist yet,
// so the permission lives on its parent.
var creationParents = map[string]ObjectKind{
	"CreateCatalog": KindCatalog, // fixed catalog:system
	"CreateSchema":  KindCatalog,
	"CreateTable":   KindSchema,
	"CreateView":    KindSchema,
}

// OperationRelation returns the relation required by a Trino operation.
func OperationRelation(op string) (Relation, bool) {
	r, ok := operationRelations[op]
	return r, ok
}

// AlwaysAllowed reports whether op is permitted unconditionally.
func AlwaysAllowed(op string) bool {
	_, ok := alwaysAllowed[op]
	return ok
}

// SingularOperation resolves a batch filter operation to its per-item
// equivalent; non-filter operations map to themselves.
func SingularOperation(op string) string {
	if s, ok := filterSingular[op]; ok {
		return s
	}
	return op
}

// InformationSchemaRead reports whether op is one of the metadata reads
// that bypass store checks on information_schema.
func InformationSchemaRead(op string) bool {
	_, ok := informationSchemaRead[op]
	return ok
}

// CreationParentKind returns the kind of object a creation operation
// checks against, if op is a creation operation.
func CreationParentKind(op string) (ObjectKind, bool) {
	k, ok := creationParents[op]
	return k, ok
}
