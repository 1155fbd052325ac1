package security

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thaihung110/permission-api/internal/domain"
)

func newPermissionService(store *fakeStore) *PermissionService {
	return NewPermissionService(store, slog.Default())
}

func TestCheckAlwaysAllowed(t *testing.T) {
	svc := newPermissionService(newFakeStore())
	alice := domain.UserSubject("alice")

	assert.True(t, svc.Check(context.Background(), alice, "ExecuteQuery", domain.ResourceSpec{}))
	assert.True(t, svc.Check(context.Background(), alice, "ImpersonateUser", domain.ResourceSpec{}))
}

func TestCheckUnknownOperationDenied(t *testing.T) {
	svc := newPermissionService(newFakeStore())
	assert.False(t, svc.Check(context.Background(), domain.UserSubject("alice"), "LaunchRockets", domain.ResourceSpec{Catalog: "prod"}))
}

func TestCheckMalformedResourceDenied(t *testing.T) {
	svc := newPermissionService(newFakeStore())
	// Table without schema can never resolve to a target.
	assert.False(t, svc.Check(context.Background(), domain.UserSubject("alice"), "DropTable",
		domain.ResourceSpec{Catalog: "prod", Table: "t"}))
}

func TestCheckInformationSchemaBypass(t *testing.T) {
	store := newFakeStore()
	svc := newPermissionService(store)
	alice := domain.UserSubject("alice")
	spec := domain.ResourceSpec{Catalog: "prod", Schema: "information_schema", Table: "tables"}

	assert.True(t, svc.Check(context.Background(), alice, "ShowTables", spec))
	assert.Empty(t, store.checkCalls, "bypass must not hit the store")

	// Writes to information_schema are not part of the bypass.
	assert.False(t, svc.Check(context.Background(), alice, "DropTable", spec))

	// Neither is a malformed resource that merely names the schema.
	orphan := domain.ResourceSpec{Schema: "information_schema"}
	assert.False(t, svc.Check(context.Background(), alice, "ShowTables", orphan))
}

func TestCheckDirect(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationSelect, domain.TableObject("prod", "public", "orders"))
	svc := newPermissionService(store)

	assert.True(t, svc.Check(context.Background(), alice, "SelectFromColumns",
		domain.ResourceSpec{Catalog: "prod", Schema: "public", Table: "orders"}))
}

func TestCheckHierarchicalFallbackToCatalog(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationSelect, domain.CatalogObject("lakekeeper"))
	svc := newPermissionService(store)

	// select on the catalog allows select on any table beneath it.
	assert.True(t, svc.Check(context.Background(), alice, "SelectFromColumns",
		domain.ResourceSpec{Catalog: "lakekeeper", Schema: "finance", Table: "user"}))
}

func TestCheckColumnRedirectsToTable(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationSelect, domain.TableObject("prod", "public", "t"))
	svc := newPermissionService(store)

	assert.True(t, svc.Check(context.Background(), alice, "SelectFromColumns",
		domain.ResourceSpec{Catalog: "prod", Schema: "public", Table: "t", Column: "ssn"}))
	assert.False(t, store.checked("column:"), "non-mask column checks go to the table")
}

func TestCheckMaskStaysOnColumn(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationMask, domain.ColumnObject("prod", "public", "t", "ssn"))
	svc := newPermissionService(store)

	assert.True(t, svc.Check(context.Background(), alice, "MaskColumn",
		domain.ResourceSpec{Catalog: "prod", Schema: "public", Table: "t", Column: "ssn"}))
	assert.True(t, store.checked("column:prod.public.t.ssn"))
}

func TestCheckCreateCatalogTargetsSystem(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationCreate, domain.CatalogObject("system"))
	svc := newPermissionService(store)

	// Any catalog name in the request still checks against catalog:system.
	assert.True(t, svc.Check(context.Background(), alice, "CreateCatalog",
		domain.ResourceSpec{Catalog: "brand_new"}))
	assert.True(t, store.checked("catalog:system"))
	assert.False(t, store.checked("catalog:brand_new"))
}

func TestCheckCatalogVisibilityViaChild(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.seedObjects(alice, domain.RelationSelect, domain.KindTable,
		"table:prod.public.orders")
	svc := newPermissionService(store)

	// No grant on the catalog itself, but a visible table inside it.
	assert.True(t, svc.Check(context.Background(), alice, "AccessCatalog",
		domain.ResourceSpec{Catalog: "prod"}))

	// Nothing visible in an unrelated catalog.
	assert.False(t, svc.Check(context.Background(), alice, "AccessCatalog",
		domain.ResourceSpec{Catalog: "other"}))
}

func TestCheckCatalogVisibilityViaOwnRelation(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationCreate, domain.CatalogObject("prod"))
	svc := newPermissionService(store)

	assert.True(t, svc.Check(context.Background(), alice, "AccessCatalog",
		domain.ResourceSpec{Catalog: "prod"}))
}

func TestCheckShowTablesViaTableInSchema(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.seedObjects(alice, domain.RelationModify, domain.KindTable,
		"table:prod.public.orders")
	svc := newPermissionService(store)

	assert.True(t, svc.Check(context.Background(), alice, "ShowTables",
		domain.ResourceSpec{Catalog: "prod", Schema: "public"}))
	assert.False(t, svc.Check(context.Background(), alice, "ShowTables",
		domain.ResourceSpec{Catalog: "prod", Schema: "empty"}))
}

func TestCheckShowTablesViaCatalogGrant(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationSelect, domain.CatalogObject("prod"))
	svc := newPermissionService(store)

	assert.True(t, svc.Check(context.Background(), alice, "ShowTables",
		domain.ResourceSpec{Catalog: "prod", Schema: "public"}))
}

func TestCheckShowColumnsNeverWidened(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationSelect, domain.CatalogObject("prod"))
	store.allow(alice, domain.RelationDescribe, domain.SchemaObject("prod", "public"))
	svc := newPermissionService(store)

	// Broad grants above the table must not leak column visibility.
	assert.False(t, svc.Check(context.Background(), alice, "ShowColumns",
		domain.ResourceSpec{Catalog: "prod", Schema: "public", Table: "orders"}))
}

func TestCheckFailClosedOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.checkErr = errors.New("store down")
	store.listErr = errors.New("store down")
	svc := newPermissionService(store)

	assert.False(t, svc.Check(context.Background(), domain.UserSubject("alice"), "SelectFromColumns",
		domain.ResourceSpec{Catalog: "prod", Schema: "public", Table: "t"}))
	assert.False(t, svc.Check(context.Background(), domain.UserSubject("alice"), "AccessCatalog",
		domain.ResourceSpec{Catalog: "prod"}))
}

func TestCheckRoleTarget(t *testing.T) {
	store := newFakeStore()
	alice := domain.UserSubject("alice")
	store.allow(alice, domain.RelationManageGrants, domain.RoleObject("DE"))
	svc := newPermissionService(store)

	assert.True(t, svc.Check(context.Background(), alice, "SetSchemaAuthorization",
		domain.ResourceSpec{Role: "DE", Catalog: "ignored"}))
	assert.True(t, store.checked("role:DE"))
}
