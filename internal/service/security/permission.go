// Package security implements the authorization decision engine: the
// hierarchical permission resolver, SQL row filter synthesis, column
// mask resolution, and grant management on top of the relationship
// store.
package security

import (
	"context"
	"log/slog"
	"strings"

	"github.com/thaihung110/permission-api/internal/domain"
)

// informationSchema is the metadata schema every client may read once
// it can reach the catalog at all.
const informationSchema = "information_schema"

// Relation sets used by the widening fallbacks. Tables have no create
// relation in the model.
var (
	catalogSelfRelations = []domain.Relation{
		domain.RelationDescribe, domain.RelationModify, domain.RelationCreate,
	}
	schemaRelations = []domain.Relation{
		domain.RelationSelect, domain.RelationDescribe, domain.RelationModify, domain.RelationCreate,
	}
	tableRelations = []domain.Relation{
		domain.RelationSelect, domain.RelationDescribe, domain.RelationModify,
	}
)

// PermissionService resolves allow/deny decisions against the
// relationship store.
type PermissionService struct {
	store  domain.RelationshipStore
	logger *slog.Logger
}

// NewPermissionService creates a new PermissionService.
func NewPermissionService(store domain.RelationshipStore, logger *slog.Logger) *PermissionService {
	return &PermissionService{
		store:  store,
		logger: logger.With("component", "permission"),
	}
}

// Check decides whether subject may perform operation on the described
// resource. It never returns an error: malformed input, unknown
// operations, and store failures all resolve to deny.
func (s *PermissionService) Check(ctx context.Context, subject domain.Subject, operation string, spec domain.ResourceSpec) bool {
	if domain.AlwaysAllowed(operation) {
		return true
	}

	relation, ok := domain.OperationRelation(operation)
	if !ok {
		s.logger.Info("denied: unknown operation", "operation", operation, "subject", subject.Ref())
		return false
	}

	target, err := domain.BuildTarget(operation, spec)
	if err != nil {
		s.logger.Info("denied: unbuildable target",
			"operation", operation, "subject", subject.Ref(), "error", err)
		return false
	}

	// Metadata schema reads are universally permitted, but only for
	// well-formed resources.
	if spec.Schema == informationSchema && domain.InformationSchemaRead(operation) {
		return true
	}

	// Columns inherit everything but mask from their table, so ordinary
	// column checks are answered at table level.
	if target.Kind == domain.KindColumn && relation != domain.RelationMask {
		target, _ = target.OwningTable()
	}

	allowed, err := s.store.Check(ctx, subject, relation, target)
	if err != nil {
		s.logger.Warn("denied: store check failed", "target", target.Ref(), "error", err)
		return false
	}
	if allowed {
		s.logger.Debug("allowed: direct",
			"subject", subject.Ref(), "relation", relation, "target", target.Ref())
		return true
	}

	return s.fallback(ctx, subject, operation, relation, target)
}

// fallback applies the operation-specific widen-and-retry rules after a
// direct denial.
func (s *PermissionService) fallback(ctx context.Context, subject domain.Subject, operation string, relation domain.Relation, target domain.Object) bool {
	switch {
	case (operation == "AccessCatalog" || operation == "ShowSchemas") && target.Kind == domain.KindCatalog:
		return s.catalogVisibility(ctx, subject, operation, target)

	case (operation == "ShowTables" || operation == "ShowSchemas") && target.Kind == domain.KindSchema:
		return s.schemaVisibility(ctx, subject, operation, target)

	// Column listing is never widened: seeing a table must not imply
	// seeing its columns.
	case operation == "ShowColumns":
		return false

	default:
		return s.walkUp(ctx, subject, relation, target)
	}
}

// catalogVisibility allows the catalog if the subject holds any
// relation on the catalog itself, or anything at all on any schema or
// table inside it.
func (s *PermissionService) catalogVisibility(ctx context.Context, subject domain.Subject, operation string, catalog domain.Object) bool {
	for _, rel := range catalogSelfRelations {
		if s.checkQuiet(ctx, subject, rel, catalog) {
			s.logger.Debug("allowed: relation on catalog itself",
				"operation", operation, "relation", rel, "catalog", catalog.Path())
			return true
		}
	}

	prefix := catalog.Path() + "."
	if s.anyObjectWithPrefix(ctx, subject, schemaRelations, domain.KindSchema, "schema:"+prefix) {
		s.logger.Debug("allowed: visible schema inside catalog",
			"operation", operation, "catalog", catalog.Path())
		return true
	}
	if s.anyObjectWithPrefix(ctx, subject, tableRelations, domain.KindTable, "table:"+prefix) {
		s.logger.Debug("allowed: visible table inside catalog",
			"operation", operation, "catalog", catalog.Path())
		return true
	}

	s.logger.Info("denied: nothing visible in catalog",
		"operation", operation, "subject", subject.Ref(), "catalog", catalog.Path())
	return false
}

// schemaVisibility allows the schema if the subject holds any relation
// on it, on any table within it, or on the owning catalog.
func (s *PermissionService) schemaVisibility(ctx context.Context, subject domain.Subject, operation string, schema domain.Object) bool {
	for _, rel := range schemaRelations {
		if s.checkQuiet(ctx, subject, rel, schema) {
			s.logger.Debug("allowed: relation on schema itself",
				"operation", operation, "relation", rel, "schema", schema.Path())
			return true
		}
	}

	if s.anyObjectWithPrefix(ctx, subject, tableRelations, domain.KindTable, "table:"+schema.Path()+".") {
		s.logger.Debug("allowed: visible table inside schema",
			"operation", operation, "schema", schema.Path())
		return true
	}

	catalog := domain.CatalogObject(schema.Catalog)
	for _, rel := range schemaRelations {
		if s.checkQuiet(ctx, subject, rel, catalog) {
			s.logger.Debug("allowed: relation on owning catalog",
				"operation", operation, "relation", rel, "schema", schema.Path())
			return true
		}
	}

	s.logger.Info("denied: nothing visible for schema",
		"operation", operation, "subject", subject.Ref(), "schema", schema.Path())
	return false
}

// walkUp retries the same relation at each ancestor level.
func (s *PermissionService) walkUp(ctx context.Context, subject domain.Subject, relation domain.Relation, target domain.Object) bool {
	for parent, ok := target.Parent(); ok; parent, ok = parent.Parent() {
		if s.checkQuiet(ctx, subject, relation, parent) {
			s.logger.Debug("allowed: inherited from ancestor",
				"subject", subject.Ref(), "relation", relation, "ancestor", parent.Ref())
			return true
		}
	}
	return false
}

// anyObjectWithPrefix reports whether the subject holds any of the
// relations on an object of the kind whose ref starts with prefix.
func (s *PermissionService) anyObjectWithPrefix(ctx context.Context, subject domain.Subject, relations []domain.Relation, kind domain.ObjectKind, prefix string) bool {
	for _, rel := range relations {
		refs, err := s.store.ListObjects(ctx, subject, rel, kind)
		if err != nil {
			s.logger.Warn("list objects failed", "relation", rel, "kind", kind, "error", err)
			continue
		}
		for _, ref := range refs {
			if strings.HasPrefix(ref, prefix) {
				return true
			}
		}
	}
	return false
}

// checkQuiet performs a store check treating errors as deny.
func (s *PermissionService) checkQuiet(ctx context.Context, subject domain.Subject, relation domain.Relation, object domain.Object) bool {
	allowed, err := s.store.Check(ctx, subject, relation, object)
	if err != nil {
		s.logger.Warn("store check failed", "relation", relation, "object", object.Ref(), "error", err)
		return false
	}
	return allowed
}
