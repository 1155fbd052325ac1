// Package catalog enumerates the lakehouse resource tree and annotates
// each node with the permissions a subject holds on it.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/thaihung110/permission-api/internal/domain"
	"github.com/thaihung110/permission-api/internal/service/security"
)

// catalogPrefix relates Trino catalog names to warehouse names: Trino
// sees warehouse "demo" as catalog "lakekeeper_demo".
const catalogPrefix = "lakekeeper_"

// ResourceService builds permission-annotated resource trees.
type ResourceService struct {
	meta        domain.CatalogMetadata
	grants      *security.GrantService
	rowFilters  *security.RowFilterService
	masks       *security.ColumnMaskService
	concurrency int
	logger      *slog.Logger
}

// NewResourceService creates a new ResourceService. rowFilters and masks
// may be nil, in which case table nodes omit policy annotations.
// concurrency bounds the schema fan-out.
func NewResourceService(meta domain.CatalogMetadata, grants *security.GrantService, rowFilters *security.RowFilterService, masks *security.ColumnMaskService, concurrency int, logger *slog.Logger) *ResourceService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &ResourceService{
		meta:        meta,
		grants:      grants,
		rowFilters:  rowFilters,
		masks:       masks,
		concurrency: concurrency,
		logger:      logger.With("component", "resources"),
	}
}

// warehouseName maps a Trino catalog name to its warehouse and back.
func warehouseName(catalog string) (warehouse, canonical string) {
	if strings.HasPrefix(catalog, catalogPrefix) {
		return strings.TrimPrefix(catalog, catalogPrefix), catalog
	}
	return catalog, catalogPrefix + catalog
}

// Tree walks the catalog and returns the resources under it with the
// subject's permissions per node. Branches that fail to enumerate are
// recorded in the tree's Errors and skipped; only a failure to resolve
// the warehouse itself aborts.
func (s *ResourceService) Tree(ctx context.Context, subject domain.Subject, catalog string) (*domain.ResourceTree, error) {
	warehouse, canonical := warehouseName(catalog)

	warehouseID, err := s.meta.WarehouseID(ctx, warehouse)
	if err != nil {
		return nil, err
	}

	tree := &domain.ResourceTree{Catalog: canonical, Schemas: []*domain.SchemaResource{}}

	catalogPerms, err := s.grants.Held(ctx, subject, domain.CatalogObject(canonical))
	if err != nil {
		tree.Errors = append(tree.Errors, pathError(canonical, err))
	}
	tree.Permissions = catalogPerms

	namespaces, err := s.meta.Namespaces(ctx, warehouseID)
	if err != nil {
		tree.Errors = append(tree.Errors, pathError(canonical, err))
		return tree, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, namespace := range namespaces {
		namespace := namespace
		g.Go(func() error {
			schema, errs := s.schemaBranch(gctx, subject, canonical, warehouseID, namespace)
			mu.Lock()
			defer mu.Unlock()
			if schema != nil {
				tree.Schemas = append(tree.Schemas, schema)
			}
			tree.Errors = append(tree.Errors, errs...)
			return nil
		})
	}
	_ = g.Wait() // branches degrade, never abort

	// Concurrent fan-out scrambles order; keep the listing stable.
	sort.Slice(tree.Schemas, func(i, j int) bool {
		return tree.Schemas[i].Name < tree.Schemas[j].Name
	})
	return tree, nil
}

// schemaBranch enumerates one namespace. A table-level failure is
// recorded and the rest of the branch continues.
func (s *ResourceService) schemaBranch(ctx context.Context, subject domain.Subject, catalog, warehouseID, namespace string) (*domain.SchemaResource, []domain.EnumerationError) {
	var errs []domain.EnumerationError
	schemaPath := catalog + "." + namespace

	perms, err := s.grants.Held(ctx, subject, domain.SchemaObject(catalog, namespace))
	if err != nil {
		errs = append(errs, pathError(schemaPath, err))
	}
	schema := &domain.SchemaResource{
		Name:        namespace,
		Permissions: perms,
		Tables:      []*domain.TableResource{},
	}

	tables, err := s.meta.Tables(ctx, warehouseID, namespace)
	if err != nil {
		errs = append(errs, pathError(schemaPath, err))
		return schema, errs
	}

	for _, table := range tables {
		tablePath := schemaPath + "." + table
		tableObj := domain.TableObject(catalog, namespace, table)
		node := &domain.TableResource{Name: table}

		node.Permissions, err = s.grants.Held(ctx, subject, tableObj)
		if err != nil {
			errs = append(errs, pathError(tablePath, err))
		}

		node.Columns, err = s.meta.TableColumns(ctx, warehouseID, namespace, table)
		if err != nil {
			errs = append(errs, pathError(tablePath, err))
		}

		if s.masks != nil {
			node.MaskedColumns, err = s.masks.MaskedColumns(ctx, subject, tableObj)
			if err != nil {
				errs = append(errs, pathError(tablePath, err))
			}
		}
		if s.rowFilters != nil {
			grants, err := s.rowFilters.ListGrants(ctx, subject, tableObj)
			if err != nil {
				errs = append(errs, pathError(tablePath, err))
			}
			for _, g := range grants {
				node.RowFilters = append(node.RowFilters, g.Policy.Attribute)
			}
		}

		schema.Tables = append(schema.Tables, node)
	}
	return schema, errs
}

func pathError(path string, err error) domain.EnumerationError {
	return domain.EnumerationError{Path: path, Message: err.Error()}
}
