package domain

import "context"

// RelationshipStore is the outbound port to the relationship-based
// authorization store. Implementations translate between the API's
// object vocabulary and the store's model types.
type RelationshipStore interface {
	// Check reports whether the subject has the relation on the object,
	// directly or through the model's rewrite rules.
	Check(ctx context.Context, subject Subject, relation Relation, object Object) (bool, error)

	// Write applies deletes before writes in a single transaction, so an
	// overwrite of an existing tuple (delete old, write new) is atomic.
	Write(ctx context.Context, writes []Tuple, deletes []Tuple) error

	// Read returns tuples matching the filter.
	Read(ctx context.Context, filter TupleFilter) ([]Tuple, error)

	// ListObjects returns the refs of objects of the given kind on which
	// the subject has the relation.
	ListObjects(ctx context.Context, subject Subject, relation Relation, kind ObjectKind) ([]string, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// CatalogMetadata is the outbound port to the lakehouse catalog, used
// to enumerate the physical resources grants can target.
type CatalogMetadata interface {
	// WarehouseID resolves a warehouse name to its internal id.
	WarehouseID(ctx context.Context, warehouse string) (string, error)

	// Namespaces lists namespace paths in a warehouse.
	Namespaces(ctx context.Context, warehouseID string) ([]string, error)

	// Tables lists table names in a namespace.
	Tables(ctx context.Context, warehouseID, namespace string) ([]string, error)

	// TableColumns lists the column names of a table.
	TableColumns(ctx context.Context, warehouseID, namespace, table string) ([]string, error)
}
