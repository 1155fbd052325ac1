package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/thaihung110/permission-api/internal/domain"
	"github.com/thaihung110/permission-api/internal/service/catalog"
	"github.com/thaihung110/permission-api/internal/service/security"
)

// mockStore is an in-memory RelationshipStore shared by the handler
// tests. Check answers and ListObjects results are seeded explicitly;
// reads and writes operate on the tuple slice.
type mockStore struct {
	mu      sync.Mutex
	allowed map[string]bool
	objects map[string][]string
	tuples  []domain.Tuple

	pingErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		allowed: map[string]bool{},
		objects: map[string][]string{},
	}
}

func storeKey(subject domain.Subject, relation domain.Relation, object domain.Object) string {
	return subject.Ref() + "|" + string(relation) + "|" + object.Ref()
}

func (m *mockStore) allow(subject domain.Subject, relation domain.Relation, object domain.Object) {
	m.allowed[storeKey(subject, relation, object)] = true
}

func (m *mockStore) Check(_ context.Context, subject domain.Subject, relation domain.Relation, object domain.Object) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowed[storeKey(subject, relation, object)], nil
}

func (m *mockStore) Write(_ context.Context, writes []domain.Tuple, deletes []domain.Tuple) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, del := range deletes {
		kept := m.tuples[:0]
		for _, t := range m.tuples {
			if t.Subject != del.Subject || t.Relation != del.Relation || t.Object != del.Object {
				kept = append(kept, t)
			}
		}
		m.tuples = kept
	}
	m.tuples = append(m.tuples, writes...)
	return nil
}

func (m *mockStore) Read(_ context.Context, filter domain.TupleFilter) ([]domain.Tuple, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Tuple
	for _, t := range m.tuples {
		if filter.Subject != nil && t.Subject != *filter.Subject {
			continue
		}
		if filter.Relation != "" && t.Relation != filter.Relation {
			continue
		}
		if filter.Object != nil && t.Object != *filter.Object {
			continue
		}
		if filter.ObjectKind != "" && t.Object.Kind != filter.ObjectKind {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockStore) ListObjects(_ context.Context, subject domain.Subject, relation domain.Relation, kind domain.ObjectKind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[fmt.Sprintf("%s|%s|%s", subject.Ref(), relation, kind)], nil
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

// mockMeta is a seeded CatalogMetadata for the resources endpoint.
type mockMeta struct {
	warehouseID string
	namespaces  []string
	tables      map[string][]string
	columns     map[string][]string
}

func (m *mockMeta) WarehouseID(_ context.Context, warehouse string) (string, error) {
	if m.warehouseID == "" {
		return "", domain.ErrNotFound("warehouse %q not found", warehouse)
	}
	return m.warehouseID, nil
}

func (m *mockMeta) Namespaces(context.Context, string) ([]string, error) {
	return m.namespaces, nil
}

func (m *mockMeta) Tables(_ context.Context, _ string, namespace string) ([]string, error) {
	return m.tables[namespace], nil
}

func (m *mockMeta) TableColumns(_ context.Context, _ string, namespace, table string) ([]string, error) {
	return m.columns[namespace+"."+table], nil
}

// newTestHandler wires a full Handler over the mock store and metadata.
func newTestHandler(store *mockStore, meta *mockMeta) http.Handler {
	logger := slog.Default()
	grants := security.NewGrantService(store, logger)
	rowFilters := security.NewRowFilterService(store, logger)
	masks := security.NewColumnMaskService(store, 4, logger)
	resources := catalog.NewResourceService(meta, grants, rowFilters, masks, 4, logger)

	h := NewHandler(
		security.NewPermissionService(store, logger),
		grants,
		rowFilters,
		masks,
		resources,
		store,
		4,
		logger,
	)
	return h.Routes(nil)
}
