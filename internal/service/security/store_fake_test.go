package security

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/thaihung110/permission-api/internal/domain"
)

// fakeStore is an in-memory RelationshipStore for tests. Direct check
// answers and list results are seeded explicitly; tuple reads and
// writes operate on the tuple slice.
type fakeStore struct {
	mu      sync.Mutex          // batch services call the store concurrently
	allowed map[string]bool     // "subject|relation|object" -> true
	objects map[string][]string // "subject|relation|kind" -> refs
	tuples  []domain.Tuple

	checkErr error
	readErr  error
	writeErr error
	listErr  error

	checkCalls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		allowed: map[string]bool{},
		objects: map[string][]string{},
	}
}

func checkKey(subject domain.Subject, relation domain.Relation, object domain.Object) string {
	return subject.Ref() + "|" + string(relation) + "|" + object.Ref()
}

func (f *fakeStore) allow(subject domain.Subject, relation domain.Relation, object domain.Object) {
	f.allowed[checkKey(subject, relation, object)] = true
}

func (f *fakeStore) Check(_ context.Context, subject domain.Subject, relation domain.Relation, object domain.Object) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls = append(f.checkCalls, checkKey(subject, relation, object))
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.allowed[checkKey(subject, relation, object)], nil
}

func (f *fakeStore) Write(_ context.Context, writes []domain.Tuple, deletes []domain.Tuple) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	for _, del := range deletes {
		kept := f.tuples[:0]
		for _, t := range f.tuples {
			if !sameKey(t, del) {
				kept = append(kept, t)
			}
		}
		f.tuples = kept
	}
	f.tuples = append(f.tuples, writes...)
	return nil
}

func (f *fakeStore) Read(_ context.Context, filter domain.TupleFilter) ([]domain.Tuple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []domain.Tuple
	for _, t := range f.tuples {
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

func (f *fakeStore) ListObjects(_ context.Context, subject domain.Subject, relation domain.Relation, kind domain.ObjectKind) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	key := fmt.Sprintf("%s|%s|%s", subject.Ref(), relation, kind)
	return f.objects[key], nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) seedObjects(subject domain.Subject, relation domain.Relation, kind domain.ObjectKind, refs ...string) {
	key := fmt.Sprintf("%s|%s|%s", subject.Ref(), relation, kind)
	f.objects[key] = refs
}

func (f *fakeStore) checked(fragment string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.checkCalls {
		if strings.Contains(call, fragment) {
			return true
		}
	}
	return false
}

func sameKey(a, b domain.Tuple) bool {
	return a.Subject == b.Subject && a.Relation == b.Relation && a.Object == b.Object
}
