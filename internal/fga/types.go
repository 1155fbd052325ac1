// Package fga adapts the relationship store port to OpenFGA. The
// authorization model uses lakehouse vocabulary for the hierarchy
// types, so object and subject references are renamed at this boundary
// and nowhere else.
package fga

import (
	"strings"

	"github.com/thaihung110/permission-api/internal/domain"
)

// Store-side type names for the hierarchy kinds. Column, project, role,
// tenant, and row_filter_policy keep their API names.
const (
	typeWarehouse = "warehouse"
	typeNamespace = "namespace"
	typeTable     = "lakekeeper_table"
)

var apiToStoreKind = map[domain.ObjectKind]string{
	domain.KindCatalog: typeWarehouse,
	domain.KindSchema:  typeNamespace,
	domain.KindTable:   typeTable,
}

var storeToAPIKind = map[string]domain.ObjectKind{
	typeWarehouse: domain.KindCatalog,
	typeNamespace: domain.KindSchema,
	typeTable:     domain.KindTable,
}

// storeObjectRef renders an object in the store's vocabulary.
func storeObjectRef(o domain.Object) string {
	if t, ok := apiToStoreKind[o.Kind]; ok {
		return t + ":" + o.Path()
	}
	return o.Ref()
}

// storeKind renders an object kind in the store's vocabulary.
func storeKind(k domain.ObjectKind) string {
	if t, ok := apiToStoreKind[k]; ok {
		return t
	}
	return string(k)
}

// storeSubjectRef renders a subject in the store's vocabulary; userset
// and object subjects may carry hierarchy kinds and get the same
// renaming.
func storeSubjectRef(s domain.Subject) string {
	if s.IsUser() {
		return s.Ref()
	}
	ref := storeKind(s.Kind) + ":" + s.Name
	if s.Relation != "" {
		ref += "#" + s.Relation
	}
	return ref
}

// apiObjectRef parses a store-side object reference back to a domain
// object, undoing the renaming.
func apiObjectRef(ref string) (domain.Object, error) {
	kind, path, ok := strings.Cut(ref, ":")
	if !ok {
		return domain.Object{}, domain.ErrValidation("store object reference %q has no type prefix", ref)
	}
	if api, renamed := storeToAPIKind[kind]; renamed {
		kind = string(api)
	}
	return domain.ParseRef(kind + ":" + path)
}

// apiSubjectRef parses a store-side subject reference back to a domain
// subject.
func apiSubjectRef(ref string) (domain.Subject, error) {
	s, err := domain.ParseSubject(ref)
	if err != nil {
		return domain.Subject{}, err
	}
	if api, renamed := storeToAPIKind[string(s.Kind)]; renamed {
		s.Kind = api
	}
	return s, nil
}
