package security

import (
	"context"
	"log/slog"

	"github.com/thaihung110/permission-api/internal/domain"
)

// GrantService manages plain permission tuples.
type GrantService struct {
	store  domain.RelationshipStore
	logger *slog.Logger
}

// NewGrantService creates a new GrantService.
func NewGrantService(store domain.RelationshipStore, logger *slog.Logger) *GrantService {
	return &GrantService{
		store:  store,
		logger: logger.With("component", "grant"),
	}
}

// Grant gives subject the relation on the resource. Granting over an
// existing identical tuple overwrites it rather than duplicating, so
// repeated grants (including condition changes) are idempotent.
func (s *GrantService) Grant(ctx context.Context, subject domain.Subject, relation domain.Relation, spec domain.ResourceSpec) (domain.Object, error) {
	return s.GrantConditional(ctx, subject, relation, spec, nil)
}

// GrantConditional is Grant with an optional relationship condition
// attached to the written tuple.
func (s *GrantService) GrantConditional(ctx context.Context, subject domain.Subject, relation domain.Relation, spec domain.ResourceSpec, cond *domain.Condition) (domain.Object, error) {
	if !domain.ValidPermission(relation) {
		return domain.Object{}, domain.ErrValidation("relation %q is not grantable", relation)
	}
	target, err := grantTarget(relation, spec)
	if err != nil {
		return domain.Object{}, err
	}
	tuple := domain.Tuple{Subject: subject, Relation: relation, Object: target, Condition: cond}
	if err := overwrite(ctx, s.store, tuple); err != nil {
		return domain.Object{}, err
	}
	s.logger.Info("permission granted",
		"subject", subject.Ref(), "relation", relation, "object", target.Ref())
	return target, nil
}

// Revoke removes subject's relation on the resource. Revoking a
// relation that was never granted is a NotFound error.
func (s *GrantService) Revoke(ctx context.Context, subject domain.Subject, relation domain.Relation, spec domain.ResourceSpec) (domain.Object, error) {
	target, err := grantTarget(relation, spec)
	if err != nil {
		return domain.Object{}, err
	}
	tuple := domain.Tuple{Subject: subject, Relation: relation, Object: target}

	existing, err := readExisting(ctx, s.store, tuple)
	if err != nil {
		return domain.Object{}, err
	}
	if existing == nil {
		return domain.Object{}, domain.ErrNotFound("no %s grant for %s on %s",
			relation, subject.Ref(), target.Ref())
	}
	if err := s.store.Write(ctx, nil, []domain.Tuple{tuple}); err != nil {
		return domain.Object{}, err
	}
	s.logger.Info("permission revoked",
		"subject", subject.Ref(), "relation", relation, "object", target.Ref())
	return target, nil
}

// Held returns the permission relations subject currently holds on the
// object, by direct or inherited grant.
func (s *GrantService) Held(ctx context.Context, subject domain.Subject, object domain.Object) ([]domain.Relation, error) {
	var held []domain.Relation
	for _, rel := range domain.PermissionRelations {
		ok, err := s.store.Check(ctx, subject, rel, object)
		if err != nil {
			return nil, err
		}
		if ok {
			held = append(held, rel)
		}
	}
	return held, nil
}

// grantTarget resolves the object a grant or revoke acts on. A create
// grant with no resource named is the cluster-level right to create
// catalogs and targets the system catalog.
func grantTarget(relation domain.Relation, spec domain.ResourceSpec) (domain.Object, error) {
	if spec.IsEmpty() && relation == domain.RelationCreate {
		return domain.CatalogObject(domain.SystemCatalog), nil
	}
	return domain.BuildTarget("", spec)
}

// readExisting returns the stored tuple matching the key of t, or nil.
func readExisting(ctx context.Context, store domain.RelationshipStore, t domain.Tuple) (*domain.Tuple, error) {
	tuples, err := store.Read(ctx, domain.TupleFilter{
		Subject:  &t.Subject,
		Relation: t.Relation,
		Object:   &t.Object,
	})
	if err != nil {
		return nil, err
	}
	if len(tuples) == 0 {
		return nil, nil
	}
	return &tuples[0], nil
}

// overwrite writes a tuple, first deleting any existing tuple with the
// same key. The delete runs as its own write so a condition change does
// not collide with the old tuple.
func overwrite(ctx context.Context, store domain.RelationshipStore, t domain.Tuple) error {
	existing, err := readExisting(ctx, store, t)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := store.Write(ctx, nil, []domain.Tuple{t}); err != nil {
			return err
		}
	}
	return store.Write(ctx, []domain.Tuple{t}, nil)
}
