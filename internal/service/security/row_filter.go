package security

import (
	"context"
	"log/slog"
	"strings"

	"github.com/thaihung110/permission-api/internal/domain"
)

// maxValueLen bounds each escaped filter value.
const maxValueLen = 100

// RowFilterService compiles row filter policies into SQL predicates.
type RowFilterService struct {
	store  domain.RelationshipStore
	logger *slog.Logger
}

// NewRowFilterService creates a new RowFilterService.
func NewRowFilterService(store domain.RelationshipStore, logger *slog.Logger) *RowFilterService {
	return &RowFilterService{
		store:  store,
		logger: logger.With("component", "rowfilter"),
	}
}

// PoliciesForTable returns the policies linked to a table, in tuple
// order.
func (s *RowFilterService) PoliciesForTable(ctx context.Context, table domain.Object) ([]domain.RowFilterPolicy, error) {
	subject := domain.ObjectSubject(table)
	tuples, err := s.store.Read(ctx, domain.TupleFilter{
		Subject:    &subject,
		Relation:   domain.RelationAppliesTo,
		ObjectKind: domain.KindRowFilterPolicy,
	})
	if err != nil {
		return nil, err
	}

	policies := make([]domain.RowFilterPolicy, 0, len(tuples))
	for _, t := range tuples {
		if t.Object.Kind != domain.KindRowFilterPolicy {
			continue
		}
		policy, err := domain.ParsePolicyID(t.Object.Name)
		if err != nil {
			s.logger.Warn("skipping malformed policy id", "policy", t.Object.Name)
			continue
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// BuildPredicate compiles the filter predicate for subject on table.
// An empty result means no filtering. Policies the subject cannot see
// are not enforced against them; a visible wildcard grant contributes
// no clause. Errors never escape: any failure yields no filter.
func (s *RowFilterService) BuildPredicate(ctx context.Context, subject domain.Subject, table domain.Object) string {
	policies, err := s.PoliciesForTable(ctx, table)
	if err != nil {
		s.logger.Warn("policy lookup failed, returning no filter",
			"table", table.Path(), "error", err)
		return ""
	}
	if len(policies) == 0 {
		return ""
	}

	var clauses []string
	for _, policy := range policies {
		grant, ok := s.visibleGrant(ctx, subject, policy)
		if !ok {
			s.logger.Debug("policy not visible to subject",
				"subject", subject.Ref(), "policy", policy.ID)
			continue
		}
		if grant.Unrestricted() {
			s.logger.Debug("wildcard grant, skipping clause",
				"subject", subject.Ref(), "policy", policy.ID)
			continue
		}
		clauses = append(clauses, inClause(policy.Attribute, grant.AllowedValues))
	}

	if len(clauses) == 0 {
		return ""
	}
	predicate := strings.Join(clauses, " AND ")
	s.logger.Info("row filter built",
		"subject", subject.Ref(), "table", table.Path(), "predicate", predicate)
	return predicate
}

// visibleGrant resolves the subject's viewer grant on a policy, either
// direct or through a userset the subject verifiably belongs to. The
// first matching source wins.
func (s *RowFilterService) visibleGrant(ctx context.Context, subject domain.Subject, policy domain.RowFilterPolicy) (domain.PolicyGrant, bool) {
	obj := policy.PolicyObject()
	tuples, err := s.store.Read(ctx, domain.TupleFilter{
		Relation: domain.RelationViewer,
		Object:   &obj,
	})
	if err != nil {
		s.logger.Warn("viewer read failed", "policy", policy.ID, "error", err)
		return domain.PolicyGrant{}, false
	}

	for _, t := range tuples {
		if t.Condition == nil || len(t.Condition.AllowedValues) == 0 {
			continue
		}
		if t.Subject == subject {
			return grantFrom(policy, t), true
		}
		if t.Subject.IsUserset() && s.memberOf(ctx, subject, t.Subject) {
			return grantFrom(policy, t), true
		}
	}
	return domain.PolicyGrant{}, false
}

// memberOf verifies the subject holds the userset's relation on the
// userset's object.
func (s *RowFilterService) memberOf(ctx context.Context, subject, userset domain.Subject) bool {
	object := domain.Object{Kind: userset.Kind, Name: userset.Name}
	ok, err := s.store.Check(ctx, subject, domain.Relation(userset.Relation), object)
	if err != nil {
		s.logger.Warn("membership check failed",
			"subject", subject.Ref(), "userset", userset.Ref(), "error", err)
		return false
	}
	return ok
}

func grantFrom(policy domain.RowFilterPolicy, t domain.Tuple) domain.PolicyGrant {
	return domain.PolicyGrant{
		Policy:        policy,
		Subject:       t.Subject,
		AllowedValues: t.Condition.AllowedValues,
	}
}

// inClause renders "<attribute> IN ('v1', 'v2')" with escaped values.
func inClause(attribute string, values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = escapeSQLValue(v)
	}
	return attribute + " IN ('" + strings.Join(escaped, "', '") + "')"
}

// GrantPolicy gives subject visibility into the policy filtering
// attribute on table, restricted to allowedValues. The policy object
// and its table link are created on first grant; a repeat grant for the
// same subject overwrites the previous value set.
func (s *RowFilterService) GrantPolicy(ctx context.Context, subject domain.Subject, table domain.Object, attribute string, allowedValues []string) (domain.RowFilterPolicy, error) {
	if len(allowedValues) == 0 {
		return domain.RowFilterPolicy{}, domain.ErrValidation("row filter grant requires at least one allowed value")
	}
	policy, err := domain.PolicyForAttribute(table, attribute)
	if err != nil {
		return domain.RowFilterPolicy{}, err
	}

	link := domain.Tuple{
		Subject:  domain.ObjectSubject(table),
		Relation: domain.RelationAppliesTo,
		Object:   policy.PolicyObject(),
	}
	existing, err := readExisting(ctx, s.store, link)
	if err != nil {
		return domain.RowFilterPolicy{}, err
	}
	if existing == nil {
		if err := s.store.Write(ctx, []domain.Tuple{link}, nil); err != nil {
			return domain.RowFilterPolicy{}, err
		}
	}

	viewer := domain.Tuple{
		Subject:  subject,
		Relation: domain.RelationViewer,
		Object:   policy.PolicyObject(),
		Condition: &domain.Condition{
			Name:          domain.HasAttributeAccess,
			AttributeName: attribute,
			AllowedValues: allowedValues,
		},
	}
	if err := overwrite(ctx, s.store, viewer); err != nil {
		return domain.RowFilterPolicy{}, err
	}

	s.logger.Info("row filter policy granted",
		"subject", subject.Ref(), "policy", policy.ID, "values", len(allowedValues))
	return policy, nil
}

// RevokePolicy removes subject's visibility into the policy. When the
// last viewer is gone the table link is removed too, so the policy
// stops applying entirely rather than lingering with no visible
// grants.
func (s *RowFilterService) RevokePolicy(ctx context.Context, subject domain.Subject, table domain.Object, attribute string) (domain.RowFilterPolicy, error) {
	policy, err := domain.PolicyForAttribute(table, attribute)
	if err != nil {
		return domain.RowFilterPolicy{}, err
	}
	obj := policy.PolicyObject()

	viewer := domain.Tuple{Subject: subject, Relation: domain.RelationViewer, Object: obj}
	existing, err := readExisting(ctx, s.store, viewer)
	if err != nil {
		return domain.RowFilterPolicy{}, err
	}
	if existing == nil {
		return domain.RowFilterPolicy{}, domain.ErrNotFound("no row filter grant for %s on policy %s",
			subject.Ref(), policy.ID)
	}
	if err := s.store.Write(ctx, nil, []domain.Tuple{viewer}); err != nil {
		return domain.RowFilterPolicy{}, err
	}

	remaining, err := s.store.Read(ctx, domain.TupleFilter{
		Relation: domain.RelationViewer,
		Object:   &obj,
	})
	if err == nil && len(remaining) == 0 {
		link := domain.Tuple{
			Subject:  domain.ObjectSubject(table),
			Relation: domain.RelationAppliesTo,
			Object:   obj,
		}
		if err := s.store.Write(ctx, nil, []domain.Tuple{link}); err != nil {
			s.logger.Warn("failed to remove table link for orphaned policy",
				"policy", policy.ID, "error", err)
		}
	}

	s.logger.Info("row filter policy revoked", "subject", subject.Ref(), "policy", policy.ID)
	return policy, nil
}

// ListGrants returns the policy grants visible to the subject on a
// table.
func (s *RowFilterService) ListGrants(ctx context.Context, subject domain.Subject, table domain.Object) ([]domain.PolicyGrant, error) {
	policies, err := s.PoliciesForTable(ctx, table)
	if err != nil {
		return nil, err
	}
	grants := make([]domain.PolicyGrant, 0, len(policies))
	for _, policy := range policies {
		if grant, ok := s.visibleGrant(ctx, subject, policy); ok {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}

// escapeSQLValue neutralizes quoting, statement separators, comment
// markers, backslashes and newlines, and bounds the length. Values
// originate from policy configuration, not end users, but they still
// end up inside SQL the engine executes.
//
// Order matters: length is bounded first so quote-doubling is never
// split mid-pair, comment markers are stripped to a fixpoint because
// removing other tokens can butt two hyphens together, and quotes are
// doubled last so no removal can recombine them.
func escapeSQLValue(v string) string {
	if len(v) > maxValueLen {
		v = v[:maxValueLen]
	}
	for _, tok := range []string{"\n", "\r", `\`, ";"} {
		v = strings.ReplaceAll(v, tok, "")
	}
	for strings.Contains(v, "--") {
		v = strings.ReplaceAll(v, "--", "")
	}
	return strings.ReplaceAll(v, "'", "''")
}
