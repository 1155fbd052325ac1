package domain

import "strings"

// Subject is the principal side of a relationship tuple. Three forms
// exist: a plain user, a userset (every member of a role, tenant, or
// project), and a plain object subject used for structural links such
// as a table's applies_to edge to a row filter policy.
type Subject struct {
	Kind ObjectKind // empty for plain users
	Name string
	// Relation is the userset relation, e.g. "assignee" for roles or
	// "member" for tenants. Empty for plain users and object subjects.
	Relation string
}

// UserSubject builds a plain user subject.
func UserSubject(name string) Subject {
	return Subject{Name: name}
}

// RoleSubject builds a userset subject over a role's assignees.
func RoleSubject(role string) Subject {
	return Subject{Kind: KindRole, Name: role, Relation: "assignee"}
}

// TenantSubject builds a userset subject over a tenant's members.
func TenantSubject(tenant string) Subject {
	return Subject{Kind: KindTenant, Name: tenant, Relation: "member"}
}

// ObjectSubject builds a subject from an object, for structural tuples
// where an object sits on the subject side.
func ObjectSubject(o Object) Subject {
	return Subject{Kind: o.Kind, Name: o.Path()}
}

// IsUserset reports whether the subject is a userset.
func (s Subject) IsUserset() bool { return s.Kind != "" && s.Relation != "" }

// IsUser reports whether the subject is a plain user.
func (s Subject) IsUser() bool { return s.Kind == "" }

// Ref returns the canonical subject reference: "user:<name>" for plain
// users, "<kind>:<name>#<relation>" for usersets, "<kind>:<name>" for
// object subjects.
func (s Subject) Ref() string {
	if s.IsUser() {
		return "user:" + s.Name
	}
	if s.Relation == "" {
		return string(s.Kind) + ":" + s.Name
	}
	return string(s.Kind) + ":" + s.Name + "#" + s.Relation
}

// String implements fmt.Stringer.
func (s Subject) String() string { return s.Ref() }

// ParseSubject parses a subject reference produced by Ref. A bare name
// without a kind prefix is treated as a user.
func ParseSubject(ref string) (Subject, error) {
	kind, rest, ok := strings.Cut(ref, ":")
	if !ok {
		if ref == "" {
			return Subject{}, ErrValidation("subject reference is empty")
		}
		return UserSubject(ref), nil
	}
	name, rel, hasRel := strings.Cut(rest, "#")
	if kind == "user" {
		if hasRel {
			return Subject{}, ErrValidation("user subject %q cannot carry a userset relation", ref)
		}
		return UserSubject(name), nil
	}
	if hasRel && rel == "" {
		return Subject{}, ErrValidation("userset subject %q has an empty relation", ref)
	}
	return Subject{Kind: ObjectKind(kind), Name: name, Relation: rel}, nil
}
