package domain

import "strings"

// HasAttributeAccess is the model condition name carried by row filter
// viewer tuples.
const HasAttributeAccess = "has_attribute_access"

// WildcardValue in a policy's allowed values means the policy places no
// restriction on the holder.
const WildcardValue = "*"

// RowFilterPolicy is an attribute-based row filter policy attached to a
// table. The policy id encodes the table path plus the filtered
// attribute as its final segment.
type RowFilterPolicy struct {
	ID        string // e.g. "cat.sch.tbl.region"
	Table     Object
	Attribute string
}

// PolicyObject returns the policy as a store object.
func (p RowFilterPolicy) PolicyObject() Object {
	return Object{Kind: KindRowFilterPolicy, Name: p.ID}
}

// PolicyForAttribute builds the policy governing an attribute of a
// table.
func PolicyForAttribute(table Object, attribute string) (RowFilterPolicy, error) {
	if table.Kind != KindTable {
		return RowFilterPolicy{}, ErrValidation("row filter policies attach to tables, not %s", table.Kind)
	}
	if attribute == "" {
		return RowFilterPolicy{}, ErrValidation("row filter policy requires an attribute name")
	}
	return RowFilterPolicy{
		ID:        table.Path() + "." + attribute,
		Table:     table,
		Attribute: attribute,
	}, nil
}

// ParsePolicyID splits a policy id into its table and attribute. The
// attribute is the final dot-separated segment.
func ParsePolicyID(id string) (RowFilterPolicy, error) {
	parts := strings.Split(id, ".")
	if len(parts) != 4 {
		return RowFilterPolicy{}, ErrValidation("policy id %q must be catalog.schema.table.attribute", id)
	}
	for _, p := range parts {
		if p == "" {
			return RowFilterPolicy{}, ErrValidation("policy id %q has an empty segment", id)
		}
	}
	return RowFilterPolicy{
		ID:        id,
		Table:     TableObject(parts[0], parts[1], parts[2]),
		Attribute: parts[3],
	}, nil
}

// PolicyGrant is a subject's visibility into a policy: the attribute
// constraint the condition payload carries.
type PolicyGrant struct {
	Policy        RowFilterPolicy
	Subject       Subject
	AllowedValues []string
}

// Unrestricted reports whether the grant's values include the wildcard.
func (g PolicyGrant) Unrestricted() bool {
	for _, v := range g.AllowedValues {
		if v == WildcardValue {
			return true
		}
	}
	return false
}
