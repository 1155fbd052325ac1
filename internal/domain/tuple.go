package domain

// Condition is an optional conditional payload attached to a tuple.
// Row filter viewer tuples carry the attribute name and value set the
// relation is conditioned on.
type Condition struct {
	Name          string
	AttributeName string
	AllowedValues []string
}

// Tuple is a single relationship: subject has relation on object.
type Tuple struct {
	Subject   Subject
	Relation  Relation
	Object    Object
	Condition *Condition
}

// TupleFilter selects tuples for reads. Zero-valued fields match
// anything; ObjectKind lets a read scope to an object type when no
// concrete object is known.
type TupleFilter struct {
	Subject    *Subject
	Relation   Relation
	Object     *Object
	ObjectKind ObjectKind
}
