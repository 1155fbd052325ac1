package domain

// Relation is a permission relation in the authorization model.
type Relation string

const (
	RelationSelect       Relation = "select"
	RelationDescribe     Relation = "describe"
	RelationCreate       Relation = "create"
	RelationModify       Relation = "modify"
	RelationManageGrants Relation = "manage_grants"
	RelationMask         Relation = "mask"

	// Structural relations, not directly checkable as permissions.
	RelationParent    Relation = "parent"
	RelationAssignee  Relation = "assignee"
	RelationMember    Relation = "member"
	RelationViewer    Relation = "viewer"
	RelationAppliesTo Relation = "applies_to"
)

// PermissionRelations are the relations grantable on hierarchy objects,
// in the order they are reported by enumeration endpoints.
var PermissionRelations = []Relation{
	RelationSelect,
	RelationDescribe,
	RelationCreate,
	RelationModify,
	RelationManageGrants,
}

// ValidPermission reports whether r is a grantable permission relation.
func ValidPermission(r Relation) bool {
	for _, p := range PermissionRelations {
		if p == r {
			return true
		}
	}
	return r == RelationMask
}
