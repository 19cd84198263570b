package auth

import "context"

const (
	RoleEmployee    = "employee"
	RoleManager     = "manager"
	RoleHR          = "hr"
	RoleSystemAdmin = "admin"
)

const (
	PermEvaluationRead    = "evaluation.read"
	PermEvaluationAssign  = "evaluation.assign"
	PermEvaluationReview  = "evaluation.review"
	PermEvaluationApprove = "evaluation.approve"
	PermActivityRead      = "activity.read"
)

var DefaultPermissions = []string{
	PermEvaluationRead,
	PermEvaluationAssign,
	PermEvaluationReview,
	PermEvaluationApprove,
	PermActivityRead,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermEvaluationRead,
	},
	RoleManager: {
		PermEvaluationRead,
		PermEvaluationReview,
	},
	RoleHR: {
		PermEvaluationRead,
		PermEvaluationAssign,
		PermEvaluationReview,
		PermEvaluationApprove,
		PermActivityRead,
	},
	RoleSystemAdmin: DefaultPermissions,
}

// StaticPermissions answers permission checks from RolePermissions.
type StaticPermissions struct {
	roles map[string]map[string]bool
}

func NewStaticPermissions(table map[string][]string) *StaticPermissions {
	roles := make(map[string]map[string]bool, len(table))
	for role, perms := range table {
		set := make(map[string]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		roles[role] = set
	}
	return &StaticPermissions{roles: roles}
}

func (s *StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	return s.roles[role][permission], nil
}
