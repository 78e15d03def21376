package domain

// Role is one of the five capability tiers.
type Role string

const (
	RoleCollaborator Role = "collaborator"
	RoleCreator      Role = "creator"
	RoleUserManager  Role = "user_manager"
	RoleSiteAdmin    Role = "site_administrator"
	RoleTrialAdmin   Role = "trial_administrator"
)

// Capability is a named permission granted by a role.
type Capability string

const (
	CapManageSite        Capability = "MANAGE_SITE"
	CapManageUsers       Capability = "MANAGE_USERS"
	CapManageESignatures Capability = "MANAGE_ESIGNATURES"
	CapCreateDocuments   Capability = "CREATE_DOCUMENTS"
	CapCompleteDocuments Capability = "COMPLETE_DOCUMENTS"
)

// Capabilities ascend monotonically from Collaborator; the two administrator
// tiers are siblings with identical sets.
var roleCapabilities = map[Role]map[Capability]bool{
	RoleCollaborator: {
		CapCompleteDocuments: true,
	},
	RoleCreator: {
		CapCompleteDocuments: true,
		CapCreateDocuments:   true,
	},
	RoleUserManager: {
		CapCompleteDocuments: true,
		CapCreateDocuments:   true,
		CapManageUsers:       true,
		CapManageESignatures: true,
	},
	RoleSiteAdmin: {
		CapCompleteDocuments: true,
		CapCreateDocuments:   true,
		CapManageUsers:       true,
		CapManageESignatures: true,
		CapManageSite:        true,
	},
	RoleTrialAdmin: {
		CapCompleteDocuments: true,
		CapCreateDocuments:   true,
		CapManageUsers:       true,
		CapManageESignatures: true,
		CapManageSite:        true,
	},
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	_, ok := roleCapabilities[r]
	return ok
}

// HasCapability answers "does role R have capability C". Unknown roles have
// no capabilities; the check never errors.
func HasCapability(r Role, c Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	return caps[c]
}

func isAdmin(r Role) bool {
	return r == RoleSiteAdmin || r == RoleTrialAdmin
}

// CanAssignRole decides whether acting may set target on a user. selfEdit is
// true when the actor edits their own account; trialLicense reflects the
// tenant license status, outside of which TrialAdmin is not assignable.
func CanAssignRole(acting, target Role, selfEdit, trialLicense bool) bool {
	if !ValidRole(target) {
		return false
	}
	if target == RoleTrialAdmin && !trialLicense {
		return false
	}

	switch {
	case isAdmin(acting):
		if !selfEdit {
			return true
		}
		// an administrator may not lock themselves out
		if acting == RoleSiteAdmin {
			return target == RoleSiteAdmin
		}
		return isAdmin(target)
	case acting == RoleUserManager:
		return target == RoleCreator || target == RoleCollaborator
	default:
		return false
	}
}

// AssignableRoles enumerates the roles acting may offer in a role selector.
func AssignableRoles(acting Role, selfEdit, trialLicense bool) []Role {
	all := []Role{RoleCollaborator, RoleCreator, RoleUserManager, RoleSiteAdmin, RoleTrialAdmin}
	var out []Role
	for _, r := range all {
		if CanAssignRole(acting, r, selfEdit, trialLicense) {
			out = append(out, r)
		}
	}
	return out
}

// ParseRole maps a wire string to a Role, reporting validity.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, ValidRole(r)
}
