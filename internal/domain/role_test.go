package domain

import "testing"

func TestHasCapabilityTable(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleCollaborator, CapCompleteDocuments, true},
		{RoleCollaborator, CapCreateDocuments, false},
		{RoleCollaborator, CapManageESignatures, false},
		{RoleCreator, CapCreateDocuments, true},
		{RoleCreator, CapManageUsers, false},
		{RoleUserManager, CapManageUsers, true},
		{RoleUserManager, CapManageESignatures, true},
		{RoleUserManager, CapManageSite, false},
		{RoleSiteAdmin, CapManageSite, true},
		{RoleTrialAdmin, CapManageSite, true},
		{Role("bogus"), CapCompleteDocuments, false},
	}
	for _, c := range cases {
		if got := HasCapability(c.role, c.cap); got != c.want {
			t.Errorf("HasCapability(%s, %s) = %v, want %v", c.role, c.cap, got, c.want)
		}
	}
}

func TestCanAssignRoleUserManager(t *testing.T) {
	if !CanAssignRole(RoleUserManager, RoleCreator, false, false) {
		t.Fatalf("user manager should assign creator")
	}
	if !CanAssignRole(RoleUserManager, RoleCollaborator, false, false) {
		t.Fatalf("user manager should assign collaborator")
	}
	if CanAssignRole(RoleUserManager, RoleSiteAdmin, false, false) {
		t.Fatalf("user manager must never assign an administrator tier")
	}
	if CanAssignRole(RoleUserManager, RoleUserManager, false, false) {
		t.Fatalf("user manager must not assign user manager")
	}
}

func TestCanAssignRoleAdminSelfEdit(t *testing.T) {
	if CanAssignRole(RoleSiteAdmin, RoleCreator, true, false) {
		t.Fatalf("site admin must not downgrade themself")
	}
	if !CanAssignRole(RoleSiteAdmin, RoleSiteAdmin, true, false) {
		t.Fatalf("site admin keeping their role must be allowed")
	}
	if !CanAssignRole(RoleTrialAdmin, RoleSiteAdmin, true, true) {
		t.Fatalf("trial admin may switch themself to site admin")
	}
	if CanAssignRole(RoleTrialAdmin, RoleCollaborator, true, true) {
		t.Fatalf("trial admin must not downgrade themself to a non-admin role")
	}
	if !CanAssignRole(RoleSiteAdmin, RoleCollaborator, false, false) {
		t.Fatalf("site admin may assign any role to others")
	}
}

func TestTrialAdminRequiresTrialLicense(t *testing.T) {
	if CanAssignRole(RoleSiteAdmin, RoleTrialAdmin, false, false) {
		t.Fatalf("trial admin must not be assignable outside trial license")
	}
	if !CanAssignRole(RoleSiteAdmin, RoleTrialAdmin, false, true) {
		t.Fatalf("trial admin should be assignable during trial")
	}
	roles := AssignableRoles(RoleSiteAdmin, false, false)
	for _, r := range roles {
		if r == RoleTrialAdmin {
			t.Fatalf("trial admin offered outside trial license")
		}
	}
}
