package domain

import (
	"regexp"
	"time"
)

// InvitationStatus tracks the account lifecycle. Accounts are never hard
// deleted; deactivation is a status flag preserving audit history.
type InvitationStatus string

const (
	StatusInvited   InvitationStatus = "invited"
	StatusActive    InvitationStatus = "active"
	StatusInactive  InvitationStatus = "inactive"
	StatusUninvited InvitationStatus = "uninvited"
)

// VerificationState mirrors the signature verification record on the user.
type VerificationState string

const (
	NotVerified        VerificationState = "not_verified"
	VerifiedImage      VerificationState = "verified_image"
	VerifiedNotation   VerificationState = "verified_notation"
	VerifiedMSIdentity VerificationState = "verified_ms_identity"
)

var initialsPattern = regexp.MustCompile(`^[A-Za-z]{1,3}$`)

// ValidInitials enforces the ≤3 letters rule.
func ValidInitials(s string) bool {
	return initialsPattern.MatchString(s)
}

type User struct {
	ID                    string            `json:"id"`
	Email                 string            `json:"email"`
	LegalName             string            `json:"legalName"`
	Initials              string            `json:"initials"`
	Role                  Role              `json:"role"`
	InvitationStatus      InvitationStatus  `json:"invitationStatus"`
	Verification          VerificationState `json:"digitalSignatureVerification"`
	CanAccessAllDocuments bool              `json:"canAccessAllDocuments"`
	ErsdAcceptedAt        *time.Time        `json:"ersdAcceptedAt,omitempty"`

	// provider linkage, set on first successful sign-in
	ProviderObjectID string `json:"providerObjectId,omitempty"`
	ProviderTenantID string `json:"providerTenantId,omitempty"`

	InviteTokenHash string `json:"-"`

	Version int64     `json:"version"`
	CDate   time.Time `json:"cdate"`
	MDate   time.Time `json:"mdate"`
}

// Activate links the provider identity on first sign-in. Only invited
// accounts activate; anything else is an invalid transition.
func (u *User) Activate(objectID, tenantID string, now time.Time) error {
	if u.InvitationStatus != StatusInvited {
		return Errf(ErrInvalidState.Code, "user %s is %s, not invited", u.ID, u.InvitationStatus)
	}
	u.InvitationStatus = StatusActive
	u.ProviderObjectID = objectID
	u.ProviderTenantID = tenantID
	u.InviteTokenHash = ""
	return nil
}

// Withdraw retracts an invitation that was never accepted.
func (u *User) Withdraw() error {
	if u.InvitationStatus != StatusInvited {
		return Errf(ErrInvalidState.Code, "only invited users can be withdrawn")
	}
	u.InvitationStatus = StatusUninvited
	u.InviteTokenHash = ""
	return nil
}

func (u *User) Deactivate() error {
	if u.InvitationStatus != StatusActive {
		return Errf(ErrInvalidState.Code, "only active users can be deactivated")
	}
	u.InvitationStatus = StatusInactive
	return nil
}

func (u *User) Reactivate() error {
	if u.InvitationStatus != StatusInactive {
		return Errf(ErrInvalidState.Code, "only inactive users can be reactivated")
	}
	u.InvitationStatus = StatusActive
	return nil
}

// AcceptERSD records acceptance of the compliance disclosure. Idempotent.
func (u *User) AcceptERSD(now time.Time) {
	if u.ErsdAcceptedAt == nil {
		u.ErsdAcceptedAt = &now
	}
}
