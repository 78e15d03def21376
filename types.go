package veratrail

import (
	"time"
)

// ErrorCode is the stable machine-readable code attached to every API failure.
type ErrorCode string

const (
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeInvalidState         ErrorCode = "invalid_state"
	CodeTerminalState        ErrorCode = "terminal_state"
	CodeStageIncomplete      ErrorCode = "stage_incomplete"
	CodeReasonTooShort       ErrorCode = "reason_too_short"
	CodeConfirmationRequired ErrorCode = "confirmation_required"
	CodeOutOfOrder           ErrorCode = "out_of_order"
	CodeConflict             ErrorCode = "conflict"
	CodeTimeout              ErrorCode = "timeout"
	CodeNotFound             ErrorCode = "not_found"
	CodeBadRequest           ErrorCode = "bad_request"
	CodeInternal             ErrorCode = "internal_error"
)

// APIError is the error envelope returned for every failed call.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Document is the wire representation of a document and its workflow state.
type Document struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	ExternalReference  string        `json:"externalReference,omitempty"`
	Category           string        `json:"category,omitempty"`
	Stage              string        `json:"stage"`
	Voided             bool          `json:"voided"`
	ParentID           *string       `json:"parentId,omitempty"`
	CopyNumber         int           `json:"copyNumber,omitempty"`
	SourceFileURL      string        `json:"sourceFileUrl,omitempty"`
	ContentFingerprint string        `json:"contentFingerprint,omitempty"`
	Participants       []Participant `json:"participants"`
	Viewers            []string      `json:"viewers"`
	CreatedBy          string        `json:"createdBy"`
	Version            int64         `json:"version"`
	CDate              time.Time     `json:"cdate"`
	MDate              time.Time     `json:"mdate"`
}

// Participant is one member of a per-stage signing group.
type Participant struct {
	UserID       string     `json:"userId"`
	Stage        string     `json:"stage"`
	WorkflowRole string     `json:"workflowRole"`
	SigningOrder *int       `json:"signingOrder,omitempty"`
	SignedAt     *time.Time `json:"signedAt,omitempty"`
}

// User is the wire representation of an account.
type User struct {
	ID                    string              `json:"id"`
	Email                 string              `json:"email"`
	LegalName             string              `json:"legalName"`
	Initials              string              `json:"initials"`
	Role                  string              `json:"role"`
	InvitationStatus      string              `json:"invitationStatus"`
	Verification          string              `json:"digitalSignatureVerification"`
	VerificationRecord    *VerificationRecord `json:"verificationRecord,omitempty"`
	CanAccessAllDocuments bool                `json:"canAccessAllDocuments"`
	ErsdAcceptedAt        *time.Time          `json:"ersdAcceptedAt,omitempty"`
	Version               int64               `json:"version"`
}

// VerificationRecord describes how a user's digital signature was attested.
type VerificationRecord struct {
	Method     string     `json:"method"`
	ImageURL   string     `json:"imageUrl,omitempty"`
	Notation   string     `json:"notation,omitempty"`
	ObjectID   string     `json:"objectId,omitempty"`
	TenantID   string     `json:"tenantId,omitempty"`
	VerifiedBy string     `json:"verifiedBy"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

// AuditEntry is one immutable line of the audit trail.
type AuditEntry struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	ActorID     string         `json:"actorId"`
	Action      string         `json:"action"`
	TargetType  string         `json:"targetType"`
	TargetID    string         `json:"targetId"`
	DetailsKey  string         `json:"detailsKey,omitempty"`
	DetailsData map[string]any `json:"detailsData,omitempty"`
}

// AuditPage is a newest-first page of the audit trail.
type AuditPage struct {
	Entries []AuditEntry `json:"entries"`
	Total   int64        `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// Event is the realtime notification fanned out to open UI sessions.
type Event struct {
	Type       string    `json:"type"`
	TargetType string    `json:"targetType"`
	TargetID   string    `json:"targetId"`
	ActorID    string    `json:"actorId"`
	Timestamp  time.Time `json:"timestamp"`
}

// --- request payloads ---

type CreateDocumentRequest struct {
	Name               string `json:"name"`
	ExternalReference  string `json:"externalReference,omitempty"`
	Category           string `json:"category,omitempty"`
	SourceFileURL      string `json:"sourceFileUrl,omitempty"`
	ContentFingerprint string `json:"contentFingerprint,omitempty"`
}

type RevertRequest struct {
	Reason string `json:"reason"`
}

type DeleteOrVoidRequest struct {
	ConfirmationAccepted bool `json:"confirmationAccepted"`
}

// DeleteOrVoidResult reports which destructive semantics applied.
type DeleteOrVoidResult struct {
	Outcome string `json:"outcome"` // deleted | voided
}

type AddParticipantRequest struct {
	UserID       string `json:"userId"`
	Stage        string `json:"stage"`
	WorkflowRole string `json:"workflowRole"`
	SigningOrder *int   `json:"signingOrder,omitempty"`
}

// SigningOrderRequest renumbers a stage group; user ids are taken in the
// given order and assigned 1..n contiguously.
type SigningOrderRequest struct {
	Stage   string   `json:"stage"`
	UserIDs []string `json:"userIds"`
}

type AddViewerRequest struct {
	UserID string `json:"userId"`
}

type InviteUserRequest struct {
	Email     string `json:"email"`
	LegalName string `json:"legalName"`
	Initials  string `json:"initials"`
	Role      string `json:"role"`
}

// InviteUserResponse carries the one-time invitation token. Only its hash is
// kept server-side.
type InviteUserResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type ChangeRoleRequest struct {
	Role string `json:"role"`
}

type VerifySignatureRequest struct {
	Method   string `json:"method"`
	ImageURL string `json:"imageUrl,omitempty"`
	Notation string `json:"notation,omitempty"`
}

type ViewScopeRequest struct {
	CanAccessAllDocuments bool `json:"canAccessAllDocuments"`
}

// SessionRequest completes an identity-provider sign-in. The access token is
// exchanged against the provider's userinfo endpoint; the invite token is
// required only on an invited account's first sign-in.
type SessionRequest struct {
	AccessToken string `json:"accessToken"`
	InviteToken string `json:"inviteToken,omitempty"`
}

type UploadResponse struct {
	URL         string `json:"url"`
	Fingerprint string `json:"fingerprint"`
}
