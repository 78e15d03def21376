package domain

import (
	"time"
)

// TargetType scopes the audit trail key.
type TargetType string

const (
	TargetDocument TargetType = "document"
	TargetUser     TargetType = "user"
)

// Audit actions. Every mutating operation appends exactly one entry; entries
// are never edited or removed, even when the subject is later deactivated or
// voided.
const (
	ActionDocumentCreated       = "DOCUMENT_CREATED"
	ActionDocumentSigned        = "DOCUMENT_SIGNED"
	ActionStageAdvanced         = "DOCUMENT_STAGE_ADVANCED"
	ActionStageReverted         = "DOCUMENT_STAGE_REVERTED"
	ActionDocumentFinalized     = "DOCUMENT_FINALIZED"
	ActionDocumentReopened      = "DOCUMENT_REOPENED"
	ActionDocumentClosed        = "DOCUMENT_CLOSED"
	ActionDocumentDeleted       = "DOCUMENT_DELETED"
	ActionDocumentVoided        = "DOCUMENT_VOIDED"
	ActionControlledCopyCreated = "DOCUMENT_CONTROLLED_COPY_CREATED"
	ActionParticipantAdded      = "DOCUMENT_PARTICIPANT_ADDED"
	ActionParticipantRemoved    = "DOCUMENT_PARTICIPANT_REMOVED"
	ActionSigningOrderChanged   = "DOCUMENT_SIGNING_ORDER_CHANGED"
	ActionViewerAdded           = "DOCUMENT_VIEWER_ADDED"
	ActionViewerRemoved         = "DOCUMENT_VIEWER_REMOVED"

	ActionUserInvited          = "USER_INVITED"
	ActionUserWithdrawn        = "USER_INVITATION_WITHDRAWN"
	ActionUserActivated        = "USER_ACTIVATED"
	ActionUserDeactivated      = "USER_DEACTIVATED"
	ActionUserReactivated      = "USER_REACTIVATED"
	ActionUserRoleChanged      = "USER_ROLE_CHANGED"
	ActionUserErsdAccepted     = "USER_ERSD_ACCEPTED"
	ActionSignatureVerified    = "USER_SIGNATURE_VERIFIED"
	ActionSignatureRevoked     = "USER_SIGNATURE_REVOKED"
	ActionUserViewScopeChanged = "USER_VIEW_SCOPE_CHANGED"
)

// Category groups actions for the audit viewer's filter.
func Category(action string) string {
	switch action {
	case ActionStageAdvanced, ActionStageReverted, ActionDocumentFinalized,
		ActionDocumentReopened, ActionDocumentClosed:
		return "stage"
	case ActionDocumentSigned, ActionSignatureVerified, ActionSignatureRevoked:
		return "signature"
	case ActionParticipantAdded, ActionParticipantRemoved,
		ActionSigningOrderChanged, ActionViewerAdded, ActionViewerRemoved:
		return "access"
	case ActionUserInvited, ActionUserWithdrawn, ActionUserActivated,
		ActionUserDeactivated, ActionUserReactivated, ActionUserRoleChanged,
		ActionUserErsdAccepted, ActionUserViewScopeChanged:
		return "user"
	default:
		return "document"
	}
}

// AuditEntry is one line of the append-only trail.
type AuditEntry struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	ActorID     string         `json:"actorId"`
	Action      string         `json:"action"`
	TargetType  TargetType     `json:"targetType"`
	TargetID    string         `json:"targetId"`
	DetailsKey  string         `json:"detailsKey,omitempty"`
	DetailsData map[string]any `json:"detailsData,omitempty"`
}

// AuditQuery selects a page of the trail, newest first.
type AuditQuery struct {
	TargetType TargetType
	TargetID   string
	Category   string
	Limit      int
	Offset     int
}
