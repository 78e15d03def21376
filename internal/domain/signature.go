package domain

import (
	"time"
)

// VerificationMethod is how a signature was attested.
type VerificationMethod string

const (
	MethodImage      VerificationMethod = "image"
	MethodNotation   VerificationMethod = "notation"
	MethodMSIdentity VerificationMethod = "ms_identity"
)

// SignatureVerificationRecord is the 1:1 attestation record on a user.
// Exactly one payload field is populated depending on Method.
type SignatureVerificationRecord struct {
	UserID     string             `json:"userId"`
	Method     VerificationMethod `json:"method"`
	ImageURL   string             `json:"imageUrl,omitempty"`
	Notation   string             `json:"notation,omitempty"`
	ObjectID   string             `json:"objectId,omitempty"`
	TenantID   string             `json:"tenantId,omitempty"`
	VerifiedBy string             `json:"verifiedBy"`
	VerifiedAt time.Time          `json:"verifiedAt"`
}

// State maps the record's method to the user-level verification state.
func (r SignatureVerificationRecord) State() VerificationState {
	switch r.Method {
	case MethodImage:
		return VerifiedImage
	case MethodNotation:
		return VerifiedNotation
	case MethodMSIdentity:
		return VerifiedMSIdentity
	default:
		return NotVerified
	}
}

// NewVerification validates the method/payload pairing and builds a record.
// For ms_identity the payload comes from the user's provider linkage, never
// from caller input.
func NewVerification(u User, method VerificationMethod, imageURL, notation, verifiedBy string, now time.Time) (SignatureVerificationRecord, error) {
	rec := SignatureVerificationRecord{
		UserID:     u.ID,
		Method:     method,
		VerifiedBy: verifiedBy,
		VerifiedAt: now,
	}
	switch method {
	case MethodImage:
		if imageURL == "" {
			return rec, Errf(ErrBadRequest.Code, "image verification requires an uploaded image")
		}
		rec.ImageURL = imageURL
	case MethodNotation:
		if notation == "" {
			return rec, Errf(ErrBadRequest.Code, "notation must be non-empty")
		}
		rec.Notation = notation
	case MethodMSIdentity:
		if u.ProviderObjectID == "" {
			return rec, Errf(ErrInvalidState.Code, "user has no linked provider identity")
		}
		rec.ObjectID = u.ProviderObjectID
		rec.TenantID = u.ProviderTenantID
	default:
		return rec, Errf(ErrBadRequest.Code, "unknown verification method %q", method)
	}
	return rec, nil
}
