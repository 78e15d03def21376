package presenter

import (
	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
)

// Document maps the domain entity onto its wire shape.
func Document(d domain.Document) veratrail.Document {
	out := veratrail.Document{
		ID:                 d.ID,
		Name:               d.Name,
		ExternalReference:  d.ExternalReference,
		Category:           d.Category,
		Stage:              string(d.Stage),
		Voided:             d.Voided,
		ParentID:           d.ParentID,
		CopyNumber:         d.CopyNumber,
		SourceFileURL:      d.SourceFileURL,
		ContentFingerprint: d.ContentFingerprint,
		Viewers:            d.Viewers,
		CreatedBy:          d.CreatedBy,
		Version:            d.Version,
		CDate:              d.CDate,
		MDate:              d.MDate,
	}
	for _, p := range d.Participants {
		out.Participants = append(out.Participants, veratrail.Participant{
			UserID:       p.UserID,
			Stage:        string(p.Stage),
			WorkflowRole: p.WorkflowRole,
			SigningOrder: p.SigningOrder,
			SignedAt:     p.SignedAt,
		})
	}
	return out
}

// User maps the domain account onto its wire shape. The invite token hash
// never leaves the server.
func User(u domain.User) veratrail.User {
	return veratrail.User{
		ID:                    u.ID,
		Email:                 u.Email,
		LegalName:             u.LegalName,
		Initials:              u.Initials,
		Role:                  string(u.Role),
		InvitationStatus:      string(u.InvitationStatus),
		Verification:          string(u.Verification),
		CanAccessAllDocuments: u.CanAccessAllDocuments,
		ErsdAcceptedAt:        u.ErsdAcceptedAt,
		Version:               u.Version,
	}
}

func Verification(r *domain.SignatureVerificationRecord) *veratrail.VerificationRecord {
	if r == nil {
		return nil
	}
	verifiedAt := r.VerifiedAt
	return &veratrail.VerificationRecord{
		Method:     string(r.Method),
		ImageURL:   r.ImageURL,
		Notation:   r.Notation,
		ObjectID:   r.ObjectID,
		TenantID:   r.TenantID,
		VerifiedBy: r.VerifiedBy,
		VerifiedAt: &verifiedAt,
	}
}

func AuditPage(entries []domain.AuditEntry, total int64, limit, offset int) veratrail.AuditPage {
	page := veratrail.AuditPage{
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, e := range entries {
		page.Entries = append(page.Entries, veratrail.AuditEntry{
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			ActorID:     e.ActorID,
			Action:      e.Action,
			TargetType:  string(e.TargetType),
			TargetID:    e.TargetID,
			DetailsKey:  e.DetailsKey,
			DetailsData: e.DetailsData,
		})
	}
	return page
}
