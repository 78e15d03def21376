package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
)

type SignatureUsecase struct {
	users  UserRepository
	signal EventPublisher
}

func NewSignatureUsecase(users UserRepository, signal EventPublisher) *SignatureUsecase {
	return &SignatureUsecase{users: users, signal: signal}
}

type VerifyInput struct {
	Method   domain.VerificationMethod
	ImageURL string
	Notation string
}

func (uc *SignatureUsecase) emit(ctx context.Context, entry domain.AuditEntry) {
	if uc.signal == nil {
		return
	}
	err := uc.signal.Publish(ctx, veratrail.Event{
		Type:       entry.Action,
		TargetType: string(entry.TargetType),
		TargetID:   entry.TargetID,
		ActorID:    entry.ActorID,
		Timestamp:  entry.Timestamp,
	})
	if err != nil {
		slog.WarnContext(ctx, "event publish failed",
			slog.String("error", err.Error()),
			slog.String("module", "signature"),
		)
	}
}

// Verify creates or overwrites the target user's verification record.
func (uc *SignatureUsecase) Verify(ctx context.Context, actor domain.User, userID string, input VerifyInput) (domain.SignatureVerificationRecord, error) {
	if !domain.HasCapability(actor.Role, domain.CapManageESignatures) {
		return domain.SignatureVerificationRecord{}, domain.Errf(domain.ErrUnauthorized.Code, "role %s may not manage e-signatures", actor.Role)
	}
	user, err := uc.users.Get(ctx, userID)
	if err != nil {
		return domain.SignatureVerificationRecord{}, err
	}

	rec, err := domain.NewVerification(user, input.Method, input.ImageURL, input.Notation, actor.ID, time.Now().UTC())
	if err != nil {
		return domain.SignatureVerificationRecord{}, err
	}
	user.Verification = rec.State()

	entry := newEntry(actor, domain.ActionSignatureVerified, domain.TargetUser, user.ID, map[string]any{
		"method": string(rec.Method),
	})
	if err := uc.users.SaveVerification(ctx, user, &rec, entry); err != nil {
		return domain.SignatureVerificationRecord{}, err
	}
	uc.emit(ctx, entry)
	return rec, nil
}

// Revoke unconditionally clears the verification record back to
// not_verified. Revoking an already-unverified user is a no-op success.
func (uc *SignatureUsecase) Revoke(ctx context.Context, actor domain.User, userID string) error {
	if !domain.HasCapability(actor.Role, domain.CapManageESignatures) {
		return domain.Errf(domain.ErrUnauthorized.Code, "role %s may not manage e-signatures", actor.Role)
	}
	user, err := uc.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.Verification == domain.NotVerified {
		return nil
	}

	user.Verification = domain.NotVerified
	entry := newEntry(actor, domain.ActionSignatureRevoked, domain.TargetUser, user.ID, nil)
	if err := uc.users.SaveVerification(ctx, user, nil, entry); err != nil {
		return err
	}
	uc.emit(ctx, entry)
	return nil
}

func (uc *SignatureUsecase) Get(ctx context.Context, actor domain.User, userID string) (*domain.SignatureVerificationRecord, error) {
	if actor.ID != userID && !domain.HasCapability(actor.Role, domain.CapManageESignatures) {
		return nil, domain.Errf(domain.ErrNotFound.Code, "user %s not found", userID)
	}
	return uc.users.GetVerification(ctx, userID)
}
