package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
)

type DocumentUsecase struct {
	repo   DocumentRepository
	signal EventPublisher
	config domain.Config
}

func NewDocumentUsecase(repo DocumentRepository, signal EventPublisher, config domain.Config) *DocumentUsecase {
	return &DocumentUsecase{repo: repo, signal: signal, config: config}
}

type CreateDocumentInput struct {
	Name               string
	ExternalReference  string
	Category           string
	SourceFileURL      string
	ContentFingerprint string
}

func newEntry(actor domain.User, action string, targetType domain.TargetType, targetID string, details map[string]any) domain.AuditEntry {
	return domain.AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ActorID:     actor.ID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		DetailsKey:  action,
		DetailsData: details,
	}
}

// emit publishes a workflow event best-effort; a failed publish never fails
// the operation that produced it.
func (uc *DocumentUsecase) emit(ctx context.Context, entry domain.AuditEntry) {
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
			slog.String("module", "document"),
		)
	}
}

func (uc *DocumentUsecase) Create(ctx context.Context, actor domain.User, input CreateDocumentInput) (domain.Document, error) {
	if !domain.HasCapability(actor.Role, domain.CapCreateDocuments) {
		return domain.Document{}, domain.Errf(domain.ErrUnauthorized.Code, "role %s may not create documents", actor.Role)
	}
	if input.Name == "" {
		return domain.Document{}, domain.Errf(domain.ErrBadRequest.Code, "document name is required")
	}

	now := time.Now().UTC()
	doc := domain.Document{
		ID:                 uuid.NewString(),
		Name:               input.Name,
		ExternalReference:  input.ExternalReference,
		Category:           input.Category,
		Stage:              domain.StagePreApproval,
		SourceFileURL:      input.SourceFileURL,
		ContentFingerprint: input.ContentFingerprint,
		CreatedBy:          actor.ID,
		CDate:              now,
		MDate:              now,
	}

	entry := newEntry(actor, domain.ActionDocumentCreated, domain.TargetDocument, doc.ID, map[string]any{
		"name": doc.Name,
	})
	if err := uc.repo.Create(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

// load fetches the document and applies access scoping: callers without read
// access get NotFound, never a hint that the document exists.
func (uc *DocumentUsecase) load(ctx context.Context, actor domain.User, id string) (domain.Document, error) {
	doc, err := uc.repo.Get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !doc.CanRead(actor) {
		return domain.Document{}, domain.Errf(domain.ErrNotFound.Code, "document %s not found", id)
	}
	return doc, nil
}

func (uc *DocumentUsecase) Get(ctx context.Context, actor domain.User, id string) (domain.Document, error) {
	return uc.load(ctx, actor, id)
}

func (uc *DocumentUsecase) Sign(ctx context.Context, actor domain.User, id string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.Sign(actor, time.Now().UTC()); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionDocumentSigned, domain.TargetDocument, doc.ID, map[string]any{
		"stage": string(doc.Stage),
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) Advance(ctx context.Context, actor domain.User, id string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	from := doc.Stage
	if err := doc.Advance(actor); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionStageAdvanced, domain.TargetDocument, doc.ID, map[string]any{
		"from": string(from),
		"to":   string(doc.Stage),
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) Revert(ctx context.Context, actor domain.User, id, reason string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	from := doc.Stage
	if err := doc.Revert(actor, reason, uc.config.RevertReasonFloor()); err != nil {
		return domain.Document{}, err
	}
	// the reason is stored verbatim for audit readback
	entry := newEntry(actor, domain.ActionStageReverted, domain.TargetDocument, doc.ID, map[string]any{
		"from":   string(from),
		"to":     string(doc.Stage),
		"reason": reason,
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) Finalize(ctx context.Context, actor domain.User, id string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.Finalize(actor); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionDocumentFinalized, domain.TargetDocument, doc.ID, nil)
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) Reopen(ctx context.Context, actor domain.User, id string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.Reopen(actor); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionDocumentReopened, domain.TargetDocument, doc.ID, map[string]any{
		"to": string(doc.Stage),
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) Close(ctx context.Context, actor domain.User, id string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.Close(actor); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionDocumentClosed, domain.TargetDocument, doc.ID, nil)
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

// DeleteOrVoid hard-removes an empty document or soft-tombstones one that
// carries content or signatures. The voided document stays queryable.
func (uc *DocumentUsecase) DeleteOrVoid(ctx context.Context, actor domain.User, id string, confirmationAccepted bool) (string, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return "", err
	}
	outcome, err := doc.DecideDestruction(actor, confirmationAccepted)
	if err != nil {
		return "", err
	}

	switch outcome {
	case domain.OutcomeDeleted:
		entry := newEntry(actor, domain.ActionDocumentDeleted, domain.TargetDocument, doc.ID, nil)
		if err := uc.repo.Delete(ctx, doc, entry); err != nil {
			return "", err
		}
		uc.emit(ctx, entry)
	case domain.OutcomeVoided:
		doc.Voided = true
		entry := newEntry(actor, domain.ActionDocumentVoided, domain.TargetDocument, doc.ID, nil)
		if err := uc.repo.Update(ctx, doc, entry); err != nil {
			return "", err
		}
		uc.emit(ctx, entry)
	}
	return outcome, nil
}

// CreateControlledCopy clones the document; numbering is serialized by the
// repository so concurrent copies of the same parent never collide.
func (uc *DocumentUsecase) CreateControlledCopy(ctx context.Context, actor domain.User, parentID string) (domain.Document, error) {
	if !domain.HasCapability(actor.Role, domain.CapCreateDocuments) {
		return domain.Document{}, domain.Errf(domain.ErrUnauthorized.Code, "role %s may not create documents", actor.Role)
	}
	parent, err := uc.load(ctx, actor, parentID)
	if err != nil {
		return domain.Document{}, err
	}
	if parent.Voided {
		return domain.Document{}, domain.Errf(domain.ErrInvalidState.Code, "cannot copy a voided document")
	}

	now := time.Now().UTC()
	var copyEntry domain.AuditEntry
	copyDoc, err := uc.repo.CreateCopy(ctx, parent.ID, func(copyNumber int) (domain.Document, domain.AuditEntry) {
		c := parent.NewControlledCopy(uuid.NewString(), copyNumber, actor.ID, now)
		copyEntry = newEntry(actor, domain.ActionControlledCopyCreated, domain.TargetDocument, parent.ID, map[string]any{
			"copyId":     c.ID,
			"copyNumber": c.CopyNumber,
		})
		return c, copyEntry
	})
	if err != nil {
		return domain.Document{}, err
	}

	uc.emit(ctx, copyEntry)
	return copyDoc, nil
}

func (uc *DocumentUsecase) AddParticipant(ctx context.Context, actor domain.User, id string, p domain.Participant) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.AddParticipant(actor, p); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionParticipantAdded, domain.TargetDocument, doc.ID, map[string]any{
		"userId": p.UserID,
		"stage":  string(p.Stage),
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) RemoveParticipant(ctx context.Context, actor domain.User, id, userID string, stage domain.Stage) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.RemoveParticipant(actor, userID, stage); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionParticipantRemoved, domain.TargetDocument, doc.ID, map[string]any{
		"userId": userID,
		"stage":  string(stage),
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) SetSigningOrder(ctx context.Context, actor domain.User, id string, stage domain.Stage, userIDs []string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.SetSigningOrder(actor, stage, userIDs); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionSigningOrderChanged, domain.TargetDocument, doc.ID, map[string]any{
		"stage": string(stage),
		"order": userIDs,
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) AddViewer(ctx context.Context, actor domain.User, id, userID string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.AddViewer(actor, userID); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionViewerAdded, domain.TargetDocument, doc.ID, map[string]any{
		"userId": userID,
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}

func (uc *DocumentUsecase) RemoveViewer(ctx context.Context, actor domain.User, id, userID string) (domain.Document, error) {
	doc, err := uc.load(ctx, actor, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := doc.RemoveViewer(actor, userID); err != nil {
		return domain.Document{}, err
	}
	entry := newEntry(actor, domain.ActionViewerRemoved, domain.TargetDocument, doc.ID, map[string]any{
		"userId": userID,
	})
	if err := uc.repo.Update(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	uc.emit(ctx, entry)
	return doc, nil
}
