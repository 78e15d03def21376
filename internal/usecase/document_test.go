package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
)

type mockDocRepo struct {
	docs      map[string]domain.Document
	entries   []domain.AuditEntry
	copyCount map[string]int
	updateErr error
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{
		docs:      make(map[string]domain.Document),
		copyCount: make(map[string]int),
	}
}

func (m *mockDocRepo) Create(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error {
	m.docs[doc.ID] = doc
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockDocRepo) Get(ctx context.Context, id string) (domain.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, domain.Errf(domain.ErrNotFound.Code, "document %s not found", id)
	}
	return doc, nil
}

func (m *mockDocRepo) Update(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	doc.Version++
	m.docs[doc.ID] = doc
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockDocRepo) Delete(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error {
	delete(m.docs, doc.ID)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockDocRepo) CreateCopy(ctx context.Context, parentID string, build func(int) (domain.Document, domain.AuditEntry)) (domain.Document, error) {
	m.copyCount[parentID]++
	doc, entry := build(m.copyCount[parentID])
	m.docs[doc.ID] = doc
	m.entries = append(m.entries, entry)
	return doc, nil
}

func (m *mockDocRepo) lastEntry() domain.AuditEntry {
	return m.entries[len(m.entries)-1]
}

type mockPublisher struct {
	events []veratrail.Event
}

func (m *mockPublisher) Publish(ctx context.Context, e veratrail.Event) error {
	m.events = append(m.events, e)
	return nil
}

func creatorUser() domain.User {
	return domain.User{ID: "creator1", Role: domain.RoleCreator, InvitationStatus: domain.StatusActive}
}

func signerUser(id string) domain.User {
	return domain.User{ID: id, Role: domain.RoleCollaborator, InvitationStatus: domain.StatusActive}
}

func setupDocUC(t *testing.T) (*DocumentUsecase, *mockDocRepo, *mockPublisher) {
	t.Helper()
	repo := newMockDocRepo()
	pub := &mockPublisher{}
	uc := NewDocumentUsecase(repo, pub, domain.Config{})
	return uc, repo, pub
}

func TestDocumentLifecycleHappyPath(t *testing.T) {
	uc, repo, _ := setupDocUC(t)
	ctx := context.Background()
	creator := creatorUser()

	doc, err := uc.Create(ctx, creator, CreateDocumentInput{Name: "SOP-001"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if doc.Stage != domain.StagePreApproval {
		t.Fatalf("new document must start in pre-approval, got %s", doc.Stage)
	}

	alice := signerUser("alice")
	if _, err := uc.AddParticipant(ctx, creator, doc.ID, domain.Participant{UserID: "alice", Stage: domain.StagePreApproval}); err != nil {
		t.Fatalf("add participant failed: %v", err)
	}

	// unsigned group blocks the advance
	if _, err := uc.Advance(ctx, creator, doc.ID); !errors.Is(err, domain.ErrStageIncomplete) {
		t.Fatalf("expected StageIncomplete, got %v", err)
	}

	if _, err := uc.Sign(ctx, alice, doc.ID); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	got, err := uc.Advance(ctx, creator, doc.ID)
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if got.Stage != domain.StageExecution {
		t.Fatalf("expected execution, got %s", got.Stage)
	}

	if _, err := uc.Advance(ctx, creator, doc.ID); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if _, err := uc.Finalize(ctx, creator, doc.ID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	got, err = uc.Reopen(ctx, creator, doc.ID)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got.Stage != domain.StagePostApproval {
		t.Fatalf("reopen must land on post-approval, got %s", got.Stage)
	}
	if _, err := uc.Finalize(ctx, creator, doc.ID); err != nil {
		t.Fatalf("finalize after reopen failed: %v", err)
	}
	if _, err := uc.Close(ctx, creator, doc.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if e := repo.lastEntry(); e.Action != domain.ActionDocumentClosed {
		t.Fatalf("expected close audit entry, got %s", e.Action)
	}
}

func TestRevertStoresReasonVerbatim(t *testing.T) {
	uc, repo, _ := setupDocUC(t)
	ctx := context.Background()
	creator := creatorUser()

	doc, err := uc.Create(ctx, creator, CreateDocumentInput{Name: "SOP-002"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := uc.Advance(ctx, creator, doc.ID); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	if _, err := uc.Revert(ctx, creator, doc.ID, "abc"); !errors.Is(err, domain.ErrReasonTooShort) {
		t.Fatalf("expected ReasonTooShort, got %v", err)
	}

	reason := "Wrong template attached to execution stage"
	if _, err := uc.Revert(ctx, creator, doc.ID, reason); err != nil {
		t.Fatalf("revert failed: %v", err)
	}
	e := repo.lastEntry()
	if e.Action != domain.ActionStageReverted {
		t.Fatalf("expected revert entry, got %s", e.Action)
	}
	if e.DetailsData["reason"] != reason {
		t.Fatalf("reason must be stored verbatim, got %v", e.DetailsData["reason"])
	}
}

func TestConflictPropagates(t *testing.T) {
	uc, repo, _ := setupDocUC(t)
	ctx := context.Background()
	creator := creatorUser()

	doc, err := uc.Create(ctx, creator, CreateDocumentInput{Name: "SOP-003"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	repo.updateErr = domain.Errf(domain.ErrConflict.Code, "version mismatch")
	if _, err := uc.Advance(ctx, creator, doc.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestControlledCopyNumbering(t *testing.T) {
	uc, repo, _ := setupDocUC(t)
	ctx := context.Background()
	creator := creatorUser()

	parent, err := uc.Create(ctx, creator, CreateDocumentInput{Name: "SOP-004"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		copyDoc, err := uc.CreateControlledCopy(ctx, creator, parent.ID)
		if err != nil {
			t.Fatalf("copy %d failed: %v", i, err)
		}
		if copyDoc.CopyNumber != i {
			t.Fatalf("expected copy number %d, got %d", i, copyDoc.CopyNumber)
		}
		if copyDoc.ParentID == nil || *copyDoc.ParentID != parent.ID {
			t.Fatalf("copy must link its parent")
		}
		if copyDoc.Stage != domain.StagePreApproval {
			t.Fatalf("copy must start in pre-approval")
		}
	}

	e := repo.lastEntry()
	if e.Action != domain.ActionControlledCopyCreated || e.TargetID != parent.ID {
		t.Fatalf("copy audit entry must target the parent, got %s on %s", e.Action, e.TargetID)
	}
}

func TestDeleteOrVoidSemantics(t *testing.T) {
	uc, repo, _ := setupDocUC(t)
	ctx := context.Background()
	creator := creatorUser()

	// empty document deletes without confirmation
	doc, err := uc.Create(ctx, creator, CreateDocumentInput{Name: "empty"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	outcome, err := uc.DeleteOrVoid(ctx, creator, doc.ID, false)
	if err != nil || outcome != domain.OutcomeDeleted {
		t.Fatalf("expected deleted, got %s %v", outcome, err)
	}
	if _, err := uc.Get(ctx, creator, doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted document must be gone, got %v", err)
	}

	// signed content requires acknowledgement and voids
	doc, err = uc.Create(ctx, creator, CreateDocumentInput{Name: "signed"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	alice := signerUser("alice")
	if _, err := uc.AddParticipant(ctx, creator, doc.ID, domain.Participant{UserID: "alice", Stage: domain.StagePreApproval}); err != nil {
		t.Fatalf("add participant failed: %v", err)
	}
	if _, err := uc.Sign(ctx, alice, doc.ID); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := uc.DeleteOrVoid(ctx, creator, doc.ID, false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("expected ConfirmationRequired, got %v", err)
	}
	outcome, err = uc.DeleteOrVoid(ctx, creator, doc.ID, true)
	if err != nil || outcome != domain.OutcomeVoided {
		t.Fatalf("expected voided, got %s %v", outcome, err)
	}

	// voided documents stay queryable
	got, err := uc.Get(ctx, creator, doc.ID)
	if err != nil {
		t.Fatalf("voided document must stay queryable: %v", err)
	}
	if !got.Voided {
		t.Fatalf("document must be flagged voided")
	}
	if e := repo.lastEntry(); e.Action != domain.ActionDocumentVoided {
		t.Fatalf("expected void entry, got %s", e.Action)
	}
}

func TestRemovedViewerDeniedOnNextRead(t *testing.T) {
	uc, _, _ := setupDocUC(t)
	ctx := context.Background()
	creator := creatorUser()

	doc, err := uc.Create(ctx, creator, CreateDocumentInput{Name: "SOP-005"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	eve := signerUser("eve")
	if _, err := uc.AddViewer(ctx, creator, doc.ID, "eve"); err != nil {
		t.Fatalf("add viewer failed: %v", err)
	}
	if _, err := uc.Get(ctx, eve, doc.ID); err != nil {
		t.Fatalf("viewer read failed: %v", err)
	}

	if _, err := uc.RemoveViewer(ctx, creator, doc.ID, "eve"); err != nil {
		t.Fatalf("remove viewer failed: %v", err)
	}
	if _, err := uc.Get(ctx, eve, doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("removed viewer must get NotFound on the very next read, got %v", err)
	}
}

func TestSignOutOfOrder(t *testing.T) {
	uc, _, _ := setupDocUC(t)
	ctx := context.Background()
	creator := creatorUser()

	doc, err := uc.Create(ctx, creator, CreateDocumentInput{Name: "SOP-006"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, id := range []string{"alice", "bob"} {
		if _, err := uc.AddParticipant(ctx, creator, doc.ID, domain.Participant{UserID: id, Stage: domain.StagePreApproval}); err != nil {
			t.Fatalf("add participant failed: %v", err)
		}
	}
	if _, err := uc.SetSigningOrder(ctx, creator, doc.ID, domain.StagePreApproval, []string{"alice", "bob"}); err != nil {
		t.Fatalf("set order failed: %v", err)
	}

	if _, err := uc.Sign(ctx, signerUser("bob"), doc.ID); !errors.Is(err, domain.ErrOutOfOrder) {
		t.Fatalf("expected OutOfOrder, got %v", err)
	}
	if _, err := uc.Sign(ctx, signerUser("alice"), doc.ID); err != nil {
		t.Fatalf("alice sign failed: %v", err)
	}
	if _, err := uc.Sign(ctx, signerUser("bob"), doc.ID); err != nil {
		t.Fatalf("bob sign failed: %v", err)
	}
}

func TestEveryMutationAppendsOneEntry(t *testing.T) {
	uc, repo, pub := setupDocUC(t)
	ctx := context.Background()
	creator := creatorUser()

	doc, err := uc.Create(ctx, creator, CreateDocumentInput{Name: "SOP-007"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := uc.AddViewer(ctx, creator, doc.ID, "eve"); err != nil {
		t.Fatalf("add viewer failed: %v", err)
	}
	if _, err := uc.Advance(ctx, creator, doc.ID); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	if len(repo.entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(repo.entries))
	}
	if len(pub.events) != len(repo.entries) {
		t.Fatalf("every audit entry should fan out one event, got %d events for %d entries", len(pub.events), len(repo.entries))
	}
	for i, e := range repo.entries {
		if e.ID == "" || e.ActorID == "" {
			t.Fatalf("entry %d missing attribution: %+v", i, e)
		}
	}
}

func TestFailedPublishDoesNotFailOperation(t *testing.T) {
	repo := newMockDocRepo()
	uc := NewDocumentUsecase(repo, failingPublisher{}, domain.Config{})

	if _, err := uc.Create(context.Background(), creatorUser(), CreateDocumentInput{Name: "SOP-008"}); err != nil {
		t.Fatalf("create must succeed despite publish failure: %v", err)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, e veratrail.Event) error {
	return fmt.Errorf("sink unavailable at %s", time.Now())
}
