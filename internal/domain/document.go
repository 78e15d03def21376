package domain

import (
	"strings"
	"time"
)

// Stage is the ordered workflow position of a document. Closed is terminal
// and reachable only from Finalized.
type Stage string

const (
	StagePreApproval  Stage = "pre_approval"
	StageExecution    Stage = "execution"
	StagePostApproval Stage = "post_approval"
	StageFinalized    Stage = "finalized"
	StageClosed       Stage = "closed"
)

// workingStages are the stages that carry participant signing groups.
var workingStages = []Stage{StagePreApproval, StageExecution, StagePostApproval}

// WorkingStage reports whether s carries a signing group.
func WorkingStage(s Stage) bool {
	for _, w := range workingStages {
		if w == s {
			return true
		}
	}
	return false
}

// ParseStage maps a wire string to a Stage, reporting validity.
func ParseStage(s string) (Stage, bool) {
	switch Stage(s) {
	case StagePreApproval, StageExecution, StagePostApproval, StageFinalized, StageClosed:
		return Stage(s), true
	}
	return "", false
}

// Participant is one member of a per-stage signing group.
type Participant struct {
	UserID       string     `json:"userId"`
	Stage        Stage      `json:"stage"`
	WorkflowRole string     `json:"workflowRole"`
	SigningOrder *int       `json:"signingOrder,omitempty"`
	SignedAt     *time.Time `json:"signedAt,omitempty"`
}

type Document struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	ExternalReference  string  `json:"externalReference,omitempty"`
	Category           string  `json:"category,omitempty"`
	Stage              Stage   `json:"stage"`
	Voided             bool    `json:"voided"`
	ParentID           *string `json:"parentId,omitempty"`
	CopyNumber         int     `json:"copyNumber,omitempty"`
	SourceFileURL      string  `json:"sourceFileUrl,omitempty"`
	ContentFingerprint string  `json:"contentFingerprint,omitempty"`

	Participants []Participant `json:"participants"`
	Viewers      []string      `json:"viewers"`

	CreatedBy string    `json:"createdBy"`
	Version   int64     `json:"version"`
	CDate     time.Time `json:"cdate"`
	MDate     time.Time `json:"mdate"`
}

// --- access ---

// IsParticipant reports membership in the given stage's group.
func (d *Document) IsParticipant(userID string, stage Stage) bool {
	for _, p := range d.Participants {
		if p.UserID == userID && p.Stage == stage {
			return true
		}
	}
	return false
}

func (d *Document) isParticipantAnyStage(userID string) bool {
	for _, p := range d.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (d *Document) isViewer(userID string) bool {
	for _, v := range d.Viewers {
		if v == userID {
			return true
		}
	}
	return false
}

// CanRead decides read access. canAccessAllDocuments is a read-only override;
// it never grants write or signing rights.
func (d *Document) CanRead(u User) bool {
	if u.CanAccessAllDocuments {
		return true
	}
	if u.ID == d.CreatedBy || d.isParticipantAnyStage(u.ID) || d.isViewer(u.ID) {
		return true
	}
	return HasCapability(u.Role, CapManageSite)
}

// CanManage decides document-management rights (participants, viewers,
// destruction, copies).
func (d *Document) CanManage(u User) bool {
	return u.ID == d.CreatedBy || HasCapability(u.Role, CapManageSite)
}

func (d *Document) canActOnStage(u User, stage Stage) bool {
	return HasCapability(u.Role, CapCompleteDocuments) && d.IsParticipant(u.ID, stage)
}

// --- stage group state ---

// CurrentGroup returns the participants of the current stage.
func (d *Document) CurrentGroup() []Participant {
	var out []Participant
	for _, p := range d.Participants {
		if p.Stage == d.Stage {
			out = append(out, p)
		}
	}
	return out
}

// StageComplete reports whether every required signature of the current
// stage's group is present. An empty group is complete.
func (d *Document) StageComplete() bool {
	for _, p := range d.Participants {
		if p.Stage == d.Stage && p.SignedAt == nil {
			return false
		}
	}
	return true
}

// HasContent drives the Delete-vs-Void distinction: content uploaded or any
// signature collected makes destruction a regulated act.
func (d *Document) HasContent() bool {
	if d.ContentFingerprint != "" {
		return true
	}
	for _, p := range d.Participants {
		if p.SignedAt != nil {
			return true
		}
	}
	return false
}

func (d *Document) checkMutable() error {
	if d.Stage == StageClosed {
		return Errf(ErrTerminalState.Code, "document is closed")
	}
	if d.Voided {
		return Errf(ErrInvalidState.Code, "document is voided")
	}
	return nil
}

// --- transitions ---

// Sign records the acting user's signature for the current stage. When the
// group carries signing orders, signatures must arrive in ascending order.
func (d *Document) Sign(u User, now time.Time) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if !WorkingStage(d.Stage) {
		return Errf(ErrInvalidState.Code, "no signing group in stage %s", d.Stage)
	}
	if !d.canActOnStage(u, d.Stage) {
		return Errf(ErrUnauthorized.Code, "user %s is not a signer of the current stage", u.ID)
	}

	idx := -1
	for i, p := range d.Participants {
		if p.UserID == u.ID && p.Stage == d.Stage {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Errf(ErrUnauthorized.Code, "user %s is not a signer of the current stage", u.ID)
	}
	if d.Participants[idx].SignedAt != nil {
		return Errf(ErrInvalidState.Code, "already signed")
	}

	if order := d.Participants[idx].SigningOrder; order != nil {
		for _, p := range d.Participants {
			if p.Stage != d.Stage || p.SignedAt != nil || p.SigningOrder == nil {
				continue
			}
			if *p.SigningOrder < *order {
				return Errf(ErrOutOfOrder.Code, "signer %d must sign before signer %d", *p.SigningOrder, *order)
			}
		}
	}

	d.Participants[idx].SignedAt = &now
	return nil
}

// Advance moves exactly one step forward within the working stages.
// Finalization out of PostApproval goes through Finalize.
func (d *Document) Advance(u User) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	switch d.Stage {
	case StageFinalized:
		return Errf(ErrInvalidState.Code, "document is finalized; use reopen")
	case StagePostApproval:
		return Errf(ErrInvalidState.Code, "post-approval completes via finalize")
	}
	if !d.canActOnStage(u, d.Stage) && !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not advance this document", u.ID)
	}
	if !d.StageComplete() {
		return Errf(ErrStageIncomplete.Code, "signatures missing for stage %s", d.Stage)
	}
	switch d.Stage {
	case StagePreApproval:
		d.Stage = StageExecution
	case StageExecution:
		d.Stage = StagePostApproval
	}
	return nil
}

// Revert moves exactly one step backward. The reason is stored verbatim for
// audit readback and must meet the configured minimum length.
func (d *Document) Revert(u User, reason string, minReasonLen int) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if d.Stage == StageFinalized {
		return Errf(ErrInvalidState.Code, "document is finalized; use reopen")
	}
	if d.Stage == StagePreApproval {
		return Errf(ErrInvalidState.Code, "already at the first stage")
	}
	if !d.canActOnStage(u, d.Stage) && !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not revert this document", u.ID)
	}
	if len(strings.TrimSpace(reason)) < minReasonLen {
		return Errf(ErrReasonTooShort.Code, "reversion reason must be at least %d characters", minReasonLen)
	}
	switch d.Stage {
	case StageExecution:
		d.Stage = StagePreApproval
	case StagePostApproval:
		d.Stage = StageExecution
	}
	return nil
}

// Finalize is valid only from PostApproval, with the same completeness
// precondition as Advance.
func (d *Document) Finalize(u User) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if d.Stage != StagePostApproval {
		return Errf(ErrInvalidState.Code, "finalize is valid only from post-approval")
	}
	if !d.canActOnStage(u, d.Stage) && !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not finalize this document", u.ID)
	}
	if !d.StageComplete() {
		return Errf(ErrStageIncomplete.Code, "signatures missing for stage %s", d.Stage)
	}
	d.Stage = StageFinalized
	return nil
}

// Reopen reverts a finalized document to PostApproval, the stage immediately
// preceding finalization, so Finalize can later run again.
func (d *Document) Reopen(u User) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if d.Stage != StageFinalized {
		return Errf(ErrInvalidState.Code, "only finalized documents can be reopened")
	}
	if !d.CanManage(u) && !d.canActOnStage(u, StagePostApproval) {
		return Errf(ErrUnauthorized.Code, "user %s may not reopen this document", u.ID)
	}
	d.Stage = StagePostApproval
	return nil
}

// Close is terminal and irreversible through this API.
func (d *Document) Close(u User) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if d.Stage != StageFinalized {
		return Errf(ErrInvalidState.Code, "only finalized documents can be closed")
	}
	if !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not close this document", u.ID)
	}
	d.Stage = StageClosed
	return nil
}

// DeleteOutcome values for DecideDestruction.
const (
	OutcomeDeleted = "deleted"
	OutcomeVoided  = "voided"
)

// DecideDestruction resolves the Delete-vs-Void semantics. An empty document
// is hard-removed; once any content or signature exists the caller must have
// acknowledged the destruction warning and the document is soft-tombstoned.
func (d *Document) DecideDestruction(u User, confirmationAccepted bool) (string, error) {
	if d.Voided {
		return "", Errf(ErrInvalidState.Code, "document is already voided")
	}
	if !d.CanManage(u) {
		return "", Errf(ErrUnauthorized.Code, "user %s may not delete this document", u.ID)
	}
	if !d.HasContent() {
		return OutcomeDeleted, nil
	}
	if !confirmationAccepted {
		return "", Errf(ErrConfirmationRequired.Code, "destroying signed records requires explicit acknowledgement")
	}
	return OutcomeVoided, nil
}

// --- participants and viewers ---

func (d *Document) AddParticipant(u User, p Participant) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not manage participants", u.ID)
	}
	if !WorkingStage(p.Stage) {
		return Errf(ErrBadRequest.Code, "stage %s has no signing group", p.Stage)
	}
	if d.IsParticipant(p.UserID, p.Stage) {
		return Errf(ErrInvalidState.Code, "user %s is already a participant of stage %s", p.UserID, p.Stage)
	}
	if d.isViewer(p.UserID) {
		return Errf(ErrInvalidState.Code, "user %s is a viewer; viewers and participants are disjoint", p.UserID)
	}
	d.Participants = append(d.Participants, p)
	return nil
}

func (d *Document) RemoveParticipant(u User, userID string, stage Stage) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not manage participants", u.ID)
	}
	for i, p := range d.Participants {
		if p.UserID == userID && p.Stage == stage {
			d.Participants = append(d.Participants[:i], d.Participants[i+1:]...)
			d.renumberStage(stage)
			return nil
		}
	}
	return Errf(ErrNotFound.Code, "participant not found")
}

// SetSigningOrder turns the stage group into a strictly sequential queue.
// userIDs must cover the group exactly; orders are assigned 1..n contiguously.
func (d *Document) SetSigningOrder(u User, stage Stage, userIDs []string) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not manage participants", u.ID)
	}

	group := make(map[string]int)
	for i, p := range d.Participants {
		if p.Stage == stage {
			group[p.UserID] = i
		}
	}
	if len(userIDs) != len(group) {
		return Errf(ErrBadRequest.Code, "order must name every participant of stage %s exactly once", stage)
	}
	seen := make(map[string]bool)
	for _, id := range userIDs {
		if _, ok := group[id]; !ok || seen[id] {
			return Errf(ErrBadRequest.Code, "order must name every participant of stage %s exactly once", stage)
		}
		seen[id] = true
	}

	for pos, id := range userIDs {
		order := pos + 1
		d.Participants[group[id]].SigningOrder = &order
	}
	return nil
}

// renumberStage keeps orders contiguous from 1 after a removal.
func (d *Document) renumberStage(stage Stage) {
	var idxs []int
	for i, p := range d.Participants {
		if p.Stage == stage && p.SigningOrder != nil {
			idxs = append(idxs, i)
		}
	}
	for pos, i := range idxs {
		order := pos + 1
		d.Participants[i].SigningOrder = &order
	}
}

func (d *Document) AddViewer(u User, userID string) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not manage viewers", u.ID)
	}
	if d.isParticipantAnyStage(userID) {
		return Errf(ErrInvalidState.Code, "user %s is a participant; viewers and participants are disjoint", userID)
	}
	if d.isViewer(userID) {
		return Errf(ErrInvalidState.Code, "user %s is already a viewer", userID)
	}
	d.Viewers = append(d.Viewers, userID)
	return nil
}

// RemoveViewer revokes read access effective on the next access check.
func (d *Document) RemoveViewer(u User, userID string) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	if !d.CanManage(u) {
		return Errf(ErrUnauthorized.Code, "user %s may not manage viewers", u.ID)
	}
	for i, v := range d.Viewers {
		if v == userID {
			d.Viewers = append(d.Viewers[:i], d.Viewers[i+1:]...)
			return nil
		}
	}
	return Errf(ErrNotFound.Code, "viewer not found")
}

// NewControlledCopy clones content and metadata into a fresh document at
// PreApproval with all signatures cleared. The copy number is assigned by the
// repository under a lock on the parent row.
func (d *Document) NewControlledCopy(id string, copyNumber int, createdBy string, now time.Time) Document {
	parentID := d.ID
	copyDoc := Document{
		ID:                 id,
		Name:               d.Name,
		ExternalReference:  d.ExternalReference,
		Category:           d.Category,
		Stage:              StagePreApproval,
		ParentID:           &parentID,
		CopyNumber:         copyNumber,
		SourceFileURL:      d.SourceFileURL,
		ContentFingerprint: d.ContentFingerprint,
		Viewers:            append([]string(nil), d.Viewers...),
		CreatedBy:          createdBy,
		CDate:              now,
		MDate:              now,
	}
	for _, p := range d.Participants {
		p.SignedAt = nil
		copyDoc.Participants = append(copyDoc.Participants, p)
	}
	return copyDoc
}
