package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/present/rest/middleware"
	"github.com/veratrail/veratrail/internal/service"
	"github.com/veratrail/veratrail/internal/usecase"
)

// --- mocks ---

type mockDocRepo struct {
	docs    map[string]domain.Document
	entries []domain.AuditEntry
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{docs: make(map[string]domain.Document)}
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
	n := 0
	for _, d := range m.docs {
		if d.ParentID != nil && *d.ParentID == parentID {
			n++
		}
	}
	doc, entry := build(n + 1)
	m.docs[doc.ID] = doc
	m.entries = append(m.entries, entry)
	return doc, nil
}

type mockUserRepo struct {
	users   map[string]domain.User
	records map[string]*domain.SignatureVerificationRecord
	entries []domain.AuditEntry
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:   make(map[string]domain.User),
		records: make(map[string]*domain.SignatureVerificationRecord),
	}
}

func (m *mockUserRepo) Create(ctx context.Context, user domain.User, entry domain.AuditEntry) error {
	m.users[user.ID] = user
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockUserRepo) Get(ctx context.Context, id string) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.Errf(domain.ErrNotFound.Code, "user %s not found", id)
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.Errf(domain.ErrNotFound.Code, "user %s not found", email)
}

func (m *mockUserRepo) Update(ctx context.Context, user domain.User, entry domain.AuditEntry) error {
	user.Version++
	m.users[user.ID] = user
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockUserRepo) SaveVerification(ctx context.Context, user domain.User, rec *domain.SignatureVerificationRecord, entry domain.AuditEntry) error {
	user.Version++
	m.users[user.ID] = user
	m.records[user.ID] = rec
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockUserRepo) GetVerification(ctx context.Context, userID string) (*domain.SignatureVerificationRecord, error) {
	return m.records[userID], nil
}

type mockAuditRepo struct {
	entries []domain.AuditEntry
}

func (m *mockAuditRepo) Query(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, int64, error) {
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if q.TargetID != "" && e.TargetID != q.TargetID {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

// tokenIdentity maps bearer tokens directly onto provider assertions.
type tokenIdentity struct {
	byToken map[string]usecase.Identity
}

func (m *tokenIdentity) Resolve(ctx context.Context, accessToken string) (usecase.Identity, error) {
	ident, ok := m.byToken[accessToken]
	if !ok {
		return usecase.Identity{}, domain.Errf(domain.ErrUnauthorized.Code, "access token rejected")
	}
	return ident, nil
}

// --- fixture ---

type fixture struct {
	e     *echo.Echo
	docs  *mockDocRepo
	users *mockUserRepo
	audit *mockAuditRepo
	ident *tokenIdentity
}

func setup(t *testing.T) *fixture {
	t.Helper()

	docs := newMockDocRepo()
	users := newMockUserRepo()
	audit := &mockAuditRepo{}
	ident := &tokenIdentity{byToken: make(map[string]usecase.Identity)}

	site := domain.Config{FQDN: "veratrail.example.com"}

	documentUC := usecase.NewDocumentUsecase(docs, nil, site)
	userUC := usecase.NewUserUsecase(users, ident, nil, site)
	signatureUC := usecase.NewSignatureUsecase(users, nil)
	auditUC := usecase.NewAuditUsecase(audit)

	auth := service.NewAuthService(ident, users)
	authMiddleware := middleware.NewAuthMiddleware(auth, site)

	e := echo.New()
	e.Use(authMiddleware.IdentifyIdentity)

	h := NewHandler(site, documentUC, userUC, signatureUC, auditUC, nil, nil)
	h.RegisterRoutes(e, authMiddleware)

	return &fixture{e: e, docs: docs, users: users, audit: audit, ident: ident}
}

// addUser registers an active account reachable via the bearer token of the
// same name.
func (f *fixture) addUser(u domain.User) {
	f.users.users[u.ID] = u
	f.ident.byToken[u.ID] = usecase.Identity{Email: u.Email}
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	f.e.ServeHTTP(res, req)
	return res
}

func now() *time.Time {
	t := time.Now().UTC()
	return &t
}

func activeCreator(id, email string) domain.User {
	return domain.User{
		ID:               id,
		Email:            email,
		Role:             domain.RoleCreator,
		InvitationStatus: domain.StatusActive,
		ErsdAcceptedAt:   now(),
	}
}

// --- tests ---

func TestAnonymousRequestRejected(t *testing.T) {
	f := setup(t)

	res := f.do(http.MethodPost, "/api/v1/documents", "", veratrail.CreateDocumentRequest{Name: "SOP-1"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestCreateAndFetchDocument(t *testing.T) {
	f := setup(t)
	f.addUser(activeCreator("c1", "c1@example.com"))

	res := f.do(http.MethodPost, "/api/v1/documents", "c1", veratrail.CreateDocumentRequest{
		Name:     "SOP-1",
		Category: "sop",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", res.Code, res.Body.String())
	}

	var doc veratrail.Document
	if err := json.Unmarshal(res.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Stage != string(domain.StagePreApproval) {
		t.Fatalf("new document must start at pre_approval, got %s", doc.Stage)
	}

	res = f.do(http.MethodGet, "/api/v1/documents/"+doc.ID, "c1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
}

func TestReadScopingHidesDocuments(t *testing.T) {
	f := setup(t)
	f.addUser(activeCreator("c1", "c1@example.com"))
	outsider := activeCreator("c2", "c2@example.com")
	f.addUser(outsider)

	res := f.do(http.MethodPost, "/api/v1/documents", "c1", veratrail.CreateDocumentRequest{Name: "SOP-1"})
	var doc veratrail.Document
	json.Unmarshal(res.Body.Bytes(), &doc)

	// an unrelated account sees 404, never 403
	res = f.do(http.MethodGet, "/api/v1/documents/"+doc.ID, "c2", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", res.Code)
	}

	var apiErr veratrail.APIError
	json.Unmarshal(res.Body.Bytes(), &apiErr)
	if apiErr.Code != veratrail.CodeNotFound {
		t.Fatalf("expected not_found code, got %s", apiErr.Code)
	}
}

func TestSignRequiresERSD(t *testing.T) {
	f := setup(t)
	creator := activeCreator("c1", "c1@example.com")
	f.addUser(creator)

	signer := domain.User{
		ID:               "s1",
		Email:            "s1@example.com",
		Role:             domain.RoleCollaborator,
		InvitationStatus: domain.StatusActive,
	}
	f.addUser(signer)

	res := f.do(http.MethodPost, "/api/v1/documents", "c1", veratrail.CreateDocumentRequest{Name: "SOP-1"})
	var doc veratrail.Document
	json.Unmarshal(res.Body.Bytes(), &doc)

	f.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/participants", "c1", veratrail.AddParticipantRequest{
		UserID: "s1",
		Stage:  string(domain.StagePreApproval),
	})

	res = f.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/sign", "s1", nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("signing without ERSD acceptance must be rejected, got %d", res.Code)
	}

	f.do(http.MethodPost, "/api/v1/users/me/ersd", "s1", nil)

	res = f.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/sign", "s1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 after acceptance, got %d: %s", res.Code, res.Body.String())
	}
}

func TestRevertReasonValidation(t *testing.T) {
	f := setup(t)
	creator := activeCreator("c1", "c1@example.com")
	f.addUser(creator)

	res := f.do(http.MethodPost, "/api/v1/documents", "c1", veratrail.CreateDocumentRequest{Name: "SOP-1"})
	var doc veratrail.Document
	json.Unmarshal(res.Body.Bytes(), &doc)

	// creator has no signing group; advance succeeds on the empty stage
	res = f.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/advance", "c1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("advance failed: %d %s", res.Code, res.Body.String())
	}

	res = f.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/revert", "c1", veratrail.RevertRequest{Reason: "typo"})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short reason must yield 422, got %d", res.Code)
	}
	var apiErr veratrail.APIError
	json.Unmarshal(res.Body.Bytes(), &apiErr)
	if apiErr.Code != veratrail.CodeReasonTooShort {
		t.Fatalf("expected reason_too_short, got %s", apiErr.Code)
	}

	res = f.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/revert", "c1", veratrail.RevertRequest{Reason: "wrong revision attached"})
	if res.Code != http.StatusOK {
		t.Fatalf("revert failed: %d %s", res.Code, res.Body.String())
	}
}

func TestDeleteEmptyVersusSigned(t *testing.T) {
	f := setup(t)
	creator := activeCreator("c1", "c1@example.com")
	f.addUser(creator)

	res := f.do(http.MethodPost, "/api/v1/documents", "c1", veratrail.CreateDocumentRequest{Name: "empty"})
	var empty veratrail.Document
	json.Unmarshal(res.Body.Bytes(), &empty)

	res = f.do(http.MethodDelete, "/api/v1/documents/"+empty.ID, "c1", veratrail.DeleteOrVoidRequest{})
	var result veratrail.DeleteOrVoidResult
	json.Unmarshal(res.Body.Bytes(), &result)
	if result.Outcome != "deleted" {
		t.Fatalf("empty document must be hard-deleted, got %s", result.Outcome)
	}

	res = f.do(http.MethodPost, "/api/v1/documents", "c1", veratrail.CreateDocumentRequest{
		Name:               "signed",
		ContentFingerprint: "abc123",
	})
	var signed veratrail.Document
	json.Unmarshal(res.Body.Bytes(), &signed)

	res = f.do(http.MethodDelete, "/api/v1/documents/"+signed.ID, "c1", veratrail.DeleteOrVoidRequest{})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("destroying content without acknowledgement must yield 422, got %d", res.Code)
	}

	res = f.do(http.MethodDelete, "/api/v1/documents/"+signed.ID, "c1", veratrail.DeleteOrVoidRequest{ConfirmationAccepted: true})
	json.Unmarshal(res.Body.Bytes(), &result)
	if result.Outcome != "voided" {
		t.Fatalf("document with content must be voided, got %s", result.Outcome)
	}
}

func TestSessionActivatesInvitedAccount(t *testing.T) {
	f := setup(t)
	manager := domain.User{
		ID:               "um1",
		Email:            "um1@example.com",
		Role:             domain.RoleUserManager,
		InvitationStatus: domain.StatusActive,
	}
	f.addUser(manager)

	res := f.do(http.MethodPost, "/api/v1/users", "um1", veratrail.InviteUserRequest{
		Email:     "new@example.com",
		LegalName: "New User",
		Initials:  "NU",
		Role:      string(domain.RoleCollaborator),
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("invite failed: %d %s", res.Code, res.Body.String())
	}
	var invited veratrail.InviteUserResponse
	json.Unmarshal(res.Body.Bytes(), &invited)
	if invited.Token == "" {
		t.Fatalf("invite must return the one-time token")
	}

	f.ident.byToken["new-access"] = usecase.Identity{Email: "new@example.com", ObjectID: "obj-9"}

	res = f.do(http.MethodPost, "/api/v1/session", "", veratrail.SessionRequest{
		AccessToken: "new-access",
		InviteToken: invited.Token,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("session failed: %d %s", res.Code, res.Body.String())
	}
	var activated veratrail.User
	json.Unmarshal(res.Body.Bytes(), &activated)
	if activated.InvitationStatus != string(domain.StatusActive) {
		t.Fatalf("expected active, got %s", activated.InvitationStatus)
	}
}

func TestAuditQueryRequiresRights(t *testing.T) {
	f := setup(t)
	f.addUser(activeCreator("c1", "c1@example.com"))
	admin := domain.User{
		ID:               "a1",
		Email:            "a1@example.com",
		Role:             domain.RoleSiteAdmin,
		InvitationStatus: domain.StatusActive,
	}
	f.addUser(admin)

	res := f.do(http.MethodGet, "/api/v1/audit", "c1", nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("creator must not read the trail, got %d", res.Code)
	}

	f.audit.entries = append(f.audit.entries, domain.AuditEntry{
		ID:         "e1",
		Action:     domain.ActionDocumentCreated,
		TargetType: domain.TargetDocument,
		TargetID:   "d1",
	})

	res = f.do(http.MethodGet, "/api/v1/audit?targetId=d1", "a1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("audit query failed: %d %s", res.Code, res.Body.String())
	}
	var page veratrail.AuditPage
	json.Unmarshal(res.Body.Bytes(), &page)
	if page.Total != 1 || len(page.Entries) != 1 {
		t.Fatalf("expected one entry, got %+v", page)
	}
}
