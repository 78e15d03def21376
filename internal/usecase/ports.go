package usecase

import (
	"context"

	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
)

// DocumentRepository persists documents with optimistic concurrency. Update
// and Delete commit conditionally on the document's version and append the
// given audit entry in the same transaction; a lost race reports
// domain.ErrConflict and leaves prior state intact.
type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error
	Get(ctx context.Context, id string) (domain.Document, error)
	Update(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error
	Delete(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error

	// CreateCopy allocates the next copy number under a lock on the parent
	// row, so concurrent invocations yield gapless numbers 1..N.
	CreateCopy(ctx context.Context, parentID string, build func(copyNumber int) (domain.Document, domain.AuditEntry)) (domain.Document, error)
}

// UserRepository persists user accounts with optimistic concurrency.
type UserRepository interface {
	Create(ctx context.Context, user domain.User, entry domain.AuditEntry) error
	Get(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Update(ctx context.Context, user domain.User, entry domain.AuditEntry) error

	// SaveVerification commits the user row (CAS) together with its
	// verification record; a nil record clears it.
	SaveVerification(ctx context.Context, user domain.User, rec *domain.SignatureVerificationRecord, entry domain.AuditEntry) error
	GetVerification(ctx context.Context, userID string) (*domain.SignatureVerificationRecord, error)
}

// AuditRepository reads the append-only trail. Appends happen inside the
// entity repositories' transactions; there is no update or delete.
type AuditRepository interface {
	Query(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, int64, error)
}

// Identity is the assertion returned by the SSO provider.
type Identity struct {
	Email    string
	ObjectID string
	TenantID string
}

// IdentityGateway exchanges an access token for an identity assertion. The
// call is bounded by the caller's context deadline and reports
// domain.ErrTimeout when the provider does not answer in time.
type IdentityGateway interface {
	Resolve(ctx context.Context, accessToken string) (Identity, error)
}

// EventPublisher fans workflow events out to realtime/analytics consumers.
// Publishing is best-effort; failures must never fail the mutating operation.
type EventPublisher interface {
	Publish(ctx context.Context, event veratrail.Event) error
}
