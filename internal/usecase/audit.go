package usecase

import (
	"context"

	"github.com/veratrail/veratrail/internal/domain"
)

const (
	defaultAuditPageSize = 30
	maxAuditPageSize     = 100
)

type AuditUsecase struct {
	repo AuditRepository
}

func NewAuditUsecase(repo AuditRepository) *AuditUsecase {
	return &AuditUsecase{repo: repo}
}

// Query returns a newest-first page of the trail. Reading the trail requires
// site-management rights; the trail itself is append-only and immutable.
func (uc *AuditUsecase) Query(ctx context.Context, actor domain.User, q domain.AuditQuery) ([]domain.AuditEntry, int64, error) {
	if !domain.HasCapability(actor.Role, domain.CapManageSite) && !actor.CanAccessAllDocuments {
		return nil, 0, domain.Errf(domain.ErrUnauthorized.Code, "role %s may not read the audit trail", actor.Role)
	}
	if q.Limit <= 0 {
		q.Limit = defaultAuditPageSize
	}
	if q.Limit > maxAuditPageSize {
		q.Limit = maxAuditPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return uc.repo.Query(ctx, q)
}
