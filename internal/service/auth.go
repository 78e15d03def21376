package service

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/usecase"
)

var tracer = otel.Tracer("auth")

// AuthService turns a bearer access token into the acting account. Only
// active accounts authenticate; invited accounts must complete sign-in first.
type AuthService struct {
	identity usecase.IdentityGateway
	users    usecase.UserRepository
}

func NewAuthService(identity usecase.IdentityGateway, users usecase.UserRepository) *AuthService {
	return &AuthService{
		identity: identity,
		users:    users,
	}
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Authenticate")
	defer span.End()

	ident, err := s.identity.Resolve(ctx, token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "identity resolution failed"))
		return domain.User{}, err
	}

	user, err := s.users.GetByEmail(ctx, ident.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.Errf(domain.ErrUnauthorized.Code, "no account for %s", ident.Email)
		}
		span.RecordError(err)
		return domain.User{}, err
	}

	if user.InvitationStatus != domain.StatusActive {
		return domain.User{}, domain.Errf(domain.ErrUnauthorized.Code, "account %s is %s", user.ID, user.InvitationStatus)
	}

	return user, nil
}
