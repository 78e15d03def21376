package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/present/rest/presenter"
	"github.com/veratrail/veratrail/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth   *service.AuthService
	config domain.Config
}

func NewAuthMiddleware(
	auth *service.AuthService,
	config domain.Config,
) *AuthMiddleware {
	return &AuthMiddleware{
		auth:   auth,
		config: config,
	}
}

// IdentifyIdentity resolves the bearer token into the acting account and
// stores it on the request context. Resolution failures leave the request
// anonymous; enforcement happens in RequireSession.
func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyIdentity")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			if authType, token := split[0], split[1]; authType == "Bearer" {
				user, err := s.auth.Authenticate(ctx, token)
				if err != nil {
					span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: authentication failed"))
					goto skipCheckAuthorization
				}

				ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, user.ID)
				ctx = context.WithValue(ctx, domain.RequesterUserCtxKey, user)
				span.SetAttributes(attribute.String("RequesterId", user.ID))
			} else {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
			}
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireSession rejects anonymous requests.
func (s *AuthMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := RequesterUser(c); !ok {
			return presenter.Unauthenticated(c, "authentication required")
		}
		return next(c)
	}
}

// RequireERSD gates signing routes on the compliance disclosure.
func (s *AuthMiddleware) RequireERSD(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := RequesterUser(c)
		if !ok {
			return presenter.Unauthenticated(c, "authentication required")
		}
		if user.ErsdAcceptedAt == nil {
			return presenter.Error(c, domain.Errf(domain.ErrUnauthorized.Code, "electronic records disclosure not yet accepted"))
		}
		return next(c)
	}
}

// RequesterUser extracts the acting account stored by IdentifyIdentity.
func RequesterUser(c echo.Context) (domain.User, bool) {
	user, ok := c.Request().Context().Value(domain.RequesterUserCtxKey).(domain.User)
	return user, ok
}
