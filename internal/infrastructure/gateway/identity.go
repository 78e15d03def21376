package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/usecase"
)

var tracer = otel.Tracer("gateway")

// IdentityGateway resolves access tokens against the SSO provider's userinfo
// endpoint. Assertions are cached briefly so a burst of API calls from one
// session hits the provider once.
type IdentityGateway struct {
	endpoint string
	client   *http.Client
	cache    *gocache.Cache
}

func NewIdentityGateway(endpoint string) *IdentityGateway {
	return &IdentityGateway{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: gocache.New(1*time.Minute, 5*time.Minute),
	}
}

type userinfoResponse struct {
	Email    string `json:"email"`
	ObjectID string `json:"oid"`
	TenantID string `json:"tid"`
}

func (g *IdentityGateway) Resolve(ctx context.Context, accessToken string) (usecase.Identity, error) {
	ctx, span := tracer.Start(ctx, "Gateway.Identity.Resolve")
	defer span.End()

	if cached, ok := g.cache.Get(accessToken); ok {
		return cached.(usecase.Identity), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint, nil)
	if err != nil {
		return usecase.Identity{}, errors.Wrap(err, "build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return usecase.Identity{}, domain.Errf(domain.ErrTimeout.Code, "identity provider did not answer in time")
		}
		return usecase.Identity{}, errors.Wrap(err, "call userinfo endpoint")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return usecase.Identity{}, domain.Errf(domain.ErrUnauthorized.Code, "access token rejected by identity provider")
	default:
		return usecase.Identity{}, errors.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return usecase.Identity{}, errors.Wrap(err, "read userinfo response")
	}

	var info userinfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return usecase.Identity{}, errors.Wrap(err, "parse userinfo response")
	}
	if info.Email == "" {
		return usecase.Identity{}, domain.Errf(domain.ErrUnauthorized.Code, "identity assertion carries no email")
	}

	ident := usecase.Identity{
		Email:    info.Email,
		ObjectID: info.ObjectID,
		TenantID: info.TenantID,
	}
	g.cache.Set(accessToken, ident, gocache.DefaultExpiration)
	return ident, nil
}
