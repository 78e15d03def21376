package providers

import (
	"context"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/veratrail/veratrail/internal/config"
	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/infrastructure/database"
	"github.com/veratrail/veratrail/internal/infrastructure/gateway"
)

// NewDatabase opens a Postgres connection using the configured DSN.
func NewDatabase(conf config.Server) (*gorm.DB, error) {
	return database.NewPostgres(conf.PostgresDsn)
}

// MigrateDatabase applies migrations for the application models.
func MigrateDatabase(db *gorm.DB) error {
	return database.MigratePostgres(db)
}

// NewMemcache creates a memcache client.
func NewMemcache(conf config.Server) *memcache.Client {
	return database.NewMemcached(conf.MemcachedAddr)
}

// NewRedis creates the pub/sub client for the signal service.
func NewRedis(conf config.Server) *redis.Client {
	return database.NewRedis(conf.RedisAddr, "", conf.RedisDB)
}

// NewIdentityGateway constructs the SSO userinfo client.
func NewIdentityGateway(conf config.Server) *gateway.IdentityGateway {
	return gateway.NewIdentityGateway(conf.IdentityEndpoint)
}

// NewFileStore constructs the S3-backed blob store, or nil when no bucket is
// configured.
func NewFileStore(ctx context.Context, conf config.Server) (*gateway.FileStore, error) {
	if conf.FileBucket == "" {
		return nil, nil
	}
	return gateway.NewFileStore(ctx, conf.FileBucket, conf.FileRegion)
}

// SiteConfig maps the loaded configuration onto the domain settings.
func SiteConfig(conf config.Config) domain.Config {
	return domain.Config{
		FQDN:               conf.Site.FQDN,
		TrialLicense:       conf.Site.TrialLicense,
		MinRevertReasonLen: conf.Site.MinRevertReasonLen,
	}
}
