package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/bradfitz/gomemcache/memcache"
	"gorm.io/gorm"

	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/infrastructure/database/models"
)

const userCacheTTL = 300 // seconds

type UserRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewUserRepository(db *gorm.DB, mc *memcache.Client) *UserRepository {
	return &UserRepository{db: db, mc: mc}
}

func userModel(u domain.User) models.User {
	return models.User{
		ID:                    u.ID,
		Email:                 u.Email,
		LegalName:             u.LegalName,
		Initials:              u.Initials,
		Role:                  string(u.Role),
		InvitationStatus:      string(u.InvitationStatus),
		Verification:          string(u.Verification),
		CanAccessAllDocuments: u.CanAccessAllDocuments,
		ErsdAcceptedAt:        u.ErsdAcceptedAt,
		ProviderObjectID:      u.ProviderObjectID,
		ProviderTenantID:      u.ProviderTenantID,
		InviteTokenHash:       u.InviteTokenHash,
		Version:               u.Version,
		CDate:                 u.CDate,
		MDate:                 u.MDate,
	}
}

func userEntity(m models.User) domain.User {
	return domain.User{
		ID:                    m.ID,
		Email:                 m.Email,
		LegalName:             m.LegalName,
		Initials:              m.Initials,
		Role:                  domain.Role(m.Role),
		InvitationStatus:      domain.InvitationStatus(m.InvitationStatus),
		Verification:          domain.VerificationState(m.Verification),
		CanAccessAllDocuments: m.CanAccessAllDocuments,
		ErsdAcceptedAt:        m.ErsdAcceptedAt,
		ProviderObjectID:      m.ProviderObjectID,
		ProviderTenantID:      m.ProviderTenantID,
		InviteTokenHash:       m.InviteTokenHash,
		Version:               m.Version,
		CDate:                 m.CDate,
		MDate:                 m.MDate,
	}
}

func userCacheKey(id string) string {
	return "vt:user:" + id
}

func (r *UserRepository) Create(ctx context.Context, user domain.User, entry domain.AuditEntry) error {
	row := userModel(user)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return appendAudit(tx, entry)
	})
	return translate(err, "create user")
}

// Get is read-through cached. Mutations invalidate the key before returning,
// so a cached role never outlives a role change.
func (r *UserRepository) Get(ctx context.Context, id string) (domain.User, error) {
	if r.mc != nil {
		if item, err := r.mc.Get(userCacheKey(id)); err == nil {
			var user domain.User
			if err := json.Unmarshal(item.Value, &user); err == nil {
				return user, nil
			}
		}
	}

	var row models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return domain.User{}, translate(err, "get user")
	}

	user := userEntity(row)
	r.cacheSet(user)
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var row models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Take(&row).Error
	if err != nil {
		return domain.User{}, translate(err, "get user by email")
	}
	return userEntity(row), nil
}

func (r *UserRepository) Update(ctx context.Context, user domain.User, entry domain.AuditEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.commitUser(tx, user); err != nil {
			return err
		}
		return appendAudit(tx, entry)
	})
	if err != nil {
		return translate(err, "update user")
	}
	r.cacheDelete(user.ID)
	return nil
}

func (r *UserRepository) SaveVerification(ctx context.Context, user domain.User, rec *domain.SignatureVerificationRecord, entry domain.AuditEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.commitUser(tx, user); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.SignatureVerification{}).Error; err != nil {
			return err
		}
		if rec != nil {
			row := models.SignatureVerification{
				UserID:     rec.UserID,
				Method:     string(rec.Method),
				ImageURL:   rec.ImageURL,
				Notation:   rec.Notation,
				ObjectID:   rec.ObjectID,
				TenantID:   rec.TenantID,
				VerifiedBy: rec.VerifiedBy,
				VerifiedAt: rec.VerifiedAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return appendAudit(tx, entry)
	})
	if err != nil {
		return translate(err, "save verification")
	}
	r.cacheDelete(user.ID)
	return nil
}

func (r *UserRepository) GetVerification(ctx context.Context, userID string) (*domain.SignatureVerificationRecord, error) {
	var row models.SignatureVerification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "get verification")
	}
	return &domain.SignatureVerificationRecord{
		UserID:     row.UserID,
		Method:     domain.VerificationMethod(row.Method),
		ImageURL:   row.ImageURL,
		Notation:   row.Notation,
		ObjectID:   row.ObjectID,
		TenantID:   row.TenantID,
		VerifiedBy: row.VerifiedBy,
		VerifiedAt: row.VerifiedAt,
	}, nil
}

// commitUser performs the versioned write shared by Update and
// SaveVerification.
func (r *UserRepository) commitUser(tx *gorm.DB, user domain.User) error {
	result := tx.Model(&models.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]any{
			"email":                    user.Email,
			"legal_name":               user.LegalName,
			"initials":                 user.Initials,
			"role":                     string(user.Role),
			"invitation_status":        string(user.InvitationStatus),
			"verification":             string(user.Verification),
			"can_access_all_documents": user.CanAccessAllDocuments,
			"ersd_accepted_at":         user.ErsdAcceptedAt,
			"provider_object_id":       user.ProviderObjectID,
			"provider_tenant_id":       user.ProviderTenantID,
			"invite_token_hash":        user.InviteTokenHash,
			"version":                  user.Version + 1,
			"m_date":                   gorm.Expr("clock_timestamp()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.Errf(domain.ErrNotFound.Code, "user %s not found", user.ID)
		}
		return domain.Errf(domain.ErrConflict.Code, "user %s was modified concurrently", user.ID)
	}
	return nil
}

func (r *UserRepository) cacheSet(user domain.User) {
	if r.mc == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	err = r.mc.Set(&memcache.Item{
		Key:        userCacheKey(user.ID),
		Value:      raw,
		Expiration: userCacheTTL,
	})
	if err != nil {
		slog.Warn("user cache set failed", slog.String("module", "repository"), slog.String("error", err.Error()))
	}
}

func (r *UserRepository) cacheDelete(id string) {
	if r.mc == nil {
		return
	}
	err := r.mc.Delete(userCacheKey(id))
	if err != nil && err != memcache.ErrCacheMiss {
		slog.Warn("user cache invalidation failed", slog.String("module", "repository"), slog.String("error", err.Error()))
	}
}
