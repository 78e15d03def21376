package repository

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/infrastructure/database/models"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Query pages the trail newest first. The secondary id ordering keeps pages
// stable when entries share a timestamp.
func (r *AuditRepository) Query(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, int64, error) {
	scope := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if q.TargetType != "" {
		scope = scope.Where("target_type = ?", string(q.TargetType))
	}
	if q.TargetID != "" {
		scope = scope.Where("target_id = ?", q.TargetID)
	}
	if q.Category != "" {
		scope = scope.Where("category = ?", q.Category)
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count audit entries")
	}

	var rows []models.AuditEntry
	err := scope.
		Order("timestamp DESC, id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, translate(err, "query audit entries")
	}

	var entries []domain.AuditEntry
	for _, row := range rows {
		entry := domain.AuditEntry{
			ID:         row.ID,
			Timestamp:  row.Timestamp,
			ActorID:    row.ActorID,
			Action:     row.Action,
			TargetType: domain.TargetType(row.TargetType),
			TargetID:   row.TargetID,
			DetailsKey: row.DetailsKey,
		}
		if row.DetailsData != "" {
			var details map[string]any
			if err := json.Unmarshal([]byte(row.DetailsData), &details); err == nil {
				entry.DetailsData = details
			}
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}
