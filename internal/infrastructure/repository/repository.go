package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/infrastructure/database/models"
)

// translate maps driver-level failures onto the domain error taxonomy so
// callers can switch on errors.Is without importing gorm.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.Errf(domain.ErrNotFound.Code, "%s: not found", op)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.Errf(domain.ErrConflict.Code, "%s: duplicate key", op)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Errf(domain.ErrTimeout.Code, "%s: deadline exceeded", op)
	default:
		return errors.Wrap(err, op)
	}
}

func auditModel(entry domain.AuditEntry) (models.AuditEntry, error) {
	details := ""
	if entry.DetailsData != nil {
		raw, err := json.Marshal(entry.DetailsData)
		if err != nil {
			return models.AuditEntry{}, errors.Wrap(err, "marshal audit details")
		}
		details = string(raw)
	}
	return models.AuditEntry{
		ID:          entry.ID,
		Timestamp:   entry.Timestamp,
		ActorID:     entry.ActorID,
		Action:      entry.Action,
		TargetType:  string(entry.TargetType),
		TargetID:    entry.TargetID,
		Category:    domain.Category(entry.Action),
		DetailsKey:  entry.DetailsKey,
		DetailsData: details,
	}, nil
}

// appendAudit writes one trail row inside the caller's transaction.
func appendAudit(tx *gorm.DB, entry domain.AuditEntry) error {
	row, err := auditModel(entry)
	if err != nil {
		return err
	}
	return tx.Create(&row).Error
}
