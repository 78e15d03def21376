package repository

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/infrastructure/database/models"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func documentModel(d domain.Document) models.Document {
	return models.Document{
		ID:                 d.ID,
		Name:               d.Name,
		ExternalReference:  d.ExternalReference,
		Category:           d.Category,
		Stage:              string(d.Stage),
		Voided:             d.Voided,
		ParentID:           d.ParentID,
		CopyNumber:         d.CopyNumber,
		SourceFileURL:      d.SourceFileURL,
		ContentFingerprint: d.ContentFingerprint,
		Viewers:            d.Viewers,
		CreatedBy:          d.CreatedBy,
		Version:            d.Version,
		CDate:              d.CDate,
		MDate:              d.MDate,
	}
}

func documentEntity(m models.Document, parts []models.Participant) domain.Document {
	doc := domain.Document{
		ID:                 m.ID,
		Name:               m.Name,
		ExternalReference:  m.ExternalReference,
		Category:           m.Category,
		Stage:              domain.Stage(m.Stage),
		Voided:             m.Voided,
		ParentID:           m.ParentID,
		CopyNumber:         m.CopyNumber,
		SourceFileURL:      m.SourceFileURL,
		ContentFingerprint: m.ContentFingerprint,
		Viewers:            m.Viewers,
		CreatedBy:          m.CreatedBy,
		Version:            m.Version,
		CDate:              m.CDate,
		MDate:              m.MDate,
	}
	for _, p := range parts {
		doc.Participants = append(doc.Participants, domain.Participant{
			UserID:       p.UserID,
			Stage:        domain.Stage(p.Stage),
			WorkflowRole: p.WorkflowRole,
			SigningOrder: p.SigningOrder,
			SignedAt:     p.SignedAt,
		})
	}
	return doc
}

func participantModels(d domain.Document) []models.Participant {
	var out []models.Participant
	for _, p := range d.Participants {
		out = append(out, models.Participant{
			DocumentID:   d.ID,
			UserID:       p.UserID,
			Stage:        string(p.Stage),
			WorkflowRole: p.WorkflowRole,
			SigningOrder: p.SigningOrder,
			SignedAt:     p.SignedAt,
		})
	}
	return out
}

func (r *DocumentRepository) Create(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error {
	row := documentModel(doc)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if parts := participantModels(doc); len(parts) > 0 {
			if err := tx.Create(&parts).Error; err != nil {
				return err
			}
		}
		return appendAudit(tx, entry)
	})
	return translate(err, "create document")
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (domain.Document, error) {
	var row models.Document
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return domain.Document{}, translate(err, "get document")
	}

	var parts []models.Participant
	err = r.db.WithContext(ctx).
		Where("document_id = ?", id).
		Order("stage, signing_order NULLS LAST, user_id").
		Find(&parts).Error
	if err != nil {
		return domain.Document{}, translate(err, "get document participants")
	}

	return documentEntity(row, parts), nil
}

// Update commits conditionally on the version the caller loaded. A lost race
// leaves the row untouched and reports Conflict.
func (r *DocumentRepository) Update(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Document{}).
			Where("id = ? AND version = ?", doc.ID, doc.Version).
			Updates(map[string]any{
				"name":                doc.Name,
				"external_reference":  doc.ExternalReference,
				"category":            doc.Category,
				"stage":               string(doc.Stage),
				"voided":              doc.Voided,
				"source_file_url":     doc.SourceFileURL,
				"content_fingerprint": doc.ContentFingerprint,
				"viewers":             pq.StringArray(doc.Viewers),
				"version":             doc.Version + 1,
				"m_date":              gorm.Expr("clock_timestamp()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.Errf(domain.ErrNotFound.Code, "document %s not found", doc.ID)
			}
			return domain.Errf(domain.ErrConflict.Code, "document %s was modified concurrently", doc.ID)
		}

		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		if parts := participantModels(doc); len(parts) > 0 {
			if err := tx.Create(&parts).Error; err != nil {
				return err
			}
		}
		return appendAudit(tx, entry)
	})
	return translate(err, "update document")
}

// Delete hard-removes an empty document. The audit entry survives the row.
func (r *DocumentRepository) Delete(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND version = ?", doc.ID, doc.Version).
			Delete(&models.Document{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.Errf(domain.ErrNotFound.Code, "document %s not found", doc.ID)
			}
			return domain.Errf(domain.ErrConflict.Code, "document %s was modified concurrently", doc.ID)
		}
		return appendAudit(tx, entry)
	})
	return translate(err, "delete document")
}

// CreateCopy locks the parent row so concurrent copies draw gapless numbers.
func (r *DocumentRepository) CreateCopy(ctx context.Context, parentID string, build func(copyNumber int) (domain.Document, domain.AuditEntry)) (domain.Document, error) {
	var created domain.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", parentID).
			Take(&parent).Error
		if err != nil {
			return err
		}

		var maxCopy int
		err = tx.Model(&models.Document{}).
			Where("parent_id = ?", parentID).
			Select("COALESCE(MAX(copy_number), 0)").
			Scan(&maxCopy).Error
		if err != nil {
			return err
		}

		doc, entry := build(maxCopy + 1)
		row := documentModel(doc)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if parts := participantModels(doc); len(parts) > 0 {
			if err := tx.Create(&parts).Error; err != nil {
				return err
			}
		}
		if err := appendAudit(tx, entry); err != nil {
			return err
		}

		created = doc
		return nil
	})
	if err != nil {
		return domain.Document{}, translate(err, "create controlled copy")
	}
	return created, nil
}
