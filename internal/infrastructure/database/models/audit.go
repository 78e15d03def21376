package models

import (
	"time"
)

// AuditEntry rows are append-only: written inside the entity repositories'
// transactions and never updated or deleted afterwards.
type AuditEntry struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	Timestamp   time.Time `json:"timestamp" gorm:"type:timestamp with time zone;not null;index"`
	ActorID     string    `json:"actorId" gorm:"type:text;index"`
	Action      string    `json:"action" gorm:"type:text;not null"`
	TargetType  string    `json:"targetType" gorm:"type:text;not null;index:idx_audit_target"`
	TargetID    string    `json:"targetId" gorm:"type:text;not null;index:idx_audit_target"`
	Category    string    `json:"category" gorm:"type:text;index"`
	DetailsKey  string    `json:"detailsKey" gorm:"type:text"`
	DetailsData string    `json:"detailsData" gorm:"type:jsonb"`
}
