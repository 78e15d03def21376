package models

import (
	"time"

	"github.com/lib/pq"
)

type Document struct {
	ID                 string         `json:"id" gorm:"primaryKey;type:text"`
	Name               string         `json:"name" gorm:"type:text;not null"`
	ExternalReference  string         `json:"externalReference" gorm:"type:text"`
	Category           string         `json:"category" gorm:"type:text;index"`
	Stage              string         `json:"stage" gorm:"type:text;not null;index"`
	Voided             bool           `json:"voided" gorm:"not null;default:false"`
	ParentID           *string        `json:"parentId" gorm:"type:text;index"`
	CopyNumber         int            `json:"copyNumber" gorm:"not null;default:0"`
	SourceFileURL      string         `json:"sourceFileUrl" gorm:"type:text"`
	ContentFingerprint string         `json:"contentFingerprint" gorm:"type:text"`
	Viewers            pq.StringArray `json:"viewers" gorm:"type:text[]"`
	CreatedBy          string         `json:"createdBy" gorm:"type:text;index;not null"`
	Version            int64          `json:"version" gorm:"not null;default:0"`
	CDate              time.Time      `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate              time.Time      `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Participant struct {
	DocumentID   string     `json:"documentId" gorm:"primaryKey;type:text"`
	Document     Document   `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE;"`
	UserID       string     `json:"userId" gorm:"primaryKey;type:text;index"`
	Stage        string     `json:"stage" gorm:"primaryKey;type:text"`
	WorkflowRole string     `json:"workflowRole" gorm:"type:text"`
	SigningOrder *int       `json:"signingOrder"`
	SignedAt     *time.Time `json:"signedAt" gorm:"type:timestamp with time zone"`
}
