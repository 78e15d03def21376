package models

import (
	"time"
)

type User struct {
	ID                    string     `json:"id" gorm:"primaryKey;type:text"`
	Email                 string     `json:"email" gorm:"type:text;uniqueIndex;not null"`
	LegalName             string     `json:"legalName" gorm:"type:text"`
	Initials              string     `json:"initials" gorm:"type:varchar(3)"`
	Role                  string     `json:"role" gorm:"type:text;not null"`
	InvitationStatus      string     `json:"invitationStatus" gorm:"type:text;not null"`
	Verification          string     `json:"verification" gorm:"type:text;not null;default:'not_verified'"`
	CanAccessAllDocuments bool       `json:"canAccessAllDocuments" gorm:"not null;default:false"`
	ErsdAcceptedAt        *time.Time `json:"ersdAcceptedAt" gorm:"type:timestamp with time zone"`
	ProviderObjectID      string     `json:"providerObjectId" gorm:"type:text;index"`
	ProviderTenantID      string     `json:"providerTenantId" gorm:"type:text"`
	InviteTokenHash       string     `json:"-" gorm:"type:text"`
	Version               int64      `json:"version" gorm:"not null;default:0"`
	CDate                 time.Time  `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate                 time.Time  `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type SignatureVerification struct {
	UserID     string    `json:"userId" gorm:"primaryKey;type:text"`
	User       User      `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE;"`
	Method     string    `json:"method" gorm:"type:text;not null"`
	ImageURL   string    `json:"imageUrl" gorm:"type:text"`
	Notation   string    `json:"notation" gorm:"type:text"`
	ObjectID   string    `json:"objectId" gorm:"type:text"`
	TenantID   string    `json:"tenantId" gorm:"type:text"`
	VerifiedBy string    `json:"verifiedBy" gorm:"type:text;not null"`
	VerifiedAt time.Time `json:"verifiedAt" gorm:"type:timestamp with time zone;not null"`
}
