package vault

import (
	"time"
)

// ServiceName tags the government portal a credential belongs to. Unknown
// tags are stored verbatim; policy enforcement belongs to the caller.
type ServiceName string

var (
	Ergani ServiceName = "ergani" // labor ministry
	Aade   ServiceName = "aade"   // tax authority
	Efka   ServiceName = "efka"   // social insurance
)

func (s ServiceName) Recognized() bool {
	switch s {
	case Ergani, Aade, Efka:
		return true
	default:
		return false
	}
}

type VerificationStatus string

var (
	Pending  VerificationStatus = "pending"
	Verified VerificationStatus = "verified"
	Failed   VerificationStatus = "failed"
)

func (s VerificationStatus) String() string {
	switch s {
	case Pending, Verified, Failed:
		return string(s)
	default:
		return ""
	}
}

// GovernmentCredential is one row per (business, service). The unique index
// keeps invariant enforcement in the store: rotation and resurrection update
// the existing row, they never append.
type GovernmentCredential struct {
	ID                 int64              `gorm:"column:id;primaryKey"`
	BusinessID         int64              `gorm:"column:business_id;not null;index;uniqueIndex:idx_credentials_business_service"`
	ServiceName        ServiceName        `gorm:"column:service_name;size:64;not null;uniqueIndex:idx_credentials_business_service"`
	Username           string             `gorm:"column:username;size:255;not null"`
	EncryptedPassword  string             `gorm:"column:encrypted_password;not null"`
	IsActive           bool               `gorm:"column:is_active;not null;default:true"`
	VerificationStatus VerificationStatus `gorm:"column:verification_status;size:16;not null;default:'pending'"`
	LastVerified       *time.Time         `gorm:"column:last_verified"`
	CreatedAt          time.Time          `gorm:"column:created_at"`
	UpdatedAt          time.Time          `gorm:"column:updated_at"`
}

func (GovernmentCredential) TableName() string {
	return "government_credentials"
}

// PlainCredential is the just-in-time decrypted view handed to the government
// connector. It must never be persisted or logged.
type PlainCredential struct {
	Username           string
	Password           string
	VerificationStatus VerificationStatus
	LastVerified       *time.Time
}

// CredentialInfo is the plaintext-free listing view.
type CredentialInfo struct {
	Username           string             `json:"username"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	LastVerified       *time.Time         `json:"last_verified"`
	CreatedAt          time.Time          `json:"created_at"`
}
