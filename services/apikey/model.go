package apikey

import (
	"time"

	"github.com/lib/pq"
)

type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "active"
	APIKeyStatusRevoked APIKeyStatus = "revoked"
	APIKeyStatusExpired APIKeyStatus = "expired"
)

type APIKey struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	BusinessID int64          `gorm:"column:business_id;not null;index"`
	KeyID      string         `gorm:"column:key_id;uniqueIndex;not null"` // e.g. bzpk_live_xxx
	SecretHash string         `gorm:"column:secret_hash;not null"`        // argon2id digest, never plaintext
	Scopes     pq.StringArray `gorm:"column:scopes;type:text[]"`
	Status     APIKeyStatus   `gorm:"column:status;default:'active';not null"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	ExpiresAt  *time.Time     `gorm:"column:expires_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}
