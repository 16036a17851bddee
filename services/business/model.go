package business

import (
	"time"
)

type BusinessStatus string

var (
	Active    BusinessStatus = "active"
	Suspended BusinessStatus = "suspended"
	Archived  BusinessStatus = "archived"
)

func (s BusinessStatus) String() string {
	switch s {
	case Active, Suspended, Archived:
		return string(s)
	default:
		return ""
	}
}

type Business struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	Code        string         `gorm:"column:code;uniqueIndex"`
	Name        string         `gorm:"column:name;not null"`
	Slug        string         `gorm:"column:slug;uniqueIndex;not null"`
	CountryCode string         `gorm:"column:country_code"`
	Timezone    string         `gorm:"column:timezone"`
	Status      BusinessStatus `gorm:"column:status"`
}

func (Business) TableName() string {
	return "businesses"
}

type CreateBusinessRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
}

// CreateBusinessResponse carries the one-time API key secret minted at signup.
type CreateBusinessResponse struct {
	Business *Business `json:"business"`
	KeyID    string    `json:"key_id"`
	Secret   string    `json:"secret"`
}
