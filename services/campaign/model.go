package campaign

import "time"

type Status string

const (
	Draft    Status = "draft"
	Active   Status = "active"
	Paused   Status = "paused"
	Archived Status = "archived"
)

type Campaign struct {
	ID          int64     `json:"id,string" gorm:"primaryKey"`
	BusinessID  int64     `json:"business_id,string" gorm:"index;not null"`
	Code        string    `json:"code" gorm:"size:32;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      Status    `json:"status" gorm:"size:16;default:draft"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

type CreateCampaignRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}
