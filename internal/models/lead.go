package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a candidate profile discovered by search and persisted per user,
// optionally scoped to a campaign.
type Lead struct {
	ID          int64       `json:"id" db:"id"`
	UserID      string      `json:"user_id" db:"user_id"`
	CampaignID  *uuid.UUID  `json:"campaign_id" db:"campaign_id"`
	Name        string      `json:"name" db:"name"`
	Title       string      `json:"title" db:"title"`
	Company     string      `json:"company" db:"company"`
	Location    string      `json:"location" db:"location"`
	Industry    string      `json:"industry" db:"industry"`
	Email       *string     `json:"email" db:"email"`
	LinkedInURL *string     `json:"linkedin_url" db:"linkedin_url"`
	ProfileData ProfileData `json:"profile_data" db:"profile_data"`
	Status      string      `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

const (
	LeadStatusNew = "new"
)

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusSearching = "searching"
	CampaignStatusActive    = "active"
)
