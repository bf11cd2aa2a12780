package models

import (
	"time"

	"github.com/google/uuid"
)

// WebsetSearch tracks one asynchronous provider search job. The row is
// created when the search is kicked off and only ever mutated by the webhook
// handler, which moves status strictly forward.
type WebsetSearch struct {
	ID            int64      `json:"id" db:"id"`
	WebsetID      string     `json:"webset_id" db:"webset_id"`
	CampaignID    *uuid.UUID `json:"campaign_id" db:"campaign_id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Query         string     `json:"query" db:"query"`
	Status        string     `json:"status" db:"status"`
	ItemsReceived int        `json:"items_received" db:"items_received"`
	WebhookSecret string     `json:"-" db:"webhook_secret"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

const (
	WebsetStatusProcessing        = "processing"
	WebsetStatusProcessingWebhook = "processing_webhook"
	WebsetStatusCompleted         = "completed"
)
