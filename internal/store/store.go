// Package store is the sqlx data access layer for leads, campaigns, webset
// jobs and the credit ledger. All concurrency guards live here: the webset
// status compare-and-swap and the atomic credit increment.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/careloop/leadscout/internal/models"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const leadColumns = `id, user_id, campaign_id, name, title, company, location, industry, email, linkedin_url, profile_data, status, created_at, updated_at`

// GetSubscription returns the user's subscription, or nil when none exists.
func (s *Store) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.GetContext(ctx, &sub,
		`SELECT id, user_id, plan, credits_limit, credits_used, created_at, updated_at FROM subscriptions WHERE user_id = $1`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// IncrementCreditsUsed bumps the usage counter server-side in a single
// statement. Never read-modify-write in application code: two concurrent
// searches for the same user must not lose updates.
func (s *Store) IncrementCreditsUsed(ctx context.Context, userID string, amount int) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx,
		`UPDATE subscriptions SET credits_used = credits_used + $1, updated_at = NOW() WHERE user_id = $2 RETURNING credits_used`,
		amount, userID).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment credits: %w", err)
	}
	return used, nil
}

// RecordUsage writes one audit row for an accounting call.
func (s *Store) RecordUsage(ctx context.Context, usage models.CreditUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_usage (id, subscription_id, user_id, amount, lead_id, description) VALUES ($1, $2, $3, $4, $5, $6)`,
		usage.ID, usage.SubscriptionID, usage.UserID, usage.Amount, usage.LeadID, usage.Description)
	if err != nil {
		return fmt.Errorf("failed to record credit usage: %w", err)
	}
	return nil
}

// FindLeadByLinkedInURL looks up an existing lead within one campaign.
// Uniqueness is campaign-scoped only; without a campaign there is no dedup.
func (s *Store) FindLeadByLinkedInURL(ctx context.Context, userID string, campaignID uuid.UUID, linkedinURL string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.GetContext(ctx, &lead,
		`SELECT `+leadColumns+` FROM leads WHERE user_id = $1 AND campaign_id = $2 AND linkedin_url = $3`,
		userID, campaignID, linkedinURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead by linkedin url: %w", err)
	}
	return &lead, nil
}

// FindLeadByEmail looks up an existing lead within one campaign by email.
func (s *Store) FindLeadByEmail(ctx context.Context, userID string, campaignID uuid.UUID, email string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.GetContext(ctx, &lead,
		`SELECT `+leadColumns+` FROM leads WHERE user_id = $1 AND campaign_id = $2 AND LOWER(email) = LOWER($3)`,
		userID, campaignID, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead by email: %w", err)
	}
	return &lead, nil
}

// InsertLead persists a newly discovered lead and fills in its id.
func (s *Store) InsertLead(ctx context.Context, lead *models.Lead) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO leads (user_id, campaign_id, name, title, company, location, industry, email, linkedin_url, profile_data, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		lead.UserID, lead.CampaignID, lead.Name, lead.Title, lead.Company, lead.Location,
		lead.Industry, lead.Email, lead.LinkedInURL, lead.ProfileData, lead.Status).Scan(&lead.ID)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// UpdateLead overwrites the mapped fields of a re-discovered lead in place.
func (s *Store) UpdateLead(ctx context.Context, lead *models.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET name = $1, title = $2, company = $3, location = $4, industry = $5, email = $6, linkedin_url = $7, profile_data = $8, updated_at = NOW() WHERE id = $9`,
		lead.Name, lead.Title, lead.Company, lead.Location, lead.Industry,
		lead.Email, lead.LinkedInURL, lead.ProfileData, lead.ID)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}

// UpdateLeadProfileData persists a lead's profile data after scores were
// merged in.
func (s *Store) UpdateLeadProfileData(ctx context.Context, leadID int64, data models.ProfileData) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET profile_data = $1, updated_at = NOW() WHERE id = $2`,
		data, leadID)
	if err != nil {
		return fmt.Errorf("failed to update lead profile data: %w", err)
	}
	return nil
}

// IsDoNotContact reports whether the email is on the user's suppression list.
func (s *Store) IsDoNotContact(ctx context.Context, userID, email string) (bool, error) {
	var suppressed bool
	err := s.db.GetContext(ctx, &suppressed,
		`SELECT EXISTS(SELECT 1 FROM do_not_contact WHERE user_id = $1 AND LOWER(email) = LOWER($2))`,
		userID, email)
	if err != nil {
		return false, fmt.Errorf("failed to check do-not-contact list: %w", err)
	}
	return suppressed, nil
}

// GetWebsetSearch returns the search tracked for a provider job id, or nil
// when the job is unknown.
func (s *Store) GetWebsetSearch(ctx context.Context, websetID string) (*models.WebsetSearch, error) {
	var ws models.WebsetSearch
	err := s.db.GetContext(ctx, &ws,
		`SELECT id, webset_id, campaign_id, user_id, query, status, items_received, webhook_secret, created_at, updated_at FROM webset_searches WHERE webset_id = $1`,
		websetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webset search: %w", err)
	}
	return &ws, nil
}

// MarkWebsetProcessing flips processing -> processing_webhook. The
// conditional update is the guard against two webhook deliveries racing; the
// loser sees zero rows affected and must back off.
func (s *Store) MarkWebsetProcessing(ctx context.Context, websetID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webset_searches SET status = $1, updated_at = NOW() WHERE webset_id = $2 AND status = $3`,
		models.WebsetStatusProcessingWebhook, websetID, models.WebsetStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to mark webset processing: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows == 1, nil
}

// CompleteWebset marks a job done; further webhook deliveries become no-ops.
func (s *Store) CompleteWebset(ctx context.Context, websetID string, itemsReceived int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE webset_searches SET status = $1, items_received = $2, updated_at = NOW() WHERE webset_id = $3`,
		models.WebsetStatusCompleted, itemsReceived, websetID)
	if err != nil {
		return fmt.Errorf("failed to complete webset: %w", err)
	}
	return nil
}

// UpdateCampaignLeadCount recounts the campaign's leads.
func (s *Store) UpdateCampaignLeadCount(ctx context.Context, campaignID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET lead_count = (SELECT COUNT(*) FROM leads WHERE campaign_id = $1), updated_at = NOW() WHERE id = $1`,
		campaignID)
	if err != nil {
		return fmt.Errorf("failed to update campaign lead count: %w", err)
	}
	return nil
}

// SetCampaignStatus promotes a campaign's lifecycle status.
func (s *Store) SetCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, campaignID)
	if err != nil {
		return fmt.Errorf("failed to set campaign status: %w", err)
	}
	return nil
}
