package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/careloop/leadscout/internal/llm"
	"github.com/careloop/leadscout/internal/models"
	"github.com/careloop/leadscout/internal/parser"
)

const (
	maxQueryLen      = 500
	searchEndpoint   = "exa-search"
	sourceSyncSearch = "exa-search"
)

// savedLead keeps the stored row together with the raw snippet so the scorer
// can see a profile excerpt.
type savedLead struct {
	lead    *models.Lead
	excerpt string
}

// handleSearch is the synchronous search orchestrator: authenticate, rate
// limit, check credits, search the provider, parse/dedupe/persist up to the
// credit budget, score the batch, account for usage.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	ctx := c.Context()

	userID := userIDFromContext(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Authentication required",
		})
	}

	allowed, retryAfter := s.limiter.Allow(ctx, userID, searchEndpoint)
	if !allowed {
		c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%.0f", retryAfter.Seconds()))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":     false,
			"error":       "Rate limit exceeded",
			"retry_after": int(retryAfter.Seconds()),
		})
	}

	var req models.SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	query := strings.TrimSpace(req.Query)
	if query == "" || len(query) > maxQueryLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Query must be between 1 and 500 characters",
		})
	}

	var campaignID *uuid.UUID
	if req.CampaignID != "" {
		id, err := uuid.Parse(req.CampaignID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid campaign id",
			})
		}
		campaignID = &id
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		slog.Error("Failed to load subscription", "error", err, "user_id", userID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to check credits",
		})
	}

	budget := s.cfg.Search.DefaultCreditLimit
	if sub != nil {
		if sub.CreditsUsed >= sub.CreditsLimit {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"success": false,
				"error":   "NO_CREDITS",
			})
		}
		budget = sub.Remaining()
	}

	// The campaign is searching from the moment we commit to calling the
	// provider, before any results arrive.
	if campaignID != nil {
		if err := s.store.SetCampaignStatus(ctx, *campaignID, models.CampaignStatusSearching); err != nil {
			slog.Error("Failed to mark campaign searching", "error", err, "campaign_id", campaignID)
		}
	}

	optimized := s.expander.Expand(ctx, query)

	results, err := s.provider.Search(ctx, optimized)
	if err != nil {
		slog.Error("Provider search failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("Search failed: %v", err),
		})
	}

	var saved []savedLead
	var skipped int
	for _, result := range results {
		if len(saved) >= budget {
			// Budget exhausted; remaining results are simply not processed.
			break
		}

		parsed := parser.ParseProfile(result.URL, result.Title, result.Text)
		if parsed == nil {
			skipped++
			continue
		}

		if parsed.Email != "" {
			suppressed, err := s.store.IsDoNotContact(ctx, userID, parsed.Email)
			if err != nil {
				slog.Error("Do-not-contact check failed", "error", err, "user_id", userID)
			} else if suppressed {
				skipped++
				continue
			}
		}

		creds := parser.ExtractCredentials(result.Title + " " + result.Text)
		profileData := models.ProfileData{
			Source:         sourceSyncSearch,
			ProviderID:     result.ID,
			ProviderScore:  result.Score,
			Certifications: creds.Certifications,
			Licenses:       creds.Licenses,
			Specialty:      creds.Specialty,
		}

		lead, err := s.upsertLead(ctx, userID, campaignID, parsed, profileData)
		if err != nil {
			slog.Error("Failed to save lead", "error", err, "name", parsed.Name)
			skipped++
			continue
		}
		saved = append(saved, savedLead{lead: lead, excerpt: result.Text})
	}

	if len(saved) > 0 {
		// Scoring runs against the recruiter's original requirement text,
		// not the expanded query.
		s.scoreLeads(ctx, saved, query)
		s.recordSearchUsage(ctx, userID, sub, len(saved), req.CampaignID)
	}

	if campaignID != nil {
		if err := s.store.UpdateCampaignLeadCount(ctx, *campaignID); err != nil {
			slog.Error("Failed to update campaign lead count", "error", err, "campaign_id", campaignID)
		}
		if len(saved) > 0 {
			if err := s.store.SetCampaignStatus(ctx, *campaignID, models.CampaignStatusActive); err != nil {
				slog.Error("Failed to activate campaign", "error", err, "campaign_id", campaignID)
			}
		}
	}

	return c.JSON(models.SearchResponse{
		Success:      true,
		LeadsFound:   len(saved),
		LeadsSkipped: skipped,
		Message:      fmt.Sprintf("Found %d leads, skipped %d results", len(saved), skipped),
	})
}

// upsertLead persists one parsed candidate. With a campaign, an existing row
// matching by linkedin_url (then email) is overwritten in place; without a
// campaign every parsed result is an insert.
func (s *Server) upsertLead(ctx context.Context, userID string, campaignID *uuid.UUID, parsed *parser.ParsedLead, profileData models.ProfileData) (*models.Lead, error) {
	var existing *models.Lead
	var err error
	if campaignID != nil {
		if parsed.LinkedInURL != "" {
			existing, err = s.store.FindLeadByLinkedInURL(ctx, userID, *campaignID, parsed.LinkedInURL)
			if err != nil {
				return nil, err
			}
		}
		if existing == nil && parsed.Email != "" {
			existing, err = s.store.FindLeadByEmail(ctx, userID, *campaignID, parsed.Email)
			if err != nil {
				return nil, err
			}
		}
	}

	lead := &models.Lead{
		UserID:      userID,
		CampaignID:  campaignID,
		Name:        parsed.Name,
		Title:       parsed.Title,
		Company:     parsed.Company,
		Location:    parsed.Location,
		Industry:    profileData.Specialty,
		ProfileData: profileData,
		Status:      models.LeadStatusNew,
	}
	if parsed.Email != "" {
		lead.Email = &parsed.Email
	}
	if parsed.LinkedInURL != "" {
		lead.LinkedInURL = &parsed.LinkedInURL
	}

	if existing != nil {
		lead.ID = existing.ID
		lead.Status = existing.Status
		if err := s.store.UpdateLead(ctx, lead); err != nil {
			return nil, err
		}
		return lead, nil
	}

	if err := s.store.InsertLead(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// scoreLeads runs the qualification scorer over the freshly saved batch and
// merges the results into each lead's profile data. Scoring is optional
// enrichment: failures leave the leads saved but unscored.
func (s *Server) scoreLeads(ctx context.Context, saved []savedLead, requirement string) {
	summaries := make([]llm.LeadSummary, len(saved))
	byID := make(map[int64]*savedLead, len(saved))
	for i := range saved {
		lead := saved[i].lead
		summaries[i] = llm.LeadSummary{
			ID:             lead.ID,
			Name:           lead.Name,
			Title:          lead.Title,
			Location:       lead.Location,
			Certifications: lead.ProfileData.Certifications,
			Licenses:       lead.ProfileData.Licenses,
			Specialty:      lead.ProfileData.Specialty,
			Excerpt:        saved[i].excerpt,
		}
		byID[lead.ID] = &saved[i]
	}

	scores := s.scorer.Score(ctx, summaries, requirement)
	for leadID, score := range scores {
		entry, ok := byID[leadID]
		if !ok {
			continue
		}
		entry.lead.ProfileData.MergeScores(score.MatchScore, score.LicenseMatch, score.CertMatch, score.ExperienceMatch, score.LocationMatch, score.Notes)
		if err := s.store.UpdateLeadProfileData(ctx, leadID, entry.lead.ProfileData); err != nil {
			slog.Error("Failed to store lead scores", "error", err, "lead_id", leadID)
		}
	}
}

// recordSearchUsage moves credits for the saved batch, writes the audit row
// and fires the best-effort notifications.
func (s *Server) recordSearchUsage(ctx context.Context, userID string, sub *models.Subscription, savedCount int, campaignID string) {
	used, err := s.store.IncrementCreditsUsed(ctx, userID, savedCount)
	if err != nil {
		slog.Error("Failed to increment credits", "error", err, "user_id", userID)
	}

	usage := models.CreditUsage{
		UserID:      userID,
		Amount:      savedCount,
		Description: fmt.Sprintf("Lead search saved %d leads", savedCount),
	}
	if sub != nil {
		usage.SubscriptionID = &sub.ID
	}
	if err := s.store.RecordUsage(ctx, usage); err != nil {
		slog.Error("Failed to record credit usage", "error", err, "user_id", userID)
	}

	s.notifier.LeadsFound(ctx, userID, savedCount, campaignID)
	if sub != nil && sub.CreditsLimit > 0 {
		remaining := sub.CreditsLimit - used
		if remaining > 0 && remaining*10 <= sub.CreditsLimit {
			s.notifier.LowCredits(ctx, userID, remaining, sub.CreditsLimit)
		}
	}
}
