package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"

	"github.com/careloop/leadscout/internal/exa"
	"github.com/careloop/leadscout/internal/models"
	"github.com/careloop/leadscout/internal/parser"
)

const (
	signatureHeader = "x-exa-signature"
	websetIdleEvent = "webset.idle"
	sourceWebset    = "exa-webset"
)

// handleExaWebhook processes the job-complete callback of an asynchronous
// webset search. Delivery is at-least-once, so everything here is guarded for
// idempotence: the completed short-circuit and the status compare-and-swap.
func (s *Server) handleExaWebhook(c *fiber.Ctx) error {
	ctx := c.Context()
	body := c.Body()

	if !gjson.ValidBytes(body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid JSON payload",
		})
	}

	payload := gjson.ParseBytes(body)
	eventType := payload.Get("type").String()
	if eventType != websetIdleEvent {
		// Other event types are accepted and ignored.
		return c.JSON(fiber.Map{"success": true})
	}

	websetID := payload.Get("data.id").String()
	if websetID == "" {
		websetID = payload.Get("data.websetId").String()
	}
	if websetID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Missing webset id",
		})
	}

	ws, err := s.store.GetWebsetSearch(ctx, websetID)
	if err != nil {
		slog.Error("Failed to load webset search", "error", err, "webset_id", websetID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to load search",
		})
	}
	if ws == nil {
		// Never process jobs we did not initiate.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Unknown webset",
		})
	}

	if ws.Status == models.WebsetStatusCompleted {
		return c.JSON(fiber.Map{"success": true, "skipped": true})
	}

	if ws.WebhookSecret != "" {
		if !verifySignature(body, c.Get(signatureHeader), ws.WebhookSecret) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid signature",
			})
		}
	}

	won, err := s.store.MarkWebsetProcessing(ctx, websetID)
	if err != nil {
		slog.Error("Failed to claim webset", "error", err, "webset_id", websetID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to claim search",
		})
	}
	if !won {
		// A concurrent delivery already claimed the job.
		return c.JSON(fiber.Map{"success": true, "skipped": true})
	}

	items, err := s.provider.ListItems(ctx, websetID)
	if err != nil {
		slog.Error("Failed to fetch webset items", "error", err, "webset_id", websetID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("Failed to fetch results: %v", err),
		})
	}

	saved, skipped := s.processWebsetItems(ctx, ws, items)

	if saved > 0 {
		s.recordWebsetUsage(ctx, ws, saved)
	}

	if err := s.store.CompleteWebset(ctx, websetID, len(items)); err != nil {
		slog.Error("Failed to complete webset", "error", err, "webset_id", websetID)
	}

	if ws.CampaignID != nil {
		if err := s.store.UpdateCampaignLeadCount(ctx, *ws.CampaignID); err != nil {
			slog.Error("Failed to update campaign lead count", "error", err, "campaign_id", ws.CampaignID)
		}
		// A completed async job is itself evidence of an active campaign,
		// so activation is unconditional here.
		if err := s.store.SetCampaignStatus(ctx, *ws.CampaignID, models.CampaignStatusActive); err != nil {
			slog.Error("Failed to activate campaign", "error", err, "campaign_id", ws.CampaignID)
		}
	}

	slog.Info("Webset processed", "webset_id", websetID, "saved", saved, "skipped", skipped)

	return c.JSON(fiber.Map{
		"success":       true,
		"leads_found":   saved,
		"leads_skipped": skipped,
	})
}

// processWebsetItems runs the extraction strategy over every item and applies
// the same campaign-scoped dedup/upsert semantics as the synchronous path.
// This path does not score; scoring currently runs on the sync path only.
func (s *Server) processWebsetItems(ctx context.Context, ws *models.WebsetSearch, items []exa.WebsetItem) (saved, skipped int) {
	for _, item := range items {
		parsed := s.extractor.Extract(item)
		if parsed == nil {
			skipped++
			continue
		}

		if parsed.Email != "" {
			suppressed, err := s.store.IsDoNotContact(ctx, ws.UserID, parsed.Email)
			if err != nil {
				slog.Error("Do-not-contact check failed", "error", err, "user_id", ws.UserID)
			} else if suppressed {
				skipped++
				continue
			}
		}

		creds := parser.ExtractCredentials(item.Properties.Description)
		profileData := models.ProfileData{
			Source:         sourceWebset,
			ProviderID:     item.ID,
			Certifications: creds.Certifications,
			Licenses:       creds.Licenses,
			Specialty:      creds.Specialty,
		}

		if _, err := s.upsertLead(ctx, ws.UserID, ws.CampaignID, parsed, profileData); err != nil {
			slog.Error("Failed to save webset lead", "error", err, "name", parsed.Name)
			skipped++
			continue
		}
		saved++
	}
	return saved, skipped
}

// recordWebsetUsage mirrors the sync path's credit accounting for the async
// batch.
func (s *Server) recordWebsetUsage(ctx context.Context, ws *models.WebsetSearch, saved int) {
	sub, err := s.store.GetSubscription(ctx, ws.UserID)
	if err != nil {
		slog.Error("Failed to load subscription", "error", err, "user_id", ws.UserID)
	}

	used, err := s.store.IncrementCreditsUsed(ctx, ws.UserID, saved)
	if err != nil {
		slog.Error("Failed to increment credits", "error", err, "user_id", ws.UserID)
	}

	usage := models.CreditUsage{
		UserID:      ws.UserID,
		Amount:      saved,
		Description: fmt.Sprintf("Webset %s saved %d leads", ws.WebsetID, saved),
	}
	if sub != nil {
		usage.SubscriptionID = &sub.ID
	}
	if err := s.store.RecordUsage(ctx, usage); err != nil {
		slog.Error("Failed to record credit usage", "error", err, "user_id", ws.UserID)
	}

	campaignID := ""
	if ws.CampaignID != nil {
		campaignID = ws.CampaignID.String()
	}
	s.notifier.LeadsFound(ctx, ws.UserID, saved, campaignID)
	if sub != nil && sub.CreditsLimit > 0 {
		remaining := sub.CreditsLimit - used
		if remaining > 0 && remaining*10 <= sub.CreditsLimit {
			s.notifier.LowCredits(ctx, ws.UserID, remaining, sub.CreditsLimit)
		}
	}
}

// verifySignature checks an HMAC-SHA256 signature over the raw request body,
// accepting either a bare hex digest or a sha256=-prefixed form.
func verifySignature(body []byte, signature, secret string) bool {
	signature = strings.TrimSpace(strings.TrimPrefix(signature, "sha256="))
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
