package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const scorerSystemPrompt = `You are a healthcare recruiting assistant. Score each candidate against the
job requirement. Rubric (100 points):
- required license held: 30 points
- required certifications held: 20 points
- specialty-specific experience: 30 points
- location match: 20 points
Give partial credit when data is missing rather than scoring zero. Submit the
scores with the submit_scores tool, echoing each candidate's index.`

const maxExcerptLen = 300

// LeadSummary is the compact candidate view sent to the model for scoring.
type LeadSummary struct {
	ID             int64
	Name           string
	Title          string
	Location       string
	Certifications string
	Licenses       string
	Specialty      string
	Excerpt        string
}

// ScoreResult is one candidate's qualification score, already clamped.
type ScoreResult struct {
	MatchScore      int
	LicenseMatch    bool
	CertMatch       bool
	ExperienceMatch bool
	LocationMatch   bool
	Notes           string
}

// Scorer batches candidates into one structured tool call and maps the scores
// back to lead ids by the index the model echoes. Names may collide, indexes
// cannot.
type Scorer struct {
	client ChatClient
}

func NewScorer(client ChatClient) *Scorer {
	return &Scorer{client: client}
}

var submitScoresTool = ToolFunction{
	Name:        "submit_scores",
	Description: "Submit qualification scores for every candidate",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"index":            map[string]any{"type": "integer"},
						"match_score":      map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
						"license_match":    map[string]any{"type": "boolean"},
						"cert_match":       map[string]any{"type": "boolean"},
						"experience_match": map[string]any{"type": "boolean"},
						"location_match":   map[string]any{"type": "boolean"},
						"notes":            map[string]any{"type": "string"},
					},
					"required": []string{
						"index", "match_score", "license_match", "cert_match",
						"experience_match", "location_match", "notes",
					},
				},
			},
		},
		"required": []string{"scores"},
	},
}

type submittedScores struct {
	Scores []struct {
		Index           int    `json:"index"`
		MatchScore      int    `json:"match_score"`
		LicenseMatch    bool   `json:"license_match"`
		CertMatch       bool   `json:"cert_match"`
		ExperienceMatch bool   `json:"experience_match"`
		LocationMatch   bool   `json:"location_match"`
		Notes           string `json:"notes"`
	} `json:"scores"`
}

// Score never fails: any transport or parsing problem yields an empty map so
// callers can treat scoring as optional enrichment.
func (s *Scorer) Score(ctx context.Context, leads []LeadSummary, requirement string) map[int64]ScoreResult {
	scores := make(map[int64]ScoreResult)
	if s == nil || s.client == nil || len(leads) == 0 {
		return scores
	}

	raw, err := s.client.CompleteWithTool(ctx, scorerSystemPrompt, buildScoringPrompt(leads, requirement), submitScoresTool)
	if err != nil {
		slog.Error("Lead scoring failed", "error", err, "leads", len(leads))
		return scores
	}

	var submitted submittedScores
	if err := json.Unmarshal(raw, &submitted); err != nil {
		slog.Error("Failed to parse scoring response", "error", err)
		return scores
	}

	for _, entry := range submitted.Scores {
		if entry.Index < 0 || entry.Index >= len(leads) {
			continue
		}
		scores[leads[entry.Index].ID] = ScoreResult{
			MatchScore:      clampScore(entry.MatchScore),
			LicenseMatch:    entry.LicenseMatch,
			CertMatch:       entry.CertMatch,
			ExperienceMatch: entry.ExperienceMatch,
			LocationMatch:   entry.LocationMatch,
			Notes:           entry.Notes,
		}
	}
	return scores
}

func buildScoringPrompt(leads []LeadSummary, requirement string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "JOB REQUIREMENT:\n%s\n\nCANDIDATES:\n", requirement)
	for i, lead := range leads {
		fmt.Fprintf(&b, "[%d] Name: %s", i, lead.Name)
		if lead.Title != "" {
			fmt.Fprintf(&b, "; Title: %s", lead.Title)
		}
		if lead.Location != "" {
			fmt.Fprintf(&b, "; Location: %s", lead.Location)
		}
		if lead.Licenses != "" {
			fmt.Fprintf(&b, "; Licenses: %s", lead.Licenses)
		}
		if lead.Certifications != "" {
			fmt.Fprintf(&b, "; Certifications: %s", lead.Certifications)
		}
		if lead.Specialty != "" {
			fmt.Fprintf(&b, "; Specialty: %s", lead.Specialty)
		}
		if lead.Excerpt != "" {
			excerpt := lead.Excerpt
			if len(excerpt) > maxExcerptLen {
				excerpt = excerpt[:maxExcerptLen]
			}
			fmt.Fprintf(&b, "; Profile: %s", excerpt)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
