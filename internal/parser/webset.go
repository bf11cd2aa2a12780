package parser

import (
	"regexp"
	"strings"

	"github.com/careloop/leadscout/internal/exa"
)

// ItemExtractor classifies one async-search item into a candidate record.
// Implementations are per provider payload shape; swapping providers must not
// touch the dedup/upsert pipeline.
type ItemExtractor interface {
	Extract(item exa.WebsetItem) *ParsedLead
}

// ExaWebsetExtractor reads Exa webset items: typed person properties first,
// then free-form enrichment entries classified by keyword heuristics.
type ExaWebsetExtractor struct{}

func NewExaWebsetExtractor() *ExaWebsetExtractor {
	return &ExaWebsetExtractor{}
}

var (
	titleKeywordRe    = regexp.MustCompile(`(?i)title|job|role|position`)
	companyKeywordRe  = regexp.MustCompile(`(?i)company|employer|organization`)
	locationKeywordRe = regexp.MustCompile(`(?i)location|city|country|based`)
)

// Extract returns nil for items that carry neither a usable name, a LinkedIn
// URL, nor an email; those are provider noise.
func (e *ExaWebsetExtractor) Extract(item exa.WebsetItem) *ParsedLead {
	lead := &ParsedLead{}

	if strings.Contains(item.Properties.URL, profileMarker) {
		lead.LinkedInURL = item.Properties.URL
	}

	if person := item.Properties.Person; person != nil {
		lead.Name = strings.TrimSpace(person.Name)
		lead.Title = strings.TrimSpace(person.Position)
		lead.Company = strings.TrimSpace(person.Company)
		lead.Location = strings.TrimSpace(person.Location)
		lead.Email = strings.TrimSpace(person.Email)
	}

	for _, enrichment := range item.Enrichments {
		value := firstResult(enrichment)
		if value == "" {
			continue
		}
		label := enrichment.Description + " " + enrichment.Prompt
		switch {
		case lead.Title == "" && titleKeywordRe.MatchString(label):
			lead.Title = value
		case lead.Company == "" && companyKeywordRe.MatchString(label):
			lead.Company = value
		case lead.Location == "" && locationKeywordRe.MatchString(label):
			lead.Location = value
		}
	}

	if lead.Name == "" {
		lead.Name = nameFromReferences(item.Enrichments)
	}
	if lead.Name == "" && lead.LinkedInURL != "" {
		lead.Name = nameFromSlug(lead.LinkedInURL)
	}

	if lead.Email == "" {
		lead.Email = emailRe.FindString(item.Properties.Description)
	}

	lead.Name = truncate(lead.Name, maxNameLen)
	lead.Company = truncate(lead.Company, maxCompanyLen)

	if lead.Name == "" && lead.LinkedInURL == "" && lead.Email == "" {
		return nil
	}
	return lead
}

func firstResult(enrichment exa.Enrichment) string {
	for _, r := range enrichment.Result {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// nameFromReferences picks the first enrichment reference title that looks
// like a person name rather than a URL or page title.
func nameFromReferences(enrichments []exa.Enrichment) string {
	for _, enrichment := range enrichments {
		for _, ref := range enrichment.References {
			title := strings.TrimSpace(ref.Title)
			if title == "" || len(title) < 2 || len(title) > 50 {
				continue
			}
			if strings.Contains(title, "http") || strings.Contains(title, "/") {
				continue
			}
			return title
		}
	}
	return ""
}
