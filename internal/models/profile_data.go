package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// ProfileData is the typed view of the leads.profile_data jsonb column. It
// carries provenance from the search provider, extracted credentials, and the
// qualification scores merged in after the fact. Keys written by other parts
// of the product survive round-trips through Extra.
type ProfileData struct {
	Source         string  `json:"source,omitempty"`
	ProviderID     string  `json:"provider_id,omitempty"`
	ProviderScore  float64 `json:"provider_score,omitempty"`
	Certifications string  `json:"certifications,omitempty"`
	Licenses       string  `json:"licenses,omitempty"`
	Specialty      string  `json:"specialty,omitempty"`

	MatchScore      *int   `json:"match_score,omitempty"`
	LicenseMatch    *bool  `json:"license_match,omitempty"`
	CertMatch       *bool  `json:"cert_match,omitempty"`
	ExperienceMatch *bool  `json:"experience_match,omitempty"`
	LocationMatch   *bool  `json:"location_match,omitempty"`
	ScoringNotes    string `json:"scoring_notes,omitempty"`

	Extra map[string]any `json:"-"`
}

var knownProfileKeys = map[string]bool{
	"source":           true,
	"provider_id":      true,
	"provider_score":   true,
	"certifications":   true,
	"licenses":         true,
	"specialty":        true,
	"match_score":      true,
	"license_match":    true,
	"cert_match":       true,
	"experience_match": true,
	"location_match":   true,
	"scoring_notes":    true,
}

// MergeScores folds a scoring result into the profile data without touching
// provenance or credential fields.
func (p *ProfileData) MergeScores(score int, license, cert, experience, location bool, notes string) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	p.MatchScore = &score
	p.LicenseMatch = &license
	p.CertMatch = &cert
	p.ExperienceMatch = &experience
	p.LocationMatch = &location
	p.ScoringNotes = notes
}

func (p ProfileData) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+12)
	for k, v := range p.Extra {
		m[k] = v
	}
	if p.Source != "" {
		m["source"] = p.Source
	}
	if p.ProviderID != "" {
		m["provider_id"] = p.ProviderID
	}
	if p.ProviderScore != 0 {
		m["provider_score"] = p.ProviderScore
	}
	if p.Certifications != "" {
		m["certifications"] = p.Certifications
	}
	if p.Licenses != "" {
		m["licenses"] = p.Licenses
	}
	if p.Specialty != "" {
		m["specialty"] = p.Specialty
	}
	if p.MatchScore != nil {
		m["match_score"] = *p.MatchScore
	}
	if p.LicenseMatch != nil {
		m["license_match"] = *p.LicenseMatch
	}
	if p.CertMatch != nil {
		m["cert_match"] = *p.CertMatch
	}
	if p.ExperienceMatch != nil {
		m["experience_match"] = *p.ExperienceMatch
	}
	if p.LocationMatch != nil {
		m["location_match"] = *p.LocationMatch
	}
	if p.ScoringNotes != "" {
		m["scoring_notes"] = p.ScoringNotes
	}
	return json.Marshal(m)
}

func (p *ProfileData) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = ProfileData{}
	for k, v := range m {
		if !knownProfileKeys[k] {
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = v
		}
	}
	p.Source = asString(m["source"])
	p.ProviderID = asString(m["provider_id"])
	if f, ok := m["provider_score"].(float64); ok {
		p.ProviderScore = f
	}
	p.Certifications = asString(m["certifications"])
	p.Licenses = asString(m["licenses"])
	p.Specialty = asString(m["specialty"])
	if f, ok := m["match_score"].(float64); ok {
		score := int(f)
		p.MatchScore = &score
	}
	p.LicenseMatch = asBoolPtr(m["license_match"])
	p.CertMatch = asBoolPtr(m["cert_match"])
	p.ExperienceMatch = asBoolPtr(m["experience_match"])
	p.LocationMatch = asBoolPtr(m["location_match"])
	p.ScoringNotes = asString(m["scoring_notes"])
	return nil
}

// Value implements driver.Valuer so sqlx can write the jsonb column.
func (p ProfileData) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner so sqlx can read the jsonb column.
func (p *ProfileData) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = ProfileData{}
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return errors.New("unsupported source type for profile data")
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBoolPtr(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}
