package models

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	// Free-text role requirement, e.g. "ICU Nurse, Los Angeles, 3+ years, BLS/ACLS"
	Query string `json:"query"`
	// Optional campaign to scope dedup and aggregates to
	CampaignID string `json:"campaignId,omitempty"`
}

// SearchResponse is returned on the happy path of POST /api/search.
type SearchResponse struct {
	Success      bool   `json:"success"`
	LeadsFound   int    `json:"leads_found"`
	LeadsSkipped int    `json:"leads_skipped"`
	Message      string `json:"message"`
}

// LoginRequest represents the login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"type"`
}
