// Package parser turns raw search-provider payloads into structured candidate
// records and extracts healthcare credentials from free text.
package parser

import (
	"regexp"
	"strings"
	"unicode"
)

const profileMarker = "/in/"

const (
	maxNameLen     = 60
	maxCompanyLen  = 60
	maxLocationLen = 50
)

// ParsedLead is the structured candidate extracted from one search hit.
type ParsedLead struct {
	Name        string
	Title       string
	Company     string
	Location    string
	Email       string
	LinkedInURL string
}

var (
	brandSuffixRe = regexp.MustCompile(`(?i)\s*[|\-–]\s*linkedin\s*$`)
	titleAtRe     = regexp.MustCompile(`(?i)^(.*?)\s+at\s+(.+)$`)
	slugSuffixRe  = regexp.MustCompile(`-([0-9a-f]{4,})$`)
	noiseNameRe   = regexp.MustCompile(`(?i)\b(jobs?|search|results?|linkedin)\b|not\s+found`)
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// Labeled locations run to the end of the capitalized word sequence, so
	// "based in Los Angeles, California with 10 years" stops before "with".
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:[Bb]ased|[Ll]ocated)\s+in\s+([A-Z][a-zA-Z'\-]*(?:\s+[A-Z][a-zA-Z'\-]*)*(?:,\s*[A-Z][a-zA-Z'\-]*(?:\s+[A-Z][a-zA-Z'\-]*)*)?)`),
		regexp.MustCompile(`([A-Z][a-zA-Z'\- ]+,\s*[A-Z]{2})\b`),
	}
)

// ParseProfile turns one raw search hit (url, title, free-text snippet) into
// a structured candidate, or nil when the hit is not a person profile.
// Callers must treat nil as "skip and count as skipped".
func ParseProfile(rawURL, rawTitle, text string) *ParsedLead {
	if !strings.Contains(rawURL, profileMarker) {
		return nil
	}

	cleaned := strings.TrimSpace(brandSuffixRe.ReplaceAllString(rawTitle, ""))

	var name, title, company string
	if parts := splitTitle(cleaned); len(parts) >= 2 {
		name = strings.TrimSpace(parts[0])
		title, company = splitRole(strings.TrimSpace(parts[1]))
	} else if cleaned != "" {
		name = cleaned
	}

	if name == "" {
		name = nameFromSlug(rawURL)
	}

	name = truncate(strings.TrimSpace(name), maxNameLen)
	if len(name) < 2 || noiseNameRe.MatchString(name) {
		return nil
	}

	return &ParsedLead{
		Name:        name,
		Title:       strings.TrimSpace(title),
		Company:     truncate(strings.TrimSpace(company), maxCompanyLen),
		Location:    extractLocation(text),
		Email:       emailRe.FindString(text),
		LinkedInURL: rawURL,
	}
}

// splitTitle prefers pipe-delimited titles and falls back to dash-delimited
// ones, the two shapes the provider actually returns.
func splitTitle(title string) []string {
	if parts := strings.Split(title, "|"); len(parts) >= 2 {
		return parts
	}
	if parts := strings.Split(title, " - "); len(parts) >= 2 {
		return parts
	}
	return nil
}

// splitRole parses an "X at Y" fragment into title and company.
func splitRole(s string) (title, company string) {
	if m := titleAtRe.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	return s, ""
}

// nameFromSlug derives a display name from the profile slug, stripping the
// provider-assigned hex disambiguator and title-casing the words.
func nameFromSlug(rawURL string) string {
	idx := strings.Index(rawURL, profileMarker)
	if idx < 0 {
		return ""
	}
	slug := rawURL[idx+len(profileMarker):]
	if cut := strings.IndexAny(slug, "/?#"); cut >= 0 {
		slug = slug[:cut]
	}
	if m := slugSuffixRe.FindStringSubmatch(slug); m != nil && strings.ContainsAny(m[1], "0123456789") {
		slug = strings.TrimSuffix(slug, "-"+m[1])
	}
	slug = strings.NewReplacer("-", " ", "_", " ", "%20", " ").Replace(slug)

	words := strings.Fields(slug)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// extractLocation scans the snippet with a small set of labeled patterns;
// first match wins, anything suspiciously long is treated as noise.
func extractLocation(text string) string {
	for _, re := range locationPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			loc := strings.TrimSpace(strings.Trim(m[1], ".,"))
			if len(loc) > 0 && len(loc) <= maxLocationLen {
				return loc
			}
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
