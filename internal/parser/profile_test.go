package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfileRejectsNonProfileURLs(t *testing.T) {
	urls := []string{
		"https://www.linkedin.com/jobs/view/123456",
		"https://www.linkedin.com/company/mercy-hospital",
		"https://example.com/profile/jane",
		"",
	}
	for _, url := range urls {
		assert.Nil(t, ParseProfile(url, "Jane Doe | Nurse at Mercy | LinkedIn", ""), "url %q should be rejected", url)
	}
}

func TestParseProfilePipeTitle(t *testing.T) {
	lead := ParseProfile(
		"https://www.linkedin.com/in/john-a-smith",
		"John A. Smith | ICU Nurse at Mercy Hospital | LinkedIn",
		"",
	)
	require.NotNil(t, lead)
	assert.Equal(t, "John A. Smith", lead.Name)
	assert.Equal(t, "ICU Nurse", lead.Title)
	assert.Equal(t, "Mercy Hospital", lead.Company)
}

func TestParseProfileDashTitle(t *testing.T) {
	lead := ParseProfile(
		"https://www.linkedin.com/in/maria-garcia",
		"Maria Garcia - ER Nurse at Cedars-Sinai",
		"",
	)
	require.NotNil(t, lead)
	assert.Equal(t, "Maria Garcia", lead.Name)
	assert.Equal(t, "ER Nurse", lead.Title)
	assert.Equal(t, "Cedars-Sinai", lead.Company)
}

func TestParseProfileSlugFallback(t *testing.T) {
	lead := ParseProfile("https://www.linkedin.com/in/jane-doe-4f9a2b", "", "")
	require.NotNil(t, lead)
	assert.Equal(t, "Jane Doe", lead.Name)
}

func TestParseProfileSlugKeepsNonHexSuffix(t *testing.T) {
	lead := ParseProfile("https://www.linkedin.com/in/anna-lee", "", "")
	require.NotNil(t, lead)
	assert.Equal(t, "Anna Lee", lead.Name)
}

func TestParseProfileRejectsNoiseNames(t *testing.T) {
	cases := []string{
		"LinkedIn Search Results",
		"10 Best ICU Jobs",
		"Page not found",
		"X",
	}
	for _, title := range cases {
		lead := ParseProfile("https://www.linkedin.com/in/whatever-1a2b3c4d", title, "")
		assert.Nil(t, lead, "title %q should be rejected", title)
	}
}

func TestParseProfileLocation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"based in", "Experienced ICU nurse based in Los Angeles, California with 10 years", "Los Angeles, California"},
		{"located in", "Currently located in Phoenix working nights", "Phoenix"},
		{"city state", "ICU RN at Mercy Hospital. Sacramento, CA. BLS certified.", "Sacramento, CA"},
		{"none", "ICU nurse with BLS and ACLS", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := ParseProfile("https://linkedin.com/in/test-nurse", "Test Nurse | RN at Hospital", tt.text)
			require.NotNil(t, lead)
			assert.Equal(t, tt.want, lead.Location)
		})
	}
}

func TestParseProfileDiscardsOverlongLocation(t *testing.T) {
	text := "based in " + strings.Repeat("Averyveryverylongcityname ", 4) + "somewhere"
	lead := ParseProfile("https://linkedin.com/in/test-nurse", "Test Nurse | RN at Hospital", text)
	require.NotNil(t, lead)
	assert.Empty(t, lead.Location)
}

func TestParseProfileEmail(t *testing.T) {
	lead := ParseProfile(
		"https://linkedin.com/in/test-nurse",
		"Test Nurse | RN at Hospital",
		"Contact: test.nurse+work@mercy-hospital.org for scheduling",
	)
	require.NotNil(t, lead)
	assert.Equal(t, "test.nurse+work@mercy-hospital.org", lead.Email)
}

func TestParseProfileTruncation(t *testing.T) {
	longName := strings.Repeat("A", 80)
	longCompany := strings.Repeat("B", 80)
	lead := ParseProfile(
		"https://linkedin.com/in/long-name",
		longName+" | Nurse at "+longCompany,
		"",
	)
	require.NotNil(t, lead)
	assert.Len(t, lead.Name, 60)
	assert.Len(t, lead.Company, 60)
}

func TestParseProfileKeepsLinkedInURL(t *testing.T) {
	url := "https://www.linkedin.com/in/jane-doe"
	lead := ParseProfile(url, "Jane Doe | RN at Mercy", "")
	require.NotNil(t, lead)
	assert.Equal(t, url, lead.LinkedInURL)
}
