package parser

import (
	"regexp"
	"strings"
)

// Credentials holds the license, certification and specialty tokens found in
// a snippet. Empty fields mean nothing matched.
type Credentials struct {
	Certifications string
	Licenses       string
	Specialty      string
}

var certificationVocab = []string{
	"BLS", "ACLS", "PALS", "CCRN", "CNOR", "CEN", "TNCC", "NRP",
	"CPR", "CMSRN", "OCN", "RNC",
}

// License codes are 2-5 uppercase letters; matching is word-bounded so a code
// never fires inside a longer word.
var licenseVocab = []string{
	"RN", "LPN", "LVN", "NP", "APRN", "CRNA", "CNM", "CNS",
	"MD", "DO", "PA", "PharmD", "PT", "OT", "RT", "RRT",
}

type specialtyGroup struct {
	name     string
	synonyms []string
}

var specialtyVocab = []specialtyGroup{
	{"ICU", []string{"ICU", "Intensive Care", "Critical Care"}},
	{"Emergency", []string{"ER", "Emergency Room", "Emergency Department", "Emergency"}},
	{"OR", []string{"OR", "Operating Room", "Perioperative"}},
	{"Labor & Delivery", []string{"L&D", "Labor and Delivery", "Labor & Delivery"}},
	{"Med-Surg", []string{"Med Surg", "Med-Surg", "Medical Surgical", "Medical-Surgical"}},
	{"Telemetry", []string{"Telemetry", "Tele"}},
	{"Oncology", []string{"Oncology"}},
	{"Pediatrics", []string{"Pediatric", "Pediatrics", "Peds"}},
	{"NICU", []string{"NICU", "Neonatal"}},
	{"Dialysis", []string{"Dialysis", "Nephrology"}},
	{"Cath Lab", []string{"Cath Lab", "Catheterization"}},
	{"Home Health", []string{"Home Health", "Home Care"}},
	{"Behavioral Health", []string{"Psych", "Psychiatric", "Behavioral Health", "Mental Health"}},
}

var (
	certPatterns      = compileVocab(certificationVocab)
	licensePatterns   = compileVocab(licenseVocab)
	specialtyPatterns = compileSpecialties(specialtyVocab)
)

func compileVocab(vocab []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(vocab))
	for i, token := range vocab {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(token) + `\b`)
	}
	return patterns
}

func compileSpecialties(vocab []specialtyGroup) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(vocab))
	for i, group := range vocab {
		quoted := make([]string, len(group.synonyms))
		for j, syn := range group.synonyms {
			quoted[j] = regexp.QuoteMeta(syn)
		}
		patterns[i] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return patterns
}

// ExtractCredentials matches the snippet against the three fixed vocabularies.
// It is a pure function: same text in, same credentials out.
func ExtractCredentials(text string) Credentials {
	var creds Credentials

	var certs []string
	for i, re := range certPatterns {
		if re.MatchString(text) {
			certs = append(certs, certificationVocab[i])
		}
	}
	creds.Certifications = strings.Join(certs, ", ")

	var licenses []string
	for i, re := range licensePatterns {
		if re.MatchString(text) {
			licenses = append(licenses, licenseVocab[i])
		}
	}
	creds.Licenses = strings.Join(licenses, ", ")

	var specialties []string
	for i, re := range specialtyPatterns {
		if re.MatchString(text) {
			specialties = append(specialties, specialtyVocab[i].name)
		}
	}
	creds.Specialty = strings.Join(specialties, ", ")

	return creds
}
