// internal/intent/extractor.go
package intent

import (
	"regexp"
	"strings"

	"benefits-router/internal/models"
)

// memberIDPattern matches an M followed by three or more digits, case
// insensitive. First match wins; the stored value is uppercase-normalized.
var memberIDPattern = regexp.MustCompile(`(?i)\bM\d{3,}\b`)

// serviceTypePhrases is checked longest-phrase-first so "physical therapy"
// can never be shadowed by a hit on the shorter "therapy".
var serviceTypePhrases = []string{
	"durable medical equipment",
	"occupational therapy",
	"physical therapy",
	"speech therapy",
	"mental health",
	"chiropractic",
	"prescription",
	"acupuncture",
	"laboratory",
	"ambulance",
	"pharmacy",
	"hospital",
	"lab work",
	"imaging",
	"therapy",
	"dental",
	"vision",
}

// queryTypeRule classifies the sub-type of a question from a small keyword
// table. Rules apply in declaration order; the first rule with any keyword
// hit wins, regardless of keyword length.
type queryTypeRule struct {
	label    string
	keywords []string
}

var queryTypeRules = []queryTypeRule{
	{label: "status", keywords: []string{
		"active", "eligible", "eligibility", "enrolled", "status", "effective", "terminated",
	}},
	{label: "financial", keywords: []string{
		"deductible", "out-of-pocket", "out of pocket", "oop", "spent", "paid", "cost", "owe",
	}},
	{label: "usage_count", keywords: []string{
		"how many", "visits", "sessions", "used", "remaining", "left",
	}},
	{label: "coverage", keywords: []string{
		"cover", "covered", "coverage", "benefit", "copay", "coinsurance",
	}},
}

// Extract pulls structured entities out of free text. It is deterministic,
// side-effect-free, and total: a rule that does not match leaves its key
// absent rather than producing an error or a null entry. Rules apply
// independently; extracting one entity never suppresses another.
func Extract(query string) models.EntitySet {
	entities := make(models.EntitySet)
	lower := strings.ToLower(query)

	if m := memberIDPattern.FindString(query); m != "" {
		entities[models.EntityMemberID] = strings.ToUpper(m)
	}

	for _, phrase := range serviceTypePhrases {
		if strings.Contains(lower, phrase) {
			entities[models.EntityServiceType] = phrase
			break
		}
	}

	for _, rule := range queryTypeRules {
		hit := false
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				entities[models.EntityQueryType] = rule.label
				hit = true
				break
			}
		}
		if hit {
			break
		}
	}

	return entities
}
