// internal/intent/classifier.go
package intent

import (
	"regexp"
	"sort"

	"benefits-router/internal/models"
)

// Confidence bands. Pattern results at or above the medium band are accepted
// without escalating to the fallback classifier.
const (
	HighConfidenceThreshold   = 0.8
	MediumConfidenceThreshold = 0.5
)

// Confidence derivation constants. The formula is monotonic in the top match
// count and rewards a clear lead over the runner-up; member-scoped intents
// get a fixed boost when a member identifier was extracted.
const (
	noMatchConfidence = 0.1
	baseConfidence    = 0.4
	perRuleIncrement  = 0.15
	leadBonus         = 0.1
	identifierBoost   = 0.2
)

// intentPatterns holds each intent's ordered rule set. A rule contributes at
// most one point to the match count no matter how often it occurs in the
// query. general_inquiry has no rules; it wins only when nothing else fires.
var intentPatterns = []struct {
	intent   models.Intent
	patterns []string
}{
	{models.IntentMemberVerification, []string{
		`is\s+member\b`,
		`\b(verify|verification)\b`,
		`\b(active|eligib\w*|enrolled|effective|terminated)\b`,
		`\bm\d{3,}\b`,
	}},
	{models.IntentDeductibleOOP, []string{
		`\bdeductible\b`,
		`\bout[-\s]?of[-\s]?pocket\b|\boop\b`,
		`\b(spent|paid|met|applied)\b`,
		`\bm\d{3,}\b`,
	}},
	{models.IntentBenefitAccumulator, []string{
		`\b(visits?|sessions?|units?)\b`,
		`\bhow\s+many\b`,
		`\b(used|remaining|left)\b`,
		`\baccumulator\b`,
		`\bm\d{3,}\b`,
	}},
	{models.IntentBenefitCoverageRAG, []string{
		`\bcover(age|ed|s)?\b`,
		`\bbenefits?\b`,
		`\b(copay|coinsurance|prior\s+auth\w*)\b`,
	}},
	{models.IntentLocalRAG, []string{
		`\b(document|policy|handbook|spd|summary\s+plan)\b`,
		`what\s+does\s+the\s+plan\s+say`,
		`\b(section|page|clause)\b`,
	}},
	{models.IntentGeneralInquiry, nil},
}

// RankedIntent is one entry of the classifier's total-order ranking.
type RankedIntent struct {
	Intent  models.Intent
	Matches int
}

type ruleSet struct {
	intent   models.Intent
	patterns []*regexp.Regexp
}

// Classifier owns the compiled per-intent rule sets. Patterns compile once
// at construction so ClassifyPatterns stays pure, non-blocking CPU work.
type Classifier struct {
	rules []ruleSet
}

func NewClassifier() *Classifier {
	c := &Classifier{rules: make([]ruleSet, 0, len(intentPatterns))}
	for _, ip := range intentPatterns {
		rs := ruleSet{intent: ip.intent}
		for _, p := range ip.patterns {
			rs.patterns = append(rs.patterns, regexp.MustCompile(`(?i)`+p))
		}
		c.rules = append(c.rules, rs)
	}
	return c
}

// ClassifyPatterns computes per-intent match counts and the ranking. Ties
// break by the fixed priority list so ambiguity prefers the more specific,
// higher-stakes intent.
func (c *Classifier) ClassifyPatterns(query string) (map[models.Intent]int, []RankedIntent) {
	counts := make(map[models.Intent]int, len(c.rules))
	ranking := make([]RankedIntent, 0, len(c.rules))

	for _, rs := range c.rules {
		matches := 0
		for _, re := range rs.patterns {
			if re.MatchString(query) {
				matches++
			}
		}
		counts[rs.intent] = matches
		ranking = append(ranking, RankedIntent{Intent: rs.intent, Matches: matches})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Matches != ranking[j].Matches {
			return ranking[i].Matches > ranking[j].Matches
		}
		return ranking[i].Intent.PriorityRank() < ranking[j].Intent.PriorityRank()
	})

	return counts, ranking
}

// deriveConfidence maps the ranking onto a [0,1] score. Zero matches lands
// in the low band (general_inquiry territory); each rule beyond the first
// raises the score, a strict lead over second place adds a bonus, and
// member-scoped intents gain the identifier boost when a member_id was
// extracted.
func deriveConfidence(top, second int, chosen models.Intent, entities models.EntitySet) float64 {
	if top == 0 {
		return noMatchConfidence
	}

	confidence := baseConfidence + perRuleIncrement*float64(top-1)
	if top > second {
		confidence += leadBonus
	}
	if chosen.MemberScoped() && entities.Has(models.EntityMemberID) {
		confidence += identifierBoost
	}

	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
