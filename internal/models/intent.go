// internal/models/intent.go
package models

// Intent is the closed set of categories a user query can be routed to.
// The set is fixed at compile time; handlers register against these values.
type Intent string

const (
	IntentMemberVerification Intent = "member_verification"
	IntentDeductibleOOP      Intent = "deductible_oop"
	IntentBenefitAccumulator Intent = "benefit_accumulator"
	IntentBenefitCoverageRAG Intent = "benefit_coverage_rag"
	IntentLocalRAG           Intent = "local_rag"
	IntentGeneralInquiry     Intent = "general_inquiry"
)

// IntentPriority is the declaration-order tie-break list used whenever two
// intents have the same pattern match count. Ambiguity resolves toward the
// more specific, higher-stakes intent.
var IntentPriority = []Intent{
	IntentMemberVerification,
	IntentDeductibleOOP,
	IntentBenefitAccumulator,
	IntentBenefitCoverageRAG,
	IntentLocalRAG,
	IntentGeneralInquiry,
}

// ParseIntent maps an external intent name onto the closed set.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentMemberVerification, IntentDeductibleOOP, IntentBenefitAccumulator,
		IntentBenefitCoverageRAG, IntentLocalRAG, IntentGeneralInquiry:
		return Intent(s), true
	}
	return "", false
}

// MemberScoped reports whether the intent requires a member identifier to be
// answerable. These three share the pairwise fallback-intent rule.
func (i Intent) MemberScoped() bool {
	switch i {
	case IntentMemberVerification, IntentDeductibleOOP, IntentBenefitAccumulator:
		return true
	}
	return false
}

// PriorityRank returns the position of the intent in IntentPriority, lower is
// higher priority. Unknown intents sort last.
func (i Intent) PriorityRank() int {
	for idx, p := range IntentPriority {
		if p == i {
			return idx
		}
	}
	return len(IntentPriority)
}
