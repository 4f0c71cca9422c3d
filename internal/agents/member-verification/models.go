// internal/agents/member-verification/models.go
package memberverification

import "time"

// Member is one enrollment row from the members table.
type Member struct {
	MemberID        string     `json:"memberId"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	PlanCode        string     `json:"planCode"`
	Status          string     `json:"status"`
	EffectiveDate   time.Time  `json:"effectiveDate"`
	TerminationDate *time.Time `json:"terminationDate,omitempty"`
}

// Output is the agent's success payload.
type Output struct {
	Member Member `json:"member"`
	Active bool   `json:"active"`
	Source string `json:"source"` // "database" or "cache"
}
