// internal/agents/deductible-oop/models.go
package deductibleoop

// Financials is one plan-year row of deductible and out-of-pocket amounts.
// Monetary values are cents.
type Financials struct {
	MemberID            string `json:"memberId"`
	PlanYear            int    `json:"planYear"`
	DeductibleLimit     int64  `json:"deductibleLimitCents"`
	DeductibleApplied   int64  `json:"deductibleAppliedCents"`
	DeductibleRemaining int64  `json:"deductibleRemainingCents"`
	OOPLimit            int64  `json:"oopLimitCents"`
	OOPApplied          int64  `json:"oopAppliedCents"`
	OOPRemaining        int64  `json:"oopRemainingCents"`
	DeductibleMet       bool   `json:"deductibleMet"`
	OOPMet              bool   `json:"oopMet"`
}

// Output is the agent's success payload.
type Output struct {
	Financials Financials `json:"financials"`
}
