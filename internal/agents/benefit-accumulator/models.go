// internal/agents/benefit-accumulator/models.go
package benefitaccumulator

// Accumulator tracks consumption of one limited benefit, e.g. physical
// therapy visits.
type Accumulator struct {
	ServiceType    string `json:"serviceType"`
	UnitLabel      string `json:"unitLabel"` // "visits", "sessions", "units"
	AllowedUnits   int    `json:"allowedUnits"`
	UsedUnits      int    `json:"usedUnits"`
	RemainingUnits int    `json:"remainingUnits"`
	Exhausted      bool   `json:"exhausted"`
}

// Output is the agent's success payload.
type Output struct {
	MemberID     string        `json:"memberId"`
	PlanYear     int           `json:"planYear"`
	Accumulators []Accumulator `json:"accumulators"`
}
