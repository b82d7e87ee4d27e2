package domain

// PolicyConfig carries the lender-tunable decision thresholds. Zero
// values are invalid; use DefaultPolicy and override fields explicitly.
type PolicyConfig struct {
	MinCreditScore       int     `json:"minCreditScore"`
	MaxDTI               float64 `json:"maxDti"`
	MaxPD                float64 `json:"maxPd"`
	MinRepaymentCapacity float64 `json:"minRepaymentCapacity"`
}

// DefaultPolicy returns the standard threshold set.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		MinCreditScore:       500,
		MaxDTI:               60,
		MaxPD:                6.0,
		MinRepaymentCapacity: 20,
	}
}

// Validate checks the policy for internally consistent, in-range
// thresholds. A failing policy must never reach the decision engine.
func (p PolicyConfig) Validate() error {
	if p.MinCreditScore < 300 || p.MinCreditScore > 1000 {
		return &ConfigurationError{Field: "minCreditScore", Reason: "must be within [300,1000]"}
	}
	if p.MaxDTI <= 0 || p.MaxDTI > 100 {
		return &ConfigurationError{Field: "maxDti", Reason: "must be within (0,100]"}
	}
	if p.MaxPD <= 0 || p.MaxPD > 10 {
		return &ConfigurationError{Field: "maxPd", Reason: "must be within (0,10]"}
	}
	if p.MinRepaymentCapacity < 0 || p.MinRepaymentCapacity >= 100 {
		return &ConfigurationError{Field: "minRepaymentCapacity", Reason: "must be within [0,100)"}
	}
	return nil
}
