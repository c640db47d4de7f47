package model

// Severity grades a risk finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// rank orders severities for escalation comparisons.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// RiskFinding is one threshold-rule hit against a structured test item.
type RiskFinding struct {
	RuleName      string   `json:"rule"`
	TestName      string   `json:"test"`
	ObservedValue string   `json:"value"`
	Threshold     float64  `json:"threshold"`
	Severity      Severity `json:"severity"`
}

// RiskAssessment aggregates findings. OverallRisk escalates to the maximum
// severity observed and never downgrades within one assessment.
type RiskAssessment struct {
	OverallRisk     Severity      `json:"overall_risk"`
	Findings        []RiskFinding `json:"identified_risks"`
	UrgentAttention []RiskFinding `json:"urgent_attention_needed"`
}

// Escalate raises OverallRisk to sev if sev is more severe.
func (a *RiskAssessment) Escalate(sev Severity) {
	if !a.OverallRisk.AtLeast(sev) {
		a.OverallRisk = sev
	}
}

// ValidationResult is the outcome of checking a generated recommendation.
// Warnings are advisory; any BlockedContent entry means Approved is false.
type ValidationResult struct {
	Approved       bool     `json:"approved"`
	Warnings       []string `json:"warnings"`
	BlockedContent []string `json:"blocked_content"`
}
