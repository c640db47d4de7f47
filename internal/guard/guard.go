package guard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/width"

	"github.com/hxxxer/CheckupAI/internal/config"
	"github.com/hxxxer/CheckupAI/internal/model"
)

// leadingNumber matches a numeric prefix, so results like "150 ↑" still
// yield a comparable value.
var leadingNumber = regexp.MustCompile(`^[-+]?[0-9]+(?:\.[0-9]+)?`)

// Guard holds the rule tables, read-only after construction.
type Guard struct {
	rules             []RiskRule
	contraindications map[string][]string
	dangerous         []*regexp.Regexp
}

// New compiles a RuleSet into a Guard.
func New(rs RuleSet) (*Guard, error) {
	g := &Guard{
		rules:             rs.RiskRules,
		contraindications: rs.Contraindications,
	}
	for _, pattern := range rs.DangerousPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "guard: compile pattern %q", pattern)
		}
		g.dangerous = append(g.dangerous, re)
	}
	return g, nil
}

// NewFromConfig builds a Guard from the configured rules file, falling back
// to the compiled-in defaults when no path is set.
func NewFromConfig(cfg config.GuardConfig) (*Guard, error) {
	rs := DefaultRuleSet()
	if cfg.RulesPath != "" {
		loaded, err := LoadRuleSet(cfg.RulesPath)
		if err != nil {
			return nil, err
		}
		rs = loaded
	}
	return New(rs)
}

// parseValue extracts a numeric value from a result string. Full-width
// digits are folded first. Returns false for non-numeric results; those are
// skipped, never treated as zero.
func parseValue(result string) (float64, bool) {
	s := strings.TrimSpace(width.Fold.String(result))
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if m := leadingNumber.FindString(s); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// AssessRiskLevel applies the threshold rules to every structured test item.
// OverallRisk escalates monotonically to the most severe finding; every
// high-severity finding is also listed for urgent attention.
func (g *Guard) AssessRiskLevel(report *model.StructuredReport) model.RiskAssessment {
	assessment := model.RiskAssessment{OverallRisk: model.SeverityLow}
	if report == nil {
		return assessment
	}

	for _, rule := range g.rules {
		for _, item := range report.AllItems() {
			if !matchesIndicator(rule.Indicators, item.ItemName) {
				continue
			}
			threshold, ok := rule.Thresholds[item.ItemName]
			if !ok {
				continue
			}
			value, ok := parseValue(item.Result)
			if !ok {
				continue
			}
			if value > threshold {
				finding := model.RiskFinding{
					RuleName:      rule.Name,
					TestName:      item.ItemName,
					ObservedValue: item.Result,
					Threshold:     threshold,
					Severity:      rule.Severity,
				}
				assessment.Findings = append(assessment.Findings, finding)
				assessment.Escalate(rule.Severity)
				if rule.Severity == model.SeverityHigh {
					assessment.UrgentAttention = append(assessment.UrgentAttention, finding)
				}
			}
		}
	}

	return assessment
}

func matchesIndicator(indicators []string, name string) bool {
	for _, ind := range indicators {
		if ind == name {
			return true
		}
	}
	return false
}

// ValidateRecommendation checks generated text against the contraindication
// and dangerous-pattern tables. Contraindication hits are advisory warnings;
// a dangerous-pattern match is a hard block. The two checks run
// independently, so a recommendation can carry warnings yet stay approved.
func (g *Guard) ValidateRecommendation(recommendation string, profile *model.UserProfile) model.ValidationResult {
	result := model.ValidationResult{Approved: true}

	if profile != nil {
		for _, condition := range profile.ChronicConditions {
			for _, item := range g.contraindications[condition] {
				if strings.Contains(recommendation, item) {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("警告: 患有%s的患者应谨慎使用%s", condition, item))
				}
			}
		}
	}

	for _, re := range g.dangerous {
		if re.MatchString(recommendation) {
			result.Approved = false
			result.BlockedContent = append(result.BlockedContent,
				fmt.Sprintf("检测到危险建议: %s", re.String()))
		}
	}

	return result
}
