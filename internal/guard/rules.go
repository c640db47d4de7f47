// Package guard is the deterministic safety layer: threshold rules over
// structured test items plus contraindication and dangerous-pattern checks
// over generated recommendation text. It makes no external calls.
package guard

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/hxxxer/CheckupAI/internal/model"
)

// RiskRule matches test items by name alias and flags values strictly above
// the alias's threshold. An alias without a threshold entry never fires.
type RiskRule struct {
	Name       string             `yaml:"name"`
	Indicators []string           `yaml:"indicators"`
	Thresholds map[string]float64 `yaml:"thresholds"`
	Severity   model.Severity     `yaml:"severity"`
}

// RuleSet is the full rule configuration, loadable from YAML so clinical
// staff can revise thresholds without a rebuild.
type RuleSet struct {
	RiskRules         []RiskRule          `yaml:"risk_rules"`
	Contraindications map[string][]string `yaml:"contraindications"`
	DangerousPatterns []string            `yaml:"dangerous_patterns"`
}

// DefaultRuleSet returns the compiled-in rules.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		RiskRules: []RiskRule{
			{
				Name:       "high_blood_pressure",
				Indicators: []string{"收缩压", "舒张压"},
				Thresholds: map[string]float64{"收缩压": 140, "舒张压": 90},
				Severity:   model.SeverityHigh,
			},
			{
				Name:       "high_blood_sugar",
				Indicators: []string{"血糖", "空腹血糖"},
				Thresholds: map[string]float64{"血糖": 6.1, "空腹血糖": 6.1},
				Severity:   model.SeverityHigh,
			},
			{
				Name:       "abnormal_liver_function",
				Indicators: []string{"ALT", "AST", "转氨酶"},
				Thresholds: map[string]float64{"ALT": 40, "AST": 40},
				Severity:   model.SeverityMedium,
			},
		},
		Contraindications: map[string][]string{
			"pregnancy":      {"X射线", "CT", "某些药物"},
			"kidney_disease": {"某些抗生素", "高蛋白饮食"},
			"liver_disease":  {"某些止痛药", "酒精"},
		},
		DangerousPatterns: []string{
			`停止.*治疗`,
			`不需要.*就医`,
			`忽略.*症状`,
			`自行.*手术`,
		},
	}
}

// LoadRuleSet reads a RuleSet from a YAML file.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, eris.Wrapf(err, "guard: read rules %s", path)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, eris.Wrapf(err, "guard: parse rules %s", path)
	}
	if len(rs.RiskRules) == 0 && len(rs.Contraindications) == 0 && len(rs.DangerousPatterns) == 0 {
		return RuleSet{}, eris.Errorf("guard: rules file %s defines no rules", path)
	}
	return rs, nil
}
