package insight

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	UrgencyRoutine   = "routine"
	UrgencyUrgent    = "urgent"
	UrgencyEmergency = "emergency"

	defaultAttentionSeverity = 2

	RuleBelow = "below"
	RuleAbove = "above"
)

// HeartRateRule adds Items when the reading is strictly below or above
// Threshold.
type HeartRateRule struct {
	When      string   `yaml:"when" json:"when"`
	Threshold float64  `yaml:"threshold" json:"threshold"`
	Items     []string `yaml:"items" json:"items"`
}

func (r HeartRateRule) Match(hr float64) bool {
	switch r.When {
	case RuleBelow:
		return hr < r.Threshold
	case RuleAbove:
		return hr > r.Threshold
	default:
		return false
	}
}

// Catalog holds every guidance table keyed by severity 0-4. Assessment
// templates may contain {confidence}, rendered with one decimal.
type Catalog struct {
	Assessments         map[int]string   `yaml:"assessments" json:"assessments"`
	Titles              map[int]string   `yaml:"titles" json:"titles"`
	Urgency             map[int]string   `yaml:"urgency" json:"urgency"`
	Recommendations     map[int][]string `yaml:"recommendations" json:"recommendations"`
	RiskFactors         map[int][]string `yaml:"risk_factors" json:"risk_factors"`
	PreventiveMeasures  map[int][]string `yaml:"preventive_measures" json:"preventive_measures"`
	RecommendationRules []HeartRateRule  `yaml:"recommendation_rules" json:"recommendation_rules"`
	RiskFactorRules     []HeartRateRule  `yaml:"risk_factor_rules" json:"risk_factor_rules"`
	UnknownAssessment   string           `yaml:"unknown_assessment" json:"unknown_assessment"`
	UnknownTitle        string           `yaml:"unknown_title" json:"unknown_title"`
	AttentionSeverity   *int             `yaml:"attention_severity" json:"attention_severity"`
	DefaultHeartRate    float64          `yaml:"default_heart_rate" json:"default_heart_rate"`
}

// LoadCatalog reads a YAML catalog. An empty path yields the built-in
// catalog; tables missing from the file keep their built-in content.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	return ParseCatalog(content)
}

func ParseCatalog(content []byte) (Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	cat.fill(DefaultCatalog())
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

func (c *Catalog) fill(def Catalog) {
	if len(c.Assessments) == 0 {
		c.Assessments = def.Assessments
	}
	if len(c.Titles) == 0 {
		c.Titles = def.Titles
	}
	if len(c.Urgency) == 0 {
		c.Urgency = def.Urgency
	}
	if len(c.Recommendations) == 0 {
		c.Recommendations = def.Recommendations
	}
	if len(c.RiskFactors) == 0 {
		c.RiskFactors = def.RiskFactors
	}
	if len(c.PreventiveMeasures) == 0 {
		c.PreventiveMeasures = def.PreventiveMeasures
	}
	if c.RecommendationRules == nil {
		c.RecommendationRules = def.RecommendationRules
	}
	if c.RiskFactorRules == nil {
		c.RiskFactorRules = def.RiskFactorRules
	}
	if c.UnknownAssessment == "" {
		c.UnknownAssessment = def.UnknownAssessment
	}
	if c.UnknownTitle == "" {
		c.UnknownTitle = def.UnknownTitle
	}
	if c.AttentionSeverity == nil {
		c.AttentionSeverity = def.AttentionSeverity
	}
	if c.DefaultHeartRate == 0 {
		c.DefaultHeartRate = def.DefaultHeartRate
	}
}

// NeedsAttention reports whether severity reaches the attention threshold.
func (c Catalog) NeedsAttention(severity int) bool {
	threshold := defaultAttentionSeverity
	if c.AttentionSeverity != nil {
		threshold = *c.AttentionSeverity
	}
	return severity >= threshold
}

func intPtr(v int) *int { return &v }

// Validate checks that every severity has an assessment and that rules are
// well formed.
func (c Catalog) Validate() error {
	for sev := 0; sev <= MaxSeverity; sev++ {
		if _, ok := c.Assessments[sev]; !ok {
			return fmt.Errorf("insight catalog: no assessment for severity %d", sev)
		}
	}
	for _, rules := range [][]HeartRateRule{c.RecommendationRules, c.RiskFactorRules} {
		for _, r := range rules {
			if r.When != RuleBelow && r.When != RuleAbove {
				return fmt.Errorf("insight catalog: rule condition %q", r.When)
			}
		}
	}
	return nil
}

func DefaultCatalog() Catalog {
	return Catalog{
		Assessments: map[int]string{
			0: "AI assessment: very low cardiovascular risk ({confidence}% confidence). Heart rate and other indicators are within normal range.",
			1: "AI finding: low cardiovascular risk ({confidence}% confidence). Keep monitoring and maintain a healthy lifestyle.",
			2: "AI warning: moderate cardiovascular risk ({confidence}% confidence). Regular health checkups are recommended.",
			3: "AI serious warning: high cardiovascular risk ({confidence}% confidence). Early medical intervention is needed.",
			4: "AI caution: very high cardiovascular risk ({confidence}% confidence). Emergency medical care required!",
		},
		Titles: map[int]string{
			0: "Healthy heart rate",
			1: "Heart rate needs monitoring",
			2: "Moderate cardiovascular risk",
			3: "High cardiovascular risk",
			4: "Very high cardiovascular risk - caution",
		},
		Urgency: map[int]string{
			0: UrgencyRoutine,
			1: UrgencyRoutine,
			2: UrgencyUrgent,
			3: UrgencyUrgent,
			4: UrgencyEmergency,
		},
		Recommendations: map[int][]string{
			0: {"Maintain a balanced diet", "Exercise regularly", "Have periodic health checkups"},
			1: {"Monitor blood pressure at home", "Learn stress management techniques", "See a cardiologist every 6 months"},
			2: {"Get a cardiology exam within 3 months", "Have an electrocardiogram (ECG)", "Check cholesterol levels"},
			3: {"See a cardiology specialist now", "Start a heart-healthy diet", "Consult a specialist physician"},
			4: {"Go to the emergency room immediately", "Do not drive alone", "Prepare your medical history"},
		},
		RiskFactors: map[int][]string{
			1: {"Sedentary lifestyle", "Smoking"},
			2: {"Hypertension", "High blood cholesterol", "Family history"},
			3: {"Obesity", "Type 2 diabetes", "Dyslipidemia"},
			4: {"Coronary artery disease", "Congestive heart failure", "Severe arrhythmia"},
		},
		PreventiveMeasures: map[int][]string{
			0: {"Maintain a healthy weight", "Do not smoke", "Limit alcohol"},
			1: {"Manage stress", "Sleep 7-8 hours a night", "Eat more vegetables and fruit"},
			2: {"Monitor blood pressure weekly", "Walk 30 minutes a day", "Limit salt"},
			3: {"Aerobic exercise 3-4 times a week", "Monitor cholesterol", "Attend periodic checkups"},
			4: {"Strictly follow your doctor's orders", "Watch for emergency warning signs", "Keep emergency medication ready"},
		},
		RecommendationRules: []HeartRateRule{
			{When: RuleBelow, Threshold: 60, Items: []string{"Increase light physical activity", "Monitor heart rate daily"}},
			{When: RuleAbove, Threshold: 100, Items: []string{"Reduce caffeine and stimulants", "Practice relaxation techniques"}},
		},
		RiskFactorRules: []HeartRateRule{
			{When: RuleBelow, Threshold: 50, Items: []string{"Advanced age", "Use of cardiac medication"}},
			{When: RuleAbove, Threshold: 120, Items: []string{"Prolonged stress", "Chronic sleep deprivation"}},
		},
		UnknownAssessment: "Unable to assess",
		UnknownTitle:      "Unknown",
		AttentionSeverity: intPtr(defaultAttentionSeverity),
		DefaultHeartRate:  80,
	}
}
