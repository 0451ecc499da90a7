// Package insight turns a severity estimate into deterministic clinical
// guidance.
package insight

import (
	"fmt"
	"strings"
)

const MaxSeverity = 4

// Vitals are the raw readings that refine the guidance.
type Vitals struct {
	HeartRate *float64 `json:"heart_rate,omitempty"`
}

type Report struct {
	Severity           int      `json:"severity"`
	Confidence         float64  `json:"confidence"`
	Title              string   `json:"title"`
	Assessment         string   `json:"risk_assessment"`
	Recommendations    []string `json:"recommendations"`
	RiskFactors        []string `json:"risk_factors"`
	PreventiveMeasures []string `json:"preventive_measures"`
	NeedsAttention     bool     `json:"needs_attention"`
	UrgencyLevel       string   `json:"urgency_level"`
}

type Engine struct {
	catalog Catalog
}

func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Generate is pure: the same inputs always give the same report. Lists keep
// first-occurrence order with duplicates removed. A severity outside 0-4
// yields the placeholder assessment and no severity-keyed items.
func (e *Engine) Generate(severity int, confidence float64, v Vitals) Report {
	hr := e.catalog.DefaultHeartRate
	if v.HeartRate != nil {
		hr = *v.HeartRate
	}
	known := severity >= 0 && severity <= MaxSeverity

	r := Report{
		Severity:     severity,
		Confidence:   confidence,
		Title:        e.catalog.UnknownTitle,
		Assessment:   e.catalog.UnknownAssessment,
		UrgencyLevel: UrgencyRoutine,
	}
	if known {
		if t, ok := e.catalog.Titles[severity]; ok {
			r.Title = t
		}
		if a, ok := e.catalog.Assessments[severity]; ok {
			r.Assessment = strings.ReplaceAll(a, "{confidence}", fmt.Sprintf("%.1f", confidence))
		}
		if u, ok := e.catalog.Urgency[severity]; ok {
			r.UrgencyLevel = u
		}
		r.NeedsAttention = e.catalog.NeedsAttention(severity)
	}

	r.Recommendations = dedupe(ruleItems(e.catalog.RecommendationRules, hr), severityItems(e.catalog.Recommendations, severity, known))
	r.RiskFactors = dedupe(ruleItems(e.catalog.RiskFactorRules, hr), severityItems(e.catalog.RiskFactors, severity, known))
	r.PreventiveMeasures = dedupe(severityItems(e.catalog.PreventiveMeasures, severity, known))
	return r
}

func ruleItems(rules []HeartRateRule, hr float64) []string {
	var out []string
	for _, rule := range rules {
		if rule.Match(hr) {
			out = append(out, rule.Items...)
		}
	}
	return out
}

func severityItems(table map[int][]string, severity int, known bool) []string {
	if !known {
		return nil
	}
	return table[severity]
}

func dedupe(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, list := range lists {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
