package serving

import "github.com/synaptica-ai/cardiorisk/pkg/insight"

// Envelope is the response shape shared by the command line and the HTTP
// API.
type Envelope struct {
	Success    bool                   `json:"success"`
	Prediction EnvelopePrediction     `json:"prediction"`
	Insights   *insight.Report        `json:"insights,omitempty"`
	Input      map[string]interface{} `json:"input"`
	Meta       EnvelopeMeta           `json:"meta"`
}

type EnvelopePrediction struct {
	Label         string         `json:"label"`
	LabelIndex    int            `json:"label_index"`
	Probabilities []float64      `json:"probabilities"`
	LabelMap      map[string]int `json:"label_map"`
	Confidence    float64        `json:"confidence"`
	Severity      *int           `json:"severity,omitempty"`
	RiskLevel     string         `json:"risk_level,omitempty"`
}

type EnvelopeMeta struct {
	Pipeline              string `json:"pipeline"`
	RunID                 string `json:"run_id"`
	FeatureNamesCount     int    `json:"feature_names_count"`
	ConditionsVectorCount int    `json:"conditions_vector_count"`
}

func NewEnvelope(d Diagnosis) Envelope {
	p := d.Prediction
	return Envelope{
		Success: true,
		Prediction: EnvelopePrediction{
			Label:         p.Label,
			LabelIndex:    p.LabelIndex,
			Probabilities: p.Probabilities,
			LabelMap:      p.LabelMap,
			Confidence:    p.Confidence,
			Severity:      p.Severity,
			RiskLevel:     p.RiskLevel,
		},
		Insights: d.Insights,
		Input:    d.Input,
		Meta: EnvelopeMeta{
			Pipeline:              p.Pipeline,
			RunID:                 p.RunID,
			FeatureNamesCount:     p.FeatureCount,
			ConditionsVectorCount: p.Conditions,
		},
	}
}
