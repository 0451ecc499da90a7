package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/synaptica-ai/cardiorisk/pkg/common/config"
	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
	"github.com/synaptica-ai/cardiorisk/pkg/insight"
	"github.com/synaptica-ai/cardiorisk/pkg/serving"
	"github.com/synaptica-ai/cardiorisk/pkg/serving/predictor"
)

var predictHistoryCmd = &cobra.Command{
	Use:   "predict-history",
	Short: "Predict severity of one heart-rate reading with the telemetry model",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		in := models.TelemetryInput{
			HeartRate: optionalFloat(flags, "heart-rate"),
			Age:       optionalFloat(flags, "age"),
			Weight:    optionalFloat(flags, "weight"),
		}
		in.Gender, _ = flags.GetString("gender")
		in.Conditions, _ = flags.GetStringSlice("conditions")
		if flags.Changed("hour") {
			hour, _ := flags.GetInt("hour")
			in.Hour = &hour
		}

		svc, err := newService(cmd)
		if err != nil {
			return reportError(cmd, err)
		}
		d, err := svc.PredictHistory(cmd.Context(), in)
		if err != nil {
			return reportError(cmd, err)
		}
		return writeJSON(cmd.OutOrStdout(), serving.NewEnvelope(d))
	},
}

// clinicalFlags name the static model inputs in dataset column order.
var clinicalFlags = []struct {
	name  string
	usage string
}{
	{"age", "Age in years"},
	{"sex", "Sex (1 = male, 0 = female)"},
	{"cp", "Chest pain type (0-3)"},
	{"trestbps", "Resting blood pressure (mm Hg)"},
	{"chol", "Serum cholesterol (mg/dl)"},
	{"fbs", "Fasting blood sugar > 120 mg/dl (1/0)"},
	{"restecg", "Resting ECG result (0-2)"},
	{"thalach", "Maximum heart rate achieved"},
	{"exang", "Exercise induced angina (1/0)"},
	{"oldpeak", "ST depression induced by exercise"},
	{"slope", "Slope of the peak exercise ST segment"},
	{"ca", "Major vessels coloured by fluoroscopy (0-3)"},
	{"thal", "Thalassemia (1-3)"},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Score a clinical record with the static model and print guidance",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		in := models.ClinicalInput{
			Age:       optionalFloat(flags, "age"),
			Sex:       optionalFloat(flags, "sex"),
			CP:        optionalFloat(flags, "cp"),
			Trestbps:  optionalFloat(flags, "trestbps"),
			Chol:      optionalFloat(flags, "chol"),
			FBS:       optionalFloat(flags, "fbs"),
			RestECG:   optionalFloat(flags, "restecg"),
			Thalach:   optionalFloat(flags, "thalach"),
			Exang:     optionalFloat(flags, "exang"),
			Oldpeak:   optionalFloat(flags, "oldpeak"),
			Slope:     optionalFloat(flags, "slope"),
			CA:        optionalFloat(flags, "ca"),
			Thal:      optionalFloat(flags, "thal"),
			HeartRate: optionalFloat(flags, "heart-rate"),
		}

		svc, err := newService(cmd)
		if err != nil {
			return reportError(cmd, err)
		}
		d, err := svc.PredictStatic(cmd.Context(), "", in)
		if err != nil {
			return reportError(cmd, err)
		}
		return writeJSON(cmd.OutOrStdout(), serving.NewEnvelope(d))
	},
}

func init() {
	predictHistoryCmd.Flags().Float64("heart-rate", 0, "Heart rate in bpm (required)")
	predictHistoryCmd.Flags().Float64("age", 0, "Age in years")
	predictHistoryCmd.Flags().Float64("weight", 0, "Weight in kg")
	predictHistoryCmd.Flags().String("gender", "", "Gender")
	predictHistoryCmd.Flags().StringSlice("conditions", nil, "Comma separated conditions")
	predictHistoryCmd.Flags().Int("hour", 0, "Hour of the reading (0-23); defaults to midday")
	_ = predictHistoryCmd.MarkFlagRequired("heart-rate")

	for _, f := range clinicalFlags {
		diagnoseCmd.Flags().Float64(f.name, 0, f.usage)
	}
	diagnoseCmd.Flags().Float64("heart-rate", 0, "Live heart rate; stands in for --thalach and refines guidance")
}

func optionalFloat(flags *pflag.FlagSet, name string) *float64 {
	if !flags.Changed(name) {
		return nil
	}
	v, err := flags.GetFloat64(name)
	if err != nil {
		return nil
	}
	return &v
}

func newService(cmd *cobra.Command) (*serving.Service, error) {
	cfg := config.Load()
	catalog, err := insight.LoadCatalog(cfg.InsightCatalogPath)
	if err != nil {
		return nil, err
	}
	return serving.NewService(serving.Deps{
		Predictor: predictor.NewPredictor(artifactStore(cmd, cfg)),
		Insights:  insight.NewEngine(catalog),
	}, serving.Options{}), nil
}
