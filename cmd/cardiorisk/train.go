package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/cardiorisk/pkg/common/config"
	"github.com/synaptica-ai/cardiorisk/pkg/common/database"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
	"github.com/synaptica-ai/cardiorisk/pkg/training"
)

var trainStaticCmd = &cobra.Command{
	Use:   "train-static",
	Short: "Train the clinical model from the UCI heart-disease CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		data, _ := cmd.Flags().GetString("data")
		candidates, _ := cmd.Flags().GetStringSlice("candidates")

		runner := newRunner(cmd, cfg, nil)
		res, err := runner.RunStatic(cmd.Context(), training.StaticRequest{DataPath: data, Candidates: candidates})
		if err != nil {
			return reportError(cmd, err)
		}
		return writeJSON(cmd.OutOrStdout(), trainingOutput(res))
	},
}

var trainHistoryCmd = &cobra.Command{
	Use:   "train-history",
	Short: "Train the telemetry model from stored heart-rate readings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		days, _ := cmd.Flags().GetInt("days")
		labelSource, _ := cmd.Flags().GetString("label-source")
		candidates, _ := cmd.Flags().GetStringSlice("candidates")
		window := records.Window{Days: days}
		for _, bound := range []struct {
			flag string
			dst  **time.Time
		}{{"start", &window.Start}, {"end", &window.End}} {
			v, _ := cmd.Flags().GetString(bound.flag)
			if v == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return reportError(cmd, fmt.Errorf("--%s: %w", bound.flag, err))
			}
			*bound.dst = &t
		}
		if !records.ValidLabelSource(labelSource) {
			return reportError(cmd, fmt.Errorf("unknown label source %q", labelSource))
		}

		ctx := cmd.Context()
		client, err := database.GetMongo(ctx)
		if err != nil {
			return reportError(cmd, err)
		}
		defer database.CloseMongo(context.Background())
		connectCtx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
		src, err := records.NewMongoSource(connectCtx, client.Database(cfg.MongoDatabase), cfg.MongoDataCollections, cfg.MongoUserCollections)
		cancel()
		if err != nil {
			return reportError(cmd, err)
		}

		runner := newRunner(cmd, cfg, src)
		res, err := runner.RunHistory(ctx, training.HistoryRequest{Window: window, LabelSource: labelSource, Candidates: candidates})
		if err != nil {
			return reportError(cmd, err)
		}
		return writeJSON(cmd.OutOrStdout(), trainingOutput(res))
	},
}

func init() {
	cfg := config.Load()

	trainStaticCmd.Flags().String("data", "", "Dataset path (defaults to STATIC_DATA_PATH)")
	trainStaticCmd.Flags().StringSlice("candidates", nil, "Candidate classifiers (defaults to STATIC_CANDIDATES)")

	trainHistoryCmd.Flags().Int("days", cfg.HistoryWindowDays, "Look-back window in days; 0 reads everything")
	trainHistoryCmd.Flags().String("start", "", "Window start (RFC 3339); overrides --days")
	trainHistoryCmd.Flags().String("end", "", "Window end (RFC 3339)")
	trainHistoryCmd.Flags().String("label-source", cfg.HistoryLabelSource, "Label origin: aiDiagnosis.severity, status or auto")
	trainHistoryCmd.Flags().StringSlice("candidates", nil, "Candidate classifiers (defaults to HISTORY_CANDIDATES)")
}

func newRunner(cmd *cobra.Command, cfg *config.Config, history training.HistorySource) *training.Runner {
	return training.NewRunner(training.RunnerConfig{
		StaticDataPath:    cfg.StaticDataPath,
		StaticCandidates:  cfg.StaticCandidates,
		HistoryCandidates: cfg.HistoryCandidates,
		ConditionLimit:    cfg.ConditionLimit,
		MinRows:           cfg.MinTrainingRows,
		Workers:           cfg.CandidateWorkers,
	}, artifactStore(cmd, cfg), history)
}

func trainingOutput(res *training.Result) map[string]interface{} {
	candidates := make([]map[string]interface{}, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		candidates = append(candidates, map[string]interface{}{
			"name":          c.Name,
			"cv_macro_f1":   c.CVMacroF1,
			"test_accuracy": c.TestAccuracy,
			"winner":        c.Winner,
		})
	}
	return map[string]interface{}{
		"success":          true,
		"pipeline":         res.Pipeline,
		"run_id":           res.RunID,
		"winner":           res.Winner,
		"artifact_path":    res.ArtifactPath,
		"rows":             res.Rows,
		"dropped":          res.Dropped,
		"candidates":       candidates,
		"duration_seconds": res.Duration.Seconds(),
	}
}
