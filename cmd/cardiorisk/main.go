// Command cardiorisk trains and queries the cardiovascular risk models from
// the shell. Results are written to stdout as JSON; logs go to stderr.
package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/synaptica-ai/cardiorisk/pkg/artifact"
	"github.com/synaptica-ai/cardiorisk/pkg/common/config"
	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
)

// errReported marks a failure whose JSON body was already written.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:           "cardiorisk",
	Short:         "Cardiovascular risk model training and prediction",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logger.InitWithOutput(os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().String("artifact-dir", "", "Artifact directory (overrides ARTIFACT_DIR)")

	rootCmd.AddCommand(trainStaticCmd)
	rootCmd.AddCommand(trainHistoryCmd)
	rootCmd.AddCommand(predictHistoryCmd)
	rootCmd.AddCommand(diagnoseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			_ = writeJSON(os.Stdout, models.ErrorResponse{Error: err.Error()})
		}
		os.Exit(1)
	}
}

func artifactStore(cmd *cobra.Command, cfg *config.Config) *artifact.Store {
	dir, _ := cmd.Flags().GetString("artifact-dir")
	if dir == "" {
		dir = cfg.ArtifactDir
	}
	return artifact.NewStore(dir)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError writes the error body and marks err as reported. A missing
// model is reported with the path that was looked up.
func reportError(cmd *cobra.Command, err error) error {
	body := models.ErrorResponse{Error: err.Error()}
	var missing *artifact.MissingArtifactError
	if errors.As(err, &missing) {
		body = models.ErrorResponse{Error: "Model file not found", Path: missing.Path}
	}
	if werr := writeJSON(cmd.OutOrStdout(), body); werr != nil {
		return werr
	}
	return errReported
}
