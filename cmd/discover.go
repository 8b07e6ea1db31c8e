package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/careers-cli/internal/pipeline"
)

var (
	discoverFirmID int64
	discoverURL    string
	discoverHints  string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run posting discovery for a single careers listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		hints, err := pipeline.LoadHints(discoverHints)
		if err != nil {
			return eris.Wrap(err, "load hints")
		}

		run, err := env.Pipeline.Run(ctx, pipeline.RunRequest{
			FirmID:     discoverFirmID,
			ListingURL: discoverURL,
			Hints:      hints,
		})
		if err != nil {
			if run != nil {
				// The failed run record still identifies what to retry.
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(run)
			}
			return eris.Wrap(err, "discovery run")
		}

		zap.L().Info("discovery complete",
			zap.String("run_id", run.ID),
			zap.Int("roles_found", run.Metrics.RolesFound),
			zap.Int("roles_new", run.Metrics.RolesNew),
			zap.Int("roles_failed", run.Metrics.RolesFailed),
			zap.Float64("cost_usd", run.Metrics.TotalCostUSD),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	discoverCmd.Flags().Int64Var(&discoverFirmID, "firm", 0, "firm ID (required)")
	discoverCmd.Flags().StringVar(&discoverURL, "url", "", "careers listing URL (required)")
	discoverCmd.Flags().StringVar(&discoverHints, "hints", "", "per-site pagination hints YAML file")
	_ = discoverCmd.MarkFlagRequired("firm")
	_ = discoverCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(discoverCmd)
}
