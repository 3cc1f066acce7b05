package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/byteberry/statsync/pkg/server"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	syncCfgFile string
	syncTarget  string
)

// syncCmd represents the sync command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a one-shot sync of the configured targets",
	Long: `Sync runs a single pass over the configured targets and exits.
Each target is planned against the current destination contents, so a
fresh tab gets a full rebuild and an up-to-date one only appends the
missing days.

Examples:
  # Sync every configured target
  statsync sync --config config.yaml

  # Sync a single target
  statsync sync --config config.yaml --target linkedin:123`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncCfgFile, "config", "config.yaml", "config file (default is config.yaml)")
	syncCmd.Flags().StringVar(&syncTarget, "target", "", "Sync only this target (e.g., linkedin:123)")
}

func runSync(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := loadConfigFromFile(syncCfgFile)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(config.LoggingLevel)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetLevel(level)

	srv, err := server.NewServer(cmd.Context(), log, config)
	if err != nil {
		return err
	}

	report, err := srv.RunOnce(cmd.Context(), syncTarget)
	if err != nil {
		return err
	}

	for i := range report.Results {
		result := &report.Results[i]

		entry := log.WithFields(logrus.Fields{
			"target":       result.Target,
			"mode":         result.Mode,
			"rows_written": result.RowsWritten,
			"rows_updated": result.RowsUpdated,
			"duration":     result.Duration,
		})

		if result.Error != "" {
			entry.WithField("error", result.Error).Error("Target sync failed")
			continue
		}

		entry.Info("Target sync finished")
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d targets failed", report.Failed, len(report.Results))
	}

	return nil
}
