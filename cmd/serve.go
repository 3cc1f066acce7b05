package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/byteberry/statsync/pkg/server"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	serveCfgFile string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, worker, and status API",
	Long: `The serve command runs statsync as a long-lived service: the
scheduler enqueues sync tasks for targets whose cron schedule is due,
the worker processes them sequentially, and the status API exposes
target configuration and recent sync results.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveCfgFile, "config", "config.yaml", "config file (default is config.yaml)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := loadConfigFromFile(serveCfgFile)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(config.LoggingLevel)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetLevel(level)

	log.Info("Configuration loaded")

	srv, err := server.NewServer(cmd.Context(), log, config)
	if err != nil {
		return err
	}

	return srv.Start(cmd.Context())
}
