package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"devleads/config"
	"devleads/pipeline"
	"devleads/utils"
)

var (
	cfg    *config.Config
	logger *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "devleads",
	Short: "Redevelopment lead pipeline",
	Long: "Scrapes listing sites for a target market, flags properties with redevelopment potential, " +
		"enriches them with coordinates, ROI estimates and price history, and publishes the leads.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c

		l, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

var runMode string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := pipeline.ParseMode(runMode)
		if err != nil {
			return err
		}
		return runOnce(cmd.Context(), mode)
	},
}

// runOnce wires a fresh pipeline, runs it and tears it down.
func runOnce(ctx context.Context, mode pipeline.Mode) error {
	env, err := newEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	_, err = env.pipeline.Run(ctx, mode)
	return err
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", string(pipeline.ModeFull), "full or price_update")
	rootCmd.AddCommand(runCmd, scheduleCmd, migrateCmd, clearSheetCmd, checkEnvCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
