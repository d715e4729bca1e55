// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/openlibrary-harvester/internal/config"
)

// newHarvestCmd creates and configures the 'harvest' subcommand.
// It loads the configuration, applies any flag overrides, and drives one
// full harvest run through the application container.
func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs one incremental harvest",
		Long: `Fetches the configured number of subject search pages, enriches every
new work concurrently, and appends the results to the store. The run stops
early on interrupt; everything appended before the interrupt stays appended.`,

		RunE: runHarvestCommand,
	}

	cmd.Flags().String("subject", "", "subject to harvest (overrides config)")
	cmd.Flags().Int("pages", 0, "number of search pages to walk (overrides config)")
	cmd.Flags().Int("limit", 0, "results requested per search page (overrides config)")
	cmd.Flags().Int("concurrency", 0, "maximum concurrent enrichments (overrides config)")
	cmd.Flags().String("out", "", "CSV output path (overrides config, selects the csv store)")

	return cmd
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd, &cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appInstance, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer appInstance.Close()

	if err := appInstance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run harvest: %w", err)
	}
	return nil
}

// applyFlagOverrides lets explicit flags win over the loaded config. The
// merged config is re-validated so a bad flag value fails the same way a
// bad config value does.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("subject") {
		cfg.Harvest.Subject, _ = flags.GetString("subject")
	}
	if flags.Changed("pages") {
		cfg.Harvest.Pages, _ = flags.GetInt("pages")
	}
	if flags.Changed("limit") {
		cfg.Harvest.Limit, _ = flags.GetInt("limit")
	}
	if flags.Changed("concurrency") {
		cfg.Harvest.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("out") {
		out, _ := flags.GetString("out")
		cfg.Store.Provider = "csv"
		cfg.Store.CSV.Path = out
	}
	return cfg.Validate()
}
