package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/openlibrary-harvester/internal/app"
	"github.com/JakeFAU/openlibrary-harvester/internal/config"
)

var cfgFile string

// App is the slice of the application the commands drive. It is an
// interface so tests can inject a fake factory.
type App interface {
	Run(ctx context.Context) error
	Close()
}

// newApp is the application factory. It's a variable so we can replace it
// with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "An incremental subject harvester for the OpenLibrary catalog.",
		Long: `harvester walks an OpenLibrary subject search page by page, enriches
every referenced work with its detail and rating documents, and appends
the results to an incremental store. Reruns pick up where earlier runs
left off: works already stored are never appended twice.`,
	}

	// Define persistent flags.
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default looks for harvester.yaml in the working directory)")

	// Add subcommands.
	cmd.AddCommand(newHarvestCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
