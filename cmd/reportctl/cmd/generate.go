package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openedu-urfu/reportctl/config"
	"github.com/openedu-urfu/reportctl/edx"
	"github.com/openedu-urfu/reportctl/runner"
	"github.com/openedu-urfu/reportctl/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Trigger grade-report generation for every course",
	Long: `Authenticates through the browser-style login flow, enumerates all
courses and asks the platform to generate the grade-report CSV for each one.
The platform produces the files asynchronously; this command only queues
them. Exits non-zero when authentication fails, no courses are found or
every course fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateAuth(); err != nil {
			return err
		}
		logger := config.NewLogger(verbose)

		auth := edx.NewAuthenticator(cfg.BaseURL, cfg.EmailDomain, edx.WithLogger(logger))
		catalog := edx.NewCatalogClient(edx.WithCatalogLogger(logger))
		trigger := edx.NewTriggerClient(auth, edx.WithTriggerLogger(logger))

		opts := []runner.Option{
			runner.WithRunnerLogger(logger),
			runner.WithPace(cfg.Pace),
		}
		if cfg.SnapshotPath != "" {
			snap, err := store.Open(cfg.SnapshotPath)
			if err != nil {
				return err
			}
			defer snap.Close()
			opts = append(opts, runner.WithSnapshot(snap))
		}

		outcome, err := runner.New(auth, catalog, trigger, opts...).Run(cmd.Context(), cfg.Username, cfg.Password)
		fmt.Fprintf(cmd.OutOrStdout(), "Courses: %d, succeeded: %d, failed: %d, skipped: %d\n",
			outcome.Total, outcome.Succeeded, outcome.Failed, outcome.Skipped)
		return err
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
