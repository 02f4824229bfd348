package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openedu-urfu/reportctl/config"
)

var (
	cfgFile      string
	verbose      bool
	baseURL      string
	gradesDir    string
	snapshotPath string
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "reportctl automates Open edX instructor reports",
	Long: `reportctl logs in to an Open edX deployment as a staff user, triggers
grade-report generation for every course and correlates the locally stored
report files with the course catalog for freshness reporting.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig builds the runtime configuration. Precedence, lowest to
// highest: deployment defaults, the YAML file, OPENEDU_* environment
// variables, command-line flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if gradesDir != "" {
		cfg.GradesDir = gradesDir
	}
	if snapshotPath != "" {
		cfg.SnapshotPath = snapshotPath
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to an optional YAML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&baseURL, "base-url", "", "Platform base URL (overrides config file and environment)")
	pf.StringVar(&gradesDir, "grades-dir", "", "Local report-file directory (overrides config file and environment)")
	pf.StringVar(&snapshotPath, "snapshot", "", "Catalog snapshot database path (overrides config file and environment)")
}
