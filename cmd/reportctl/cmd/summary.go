package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openedu-urfu/reportctl/config"
	"github.com/openedu-urfu/reportctl/edx"
	"github.com/openedu-urfu/reportctl/reports"
	"github.com/openedu-urfu/reportctl/store"
)

var offline bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show per-course report freshness from locally stored files",
	Long: `Scans the local report directory, joins the files against the course
catalog and prints one row per course and report kind with the newest
report's timestamp and age. With --offline the course list comes from the
last saved catalog snapshot instead of the platform.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateSummary(); err != nil {
			return err
		}
		logger := config.NewLogger(verbose)

		var courses []edx.Course
		if offline {
			if cfg.SnapshotPath == "" {
				return fmt.Errorf("%w: OPENEDU_SNAPSHOT_PATH (required for --offline)", config.ErrMissingConfig)
			}
			snap, err := store.Open(cfg.SnapshotPath)
			if err != nil {
				return err
			}
			defer snap.Close()
			var fetchedAt time.Time
			courses, fetchedAt, err = snap.Courses()
			if err != nil {
				if errors.Is(err, store.ErrNoSnapshot) {
					return fmt.Errorf("no catalog snapshot at %s; run without --offline first", cfg.SnapshotPath)
				}
				return err
			}
			logger.Info("using catalog snapshot", "courses", len(courses), "fetched_at", fetchedAt.Format(time.RFC3339))
		} else {
			catalog := edx.NewCatalogClient(edx.WithCatalogLogger(logger))
			courses = catalog.ListCourses(cmd.Context(), edx.AnonymousSession(cfg.BaseURL))
			if len(courses) > 0 && cfg.SnapshotPath != "" {
				snap, err := store.Open(cfg.SnapshotPath)
				if err == nil {
					if err := snap.SaveCourses(courses, time.Now()); err != nil {
						logger.Warn("could not save catalog snapshot", "reason", err.Error())
					}
					snap.Close()
				}
			}
		}
		if len(courses) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No courses available; nothing to summarize.")
			return nil
		}

		descriptors := reports.Scan(cfg.GradesDir, logger)
		rows := reports.Correlate(courses, descriptors, time.Now().UTC())
		renderSummary(cmd.OutOrStdout(), rows, cfg.FreshDays)
		return nil
	},
}

// renderSummary prints the correlation table. Pairs without a report keep
// their row with explicit placeholders so "never generated" stays visible.
func renderSummary(w io.Writer, rows []reports.SummaryRow, freshDays int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COURSE\tSHORT ID\tRUN\tKIND\tLAST REPORT\tAGE\tSTATE\tFILE")
	for _, row := range rows {
		last, age, state, path := "none", "none", "missing", "none"
		if row.HasReport() {
			last = row.LastReport.Format("2006-01-02 15:04")
			age = fmt.Sprintf("%dd", row.AgeDays)
			if row.AgeDays <= freshDays {
				state = "fresh"
			} else {
				state = "stale"
			}
		}
		if row.Path != "" {
			path = row.Path
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.CourseName, row.ShortID, row.Run, row.Kind, last, age, state, path)
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().BoolVar(&offline, "offline", false, "Use the saved catalog snapshot instead of the platform")
}
