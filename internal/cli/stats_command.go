package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"wmadec.click/internal/tracking"
)

type statsOptions struct {
	days       int
	preset     string
	since      string
	engine     string
	variant    string
	session    string
	withErrors bool
	limit      int
	asJSON     bool
}

func newStatsCommand() *cobra.Command {
	var opts statsOptions

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded decode sessions",
		Long: `Show decode sessions recorded in the tracking database, with frame
counts and drop rates.

Examples:
  wmadec stats                          # last 7 days
  wmadec stats --preset today
  wmadec stats --since "3 days ago"
  wmadec stats --errors                 # sessions that dropped frames
  wmadec stats --session <id>           # dropped frames of one session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := cliFromContext(cmd.Context())
			if cli == nil {
				return ErrNoCLI
			}
			return cli.runStats(cmd, opts)
		},
	}

	statsCmd.Flags().IntVar(&opts.days, "days", 7, "Number of days to show (0 = all time)")
	statsCmd.Flags().StringVar(&opts.preset, "preset", "", "Date preset (today, yesterday, week, last-week, month, last-month, all)")
	statsCmd.Flags().StringVar(&opts.since, "since", "", "Start time in natural language, e.g. \"last monday\"")
	statsCmd.Flags().StringVar(&opts.engine, "engine", "", "Filter by engine name")
	statsCmd.Flags().StringVar(&opts.variant, "variant", "", "Filter by variant (wmav1, wmav2)")
	statsCmd.Flags().StringVar(&opts.session, "session", "", "Show one session and its dropped frames")
	statsCmd.Flags().BoolVar(&opts.withErrors, "errors", false, "Only sessions that dropped frames")
	statsCmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum number of sessions to list")
	statsCmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of text")

	return statsCmd
}

type statsReport struct {
	Summary     *tracking.Summary        `json:"summary"`
	Sessions    []tracking.SessionRecord `json:"sessions"`
	FrameErrors []tracking.FrameError    `json:"frame_errors,omitempty"`
}

func (c *CLI) runStats(cmd *cobra.Command, opts statsOptions) error {
	slog.Debug("running stats command",
		"days", opts.days,
		"preset", opts.preset,
		"since", opts.since,
		"engine", opts.engine,
		"session", opts.session)

	c.initializeTracking()
	if c.trackingDB == nil {
		return ErrTrackingDisabled
	}

	filter := tracking.QueryFilter{
		Days:       opts.days,
		DatePreset: opts.preset,
		Engine:     opts.engine,
		Variant:    opts.variant,
		SessionID:  opts.session,
		WithErrors: opts.withErrors,
		Limit:      opts.limit,
	}
	if opts.session != "" {
		// a session lookup ignores the default time window
		filter.Days = 0
	}
	if opts.since != "" {
		start, err := tracking.ParseNaturalDate(opts.since, c.now())
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		filter.StartTime = &start
	}

	report := statsReport{}
	var err error
	report.Sessions, err = tracking.ListSessions(c.trackingDB, filter)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	report.Summary, err = tracking.GetSummary(c.trackingDB, filter)
	if err != nil {
		return fmt.Errorf("failed to summarize sessions: %w", err)
	}
	if opts.session != "" {
		report.FrameErrors, err = tracking.GetFrameErrors(c.trackingDB, opts.session)
		if err != nil {
			return fmt.Errorf("failed to load frame errors: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printStats(w, report, filter)
	return nil
}

func printStats(w io.Writer, report statsReport, filter tracking.QueryFilter) {
	switch {
	case filter.SessionID != "":
		fmt.Fprintf(w, "Session %s\n", filter.SessionID)
	case filter.StartTime != nil:
		fmt.Fprintf(w, "Decode sessions since %s\n", filter.StartTime.Format("2006-01-02 15:04"))
	case filter.DatePreset != "":
		fmt.Fprintf(w, "Decode sessions (%s)\n", filter.DatePreset)
	case filter.Days > 0:
		fmt.Fprintf(w, "Decode sessions (last %d days)\n", filter.Days)
	default:
		fmt.Fprintf(w, "Decode sessions (all time)\n")
	}

	if len(report.Sessions) == 0 {
		fmt.Fprintf(w, "\nNo sessions found.\n")
		if filter.Days > 0 || filter.DatePreset != "" {
			fmt.Fprintf(w, "Try expanding the time range with --days 0 or --preset all\n")
		}
		return
	}

	s := report.Summary
	fmt.Fprintf(w, "\nSummary: %d sessions, %d frames in, %d decoded, %d dropped (%.1f%%), %d bytes out\n",
		s.Sessions, s.FramesIn, s.FramesDecoded, s.FramesDropped, s.DropRate*100, s.BytesOut)

	if len(s.ByVariant) > 0 {
		variants := make([]string, 0, len(s.ByVariant))
		for variant := range s.ByVariant {
			variants = append(variants, variant)
		}
		sort.Strings(variants)
		fmt.Fprintf(w, "Variants:")
		for _, variant := range variants {
			fmt.Fprintf(w, " %s=%d", variant, s.ByVariant[variant])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	for _, rec := range report.Sessions {
		fmt.Fprintf(w, "%s  %-8s %-6s %5dHz %dch  %6d/%-6d dropped %-4d %s\n",
			rec.StartedAt.Format("2006-01-02 15:04"),
			rec.Engine,
			rec.Variant,
			rec.SampleRate,
			rec.Channels,
			rec.FramesDecoded,
			rec.FramesIn,
			rec.FramesDropped,
			filepath.Base(rec.Source))
	}

	if len(report.FrameErrors) > 0 {
		fmt.Fprintf(w, "\nDropped frames:\n")
		for _, fe := range report.FrameErrors {
			fmt.Fprintf(w, "  frame %-6d status %-6d %s\n", fe.FrameIndex, fe.Status, fe.Message)
		}
	}
}
