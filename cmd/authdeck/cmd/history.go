package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/authdeck/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent account activity",
	Long: `Show recent sign-ins, sign-ups, sign-outs, password resets, profile
updates and failures from the activity log.

Examples:
  authdeck history                       # Show last 20 events
  authdeck history --limit 50            # Show last 50 events
  authdeck history --type error          # Only failures
  authdeck history --email me@example.com --stats`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of events to show")
	historyCmd.Flags().String("type", "", "only show events of this type")
	historyCmd.Flags().String("email", "", "only show events for this email")
	historyCmd.Flags().Duration("since", 0, "only show events newer than this (e.g. 24h)")
	historyCmd.Flags().Bool("stats", false, "show aggregated stats for --email")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	eventType, _ := cmd.Flags().GetString("type")
	email, _ := cmd.Flags().GetString("email")
	since, _ := cmd.Flags().GetDuration("since")
	stats, _ := cmd.Flags().GetBool("stats")

	if stats && email == "" {
		return fmt.Errorf("--stats needs --email")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if stats {
		st, err := a.DB.GetStats(a.Provider.ID(), email)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		if st == nil {
			fmt.Fprintln(out, "No activity recorded.")
			return nil
		}
		return renderStats(out, st)
	}

	filter := db.EventFilter{Type: eventType, Email: email, Limit: limit}
	if since > 0 {
		filter.Since = time.Now().Add(-since)
	}
	events, err := a.DB.GetEvents(filter)
	if err != nil {
		return fmt.Errorf("get events: %w", err)
	}

	if len(events) == 0 {
		fmt.Fprintln(out, "No events recorded.")
		return nil
	}
	return renderEventList(out, events)
}

func renderEventList(w io.Writer, events []db.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIMESTAMP\tTYPE\tPROVIDER\tEMAIL\tDETAIL")
	for _, ev := range events {
		detail := ev.Category
		if ev.Type == db.EventSignOut && ev.Duration > 0 {
			detail = ev.Duration.Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
			ev.Type,
			ev.Provider,
			orDash(ev.Email),
			orDash(detail),
		)
	}
	return tw.Flush()
}

func renderStats(w io.Writer, st *db.AccountStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Account:\t%s (%s)\n", st.Email, st.Provider)
	_, _ = fmt.Fprintf(tw, "Sign-ins:\t%d\n", st.TotalSignIns)
	_, _ = fmt.Fprintf(tw, "Errors:\t%d\n", st.TotalErrors)
	_, _ = fmt.Fprintf(tw, "Time signed in:\t%s\n", (time.Duration(st.TotalSessionSeconds) * time.Second).String())
	_, _ = fmt.Fprintf(tw, "Last sign-in:\t%s\n", formatTime(st.LastSignIn))
	_, _ = fmt.Fprintf(tw, "Last error:\t%s\n", formatTime(st.LastError))
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
