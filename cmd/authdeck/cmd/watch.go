package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntP("count", "c", 0, "exit after printing this many sessions (0 = until interrupted)")
}

// watchCmd prints every session change until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print session changes as they happen",
	Long: `Prints the current session, then one line per session change. Changes
made by other authdeck processes are picked up through the session file.

Examples:
  authdeck watch
  authdeck watch --count 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sub := a.Observer.Subscribe()
		defer sub.Release()

		out := cmd.OutOrStdout()
		printSession(out, sub.Latest())
		for n := 1; count <= 0 || n < count; n++ {
			sess, err := sub.Next(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return err
			}
			printSession(out, sess)
		}
		return nil
	},
}

func printSession(w io.Writer, s identity.Session) {
	ts := time.Now().Format("15:04:05")
	if !s.IsAuthenticated() {
		fmt.Fprintf(w, "%s  #%d  anonymous\n", ts, s.Revision)
		return
	}
	u := s.User()
	fmt.Fprintf(w, "%s  #%d  %s  %s  %s\n", ts, s.Revision, u.Email, u.UID, orDash(u.DisplayName))
}
