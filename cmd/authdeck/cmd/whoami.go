package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
	whoamiCmd.Flags().Bool("json", false, "print the identity as JSON")
	whoamiCmd.Flags().Bool("reload", false, "fetch the profile from the server first (firebase provider)")
}

// whoamiCmd shows the current session.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sess := a.Observer.Current()
		if reload, _ := cmd.Flags().GetBool("reload"); reload {
			fb, ok := a.FirebaseProvider()
			if !ok {
				return errors.New("--reload needs the firebase provider")
			}
			user, err := fb.Reload(cmd.Context())
			if err != nil {
				return failure(a, "profile", err)
			}
			sess, _ = a.Observer.ApplyLocal(func(u *identity.Identity) { *u = *user })
		}

		out := cmd.OutOrStdout()
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return writeIdentityJSON(out, sess.User())
		}
		if !sess.IsAuthenticated() {
			fmt.Fprintln(out, a.Catalog.T("profile.anonymous"))
			return nil
		}
		return writeIdentity(out, a.Provider.ID(), sess.User())
	},
}

func writeIdentity(w io.Writer, providerID string, u *identity.Identity) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	_, _ = fmt.Fprintf(tw, "UID:\t%s\n", u.UID)
	_, _ = fmt.Fprintf(tw, "Display name:\t%s\n", orDash(u.DisplayName))
	_, _ = fmt.Fprintf(tw, "Photo:\t%s\n", orDash(u.PhotoURL))
	_, _ = fmt.Fprintf(tw, "Verified:\t%t\n", u.EmailVerified)
	_, _ = fmt.Fprintf(tw, "Provider:\t%s\n", providerID)
	if !u.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintf(tw, "Token expires:\t%s\n", u.ExpiresAt.Local().Format(time.RFC3339))
	}
	return tw.Flush()
}

// writeIdentityJSON prints the identity without its tokens. Anonymous
// sessions print null.
func writeIdentityJSON(w io.Writer, u *identity.Identity) error {
	if u != nil {
		u = u.Clone()
		u.IDToken = ""
		u.RefreshToken = ""
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(u)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
