// Package cmd implements the CLI commands for authdeck.
//
// authdeck signs in to an email/password identity provider (Firebase Identity
// Toolkit or the offline local emulator). Running it without a subcommand
// opens the interactive screens; every screen action also has a subcommand.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/authdeck/internal/app"
	"github.com/Dicklesworthstone/authdeck/internal/config"
	"github.com/Dicklesworthstone/authdeck/internal/form"
	"github.com/Dicklesworthstone/authdeck/internal/gateway"
	"github.com/Dicklesworthstone/authdeck/internal/nav"
	"github.com/Dicklesworthstone/authdeck/internal/tui"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfg *config.Config

	// newApp builds the services for a command. Tests replace it.
	newApp = app.New
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "authdeck",
	Short: "Email and password sign-in from the terminal",
	Long: `authdeck signs you in to an email/password identity provider and keeps
the session in sync across every authdeck process on this machine.

Providers:
  - local     offline emulator backed by sqlite (default)
  - firebase  Firebase Identity Toolkit REST API (needs firebase.api_key)

Run 'authdeck' without arguments to open the interactive screens:
  home, sign in, sign up, forgot password and profile.

Examples:
  authdeck signup me@example.com
  authdeck login me@example.com
  authdeck whoami
  authdeck profile set-name "Me"
  authdeck logout`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal() {
			return errors.New("the interactive screens need a terminal; run 'authdeck --help' for subcommands")
		}
		chooser := tui.NewLibraryChooser()
		a, err := openAppWith(app.Options{Chooser: chooser.Choose})
		if err != nil {
			return err
		}
		defer a.Close()

		route, _ := cmd.Flags().GetString("route")
		return tui.Run(tui.Deps{
			Gateway:  a.Gateway,
			Observer: a.Observer,
			Catalog:  a.Catalog,
			Picker:   a.Avatar,
			Chooser:  chooser,
			Policy:   a.Config.SubmitPolicy(),
			Logger:   a.Logger,
		}, nav.Parse(route))
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default $AUTHDECK_HOME/config.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "identity provider: local or firebase")
	rootCmd.PersistentFlags().String("locale", "", "message language: vi or en")
	rootCmd.Flags().String("route", string(nav.Home), "screen to open first")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "authdeck %s\n", Version)
	},
}

// loadConfig reads the config file named by --config (or the default path)
// and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath(cmd)
	c, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	changed := false
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		c.Provider = strings.ToLower(p)
		changed = true
	}
	if l, _ := cmd.Flags().GetString("locale"); l != "" {
		c.Locale = l
		changed = true
	}
	if changed {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return c, nil
}

func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	return config.Path()
}

func openApp() (*app.App, error) {
	return openAppWith(app.Options{})
}

// openAppWith opens the services with the loaded configuration.
func openAppWith(opts app.Options) (*app.App, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	opts.Config = cfg
	return newApp(opts)
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// failureError carries a message already localized for the terminal.
type failureError struct {
	msg string
	err error
}

func (e *failureError) Error() string { return e.msg }
func (e *failureError) Unwrap() error { return e.err }

// failure turns a gateway error into the message the matching screen would
// show.
func failure(a *app.App, screen string, err error) error {
	return &failureError{msg: a.Catalog.Failure(screen, gateway.Classify(err)), err: err}
}

// checkForm validates values the way the screens do. Under the submit-anyway
// policy invalid values are still dispatched.
func checkForm(a *app.App, schema *form.Schema, values form.Values) error {
	errs := schema.Validate(values)
	if len(errs) == 0 || a.Config.SubmitPolicy() == form.PolicySubmitAnyway {
		return nil
	}
	var msgs []string
	for _, f := range schema.Fields() {
		if fe, ok := errs[f]; ok {
			msgs = append(msgs, a.Catalog.FieldError(schema.Name(), fe))
		}
	}
	return &failureError{msg: strings.Join(msgs, "; "), err: form.ErrInvalid}
}
