package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dicklesworthstone/authdeck/internal/app"
	"github.com/Dicklesworthstone/authdeck/internal/logs"
)

// Test helpers

// setupHome points AUTHDECK_HOME at a temp dir and makes commands build a
// fast, non-watching app.
func setupHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("AUTHDECK_HOME", home)

	orig := newApp
	newApp = func(o app.Options) (*app.App, error) {
		watch := false
		o.Watch = &watch
		o.BcryptCost = bcrypt.MinCost
		o.Logger = logs.Discard()
		return app.New(o)
	}
	t.Cleanup(func() {
		newApp = orig
		cfg = nil
	})
	return home
}

// run executes the root command with English messages and returns its
// output. Flags are reset first since rootCmd is shared between runs.
func run(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	resetFlags(rootCmd)

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--locale", "en"}, args...))

	err = rootCmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// TestRootCommand tests the root command exists and has correct metadata.
func TestRootCommand(t *testing.T) {
	cmd := rootCmd

	if cmd.Use != "authdeck" {
		t.Errorf("Expected Use 'authdeck', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("Expected non-empty Short description")
	}
	if cmd.Long == "" {
		t.Error("Expected non-empty Long description")
	}
	// RunE launches the TUI when no subcommand is given.
	if cmd.RunE == nil {
		t.Error("Expected RunE to be set")
	}
	if cmd.PersistentPreRunE == nil {
		t.Error("Expected PersistentPreRunE to be set")
	}
}

// TestSubcommandRegistration tests that all expected subcommands are registered.
func TestSubcommandRegistration(t *testing.T) {
	expectedCommands := []string{
		"version",
		"login",
		"signup",
		"logout",
		"reset-password",
		"whoami",
		"profile",
		"watch",
		"history",
		"config",
	}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range expectedCommands {
		if !registered[name] {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}

func TestProfileSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range profileCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"set-name", "set-photo"} {
		if !names[want] {
			t.Errorf("Expected profile subcommand %q", want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	setupHome(t)

	out, _, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "authdeck ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestGlobalFlagValidation(t *testing.T) {
	setupHome(t)

	_, _, err := run(t, "", "--provider", "okta", "version")
	if err == nil {
		t.Fatal("expected an unknown provider to be rejected")
	}

	_, _, err = run(t, "", "--locale", "fr", "version")
	if err == nil {
		t.Fatal("expected an unsupported locale to be rejected")
	}
}
