package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// prompter reads answers from the command's input. Secrets are read without
// echo when the input is a terminal.
type prompter struct {
	cmd    *cobra.Command
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd, reader: bufio.NewReader(cmd.InOrStdin())}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.cmd.ErrOrStderr(), "%s: ", label)
	s, err := p.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if s == "" {
			return "", fmt.Errorf("no input for %q", label)
		}
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) secret(label string) (string, error) {
	if f, ok := p.cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(p.cmd.ErrOrStderr(), "%s: ", label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return p.line(label)
}

// argOrPrompt returns args[0] when present, otherwise asks for it.
func (p *prompter) argOrPrompt(args []string, label string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return p.line(label)
}

// flagOrSecret returns the named flag when set, otherwise asks for it.
func (p *prompter) flagOrSecret(name, label string) (string, bool, error) {
	if p.cmd.Flags().Changed(name) {
		v, _ := p.cmd.Flags().GetString(name)
		return v, true, nil
	}
	v, err := p.secret(label)
	return v, false, err
}
