package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/authdeck/internal/form"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(resetPasswordCmd)

	loginCmd.Flags().String("password", "", "password (prompted when omitted)")
	signupCmd.Flags().String("password", "", "password (prompted with confirmation when omitted)")
	resetPasswordCmd.Flags().String("code", "", "reset code to redeem (local provider)")
	resetPasswordCmd.Flags().String("new-password", "", "new password for --code (prompted when omitted)")
	resetPasswordCmd.Flags().Bool("outbox", false, "list pending reset codes for the email (local provider)")
}

// loginCmd signs in with email and password.
var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in with email and password",
	Long: `Signs in to the configured provider. The session is shared with every
other authdeck process on this machine.

Examples:
  authdeck login me@example.com
  authdeck login me@example.com --password secret`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p := newPrompter(cmd)
		email, err := p.argOrPrompt(args, a.Catalog.T("login.email_placeholder"))
		if err != nil {
			return err
		}
		password, _, err := p.flagOrSecret("password", a.Catalog.T("login.password_placeholder"))
		if err != nil {
			return err
		}

		if err := checkForm(a, form.LoginSchema(), form.Values{
			form.FieldEmail:    email,
			form.FieldPassword: password,
		}); err != nil {
			return err
		}

		sess, err := a.Gateway.SignIn(cmd.Context(), email, password)
		if err != nil {
			return failure(a, "login", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.Catalog.T("cli.signed_in", sess.User().Label()))
		return nil
	},
}

// signupCmd creates an account.
var signupCmd = &cobra.Command{
	Use:   "signup [email]",
	Short: "Create an account",
	Long: `Creates an account and sets its display name to the part of the email
before the @. You stay signed in afterwards.

Examples:
  authdeck signup me@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p := newPrompter(cmd)
		email, err := p.argOrPrompt(args, a.Catalog.T("signup.email_placeholder"))
		if err != nil {
			return err
		}
		password, fromFlag, err := p.flagOrSecret("password", a.Catalog.T("signup.password_placeholder"))
		if err != nil {
			return err
		}
		confirm := password
		if !fromFlag {
			if confirm, err = p.secret(a.Catalog.T("signup.confirm_placeholder")); err != nil {
				return err
			}
		}

		if err := checkForm(a, form.SignupSchema(), form.Values{
			form.FieldEmail:           email,
			form.FieldPassword:        password,
			form.FieldConfirmPassword: confirm,
		}); err != nil {
			return err
		}

		res, err := a.Gateway.SignUp(cmd.Context(), email, password)
		if err != nil {
			return &failureError{
				msg: a.Catalog.T("signup.error_title") + ": " + failure(a, "signup", err).Error(),
				err: err,
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, a.Catalog.T("signup.success"))
		if res.ProfileErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), a.Catalog.T("signup.profile_warning"))
		}
		return nil
	},
}

// logoutCmd signs out.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Long: `Signs out of the provider. The local session is cleared even when the
provider cannot be reached.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Gateway.SignOut(cmd.Context()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), failure(a, "profile", err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.Catalog.T("profile.signed_out"))
		return nil
	},
}

// resetPasswordCmd sends or redeems a password reset.
var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password [email]",
	Short: "Send a password reset message",
	Long: `Asks the provider to send a password reset message to the email.

The local provider keeps reset messages in an outbox instead of sending mail.
List them with --outbox and redeem one with --code.

Examples:
  authdeck reset-password me@example.com
  authdeck reset-password me@example.com --outbox
  authdeck reset-password --code 3f2a... --new-password n3wpass`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p := newPrompter(cmd)
		out := cmd.OutOrStdout()

		if code, _ := cmd.Flags().GetString("code"); code != "" {
			lp, ok := a.LocalProvider()
			if !ok {
				return errors.New("--code needs the local provider")
			}
			password, _, err := p.flagOrSecret("new-password", a.Catalog.T("cli.new_password_prompt"))
			if err != nil {
				return err
			}
			if err := lp.ConfirmPasswordReset(cmd.Context(), code, password); err != nil {
				return failure(a, "forgotpassword", err)
			}
			fmt.Fprintln(out, a.Catalog.T("cli.reset_confirmed"))
			return nil
		}

		email, err := p.argOrPrompt(args, a.Catalog.T("forgot.email_placeholder"))
		if err != nil {
			return err
		}

		if outbox, _ := cmd.Flags().GetBool("outbox"); outbox {
			if _, ok := a.LocalProvider(); !ok {
				return errors.New("--outbox needs the local provider")
			}
			resets, err := a.DB.PasswordResets(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("list password resets: %w", err)
			}
			if len(resets) == 0 {
				fmt.Fprintln(out, a.Catalog.T("cli.no_resets"))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "CODE\tCREATED\tEXPIRES")
			for _, r := range resets {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n",
					r.Code,
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.ExpiresAt.Local().Format("2006-01-02 15:04:05"),
				)
			}
			return tw.Flush()
		}

		if err := checkForm(a, form.ForgotPasswordSchema(), form.Values{form.FieldEmail: email}); err != nil {
			return err
		}
		if err := a.Gateway.SendPasswordReset(cmd.Context(), email); err != nil {
			return failure(a, "forgotpassword", err)
		}
		fmt.Fprintln(out, a.Catalog.T("forgot.success"))
		return nil
	},
}
