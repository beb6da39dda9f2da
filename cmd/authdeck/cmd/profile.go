package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/authdeck/internal/form"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetNameCmd)
	profileCmd.AddCommand(profileSetPhotoCmd)
}

// profileCmd is the parent command for profile edits.
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Edit the signed-in user's profile",
}

var profileSetNameCmd = &cobra.Command{
	Use:     "set-name <name>",
	Short:   "Set the display name",
	Example: `  authdeck profile set-name "Nguyen Van A"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		name := strings.Join(args, " ")
		if err := checkForm(a, form.DisplayNameSchema(), form.Values{form.FieldDisplayName: name}); err != nil {
			return err
		}
		if _, err := a.Gateway.UpdateDisplayName(cmd.Context(), strings.TrimSpace(name)); err != nil {
			return &failureError{
				msg: a.Catalog.T("profile.name_failed") + " " + failure(a, "profile", err).Error(),
				err: err,
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.Catalog.T("profile.name_updated"))
		return nil
	},
}

var profileSetPhotoCmd = &cobra.Command{
	Use:   "set-photo <path>",
	Short: "Set the avatar from an image in the photo library",
	Long: `Sets the avatar to a png, jpeg or gif file. The file must be inside
avatar.library_dir.`,
	Example: `  authdeck profile set-photo ~/Pictures/me.png`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Avatar.Accept(args[0])
		if err != nil {
			return err
		}
		if _, err := a.Gateway.UpdatePhotoURL(cmd.Context(), res.URI); err != nil {
			return failure(a, "profile", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.Catalog.T("profile.photo_updated"))
		return nil
	},
}
