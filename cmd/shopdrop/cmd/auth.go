package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naveenspark/shopdrop/internal/app"
	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

var errPasswordMismatch = errors.New("passwords do not match")

func newLoginCmd(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
			var err error
			req := domain.SignInRequest{}
			if req.Email, err = e.flagOrPrompt(cmd, email, "Email"); err != nil {
				return err
			}
			if req.Password, err = e.flagOrPrompt(cmd, password, "Password"); err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}
			u, err := a.SignIn(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Signed in as "+u.Username+"."))
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	return cmd
}

func newSignupCmd(e *env) *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
			var err error
			req := domain.SignUpRequest{}
			if req.Username, err = e.flagOrPrompt(cmd, username, "Username"); err != nil {
				return err
			}
			if req.Email, err = e.flagOrPrompt(cmd, email, "Email"); err != nil {
				return err
			}
			if req.Password, err = e.confirmedPassword(cmd, "Password"); err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}
			u, err := a.SignUp(cmd.Context(), req)
			if err != nil {
				return notify.Titled(notify.RegistrationFailed, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Welcome, "+u.Username+". You are signed in."))
			return nil
		}),
	}
	cmd.Flags().StringVar(&username, "username", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

// confirmedPassword asks twice and fails when the answers differ.
func (e *env) confirmedPassword(cmd *cobra.Command, label string) (string, error) {
	pw, err := e.prompt(cmd, label)
	if err != nil {
		return "", err
	}
	confirm, err := e.prompt(cmd, "Confirm "+label)
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errPasswordMismatch
	}
	return pw, nil
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
			if !a.Session.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			if err := a.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		}),
	}
}

func newWhoamiCmd(e *env) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, _ []string) error {
			u := a.Session.User()
			if refresh {
				var err error
				if u, err = a.RefreshProfile(cmd.Context()); err != nil {
					return err
				}
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch the profile from the server first")
	return cmd
}

func newAccountCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage your profile and password",
	}
	cmd.AddCommand(newAccountUpdateCmd(e), newAccountPasswordCmd(e))
	return cmd
}

func newAccountUpdateCmd(e *env) *cobra.Command {
	var username, email, address, picture string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; unset flags keep their value",
		Args:  cobra.NoArgs,
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, _ []string) error {
			u := a.Session.User()
			req := domain.UpdateProfileRequest{
				Username:       u.Username,
				Email:          u.Email,
				Address:        u.Address,
				ProfilePicture: u.ProfilePicture,
			}
			flags := cmd.Flags()
			if flags.Changed("username") {
				req.Username = username
			}
			if flags.Changed("email") {
				req.Email = email
			}
			if flags.Changed("address") {
				req.Address = address
			}
			if flags.Changed("picture") {
				req.ProfilePicture = picture
			}
			if err := req.Validate(); err != nil {
				return err
			}
			updated, err := a.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Profile updated."))
			printUser(cmd.OutOrStdout(), updated)
			return nil
		}),
	}
	cmd.Flags().StringVar(&username, "username", "", "New display name")
	cmd.Flags().StringVar(&email, "email", "", "New email")
	cmd.Flags().StringVar(&address, "address", "", "Shipping address")
	cmd.Flags().StringVar(&picture, "picture", "", "Profile picture URL")
	return cmd
}

func newAccountPasswordCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, _ []string) error {
			var err error
			req := domain.ChangePasswordRequest{}
			if req.CurrentPassword, err = e.prompt(cmd, "Current password"); err != nil {
				return err
			}
			if req.NewPassword, err = e.confirmedPassword(cmd, "New password"); err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}
			if err := a.Client.ChangePassword(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Password changed."))
			return nil
		}),
	}
}
