package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/okr/internal/errors"
	"github.com/felixgeelhaar/okr/internal/router"
	"github.com/felixgeelhaar/okr/internal/server"
	"github.com/felixgeelhaar/okr/internal/tui"
	"github.com/felixgeelhaar/okr/internal/ux"
)

// defaultGoogleTimeout bounds how long auth google waits for the browser callback.
const defaultGoogleTimeout = 3 * time.Minute

func (c *cli) newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, register and manage the session",
	}
	cmd.AddCommand(
		c.newLoginCmd(),
		c.newRegisterCmd(),
		c.newVerifyEmailCmd(),
		c.newResendVerificationCmd(),
		c.newForgotPasswordCmd(),
		c.newResetPasswordCmd(),
		c.newGoogleCmd(),
		c.newLogoutCmd(),
		c.newStatusCmd(),
	)
	return cmd
}

// credentials fills in a missing email or password interactively when allowed.
func credentials(email, password string) (string, string, error) {
	if (email == "" || password == "") && tui.ShouldPrompt() {
		creds, err := tui.PromptForCredentials(tui.Credentials{Email: email, Password: password})
		if err != nil {
			return "", "", err
		}
		email, password = creds.Email, creds.Password
	}
	if email == "" {
		return "", "", errors.New(errors.ErrCodeInvalidCredentials, "email is required").
			WithSuggestion("Pass --email or run in an interactive terminal")
	}
	if password == "" {
		return "", "", errors.New(errors.ErrCodeInvalidCredentials, "password is required").
			WithSuggestion("Pass --password or run in an interactive terminal")
	}
	return email, password, nil
}

func (c *cli) newLoginCmd() *cobra.Command {
	var email, password, redirect string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.guestOnly(func(cmd *cobra.Command, args []string) error {
		email, password, err := credentials(email, password)
		if err != nil {
			return err
		}

		out := c.app.Session.Login(cmd.Context(), email, password)
		if !out.Success {
			return sessionError(errors.ErrCodeInvalidCredentials, out)
		}
		c.app.SyncUser()

		dest := router.RedirectTarget(router.LoginRedirect(redirect))
		user, _ := c.app.Session.User()
		return c.success(cmd, c.statusView(), "Signed in as %s. Continue at %s", user.DisplayName(), describeTarget(dest))
	})

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&redirect, "redirect", "", "route to continue at after signing in")
	return withRoute(cmd, router.LoginPath)
}

func (c *cli) newRegisterCmd() *cobra.Command {
	var email, password, name, org string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and organization",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.guestOnly(func(cmd *cobra.Command, args []string) error {
		email, password, err := credentials(email, password)
		if err != nil {
			return err
		}

		out := c.app.Session.Register(cmd.Context(), email, password, name, org)
		if !out.Success {
			return sessionError(errors.ErrCodeAPIValidation, out)
		}

		msg := out.Message
		if msg == "" {
			msg = "Account created"
		}
		result := ux.Sections{ux.Successf("%s", msg)}
		if !out.EmailVerified {
			result = append(result, ux.Message{Text: "Check your inbox, then run 'okr auth verify-email <token>'."})
		}
		return c.render(cmd, registration{Message: msg, UserID: out.UserID.String(), EmailVerified: out.EmailVerified}, result)
	})

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "your name")
	cmd.Flags().StringVar(&org, "organization", "", "organization name")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("organization")
	return withRoute(cmd, "/register")
}

type registration struct {
	Message       string `json:"message" yaml:"message"`
	UserID        string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	EmailVerified bool   `json:"email_verified" yaml:"email_verified"`
}

func (c *cli) newVerifyEmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-email <token>",
		Short: "Confirm an email address with the emailed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := c.app.Session.VerifyEmail(cmd.Context(), args[0])
			if !out.Success {
				return sessionError(errors.ErrCodeAPIValidation, out)
			}
			return c.success(cmd, map[string]bool{"verified": true}, "Email verified. You can now sign in.")
		},
	}
	return withRoute(cmd, "/verify-email")
}

func (c *cli) newResendVerificationCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "resend-verification",
		Short: "Send the verification email again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := c.app.Session.ResendVerification(cmd.Context(), email)
			if !out.Success {
				return sessionError(errors.ErrCodeAPIRequest, out)
			}
			return c.success(cmd, map[string]bool{"sent": true}, "Verification email sent to %s", email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return withRoute(cmd, "/verify-email")
}

func (c *cli) newForgotPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset email",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.guestOnly(func(cmd *cobra.Command, args []string) error {
		out := c.app.Session.ForgotPassword(cmd.Context(), email)
		if !out.Success {
			return sessionError(errors.ErrCodeAPIRequest, out)
		}
		return c.success(cmd, map[string]bool{"sent": true}, "If %s has an account, a reset link is on its way.", email)
	})
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return withRoute(cmd, "/forgot-password")
}

func (c *cli) newResetPasswordCmd() *cobra.Command {
	var token, password string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.guestOnly(func(cmd *cobra.Command, args []string) error {
		if password == "" && tui.ShouldPrompt() {
			p, err := tui.PromptForString(tui.Prompt{Message: "New password", Required: true, Secret: true})
			if err != nil {
				return err
			}
			password = p
		}
		if password == "" {
			return errors.New(errors.ErrCodeInvalidCredentials, "password is required")
		}

		out := c.app.Session.ResetPassword(cmd.Context(), token, password)
		if !out.Success {
			return sessionError(errors.ErrCodeAPIValidation, out)
		}
		return c.success(cmd, map[string]bool{"reset": true}, "Password updated. Sign in with 'okr auth login'.")
	})
	cmd.Flags().StringVar(&token, "token", "", "reset token from the email")
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("token")
	return withRoute(cmd, "/reset-password")
}

func (c *cli) newGoogleCmd() *cobra.Command {
	var (
		redirect string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with Google in the browser",
		Long: `Start a Google sign-in. A loopback server on oauth.callback_addr receives
the authorization code; the callback URL must be registered with Google exactly.`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = c.guestOnly(func(cmd *cobra.Command, args []string) error {
		return c.runGoogle(cmd, redirect, timeout)
	})
	cmd.Flags().StringVar(&redirect, "redirect", "/", "route to continue at after signing in")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultGoogleTimeout, "how long to wait for the browser")
	return withRoute(cmd, router.LoginPath)
}

func (c *cli) runGoogle(cmd *cobra.Command, redirect string, timeout time.Duration) error {
	ctx := cmd.Context()

	srv := server.NewCallbackServer(server.Config{Address: c.cfg.OAuth.CallbackAddr})
	if err := srv.Listen(); err != nil {
		return err
	}
	go func() {
		if err := srv.Serve(); err != nil {
			c.logger.WithError(err).Warn("callback server stopped")
		}
	}()
	defer func() {
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			c.logger.WithError(err).Debug("callback server shutdown")
		}
	}()

	if srv.CallbackURL() != c.app.Session.CallbackURL() {
		c.logger.Warn("callback listener differs from the registered callback URL",
			"listener", srv.CallbackURL(), "registered", c.app.Session.CallbackURL())
	}

	out := c.app.Session.LoginWithGoogle(ctx, redirect)
	if !out.Success {
		return sessionError(errors.ErrCodeOAuthFailed, out)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cb, err := srv.WaitForCode(waitCtx)
	if err != nil {
		return err
	}

	out = c.app.Session.ExchangeGoogleCode(ctx, cb.Code)
	if !out.Success {
		return sessionError(errors.ErrCodeOAuthFailed, out)
	}
	c.app.SyncUser()

	dest := c.app.Session.OAuthRedirect()
	user, _ := c.app.Session.User()
	return c.success(cmd, c.statusView(), "Signed in as %s. Continue at %s", user.DisplayName(), describeTarget(dest))
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			// A pending validation could otherwise race the teardown.
			_ = c.app.Session.Wait(ctx)
			c.app.Session.Logout(ctx)
			c.app.SyncUser()
			return c.success(cmd, c.statusView(), "Signed out")
		},
	}
}

type statusView struct {
	Phase         string     `json:"phase" yaml:"phase"`
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	User          *userView  `json:"user,omitempty" yaml:"user,omitempty"`
	TokenExpiry   *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	APIURL        string     `json:"api_url" yaml:"api_url"`
}

func (v statusView) RenderText(s ux.Styles) string {
	d := ux.NewDetail("Session").
		Add("Status", v.Phase).
		Add("API", v.APIURL)
	if v.User != nil {
		d.Add("User", v.User.Name).
			Add("Email", v.User.Email).
			Add("Role", v.User.Role).
			Add("Organization", v.User.OrganizationID)
	}
	if v.TokenExpiry != nil {
		d.Add("Token expires", v.TokenExpiry.Local().Format(time.RFC1123))
	}
	if !v.Authenticated {
		d.Add("Hint", "run 'okr auth login' to sign in")
	}
	return d.RenderText(s)
}

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Session.Wait(cmd.Context()); err != nil {
				return err
			}
			v := c.statusView()
			return c.render(cmd, v, v)
		},
	}
}

func (c *cli) statusView() statusView {
	snap := c.app.Session.Snapshot()
	v := statusView{
		Phase:         string(snap.Phase),
		Authenticated: snap.Authenticated,
		APIURL:        c.app.Client.BaseURL(),
	}
	if snap.User != nil {
		u := newUserView(*snap.User)
		v.User = &u
	}
	if exp, ok := c.app.Session.TokenExpiry(); ok {
		v.TokenExpiry = &exp
	}
	return v
}

// describeTarget renders a route for messages.
func describeTarget(route string) string {
	if route == "" || route == router.LandingPath {
		return "the dashboard"
	}
	return fmt.Sprintf("%q", route)
}
