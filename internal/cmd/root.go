// Package cmd implements the okr command line.
//
// Every command that mirrors a client route declares it with withRoute. The
// root PersistentPreRunE loads configuration, boots the application and runs
// the route guard before the command body executes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/okr/internal/app"
	"github.com/felixgeelhaar/okr/internal/cache"
	"github.com/felixgeelhaar/okr/internal/config"
	"github.com/felixgeelhaar/okr/internal/errors"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/router"
	"github.com/felixgeelhaar/okr/internal/session"
	"github.com/felixgeelhaar/okr/internal/storage"
	"github.com/felixgeelhaar/okr/internal/telemetry"
	"github.com/felixgeelhaar/okr/internal/ux"
)

const (
	annotationRoute  = "okr/route"
	annotationNoBoot = "okr/no-boot"
)

// Options adjusts the command tree. The zero value uses the process streams
// and the file store under the okr home directory.
type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Storage replaces the file store.
	Storage storage.Store
	// HTTPClient replaces the API client's transport.
	HTTPClient *http.Client
	// Navigator opens OAuth authorization URLs. Defaults to printing them.
	Navigator session.Navigator
	// DotEnvDir is where .env is looked up. Defaults to the working directory.
	DotEnvDir string
}

// cli is the state shared by the commands of one invocation.
type cli struct {
	opts   Options
	flags  *CommandContext
	cfg    *config.Config
	home   string
	logger *log.Logger
	app    *app.App

	// landed is set when a guest-only command ran while signed in; the
	// command then renders the dashboard instead.
	landed bool
}

// ExecuteContext runs the root command with ctx. Errors are printed to stderr.
func ExecuteContext(ctx context.Context) error {
	return Run(ctx, Options{}, os.Args[1:])
}

// Run executes the command line args and releases the application afterwards,
// whether or not the command failed.
func Run(ctx context.Context, opts Options, args []string) error {
	root, c := newRootCmd(opts)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if closeErr := c.close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		ux.PrintError(root.ErrOrStderr(), c.styles(), err)
	}
	return err
}

func newRootCmd(opts Options) (*cobra.Command, *cli) {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:   "okr",
		Short: "Objectives and key results from the command line",
		Long: `okr is a client for the objectives-tracking service.
It signs you in, keeps the session between runs and lets you work with
objectives, people, departments, teams and notifications.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.preRun,
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	pf := root.PersistentFlags()
	pf.String("api-url", "", "API base URL (overrides api.url)")
	pf.String("home", "", "okr home directory (default $OKR_HOME or ~/.okr)")
	pf.StringP("format", "o", "", "output format: text, json, yaml")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("verbose", "v", false, "debug logging to stderr")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		c.newAuthCmd(),
		c.newDashboardCmd(),
		c.newObjectivesCmd(),
		c.newUsersCmd(),
		c.newDepartmentsCmd(),
		c.newTeamsCmd(),
		c.newNotificationsCmd(),
		c.newCompanyCmd(),
		c.newConfigCmd(),
		c.newMetricsCmd(),
		c.newDoctorCmd(),
		c.newVersionCmd(),
	)
	return root, c
}

// withRoute binds cmd to a client route. ":id" is replaced by the first argument.
func withRoute(cmd *cobra.Command, route string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationRoute] = route
	return cmd
}

// noBoot marks cmd as not needing the application.
func noBoot(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationNoBoot] = "true"
	return cmd
}

// routeFor fills the route's :id with the first argument, escaped so it stays a
// single path segment.
func routeFor(cmd *cobra.Command, args []string) string {
	route := cmd.Annotations[annotationRoute]
	if strings.Contains(route, ":id") && len(args) > 0 {
		route = strings.Replace(route, ":id", url.PathEscape(args[0]), 1)
	}
	return route
}

// loadConfig applies file, .env, environment and flags in increasing precedence.
func (c *cli) loadConfig(cmd *cobra.Command) error {
	flags, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	c.flags = flags

	home := flags.Home
	if home == "" {
		if home, err = config.Home(); err != nil {
			return err
		}
	}
	c.home = home

	dotEnvDir := c.opts.DotEnvDir
	if dotEnvDir == "" {
		dotEnvDir = "."
	}
	if err := config.LoadDotEnv(dotEnvDir); err != nil {
		return err
	}

	cfg, err := config.Load(home)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	if flags.APIURL != "" {
		cfg.API.URL = flags.APIURL
	}
	if flags.Format != "" {
		cfg.Output.Format = flags.Format
	}
	if flags.NoColor {
		cfg.Output.NoColor = true
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	logCfg := log.FromSettings(cfg.Logging.Level, cfg.Logging.Format, flags.Verbose)
	logCfg.Output = log.NewOutput(cmd.ErrOrStderr())
	logCfg.ServiceName = "okr"
	c.logger = log.New(logCfg)
	return nil
}

func (c *cli) preRun(cmd *cobra.Command, args []string) error {
	if err := c.loadConfig(cmd); err != nil {
		return err
	}
	if cmd.Annotations[annotationNoBoot] != "" {
		return nil
	}

	navigator := c.opts.Navigator
	if navigator == nil {
		navigator = printNavigator(cmd.ErrOrStderr())
	}
	c.app = app.New(c.cfg, app.Options{
		Home:       c.home,
		Storage:    c.opts.Storage,
		Logger:     c.logger,
		Navigator:  navigator,
		HTTPClient: c.opts.HTTPClient,
	})

	ctx := cmd.Context()
	if err := c.app.Boot(ctx); err != nil {
		return err
	}

	route := routeFor(cmd, args)
	if route == "" {
		return nil
	}

	ctx, span := telemetry.StartCommandSpan(ctx, cmd.CommandPath())
	defer span.End()

	d := c.app.Navigate(ctx, route)
	if d.Allowed() {
		return nil
	}
	if d.To == router.LandingPath {
		c.landed = true
		return nil
	}
	return errors.NewLoginRequiredError(router.RedirectTarget(d.To))
}

func (c *cli) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	return c.app.Close(ctx)
}

// guestOnly wraps the body of a guest-only command. When the guard sent the
// user to the landing route the dashboard is shown instead.
func (c *cli) guestOnly(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if !c.landed {
			return run(cmd, args)
		}
		email := ""
		if u, ok := c.app.Session.User(); ok {
			email = u.Email
		}
		c.notice(cmd, "Already signed in%s; showing the dashboard.", asSuffix(email))
		return c.runDashboard(cmd, nil)
	}
}

func asSuffix(email string) string {
	if email == "" {
		return ""
	}
	return " as " + email
}

func printNavigator(w io.Writer) session.Navigator {
	return session.NavigatorFunc(func(ctx context.Context, url string) error {
		_, err := fmt.Fprintf(w, "Open this URL in your browser to continue:\n\n  %s\n\n", url)
		return err
	})
}

func noColorFromEnv() bool {
	return os.Getenv(config.EnvNoColor) != ""
}

// render writes data with the configured formatter. text is used for the
// text format; data for json and yaml.
func (c *cli) render(cmd *cobra.Command, data any, text ux.TextRenderer) error {
	format := "text"
	noColor := noColorFromEnv()
	if c.cfg != nil {
		format = c.cfg.Output.Format
		noColor = noColor || c.cfg.Output.NoColor
	}

	f, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout(), NoColor: noColor})
	if err != nil {
		return err
	}
	if _, ok := f.(*ux.TextFormatter); ok && text != nil {
		return f.Format(text)
	}
	return f.Format(data)
}

// notice prints a styled line to stderr.
func (c *cli) notice(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintln(cmd.ErrOrStderr(), ux.Warningf(format, args...).RenderText(c.styles()))
}

func (c *cli) success(cmd *cobra.Command, data any, format string, args ...any) error {
	return c.render(cmd, data, ux.Successf(format, args...))
}

func (c *cli) styles() ux.Styles {
	noColor := noColorFromEnv()
	if c.cfg != nil {
		noColor = noColor || c.cfg.Output.NoColor
	}
	return ux.NewStyles(noColor)
}

// warnDegraded reports that a result is not fresh server data.
func warnDegraded[T any](c *cli, cmd *cobra.Command, what string, r cache.Result[T]) {
	if !r.IsDegraded() {
		return
	}
	reason := ""
	if r.Err != nil {
		reason = ": " + r.Err.Error()
	}
	switch r.Source {
	case cache.SourceStale:
		c.notice(cmd, "Showing cached %s%s", what, reason)
	case cache.SourceFallback:
		c.notice(cmd, "Showing fallback %s%s", what, reason)
	}
}

// sessionError converts a failed session Outcome into an error.
func sessionError(code errors.ErrorCode, out session.Outcome) error {
	msg := out.Error
	if msg == "" {
		msg = "operation failed"
	}
	return errors.New(code, msg)
}
