// Package app assembles the client: configuration, storage, the API client,
// the session and every domain store. One App serves one CLI invocation.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/company"
	"github.com/felixgeelhaar/okr/internal/config"
	"github.com/felixgeelhaar/okr/internal/health"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
	"github.com/felixgeelhaar/okr/internal/notifications"
	"github.com/felixgeelhaar/okr/internal/objectives"
	"github.com/felixgeelhaar/okr/internal/people"
	"github.com/felixgeelhaar/okr/internal/router"
	"github.com/felixgeelhaar/okr/internal/server"
	"github.com/felixgeelhaar/okr/internal/session"
	"github.com/felixgeelhaar/okr/internal/storage"
	"github.com/felixgeelhaar/okr/internal/telemetry"
	"github.com/felixgeelhaar/okr/internal/version"
)

// closeTimeout bounds how long Close waits for a pending session validation.
const closeTimeout = 5 * time.Second

// Options overrides the defaults New derives from the configuration.
type Options struct {
	// Home is the configuration directory. The file store lives inside it.
	Home string

	// Storage replaces the file store, e.g. with a MemoryStore for --ephemeral runs.
	Storage storage.Store

	Logger     *log.Logger
	Navigator  session.Navigator
	HTTPClient *http.Client
}

// App owns every long-lived component of a CLI invocation.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Storage  storage.Store
	Client   *api.Client
	Session  *session.Store
	Router   *router.Router
	Guard    *router.Guard

	Objectives    *objectives.Store
	People        *people.Store
	Notifications *notifications.Store
	Company       *company.Store

	shutdownTelemetry func(context.Context) error
}

// New wires the components. It performs no I/O beyond what the options imply.
func New(cfg *config.Config, opts Options) *App {
	logger := log.OrDefault(opts.Logger)
	reg, m := metrics.NewRegistry()

	store := opts.Storage
	if store == nil {
		store = storage.NewFileStore(config.StatePath(opts.Home))
	}

	clientOpts := []api.Option{api.WithLogger(logger), api.WithMetrics(m)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	client := api.New(api.Config{
		BaseURL:   cfg.API.URL,
		Timeout:   cfg.API.Timeout,
		UserAgent: version.GetInfo().UserAgent(),
		RateLimit: cfg.API.RateLimit,
	}, store, clientOpts...)

	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(m),
		session.WithCallbackURL("http://" + cfg.OAuth.CallbackAddr + server.CallbackPath),
	}
	if opts.Navigator != nil {
		sessOpts = append(sessOpts, session.WithNavigator(opts.Navigator))
	}
	sess := session.New(client, store, sessOpts...)

	r := router.New()
	guard := router.NewGuard(r, sess, store, router.WithGuardLogger(logger), router.WithGuardMetrics(m))

	return &App{
		Config:        cfg,
		Logger:        logger,
		Registry:      reg,
		Metrics:       m,
		Storage:       store,
		Client:        client,
		Session:       sess,
		Router:        r,
		Guard:         guard,
		Objectives:    objectives.New(client, logger, m),
		People:        people.New(client, logger, m),
		Notifications: notifications.New(client, logger, m),
		Company:       company.New(client, store, logger, m),
	}
}

// Boot starts tracing, sweeps expired storage entries and rehydrates the
// session and company branding. The session validation it may start runs in
// the background; Close waits for it. Unreadable storage is the only error.
func (a *App) Boot(ctx context.Context) error {
	if _, err := a.Storage.Cleanup(ctx); err != nil {
		return err
	}

	shutdown, err := telemetry.InitProvider(ctx, telemetry.FromEndpoint(a.Config.Telemetry.Endpoint, version.GetInfo().Version))
	if err != nil {
		a.Logger.WithError(err).Warn("tracing disabled")
	} else {
		a.shutdownTelemetry = shutdown
	}

	a.Session.LoadFromStorage(ctx)
	a.Company.LoadFromStorage()
	a.SyncUser()
	return nil
}

// SyncUser points the notifications store at the signed-in user.
func (a *App) SyncUser() {
	a.Notifications.SetCurrentUser(a.Session.UserID())
}

// Navigate runs the route guard for path.
func (a *App) Navigate(ctx context.Context, path string) router.Decision {
	d := a.Guard.Navigate(ctx, path)
	a.SyncUser()
	return d
}

// Doctor returns a health manager with the API, storage and session checks registered.
func (a *App) Doctor() *health.Manager {
	m := health.NewManager()
	m.AddChecker(health.NewAPIChecker(a.Client.BaseURL(), nil))
	m.AddChecker(health.NewStorageChecker(a.Storage))
	m.AddChecker(health.NewSessionChecker(a.Session))
	return m
}

// Close waits, at most a few seconds, for a pending session validation and
// flushes tracing.
func (a *App) Close(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := a.Session.Wait(waitCtx); err != nil {
		a.Logger.WithError(err).Debug("session validation still pending at exit")
	}

	if a.shutdownTelemetry != nil {
		return a.shutdownTelemetry(ctx)
	}
	return nil
}
