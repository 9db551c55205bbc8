// Package app assembles the session, API client, cart synchronizer and
// checkout initiator into one application context with an explicit
// lifecycle: New at startup, Logout to end a session, Close at exit.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/naveenspark/shopdrop/internal/browser"
	"github.com/naveenspark/shopdrop/internal/cart"
	"github.com/naveenspark/shopdrop/internal/checkout"
	"github.com/naveenspark/shopdrop/internal/config"
	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/internal/session"
	"github.com/naveenspark/shopdrop/internal/store"
	storebbolt "github.com/naveenspark/shopdrop/internal/store/bbolt"
	"github.com/naveenspark/shopdrop/pkg/client"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

// App is the application context shared by the CLI commands and the TUI.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Session  *session.Store
	Client   *client.Client
	Cart     *cart.Synchronizer
	Checkout *checkout.Initiator
	Notices  *notify.Channel

	notifier  notify.Notifier
	signedOut chan struct{}
	backend   store.Backend
	closeLog  io.Closer
}

// Options override the defaults New would otherwise build from Config.
type Options struct {
	Backend   store.Backend      // default: bbolt file at Config.SessionPath
	Navigator checkout.Navigator // default: the OS browser
	LogWriter io.Writer          // default: append to Config.LogPath
}

// New builds the application and hydrates the persisted session. A corrupt
// session snapshot is logged and the app starts signed out.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{
		Config:    cfg,
		Notices:   notify.NewChannel(16),
		signedOut: make(chan struct{}, 1),
	}

	if opts.LogWriter == nil || opts.Backend == nil {
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("app.New: create data dir: %w", err)
		}
	}

	logWriter := opts.LogWriter
	if logWriter == nil {
		f, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("app.New: open log: %w", err)
		}
		logWriter = f
		a.closeLog = f
	}
	a.Logger = slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: cfg.LogLevel}))

	a.backend = opts.Backend
	if a.backend == nil {
		b, err := storebbolt.Open(cfg.SessionPath(), nil)
		if err != nil {
			a.Close() //nolint:errcheck
			return nil, fmt.Errorf("app.New: open session store: %w", err)
		}
		a.backend = b
	}

	a.Session = session.New(a.backend, a.Logger.With("component", "session"))
	if err := a.Session.Hydrate(ctx); err != nil {
		a.Logger.Warn("session hydration failed, starting signed out", "err", err)
	}

	a.notifier = notify.Tee(a.Notices, notify.Log(a.Logger.With("component", "notify")))

	a.Client = client.New(cfg.APIURL, a.Session,
		client.WithTimeout(cfg.HTTPTimeout),
		client.WithCookieJar(a.Session.CookieJar()),
		client.WithLogger(a.Logger.With("component", "client")),
		client.OnAuthFailed(a.onAuthFailed),
	)
	a.Cart = cart.New(a.Client, a.Session,
		cart.WithNotifier(a.notifier),
		cart.WithLogger(a.Logger.With("component", "cart")),
	)

	nav := opts.Navigator
	if nav == nil {
		nav = browser.New()
	}
	a.Checkout = checkout.New(a.Client, nav, a.Session,
		checkout.WithNotifier(a.notifier),
		checkout.WithLogger(a.Logger.With("component", "checkout")),
	)

	a.Logger.Info("started", "api_url", cfg.APIURL, "authenticated", a.Session.Authenticated())
	return a, nil
}

// onAuthFailed runs after the client has cleared the session.
func (a *App) onAuthFailed(err error) {
	a.Cart.Reset()
	a.Logger.Info("signed out after failed refresh", "err", err)
	select {
	case a.signedOut <- struct{}{}:
	default:
	}
}

// SignedOut fires when the session ends because it could not be refreshed.
// The UI uses it to return to the sign-in screen.
func (a *App) SignedOut() <-chan struct{} {
	return a.signedOut
}

// Notify sends a notification to the UI and the log.
func (a *App) Notify(n notify.Notification) {
	a.notifier.Notify(n)
}

// SignIn authenticates and stores the session.
func (a *App) SignIn(ctx context.Context, req domain.SignInRequest) (*domain.User, error) {
	resp, err := a.Client.SignIn(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("app.SignIn: %w", err)
	}
	return a.startSession(*resp)
}

// SignUp creates an account and stores its session.
func (a *App) SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.User, error) {
	resp, err := a.Client.SignUp(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("app.SignUp: %w", err)
	}
	return a.startSession(*resp)
}

func (a *App) startSession(resp domain.AuthResponse) (*domain.User, error) {
	a.Cart.Reset()
	if err := a.Session.SignIn(resp); err != nil {
		return nil, err
	}
	a.Logger.Info("signed in", "user_id", resp.User.ID)
	return resp.User.Clone(), nil
}

// RefreshProfile fetches the profile and updates the stored user.
func (a *App) RefreshProfile(ctx context.Context) (*domain.User, error) {
	u, err := a.Client.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.RefreshProfile: %w", err)
	}
	if err := a.Session.SetUser(u); err != nil {
		return nil, fmt.Errorf("app.RefreshProfile: %w", err)
	}
	return u, nil
}

// UpdateProfile saves profile edits and updates the stored user.
func (a *App) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (*domain.User, error) {
	u, err := a.Client.UpdateMe(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("app.UpdateProfile: %w", err)
	}
	if err := a.Session.SetUser(u); err != nil {
		return nil, fmt.Errorf("app.UpdateProfile: %w", err)
	}
	return u, nil
}

// Logout ends the session locally. It makes no network call.
func (a *App) Logout() error {
	a.Cart.Reset()
	if err := a.Session.Logout(); err != nil {
		return fmt.Errorf("app.Logout: %w", err)
	}
	a.Logger.Info("signed out")
	return nil
}

// Close releases the session store and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			firstErr = err
		}
	}
	if a.closeLog != nil {
		if err := a.closeLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
