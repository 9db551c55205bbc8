// Package checkout starts a hosted payment session and hands the user over
// to it.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/internal/session"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

// ErrInProgress is returned by Start while an earlier call is still running.
var ErrInProgress = errors.New("checkout already in progress")

// API creates checkout sessions. *client.Client satisfies it.
type API interface {
	CreateCheckoutSession(ctx context.Context, idempotencyKey string) (*domain.CheckoutSession, error)
}

// Navigator leaves the application for the payment page.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Navigate(ctx context.Context, url string) error { return f(ctx, url) }

// Sessions reports whether a user is signed in.
type Sessions interface {
	Authenticated() bool
}

// Initiator runs checkout attempts one at a time.
type Initiator struct {
	api      API
	nav      Navigator
	sessions Sessions
	notifier notify.Notifier
	logger   *slog.Logger
	newKey   func() string

	running atomic.Bool
}

// Option configures an Initiator.
type Option func(*Initiator)

// WithNotifier sets where failure messages go.
func WithNotifier(n notify.Notifier) Option {
	return func(i *Initiator) {
		if n != nil {
			i.notifier = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Initiator) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an Initiator.
func New(api API, nav Navigator, sessions Sessions, opts ...Option) *Initiator {
	i := &Initiator{
		api:      api,
		nav:      nav,
		sessions: sessions,
		notifier: notify.Discard,
		logger:   slog.Default(),
		newKey:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// InProgress reports whether a Start call is running.
func (i *Initiator) InProgress() bool {
	return i.running.Load()
}

// Start requests a checkout session and navigates to its URL. The request
// is never retried here; each call sends a fresh idempotency key. When
// navigation fails the URL is still returned so it can be shown to the user.
func (i *Initiator) Start(ctx context.Context) (string, error) {
	if !i.sessions.Authenticated() {
		err := fmt.Errorf("checkout.Start: %w", session.ErrNotAuthenticated)
		i.notifier.Notify(notify.Failure("Failed to initiate checkout", err))
		return "", err
	}
	if !i.running.CompareAndSwap(false, true) {
		return "", fmt.Errorf("checkout.Start: %w", ErrInProgress)
	}
	defer i.running.Store(false)

	key := i.newKey()
	sess, err := i.api.CreateCheckoutSession(ctx, key)
	if err == nil {
		err = sess.Validate()
	}
	if err != nil {
		i.logger.Warn("checkout failed", "idempotency_key", key, "err", err)
		i.notifier.Notify(notify.Failure("Failed to initiate checkout", err))
		return "", fmt.Errorf("checkout.Start: %w", err)
	}

	i.logger.Info("checkout session created", "idempotency_key", key)
	if err := i.nav.Navigate(ctx, sess.URL); err != nil {
		i.notifier.Notify(notify.Info("Open the payment page", sess.URL))
		return sess.URL, fmt.Errorf("checkout.Start: navigate: %w", err)
	}
	return sess.URL, nil
}
