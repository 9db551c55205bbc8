// Package cart keeps a local copy of the server cart in sync with the user's
// edits. Remove, clear and quantity updates are applied to the displayed cart
// before the server answers and rolled back if the server refuses them.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/internal/session"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

// State is the load state of the cached cart.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateReady
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	}
	return "idle"
}

// API is the subset of the storefront client the synchronizer talks to.
type API interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddToCart(ctx context.Context, req domain.AddItemRequest) (*domain.Cart, error)
	UpdateCartItem(ctx context.Context, productID string, req domain.UpdateItemRequest) (*domain.Cart, error)
	RemoveFromCart(ctx context.Context, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context) (*domain.Cart, error)
}

// Sessions reports whether a user is signed in. *session.Store satisfies it.
type Sessions interface {
	Authenticated() bool
}

// View is an immutable snapshot of the synchronizer for rendering.
type View struct {
	Cart     *domain.Cart
	State    State
	Mutating bool
	Err      error
	Totals   domain.Totals
}

// Synchronizer owns the displayed cart. It is safe for concurrent use.
type Synchronizer struct {
	api      API
	sessions Sessions
	notifier notify.Notifier
	logger   *slog.Logger

	writes *semaphore.Weighted

	mu       sync.Mutex
	cart     *domain.Cart
	state    State
	mutating bool
	err      error
	gen      uint64

	changes chan View
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithNotifier sets where success and failure messages go.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Synchronizer) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Synchronizer with an empty, unfetched cart.
func New(api API, sessions Sessions, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:      api,
		sessions: sessions,
		notifier: notify.Discard,
		logger:   slog.Default(),
		writes:   semaphore.NewWeighted(1),
		changes:  make(chan View, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cart returns a copy of the displayed cart, or nil before the first fetch.
func (s *Synchronizer) Cart() *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Totals derives the item count and subtotal from the displayed cart.
func (s *Synchronizer) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Totals()
}

// State returns the load state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mutating reports whether a write is in flight.
func (s *Synchronizer) Mutating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutating
}

// View returns a consistent snapshot of everything a renderer needs.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Synchronizer) viewLocked() View {
	return View{
		Cart:     s.cart.Clone(),
		State:    s.state,
		Mutating: s.mutating,
		Err:      s.err,
		Totals:   s.cart.Totals(),
	}
}

// Changes delivers the latest View after every change. Only the most recent
// view is kept, so a slow reader skips intermediate states.
func (s *Synchronizer) Changes() <-chan View {
	return s.changes
}

// publishLocked replaces any unread view with the current one.
func (s *Synchronizer) publishLocked() {
	v := s.viewLocked()
	select {
	case <-s.changes:
	default:
	}
	select {
	case s.changes <- v:
	default:
	}
}

// Reset forgets the cached cart. Called on logout; any fetch or write still
// in flight is discarded when it completes.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cart = nil
	s.state = StateIdle
	s.err = nil
	s.publishLocked()
}

// Fetch loads the cart from the server and replaces the cached copy. A
// response that arrives after a write has started is dropped.
func (s *Synchronizer) Fetch(ctx context.Context) (*domain.Cart, error) {
	if !s.sessions.Authenticated() {
		return nil, fmt.Errorf("cart.Fetch: %w", session.ErrNotAuthenticated)
	}

	s.mu.Lock()
	gen := s.gen
	if s.cart == nil {
		s.state = StateFetching
		s.publishLocked()
	}
	s.mu.Unlock()

	cart, err := s.api.GetCart(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.sessions.Authenticated() {
		s.logger.Debug("discarding stale cart fetch")
		if err != nil {
			return nil, fmt.Errorf("cart.Fetch: %w", err)
		}
		return s.cart.Clone(), nil
	}
	if err != nil {
		s.err = err
		if s.cart == nil {
			s.state = StateIdle
		}
		s.publishLocked()
		return nil, fmt.Errorf("cart.Fetch: %w", err)
	}
	s.cart = cart
	s.state = StateReady
	s.err = nil
	s.publishLocked()
	return cart.Clone(), nil
}

// Add adds quantity of a product variant. The server decides whether it
// merges with an existing line, so nothing is projected locally.
func (s *Synchronizer) Add(ctx context.Context, productID string, quantity int, size, color string) (*domain.Cart, error) {
	req := domain.AddItemRequest{ProductID: productID, Quantity: quantity, Size: size, Color: color}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("cart.Add: %w", err)
	}
	return s.mutate(ctx, mutation{
		op:      "Add",
		success: notify.Success("Added to cart", "Item has been added to your cart."),
		failure: "Failed to add item to cart",
		call: func(ctx context.Context) (*domain.Cart, error) {
			return s.api.AddToCart(ctx, req)
		},
	})
}

// Update sets the quantity and variant of a product's line. The displayed
// quantity changes immediately.
func (s *Synchronizer) Update(ctx context.Context, productID string, quantity int, size, color string) (*domain.Cart, error) {
	req := domain.UpdateItemRequest{Quantity: quantity, Size: size, Color: color}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("cart.Update: %w", err)
	}
	key := domain.VariantKey{ProductID: productID, Size: size, Color: color}
	return s.mutate(ctx, mutation{
		op:      "Update",
		failure: "Failed to update cart item",
		project: func(c *domain.Cart) *domain.Cart { return c.WithQuantity(key, quantity) },
		call: func(ctx context.Context) (*domain.Cart, error) {
			return s.api.UpdateCartItem(ctx, productID, req)
		},
	})
}

// Remove drops every line of a product. The line disappears immediately.
func (s *Synchronizer) Remove(ctx context.Context, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, mutation{
		op:      "Remove",
		success: notify.Success("Removed from cart", "Item has been removed from your cart."),
		failure: "Failed to remove item from cart",
		project: func(c *domain.Cart) *domain.Cart { return c.WithoutProduct(productID) },
		call: func(ctx context.Context) (*domain.Cart, error) {
			return s.api.RemoveFromCart(ctx, productID)
		},
	})
}

// Clear empties the cart. The cart shows empty immediately.
func (s *Synchronizer) Clear(ctx context.Context) (*domain.Cart, error) {
	return s.mutate(ctx, mutation{
		op:      "Clear",
		success: notify.Success("Cart cleared", "Your cart has been cleared."),
		failure: "Failed to clear cart",
		project: func(c *domain.Cart) *domain.Cart { return c.Emptied() },
		call:    s.api.ClearCart,
	})
}

type mutation struct {
	op      string
	success notify.Notification // zero Title means no message
	failure string
	project func(*domain.Cart) *domain.Cart
	call    func(context.Context) (*domain.Cart, error)
}

// mutate runs one write: snapshot, project, call, then either replace the
// cache with the server's cart and revalidate, or restore the snapshot.
func (s *Synchronizer) mutate(ctx context.Context, m mutation) (*domain.Cart, error) {
	if !s.sessions.Authenticated() {
		return nil, fmt.Errorf("cart.%s: %w", m.op, session.ErrNotAuthenticated)
	}
	if err := s.writes.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("cart.%s: %w", m.op, err)
	}

	s.mu.Lock()
	snapshot := s.cart.Clone()
	s.gen++
	s.mutating = true
	if m.project != nil {
		s.cart = m.project(s.cart)
	}
	s.publishLocked()
	s.mu.Unlock()

	cart, err := m.call(ctx)

	s.mu.Lock()
	s.gen++
	s.mutating = false
	switch {
	case !s.sessions.Authenticated():
		// Signed out while the write was in flight.
		s.cart = nil
		s.state = StateIdle
	case err != nil:
		s.cart = snapshot
	default:
		s.cart = cart
		s.state = StateReady
		s.err = nil
	}
	s.publishLocked()
	result := s.cart.Clone()
	s.mu.Unlock()
	s.writes.Release(1)

	if err != nil {
		s.logger.Warn("cart write failed", "op", m.op, "err", err)
		s.notifier.Notify(notify.Failure(m.failure, err))
		return nil, fmt.Errorf("cart.%s: %w", m.op, err)
	}
	if m.success.Title != "" {
		s.notifier.Notify(m.success)
	}
	s.revalidate(ctx)
	return result, nil
}

// revalidate refetches after a successful write. A failure leaves the
// server's write response in place.
func (s *Synchronizer) revalidate(ctx context.Context) {
	if ctx.Err() != nil || !s.sessions.Authenticated() {
		return
	}
	if _, err := s.Fetch(ctx); err != nil {
		s.logger.Debug("cart revalidation failed", "err", err)
	}
}
