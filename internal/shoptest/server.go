// Package shoptest is an in-memory storefront backend. It implements every
// endpoint the client uses and adds hooks for expiring tokens, injecting
// failures and counting requests. Tests run it with httptest; the devserver
// command serves it for manual use.
package shoptest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

// RefreshCookie is the name of the cookie carrying the refresh token.
const RefreshCookie = "refreshToken"

type account struct {
	user     domain.User
	password string
}

type accessToken struct {
	userID  string
	expires time.Time
}

type failure struct {
	status  int
	message string
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	logger      *slog.Logger
	tokenTTL    time.Duration
	checkoutURL string
	now         func() time.Time
	router      chi.Router

	mu       sync.Mutex
	accounts map[string]*account // by email
	tokens   map[string]accessToken
	refresh  map[string]string // refresh token -> user id
	products []domain.Product
	carts    map[string]*domain.Cart // by user id
	orders   map[string][]domain.Order
	sessions map[string]string // idempotency key -> checkout url
	counts   map[string]int
	failures map[string][]failure
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs every request.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTokenTTL sets how long access tokens stay valid.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithCheckoutURL sets the base of generated payment page URLs.
func WithCheckoutURL(u string) Option {
	return func(s *Server) { s.checkoutURL = strings.TrimRight(u, "/") }
}

// WithProducts replaces the seeded catalog.
func WithProducts(products ...domain.Product) Option {
	return func(s *Server) { s.products = products }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New returns a Server seeded with a small catalog and no users.
func New(opts ...Option) *Server {
	s := &Server{
		logger:      slog.New(slog.DiscardHandler),
		tokenTTL:    15 * time.Minute,
		checkoutURL: "https://checkout.shoptest.invalid",
		now:         time.Now,
		accounts:    make(map[string]*account),
		tokens:      make(map[string]accessToken),
		refresh:     make(map[string]string),
		products:    SeedProducts(),
		carts:       make(map[string]*domain.Cart),
		orders:      make(map[string][]domain.Order),
		sessions:    make(map[string]string),
		counts:      make(map[string]int),
		failures:    make(map[string][]failure),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// NewTestServer starts s behind httptest and returns it with its base URL.
// The server is closed when the test ends.
func NewTestServer(t testing.TB, opts ...Option) (*Server, string) {
	t.Helper()
	s := New(opts...)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv.URL
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.countAndInject)

	r.Route("/users", func(r chi.Router) {
		r.Post("/signin", s.signIn)
		r.Post("/signup", s.signUp)
		r.Post("/refresh", s.refreshToken)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/me", s.getMe)
			r.Put("/me", s.updateMe)
			r.Put("/change-password", s.changePassword)
		})
	})

	r.Get("/products", s.listProducts)
	r.Get("/products/{id}", s.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/cart", s.getCart)
		r.Post("/cart", s.addToCart)
		r.Delete("/cart/clear", s.clearCart)
		r.Put("/cart/{productId}", s.updateCartItem)
		r.Delete("/cart/{productId}", s.removeFromCart)
		r.Post("/checkout/create-session", s.createCheckoutSession)
		r.Get("/orders/user", s.listOrders)
		r.Get("/orders/{id}", s.getOrder)
	})
	return r
}

// routeKey names a request by method and path relative to the mount point.
func routeKey(r *http.Request) string {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
		path = rctx.RoutePath
	}
	return r.Method + " " + path
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start))
	})
}

func (s *Server) countAndInject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r)
		s.mu.Lock()
		s.counts[key]++
		var injected *failure
		if queue := s.failures[key]; len(queue) > 0 {
			injected = &queue[0]
			s.failures[key] = queue[1:]
		}
		s.mu.Unlock()
		if injected != nil {
			writeError(w, injected.status, injected.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FailNext makes the next request to method and path fail with status.
// Calls queue up.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], failure{status: status, message: message})
}

// Count returns how many requests reached method and path.
func (s *Server) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method+" "+path]
}

// TotalRequests returns the number of requests served.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// ExpireAccessTokens invalidates every issued access token. Refresh tokens
// stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tokens)
}

// RevokeRefreshTokens invalidates every refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refresh)
}

// AddUser registers an account directly.
func (s *Server) AddUser(username, email, password string, role domain.Role) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, email, password, role)
}

func (s *Server) addUserLocked(username, email, password string, role domain.Role) domain.User {
	u := domain.User{ID: uuid.NewString(), Username: username, Email: strings.ToLower(email), Role: role}
	s.accounts[u.Email] = &account{user: u, password: password}
	return u
}

// CartOf returns a copy of a user's server-side cart.
func (s *Server) CartOf(userID string) *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked(userID).Clone()
}

// Orders returns a copy of a user's orders, newest first.
func (s *Server) Orders(userID string) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Order(nil), s.orders[userID]...)
}
