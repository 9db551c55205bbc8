package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

const (
	// DefaultTimeout bounds every request, including the refresh call.
	DefaultTimeout = 30 * time.Second

	maxBodySize = 1 << 20 // 1 MB

	refreshPath = "/users/refresh"
)

// Client is the ShopDrop API client. It is safe for concurrent use.
type Client struct {
	baseURL      string
	tokens       TokenStore
	httpClient   *http.Client
	timeout      time.Duration
	logger       *slog.Logger
	onAuthFailed func(error)

	refreshGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar is kept unless
// WithCookieJar is also given.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCookieJar installs the jar that carries the refresh cookie.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		h := *c.httpClient
		h.Jar = jar
		c.httpClient = &h
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// OnAuthFailed registers a hook run after the token store has been cleared
// because the session could not be refreshed.
func OnAuthFailed(fn func(error)) Option {
	return func(c *Client) { c.onAuthFailed = fn }
}

// New creates a new API client. tokens may be nil for anonymous use.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokens("")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// --- Auth ---

// SignIn exchanges credentials for an access token. A 401 here means bad
// credentials and never triggers a refresh.
func (c *Client) SignIn(ctx context.Context, req domain.SignInRequest) (*domain.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("client.SignIn: %w", err)
	}
	var resp domain.AuthResponse
	if err := c.anonymous(ctx, http.MethodPost, "/users/signin", req, &resp); err != nil {
		return nil, fmt.Errorf("client.SignIn: %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("client.SignIn: %w: response has no user", ErrDecode)
	}
	return &resp, nil
}

// SignUp creates an account and signs it in.
func (c *Client) SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("client.SignUp: %w", err)
	}
	var resp domain.AuthResponse
	if err := c.anonymous(ctx, http.MethodPost, "/users/signup", req, &resp); err != nil {
		return nil, fmt.Errorf("client.SignUp: %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("client.SignUp: %w: response has no user", ErrDecode)
	}
	return &resp, nil
}

// Refresh obtains a new access token using the refresh cookie and stores it.
// Concurrent callers share one round trip.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	token, err := c.refreshToken(ctx, c.tokens.Generation(), c.tokens.AccessToken(), true)
	if err != nil {
		return "", fmt.Errorf("client.Refresh: %w", err)
	}
	return token, nil
}

// --- Account ---

// GetMe returns the authenticated user's profile.
func (c *Client) GetMe(ctx context.Context) (*domain.User, error) {
	var env userEnvelope
	if err := c.get(ctx, "/users/me", &env); err != nil {
		return nil, fmt.Errorf("client.GetMe: %w", err)
	}
	return env.User, nil
}

// UpdateMe edits the authenticated user's profile.
func (c *Client) UpdateMe(ctx context.Context, req domain.UpdateProfileRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("client.UpdateMe: %w", err)
	}
	var env userEnvelope
	if err := c.doRequest(ctx, http.MethodPut, "/users/me", req, &env); err != nil {
		return nil, fmt.Errorf("client.UpdateMe: %w", err)
	}
	return env.User, nil
}

// ChangePassword rotates the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("client.ChangePassword: %w", err)
	}
	if err := c.doRequest(ctx, http.MethodPut, "/users/change-password", req, nil); err != nil {
		return fmt.Errorf("client.ChangePassword: %w", err)
	}
	return nil
}

// --- Catalog ---

// ListProducts fetches the catalog, optionally filtered by a search query.
func (c *Client) ListProducts(ctx context.Context, search string) ([]domain.Product, error) {
	path := "/products"
	if q := strings.TrimSpace(search); q != "" {
		params := url.Values{}
		params.Set("search", q)
		path += "?" + params.Encode()
	}
	var env productsEnvelope
	if err := c.get(ctx, path, &env); err != nil {
		return nil, fmt.Errorf("client.ListProducts: %w", err)
	}
	return env.Products, nil
}

// GetProduct fetches a single product by ID.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var env productEnvelope
	if err := c.get(ctx, "/products/"+url.PathEscape(id), &env); err != nil {
		return nil, fmt.Errorf("client.GetProduct: %w", err)
	}
	return env.Product, nil
}

// --- Cart ---

// GetCart fetches the server's cart.
func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.get(ctx, "/cart", &cart); err != nil {
		return nil, fmt.Errorf("client.GetCart: %w", err)
	}
	return &cart, nil
}

// AddToCart adds a line. Merging with an existing line of the same variant
// is up to the server.
func (c *Client) AddToCart(ctx context.Context, req domain.AddItemRequest) (*domain.Cart, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("client.AddToCart: %w", err)
	}
	var cart domain.Cart
	if err := c.post(ctx, "/cart", req, &cart); err != nil {
		return nil, fmt.Errorf("client.AddToCart: %w", err)
	}
	return &cart, nil
}

// UpdateCartItem sets the quantity and variant of a product's line.
func (c *Client) UpdateCartItem(ctx context.Context, productID string, req domain.UpdateItemRequest) (*domain.Cart, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("client.UpdateCartItem: %w", err)
	}
	var cart domain.Cart
	if err := c.doRequest(ctx, http.MethodPut, "/cart/"+url.PathEscape(productID), req, &cart); err != nil {
		return nil, fmt.Errorf("client.UpdateCartItem: %w", err)
	}
	return &cart, nil
}

// RemoveFromCart removes every line of a product.
func (c *Client) RemoveFromCart(ctx context.Context, productID string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.doRequest(ctx, http.MethodDelete, "/cart/"+url.PathEscape(productID), nil, &cart); err != nil {
		return nil, fmt.Errorf("client.RemoveFromCart: %w", err)
	}
	return &cart, nil
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.doRequest(ctx, http.MethodDelete, "/cart/clear", nil, &cart); err != nil {
		return nil, fmt.Errorf("client.ClearCart: %w", err)
	}
	return &cart, nil
}

// --- Orders ---

// CreateCheckoutSession asks the server for a hosted payment page. The
// idempotency key is sent on the original request and on a 401 replay.
func (c *Client) CreateCheckoutSession(ctx context.Context, idempotencyKey string) (*domain.CheckoutSession, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}
	var session domain.CheckoutSession
	err := c.send(ctx, call{
		method: http.MethodPost,
		path:   "/checkout/create-session",
		header: header,
		out:    &session,
	})
	if err != nil {
		return nil, fmt.Errorf("client.CreateCheckoutSession: %w", err)
	}
	return &session, nil
}

// ListOrders returns the authenticated user's orders, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var env ordersEnvelope
	if err := c.get(ctx, "/orders/user", &env); err != nil {
		return nil, fmt.Errorf("client.ListOrders: %w", err)
	}
	return env.Orders, nil
}

// GetOrder fetches a single order by ID.
func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var env orderEnvelope
	if err := c.get(ctx, "/orders/"+url.PathEscape(id), &env); err != nil {
		return nil, fmt.Errorf("client.GetOrder: %w", err)
	}
	return env.Order, nil
}

// --- Transport ---

// call is one logical request. The body is encoded once so a replay after
// a refresh sends identical bytes.
type call struct {
	method    string
	path      string
	body      any
	header    http.Header
	out       any
	anonymous bool
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	return c.send(ctx, call{method: method, path: path, body: body, out: out})
}

func (c *Client) anonymous(ctx context.Context, method, path string, body any, out any) error {
	return c.send(ctx, call{method: method, path: path, body: body, out: out, anonymous: true})
}

func (c *Client) send(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		payload = data
	}
	gen := c.tokens.Generation()
	attempt := func(token string) error {
		return c.attempt(ctx, gen, cl.method, cl.path, payload, cl.header, token, cl.out)
	}
	if cl.anonymous {
		return attempt("")
	}
	return c.retryOnUnauthorized(ctx, gen, cl.path, attempt)
}

// SessionJar is a cookie jar shared by successive sessions. ForGeneration
// returns a view bound to one session that ignores responses arriving after
// that session ended.
type SessionJar interface {
	http.CookieJar
	ForGeneration(gen uint64) http.CookieJar
}

// httpClientFor returns the HTTP client for a request started in session gen.
func (c *Client) httpClientFor(gen uint64) *http.Client {
	sj, ok := c.httpClient.Jar.(SessionJar)
	if !ok {
		return c.httpClient
	}
	h := *c.httpClient
	h.Jar = sj.ForGeneration(gen)
	return &h
}

// attempt performs a single round trip with its own deadline.
func (c *Client) attempt(ctx context.Context, gen uint64, method, path string, payload []byte, header http.Header, token string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClientFor(gen).Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "err", err)
		return transportError(err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"elapsed", time.Since(start))

	if resp.StatusCode >= 400 {
		return readHTTPError(resp)
	}
	if out != nil {
		return decode(resp.Body, out)
	}
	return nil
}

func readHTTPError(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if readErr != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
	}
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil {
		if apiErr.Message != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Message}
		}
		if apiErr.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
	}
	msg := strings.TrimSpace(string(respBody))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}

// decode reads a JSON body into out and runs its Validate method if it has one.
func decode(r io.Reader, out any) error {
	if err := json.NewDecoder(io.LimitReader(r, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if v, ok := out.(domain.Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}
	return nil
}
