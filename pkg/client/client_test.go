package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

var testUser = map[string]any{"id": "u1", "username": "ann", "email": "ann@example.com", "role": "customer"}

func TestSignInThenAuthenticatedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/signin":
			if r.Header.Get("Authorization") != "" {
				t.Errorf("sign-in sent Authorization %q", r.Header.Get("Authorization"))
			}
			var req domain.SignInRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			if req.Email != "ann@example.com" || req.Password != "pw" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"accessToken": "abc", "user": testUser})
		case "/users/me":
			if r.Header.Get("Authorization") != "Bearer abc" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"user": testUser})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tokens := NewMemoryTokens("")
	c := New(srv.URL, tokens)
	resp, err := c.SignIn(context.Background(), domain.SignInRequest{Email: "ann@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	if resp.AccessToken != "abc" {
		t.Errorf("AccessToken = %q, want %q", resp.AccessToken, "abc")
	}
	if resp.User.Username != "ann" {
		t.Errorf("Username = %q, want %q", resp.User.Username, "ann")
	}

	tokens.SetAccessToken(resp.AccessToken) //nolint:errcheck
	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if me.ID != "u1" {
		t.Errorf("ID = %q, want %q", me.ID, "u1")
	}
}

func TestSignIn_BadCredentialsDoesNotRefresh(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/refresh" {
			refreshes.Add(1)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	}))
	defer srv.Close()

	authFailed := false
	c := New(srv.URL, NewMemoryTokens(""), OnAuthFailed(func(error) { authFailed = true }))
	_, err := c.SignIn(context.Background(), domain.SignInRequest{Email: "ann@example.com", Password: "wrong"})
	if err == nil {
		t.Fatal("expected error for bad credentials")
	}
	if got := Classify(err); got != KindValidation {
		t.Errorf("Classify() = %v, want %v", got, KindValidation)
	}
	if got := Message(err); got != "Invalid credentials" {
		t.Errorf("Message() = %q, want %q", got, "Invalid credentials")
	}
	if refreshes.Load() != 0 {
		t.Errorf("refreshes = %d, want 0", refreshes.Load())
	}
	if authFailed {
		t.Error("OnAuthFailed fired for a sign-in rejection")
	}
}

func TestSignIn_InvalidRequestIsNotSent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.SignIn(context.Background(), domain.SignInRequest{Email: "nope"})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}
	if Classify(err) != KindValidation {
		t.Errorf("Classify() = %v, want validation", Classify(err))
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

// refreshServer rejects bearer tokens other than want and hands out want on
// refresh when the refresh cookie is present.
type refreshServer struct {
	want      string
	refreshes atomic.Int32
	calls     atomic.Int32
	delay     time.Duration

	mu         sync.Mutex
	requestIDs []string
	bodies     []string
	keys       []string
}

func (s *refreshServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/users/refresh" {
		s.refreshes.Add(1)
		if r.Header.Get("Authorization") != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "refresh must not carry a bearer"})
			return
		}
		if c, err := r.Cookie("refreshToken"); err != nil || c.Value != "r1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "no refresh cookie"})
			return
		}
		time.Sleep(s.delay)
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": s.want})
		return
	}
	s.calls.Add(1)
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requestIDs = append(s.requestIDs, r.Header.Get("X-Request-ID"))
	s.bodies = append(s.bodies, string(body))
	s.keys = append(s.keys, r.Header.Get("Idempotency-Key"))
	s.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer "+s.want {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
		return
	}
	switch r.URL.Path {
	case "/users/me":
		writeJSON(w, http.StatusOK, map[string]any{"user": testUser})
	case "/checkout/create-session":
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://pay.example.com/s/1"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"_id": "c1", "items": []any{}})
	}
}

func (s *refreshServer) recorded() (ids, bodies, keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...), append([]string(nil), s.bodies...), append([]string(nil), s.keys...)
}

func newJar(t *testing.T, rawURL string) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: "refreshToken", Value: "r1", Path: "/"}})
	return jar
}

func TestUnauthorizedRefreshesAndRetries(t *testing.T) {
	rs := &refreshServer{want: "def"}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	tokens := NewMemoryTokens("abc")
	c := New(srv.URL, tokens, WithCookieJar(newJar(t, srv.URL)))
	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if me.Username != "ann" {
		t.Errorf("Username = %q, want %q", me.Username, "ann")
	}
	if got := tokens.AccessToken(); got != "def" {
		t.Errorf("stored token = %q, want %q", got, "def")
	}
	if rs.refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", rs.refreshes.Load())
	}
	if rs.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", rs.calls.Load())
	}
	ids, _, _ := rs.recorded()
	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Errorf("request ids = %q, want distinct non-empty ids", ids)
	}
}

func TestReplayKeepsBodyAndIdempotencyKey(t *testing.T) {
	rs := &refreshServer{want: "def"}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	c := New(srv.URL, NewMemoryTokens("abc"), WithCookieJar(newJar(t, srv.URL)))
	if _, err := c.UpdateCartItem(context.Background(), "p1", domain.UpdateItemRequest{Quantity: 3, Size: "M"}); err != nil {
		t.Fatalf("UpdateCartItem() error: %v", err)
	}
	_, bodies, _ := rs.recorded()
	if len(bodies) != 2 || bodies[0] != bodies[1] {
		t.Fatalf("bodies = %q, want the same body twice", bodies)
	}
	if !strings.Contains(bodies[0], `"quantity":3`) {
		t.Errorf("body = %q, want quantity 3", bodies[0])
	}

	rs.mu.Lock()
	rs.keys = nil
	rs.mu.Unlock()
	c2 := New(srv.URL, NewMemoryTokens("stale"), WithCookieJar(newJar(t, srv.URL)))
	session, err := c2.CreateCheckoutSession(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("CreateCheckoutSession() error: %v", err)
	}
	if session.URL != "https://pay.example.com/s/1" {
		t.Errorf("URL = %q", session.URL)
	}
	_, _, keys := rs.recorded()
	if len(keys) != 2 || keys[0] != "key-1" || keys[1] != "key-1" {
		t.Errorf("idempotency keys = %q, want key-1 twice", keys)
	}
}

func TestSecondUnauthorizedFailsAuth(t *testing.T) {
	rs := &refreshServer{want: "never-issued"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/refresh" {
			rs.refreshes.Add(1)
			writeJSON(w, http.StatusOK, map[string]string{"accessToken": "def"})
			return
		}
		rs.calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
	}))
	defer srv.Close()

	var hook atomic.Int32
	tokens := NewMemoryTokens("abc")
	c := New(srv.URL, tokens, OnAuthFailed(func(error) { hook.Add(1) }))
	_, err := c.GetCart(context.Background())
	if !IsAuthFailed(err) {
		t.Fatalf("error = %v, want ErrAuthFailed", err)
	}
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Error("auth error should still expose the 401")
	}
	if rs.refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", rs.refreshes.Load())
	}
	if rs.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", rs.calls.Load())
	}
	if tokens.AccessToken() != "" {
		t.Errorf("token = %q, want cleared", tokens.AccessToken())
	}
	if hook.Load() != 1 {
		t.Errorf("OnAuthFailed calls = %d, want 1", hook.Load())
	}
}

func TestRefreshFailureClearsSession(t *testing.T) {
	rs := &refreshServer{want: "def"}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	var hookErr error
	tokens := NewMemoryTokens("abc")
	// No refresh cookie: the refresh endpoint answers 401.
	c := New(srv.URL, tokens, OnAuthFailed(func(err error) { hookErr = err }))
	_, err := c.ListOrders(context.Background())
	if !IsAuthFailed(err) {
		t.Fatalf("error = %v, want ErrAuthFailed", err)
	}
	if Classify(err) != KindAuthFailed {
		t.Errorf("Classify() = %v, want auth_failed", Classify(err))
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Refresh == nil {
		t.Errorf("error = %#v, want AuthError with refresh cause", err)
	}
	if tokens.AccessToken() != "" {
		t.Errorf("token = %q, want cleared", tokens.AccessToken())
	}
	if rs.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no replay after failed refresh)", rs.calls.Load())
	}
	if !IsAuthFailed(hookErr) {
		t.Errorf("hook error = %v, want ErrAuthFailed", hookErr)
	}
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	rs := &refreshServer{want: "new", delay: 50 * time.Millisecond}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	tokens := NewMemoryTokens("old")
	c := New(srv.URL, tokens, WithCookieJar(newJar(t, srv.URL)))

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetMe(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("GetMe() error: %v", err)
		}
	}
	if rs.refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", rs.refreshes.Load())
	}
	if tokens.AccessToken() != "new" {
		t.Errorf("token = %q, want %q", tokens.AccessToken(), "new")
	}
}

func TestLogoutDuringRefreshIsNotUndone(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/refresh" {
			close(entered)
			<-release
			http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r2", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]string{"accessToken": "new"})
			return
		}
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer new" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"_id": "c1", "items": []any{}})
	}))
	defer srv.Close()

	tokens := NewMemoryTokens("old")
	var hook atomic.Int32
	c := New(srv.URL, tokens, WithCookieJar(newJar(t, srv.URL)), OnAuthFailed(func(error) { hook.Add(1) }))

	done := make(chan error, 1)
	go func() {
		_, err := c.GetCart(context.Background())
		done <- err
	}()
	<-entered
	tokens.Logout() //nolint:errcheck
	close(release)

	err := <-done
	if !IsAuthFailed(err) {
		t.Fatalf("GetCart() error = %v, want ErrAuthFailed", err)
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) || !errors.Is(authErr.Refresh, ErrSessionEnded) {
		t.Errorf("AuthError.Refresh = %v, want ErrSessionEnded", authErr)
	}
	if got := tokens.AccessToken(); got != "" {
		t.Errorf("token after logout = %q, want empty", got)
	}
	if calls.Load() != 1 {
		t.Errorf("cart calls = %d, want 1 (no replay after logout)", calls.Load())
	}
	if hook.Load() != 0 {
		t.Errorf("OnAuthFailed calls = %d, want 0", hook.Load())
	}
}

type genJar struct {
	http.CookieJar
	views []uint64
}

func (j *genJar) ForGeneration(gen uint64) http.CookieJar {
	j.views = append(j.views, gen)
	return j.CookieJar
}

func TestSessionJarBoundToRequestGeneration(t *testing.T) {
	rs := &refreshServer{want: "abc"}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	tokens := NewMemoryTokens("abc")
	tokens.Logout()              //nolint:errcheck
	tokens.SetAccessToken("abc") //nolint:errcheck
	jar := &genJar{CookieJar: newJar(t, srv.URL)}
	c := New(srv.URL, tokens, WithCookieJar(jar))
	if _, err := c.GetMe(context.Background()); err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if len(jar.views) != 1 || jar.views[0] != 1 {
		t.Errorf("jar views = %v, want [1]", jar.views)
	}
}

func TestExplicitRefresh(t *testing.T) {
	rs := &refreshServer{want: "def"}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	tokens := NewMemoryTokens("abc")
	c := New(srv.URL, tokens, WithCookieJar(newJar(t, srv.URL)))
	token, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if token != "def" || tokens.AccessToken() != "def" {
		t.Errorf("token = %q, stored = %q, want def", token, tokens.AccessToken())
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		want    Kind
		message string
	}{
		{http.StatusBadRequest, `{"message":"Insufficient stock"}`, KindValidation, "Insufficient stock"},
		{http.StatusBadRequest, `{"error":"bad size"}`, KindValidation, "bad size"},
		{http.StatusForbidden, `{"message":"admins only"}`, KindValidation, "admins only"},
		{http.StatusNotFound, `{"message":"Product not found"}`, KindNotFound, "Product not found"},
		{http.StatusConflict, `{"message":"cart changed"}`, KindConflict, "cart changed"},
		{http.StatusInternalServerError, `oops`, KindServer, "oops"},
		{http.StatusBadGateway, ``, KindServer, "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body) //nolint:errcheck
			}))
			defer srv.Close()

			c := New(srv.URL, NewMemoryTokens("abc"))
			_, err := c.AddToCart(context.Background(), domain.AddItemRequest{ProductID: "p1", Quantity: 1})
			if got := Classify(err); got != tt.want {
				t.Errorf("Classify() = %v, want %v (err %v)", got, tt.want, err)
			}
			if got := Message(err); got != tt.message {
				t.Errorf("Message() = %q, want %q", got, tt.message)
			}
			if !IsStatus(err, tt.status) {
				t.Errorf("IsStatus(%d) = false for %v", tt.status, err)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	var hook bool
	tokens := NewMemoryTokens("abc")
	c := New(srv.URL, tokens, WithTimeout(20*time.Millisecond), OnAuthFailed(func(error) { hook = true }))
	_, err := c.GetCart(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if Classify(err) != KindTimeout {
		t.Errorf("Classify() = %v, want timeout", Classify(err))
	}
	if hook || tokens.AccessToken() != "abc" {
		t.Error("a timeout must not end the session")
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(base, NewMemoryTokens("abc"))
	_, err := c.ListProducts(context.Background(), "")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
	if Classify(err) != KindNetwork {
		t.Errorf("Classify() = %v, want network", Classify(err))
	}
}

func TestCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(srv.URL, NewMemoryTokens("abc"))
	_, err := c.GetCart(ctx)
	if Classify(err) != KindCanceled {
		t.Errorf("Classify() = %v, want canceled (err %v)", Classify(err), err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"items": [`},
		{"zero quantity", `{"_id":"c1","items":[{"product":{"_id":"p1","title":"Tee","price":10},"quantity":0}]}`},
		{"duplicate variant", `{"_id":"c1","items":[` +
			`{"product":{"_id":"p1","title":"Tee","price":10},"quantity":1,"size":"M"},` +
			`{"product":{"_id":"p1","title":"Tee","price":10},"quantity":2,"size":"M"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				io.WriteString(w, tt.body) //nolint:errcheck
			}))
			defer srv.Close()

			c := New(srv.URL, NewMemoryTokens("abc"))
			_, err := c.GetCart(context.Background())
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("error = %v, want ErrDecode", err)
			}
			if Classify(err) != KindDecode {
				t.Errorf("Classify() = %v, want decode", Classify(err))
			}
		})
	}
}

func TestCheckoutRejectsRelativeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"url": "/pay"})
	}))
	defer srv.Close()

	c := New(srv.URL, NewMemoryTokens("abc"))
	if _, err := c.CreateCheckoutSession(context.Background(), "k"); !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestListProducts(t *testing.T) {
	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			http.NotFound(w, r)
			return
		}
		queries <- r.URL.Query().Get("search")
		writeJSON(w, http.StatusOK, map[string]any{"products": []map[string]any{
			{"_id": "p1", "title": "Tee", "price": 19.5, "type": "physical", "stock": 3, "images": []any{}},
			{"_id": "p2", "title": "Ebook", "price": "7.25", "type": "digital", "images": []any{}},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	products, err := c.ListProducts(context.Background(), " blue tee ")
	if err != nil {
		t.Fatalf("ListProducts() error: %v", err)
	}
	if gotQuery := <-queries; gotQuery != "blue tee" {
		t.Errorf("search = %q, want %q", gotQuery, "blue tee")
	}
	if len(products) != 2 {
		t.Fatalf("len = %d, want 2", len(products))
	}
	if products[0].Price.String() != "19.5" || products[1].Price.String() != "7.25" {
		t.Errorf("prices = %s, %s", products[0].Price, products[1].Price)
	}
}

func TestGetOrderMissingEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"_id": "o1", "status": "pending"})
	}))
	defer srv.Close()

	c := New(srv.URL, NewMemoryTokens("abc"))
	if _, err := c.GetOrder(context.Background(), "o1"); !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestHTTPErrorFormat(t *testing.T) {
	err := &HTTPError{StatusCode: 404, Message: "not found"}
	if got := err.Error(); got != "HTTP 404: not found" {
		t.Errorf("Error() = %q, want %q", got, "HTTP 404: not found")
	}
}
