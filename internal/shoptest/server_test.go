package shoptest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func signIn(t *testing.T, s *Server) (string, *http.Cookie) {
	t.Helper()
	s.AddUser("ann", "ann@example.com", "secret1", domain.RoleCustomer)
	rec := do(t, s, http.MethodPost, "/users/signin", "", domain.SignInRequest{Email: "ann@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NoError(t, resp.Validate())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, RefreshCookie, cookies[0].Name)
	return resp.AccessToken, cookies[0]
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) *domain.Cart {
	t.Helper()
	var c domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	require.NoError(t, c.Validate())
	return &c
}

func TestSignInWrongPassword(t *testing.T) {
	s := New()
	s.AddUser("ann", "ann@example.com", "secret1", domain.RoleCustomer)
	rec := do(t, s, http.MethodPost, "/users/signin", "", domain.SignInRequest{Email: "ann@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignUpConflict(t *testing.T) {
	s := New()
	req := domain.SignUpRequest{Username: "ann", Email: "ann@example.com", Password: "secret1"}
	assert.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/users/signup", "", req).Code)
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/users/signup", "", req).Code)
}

func TestCartRequiresToken(t *testing.T) {
	s := New()
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/cart", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/cart", "made-up", nil).Code)
}

func TestAddMergesSameVariant(t *testing.T) {
	s := New()
	token, _ := signIn(t, s)

	add := domain.AddItemRequest{ProductID: "tee-classic", Quantity: 1, Size: "M", Color: "black"}
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/cart", token, add).Code)
	rec := do(t, s, http.MethodPost, "/cart", token, add)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeCart(t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)

	add.Size = "L"
	c = decodeCart(t, do(t, s, http.MethodPost, "/cart", token, add))
	assert.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Totals().ItemCount)
}

func TestAddRejectsBadVariantAndStock(t *testing.T) {
	s := New()
	token, _ := signIn(t, s)

	rec := do(t, s, http.MethodPost, "/cart", token, domain.AddItemRequest{ProductID: "tee-classic", Quantity: 1, Size: "XXS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodPost, "/cart", token, domain.AddItemRequest{ProductID: "poster-dunes", Quantity: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Insufficient stock")
	rec = do(t, s, http.MethodPost, "/cart", token, domain.AddItemRequest{ProductID: "missing", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRemoveClear(t *testing.T) {
	s := New()
	token, _ := signIn(t, s)
	do(t, s, http.MethodPost, "/cart", token, domain.AddItemRequest{ProductID: "mug-enamel", Quantity: 1})
	do(t, s, http.MethodPost, "/cart", token, domain.AddItemRequest{ProductID: "ebook-go", Quantity: 1})

	c := decodeCart(t, do(t, s, http.MethodPut, "/cart/mug-enamel", token, domain.UpdateItemRequest{Quantity: 4}))
	assert.Equal(t, 5, c.Totals().ItemCount)

	c = decodeCart(t, do(t, s, http.MethodDelete, "/cart/mug-enamel", token, nil))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "ebook-go", c.Items[0].Product.ID)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/cart/mug-enamel", token, nil).Code)

	c = decodeCart(t, do(t, s, http.MethodDelete, "/cart/clear", token, nil))
	assert.True(t, c.Empty())
}

func TestExpiredTokenAndRefresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithTokenTTL(time.Minute), WithClock(func() time.Time { return now }))
	token, cookie := signIn(t, s)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/users/me", token, nil).Code)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/users/me", token, nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/users/refresh", strings.NewReader("{}"))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Nil(t, resp.User)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/users/me", resp.AccessToken, nil).Code)

	s.RevokeRefreshTokens()
	req = httptest.NewRequest(http.MethodPost, "/users/refresh", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutIdempotencyAndOrders(t *testing.T) {
	s := New(WithCheckoutURL("https://pay.test/"))
	token, _ := signIn(t, s)

	rec := do(t, s, http.MethodPost, "/checkout/create-session", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")

	do(t, s, http.MethodPost, "/cart", token, domain.AddItemRequest{ProductID: "ebook-go", Quantity: 2})
	checkout := func() string {
		req := httptest.NewRequest(http.MethodPost, "/checkout/create-session", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "k1")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var cs domain.CheckoutSession
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&cs))
		require.NoError(t, cs.Validate())
		return cs.URL
	}
	first := checkout()
	assert.True(t, strings.HasPrefix(first, "https://pay.test/pay/"))
	assert.Equal(t, first, checkout())

	rec = do(t, s, http.MethodGet, "/orders/user", token, nil)
	var orders struct{ Orders []domain.Order }
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&orders))
	require.Len(t, orders.Orders, 1)
	o := orders.Orders[0]
	assert.True(t, o.IsDigital)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, "19.98", o.TotalAmount.StringFixed(2))

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/orders/"+o.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/orders/nope", token, nil).Code)
}

func TestProductsSearch(t *testing.T) {
	s := New()
	rec := do(t, s, http.MethodGet, "/products?search=MUG", "", nil)
	var resp struct{ Products []domain.Product }
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "mug-enamel", resp.Products[0].ID)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/products/none", "", nil).Code)
}

func TestFailNextAndCount(t *testing.T) {
	s := New()
	s.FailNext(http.MethodGet, "/products", http.StatusServiceUnavailable, "maintenance")
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/products", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/products", "", nil).Code)
	assert.Equal(t, 2, s.Count(http.MethodGet, "/products"))
	assert.Equal(t, 2, s.TotalRequests())
}

func TestMountedUnderPrefix(t *testing.T) {
	s := New()
	root := chi.NewRouter()
	root.Mount("/api", s)
	s.FailNext(http.MethodGet, "/products/ebook-go", http.StatusTeapot, "short and stout")

	assert.Equal(t, http.StatusTeapot, do(t, root, http.MethodGet, "/api/products/ebook-go", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, root, http.MethodGet, "/api/products/ebook-go", "", nil).Code)
	assert.Equal(t, 2, s.Count(http.MethodGet, "/products/ebook-go"))
}
