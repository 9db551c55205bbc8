package shoptest

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

type ctxKey struct{}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// authenticate resolves the bearer token to a user id.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		s.mu.Lock()
		at, found := s.tokens[token]
		if found && !s.now().Before(at.expires) {
			delete(s.tokens, token)
			found = false
		}
		s.mu.Unlock()
		if !found {
			writeError(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, at.userID)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// issueLocked creates an access token and sets a fresh refresh cookie.
func (s *Server) issueLocked(w http.ResponseWriter, userID string) string {
	token := uuid.NewString()
	s.tokens[token] = accessToken{userID: userID, expires: s.now().Add(s.tokenTTL)}
	refresh := uuid.NewString()
	s.refresh[refresh] = userID
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    refresh,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   7 * 24 * 3600,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

func (s *Server) accountByIDLocked(id string) *account {
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a
		}
	}
	return nil
}

// --- users ---

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[strings.ToLower(req.Email)]
	if a == nil || a.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	token := s.issueLocked(w, a.user.ID)
	writeJSON(w, http.StatusOK, domain.AuthResponse{AccessToken: token, User: &a.user})
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[strings.ToLower(req.Email)]; exists {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}
	u := s.addUserLocked(req.Username, req.Email, req.Password, domain.RoleCustomer)
	token := s.issueLocked(w, u.ID)
	writeJSON(w, http.StatusCreated, domain.AuthResponse{AccessToken: token, User: &u})
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "No refresh token")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refresh[c.Value]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = accessToken{userID: id, expires: s.now().Add(s.tokenTTL)}
	writeJSON(w, http.StatusOK, domain.AuthResponse{AccessToken: token})
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByIDLocked(userID(r))
	if a == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": a.user})
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByIDLocked(userID(r))
	if a == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	email := strings.ToLower(req.Email)
	if other, taken := s.accounts[email]; taken && other != a {
		writeError(w, http.StatusConflict, "Email already in use")
		return
	}
	delete(s.accounts, a.user.Email)
	a.user.Username = req.Username
	a.user.Email = email
	a.user.ProfilePicture = req.ProfilePicture
	a.user.Address = req.Address
	s.accounts[email] = a
	writeJSON(w, http.StatusOK, map[string]any{"user": a.user})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByIDLocked(userID(r))
	if a == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if a.password != req.CurrentPassword {
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.password = req.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// --- catalog ---

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if q == "" || strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}

func (s *Server) productLocked(id string) *domain.Product {
	i := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == id })
	if i < 0 {
		return nil
	}
	return &s.products[i]
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.productLocked(chi.URLParam(r, "id"))
	if p == nil {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

// --- cart ---

func (s *Server) cartLocked(userID string) *domain.Cart {
	c, ok := s.carts[userID]
	if !ok {
		now := s.now()
		c = &domain.Cart{ID: uuid.NewString(), UserRef: userID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}
		s.carts[userID] = c
	}
	return c
}

func (s *Server) saveCartLocked(userID string, c *domain.Cart) *domain.Cart {
	c.UpdatedAt = s.now()
	s.carts[userID] = c
	return c
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.cartLocked(userID(r)))
}

// checkVariantLocked validates a requested quantity of a product variant
// against the catalog.
func (s *Server) checkVariantLocked(w http.ResponseWriter, productID string, quantity int, size, color string) (*domain.Product, bool) {
	p := s.productLocked(productID)
	if p == nil {
		writeError(w, http.StatusNotFound, "Product not found")
		return nil, false
	}
	if !p.AcceptsVariant(size, color) {
		writeError(w, http.StatusBadRequest, "Invalid size or color")
		return nil, false
	}
	if p.Stock != nil && *p.Stock < quantity {
		writeError(w, http.StatusBadRequest, "Insufficient stock")
		return nil, false
	}
	return p, true
}

// addToCart merges into an existing line of the same variant.
func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.AddItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	c := s.cartLocked(uid).Clone()
	key := domain.VariantKey{ProductID: req.ProductID, Size: req.Size, Color: req.Color}
	quantity := req.Quantity
	idx := slices.IndexFunc(c.Items, func(item domain.CartItem) bool { return item.Key() == key })
	if idx >= 0 {
		quantity += c.Items[idx].Quantity
	}
	p, ok := s.checkVariantLocked(w, req.ProductID, quantity, req.Size, req.Color)
	if !ok {
		return
	}
	if idx >= 0 {
		c.Items[idx].Quantity = quantity
	} else {
		c.Items = append(c.Items, domain.CartItem{Product: p.Ref(), Quantity: quantity, Size: req.Size, Color: req.Color})
	}
	writeJSON(w, http.StatusOK, s.saveCartLocked(uid, c))
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	productID := chi.URLParam(r, "productId")
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	c := s.cartLocked(uid)
	if len(c.Lines(productID)) == 0 {
		writeError(w, http.StatusNotFound, "Item not found in cart")
		return
	}
	if _, ok := s.checkVariantLocked(w, productID, req.Quantity, req.Size, req.Color); !ok {
		return
	}
	key := domain.VariantKey{ProductID: productID, Size: req.Size, Color: req.Color}
	writeJSON(w, http.StatusOK, s.saveCartLocked(uid, c.WithQuantity(key, req.Quantity)))
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	c := s.cartLocked(uid)
	if len(c.Lines(productID)) == 0 {
		writeError(w, http.StatusNotFound, "Item not found in cart")
		return
	}
	writeJSON(w, http.StatusOK, s.saveCartLocked(uid, c.WithoutProduct(productID)))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	writeJSON(w, http.StatusOK, s.saveCartLocked(uid, s.cartLocked(uid).Emptied()))
}

// --- checkout and orders ---

// createCheckoutSession records a pending order for the cart and returns
// the payment page URL. A repeated idempotency key returns the first URL.
func (s *Server) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	s.mu.Lock()
	defer s.mu.Unlock()
	if url, seen := s.sessions[key]; key != "" && seen {
		writeJSON(w, http.StatusOK, domain.CheckoutSession{URL: url})
		return
	}
	uid := userID(r)
	c := s.cartLocked(uid)
	if c.Empty() {
		writeError(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	now := s.now()
	order := domain.Order{
		ID:          uuid.NewString(),
		User:        uid,
		Status:      domain.OrderPending,
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	digital := true
	for _, item := range c.Items {
		order.Items = append(order.Items, domain.OrderItem{Product: item.Product, Quantity: item.Quantity, Price: item.Product.Price})
		order.TotalAmount = order.TotalAmount.Add(item.LineTotal())
		if p := s.productLocked(item.Product.ID); p == nil || p.Type != domain.ProductDigital {
			digital = false
		}
	}
	order.IsDigital = digital
	sessionID := uuid.NewString()
	order.PaymentInfo = &domain.PaymentInfo{Method: "card", Reference: sessionID}
	s.orders[uid] = append([]domain.Order{order}, s.orders[uid]...)

	url := s.checkoutURL + "/pay/" + sessionID
	if key != "" {
		s.sessions[key] = url
	}
	writeJSON(w, http.StatusOK, domain.CheckoutSession{URL: url})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.orders[userID(r)]
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders[userID(r)] {
		if o.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"order": o})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Order not found")
}
