package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/shopdrop/internal/config"
	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/internal/session"
	"github.com/naveenspark/shopdrop/internal/shoptest"
	"github.com/naveenspark/shopdrop/internal/store/memory"
	"github.com/naveenspark/shopdrop/pkg/client"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

type navRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (n *navRecorder) Navigate(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return nil
}

func testConfig(t *testing.T, apiURL string) config.Config {
	return config.Config{
		APIURL:      apiURL,
		DataDir:     t.TempDir(),
		HTTPTimeout: 5 * time.Second,
		LogLevel:    slog.LevelDebug,
	}
}

func newTestApp(t *testing.T) (*App, *shoptest.Server, *navRecorder) {
	t.Helper()
	srv, base := shoptest.NewTestServer(t)
	srv.AddUser("ann", "ann@example.com", "secret1", domain.RoleCustomer)
	nav := &navRecorder{}
	a, err := New(context.Background(), testConfig(t, base), Options{
		Backend:   memory.New(),
		Navigator: nav,
		LogWriter: io.Discard,
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() }) //nolint:errcheck
	return a, srv, nav
}

func signIn(t *testing.T, a *App) *domain.User {
	t.Helper()
	u, err := a.SignIn(context.Background(), domain.SignInRequest{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	return u
}

func drain(ch <-chan notify.Notification) []notify.Notification {
	var out []notify.Notification
	for {
		select {
		case n := <-ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestSignInAndShop(t *testing.T) {
	a, srv, _ := newTestApp(t)
	ctx := context.Background()
	assert.False(t, a.Session.Authenticated())

	u := signIn(t, a)
	assert.Equal(t, "ann", u.Username)
	assert.True(t, a.Session.Authenticated())
	assert.NotEmpty(t, a.Session.AccessToken())

	_, err := a.Cart.Add(ctx, "tee-classic", 2, "M", "black")
	require.NoError(t, err)
	_, err = a.Cart.Add(ctx, "mug-enamel", 1, "", "")
	require.NoError(t, err)

	totals := a.Cart.Totals()
	assert.Equal(t, 3, totals.ItemCount)
	assert.Equal(t, "62.50", totals.Subtotal.StringFixed(2))

	server := srv.CartOf(u.ID)
	assert.Equal(t, server.Totals().ItemCount, totals.ItemCount)
}

func TestExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	a, srv, _ := newTestApp(t)
	ctx := context.Background()
	signIn(t, a)
	before := a.Session.AccessToken()

	srv.ExpireAccessTokens()
	_, err := a.Cart.Fetch(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, srv.Count(http.MethodPost, "/users/refresh"))
	assert.Equal(t, 2, srv.Count(http.MethodGet, "/cart"))
	assert.NotEqual(t, before, a.Session.AccessToken())
	assert.True(t, a.Session.Authenticated())
}

func TestFailedRefreshSignsOut(t *testing.T) {
	a, srv, _ := newTestApp(t)
	ctx := context.Background()
	signIn(t, a)
	_, err := a.Cart.Add(ctx, "ebook-go", 1, "", "")
	require.NoError(t, err)

	srv.ExpireAccessTokens()
	srv.RevokeRefreshTokens()
	_, err = a.Cart.Fetch(ctx)
	require.Error(t, err)
	assert.True(t, client.IsAuthFailed(err))

	select {
	case <-a.SignedOut():
	default:
		t.Fatal("SignedOut did not fire")
	}
	assert.False(t, a.Session.Authenticated())
	assert.Empty(t, a.Session.AccessToken())
	assert.Nil(t, a.Cart.Cart())
	assert.Equal(t, 1, srv.Count(http.MethodPost, "/users/refresh"))
}

func TestLogoutStopsNetworkTraffic(t *testing.T) {
	a, srv, _ := newTestApp(t)
	ctx := context.Background()
	signIn(t, a)
	_, err := a.Cart.Fetch(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Logout())
	before := srv.TotalRequests()

	_, err = a.Cart.Fetch(ctx)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	_, err = a.Cart.Remove(ctx, "tee-classic")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	_, err = a.Checkout.Start(ctx)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Equal(t, before, srv.TotalRequests())
}

func TestRemoveRollsBackOnServerError(t *testing.T) {
	a, srv, _ := newTestApp(t)
	ctx := context.Background()
	signIn(t, a)
	_, err := a.Cart.Add(ctx, "tee-classic", 1, "S", "white")
	require.NoError(t, err)
	before := a.Cart.Cart()
	drain(a.Notices.C())

	srv.FailNext(http.MethodDelete, "/cart/tee-classic", http.StatusInternalServerError, "db down")
	_, err = a.Cart.Remove(ctx, "tee-classic")
	require.Error(t, err)
	assert.Equal(t, before, a.Cart.Cart())

	notes := drain(a.Notices.C())
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)
	assert.Equal(t, "Failed to remove item from cart", notes[0].Title)
}

func TestCheckoutNavigatesAndCreatesOrder(t *testing.T) {
	a, srv, nav := newTestApp(t)
	ctx := context.Background()
	u := signIn(t, a)
	_, err := a.Cart.Add(ctx, "poster-dunes", 1, "", "")
	require.NoError(t, err)

	url, err := a.Checkout.Start(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://checkout.shoptest.invalid/pay/"))
	assert.Equal(t, []string{url}, nav.urls)

	orders, err := a.Client.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderPending, orders[0].Status)
	assert.Len(t, srv.Orders(u.ID), 1)
	assert.Equal(t, 1, a.Cart.Totals().ItemCount, "checkout leaves the cart alone")
}

func TestProfileUpdateKeepsSessionUser(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()
	signIn(t, a)

	u, err := a.UpdateProfile(ctx, domain.UpdateProfileRequest{Username: "annie", Email: "ann@example.com", Address: "1 Main St"})
	require.NoError(t, err)
	assert.Equal(t, "annie", u.Username)
	assert.Equal(t, "annie", a.Session.User().Username)

	u, err = a.RefreshProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", u.Address)
}

func TestSessionSurvivesRestart(t *testing.T) {
	srv, base := shoptest.NewTestServer(t)
	srv.AddUser("ann", "ann@example.com", "secret1", domain.RoleCustomer)
	cfg := testConfig(t, base)
	ctx := context.Background()

	a, err := New(ctx, cfg, Options{LogWriter: io.Discard, Navigator: &navRecorder{}})
	require.NoError(t, err)
	signIn(t, a)
	require.NoError(t, a.Close())

	srv.ExpireAccessTokens()
	b, err := New(ctx, cfg, Options{LogWriter: io.Discard, Navigator: &navRecorder{}})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck

	require.True(t, b.Session.Authenticated())
	_, err = b.Cart.Fetch(ctx)
	require.NoError(t, err, "persisted refresh cookie renews the expired token")
	assert.Equal(t, 1, srv.Count(http.MethodPost, "/users/refresh"))
}
