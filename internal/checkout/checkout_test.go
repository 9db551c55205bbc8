package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/internal/session"
	"github.com/naveenspark/shopdrop/pkg/client"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

type fakeAPI struct {
	mu   sync.Mutex
	keys []string
	url  string
	err  error
	gate chan struct{}
}

func (f *fakeAPI) CreateCheckoutSession(ctx context.Context, key string) (*domain.CheckoutSession, error) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CheckoutSession{URL: f.url}, nil
}

type signedIn bool

func (s signedIn) Authenticated() bool { return bool(s) }

type navRecorder struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (n *navRecorder) Navigate(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return n.err
}

func collect(got *[]notify.Notification) notify.Notifier {
	var mu sync.Mutex
	return notify.Func(func(n notify.Notification) {
		mu.Lock()
		defer mu.Unlock()
		*got = append(*got, n)
	})
}

func TestStartNavigates(t *testing.T) {
	api := &fakeAPI{url: "https://pay.example.com/s/1"}
	nav := &navRecorder{}
	i := New(api, nav, signedIn(true))

	url, err := i.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/s/1", url)
	assert.Equal(t, []string{"https://pay.example.com/s/1"}, nav.urls)
	require.Len(t, api.keys, 1)
	assert.NotEmpty(t, api.keys[0])
	assert.False(t, i.InProgress())
}

func TestStartFailureDoesNotNavigate(t *testing.T) {
	var notes []notify.Notification
	api := &fakeAPI{err: &client.HTTPError{StatusCode: 400, Message: "Cart is empty"}}
	nav := &navRecorder{}
	i := New(api, nav, signedIn(true), WithNotifier(collect(&notes)))

	_, err := i.Start(context.Background())
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, 400))
	assert.Empty(t, nav.urls)
	require.Len(t, notes, 1)
	assert.Equal(t, "Failed to initiate checkout", notes[0].Title)
	assert.Equal(t, "Cart is empty", notes[0].Description)
}

func TestStartRejectsInvalidURL(t *testing.T) {
	api := &fakeAPI{url: "javascript:alert(1)"}
	nav := &navRecorder{}
	i := New(api, nav, signedIn(true))

	_, err := i.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Empty(t, nav.urls)
}

func TestStartRequiresSession(t *testing.T) {
	api := &fakeAPI{url: "https://pay.example.com"}
	i := New(api, &navRecorder{}, signedIn(false))

	_, err := i.Start(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Empty(t, api.keys)
}

func TestStartWhileInProgress(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{url: "https://pay.example.com", gate: gate}
	i := New(api, &navRecorder{}, signedIn(true))

	var first atomic.Value
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := i.Start(context.Background())
		first.Store(err == nil)
	}()
	require.Eventually(t, i.InProgress, time.Second, time.Millisecond)

	_, err := i.Start(context.Background())
	assert.ErrorIs(t, err, ErrInProgress)

	close(gate)
	<-done
	assert.Equal(t, true, first.Load())
	assert.Len(t, api.keys, 1, "the rejected call never reaches the server")
}

func TestEachAttemptGetsFreshKey(t *testing.T) {
	api := &fakeAPI{err: client.ErrNetwork}
	i := New(api, &navRecorder{}, signedIn(true))

	_, err := i.Start(context.Background())
	require.ErrorIs(t, err, client.ErrNetwork)
	_, err = i.Start(context.Background())
	require.ErrorIs(t, err, client.ErrNetwork)

	require.Len(t, api.keys, 2, "no automatic retry")
	assert.NotEqual(t, api.keys[0], api.keys[1])
}

func TestNavigateFailureReturnsURL(t *testing.T) {
	var notes []notify.Notification
	api := &fakeAPI{url: "https://pay.example.com/s/2"}
	nav := &navRecorder{err: errors.New("no display")}
	i := New(api, nav, signedIn(true), WithNotifier(collect(&notes)))

	url, err := i.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, "https://pay.example.com/s/2", url)
	require.Len(t, notes, 1)
	assert.Equal(t, "https://pay.example.com/s/2", notes[0].Description)
}
