package telegram

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"chatwarden/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_DispatchesAndAdvancesOffset(t *testing.T) {
	api, srv := newFakeBotAPI(t)

	var mu sync.Mutex
	polls := 0
	api.on("getUpdates", func(params map[string]any) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls == 1 {
			return http.StatusOK, `{"ok":true,"result":[
				{"update_id":100,"message":{"message_id":1,"from":{"id":5,"first_name":"A"},"chat":{"id":-1,"type":"group"},"date":0,"text":"one"}},
				{"update_id":101,"edited_message":{"message_id":2,"from":{"id":5,"first_name":"A"},"chat":{"id":-1,"type":"group"},"date":0,"text":"two"}},
				{"update_id":102}
			]}`
		}
		return http.StatusOK, `{"ok":true,"result":[]}`
	})

	p := NewPoller(newTestClient(t, srv.URL), PollerOptions{Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got sync.Map
	var wg sync.WaitGroup
	wg.Add(2)
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(_ context.Context, msg moderation.Message) {
			got.Store(msg.Text, msg.ID)
			wg.Done()
		})
	}()

	waitOrFail(t, &wg)
	require.Eventually(t, func() bool { return len(api.callsTo("getUpdates")) >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}

	_, ok := got.Load("one")
	assert.True(t, ok)
	_, ok = got.Load("two")
	assert.True(t, ok)

	calls := api.callsTo("getUpdates")
	assert.Equal(t, float64(0), calls[0].params["offset"])
	assert.Equal(t, float64(103), calls[1].params["offset"])
}

func TestPoller_StopsOnRejectedToken(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.on("getUpdates", func(map[string]any) (int, string) {
		return http.StatusUnauthorized, `{"ok":false,"error_code":401,"description":"Unauthorized"}`
	})
	p := NewPoller(newTestClient(t, srv.URL), PollerOptions{})

	err := p.Run(context.Background(), func(context.Context, moderation.Message) {})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Fatal())
}

func TestPoller_BacksOffOnTransientErrors(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	var mu sync.Mutex
	polls := 0
	api.on("getUpdates", func(map[string]any) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls == 1 {
			return http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":1}}`
		}
		return http.StatusOK, `{"ok":true,"result":[]}`
	})
	p := NewPoller(newTestClient(t, srv.URL), PollerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- p.Run(ctx, func(context.Context, moderation.Message) {}) }()

	require.Eventually(t, func() bool { return len(api.callsTo("getUpdates")) >= 2 }, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	cancel()
	assert.NoError(t, <-done)
}

func TestPoller_HandlerPanicIsContained(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	var mu sync.Mutex
	polls := 0
	api.on("getUpdates", func(map[string]any) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls == 1 {
			return http.StatusOK, `{"ok":true,"result":[{"update_id":1,"message":{"message_id":1,"chat":{"id":-1,"type":"group"},"date":0,"text":"boom"}}]}`
		}
		return http.StatusOK, `{"ok":true,"result":[]}`
	})
	p := NewPoller(newTestClient(t, srv.URL), PollerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(context.Context, moderation.Message) {
			close(handled)
			panic("handler bug")
		})
	}()

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestPoller_Backoff(t *testing.T) {
	p := NewPoller(nil, PollerOptions{MaxBackoff: 10 * time.Second})

	assert.Equal(t, time.Second, p.backoff(1, assert.AnError))
	assert.Equal(t, 4*time.Second, p.backoff(3, assert.AnError))
	assert.Equal(t, 10*time.Second, p.backoff(20, assert.AnError))
	assert.Equal(t, 7*time.Second, p.backoff(1, &APIError{Code: 429, RetryAfter: 7 * time.Second}))
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handlers")
	}
}
