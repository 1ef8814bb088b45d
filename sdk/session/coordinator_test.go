package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waiterCount reports how many callers are parked on the current cycle.
func (c *Coordinator) waiterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// awaitWaiters blocks until n callers are parked, or the deadline passes.
func awaitWaiters(t *testing.T, c *Coordinator, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.waiterCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d parked waiters, have %d", n, c.waiterCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCoordinatorSingleRefreshUnderLoad(t *testing.T) {
	t.Parallel()

	const concurrent = 16
	var refreshCalls atomic.Int32
	var coordinator *Coordinator

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		// Hold the response until every other caller is parked, so the
		// whole burst is funneled into this one cycle.
		deadline := time.Now().Add(5 * time.Second)
		for coordinator.waiterCount() < concurrent-1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken != "rt-old" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "at-new",
			"refresh_token": "rt-new",
		})
	}))
	defer server.Close()

	store := NewMemoryStore()
	if err := store.Write("at-old", "rt-old"); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	sess := NewSession(store, nil)
	coordinator = NewCoordinator(server.URL, server.Client(), store, sess, nil)

	var wg sync.WaitGroup
	tokens := make([]string, concurrent)
	errs := make([]error, concurrent)
	start := make(chan struct{})
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = coordinator.Refresh(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	if got := refreshCalls.Load(); got != 1 {
		t.Errorf("refresh endpoint called %d times, want exactly 1", got)
	}
	for i := 0; i < concurrent; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: unexpected error: %v", i, errs[i])
		}
		if tokens[i] != "at-new" {
			t.Errorf("caller %d: got token %q, want %q", i, tokens[i], "at-new")
		}
	}
	if pair := store.Read(); pair.AccessToken != "at-new" || pair.RefreshToken != "rt-new" {
		t.Errorf("store not updated: %+v", pair)
	}
	if coordinator.waiterCount() != 0 {
		t.Errorf("waiter list not drained: %d left", coordinator.waiterCount())
	}
}

func TestCoordinatorFailureRejectsAllWaiters(t *testing.T) {
	t.Parallel()

	const concurrent = 8
	var coordinator *Coordinator

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline := time.Now().Add(5 * time.Second)
		for coordinator.waiterCount() < concurrent-1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid refresh token"}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	if err := store.Write("at-old", "rt-old"); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	sess := NewSession(store, nil)
	var teardowns atomic.Int32
	sess.OnTeardown(func() { teardowns.Add(1) })
	coordinator = NewCoordinator(server.URL, server.Client(), store, sess, nil)

	var wg sync.WaitGroup
	errs := make([]error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coordinator.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < concurrent; i++ {
		if !errors.Is(errs[i], ErrSessionExpired) {
			t.Errorf("caller %d: got %v, want ErrSessionExpired", i, errs[i])
		}
	}
	if pair := store.Read(); !pair.Empty() {
		t.Errorf("store not cleared after failed refresh: %+v", pair)
	}
	if sess.Authenticated() {
		t.Error("session still authenticated after failed refresh")
	}
	if got := teardowns.Load(); got != 1 {
		t.Errorf("teardown hook fired %d times, want 1", got)
	}
}

func TestCoordinatorNoRefreshTokenSkipsNetwork(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	}))
	defer server.Close()

	store := NewMemoryStore()
	sess := NewSession(store, nil)
	coordinator := NewCoordinator(server.URL, server.Client(), store, sess, nil)

	_, err := coordinator.Refresh(context.Background())
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("got %v, want ErrNoRefreshToken", err)
	}
	if !errors.Is(err, ErrSessionExpired) {
		t.Error("ErrNoRefreshToken should wrap ErrSessionExpired")
	}
	if refreshCalls.Load() != 0 {
		t.Errorf("refresh endpoint called %d times, want 0", refreshCalls.Load())
	}
}

func TestCoordinatorNewCycleAfterCompletion(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "at-" + string(rune('0'+n)),
			"refresh_token": "rt-" + string(rune('0'+n)),
		})
	}))
	defer server.Close()

	store := NewMemoryStore()
	if err := store.Write("at-0", "rt-0"); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	sess := NewSession(store, nil)
	coordinator := NewCoordinator(server.URL, server.Client(), store, sess, nil)

	first, err := coordinator.Refresh(context.Background())
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	second, err := coordinator.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if first == second {
		t.Error("second call should have started a fresh cycle, got the first outcome again")
	}
	if got := refreshCalls.Load(); got != 2 {
		t.Errorf("refresh endpoint called %d times, want 2", got)
	}
}
