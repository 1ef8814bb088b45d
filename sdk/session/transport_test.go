package session

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"
)

func newTestJar(t *testing.T, serverURL, csrfValue string) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	if csrfValue != "" {
		u, errParse := url.Parse(serverURL)
		if errParse != nil {
			t.Fatalf("parse url: %v", errParse)
		}
		jar.SetCookies(u, []*http.Cookie{{Name: CSRFCookieName, Value: csrfValue}})
	}
	return jar
}

func TestTransportCSRFHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		cookie     string
		wantHeader string
	}{
		{"GET never carries the header", http.MethodGet, "tok", ""},
		{"POST with cookie", http.MethodPost, "tok", "tok"},
		{"PUT with cookie", http.MethodPut, "tok", "tok"},
		{"PATCH with cookie", http.MethodPatch, "tok", "tok"},
		{"DELETE with cookie", http.MethodDelete, "tok", "tok"},
		{"POST without cookie omits the header", http.MethodPost, "", ""},
		{"POST URL-decodes the cookie", http.MethodPost, "a%20b", "a b"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotHeader string
			var present bool
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				present = len(r.Header.Values(CSRFHeaderName)) > 0
				gotHeader = r.Header.Get(CSRFHeaderName)
			}))
			defer server.Close()

			store := NewMemoryStore()
			_ = store.Write("at", "rt")
			client := &http.Client{Transport: &Transport{
				Base:  server.Client().Transport,
				Store: store,
				Jar:   newTestJar(t, server.URL, tt.cookie),
			}}

			req, err := http.NewRequest(tt.method, server.URL+"/api/v1/tasks", nil)
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			drain(resp)

			if tt.wantHeader == "" && present {
				t.Errorf("unexpected %s header %q", CSRFHeaderName, gotHeader)
			}
			if gotHeader != tt.wantHeader {
				t.Errorf("%s = %q, want %q", CSRFHeaderName, gotHeader, tt.wantHeader)
			}
		})
	}
}

func TestTransportDecoration(t *testing.T) {
	t.Parallel()

	var gotAuth, gotRequestID, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer server.Close()

	store := NewMemoryStore()
	_ = store.Write("tok-123", "rt-123")
	client := &http.Client{Transport: &Transport{
		Base:  server.Client().Transport,
		Store: store,
	}}

	resp, err := client.Post(server.URL+"/api/v1/tasks", "", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	drain(resp)

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-123")
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID not attached")
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
}

func TestTransportNoTokenNoAuthHeader(t *testing.T) {
	t.Parallel()

	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
	}))
	defer server.Close()

	client := &http.Client{Transport: &Transport{
		Base:  server.Client().Transport,
		Store: NewMemoryStore(),
	}}
	resp, err := client.Get(server.URL + "/api/v1/tasks")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	drain(resp)
	if sawAuth {
		t.Error("Authorization header attached with no stored credentials")
	}
}

// refreshScenario wires a store, session, coordinator, and transport against
// a test server, mimicking the production client assembly.
func refreshScenario(t *testing.T, handler http.Handler) (*http.Client, *MemoryStore, *Session, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := NewMemoryStore()
	_ = store.Write("at-old", "rt-old")
	sess := NewSession(store, nil)
	coordinator := NewCoordinator(server.URL+"/api/v1/auth/refresh", server.Client(), store, sess, nil)
	client := &http.Client{Transport: &Transport{
		Base:        server.Client().Transport,
		Store:       store,
		Coordinator: coordinator,
	}}
	return client, store, sess, server
}

func TestTransportRefreshAndRetryConcurrent(t *testing.T) {
	t.Parallel()

	// Three simultaneous resource calls with an expired token: the server
	// holds every 401 until all three have arrived, so all of them race
	// into the refresh flow together.
	var refreshCalls atomic.Int32
	var arrived sync.WaitGroup
	arrived.Add(3)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken != "rt-old" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("refresh call carried an Authorization header")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "at-new",
			"refresh_token": "rt-new",
		})
	})
	resource := func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer at-old":
			arrived.Done()
			arrived.Wait()
			w.WriteHeader(http.StatusUnauthorized)
		case "Bearer at-new":
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}
	mux.HandleFunc("/api/v1/tasks", resource)
	mux.HandleFunc("/api/v1/skills", resource)
	mux.HandleFunc("/api/v1/reports/dashboard", resource)

	client, store, sess, server := refreshScenario(t, mux)

	var wg sync.WaitGroup
	paths := []string{"/api/v1/tasks", "/api/v1/reports/dashboard", "/api/v1/skills"}
	statuses := make([]int, len(paths))
	errs := make([]error, len(paths))
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			resp, err := client.Get(server.URL + p)
			if err != nil {
				errs[i] = err
				return
			}
			statuses[i] = resp.StatusCode
			drain(resp)
		}(i, p)
	}
	wg.Wait()

	if got := refreshCalls.Load(); got != 1 {
		t.Errorf("refresh endpoint called %d times, want exactly 1", got)
	}
	for i := range paths {
		if errs[i] != nil {
			t.Errorf("%s: unexpected error: %v", paths[i], errs[i])
			continue
		}
		if statuses[i] != http.StatusOK {
			t.Errorf("%s: status %d, want 200; caller must never observe the 401", paths[i], statuses[i])
		}
	}
	if pair := store.Read(); pair.AccessToken != "at-new" {
		t.Errorf("store holds %q after refresh, want at-new", pair.AccessToken)
	}
	if !sess.Authenticated() {
		t.Error("session lost authentication on the success path")
	}
}

func TestTransportSingleRetryRule(t *testing.T) {
	t.Parallel()

	var refreshCalls, resourceCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "at-new",
			"refresh_token": "rt-new",
		})
	})
	mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, _, _, server := refreshScenario(t, mux)

	resp, err := client.Get(server.URL + "/api/v1/tasks")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	drain(resp)

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status %d, want the retried 401 surfaced to the caller", resp.StatusCode)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Errorf("refresh endpoint called %d times, want exactly 1 (no second cycle)", got)
	}
	if got := resourceCalls.Load(); got != 2 {
		t.Errorf("resource called %d times, want 2 (original + one retry)", got)
	}
}

func TestTransportExcludedEndpointsNeverRefresh(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"/api/v1/auth/login", "/api/v1/auth/register", "/api/v1/auth/refresh"} {
		p := p
		t.Run(strings.TrimPrefix(p, "/api/v1/auth/"), func(t *testing.T) {
			t.Parallel()

			var refreshCalls atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
				refreshCalls.Add(1)
				w.WriteHeader(http.StatusUnauthorized)
			})
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})

			client, _, _, server := refreshScenario(t, mux)

			resp, err := client.Post(server.URL+p, "application/json", bytes.NewReader([]byte(`{}`)))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			drain(resp)

			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status %d, want the raw 401", resp.StatusCode)
			}
			wantCalls := int32(0)
			if p == "/api/v1/auth/refresh" {
				// The request itself hit the refresh endpoint once.
				wantCalls = 1
			}
			if got := refreshCalls.Load(); got != wantCalls {
				t.Errorf("refresh endpoint called %d times, want %d", got, wantCalls)
			}
		})
	}
}

func TestTransportNon401PassesThrough(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"message":"maintenance"}`)
	})

	client, _, _, server := refreshScenario(t, mux)

	resp, err := client.Get(server.URL + "/api/v1/tasks")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503 unchanged", resp.StatusCode)
	}
	if refreshCalls.Load() != 0 {
		t.Error("non-401 failure triggered a refresh")
	}
}

func TestTransportTokenSourceBypassesRefresh(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	store := NewMemoryStore()
	sess := NewSession(store, nil)
	coordinator := NewCoordinator(server.URL+"/api/v1/auth/refresh", server.Client(), store, sess, nil)
	client := &http.Client{Transport: &Transport{
		Base:        server.Client().Transport,
		Store:       store,
		Coordinator: coordinator,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "machine-token"}),
	}}

	resp, err := client.Get(server.URL + "/api/v1/tasks")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	drain(resp)

	if gotAuth != "Bearer machine-token" {
		t.Errorf("Authorization = %q, want the token source bearer", gotAuth)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status %d, want the raw 401", resp.StatusCode)
	}
	if refreshCalls.Load() != 0 {
		t.Error("machine-account client entered the session refresh flow")
	}
}
