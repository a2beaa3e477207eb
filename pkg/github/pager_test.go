package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testPagerConfig returns a config with instant, recorded sleeps and a
// fixed clock, so the waiting branches run deterministically.
func testPagerConfig(now time.Time, sleeps *[]time.Duration) *PagerConfig {
	return &PagerConfig{
		Logger: discardLogger(),
		Sleep: func(d time.Duration) {
			*sleeps = append(*sleeps, d)
		},
		Now: func() time.Time { return now },
	}
}

func repoJSON(owner, name string) string {
	return fmt.Sprintf(`{"name":%q,"owner":{"login":%q},"clone_url":"https://github.com/%s/%s.git"}`,
		name, owner, owner, name)
}

func newPagerTestClient(t *testing.T, handler http.Handler, cfg *PagerConfig) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClientWithHTTPClient(server.Client(), server.URL)
	if err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	return client.WithConfig(cfg), server
}

func TestRepoPagerFollowsNextLinks(t *testing.T) {
	var sleeps []time.Duration
	cfg := testPagerConfig(time.Now(), &sleeps)

	var serverURL string
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/user/repos?page=2>; rel="next"`, serverURL))
			fmt.Fprintf(w, "[%s]", repoJSON("alice", "one"))
		case "2":
			w.Header().Set("Link", fmt.Sprintf(`<%s/user/repos?page=3>; rel="next"`, serverURL))
			fmt.Fprintf(w, "[%s]", repoJSON("alice", "two"))
		case "3":
			fmt.Fprintf(w, "[%s]", repoJSON("bob", "three"))
		default:
			t.Errorf("unexpected page %q requested", page)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client, server := newPagerTestClient(t, handler, cfg)
	serverURL = server.URL

	pager := client.Repos()
	var names []string
	pages := 0
	for pager.Next(context.Background()) {
		pages++
		for _, repo := range pager.Page() {
			names = append(names, repo.Owner+"/"+repo.Name)
		}
	}

	if pages != 3 {
		t.Errorf("emitted %d pages, want 3", pages)
	}
	if pager.End() != EndOfList {
		t.Errorf("End() = %v, want EndOfList", pager.End())
	}
	if pager.Err() != nil {
		t.Errorf("Err() = %v, want nil", pager.Err())
	}
	want := []string{"alice/one", "alice/two", "bob/three"}
	if len(names) != len(want) {
		t.Fatalf("got repos %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("repo %d = %q, want %q", i, names[i], want[i])
		}
	}
	if requests != 3 {
		t.Errorf("server saw %d requests, want 3", requests)
	}
	if len(sleeps) != 0 {
		t.Errorf("unexpected sleeps: %v", sleeps)
	}
}

func TestRepoPagerWaitsOutRateLimit(t *testing.T) {
	base := time.Now().Truncate(time.Second)
	reset := base.Add(5 * time.Second)

	var sleeps []time.Duration
	cfg := testPagerConfig(base, &sleeps)

	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if requests == 1 {
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
			return
		}
		fmt.Fprintf(w, "[%s]", repoJSON("alice", "one"))
	})

	client, _ := newPagerTestClient(t, handler, cfg)

	pager := client.Repos()
	if !pager.Next(context.Background()) {
		t.Fatalf("Next() = false after rate limit pause, want page")
	}
	if len(pager.Page()) != 1 || pager.Page()[0].Name != "one" {
		t.Errorf("page after rate limit pause = %+v, want repo one", pager.Page())
	}
	if pager.Next(context.Background()) {
		t.Error("expected listing to be exhausted after one page")
	}
	if pager.End() != EndOfList {
		t.Errorf("End() = %v, want EndOfList", pager.End())
	}

	// reset - now + 10s buffer = 15s, slept in full before the retry.
	if len(sleeps) != 1 {
		t.Fatalf("slept %d times (%v), want once", len(sleeps), sleeps)
	}
	if sleeps[0] != 15*time.Second {
		t.Errorf("slept %v, want 15s", sleeps[0])
	}
	if requests != 2 {
		t.Errorf("server saw %d requests, want the same URL retried once", requests)
	}
}

func TestRepoPagerWaitsOutSecondaryRateLimit(t *testing.T) {
	var sleeps []time.Duration
	cfg := testPagerConfig(time.Now(), &sleeps)

	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if requests == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"You have exceeded a secondary rate limit","documentation_url":"https://docs.github.com/en/rest/overview/resources-in-the-rest-api#secondary-rate-limits"}`)
			return
		}
		fmt.Fprintf(w, "[%s]", repoJSON("alice", "one"))
	})

	client, _ := newPagerTestClient(t, handler, cfg)

	pager := client.Repos()
	if !pager.Next(context.Background()) {
		t.Fatal("Next() = false after secondary rate limit pause, want page")
	}
	if len(pager.Page()) != 1 || pager.Page()[0].Name != "one" {
		t.Errorf("page after secondary rate limit pause = %+v, want repo one", pager.Page())
	}

	// The advertised Retry-After is slept exactly once before the retry.
	if len(sleeps) != 1 {
		t.Fatalf("slept %d times (%v), want once", len(sleeps), sleeps)
	}
	if sleeps[0] != 7*time.Second {
		t.Errorf("slept %v, want the advertised 7s", sleeps[0])
	}
	if requests != 2 {
		t.Errorf("server saw %d requests, want the same URL retried once", requests)
	}
}

func TestRepoPagerStopsOnClientError(t *testing.T) {
	var sleeps []time.Duration
	cfg := testPagerConfig(time.Now(), &sleeps)

	var serverURL string
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if requests == 1 {
			w.Header().Set("Link", fmt.Sprintf(`<%s/user/repos?page=2>; rel="next"`, serverURL))
			fmt.Fprintf(w, "[%s]", repoJSON("alice", "one"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	client, server := newPagerTestClient(t, handler, cfg)
	serverURL = server.URL

	pager := client.Repos()
	pages := 0
	for pager.Next(context.Background()) {
		pages++
	}

	if pages != 1 {
		t.Errorf("emitted %d pages before the client error, want 1", pages)
	}
	if pager.End() != EndClientError {
		t.Errorf("End() = %v, want EndClientError", pager.End())
	}
	if pager.Err() != nil {
		t.Errorf("Err() = %v, want nil in best-effort mode", pager.Err())
	}
	if len(sleeps) != 0 {
		t.Errorf("unexpected sleeps on client error: %v", sleeps)
	}
}

func TestRepoPagerStrictSurfacesClientError(t *testing.T) {
	var sleeps []time.Duration
	cfg := testPagerConfig(time.Now(), &sleeps)
	cfg.Strict = true

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	client, _ := newPagerTestClient(t, handler, cfg)

	pager := client.Repos()
	if pager.Next(context.Background()) {
		t.Fatal("Next() = true, want immediate termination")
	}
	err := pager.Err()
	if err == nil {
		t.Fatal("Err() = nil in strict mode, want client error")
	}
	apiErr, ok := err.(*Error)
	if !ok || apiErr.Type != ErrorTypeClient {
		t.Errorf("Err() = %v, want *Error of type client", err)
	}
}

func TestRepoPagerRetriesServerErrors(t *testing.T) {
	var sleeps []time.Duration
	cfg := testPagerConfig(time.Now(), &sleeps)

	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if requests <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"boom"}`)
			return
		}
		fmt.Fprintf(w, "[%s]", repoJSON("alice", "one"))
	})

	client, _ := newPagerTestClient(t, handler, cfg)

	pager := client.Repos()
	if !pager.Next(context.Background()) {
		t.Fatal("Next() = false, want page after retries")
	}
	if requests != 3 {
		t.Errorf("server saw %d requests, want 3", requests)
	}
	if len(sleeps) != 2 {
		t.Fatalf("slept %d times, want 2", len(sleeps))
	}
	for _, d := range sleeps {
		if d != 5*time.Second {
			t.Errorf("slept %v between server retries, want 5s", d)
		}
	}
}

func TestRepoPagerBoundedServerRetries(t *testing.T) {
	var sleeps []time.Duration
	cfg := testPagerConfig(time.Now(), &sleeps)
	cfg.MaxServerRetries = 2

	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	})

	client, _ := newPagerTestClient(t, handler, cfg)

	pager := client.Repos()
	if pager.Next(context.Background()) {
		t.Fatal("Next() = true, want termination after retry budget")
	}
	if requests != 3 {
		t.Errorf("server saw %d requests, want initial attempt plus 2 retries", requests)
	}
	if pager.End() != EndTransportError {
		t.Errorf("End() = %v, want EndTransportError", pager.End())
	}
}

func TestRepoPagerStopsOnTransportError(t *testing.T) {
	var sleeps []time.Duration
	cfg := testPagerConfig(time.Now(), &sleeps)

	server := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClientWithHTTPClient(server.Client(), server.URL)
	if err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	server.Close() // Every request now fails at the connection level.

	pager := client.WithConfig(cfg).Repos()
	if pager.Next(context.Background()) {
		t.Fatal("Next() = true against closed server")
	}
	if pager.End() != EndTransportError {
		t.Errorf("End() = %v, want EndTransportError", pager.End())
	}
	if pager.Err() != nil {
		t.Errorf("Err() = %v, want nil in best-effort mode", pager.Err())
	}
}

func TestRepoPagerStrictSurfacesTransportError(t *testing.T) {
	var sleeps []time.Duration
	cfg := testPagerConfig(time.Now(), &sleeps)
	cfg.Strict = true

	server := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClientWithHTTPClient(server.Client(), server.URL)
	if err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	server.Close() // Every request now fails at the connection level.

	pager := client.WithConfig(cfg).Repos()
	if pager.Next(context.Background()) {
		t.Fatal("Next() = true against closed server")
	}
	err = pager.Err()
	if err == nil {
		t.Fatal("Err() = nil in strict mode, want transport error")
	}
	apiErr, ok := err.(*Error)
	if !ok || apiErr.Type != ErrorTypeTransport {
		t.Errorf("Err() = %v, want *Error of type transport", err)
	}
	if pager.End() != EndTransportError {
		t.Errorf("End() = %v, want EndTransportError", pager.End())
	}
}
