package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher records calls into a shared event log.
type fakeFetcher struct {
	mu     sync.Mutex
	events *[]string
	errs   map[string][]error
	calls  map[string]int
}

func newFakeFetcher(events *[]string) *fakeFetcher {
	return &fakeFetcher{events: events, errs: map[string][]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*types.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.events = append(*f.events, "fetch "+rawURL)
	n := f.calls[rawURL]
	f.calls[rawURL]++
	if errs := f.errs[rawURL]; n < len(errs) && errs[n] != nil {
		return nil, errs[n]
	}
	return &types.Response{URL: rawURL, StatusCode: 200, Body: []byte("<html>ok</html>")}, nil
}

func (f *fakeFetcher) Close() error { return nil }
func (f *fakeFetcher) Type() string { return "fake" }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine.PolitenessDelay = 10 * time.Second
	cfg.Fetcher.MaxRetries = 2
	cfg.Fetcher.RetryDelay = time.Millisecond
	return cfg
}

func recordingWait(events *[]string, mu *sync.Mutex) WaitFunc {
	return func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*events = append(*events, fmt.Sprintf("wait %s", d))
		mu.Unlock()
		return ctx.Err()
	}
}

func TestSessionPoliteness(t *testing.T) {
	var events []string
	var mu sync.Mutex
	ff := newFakeFetcher(&events)
	gate := NewGate(ff, nil, testConfig(), testLogger(), WithWaitFunc(recordingWait(&events, &mu)))
	s := gate.Session("antiwar")
	ctx := context.Background()

	for _, u := range []string{
		"https://a.example/one",
		"https://a.example/two",
		"https://b.example/three",
	} {
		if _, err := s.Fetch(ctx, u); err != nil {
			t.Fatalf("fetch %s: %v", u, err)
		}
	}

	want := []string{
		"fetch https://a.example/one",
		"wait 10s",
		"fetch https://a.example/two",
		"fetch https://b.example/three",
	}
	if strings.Join(events, "|") != strings.Join(want, "|") {
		t.Errorf("events = %q\nwant     %q", events, want)
	}
	if s.Waits() != 1 {
		t.Errorf("expected 1 wait, got %d", s.Waits())
	}
}

func TestSessionWindowResetsAfterPause(t *testing.T) {
	var events []string
	var mu sync.Mutex
	gate := NewGate(newFakeFetcher(&events), nil, testConfig(), testLogger(), WithWaitFunc(recordingWait(&events, &mu)))
	s := gate.Session("antiwar")

	urls := []string{
		"https://a.example/1",
		"https://b.example/2",
		"https://a.example/3", // a recurs: pause, window is emptied
		"https://b.example/4", // b is new again after the reset
		"https://b.example/5", // b recurs: pause
	}
	for _, u := range urls {
		if _, err := s.Fetch(context.Background(), u); err != nil {
			t.Fatal(err)
		}
	}
	if s.Waits() != 2 {
		t.Errorf("expected 2 waits, got %d (%q)", s.Waits(), events)
	}
}

func TestSessionSingleOriginPausesEveryOtherRequest(t *testing.T) {
	var events []string
	var mu sync.Mutex
	gate := NewGate(newFakeFetcher(&events), nil, testConfig(), testLogger(), WithWaitFunc(recordingWait(&events, &mu)))
	s := gate.Session("antiwar")

	for _, u := range []string{
		"https://a.example/index",
		"https://a.example/1",
		"https://a.example/2",
		"https://a.example/3",
	} {
		if _, err := s.Fetch(context.Background(), u); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{
		"fetch https://a.example/index",
		"wait 10s",
		"fetch https://a.example/1",
		"fetch https://a.example/2",
		"wait 10s",
		"fetch https://a.example/3",
	}
	if strings.Join(events, "|") != strings.Join(want, "|") {
		t.Errorf("events = %q\nwant     %q", events, want)
	}
	if s.Waits() != 2 {
		t.Errorf("expected 2 waits, got %d", s.Waits())
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	var events []string
	var mu sync.Mutex
	gate := NewGate(newFakeFetcher(&events), nil, testConfig(), testLogger(), WithWaitFunc(recordingWait(&events, &mu)))

	a := gate.Session("antiwar")
	b := gate.Session("wikipedia")
	if _, err := a.Fetch(context.Background(), "https://a.example/1"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Fetch(context.Background(), "https://a.example/2"); err != nil {
		t.Fatal(err)
	}
	if a.Waits()+b.Waits() != 0 {
		t.Error("separate runs must not share a politeness window")
	}
}

func TestSessionWaitHonoursCancel(t *testing.T) {
	var events []string
	cfg := testConfig()
	cfg.Engine.PolitenessDelay = time.Hour
	gate := NewGate(newFakeFetcher(&events), nil, cfg, testLogger())
	s := gate.Session("antiwar")

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := s.Fetch(ctx, "https://a.example/1"); err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.Fetch(ctx, "https://a.example/2")
		done <- err
	}()
	select {
	case err := <-done:
		if !types.IsCanceled(err) {
			t.Errorf("expected cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("politeness wait ignored cancellation")
	}
}

func TestGateRetriesNetworkErrors(t *testing.T) {
	var events []string
	ff := newFakeFetcher(&events)
	u := "https://flaky.example/x"
	ff.errs[u] = []error{
		&types.FetchError{URL: u, Err: io.ErrUnexpectedEOF, Retryable: true},
		&types.FetchError{URL: u, Err: io.ErrUnexpectedEOF, Retryable: true},
	}
	gate := NewGate(ff, nil, testConfig(), testLogger())

	resp, err := gate.Session("t").Fetch(context.Background(), u)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if resp.StatusCode != 200 || ff.calls[u] != 3 {
		t.Errorf("expected 3 calls, got %d", ff.calls[u])
	}
}

func TestGateDoesNotRetryStatusErrors(t *testing.T) {
	var events []string
	ff := newFakeFetcher(&events)
	u := "https://gone.example/x"
	ff.errs[u] = []error{&types.FetchError{URL: u, StatusCode: 503, Err: errors.New("HTTP 503")}}
	gate := NewGate(ff, nil, testConfig(), testLogger())

	_, err := gate.Session("t").Fetch(context.Background(), u)
	if !types.IsStatusError(err) {
		t.Fatalf("expected status error, got %v", err)
	}
	if ff.calls[u] != 1 {
		t.Errorf("status errors must not be retried, got %d calls", ff.calls[u])
	}
}

func TestOrigin(t *testing.T) {
	tests := map[string]string{
		"https://www.antiwar.com/latest.php": "https://www.antiwar.com",
		"HTTPS://WWW.Antiwar.com/x?y=1":      "https://www.antiwar.com",
		"http://localhost:8080/path":         "http://localhost:8080",
		"https://news.example/a#frag":        "https://news.example",
	}
	for in, want := range tests {
		got, err := Origin(in)
		if err != nil || got != want {
			t.Errorf("Origin(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := Origin("/relative"); err == nil {
		t.Error("relative URL has no origin")
	}
}

func TestHTTPFetcherStatusAndNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("<html><body>fine</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	f, err := NewHTTPFetcher(testConfig(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	ctx := context.Background()

	resp, err := f.Fetch(ctx, srv.URL+"/ok")
	if err != nil {
		t.Fatalf("fetch ok: %v", err)
	}
	if !resp.IsSuccess() || !strings.Contains(resp.Text(), "fine") {
		t.Errorf("unexpected response %d %q", resp.StatusCode, resp.Text())
	}

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	if !types.IsStatusError(err) {
		t.Errorf("404 should be a status error, got %v", err)
	}

	addr := srv.URL
	srv.Close()
	_, err = f.Fetch(ctx, addr+"/ok")
	if !types.IsNetworkError(err) {
		t.Errorf("closed server should be a network error, got %v", err)
	}

	_, err = f.Fetch(ctx, "ftp://example.com/x")
	if !errors.Is(err, types.ErrInvalidURL) {
		t.Errorf("expected invalid URL, got %v", err)
	}
}

func TestHTTPFetcherBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte("compressed news"))
		bw.Close()
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(testConfig(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	resp, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text() != "compressed news" {
		t.Errorf("got %q", resp.Text())
	}
}

func TestCommandExtractor(t *testing.T) {
	newExtractor := func(script string, timeout time.Duration) *CommandExtractor {
		return NewCommandExtractor(&config.ExtractorConfig{
			Command: "sh",
			Args:    []string{"-c", script},
			Timeout: timeout,
		}, testLogger())
	}
	ctx := context.Background()

	body, err := newExtractor(`echo "text of $0"`, 5*time.Second).ExtractBody(ctx, "https://off.site/story")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if body != "text of https://off.site/story" {
		t.Errorf("unexpected body %q", body)
	}

	_, err = newExtractor("exit 3", 5*time.Second).ExtractBody(ctx, "https://off.site/story")
	var he *types.HelperError
	if !errors.As(err, &he) || he.ExitCode != 3 || !errors.Is(err, types.ErrNoBody) {
		t.Errorf("expected helper exit 3 with no body, got %v", err)
	}

	_, err = newExtractor("true", 5*time.Second).ExtractBody(ctx, "https://off.site/story")
	if !errors.Is(err, types.ErrNoBody) {
		t.Errorf("empty output should be no body, got %v", err)
	}

	start := time.Now()
	_, err = newExtractor("sleep 10", 100*time.Millisecond).ExtractBody(ctx, "https://off.site/story")
	if !errors.Is(err, types.ErrNoBody) {
		t.Errorf("timeout should be no body, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("helper was not killed on timeout (took %s)", time.Since(start))
	}
}

func TestSessionExtractBody(t *testing.T) {
	var events []string
	var mu sync.Mutex
	ex := NewCommandExtractor(&config.ExtractorConfig{
		Command: "sh",
		Args:    []string{"-c", `echo body`},
		Timeout: 5 * time.Second,
	}, testLogger())
	gate := NewGate(newFakeFetcher(&events), ex, testConfig(), testLogger(), WithWaitFunc(recordingWait(&events, &mu)))
	s := gate.Session("antiwar")

	if _, err := s.Fetch(context.Background(), "https://other.example/index"); err != nil {
		t.Fatal(err)
	}
	body, err := s.ExtractBody(context.Background(), "https://other.example/story")
	if err != nil || body != "body" {
		t.Fatalf("got %q, %v", body, err)
	}
	if s.Waits() != 1 {
		t.Errorf("extraction from a recurring origin must pause, got %d waits", s.Waits())
	}

	_, err = gate.Session("x").ExtractBody(context.Background(), "https://other.example/story")
	if err != nil {
		t.Fatal(err)
	}
	noEx := NewGate(newFakeFetcher(&events), nil, testConfig(), testLogger())
	if _, err := noEx.Session("x").ExtractBody(context.Background(), "https://a.example/"); !errors.Is(err, types.ErrNoBody) {
		t.Errorf("gate without extractor should report no body, got %v", err)
	}
}
