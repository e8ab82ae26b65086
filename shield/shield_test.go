package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultHeaders())(okHandler())
	w := serve(h, httptest.NewRequest("GET", "/api/poll", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestSecurityHeaders_EmptySkipped(t *testing.T) {
	h := SecurityHeaders(HeaderConfig{XFrameOptions: "SAMEORIGIN"})(okHandler())
	w := serve(h, httptest.NewRequest("GET", "/", nil))
	if w.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Fatalf("X-Frame-Options = %q", w.Header().Get("X-Frame-Options"))
	}
	if _, ok := w.Header()["Content-Security-Policy"]; ok {
		t.Fatal("empty CSP should not be set")
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	serve(h, httptest.NewRequest("HEAD", "/health", nil))
	if method != http.MethodGet {
		t.Fatalf("method = %q, want GET", method)
	}
	serve(h, httptest.NewRequest("POST", "/api/reset", nil))
	if method != http.MethodPost {
		t.Fatalf("POST rewritten to %q", method)
	}
}

func TestMaxBody(t *testing.T) {
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := serve(h, httptest.NewRequest("POST", "/", strings.NewReader("short")))
	if w.Code != http.StatusOK {
		t.Fatalf("small body: got %d", w.Code)
	}
	w = serve(h, httptest.NewRequest("POST", "/", strings.NewReader("far too long for the cap")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body: got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute, "/health")
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler())

	req := func(path string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", path, nil)
		r.RemoteAddr = "10.0.0.1:5555"
		return serve(h, r)
	}

	for i := range 2 {
		if w := req("/api/poll"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, w.Code)
		}
	}
	w := req("/api/poll")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: got %d, want 429", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "61" {
		t.Errorf("Retry-After = %q, want 61", ra)
	}
	if w := req("/health"); w.Code != http.StatusOK {
		t.Fatalf("excluded path limited: %d", w.Code)
	}

	now = now.Add(time.Minute + time.Second)
	if w := req("/api/poll"); w.Code != http.StatusOK {
		t.Fatalf("after window: got %d", w.Code)
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	if ok, _ := rl.Allow("a"); !ok {
		t.Fatal("first request from a denied")
	}
	if ok, _ := rl.Allow("b"); !ok {
		t.Fatal("client b shares a's bucket")
	}
	if ok, _ := rl.Allow("a"); ok {
		t.Fatal("second request from a allowed")
	}
}

func TestStack(t *testing.T) {
	if got := len(Stack(DefaultOptions())); got != 4 {
		t.Fatalf("default stack has %d middleware, want 4", got)
	}
	if got := len(Stack(Options{})); got != 2 {
		t.Fatalf("bare stack has %d middleware, want 2", got)
	}
}
