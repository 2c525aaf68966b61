package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// ipv4Server is an httptest.Server stand-in pinned to tcp4, since sandboxed
// CI runners sometimes lack IPv6 loopback.
type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// completionServer replies to /chat/completions with the given status per
// attempt, repeating the last status once the sequence is exhausted.
func completionServer(t *testing.T, statuses []int, headers []http.Header, bodyOK any) *ipv4Server {
	t.Helper()
	var idx int32
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		st := statuses[i]
		if headers != nil && i < len(headers) && headers[i] != nil {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(st)
		if st >= 200 && st < 300 {
			_ = json.NewEncoder(w).Encode(bodyOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down"}})
	}))
}

func narrativeBody(text string) GenerateResponse {
	return GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: text}}}}
}

func TestGenerateRetriesOn429(t *testing.T) {
	srv := completionServer(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}, {}}, narrativeBody("<ul><li>ok</li></ul>"))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{Model: "openai/gpt-4o-mini", Messages: []Message{{Role: "user", Content: "summarize"}}, MaxTokens: 16})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content != "<ul><li>ok</li></ul>" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestGenerateSendsAttributionHeaders(t *testing.T) {
	var gotAuth, gotTitle, gotReferer string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		gotReferer = r.Header.Get("HTTP-Referer")
		_ = json.NewEncoder(w).Encode(narrativeBody("ok"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Generate(ctx, GenerateRequest{Model: "openai/gpt-4o-mini", Messages: []Message{{Role: "user", Content: "summarize"}}}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotTitle != "DataLoom CLI" {
		t.Fatalf("X-Title = %q", gotTitle)
	}
	if gotReferer != "https://github.com/KaramelBytes/dataloom-cli" {
		t.Fatalf("HTTP-Referer = %q", gotReferer)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	// First attempt gets a 1-second Retry-After; the call must wait it out.
	srv := completionServer(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}, {}}, narrativeBody("ok"))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", 5*time.Second, 3, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := c.Generate(ctx, GenerateRequest{Model: "openai/gpt-4o-mini", Messages: []Message{{Role: "user", Content: "summarize"}}, MaxTokens: 1}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("retried after %v, want at least ~1s", elapsed)
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Request-Id", "req_dl_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "prompt too large", "code": "bad_request"}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Generate(ctx, GenerateRequest{Model: "openai/gpt-4o-mini", Messages: []Message{{Role: "user", Content: "summarize"}}, MaxTokens: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "req_dl_123") {
		t.Fatalf("request id missing from error: %v", err)
	}
	var brErr *BadRequestError
	if !errors.As(err, &brErr) {
		t.Fatalf("expected BadRequestError, got %T: %v", err, err)
	}
}

func TestGenerateClassifiesAuthError(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid api key"}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("bad-key", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Generate(ctx, GenerateRequest{Model: "openai/gpt-4o-mini", Messages: []Message{{Role: "user", Content: "summarize"}}, MaxTokens: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
}
