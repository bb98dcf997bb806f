package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const goodResponse = `{"choices":[{"message":{"content":"rewritten program"}}]}`

func newClientForTest(t *testing.T, baseURL string, attempts int) (*Client, *int) {
	t.Helper()
	c := NewClient(Config{
		BaseURL:    baseURL,
		Model:      "test-model",
		APIKey:     "test-key",
		Attempts:   attempts,
		RetryDelay: 25 * time.Millisecond,
	}, nil)
	sleeps := 0
	c.sleep = func(ctx context.Context, d time.Duration) error {
		if d != 25*time.Millisecond {
			t.Fatalf("sleep delay = %v, want 25ms", d)
		}
		sleeps++
		return nil
	}
	return c, &sleeps
}

func TestComplete_FailsTwiceThenSucceeds(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(goodResponse))
	}))
	defer srv.Close()

	c, sleeps := newClientForTest(t, srv.URL, 3)
	got, err := c.Complete(context.Background(), Request{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "rewritten program" {
		t.Fatalf("content = %q", got)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hits = %d, want 3", hits.Load())
	}
	if *sleeps != 2 {
		t.Fatalf("sleeps = %d, want 2", *sleeps)
	}
}

func TestComplete_ExhaustsRetryBudget(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"nope"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, sleeps := newClientForTest(t, srv.URL, 3)
	_, err := c.Complete(context.Background(), Request{User: "usr"})
	if err == nil {
		t.Fatal("expected error")
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", exhausted.Attempts)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected wrapped *HTTPError with status 500, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hits = %d, want 3", hits.Load())
	}
	if *sleeps != 2 {
		t.Fatalf("sleeps = %d, want 2", *sleeps)
	}
}

func TestComplete_TransportFailureIsRetriedAndWrapped(t *testing.T) {
	// Reserve a port and close it: connections are refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, sleeps := newClientForTest(t, srv.URL, 2)
	_, err := c.Complete(context.Background(), Request{User: "usr"})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected wrapped *TransportError, got %v", err)
	}
	if *sleeps != 1 {
		t.Fatalf("sleeps = %d, want 1", *sleeps)
	}
}

func TestComplete_ShapeFailureIsTerminal(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, _ := newClientForTest(t, srv.URL, 3)
	_, err := c.Complete(context.Background(), Request{User: "usr"})
	var shape *ShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("error type = %T, want *ShapeError", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hits = %d, want 1 (shape failures are not retried)", hits.Load())
	}
}

func TestComplete_SendsChatCompletionBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(goodResponse))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		Model:       "test-model",
		APIKey:      "test-key",
		Attempts:    1,
		Temperature: 0.2,
	}, nil)
	if _, err := c.Complete(context.Background(), Request{System: "sys", User: "usr"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if body["model"] != "test-model" {
		t.Fatalf("model = %v", body["model"])
	}
	if body["temperature"] != 0.2 {
		t.Fatalf("temperature = %v", body["temperature"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	second, _ := msgs[1].(map[string]any)
	if first["role"] != "system" || first["content"] != "sys" {
		t.Fatalf("system message = %v", first)
	}
	if second["role"] != "user" || second["content"] != "usr" {
		t.Fatalf("user message = %v", second)
	}
}

func TestExtractContent(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "valid", raw: goodResponse, want: "rewritten program"},
		{name: "not json", raw: `<html>oops</html>`, wantErr: true},
		{name: "missing choices", raw: `{"id":"x"}`, wantErr: true},
		{name: "empty choices", raw: `{"choices":[]}`, wantErr: true},
		{name: "missing message", raw: `{"choices":[{}]}`, wantErr: true},
		{name: "missing content", raw: `{"choices":[{"message":{}}]}`, wantErr: true},
		{name: "empty content", raw: `{"choices":[{"message":{"content":""}}]}`, wantErr: true},
		{name: "non-string content", raw: `{"choices":[{"message":{"content":42}}]}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractContent([]byte(tc.raw))
			if tc.wantErr {
				var shape *ShapeError
				if !errors.As(err, &shape) {
					t.Fatalf("error = %v, want *ShapeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractContent: %v", err)
			}
			if got != tc.want {
				t.Fatalf("content = %q, want %q", got, tc.want)
			}
		})
	}
}
