package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func ollamaServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
}

func TestOllamaGenerateSuccess(t *testing.T) {
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "analysis looks clean"},
			"done":    true,
		})
	})
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{Model: "llama3:latest", Messages: []Message{{Role: "user", Content: "summarize"}}, MaxTokens: 16})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content != "analysis looks clean" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.RequestID == "" {
		t.Fatal("expected a synthesized request id")
	}
}

func TestOllamaGenerateMapsOptions(t *testing.T) {
	var captured ollamaChatRequest
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "ok"},
		})
	})
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{
		Model:       "llama3:latest",
		Messages:    []Message{{Role: "user", Content: "summarize"}},
		MaxTokens:   300,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if captured.Stream {
		t.Fatal("expected a non-streaming request")
	}
	// JSON numbers decode as float64.
	if got := captured.Options["num_predict"]; got != float64(300) {
		t.Fatalf("num_predict = %v, want 300", got)
	}
	if got := captured.Options["temperature"]; got != 0.2 {
		t.Fatalf("temperature = %v, want 0.2", got)
	}
}

func TestOllamaGeneratePreservesMessageOrder(t *testing.T) {
	var captured ollamaChatRequest
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "ok"},
		})
	})
	defer srv.Close()

	messages := []Message{
		{Role: "system", Content: "You are an expert data scientist."},
		{Role: "user", Content: "Describe the dataset."},
		{Role: "assistant", Content: "It has two numeric columns."},
		{Role: "user", Content: "Any anomalies?"},
	}
	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Generate(ctx, GenerateRequest{Model: "llama3:latest", Messages: messages}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(captured.Messages) != len(messages) {
		t.Fatalf("forwarded %d messages, want %d", len(captured.Messages), len(messages))
	}
	for i, want := range messages {
		got := captured.Messages[i]
		if got.Role != want.Role || got.Content != want.Content {
			t.Fatalf("message %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestOllamaGenerateModelNotFound(t *testing.T) {
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model 'nope:latest' not found"})
	})
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "nope:latest", Messages: []Message{{Role: "user", Content: "summarize"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	var nf *ModelNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ModelNotFoundError, got %T: %v", err, err)
	}
}

func TestOllamaGenerateBadRequest(t *testing.T) {
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid options"})
	})
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: []Message{{Role: "user", Content: "summarize"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	var br *BadRequestError
	if !errors.As(err, &br) {
		t.Fatalf("expected BadRequestError, got %T: %v", err, err)
	}
}

func TestOllamaGenerateEmptyMessages(t *testing.T) {
	c := NewOllamaClient("http://localhost:11434", 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: nil})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("err = %v, want 'messages cannot be empty'", err)
	}
}
