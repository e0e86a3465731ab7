package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOllamaTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream {
			http.Error(w, "streaming not expected", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "echo: " + req.Prompt})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			out.Embeddings[i] = []float32{0.1, 0.2, float32(i)}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestOllamaComplete(t *testing.T) {
	server := newOllamaTestServer(t)
	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})

	got, err := client.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "echo: hello" {
		t.Errorf("Complete = %q", got)
	}
}

func TestOllamaEmbedBatch(t *testing.T) {
	server := newOllamaTestServer(t)
	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(vecs))
	}
	if len(vecs[0]) != 3 {
		t.Errorf("embedding dimension = %d, want 3", len(vecs[0]))
	}

	single, err := client.Embed(context.Background(), "a")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(single) != 3 {
		t.Errorf("single embedding dimension = %d", len(single))
	}
}

func TestOllamaEmbedBatchEmptyInput(t *testing.T) {
	client := NewOllamaClient(OllamaConfig{BaseURL: "http://127.0.0.1:1"})
	vecs, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil): %v", err)
	}
	if vecs != nil {
		t.Errorf("EmbedBatch(nil) = %v, want nil", vecs)
	}
}

func TestOllamaServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	if _, err := client.Complete(context.Background(), "hello"); err == nil {
		t.Error("Complete succeeded against erroring server")
	}
}

func TestThrottledEmbedderDelegates(t *testing.T) {
	server := newOllamaTestServer(t)
	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	throttled := NewThrottledEmbedder(client, 100)

	vec, err := throttled.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) == 0 {
		t.Error("empty embedding")
	}
	if throttled.Model() != client.Model() {
		t.Error("Model not delegated")
	}
}
