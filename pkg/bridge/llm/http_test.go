package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProviderCreateMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization=%q, want bearer token", got)
		}
		var req struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "helper-large" {
			t.Errorf("model=%q, want helper-large", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "what is 2+2" {
			t.Errorf("messages=%+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(Response{Text: "4"})
	}))
	defer srv.Close()

	p := &HTTPProvider{URL: srv.URL, Model: "helper-large", APIKey: "sk-test"}
	resp, err := p.CreateMessage(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "what is 2+2"}},
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if resp.Text != "4" {
		t.Fatalf("text=%q, want 4", resp.Text)
	}
}

func TestHTTPProviderSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &HTTPProvider{URL: srv.URL}
	_, err := p.CreateMessage(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("CreateMessage succeeded on 503")
	}
}

func TestHTTPProviderValidatesInput(t *testing.T) {
	p := &HTTPProvider{}
	if _, err := p.CreateMessage(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}); err == nil {
		t.Fatal("empty url accepted")
	}
	p.URL = "http://127.0.0.1:1"
	if _, err := p.CreateMessage(context.Background(), &Request{}); err == nil {
		t.Fatal("empty messages accepted")
	}
}
