package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider talks to a text-model endpoint that accepts a Request as a
// JSON POST body and answers with a Response. The bearer token is optional;
// local model servers typically run without one.
type HTTPProvider struct {
	URL     string
	Model   string
	APIKey  string
	Client  *http.Client
	Timeout time.Duration
}

func (p *HTTPProvider) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	if strings.TrimSpace(p.URL) == "" {
		return nil, fmt.Errorf("text model url is required")
	}
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("request needs at least one message")
	}

	payload := struct {
		Model string `json:"model,omitempty"`
		*Request
	}{Model: p.Model, Request: req}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode text model request: %w", err)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("text model request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read text model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("text model returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode text model response: %w", err)
	}
	return &out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
