package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

// ErrNoResults is returned when the provider answers successfully but reports no artifacts.
var ErrNoResults = errors.New("provider returned no results")

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider error: %d - %s", e.Code, e.Message)
}

type generateResponse struct {
	Results []model.Artifact `json:"results"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client calls the external generation provider.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a provider client. timeout bounds every request, including reading the body.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate submits one generation request carrying all reference images
// and returns the artifacts in the order the provider listed them.
func (c *Client) Generate(ctx context.Context, req model.GenerationRequest) ([]model.Artifact, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(resp, body)}
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	if len(out.Results) == 0 {
		return nil, ErrNoResults
	}

	return out.Results, nil
}

// errorMessage picks the provider's message, then its error field, then the HTTP status text.
func errorMessage(resp *http.Response, body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}

	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}

	return strings.TrimSpace(resp.Status)
}
