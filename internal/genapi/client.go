package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prepforge/session-backend/internal/model"
)

const defaultRequestTimeout = 15 * time.Second

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

var _ Service = (*Client)(nil)

// NewClient creates a generator-service client. httpc may be nil, in which
// case a client with a default timeout is used.
func NewClient(baseURL, apiKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpc: httpc}
}

func (c *Client) StartGeneration(ctx context.Context, cardID string) (*StartResult, error) {
	body := map[string]string{"card_id": cardID}
	var out StartResult
	if err := c.do(ctx, http.MethodPost, "/v1/generation/start", body, &out); err != nil {
		return nil, fmt.Errorf("start generation: %w", err)
	}
	return &out, nil
}

func (c *Client) PollGenerationStatus(ctx context.Context, handle string) (*StatusResult, error) {
	path := "/v1/generation/" + url.PathEscape(handle) + "/status"
	var out StatusResult
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("poll generation status: %w", err)
	}
	return &out, nil
}

func (c *Client) LoadFixedQuestions(ctx context.Context, sessionRef string) (*FixedSetResult, error) {
	path := "/v1/sessions/" + url.PathEscape(sessionRef) + "/questions"
	var out FixedSetResult
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("load fixed questions: %w", err)
	}
	return &out, nil
}

func (c *Client) SubmitAnswers(ctx context.Context, sessionRef string, answers []model.AnswerSubmission, elapsedSeconds int) (*model.SubmissionResult, error) {
	path := "/v1/sessions/" + url.PathEscape(sessionRef) + "/submit"
	body := map[string]any{
		"answers":         answers,
		"elapsed_seconds": elapsedSeconds,
	}
	var out model.SubmissionResult
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, fmt.Errorf("submit answers: %w", err)
	}
	return &out, nil
}

// do issues one JSON request against the generator service and decodes the
// response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Best-effort error body; the generator returns {"error": "..."}.
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("generator returned status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
