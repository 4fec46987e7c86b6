package threads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Run statuses reported by the remote service.
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusExpired    = "expired"
	RunStatusCancelled  = "cancelled"
)

// API is the contract of the remote stateful completion service: server-side
// threads holding message history, with runs producing assistant replies.
type API interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, role, content string) error
	CreateRun(ctx context.Context, threadID, instructions string) (string, error)
	GetRunStatus(ctx context.Context, threadID, runID string) (string, error)
	LatestAssistantMessage(ctx context.Context, threadID string) (string, error)
}

// Client talks to the thread service over HTTP.
type Client struct {
	BaseURL     string
	APIKey      string
	AssistantID string
	HTTP        *http.Client
}

var _ API = &Client{}

func NewClient(baseURL, apiKey, assistantID string) *Client {
	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		AssistantID: assistantID,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return &RemoteError{Op: op, Err: err}
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", string(raw))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
		}
	}
	return nil
}

type threadResponse struct {
	Id string `json:"id"`
}

func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var resp threadResponse
	if err := c.do(ctx, "create-thread", "POST", "/threads", map[string]interface{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Id, nil
}

func (c *Client) AddMessage(ctx context.Context, threadID, role, content string) error {
	payload := map[string]string{
		"role":    role,
		"content": content,
	}
	path := fmt.Sprintf("/threads/%s/messages", threadID)
	return c.do(ctx, "append-message", "POST", path, payload, nil)
}

type runResponse struct {
	Id     string `json:"id"`
	Status string `json:"status"`
}

func (c *Client) CreateRun(ctx context.Context, threadID, instructions string) (string, error) {
	payload := map[string]string{
		"assistant_id": c.AssistantID,
	}
	if instructions != "" {
		payload["instructions"] = instructions
	}
	var resp runResponse
	path := fmt.Sprintf("/threads/%s/runs", threadID)
	if err := c.do(ctx, "create-run", "POST", path, payload, &resp); err != nil {
		return "", err
	}
	return resp.Id, nil
}

func (c *Client) GetRunStatus(ctx context.Context, threadID, runID string) (string, error) {
	var resp runResponse
	path := fmt.Sprintf("/threads/%s/runs/%s", threadID, runID)
	if err := c.do(ctx, "poll-run", "GET", path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

type messageListResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// LatestAssistantMessage fetches the newest assistant turn. The service
// returns messages newest-first.
func (c *Client) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var resp messageListResponse
	path := fmt.Sprintf("/threads/%s/messages?limit=10&order=desc", threadID)
	if err := c.do(ctx, "list-messages", "GET", path, nil, &resp); err != nil {
		return "", err
	}
	for _, msg := range resp.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", &RemoteError{Op: "list-messages", Err: fmt.Errorf("no assistant message in thread %s", threadID)}
}
