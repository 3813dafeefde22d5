package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xerrors "github.com/StacksTasker/x402-stacks-agent-console/internal/errors"
)

const (
	defaultBaseURL = "https://api.stackstasker.com"
	defaultTimeout = 15 * time.Second
)

// Config describes how to reach the remote task-marketplace API.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the remote task marketplace over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a marketplace client from config.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListTasks fetches tasks filtered by status and network. Empty filters are
// omitted from the query.
func (c *Client) ListTasks(ctx context.Context, status, network string) ([]Task, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if network != "" {
		query.Set("network", network)
	}
	endpoint := c.baseURL + "/api/tasks"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var decoded struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return nil, err
	}
	return decoded.Tasks, nil
}

// GetTask fetches a single task by its marketplace identifier.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	if strings.TrimSpace(id) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "task id is empty")
	}
	var decoded struct {
		Task *Task `json:"task"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/api/tasks/"+url.PathEscape(id), &decoded); err != nil {
		return nil, err
	}
	if decoded.Task == nil {
		return nil, xerrors.New(xerrors.CodeRemoteFetch, fmt.Sprintf("task %s missing from response", id))
	}
	return decoded.Task, nil
}

// ListAgents fetches the remote agent directory.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var decoded struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/api/agents", &decoded); err != nil {
		return nil, err
	}
	return decoded.Agents, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeRemoteFetch, err, "build marketplace request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeRemoteFetch, err, "marketplace request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return xerrors.New(xerrors.CodeRemoteFetch,
			fmt.Sprintf("marketplace returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(xerrors.CodeRemoteFetch, err, "decode marketplace response")
	}
	return nil
}
