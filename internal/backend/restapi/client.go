// Package restapi implements the service.Service interface over the task
// backend's REST API.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"taskboard/internal/config"
	"taskboard/internal/logging"
	"taskboard/internal/service"
)

const (
	// DefaultTimeout is the timeout for API calls when none is configured.
	DefaultTimeout = 30 * time.Second

	tasksPath    = "/api/tasks"
	usersPath    = "/api/users"
	loginPath    = "/auth/login"
	registerPath = "/auth/register"
)

// Client implements service.Service against the REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	log     *logging.Logger
}

// New creates a client for cfg.Settings.APIURL. Requests are authorized
// with the token from cfg.Session().
func New(cfg *config.Config) (*Client, error) {
	settings := cfg.Settings.OrDefaults()
	log := cfg.Log().WithComponent("restapi")

	httpClient := &http.Client{
		Transport: NewAuthTransport(cfg.Session(), http.DefaultTransport, log),
	}
	c, err := NewWithHTTPClient(settings.APIURL, httpClient)
	if err != nil {
		return nil, err
	}
	c.timeout = settings.RequestTimeout
	c.log = log
	return c, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url: %s", baseURL)
	}
	return &Client{
		baseURL: u,
		http:    httpClient,
		timeout: DefaultTimeout,
		log:     logging.NopLogger(),
	}, nil
}

// Login exchanges credentials for a token and profile.
func (c *Client) Login(ctx context.Context, creds service.Credentials) (service.AuthResult, error) {
	var res service.AuthResult
	if err := c.do(ctx, http.MethodPost, loginPath, nil, creds, &res); err != nil {
		if errors.Is(err, service.ErrUnauthorized) || errors.Is(err, service.ErrForbidden) {
			return service.AuthResult{}, fmt.Errorf("invalid email or password: %w", service.ErrUnauthorized)
		}
		return service.AuthResult{}, err
	}
	if res.Token == "" {
		return service.AuthResult{}, errors.New("login response has no token")
	}
	return res, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, reg service.Registration) error {
	return c.do(ctx, http.MethodPost, registerPath, nil, reg, nil)
}

// ListTasks returns one page of tasks. Empty filter fields are omitted from
// the query.
func (c *Client) ListTasks(ctx context.Context, q service.TaskQuery) (service.TaskPage, error) {
	params := url.Values{}
	if q.Title != "" {
		params.Set("title", q.Title)
	}
	if q.Description != "" {
		params.Set("description", q.Description)
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	params.Set("page", strconv.Itoa(q.Page))
	if q.Size > 0 {
		params.Set("size", strconv.Itoa(q.Size))
	}

	var page service.TaskPage
	if err := c.do(ctx, http.MethodGet, tasksPath, params, nil, &page); err != nil {
		return service.TaskPage{}, err
	}
	if page.Content == nil {
		page.Content = []service.Task{}
	}
	return page, nil
}

// GetTask returns a single task by ID.
func (c *Client) GetTask(ctx context.Context, id int64) (service.Task, error) {
	var task service.Task
	if err := c.do(ctx, http.MethodGet, taskPath(id), nil, nil, &task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// CreateTask creates a new task.
func (c *Client) CreateTask(ctx context.Context, in service.TaskInput) error {
	return c.do(ctx, http.MethodPost, tasksPath, nil, in, nil)
}

// UpdateTask replaces the editable fields of a task.
func (c *Client) UpdateTask(ctx context.Context, id int64, in service.TaskInput) error {
	return c.do(ctx, http.MethodPut, taskPath(id), nil, in, nil)
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil, nil)
}

// ListUsers returns all users.
func (c *Client) ListUsers(ctx context.Context) ([]service.User, error) {
	var users []service.User
	if err := c.do(ctx, http.MethodGet, usersPath, nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func taskPath(id int64) string {
	return tasksPath + "/" + strconv.FormatInt(id, 10)
}

// do sends one request. body is JSON-encoded when non-nil; out, when
// non-nil, receives the decoded JSON response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return wrapError(err)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty response body")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// wrapError maps transport and HTTP errors onto the service error taxonomy.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("token expired or rejected (run: taskboard login): %w", service.ErrUnauthorized)
		case http.StatusForbidden:
			return fmt.Errorf("admin role required: %w", service.ErrForbidden)
		case http.StatusNotFound:
			return service.ErrNotFound
		default:
			return fmt.Errorf("HTTP %d: %s", gerr.Code, detail(gerr))
		}
	}

	return err
}

// detail extracts a human-readable message from an error response body.
func detail(gerr *googleapi.Error) string {
	if gerr.Message != "" {
		return gerr.Message
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal([]byte(gerr.Body), &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(gerr.Body); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(gerr.Code)
}
