// Package remote is the HTTP collaborator the sync layer fetches from and
// mutates through.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"goflare.io/bento/internal/fetch"
	"goflare.io/bento/internal/models"
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %d %s", e.Code, e.Message)
}

// Is makes every StatusError match models.ErrRemote.
func (e *StatusError) Is(target error) bool {
	return target == models.ErrRemote
}

// Client 遠端 API 客戶端
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// Option 客戶端選項
type Option func(*resty.Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *resty.Client) { c.SetHeader(key, value) }
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetLogger(logger.Sugar())
	for _, opt := range opts {
		opt(hc)
	}
	return &Client{http: hc, logger: logger}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Fetch GETs path and decodes the JSON body into out.
func (c *Client) Fetch(ctx context.Context, path string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", models.ErrRemote, path, err)
	}
	if resp.IsError() {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Bytes(), out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", models.ErrRemote, path, err)
	}
	return nil
}

// Mutate sends body with method to path. The payload is the raw response
// body, empty when the server sent none.
func (c *Client) Mutate(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req = req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", models.ErrRemote, method, path, err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}
	c.logger.Debug("Mutation accepted", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode()))

	payload := resp.Bytes()
	if len(payload) == 0 {
		return nil, nil
	}
	return json.RawMessage(payload), nil
}

// Post is Mutate with POST.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Mutate(ctx, http.MethodPost, path, body)
}

// Delete is Mutate with DELETE.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Mutate(ctx, http.MethodDelete, path, nil)
}

func statusError(resp *resty.Response) error {
	msg := http.StatusText(resp.StatusCode())
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Bytes(), &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &StatusError{Code: resp.StatusCode(), Message: msg}
}

// FetchFunc adapts a GET of path into a fetch function for the Fetch Controller.
func FetchFunc[T any](c *Client, path string) fetch.Func[T] {
	return func(ctx context.Context) (T, error) {
		var out T
		err := c.Fetch(ctx, path, &out)
		return out, err
	}
}
