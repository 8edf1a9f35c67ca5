// Package backend talks to the remote classification API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mri-console/internal/classify"
	"mri-console/internal/schemas"
)

const (
	DefaultTimeout          = 30 * time.Second
	DefaultPredictionsLimit = 200
	maxResponseBytes        = 32 << 20
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Detail, e.Status)
}

type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the request timeout. It applies to a copy of the HTTP
// client, whichever option supplied it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a client for the API at baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Predict uploads a scan and returns the class probabilities in response order.
func (c *Client) Predict(ctx context.Context, filename, contentType string, image io.Reader) (classify.ProbabilityMap, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/predict", nil), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var probs classify.ProbabilityMap
	if err := c.do(req, "failed to process prediction", &probs); err != nil {
		return nil, err
	}
	return probs, nil
}

func (c *Client) Analytics(ctx context.Context) (schemas.Analytics, error) {
	var out schemas.Analytics
	err := c.getJSON(ctx, "/analytics", nil, "failed to fetch analytics", &out)
	return out, err
}

func (c *Client) Models(ctx context.Context) ([]schemas.ModelInfo, error) {
	var out []schemas.ModelInfo
	err := c.getJSON(ctx, "/models", nil, "failed to fetch models", &out)
	return out, err
}

// Predictions lists stored predictions, newest first as the backend orders them.
func (c *Client) Predictions(ctx context.Context, limit int) ([]schemas.PredictionRecord, error) {
	if limit <= 0 {
		limit = DefaultPredictionsLimit
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var out []schemas.PredictionRecord
	err := c.getJSON(ctx, "/predictions", q, "failed to fetch predictions", &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, fallback string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, q), nil)
	if err != nil {
		return err
	}
	return c.do(req, fallback, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in any, fallback string, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, nil), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, fallback, out)
}

func (c *Client) do(req *http.Request, fallback string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	c.log.Debug("backend call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: req.Method + " " + req.URL.Path, Status: resp.StatusCode, Detail: errorDetail(body, fallback)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// errorDetail pulls the message out of {"detail": ...} or {"error": ...}.
// FastAPI validation errors carry a list under detail; those are kept as JSON.
func errorDetail(r io.Reader, fallback string) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return fallback
	}
	if len(e.Detail) > 0 && string(e.Detail) != "null" {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil {
			if s != "" {
				return s
			}
		} else {
			return string(e.Detail)
		}
	}
	if e.Error != "" {
		return e.Error
	}
	return fallback
}
