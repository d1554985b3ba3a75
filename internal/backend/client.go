package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HTTPError is a non-success response from the backend. Detail carries
// FastAPI's {"detail": ...} message when present.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// UploadError reports a document submission that was rejected or failed
// before a job existed.
type UploadError struct {
	Document string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", filepath.Base(e.Document), e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ErrMissingJobID is returned when the backend accepts a document without
// handing back a job id.
var ErrMissingJobID = errors.New("backend response has no job_id")

// ErrEmptyText is returned by Synthesize for blank input.
var ErrEmptyText = errors.New("nothing to synthesize")

// DefaultTimeout bounds status and health requests.
const DefaultTimeout = 10 * time.Second

// Client talks to the narration backend over HTTP. Uploads and synthesis
// are bounded only by the caller's context.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the timeout applied to status and health requests.
// Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit uploads a document and returns the id of the conversion job.
// Every failure is an *UploadError.
func (c *Client) Submit(ctx context.Context, path string) (string, error) {
	body, contentType, err := multipartBody(path)
	if err != nil {
		return "", &UploadError{Document: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/process-pdf", body)
	if err != nil {
		return "", &UploadError{Document: path, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)

	var resp SubmitResponse
	if err := c.do(req, &resp); err != nil {
		return "", &UploadError{Document: path, Err: err}
	}
	if strings.TrimSpace(resp.JobID) == "" {
		return "", &UploadError{Document: path, Err: ErrMissingJobID}
	}
	return resp.JobID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("build request: %w", err)
	}

	var resp StatusResponse
	if err := c.do(req, &resp); err != nil {
		return StatusResponse{}, err
	}
	return resp, nil
}

// AudioURL returns the address of one segment's audio resource.
func (c *Client) AudioURL(jobID string, index int) string {
	return c.baseURL + "/api/audio/" + url.PathEscape(jobID) + "/" + strconv.Itoa(index)
}

// Health reports the backend's model readiness.
func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("build request: %w", err)
	}

	var h Health
	if err := c.do(req, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Synthesize narrates text at the given speed and returns the WAV bytes.
func (c *Client) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	q := url.Values{}
	q.Set("text", text)
	q.Set("speed", strconv.FormatFloat(speed, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/synthesize-text?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	return c.send(req)
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	data, err := c.send(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// send performs req and returns the body of a 2xx response.
func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Detail: detail(data)}
	}
	return data, nil
}

func detail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Detail == nil {
		return strings.TrimSpace(string(body))
	}
	if s, ok := payload.Detail.(string); ok {
		return s
	}
	raw, _ := json.Marshal(payload.Detail)
	return string(raw)
}

func multipartBody(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", uploadName(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy document: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// uploadName is the form filename sent for path. The backend only accepts
// names ending in a lowercase ".pdf".
func uploadName(path string) string {
	name := filepath.Base(path)
	if strings.HasSuffix(name, ".pdf") {
		return name
	}
	return name + ".pdf"
}
