package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/sol1corejz/voidshop/internal/logger"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 15 * time.Second
	maxRetries     = 2
)

// APIError carries the error taxonomy surfaced to callers. Status 0 means
// the request never produced a response (timeout or unreachable network);
// Status >= 400 is a structured backend rejection with its detail payload
// in Data.
type APIError struct {
	Message string
	Status  int
	Data    map[string]any
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	base string
	http *http.Client

	// backoffBase is the unit for the exponential retry delay (1s, 2s).
	// Overridable in tests.
	backoffBase time.Duration
}

func New(base string) *Client {
	return &Client{
		base:        base,
		http:        &http.Client{},
		backoffBase: time.Second,
	}
}

type requestOptions struct {
	method    string
	body      any
	multipart *multipartBody
	timeout   time.Duration
}

type multipartBody struct {
	field    string
	filename string
	mimeType string
	content  []byte
}

// do runs one API call with timeout, bounded retry and the error taxonomy
// above. Only GET requests are retried: a mutating call that failed must be
// re-initiated explicitly by the user so a transport blip cannot duplicate
// its side effects.
func (c *Client) do(ctx context.Context, path string, opts requestOptions, dest any) error {
	if opts.method == "" {
		opts.method = http.MethodGet
	}
	if opts.timeout == 0 {
		opts.timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	payload, contentType, err := c.encodeBody(opts)
	if err != nil {
		return &APIError{Message: err.Error(), Status: 400, Data: map[string]any{"type": "validation"}}
	}

	attempts := 1
	if opts.method == http.MethodGet {
		attempts = 1 + maxRetries
	}

	logger.Log.Debug("api request", zap.String("method", opts.method), zap.String("path", path))

	var resp *http.Response
	for i := 0; i < attempts; i++ {
		req, reqErr := http.NewRequestWithContext(ctx, opts.method, c.base+path, bytes.NewReader(payload))
		if reqErr != nil {
			return &APIError{Message: reqErr.Error(), Status: 0, Data: map[string]any{"type": "network"}}
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err = c.http.Do(req)
		last := i == attempts-1
		if err == nil && (resp.StatusCode < 500 || last) {
			break
		}
		if err == nil {
			// Retryable 5xx: the body will not be read, release the connection.
			resp.Body.Close()
			resp = nil
		}
		if ctx.Err() != nil || last {
			break
		}
		if !c.sleep(ctx, c.backoffBase<<i) {
			break
		}
	}

	if resp == nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &APIError{Message: "request timed out", Status: 0, Data: map[string]any{"type": "timeout"}}
		}
		msg := "network unreachable"
		if err != nil {
			msg = err.Error()
		}
		return &APIError{Message: msg, Status: 0, Data: map[string]any{"type": "network"}}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Message: err.Error(), Status: 0, Data: map[string]any{"type": "network"}}
	}

	logger.Log.Debug("api response", zap.String("path", path), zap.Int("status", resp.StatusCode))

	if resp.StatusCode >= 400 {
		errorData := map[string]any{}
		if jsonErr := json.Unmarshal(raw, &errorData); jsonErr != nil {
			errorData = map[string]any{"detail": fmt.Sprintf("HTTP %d", resp.StatusCode)}
		}
		message, _ := errorData["detail"].(string)
		if message == "" {
			message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &APIError{Message: message, Status: resp.StatusCode, Data: errorData}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &APIError{Message: fmt.Sprintf("invalid response body: %v", err), Status: 0, Data: map[string]any{"type": "network"}}
	}
	return nil
}

func (c *Client) encodeBody(opts requestOptions) ([]byte, string, error) {
	if opts.multipart != nil {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, opts.multipart.field, opts.multipart.filename))
		if opts.multipart.mimeType != "" {
			header.Set("Content-Type", opts.multipart.mimeType)
		}
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(opts.multipart.content); err != nil {
			return nil, "", err
		}
		if err := writer.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), writer.FormDataContentType(), nil
	}

	if opts.body == nil || opts.method == http.MethodGet {
		return nil, "", nil
	}

	payload, err := json.Marshal(opts.body)
	if err != nil {
		return nil, "", err
	}
	return payload, "application/json", nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
