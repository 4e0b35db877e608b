package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// NetworkError is a transport-level fault: connection failure, timeout,
// or a malformed response body. Ordinary 4xx/5xx exchanges are NOT
// network errors; they come back as a Response with Success=false.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Response is the normalized result of one HTTP exchange
type Response struct {
	Success    bool
	StatusCode int
	// Data holds the decoded JSON body when the provider returned one
	Data interface{}
	// Body preserves the raw response body so adapters can branch on
	// provider-specific error payloads
	Body []byte
	// Err carries the provider's error text for unsuccessful exchanges
	Err string
	// RetryAfter is the provider-requested wait before trying again,
	// zero when no Retry-After header was sent
	RetryAfter time.Duration
}

// Client executes HTTP requests against provider endpoints. It never
// returns a Go error for an unsuccessful HTTP status; only transport
// faults surface as *NetworkError. Retries are a gateway/adapter
// concern, not handled here.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a transport client with a bounded per-request timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Execute performs one HTTP exchange. body may be nil, url.Values (form
// encoded), []byte, string, or any JSON-marshalable value.
func (c *Client) Execute(ctx context.Context, method, rawURL string, body interface{}, headers map[string]string) (*Response, error) {
	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: rawURL, Err: err}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: rawURL, Err: err}
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		Body:       respBody,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	if len(respBody) > 0 && looksLikeJSON(resp.Header.Get("Content-Type"), respBody) {
		var data interface{}
		if err := json.Unmarshal(respBody, &data); err != nil {
			// A successful exchange must carry a well-formed body; error
			// pages on 4xx/5xx are kept as raw text instead.
			if result.Success {
				return nil, &NetworkError{Op: method, URL: rawURL, Err: fmt.Errorf("malformed response body: %w", err)}
			}
		} else {
			result.Data = data
		}
	}

	if !result.Success {
		result.Err = extractErrorMessage(result.Data, respBody, resp.StatusCode)
	}

	return result, nil
}

// encodeBody prepares the request body and its content type
func encodeBody(body interface{}) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded", nil
	case []byte:
		return bytes.NewReader(b), "application/json", nil
	case string:
		return strings.NewReader(b), "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// parseRetryAfter reads a Retry-After header value, either delay
// seconds or an HTTP date
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// looksLikeJSON decides whether a body should be decoded as JSON
func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(contentType, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// extractErrorMessage pulls a human-readable error out of common
// provider error envelopes, falling back to the raw body
func extractErrorMessage(data interface{}, body []byte, statusCode int) string {
	if obj, ok := data.(map[string]interface{}); ok {
		// OData / Azure AD style: {"error": {"message": "..."}} or {"error_description": "..."}
		if inner, ok := obj["error"].(map[string]interface{}); ok {
			if msg, ok := inner["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if msg, ok := obj["error_description"].(string); ok && msg != "" {
			return msg
		}
		if msg, ok := obj["error"].(string); ok && msg != "" {
			return msg
		}
		// Oracle REST style: {"detail": "..."} or {"title": "..."}
		if msg, ok := obj["detail"].(string); ok && msg != "" {
			return msg
		}
		if msg, ok := obj["title"].(string); ok && msg != "" {
			return msg
		}
	}
	if len(body) > 0 {
		text := strings.TrimSpace(string(body))
		if len(text) > 512 {
			text = text[:512]
		}
		return text
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}
