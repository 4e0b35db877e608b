package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteSuccessDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[{"ProductNumber":"SKU-1"}]}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, body, "value")
}

func TestExecuteHTTPErrorIsNotAGoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"message":"ProductNumber already exists"}}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.Execute(context.Background(), http.MethodPost, server.URL, map[string]string{"x": "y"}, nil)

	// A provider-level rejection is a normalized response, never a
	// transport error
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "ProductNumber already exists", resp.Err)
}

func TestExecuteConnectionRefusedIsNetworkError(t *testing.T) {
	// A closed server guarantees a refused connection
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewClient(time.Second)
	resp, err := client.Execute(context.Background(), http.MethodGet, addr, nil, nil)

	assert.Nil(t, resp)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
}

func TestExecuteSendsFormBody(t *testing.T) {
	var gotContentType, gotGrant string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotGrant = r.PostFormValue("grant_type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc"}`))
	}))
	defer server.Close()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	client := NewClient(5 * time.Second)
	resp, err := client.Execute(context.Background(), http.MethodPost, server.URL, form, nil)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "client_credentials", gotGrant)
}

func TestExecuteSendsCustomHeaders(t *testing.T) {
	var gotAuth, gotOData string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOData = r.Header.Get("OData-Version")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	headers := map[string]string{
		"Authorization": "Bearer token-123",
		"OData-Version": "4.0",
	}
	_, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, headers)
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "4.0", gotOData)
}

func TestExecuteMalformedSuccessBodyIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, nil)

	assert.Nil(t, resp)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
}

func TestExecuteErrorMessageFallsBackToBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.Execute(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Err, "upstream timeout")
}

func TestRetrierRetriesOnRetryableStatus(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	retrier := NewRetrier(&RetryConfig{
		MaxRetries:      3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      5 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: []int{http.StatusServiceUnavailable},
	})

	resp, result := retrier.Do(context.Background(), func(ctx context.Context) (*Response, error) {
		return client.Execute(ctx, http.MethodGet, server.URL, nil, nil)
	})

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, result.Attempts)
}

func TestRetrierHonorsRetryAfter(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	retrier := NewRetrier(&RetryConfig{
		MaxRetries:      1,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      2 * time.Second,
		BackoffFactor:   2.0,
		RetryableErrors: []int{http.StatusTooManyRequests},
	})

	start := time.Now()
	resp, result := retrier.Do(context.Background(), func(ctx context.Context) (*Response, error) {
		return client.Execute(ctx, http.MethodGet, server.URL, nil, nil)
	})

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("not-a-delay"))

	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(future)
	assert.Greater(t, d, 5*time.Second)
	assert.LessOrEqual(t, d, 10*time.Second)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.True(t, cb.Allow())
	cb.RecordFailure()

	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())

	// After the reset timeout trial requests flow again and enough
	// successes close the circuit
	time.Sleep(60 * time.Millisecond)
	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())
	cb.RecordSuccess()
	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}
