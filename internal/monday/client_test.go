package monday

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, maxAttempts int) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Token:       "test-token",
		APIURL:      url,
		MaxAttempts: maxAttempts,
		BaseBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestQueryRetriesServerFaultsThenSucceeds(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data": {"me": {"name": "Ada", "email": "ada@x.com"}}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	name, email, err := client.Me(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Equal(t, "Ada", name)
	assert.Equal(t, "ada@x.com", email)
}

func TestQueryExhaustsRetryBudgetOnServerFaults(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	err := client.Query(context.Background(), "query { me { name } }", nil, nil)

	require.Error(t, err)
	assert.Equal(t, 4, requests)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrKindServerFault, apiErr.Kind)
}

func TestQueryRetriesSoftRateLimitInsideEnvelope(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			fmt.Fprint(w, `{"errors": [{"message": "Complexity budget exhausted, reset in 10 seconds"}]}`)
			return
		}
		fmt.Fprint(w, `{"data": {}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	err := client.Query(context.Background(), "query { boards { id } }", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestQueryFailsFastOnOtherGraphQLErrors(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"errors": [{"message": "invalid board id"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	err := client.Query(context.Background(), "query { boards { id } }", nil, nil)

	require.Error(t, err)
	assert.Equal(t, 1, requests, "domain errors must not burn retry budget")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrKindGraphQL, apiErr.Kind)
	assert.Contains(t, apiErr.Message, "invalid board id")
}

func TestQueryProxyAuthRequiredIsFatal(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusProxyAuthRequired)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	err := client.Query(context.Background(), "query { me { name } }", nil, nil)

	require.Error(t, err)
	assert.Equal(t, 1, requests)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrKindProxyAuth, apiErr.Kind)
	assert.False(t, IsTransient(err))
}

func TestQueryNonJSONResponseIsFatal(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>maintenance page</body></html>")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	err := client.Query(context.Background(), "query { me { name } }", nil, nil)

	require.Error(t, err)
	assert.Equal(t, 1, requests)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrKindMalformed, apiErr.Kind)
	assert.Contains(t, apiErr.Message, "text/html")
	assert.Contains(t, apiErr.Message, "maintenance page")
}

func TestQueryRetriesOn429(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data": {}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	err := client.Query(context.Background(), "query { me { name } }", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestQuerySendsAuthAndVersionHeaders(t *testing.T) {
	var gotAuth, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("API-Version")
		fmt.Fprint(w, `{"data": {}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1)
	require.NoError(t, client.Query(context.Background(), "query { me { name } }", nil, nil))
	assert.Equal(t, "test-token", gotAuth)
	assert.Equal(t, "2024-10", gotVersion)
}

func TestRetryAfterHintPrefersHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "5")

	wait, hinted := retryAfterHint(header, []byte(`{"retry_in_seconds": 2}`))
	require.True(t, hinted)
	assert.GreaterOrEqual(t, wait, 5*time.Second)
}

func TestRetryAfterHintFallsBackToBody(t *testing.T) {
	wait, hinted := retryAfterHint(http.Header{}, []byte(`{"retry_in_seconds": 3}`))
	require.True(t, hinted)
	assert.Equal(t, 3*time.Second, wait)
}

func TestRetryAfterHintAbsent(t *testing.T) {
	_, hinted := retryAfterHint(http.Header{}, []byte(`{"error_message": "too many requests"}`))
	assert.False(t, hinted)
}

func TestBackoffStaysWithinJitterEnvelope(t *testing.T) {
	client := &Client{baseBackoff: 600 * time.Millisecond}
	for attempt := 1; attempt <= 4; attempt++ {
		expected := float64(600*time.Millisecond) * float64(int(1)<<(attempt-1))
		for i := 0; i < 50; i++ {
			d := client.backoff(attempt)
			assert.GreaterOrEqual(t, float64(d), expected*0.7)
			assert.LessOrEqual(t, float64(d), expected*1.3)
		}
	}
}

type fakeNetError struct {
	timeout bool
}

func (e fakeNetError) Error() string   { return "fake network error" }
func (e fakeNetError) Timeout() bool   { return e.timeout }
func (e fakeNetError) Temporary() bool { return false }

func TestClassifyNetworkError(t *testing.T) {
	timeoutErr := classifyNetworkError(fakeNetError{timeout: true})
	assert.Equal(t, ErrKindTimeout, timeoutErr.Kind)
	assert.True(t, IsTransient(timeoutErr))

	connErr := classifyNetworkError(fakeNetError{timeout: false})
	assert.Equal(t, ErrKindConnection, connErr.Kind)
	assert.True(t, IsTransient(connErr))
}

func TestQueryConnectionFailureExhaustsRetries(t *testing.T) {
	// Point at a closed port
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url, 2)
	err := client.Query(context.Background(), "query { me { name } }", nil, nil)

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestNewClientRejectsMissingToken(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
}

func TestNewClientRejectsUnknownProxyType(t *testing.T) {
	_, err := NewClient(ClientConfig{
		Token: "t",
		Proxy: ProxyConfig{Type: "carrier-pigeon", Host: "localhost", Port: "1080"},
	})
	require.Error(t, err)
}
