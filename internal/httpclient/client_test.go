package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client := New(nil)
	t.Cleanup(client.Close)
	return client
}

func closeResponseBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp != nil && resp.Body != nil {
		require.NoError(t, resp.Body.Close(), "failed to close response body")
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		client := New(nil)
		t.Cleanup(client.Close)

		require.NotNil(t, client, "expected non-nil client")
		assert.Equal(t, DefaultTimeout, client.defaultTimeout, "expected default timeout")
		assert.Equal(t, defaultUserAgent, client.userAgent, "expected default user agent")
	})

	t.Run("custom config", func(t *testing.T) {
		cfg := Config{
			DefaultTimeout: 5 * time.Second,
			UserAgent:      "TestAgent/1.0",
		}
		client := New(&cfg)
		t.Cleanup(client.Close)

		assert.Equal(t, 5*time.Second, client.defaultTimeout, "expected timeout 5s")
		assert.Equal(t, "TestAgent/1.0", client.userAgent, "expected user agent 'TestAgent/1.0'")
	})

	t.Run("zero values use defaults", func(t *testing.T) {
		client := New(&Config{})
		t.Cleanup(client.Close)

		assert.Equal(t, DefaultTimeout, client.defaultTimeout, "expected default timeout")
		assert.NotEmpty(t, client.userAgent, "expected non-empty user agent")
	})
}

func TestDo_BasicRequest(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method, "expected GET method")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})

	client := newTestClient(t)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err, "failed to create request")

	resp, err := client.Do(t.Context(), req)
	require.NoError(t, err, "request failed")
	defer closeResponseBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode, "expected status 200")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read body")
	assert.Equal(t, "success", string(body), "expected body 'success'")
}

func TestDo_UserAgent(t *testing.T) {
	receivedUA := ""
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	})

	client := New(&Config{UserAgent: "CustomAgent/2.0"})
	t.Cleanup(client.Close)

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err, "request failed")
	defer closeResponseBody(t, resp)

	assert.Equal(t, "CustomAgent/2.0", receivedUA, "expected User-Agent 'CustomAgent/2.0'")
}

func TestNewFromSettings(t *testing.T) {
	receivedUA := ""
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	})

	t.Run("configured user agent", func(t *testing.T) {
		settings := &conf.Settings{Service: conf.ServiceSettings{UserAgent: "EndoscopyAI/9.9"}}
		client := NewFromSettings(settings)
		t.Cleanup(client.Close)

		resp, err := client.Get(t.Context(), server.URL)
		require.NoError(t, err, "request failed")
		defer closeResponseBody(t, resp)

		assert.Equal(t, "EndoscopyAI/9.9", receivedUA, "expected the configured User-Agent on the wire")
	})

	t.Run("empty settings fall back to defaults", func(t *testing.T) {
		client := NewFromSettings(&conf.Settings{})
		t.Cleanup(client.Close)

		assert.Equal(t, defaultUserAgent, client.userAgent)
		assert.Equal(t, DefaultTimeout, client.defaultTimeout)
	})
}

func TestDo_ContextTimeout(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err, "failed to create request")

	resp, err := client.Do(ctx, req)
	defer closeResponseBody(t, resp)

	require.Error(t, err, "expected timeout error")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "expected context.DeadlineExceeded error")
}

func TestDo_DefaultTimeout(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	client := New(&Config{DefaultTimeout: 50 * time.Millisecond})
	t.Cleanup(client.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err, "failed to create request")

	// Context has no deadline, so the client default should apply
	resp, err := client.Do(t.Context(), req)
	defer closeResponseBody(t, resp)

	require.Error(t, err, "expected timeout error")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "expected context.DeadlineExceeded error")
}

func TestPost_JSONBody(t *testing.T) {
	var receivedCT string
	var receivedBody []byte
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedCT = r.Header.Get("Content-Type")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	})

	client := newTestClient(t)

	payload := map[string]string{"predicted_class": "polyp"}
	resp, err := client.Post(t.Context(), server.URL, "", payload)
	require.NoError(t, err, "POST failed")
	defer closeResponseBody(t, resp)

	assert.Equal(t, http.StatusCreated, resp.StatusCode, "expected status 201")
	assert.Equal(t, "application/json", receivedCT, "expected JSON content type for marshaled body")
	assert.JSONEq(t, `{"predicted_class":"polyp"}`, string(receivedBody))
}

func TestDo_Hooks(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t)

	var beforeCalled, afterCalled bool
	client.SetBeforeRequestHook(func(r *http.Request) {
		beforeCalled = true
	})
	client.SetAfterResponseHook(func(r *http.Request, resp *http.Response, err error) {
		afterCalled = true
		assert.NoError(t, err, "after hook captured unexpected error")
	})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err, "request failed")
	defer closeResponseBody(t, resp)

	assert.True(t, beforeCalled, "before hook was not called")
	assert.True(t, afterCalled, "after hook was not called")
}
