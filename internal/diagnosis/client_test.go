package diagnosis

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
)

// newTestInferenceClient wires an inference client against a live test server.
func newTestInferenceClient(t *testing.T, handler http.HandlerFunc) *InferenceClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewInferenceClient(testSettings(server.URL), httpclient.New(nil), nil)
}

func buildTestRequest(t *testing.T) *InferenceRequest {
	t.Helper()

	req, err := RequestBuilder{
		Asset:      testAsset(t),
		Preprocess: DefaultPreprocessSettings(),
		Advanced:   DefaultAdvancedOptions(),
		Heatmap:    DefaultHeatmapSettings(),
	}.Build()
	require.NoError(t, err)
	return req
}

func TestSubmitSuccess(t *testing.T) {
	var gotPath string
	client := newTestInferenceClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ensemble", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(validResultJSON()))
	})

	raw, _, err := client.Submit(t.Context(), buildTestRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "/predict", gotPath)
	assert.JSONEq(t, validResultJSON(), string(raw))
	assert.False(t, client.InFlight(), "client returns to idle after completion")
}

func TestSubmitRejectsSecondWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := newTestInferenceClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = w.Write([]byte(validResultJSON()))
	})

	firstDone := make(chan error, 1)
	go func() {
		_, _, err := client.Submit(t.Context(), buildTestRequest(t))
		firstDone <- err
	}()
	<-started

	_, _, err := client.Submit(t.Context(), buildTestRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestInFlight))
	assert.True(t, errors.IsCategory(err, errors.CategoryState))

	close(release)
	require.NoError(t, <-firstDone, "the in-flight request is unaffected by the rejected one")
	assert.False(t, client.InFlight())
}

func TestSubmitServerErrorMessageSurfacedVerbatim(t *testing.T) {
	client := newTestInferenceClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": "Unsupported image format: TIFF"}`))
	})

	_, _, err := client.Submit(t.Context(), buildTestRequest(t))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
	assert.Contains(t, err.Error(), "Unsupported image format: TIFF")
}

func TestSubmitServerErrorWithoutMessageBody(t *testing.T) {
	client := newTestInferenceClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("panic in worker"))
	})

	_, _, err := client.Submit(t.Context(), buildTestRequest(t))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
	assert.Contains(t, err.Error(), "Server error occurred")
}

func TestSubmitConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	settings := testSettings(server.URL)
	server.Close() // nothing listens at the URL anymore

	client := NewInferenceClient(settings, httpclient.New(nil), nil)
	_, _, err := client.Submit(t.Context(), buildTestRequest(t))
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
	assert.Contains(t, err.Error(), "Unable to connect to server. Please ensure the backend is running.")
	assert.False(t, client.InFlight(), "client returns to idle after a failure")
}

// timeoutError mimics a transport-level timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "request timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestSubmitTimeoutClassifiedAsNetworkFailure(t *testing.T) {
	hc := httpclient.New(nil)
	httpmock.ActivateNonDefault(hc.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder(http.MethodPost, "http://backend.test/predict",
		httpmock.NewErrorResponder(timeoutError{}))

	client := NewInferenceClient(testSettings("http://backend.test"), hc, nil)
	_, _, err := client.Submit(t.Context(), buildTestRequest(t))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
	assert.True(t, errors.IsNetwork(err), "timeouts surface as network-class failures")
	assert.Contains(t, err.Error(), "Unable to connect to server")
}

func TestSubmitDiscardsResponseAfterInvalidate(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := newTestInferenceClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = w.Write([]byte(validResultJSON()))
	})

	done := make(chan error, 1)
	go func() {
		_, _, err := client.Submit(t.Context(), buildTestRequest(t))
		done <- err
	}()
	<-started

	client.Invalidate()
	close(release)

	err := <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStaleResponse))
	assert.False(t, client.InFlight(), "a discarded response still returns the client to idle")
}

func TestSubmitAcceptsNewRequestAfterInvalidate(t *testing.T) {
	client := newTestInferenceClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(validResultJSON()))
	})

	client.Invalidate()
	raw, _, err := client.Submit(t.Context(), buildTestRequest(t))
	require.NoError(t, err, "invalidation only affects requests that were in flight")
	assert.NotEmpty(t, raw)
}
