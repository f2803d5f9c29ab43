package diagnosis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/observability/metrics"
)

// ErrRequestInFlight is the caller-visible guard returned when a second
// submission is attempted while one is outstanding.
var ErrRequestInFlight = errors.NewStd("analysis already in progress")

// ErrStaleResponse marks a response that completed after the session state it
// belonged to was reset; the payload is discarded, never interpreted.
var ErrStaleResponse = errors.NewStd("response discarded: state was reset while the request was in flight")

// connectivityMessage is the generic message surfaced for network-class
// failures; the underlying transport error is logged, not shown.
const connectivityMessage = "Unable to connect to server. Please ensure the backend is running."

const (
	stateIdle int32 = iota
	stateInFlight
)

const predictEndpoint = "/predict"

// InferenceClient performs the inference round trip with
// at-most-one-in-flight semantics: Idle -> InFlight -> Idle, a second Submit
// while InFlight is rejected. Each accepted request carries a monotonically
// increasing generation tag; Invalidate bumps the generation so a response
// arriving for a stale generation is discarded instead of overwriting state
// the caller has since cleared.
type InferenceClient struct {
	baseURL string
	timeout time.Duration

	httpClient *httpclient.Client
	logger     *slog.Logger
	metrics    *metrics.DiagnosisMetrics // nil when metrics are disabled

	state      atomic.Int32
	generation atomic.Uint64
}

// NewInferenceClient creates a client against the configured service.
// The metrics argument may be nil.
func NewInferenceClient(settings *conf.Settings, client *httpclient.Client, m *metrics.DiagnosisMetrics) *InferenceClient {
	c := &InferenceClient{
		baseURL:    settings.Service.BaseURL,
		timeout:    time.Duration(settings.Service.Timeout) * time.Second,
		httpClient: client,
		logger:     logging.ServiceLogger("inference"),
		metrics:    m,
	}
	c.logger.Info("Inference client initialized",
		"base_url", c.baseURL,
		"timeout", c.timeout)
	return c
}

// InFlight reports whether a submission is currently outstanding.
func (c *InferenceClient) InFlight() bool {
	return c.state.Load() == stateInFlight
}

// Invalidate bumps the request generation. A response completing for an
// earlier generation is discarded with ErrStaleResponse. Called by the
// session when the user resets state or picks a new image while a request
// is in flight.
func (c *InferenceClient) Invalidate() {
	c.generation.Add(1)
}

// Generation returns the current request generation. Callers installing an
// interpreted result compare it against the generation Submit returned to
// catch an invalidation that landed after the round trip completed.
func (c *InferenceClient) Generation() uint64 {
	return c.generation.Load()
}

// Submit is the single entry point for inference. It serializes the request,
// performs the round trip and returns the raw response body for the
// interpreter, together with the generation the request was accepted under.
// Exceeding the configured wait bound is a network-class failure, not a
// server error.
func (c *InferenceClient) Submit(ctx context.Context, req *InferenceRequest) ([]byte, uint64, error) {
	if !c.state.CompareAndSwap(stateIdle, stateInFlight) {
		c.recordInference(string(req.Model), "rejected")
		return nil, 0, errors.New(ErrRequestInFlight).
			Component("diagnosis").
			Category(errors.CategoryState).
			Build()
	}
	defer c.state.Store(stateIdle)

	generation := c.generation.Add(1)
	start := time.Now()

	c.logger.Info("Submitting inference request",
		"request_id", req.ID,
		"model", req.Model,
		"asset_id", req.Asset.ID,
		"generation", generation)

	raw, err := c.roundTrip(ctx, req)
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordInferenceDuration(string(req.Model), elapsed.Seconds())
	}
	if err != nil {
		c.logger.Warn("Inference request failed",
			"request_id", req.ID,
			"model", req.Model,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		return nil, generation, err
	}

	if c.generation.Load() != generation {
		c.recordInference(string(req.Model), "discarded")
		c.logger.Info("Discarding stale inference response",
			"request_id", req.ID,
			"generation", generation,
			"current_generation", c.generation.Load())
		return nil, generation, errors.New(ErrStaleResponse).
			Component("diagnosis").
			Category(errors.CategoryState).
			Context("request_id", req.ID).
			Build()
	}

	c.recordInference(string(req.Model), "success")
	c.logger.Info("Inference request completed",
		"request_id", req.ID,
		"model", req.Model,
		"duration_ms", elapsed.Milliseconds(),
		"response_bytes", len(raw))
	return raw, generation, nil
}

// roundTrip executes the HTTP exchange and maps failures onto the error
// taxonomy: network (unreachable or timed out), server (non-success status
// with an error message body surfaced verbatim).
func (c *InferenceClient) roundTrip(ctx context.Context, req *InferenceRequest) ([]byte, error) {
	body, contentType, err := req.EncodeMultipart()
	if err != nil {
		c.recordInference(string(req.Model), "encode_error")
		return nil, errors.New(err).
			Component("diagnosis").
			Category(errors.CategoryValidation).
			Context("request_id", req.ID).
			Build()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + predictEndpoint
	resp, err := c.httpClient.Post(reqCtx, endpoint, contentType, body)
	if err != nil {
		c.recordInference(string(req.Model), "network_error")
		return nil, c.networkError(err, endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordInference(string(req.Model), "network_error")
		return nil, c.networkError(fmt.Errorf("failed to read response body: %w", err), endpoint)
	}

	if resp.StatusCode != http.StatusOK {
		c.recordInference(string(req.Model), "server_error")
		return nil, c.serverError(resp.StatusCode, responseBody)
	}

	return responseBody, nil
}

// networkError classifies a transport failure. Timeouts are tracked under
// their own category but still surface the generic connectivity message.
func (c *InferenceClient) networkError(err error, endpoint string) error {
	category := errors.CategoryNetwork

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		category = errors.CategoryTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		category = errors.CategoryTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var dnsErr *net.DNSError
		if errors.As(urlErr.Err, &dnsErr) {
			c.logger.Error("DNS resolution failed", "url", endpoint, "error", err)
		}
	}

	return errors.New(fmt.Errorf("%s: %w", connectivityMessage, err)).
		Component("diagnosis").
		Category(category).
		NetworkContext(endpoint, c.timeout).
		Build()
}

// serverError surfaces the service's error message verbatim when the body
// carries one, falling back to a generic message otherwise.
func (c *InferenceClient) serverError(statusCode int, body []byte) error {
	message := "Server error occurred"
	if obj, err := jason.NewObjectFromBytes(body); err == nil {
		if msg, err := obj.GetString("error"); err == nil && msg != "" {
			message = msg
		}
	}
	return errors.Newf("%s", message).
		Component("diagnosis").
		Category(errors.CategoryHTTP).
		Context("status_code", statusCode).
		Build()
}

func (c *InferenceClient) recordInference(model, status string) {
	if c.metrics != nil {
		c.metrics.RecordInference(model, status)
	}
}
