package diagnosis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/patrickmn/go-cache"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/observability/metrics"
)

// ModelID identifies an inference backend variant.
type ModelID string

const (
	// ModelEnsemble is the virtual variant combining both classifiers.
	// It is always available regardless of the capability probe.
	ModelEnsemble ModelID = "ensemble"
	ModelDeiT3    ModelID = "deit3"
	ModelViT      ModelID = "vit"
)

// Valid reports whether id names a known backend variant.
func (id ModelID) Valid() bool {
	switch id {
	case ModelEnsemble, ModelDeiT3, ModelViT:
		return true
	}
	return false
}

// ModelAvailability records which individual backend variants are usable.
// The ensemble variant is never gated by this map.
type ModelAvailability struct {
	DeiT3 bool
	ViT   bool
}

const availabilityCacheKey = "health"

// AvailabilityTracker is process-wide state populated from the capability
// probe. The probe is one-shot at startup and refreshable on demand; there
// is no background polling. Probe failures are swallowed so they can never
// block the rest of the workflow from running in ensemble-only mode.
type AvailabilityTracker struct {
	baseURL  string
	endpoint string
	timeout  time.Duration

	httpClient *httpclient.Client
	probeCache *cache.Cache
	logger     *slog.Logger
	metrics    *metrics.DiagnosisMetrics

	mu           sync.RWMutex
	availability ModelAvailability
}

// SetMetrics attaches probe metrics recording. May be left unset.
func (t *AvailabilityTracker) SetMetrics(m *metrics.DiagnosisMetrics) {
	t.metrics = m
}

func (t *AvailabilityTracker) recordProbe(status string) {
	if t.metrics != nil {
		t.metrics.RecordProbe(status)
	}
}

// NewAvailabilityTracker creates a tracker against the configured service.
// All variants start unavailable until the first successful probe.
func NewAvailabilityTracker(settings *conf.Settings, client *httpclient.Client) *AvailabilityTracker {
	ttl := time.Duration(settings.Probe.CacheTTL) * time.Second
	t := &AvailabilityTracker{
		baseURL:    settings.Service.BaseURL,
		endpoint:   settings.Probe.Endpoint,
		timeout:    time.Duration(settings.Probe.Timeout) * time.Second,
		httpClient: client,
		probeCache: cache.New(ttl, ttl*2),
		logger:     logging.ServiceLogger("availability"),
	}
	t.logger.Info("Availability tracker initialized",
		"base_url", t.baseURL,
		"endpoint", t.endpoint,
		"cache_ttl", ttl)
	return t
}

// Probe performs a one-shot read of backend capability and replaces the
// availability map. Results are cached for the configured TTL, so repeated
// calls within the TTL are served without a network round trip. On failure
// the map keeps its previous value and the error is only logged; the
// contract is that the probe must never surface a user-facing failure.
func (t *AvailabilityTracker) Probe(ctx context.Context) ModelAvailability {
	if cached, found := t.probeCache.Get(availabilityCacheKey); found {
		if avail, ok := cached.(ModelAvailability); ok {
			t.logger.Debug("Capability probe cache hit", "deit3", avail.DeiT3, "vit", avail.ViT)
			t.recordProbe("cached")
			return avail
		}
	}

	avail, err := t.fetch(ctx)
	if err != nil {
		t.logger.Warn("Capability probe failed, keeping previous availability", "error", err)
		t.recordProbe("error")
		return t.Availability()
	}
	t.recordProbe("success")

	t.mu.Lock()
	t.availability = avail
	t.mu.Unlock()
	t.probeCache.Set(availabilityCacheKey, avail, cache.DefaultExpiration)

	t.logger.Info("Capability probe completed", "deit3", avail.DeiT3, "vit", avail.ViT)
	return avail
}

// Refresh drops the cached probe result and performs a fresh probe.
func (t *AvailabilityTracker) Refresh(ctx context.Context) ModelAvailability {
	t.probeCache.Delete(availabilityCacheKey)
	return t.Probe(ctx)
}

// fetch executes the HTTP round trip for the capability probe.
func (t *AvailabilityTracker) fetch(ctx context.Context) (ModelAvailability, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	url := t.baseURL + t.endpoint
	resp, err := t.httpClient.Get(reqCtx, url)
	if err != nil {
		return ModelAvailability{}, fmt.Errorf("capability probe request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ModelAvailability{}, fmt.Errorf("capability probe returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelAvailability{}, fmt.Errorf("failed to read probe response: %w", err)
	}

	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return ModelAvailability{}, fmt.Errorf("failed to parse probe response: %w", err)
	}

	// Absent fields default to unavailable.
	var avail ModelAvailability
	if v, err := obj.GetBoolean("deit3_available"); err == nil {
		avail.DeiT3 = v
	}
	if v, err := obj.GetBoolean("vit_available"); err == nil {
		avail.ViT = v
	}
	return avail, nil
}

// Availability returns the current availability map.
func (t *AvailabilityTracker) Availability() ModelAvailability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.availability
}

// IsAvailable reports whether the given variant may be selected.
// Ensemble always qualifies.
func (t *AvailabilityTracker) IsAvailable(id ModelID) bool {
	if id == ModelEnsemble {
		return true
	}
	avail := t.Availability()
	switch id {
	case ModelDeiT3:
		return avail.DeiT3
	case ModelViT:
		return avail.ViT
	default:
		return false
	}
}
