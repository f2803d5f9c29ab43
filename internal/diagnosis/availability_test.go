package diagnosis

import (
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
)

const probeURL = "http://backend.test/health"

// newMockedTracker returns a tracker whose HTTP layer is intercepted by
// httpmock.
func newMockedTracker(t *testing.T) *AvailabilityTracker {
	t.Helper()

	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewAvailabilityTracker(testSettings("http://backend.test"), client)
}

func TestProbeUpdatesAvailability(t *testing.T) {
	tracker := newMockedTracker(t)
	httpmock.RegisterResponder(http.MethodGet, probeURL,
		httpmock.NewStringResponder(http.StatusOK, `{"deit3_available": true, "vit_available": false}`))

	avail := tracker.Probe(t.Context())
	assert.True(t, avail.DeiT3)
	assert.False(t, avail.ViT)

	assert.True(t, tracker.IsAvailable(ModelDeiT3))
	assert.False(t, tracker.IsAvailable(ModelViT))
	assert.True(t, tracker.IsAvailable(ModelEnsemble), "ensemble is never gated by the probe")
}

func TestProbeCachesResult(t *testing.T) {
	tracker := newMockedTracker(t)
	httpmock.RegisterResponder(http.MethodGet, probeURL,
		httpmock.NewStringResponder(http.StatusOK, `{"deit3_available": true, "vit_available": true}`))

	tracker.Probe(t.Context())
	tracker.Probe(t.Context())
	tracker.Probe(t.Context())

	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "repeated probes within the TTL are served from cache")
}

func TestRefreshDropsCache(t *testing.T) {
	tracker := newMockedTracker(t)
	httpmock.RegisterResponder(http.MethodGet, probeURL,
		httpmock.NewStringResponder(http.StatusOK, `{"deit3_available": true, "vit_available": true}`))

	tracker.Probe(t.Context())
	tracker.Refresh(t.Context())

	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestProbeFailureKeepsPreviousAvailability(t *testing.T) {
	tracker := newMockedTracker(t)
	httpmock.RegisterResponder(http.MethodGet, probeURL,
		httpmock.NewStringResponder(http.StatusOK, `{"deit3_available": true, "vit_available": true}`))

	avail := tracker.Probe(t.Context())
	require.True(t, avail.DeiT3)

	httpmock.Reset()
	httpmock.RegisterResponder(http.MethodGet, probeURL,
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	// Failure is swallowed; the previous map survives.
	avail = tracker.Refresh(t.Context())
	assert.True(t, avail.DeiT3)
	assert.True(t, avail.ViT)
}

func TestProbeMalformedBodyKeepsPreviousAvailability(t *testing.T) {
	tracker := newMockedTracker(t)
	httpmock.RegisterResponder(http.MethodGet, probeURL,
		httpmock.NewStringResponder(http.StatusOK, "not json"))

	avail := tracker.Probe(t.Context())
	assert.False(t, avail.DeiT3)
	assert.False(t, avail.ViT)
}

func TestProbeAbsentFieldsDefaultToUnavailable(t *testing.T) {
	tracker := newMockedTracker(t)
	httpmock.RegisterResponder(http.MethodGet, probeURL,
		httpmock.NewStringResponder(http.StatusOK, `{"deit3_available": true}`))

	avail := tracker.Probe(t.Context())
	assert.True(t, avail.DeiT3)
	assert.False(t, avail.ViT)
}

func TestModelIDValid(t *testing.T) {
	t.Parallel()

	assert.True(t, ModelEnsemble.Valid())
	assert.True(t, ModelDeiT3.Valid())
	assert.True(t, ModelViT.Valid())
	assert.False(t, ModelID("resnet").Valid())
	assert.False(t, ModelID("").Valid())
}

func TestSelectorRejectsUnknownAndUnavailable(t *testing.T) {
	tracker := newMockedTracker(t)
	httpmock.RegisterResponder(http.MethodGet, probeURL,
		httpmock.NewStringResponder(http.StatusOK, `{"deit3_available": true, "vit_available": false}`))
	tracker.Probe(t.Context())

	selector := NewModelSelector(tracker)
	assert.Equal(t, ModelEnsemble, selector.Current(), "default selection is the ensemble")

	err := selector.Select(ModelID("resnet"))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, ModelEnsemble, selector.Current())

	err = selector.Select(ModelViT)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelAvailability))
	assert.Equal(t, ModelEnsemble, selector.Current(), "failed selection leaves the current choice unchanged")

	require.NoError(t, selector.Select(ModelDeiT3))
	assert.Equal(t, ModelDeiT3, selector.Current())
}
