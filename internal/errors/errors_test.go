package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Parallel()

	t.Run("full builder chain", func(t *testing.T) {
		t.Parallel()
		err := Newf("request failed: %d", 502).
			Component("inference").
			Category(CategoryHTTP).
			Context("status_code", 502).
			Build()

		require.NotNil(t, err)
		assert.Equal(t, "request failed: 502", err.Error())
		assert.Equal(t, "inference", err.Component)
		assert.Equal(t, CategoryHTTP, err.Category)
		assert.Equal(t, 502, err.GetContext()["status_code"])
		assert.WithinDuration(t, time.Now(), err.Timestamp, time.Second)
	})

	t.Run("defaults applied on empty builder", func(t *testing.T) {
		t.Parallel()
		err := New(NewStd("boom")).Build()
		assert.Equal(t, ComponentUnknown, err.Component)
		assert.Equal(t, CategoryGeneric, err.Category)
		assert.Nil(t, err.GetContext())
	})
}

func TestUnwrapAndIs(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	wrapped := New(fmt.Errorf("outer: %w", sentinel)).Category(CategoryNetwork).Build()

	assert.True(t, Is(wrapped, sentinel), "wrapped sentinel should match via Is")
	assert.Equal(t, "outer: sentinel", wrapped.GetMessage())

	var ee *EnhancedError
	require.True(t, As(wrapped, &ee))
	assert.Equal(t, CategoryNetwork, ee.Category)
}

func TestCategoryHelpers(t *testing.T) {
	t.Parallel()

	netErr := NetworkError(NewStd("connection refused"), "http://127.0.0.1:8000/predict", 60*time.Second)
	assert.True(t, IsNetwork(netErr))
	assert.False(t, IsValidation(netErr))
	assert.Equal(t, 60.0, netErr.GetContext()["timeout_seconds"])

	valErr := ValidationError("Please select an image file")
	assert.True(t, IsValidation(valErr))
	assert.False(t, IsNetwork(valErr))
	assert.Equal(t, "Please select an image file", valErr.Error())

	timeoutErr := New(NewStd("deadline exceeded")).Category(CategoryTimeout).Build()
	assert.True(t, IsNetwork(timeoutErr), "timeouts are surfaced as connectivity failures")

	assert.True(t, IsCategory(New(NewStd("x")).Category(CategoryMalformedResponse).Build(), CategoryMalformedResponse))
	assert.False(t, IsCategory(NewStd("plain"), CategoryMalformedResponse))
}
