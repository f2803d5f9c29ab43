package diagnosis

import (
	"sync"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
)

// ModelSelector picks which inference backend variant to request, constrained
// by the availability tracker. The UI keeps unavailable variants unreachable,
// but Select rejects them defensively regardless of caller discipline.
type ModelSelector struct {
	tracker *AvailabilityTracker

	mu      sync.RWMutex
	current ModelID
}

// NewModelSelector creates a selector defaulting to the ensemble variant.
func NewModelSelector(tracker *AvailabilityTracker) *ModelSelector {
	return &ModelSelector{
		tracker: tracker,
		current: ModelEnsemble,
	}
}

// Select updates the chosen variant. The selection succeeds only for the
// ensemble or a variant the tracker reports as available; otherwise the
// current selection is left unchanged and an error describes the rejection.
func (s *ModelSelector) Select(id ModelID) error {
	if !id.Valid() {
		return errors.Newf("unknown model %q", string(id)).
			Component("diagnosis").
			Category(errors.CategoryValidation).
			Context("model", string(id)).
			Build()
	}
	if !s.tracker.IsAvailable(id) {
		return errors.Newf("model %q is not available", string(id)).
			Component("diagnosis").
			Category(errors.CategoryModelAvailability).
			Context("model", string(id)).
			Build()
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return nil
}

// Current returns the currently selected variant.
func (s *ModelSelector) Current() ModelID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
