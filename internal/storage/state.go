// -------------------------------------------------------------------------------
// AvailabilityState - Shared Store Handles and Secondary Flag
//
// Author: Alex Freidah
//
// Holds the primary handle, the optional secondary handle, and the flag that
// says whether the secondary is currently usable. Constructed once at startup
// and passed to every component that needs it. Many readers, rare writers;
// every method is an in-memory critical section with no I/O.
// -------------------------------------------------------------------------------

package storage

import "sync"

// AvailabilityState is safe for concurrent use.
type AvailabilityState struct {
	mu        sync.RWMutex
	primary   *Handle
	secondary OptionalHandle
	available bool
}

// Status is a point-in-time view of both stores for status reporting.
type Status struct {
	PrimaryAvailable   bool
	SecondaryPresent   bool
	SecondaryAvailable bool
}

// NewAvailabilityState builds the state from the handles produced by
// Connector.Establish. A secondary that connected at startup has just been
// verified, so the flag starts true when one is present.
func NewAvailabilityState(primary *Handle, secondary OptionalHandle) *AvailabilityState {
	if primary == nil {
		panic("storage: primary handle is required")
	}
	return &AvailabilityState{
		primary:   primary,
		secondary: secondary,
		available: secondary.Present(),
	}
}

// Primary returns the primary handle. It never changes after construction.
func (s *AvailabilityState) Primary() *Handle {
	return s.primary
}

// SecondaryIfAvailable returns the secondary handle only while the flag is
// true. Flag and handle are read under the same lock.
func (s *AvailabilityState) SecondaryIfAvailable() (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.available {
		return nil, false
	}
	return s.secondary.Get()
}

// Secondary returns the secondary handle regardless of the flag.
func (s *AvailabilityState) Secondary() OptionalHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secondary
}

// Available reports the current flag value.
func (s *AvailabilityState) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// SetAvailability sets the flag and reports whether it changed. Setting the
// flag true without a secondary handle is refused.
func (s *AvailabilityState) SetAvailability(available bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if available && !s.secondary.Present() {
		return false
	}
	if s.available == available {
		return false
	}
	s.available = available
	return true
}

// ReplaceSecondary swaps the secondary handle and returns the previous one so
// the caller can close it outside the lock. Replacing with None clears the
// flag.
func (s *AvailabilityState) ReplaceSecondary(h OptionalHandle) OptionalHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.secondary
	s.secondary = h
	if !h.Present() {
		s.available = false
	}
	return prev
}

// Status returns a consistent snapshot of both stores.
func (s *AvailabilityState) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		PrimaryAvailable:   true,
		SecondaryPresent:   s.secondary.Present(),
		SecondaryAvailable: s.available,
	}
}
