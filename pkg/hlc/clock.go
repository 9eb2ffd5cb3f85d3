// ABOUTME: Hybrid Logical Clock issuing causally consistent timestamps
// ABOUTME: Local/send updates and receive-event merges under one mutex

// Package hlc implements a Hybrid Logical Clock over NTP-shaped physical time.
package hlc

import (
	"errors"
	"sync"
)

var (
	// ErrNoPhysicalTime indicates a clock without a physical time provider
	ErrNoPhysicalTime = errors.New("hlc: no physical time provider configured")

	// ErrTimeNotAvailable indicates the provider has no reading yet
	ErrTimeNotAvailable = errors.New("hlc: physical time not yet available")
)

// PhysicalTimeProvider supplies coarse real-world time as an NTP value.
// Implementations must not block on I/O; Clock calls it on every update.
type PhysicalTimeProvider interface {
	PhysicalTime() (uint64, error)
}

// Clock is a Hybrid Logical Clock. It is safe for concurrent use.
type Clock struct {
	provider PhysicalTimeProvider

	mu sync.Mutex
	ts HybridTimestamp
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithStart seeds the clock state, e.g. with the last timestamp recorded by a
// previous writer session.
func WithStart(ts HybridTimestamp) ClockOption {
	return func(c *Clock) {
		c.ts = ts
	}
}

// NewClock creates a clock starting at Epoch.
func NewClock(provider PhysicalTimeProvider, opts ...ClockOption) (*Clock, error) {
	if provider == nil {
		return nil, ErrNoPhysicalTime
	}
	c := &Clock{provider: provider, ts: Epoch}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now returns the last issued timestamp without advancing the clock.
func (c *Clock) Now() HybridTimestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

// Update advances the clock for a local or send event and returns the new
// timestamp.
func (c *Clock) Update() (HybridTimestamp, error) {
	physical, err := c.physical()
	if err != nil {
		return HybridTimestamp{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if CompareNTP(c.ts.LogicalTime, physical) < 0 {
		c.ts.LogicalTime = physical
		c.ts.LogicalCounter = 0
	} else {
		c.ts.LogicalCounter++
	}
	return c.ts, nil
}

// Observe merges a timestamp received from another clock.
func (c *Clock) Observe(remote HybridTimestamp) (HybridTimestamp, error) {
	return c.UpdateFrom(remote.LogicalTime, remote.LogicalCounter)
}

// UpdateFrom advances the clock for a receive event carrying the remote
// logical time and counter. The result orders after both the previous local
// state and the remote timestamp.
func (c *Clock) UpdateFrom(remoteTime, remoteCounter uint64) (HybridTimestamp, error) {
	physical, err := c.physical()
	if err != nil {
		return HybridTimestamp{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case CompareNTP(physical, remoteTime) > 0 && CompareNTP(physical, c.ts.LogicalTime) > 0:
		c.ts.LogicalTime = physical
		c.ts.LogicalCounter = 0
	case CompareNTP(remoteTime, c.ts.LogicalTime) > 0:
		c.ts.LogicalTime = remoteTime
		c.ts.LogicalCounter = remoteCounter + 1
	case CompareNTP(c.ts.LogicalTime, remoteTime) > 0:
		c.ts.LogicalCounter++
	default:
		c.ts.LogicalCounter = max(c.ts.LogicalCounter, remoteCounter) + 1
	}
	return c.ts, nil
}

// physical reads the provider outside the clock lock and truncates the reading
// to the resolution kept by the packed form.
func (c *Clock) physical() (uint64, error) {
	if c == nil || c.provider == nil {
		return 0, ErrNoPhysicalTime
	}
	p, err := c.provider.PhysicalTime()
	if err != nil {
		return 0, err
	}
	return p &^ counterMask, nil
}
