// ABOUTME: Physical time providers feeding the hybrid logical clock
// ABOUTME: System, manual and background-refreshed memoized sources

package hlc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SystemProvider reads the local wall clock.
type SystemProvider struct{}

// PhysicalTime implements PhysicalTimeProvider.
func (SystemProvider) PhysicalTime() (uint64, error) {
	return uint64(FromTime(time.Now())), nil
}

// ManualProvider returns a reading set by the caller. The zero value reports
// ErrTimeNotAvailable until Set is called.
type ManualProvider struct {
	mu    sync.RWMutex
	value uint64
	set   bool
}

// NewManualProvider creates a provider holding t.
func NewManualProvider(t NTPTime) *ManualProvider {
	return &ManualProvider{value: uint64(t), set: true}
}

// PhysicalTime implements PhysicalTimeProvider.
func (m *ManualProvider) PhysicalTime() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return 0, ErrTimeNotAvailable
	}
	return m.value, nil
}

// Set replaces the current reading.
func (m *ManualProvider) Set(t NTPTime) {
	m.mu.Lock()
	m.value, m.set = uint64(t), true
	m.mu.Unlock()
}

// Advance moves the current reading forward by d.
func (m *ManualProvider) Advance(d time.Duration) {
	m.mu.Lock()
	m.value = uint64(NTPTime(m.value).Add(d))
	m.mu.Unlock()
}

// TimeSource fetches an authoritative reading, possibly over the network.
type TimeSource interface {
	Name() string
	Fetch(ctx context.Context) (NTPTime, error)
}

// SystemSource adapts the local wall clock to a TimeSource.
type SystemSource struct{}

func (SystemSource) Name() string { return "system" }

func (SystemSource) Fetch(context.Context) (NTPTime, error) {
	return FromTime(time.Now()), nil
}

// DefaultRefreshInterval matches the refresh period used for remote sources.
const DefaultRefreshInterval = 30 * time.Minute

// RefreshingProvider memoizes readings from a list of sources and refreshes
// them in the background. Between refreshes the reading is extrapolated with
// the monotonic clock, so PhysicalTime never waits on a source.
//
// Sources are tried in order. A source that fails moves to the end of the
// list; one that succeeds stays first.
type RefreshingProvider struct {
	interval time.Duration
	log      zerolog.Logger
	recorder RefreshRecorder
	now      func() time.Time

	fetchMu sync.Mutex
	sources []TimeSource

	mu      sync.RWMutex
	reading NTPTime
	at      time.Time
	ok      bool

	stop chan struct{}
	done chan struct{}
}

// RefreshOption configures a RefreshingProvider.
type RefreshOption func(*RefreshingProvider)

// WithRefreshInterval sets the background refresh period.
func WithRefreshInterval(d time.Duration) RefreshOption {
	return func(p *RefreshingProvider) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger attaches a logger for refresh failures.
func WithLogger(log zerolog.Logger) RefreshOption {
	return func(p *RefreshingProvider) {
		p.log = log
	}
}

// RefreshRecorder observes refresh outcomes per source.
type RefreshRecorder interface {
	TimeRefreshed(source string, err error)
}

// WithRecorder attaches a recorder for refresh outcomes.
func WithRecorder(r RefreshRecorder) RefreshOption {
	return func(p *RefreshingProvider) {
		p.recorder = r
	}
}

// NewRefreshingProvider creates a provider over the given sources. No reading
// is taken until Refresh or Start is called.
func NewRefreshingProvider(sources []TimeSource, opts ...RefreshOption) *RefreshingProvider {
	p := &RefreshingProvider{
		interval: DefaultRefreshInterval,
		log:      zerolog.Nop(),
		now:      time.Now,
		sources:  append([]TimeSource(nil), sources...),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PhysicalTime implements PhysicalTimeProvider.
func (p *RefreshingProvider) PhysicalTime() (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ok {
		return 0, ErrTimeNotAvailable
	}
	return uint64(p.reading.Add(p.now().Sub(p.at))), nil
}

// Refresh fetches a new reading from the first source that answers.
func (p *RefreshingProvider) Refresh(ctx context.Context) error {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	var errs []error
	for range len(p.sources) {
		src := p.sources[0]
		reading, err := src.Fetch(ctx)
		if p.recorder != nil {
			p.recorder.TimeRefreshed(src.Name(), err)
		}
		if err == nil {
			p.mu.Lock()
			p.reading, p.at, p.ok = reading, p.now(), true
			p.mu.Unlock()
			p.log.Debug().Str("source", src.Name()).Msg("physical time refreshed")
			return nil
		}
		p.log.Warn().Err(err).Str("source", src.Name()).Msg("time source failed")
		errs = append(errs, err)
		p.sources = append(p.sources[1:], src)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return errors.New("hlc: no time sources configured")
	}
	return errors.Join(errs...)
}

// Start takes an initial reading and keeps refreshing until ctx is done or
// Stop is called. A failed initial reading is logged, not returned; callers
// observe it as ErrTimeNotAvailable.
func (p *RefreshingProvider) Start(ctx context.Context) {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	if err := p.Refresh(ctx); err != nil {
		p.log.Error().Err(err).Msg("initial time refresh failed")
	}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				if err := p.Refresh(ctx); err != nil {
					p.log.Error().Err(err).Msg("time refresh failed")
				}
			}
		}
	}()
}

// Stop ends background refreshing and waits for it to exit.
func (p *RefreshingProvider) Stop() {
	if p.stop == nil {
		return
	}
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
}
