package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Purger removes expired entries and reports how many were removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RetentionScheduler periodically sweeps expired cache entries.
// Reads already treat expired entries as absent; the sweep only keeps the
// table from growing.
type RetentionScheduler struct {
	purger   Purger
	config   *RetentionConfig
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.RWMutex
	running  bool

	lastSweep  time.Time
	lastError  error
	sweepCount int
	purged     int64
	failures   int
}

// RetentionConfig holds configuration for the retention scheduler.
type RetentionConfig struct {
	// Interval is how often to sweep.
	Interval time.Duration

	// StartImmediately runs a sweep as soon as the scheduler starts.
	StartImmediately bool

	// OnSweep is called after each sweep attempt.
	OnSweep func(purged int64, err error)
}

// DefaultRetentionConfig returns a config sweeping once an hour.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		Interval:         time.Hour,
		StartImmediately: true,
	}
}

// NewRetentionScheduler creates a new retention scheduler.
func NewRetentionScheduler(purger Purger, config *RetentionConfig) *RetentionScheduler {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	return &RetentionScheduler{
		purger: purger,
		config: config,
	}
}

// Start starts the scheduler.
// Returns an error if the scheduler is already running.
func (s *RetentionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("invalid retention interval: %s", s.config.Interval)
	}

	s.ticker = time.NewTicker(s.config.Interval)
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.run(s.ticker, s.stopChan, s.done)
	return nil
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (s *RetentionScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.ticker.Stop()
	close(s.stopChan)
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	return nil
}

func (s *RetentionScheduler) run(ticker *time.Ticker, stop, done chan struct{}) {
	defer close(done)

	if s.config.StartImmediately {
		s.Sweep(context.Background())
	}
	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-stop:
			return
		}
	}
}

// Sweep runs one purge and records the outcome.
func (s *RetentionScheduler) Sweep(ctx context.Context) {
	n, err := s.purger.PurgeExpired(ctx)

	s.mu.Lock()
	s.lastSweep = time.Now()
	s.lastError = err
	s.sweepCount++
	if err != nil {
		s.failures++
	} else {
		s.purged += n
	}
	handler := s.config.OnSweep
	s.mu.Unlock()

	if handler != nil {
		handler(n, err)
	}
}

// IsRunning returns whether the scheduler is currently running.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns the current scheduler status.
func (s *RetentionScheduler) Status() *RetentionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next time.Time
	if s.running && !s.lastSweep.IsZero() {
		next = s.lastSweep.Add(s.config.Interval)
	}
	return &RetentionStatus{
		Running:      s.running,
		Interval:     s.config.Interval,
		LastSweep:    s.lastSweep,
		NextSweep:    next,
		SweepCount:   s.sweepCount,
		Purged:       s.purged,
		FailureCount: s.failures,
		LastError:    s.lastError,
	}
}

// RetentionStatus contains information about the scheduler state.
type RetentionStatus struct {
	Running      bool
	Interval     time.Duration
	LastSweep    time.Time
	NextSweep    time.Time
	SweepCount   int
	Purged       int64
	FailureCount int
	LastError    error
}

// String returns a human-readable representation of the scheduler status.
func (s *RetentionStatus) String() string {
	if !s.Running {
		return "Retention: Stopped"
	}

	status := "Retention: Running\n"
	status += fmt.Sprintf("  Interval: %s\n", s.Interval)
	status += fmt.Sprintf("  Sweeps: %d\n", s.SweepCount)
	status += fmt.Sprintf("  Purged: %d\n", s.Purged)
	status += fmt.Sprintf("  Failures: %d\n", s.FailureCount)
	if !s.LastSweep.IsZero() {
		status += fmt.Sprintf("  Last Sweep: %s\n", s.LastSweep.Format(time.RFC3339))
	}
	if !s.NextSweep.IsZero() {
		status += fmt.Sprintf("  Next Sweep: %s\n", s.NextSweep.Format(time.RFC3339))
	}
	if s.LastError != nil {
		status += fmt.Sprintf("  Last Error: %v\n", s.LastError)
	}
	return status
}
