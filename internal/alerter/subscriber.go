package alerter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netspec/alertbatch/internal/types"
	"github.com/rs/zerolog"
)

const (
	defaultInitialDelay = time.Minute
	defaultInterval     = 30 * time.Minute
	defaultSendTimeout  = 30 * time.Second
)

// RecoveryDetector decides whether a pending alert has recovered since it fired.
type RecoveryDetector interface {
	IsRecovered(ctx context.Context, alert types.Alert) (bool, error)
}

// PolicyResolver partitions alerts into recipient groups. Every alert must end
// up in exactly one group.
type PolicyResolver interface {
	ResolveGroups(ctx context.Context, alerts types.AlertsByType) ([]types.RecipientGroup, error)
}

// Decorator renders the title and content of one aggregated message.
type Decorator interface {
	TitleAndContent(alerts types.AlertsByType) (string, string, error)
}

// MessageSender delivers one aggregated message.
type MessageSender interface {
	Send(ctx context.Context, msg types.Message) error
}

// Options configures a Subscriber.
type Options struct {
	Detector  RecoveryDetector
	Resolver  PolicyResolver
	Decorator Decorator
	Sender    MessageSender

	// Interval is the fixed delay between the end of one flush cycle and
	// the start of the next.
	Interval     time.Duration
	InitialDelay time.Duration
	// SendTimeout bounds a single Send call.
	SendTimeout time.Duration

	Logger zerolog.Logger
}

// Subscriber accumulates reported alerts and periodically flushes them as
// one aggregated message per recipient group.
type Subscriber struct {
	buffer    *Buffer
	detector  RecoveryDetector
	resolver  PolicyResolver
	decorator Decorator
	sender    MessageSender

	interval     time.Duration
	initialDelay time.Duration
	sendTimeout  time.Duration

	logger  zerolog.Logger
	trigger chan struct{}

	mu   sync.RWMutex
	last CycleResult
}

// NewSubscriber creates a subscriber. Zero durations fall back to defaults.
func NewSubscriber(opts Options) *Subscriber {
	s := &Subscriber{
		buffer:       NewBuffer(),
		detector:     opts.Detector,
		resolver:     opts.Resolver,
		decorator:    opts.Decorator,
		sender:       opts.Sender,
		interval:     opts.Interval,
		initialDelay: opts.InitialDelay,
		sendTimeout:  opts.SendTimeout,
		logger:       opts.Logger.With().Str("component", "alert-subscriber").Logger(),
		trigger:      make(chan struct{}, 1),
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.initialDelay <= 0 {
		s.initialDelay = defaultInitialDelay
	}
	if s.sendTimeout <= 0 {
		s.sendTimeout = defaultSendTimeout
	}
	return s
}

// Report queues an alert for the next flush cycle. Safe for concurrent use.
func (s *Subscriber) Report(alert types.Alert) {
	s.buffer.Ingest(alert)
	alertsReported.Inc()

	s.logger.Debug().
		Str("alert_key", alert.Key()).
		Str("severity", alert.Severity).
		Msg("Alert queued")
}

// Pending returns the number of queued alerts per type.
func (s *Subscriber) Pending() map[types.AlertType]int {
	return s.buffer.Pending()
}

// LastCycle returns the result of the most recent flush cycle.
func (s *Subscriber) LastCycle() CycleResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Trigger asks the scheduler to run a cycle now. It returns false if a
// request is already waiting.
func (s *Subscriber) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run drives flush cycles until ctx is cancelled. The first cycle starts
// after the initial delay, each later one a full interval after the previous
// cycle finished, so cycles never overlap.
func (s *Subscriber) Run(ctx context.Context) {
	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	s.logger.Info().
		Dur("initial_delay", s.initialDelay).
		Dur("interval", s.interval).
		Msg("Flush scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Flush scheduler stopped")
			return
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
			s.logger.Info().Msg("Flush requested")
		}

		s.RunCycle(ctx)
		timer.Reset(s.interval)
	}
}

// RunCycle performs one flush cycle: swap, cleanup, dispatch. Failures are
// logged and recorded; they never propagate to the caller.
func (s *Subscriber) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Stage:     StageIdle,
	}
	log := s.logger.With().Str("cycle_id", res.ID).Logger()

	err := s.flush(ctx, log, &res)
	res.Duration = time.Since(res.StartedAt)

	switch {
	case err != nil:
		res.Err = err.Error()
		log.Error().
			Err(err).
			Str("stage", res.Stage.String()).
			Int("alerts", res.Snapshot).
			Msg("Flush cycle failed, pending alerts of this cycle dropped")
		res.Stage = StageFailed
		flushCycles.WithLabelValues("failed").Inc()
		flushDuration.Observe(res.Duration.Seconds())
	case res.Stage == StageIdle:
		flushCycles.WithLabelValues("empty").Inc()
	default:
		log.Info().
			Int("alerts", res.Snapshot).
			Int("recovered", res.Recovered).
			Int("groups", res.Groups).
			Int("sent", res.Sent).
			Int("send_failures", res.SendFailures).
			Dur("duration", res.Duration).
			Msg("Flush cycle completed")
		flushCycles.WithLabelValues("done").Inc()
		flushDuration.Observe(res.Duration.Seconds())
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	return res
}

// flush runs the two pipeline stages against a freshly swapped snapshot.
func (s *Subscriber) flush(ctx context.Context, log zerolog.Logger, res *CycleResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("flush cycle panicked: %v", r)
		}
	}()

	snapshot := s.buffer.Swap()
	if snapshot == nil {
		return nil
	}
	res.Snapshot = snapshot.Count()

	res.Stage = StageCleaning
	recovered, err := s.cleanupExpired(ctx, snapshot)
	res.Recovered = recovered
	if err != nil {
		return fmt.Errorf("cleanup expired alerts: %w", err)
	}

	res.Stage = StageDispatching
	if err := s.dispatch(ctx, log, snapshot, res); err != nil {
		return fmt.Errorf("dispatch alerts: %w", err)
	}

	res.Stage = StageDone
	return nil
}
