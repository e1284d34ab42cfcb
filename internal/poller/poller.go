package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/approachability-meter/internal/analysis"
	"github.com/ZanzyTHEbar/approachability-meter/internal/detector"
	apperrors "github.com/ZanzyTHEbar/approachability-meter/internal/errors"
	"github.com/ZanzyTHEbar/approachability-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/approachability-meter/internal/types"
	"github.com/ZanzyTHEbar/approachability-meter/internal/view"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultInterval = 500 * time.Millisecond

	evaluationSource = "poller"
)

// Cycle outcome labels
const (
	OutcomePublished = "published"
	OutcomeNoFrame   = "no_frame"
	OutcomeError     = "error"
)

var ErrAlreadyRunning = errors.New("poller is already running")

// FrameSource yields the current frame. ok is false when no frame is available yet.
type FrameSource interface {
	Capture(ctx context.Context) (frame detector.Frame, ok bool, err error)
}

type Classifier interface {
	DetectFrame(ctx context.Context, frame detector.Frame) (*types.DetectResponse, error)
}

type Observer interface {
	Publish(v view.View)
}

type Config struct {
	Interval   time.Duration
	Source     FrameSource
	Classifier Classifier
	Observer   Observer
	Clock      clockwork.Clock
	Logger     *monitoring.Logger
	Metrics    *monitoring.Metrics
}

// Poller classifies a frame every interval and publishes the evaluated view.
// At most one classification is outstanding; ticks that land while one is in
// flight are skipped. The first classification error stops the poller.
type Poller struct {
	interval   time.Duration
	source     FrameSource
	classifier Classifier
	observer   Observer
	clock      clockwork.Clock
	logger     *monitoring.Logger
	metrics    *monitoring.Metrics

	inFlight atomic.Bool
	cycles   sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	last    view.View
	failure *view.View
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Poller{
		interval:   cfg.Interval,
		source:     cfg.Source,
		classifier: cfg.Classifier,
		observer:   cfg.Observer,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Start clears previous results, publishes an active view and begins polling.
// The poller stops when ctx is cancelled, Stop is called or a cycle fails.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.failure = nil
	p.last = view.View{State: view.StateActive, UpdatedAt: p.clock.Now()}
	p.observer.Publish(p.last)

	p.logger.SystemLogger("poller_started", p.interval.String())

	go p.run(runCtx, p.done)
	return nil
}

// Stop halts polling and waits for any in-flight cycle to finish
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poller is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Done is closed when the current run ends. Nil before the first Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.finish(done)
			return
		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.PollerSkipped.Inc()
		return
	}

	p.cycles.Add(1)
	go p.cycle(ctx)
}

func (p *Poller) cycle(ctx context.Context) {
	defer p.cycles.Done()
	defer p.inFlight.Store(false)

	frame, ok, err := p.source.Capture(ctx)
	if err != nil {
		p.fail(ctx, apperrors.WrapError(err, "capturing frame"))
		return
	}
	if !ok {
		p.metrics.PollerCycles.WithLabelValues(OutcomeNoFrame).Inc()
		return
	}

	resp, err := p.classifier.DetectFrame(ctx, frame)
	if err != nil {
		p.fail(ctx, err)
		return
	}

	start := time.Now()
	result := analysis.Evaluate(resp.Snapshot())
	elapsed := time.Since(start)

	rules := result.RuleNames()
	score := 0
	if result != nil {
		score = result.ApproachabilityScore
	}
	p.metrics.RecordEvaluation(evaluationSource, result != nil, score, rules, elapsed)
	p.logger.EvaluationLogger(evaluationSource, score, rules, elapsed)

	v := view.View{
		State:           view.StateActive,
		Emotions:        resp.Emotions,
		DominantEmotion: resp.DominantEmotion,
		Feedback:        result,
		UpdatedAt:       p.clock.Now(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	p.last = v
	p.observer.Publish(v)
	p.metrics.PollerCycles.WithLabelValues(OutcomePublished).Inc()
}

// fail records an error view and cancels the run. Errors caused by the run
// itself being cancelled are ignored.
func (p *Poller) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	appErr := apperrors.ToAppError(err)
	p.logger.Warn("Detection stopped after error",
		"error_category", appErr.Category,
		"error", err.Error(),
	)
	p.metrics.PollerCycles.WithLabelValues(OutcomeError).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure == nil {
		p.failure = &view.View{
			State:     view.StateError,
			Error:     appErr.ErrBuilder.Msg,
			UpdatedAt: p.clock.Now(),
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) finish(done chan struct{}) {
	p.cycles.Wait()

	p.mu.Lock()
	if p.failure != nil {
		p.observer.Publish(*p.failure)
	} else {
		stopped := p.last
		stopped.State = view.StateStopped
		stopped.UpdatedAt = p.clock.Now()
		p.observer.Publish(stopped)
	}
	p.cancel = nil
	p.mu.Unlock()

	p.logger.SystemLogger("poller_stopped", p.interval.String())
	close(done)
}
