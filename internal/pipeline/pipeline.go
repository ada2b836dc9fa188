// Package pipeline runs the matching pipeline as a single cooperative worker:
// extract the source corpus, segment and extract the target corpus, match articles
// against the source corpus, then enrich matches with citations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/cache"
	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/oracle"
	"github.com/hyperjump/transmatch/internal/storage"
	"github.com/hyperjump/transmatch/pkg/utils"
)

// State is the orchestrator's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Stage names used in logs and status.
const (
	StageExtractSource = "extract_source"
	StageSegmentTarget = "segment_target"
	StageMatch         = "match"
	StageCite          = "cite"
)

// OracleFactory builds the oracle for a run from its AI settings.
type OracleFactory func(cfg config.AIConfig) (oracle.Oracle, error)

// Status is a read-only snapshot of the orchestrator.
type Status struct {
	IsRunning     bool       `json:"isRunning"`
	StopRequested bool       `json:"stopRequested"`
	State         State      `json:"state"`
	Stage         string     `json:"stage,omitempty"`
	RunID         string     `json:"runId,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	LastOutcome   State      `json:"lastOutcome,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	Stats         Stats      `json:"stats"`
}

// Report summarizes a finished run.
type Report struct {
	RunID   string
	Outcome State
	Stats   Stats
	Err     error
}

// Orchestrator owns the run state. Only one run is active at a time.
type Orchestrator struct {
	store     storage.Store
	cache     *cache.Cache
	newOracle OracleFactory
	logger    *zap.Logger
	lock      *flock.Flock

	stopRequested atomic.Bool

	mu         sync.Mutex
	state      State
	stage      string
	runID      string
	startedAt  time.Time
	finishedAt time.Time
	last       State
	lastErr    string
	stats      *Stats
	done       chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Tee it with logstream.NewCore to feed live subscribers.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithLockFile additionally guards runs with an exclusive file lock at path so two
// processes sharing a data directory never run concurrently.
func WithLockFile(path string) Option {
	return func(o *Orchestrator) {
		if path != "" {
			o.lock = flock.New(path)
		}
	}
}

// WithOracleFactory overrides how the oracle is built for each run.
func WithOracleFactory(f OracleFactory) Option {
	return func(o *Orchestrator) {
		o.newOracle = f
	}
}

// New returns an idle Orchestrator.
func New(store storage.Store, c *cache.Cache, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		cache:  c,
		logger: zap.NewNop(),
		state:  StateIdle,
		stats:  &Stats{},
		newOracle: func(cfg config.AIConfig) (oracle.Oracle, error) {
			return oracle.New(cfg)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins a run in the background and returns its ID. While a run is active the
// call is rejected with ErrAlreadyRunning and a warning is logged.
func (o *Orchestrator) Start(cfg *config.Config) (string, error) {
	orc, err := o.prepare(cfg)
	if err != nil {
		return "", err
	}
	runID, err := o.begin()
	if err != nil {
		return "", err
	}
	go o.execute(context.Background(), runID, cfg, orc)
	return runID, nil
}

// Run executes a run synchronously. Cancelling ctx behaves like Stop: the run halts
// after the current item and an in-flight extraction or oracle call completes.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	orc, err := o.prepare(cfg)
	if err != nil {
		return nil, err
	}
	runID, err := o.begin()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		o.Stop()
	}
	unwatch := context.AfterFunc(ctx, func() { o.Stop() })
	defer unwatch()

	rep := o.execute(context.WithoutCancel(ctx), runID, cfg, orc)
	return rep, rep.Err
}

// Stop requests the active run to halt after the current item. It never interrupts
// an in-flight extraction or oracle call. Returns false when no run is active.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	running := o.state == StateRunning
	runID := o.runID
	o.mu.Unlock()
	if !running {
		return false
	}
	o.stopRequested.Store(true)
	o.logger.Info("stop requested", zap.String("run_id", runID))
	return true
}

// Wait blocks until the active run, if any, has finished.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Status returns a snapshot without changing any state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		IsRunning:     o.state == StateRunning,
		StopRequested: o.stopRequested.Load(),
		State:         o.state,
		Stage:         o.stage,
		RunID:         o.runID,
		LastOutcome:   o.last,
		LastError:     o.lastErr,
		Stats:         o.stats.snapshot(),
	}
	if !o.startedAt.IsZero() {
		t := o.startedAt
		st.StartedAt = &t
	}
	if !o.finishedAt.IsZero() {
		t := o.finishedAt
		st.FinishedAt = &t
	}
	return st
}

func (o *Orchestrator) prepare(cfg *config.Config) (oracle.Oracle, error) {
	if cfg == nil {
		return nil, errors.New("pipeline config required")
	}
	if o.Status().IsRunning {
		o.logger.Warn("start ignored: pipeline already running")
		return nil, ErrAlreadyRunning
	}
	if err := cfg.ValidateRun(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	orc, err := o.newOracle(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("build oracle: %w", err)
	}
	return orc, nil
}

// begin moves Idle to Running and takes the run lock.
func (o *Orchestrator) begin() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		o.logger.Warn("start ignored: pipeline already running", zap.String("run_id", o.runID))
		return "", ErrAlreadyRunning
	}
	if o.lock != nil {
		if err := os.MkdirAll(filepath.Dir(o.lock.Path()), 0755); err != nil {
			return "", fmt.Errorf("create lock directory: %w", err)
		}
		ok, err := o.lock.TryLock()
		if err != nil {
			return "", fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return "", ErrLocked
		}
	}

	o.stopRequested.Store(false)
	o.state = StateRunning
	o.stage = ""
	o.runID = uuid.NewString()
	o.startedAt = time.Now()
	o.finishedAt = time.Time{}
	o.stats = &Stats{}
	o.done = make(chan struct{})
	o.logger.Info("pipeline started", zap.String("run_id", o.runID))
	return o.runID, nil
}

// execute runs the stages and always ends the run, even after a panic.
func (o *Orchestrator) execute(ctx context.Context, runID string, cfg *config.Config, orc oracle.Oracle) (rep *Report) {
	r := &run{
		o:      o,
		id:     runID,
		cfg:    cfg,
		oracle: orc,
		logger: o.logger.With(zap.String("run_id", runID)),
	}
	defer func() {
		var err error
		if p := recover(); p != nil {
			err = &FatalError{Stage: o.currentStage(), Err: fmt.Errorf("panic: %v", p)}
			r.logger.Error("pipeline panic", zap.ByteString("stack", debug.Stack()))
		} else if rep != nil {
			err = rep.Err
		}
		rep = o.finish(r, err)
	}()

	return &Report{Err: r.stages(ctx)}
}

// finish records the outcome, releases the lock and returns to Idle.
func (o *Orchestrator) finish(r *run, err error) *Report {
	outcome := StateCompleted
	switch {
	case err == nil:
	case errors.Is(err, errStopped):
		outcome, err = StateStopped, nil
	default:
		var fatal *FatalError
		if !errors.As(err, &fatal) {
			err = &FatalError{Stage: o.currentStage(), Err: err}
		}
		outcome = StateFailed
		r.logger.Error("pipeline failed",
			zap.Error(err),
			zap.String("cause_chain", utils.FormatChain(utils.CauseChain(err, 5, 300))))
	}

	o.mu.Lock()
	o.last = outcome
	o.lastErr = ""
	if err != nil {
		o.lastErr = err.Error()
	}
	o.finishedAt = time.Now()
	o.stage = ""
	stats := o.stats.snapshot()
	if o.lock != nil {
		if uerr := o.lock.Unlock(); uerr != nil {
			r.logger.Warn("failed to release run lock", zap.Error(uerr))
		}
	}
	o.state = StateIdle
	done := o.done
	o.mu.Unlock()

	r.logger.Info("pipeline finished",
		zap.String("outcome", string(outcome)),
		zap.Int("articles", stats.Articles),
		zap.Int("matches_stored", stats.MatchesStored))
	close(done)
	return &Report{RunID: r.id, Outcome: outcome, Stats: stats, Err: err}
}

func (o *Orchestrator) setStage(stage string) {
	o.mu.Lock()
	o.stage = stage
	o.mu.Unlock()
}

func (o *Orchestrator) currentStage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

func (o *Orchestrator) updateStats(f func(*Stats)) {
	o.mu.Lock()
	f(o.stats)
	o.mu.Unlock()
}
