package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of periodic work.
type Job interface {
	RunOnce(ctx context.Context) error
}

type Jobs struct {
	Pool       Job
	Scheduler  Job
	Settlement Job
}

type Options struct {
	PoolSpec     string
	ScheduleSpec string
	TickInterval time.Duration
	Location     *time.Location
	Logger       *slog.Logger
}

type Status struct {
	Running   bool       `json:"running"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Controller owns the three periodic drivers: pool replenishment and scheduling
// on cron expressions, settlement on a fixed ticker. Stop halts the drivers but
// lets an in-flight run finish; runs of the same driver never overlap.
type Controller struct {
	opts   Options
	base   context.Context
	logger *slog.Logger

	mu        sync.Mutex
	jobs      Jobs
	running   bool
	startedAt time.Time
	cron      *cron.Cron
	cancel    context.CancelFunc

	poolGuard     sync.Mutex
	scheduleGuard sync.Mutex
	settleGuard   sync.Mutex

	inflight errgroup.Group
}

// NewController validates the cron expressions. Job runs use base as their
// context, so cancelling base aborts in-flight work at process shutdown.
func NewController(base context.Context, opts Options) (*Controller, error) {
	if _, err := cron.ParseStandard(opts.PoolSpec); err != nil {
		return nil, fmt.Errorf("parse pool cron %q: %w", opts.PoolSpec, err)
	}
	if _, err := cron.ParseStandard(opts.ScheduleSpec); err != nil {
		return nil, fmt.Errorf("parse schedule cron %q: %w", opts.ScheduleSpec, err)
	}
	if opts.TickInterval <= 0 {
		return nil, errors.New("settlement tick interval must be positive")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		opts:   opts,
		base:   base,
		logger: logger,
	}, nil
}

// Register installs the jobs. It must be called before Start.
func (c *Controller) Register(jobs Jobs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = jobs
}

func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	if c.jobs.Pool == nil || c.jobs.Scheduler == nil || c.jobs.Settlement == nil {
		c.logger.Error("runtime start refused without registered jobs",
			"event", "runtime_start_unregistered",
			"module", "internal/platform/runtime",
			"layer", "platform",
		)
		return
	}

	loopCtx, cancel := context.WithCancel(c.base)
	scheduler := cron.New(cron.WithLocation(c.opts.Location))
	// Specs were validated in NewController.
	_, _ = scheduler.AddFunc(c.opts.PoolSpec, func() { c.runPool() })
	_, _ = scheduler.AddFunc(c.opts.ScheduleSpec, func() { c.runSchedule() })
	scheduler.Start()

	c.inflight.Go(func() error {
		c.tickLoop(loopCtx)
		return nil
	})
	c.inflight.Go(func() error {
		c.runPool()
		c.runSchedule()
		return nil
	})

	c.cron = scheduler
	c.cancel = cancel
	c.running = true
	c.startedAt = time.Now().UTC()
	c.logger.Info("runtime started",
		"event", "runtime_started",
		"module", "internal/platform/runtime",
		"layer", "platform",
		"pool_cron", c.opts.PoolSpec,
		"schedule_cron", c.opts.ScheduleSpec,
		"tick_interval", c.opts.TickInterval.String(),
	)
}

func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.cron.Stop()
	c.cancel()
	c.cron = nil
	c.cancel = nil
	c.running = false
	c.logger.Info("runtime stopped",
		"event", "runtime_stopped",
		"module", "internal/platform/runtime",
		"layer", "platform",
	)
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := Status{Running: c.running}
	if c.running {
		startedAt := c.startedAt
		status.StartedAt = &startedAt
	}
	return status
}

// OnLifetimeTargetReached stops the drivers. Repeated signals are harmless.
func (c *Controller) OnLifetimeTargetReached(confirmed int) {
	c.logger.Warn("runtime stopping on lifetime target",
		"event", "runtime_lifetime_target_reached",
		"module", "internal/platform/runtime",
		"layer", "platform",
		"confirmed_count", confirmed,
	)
	c.Stop()
}

// Shutdown stops the drivers and waits for in-flight runs until ctx expires.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Stop()
	done := make(chan struct{})
	go func() {
		_ = c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runSettlement()
		}
	}
}

func (c *Controller) runPool() {
	c.run("pool", &c.poolGuard, c.currentJobs().Pool)
}

func (c *Controller) runSchedule() {
	c.run("schedule", &c.scheduleGuard, c.currentJobs().Scheduler)
}

func (c *Controller) runSettlement() {
	c.run("settlement", &c.settleGuard, c.currentJobs().Settlement)
}

func (c *Controller) currentJobs() Jobs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs
}

func (c *Controller) run(driver string, guard *sync.Mutex, job Job) {
	if job == nil {
		return
	}
	if !guard.TryLock() {
		c.logger.Warn("runtime driver skipped while previous run is in flight",
			"event", "runtime_driver_overlap_skipped",
			"module", "internal/platform/runtime",
			"layer", "platform",
			"driver", driver,
		)
		return
	}
	defer guard.Unlock()

	if err := job.RunOnce(c.base); err != nil {
		c.logger.Error("runtime driver run failed",
			"event", "runtime_driver_failed",
			"module", "internal/platform/runtime",
			"layer", "platform",
			"driver", driver,
			"error", err.Error(),
		)
	}
}
