// Package scheduler runs the monitoring loop: a fixed poll tick that checks
// each registered task against its persisted cooldown and launches the ones
// that are due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/config"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
)

// TaskRun carries per-invocation details to a task body: whether the run was
// manually triggered past its cooldown, and the cooldown itself for the body's
// own bookkeeping.
type TaskRun struct {
	IgnoreCooldown bool
	CooldownHours  int
}

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context, run TaskRun) error

// TaskConfig describes a registered task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	// IntervalHours is the cooldown between automatic runs.
	IntervalHours int
	Enabled       bool
	Func          TaskFunc
}

// TaskInfo is the API view of a task.
type TaskInfo struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	IntervalHours int        `json:"intervalHours"`
	Enabled       bool       `json:"enabled"`
	LastRun       *time.Time `json:"lastRun,omitempty"`
	Running       bool       `json:"running"`
}

type taskEntry struct {
	config TaskConfig
	// lastRun caches the persisted run time. Zero with known=false means
	// never run.
	lastRun time.Time
	known   bool
	loaded  bool
}

// Scheduler polls registered tasks on a fixed interval and runs the ones
// whose cooldown has elapsed.
type Scheduler struct {
	gocron    gocron.Scheduler
	store     TaskStateStore
	cfg       config.SchedulerConfig
	logger    zerolog.Logger
	startedAt time.Time

	// now is swapped out by tests.
	now func() time.Time

	mu      sync.Mutex
	tasks   map[string]*taskEntry
	order   []string
	running map[string]struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler.
func New(store TaskStateStore, cfg config.SchedulerConfig, logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron:  gs,
		store:   store,
		cfg:     cfg,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
		tasks:   make(map[string]*taskEntry),
		running: make(map[string]struct{}),
		baseCtx: ctx,
		cancel:  cancel,
	}, nil
}

// RegisterTask registers a task with the polling loop.
func (s *Scheduler) RegisterTask(cfg TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[cfg.ID]; exists {
		return fmt.Errorf("task %q already registered", cfg.ID)
	}
	s.tasks[cfg.ID] = &taskEntry{config: cfg}
	s.order = append(s.order, cfg.ID)

	s.logger.Info().
		Str("id", cfg.ID).
		Str("name", cfg.Name).
		Int("intervalHours", cfg.IntervalHours).
		Bool("enabled", cfg.Enabled).
		Msg("Registered task")
	return nil
}

// Start begins the poll loop.
func (s *Scheduler) Start() error {
	s.startedAt = s.now()

	_, err := s.gocron.NewJob(
		gocron.DurationJob(s.cfg.PollInterval()),
		gocron.NewTask(func() { s.tick(s.baseCtx) }),
		gocron.WithName("scheduler-poll"),
	)
	if err != nil {
		return fmt.Errorf("failed to create poll job: %w", err)
	}

	s.gocron.Start()
	s.logger.Info().
		Dur("pollInterval", s.cfg.PollInterval()).
		Dur("startupGrace", s.cfg.StartupGrace()).
		Msg("Scheduler started")
	return nil
}

// Stop stops the poll loop and cancels running tasks.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// tick evaluates every task once, launching the due ones. Tasks are marked
// running before the tick releases the lock so overlapping ticks can never
// double-launch.
func (s *Scheduler) tick(ctx context.Context) {
	s.ensureStateLoaded(ctx)
	now := s.now()

	s.mu.Lock()
	var launch []*taskEntry
	for _, id := range s.order {
		entry := s.tasks[id]
		if !entry.config.Enabled {
			continue
		}
		if _, active := s.running[id]; active {
			continue
		}
		if !s.isDue(entry, now) {
			continue
		}
		s.running[id] = struct{}{}
		launch = append(launch, entry)
	}
	s.mu.Unlock()

	for _, entry := range launch {
		go s.runTask(ctx, entry, TaskRun{CooldownHours: entry.config.IntervalHours})
	}
}

// ensureStateLoaded loads persisted last-run times for tasks whose cache is
// still cold. Store reads happen outside the lock so a slow read never blocks
// RunNow or ListTasks.
func (s *Scheduler) ensureStateLoaded(ctx context.Context) {
	s.mu.Lock()
	var pending []string
	for _, id := range s.order {
		if !s.tasks[id].loaded {
			pending = append(pending, id)
		}
	}
	s.mu.Unlock()

	for _, id := range pending {
		lastRun, known, err := s.store.GetLastRun(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("Failed to load task state")
			continue
		}

		s.mu.Lock()
		if entry, ok := s.tasks[id]; ok && !entry.loaded {
			entry.lastRun = lastRun
			entry.known = known
			entry.loaded = true
		}
		s.mu.Unlock()
	}
}

// isDue reports whether a task's cooldown has elapsed. A task that has never
// run becomes due only after the startup grace period, so a restart does not
// immediately hammer every indexer. Caller holds the lock.
func (s *Scheduler) isDue(entry *taskEntry, now time.Time) bool {
	if !entry.loaded {
		// State could not be loaded this tick; try again on the next poll.
		return false
	}

	if !entry.known {
		return now.Sub(s.startedAt) >= s.cfg.StartupGrace()
	}

	interval := time.Duration(entry.config.IntervalHours) * time.Hour
	return now.Sub(entry.lastRun) >= interval
}

// runTask executes a task body and records the run. The run time is persisted
// before the in-memory cache is updated; if persisting fails the cache stays
// stale and the next tick retries the task.
func (s *Scheduler) runTask(ctx context.Context, entry *taskEntry, run TaskRun) {
	id := entry.config.ID
	startTime := s.now()
	s.logger.Info().
		Str("id", id).
		Str("name", entry.config.Name).
		Bool("ignoreCooldown", run.IgnoreCooldown).
		Msg("Starting task")

	err := entry.config.Func(ctx, run)

	duration := s.now().Sub(startTime)
	switch {
	case errors.Is(err, context.Canceled):
		s.logger.Info().Str("id", id).Dur("duration", duration).Msg("Task cancelled")
	case err != nil:
		s.logger.Error().Err(err).Str("id", id).Dur("duration", duration).Msg("Task failed")
	default:
		s.logger.Info().Str("id", id).Dur("duration", duration).Msg("Task completed")
	}

	persistErr := s.store.SetLastRun(context.Background(), id, startTime)

	s.mu.Lock()
	delete(s.running, id)
	if persistErr == nil {
		entry.lastRun = startTime
		entry.known = true
		entry.loaded = true
	}
	s.mu.Unlock()

	if persistErr != nil {
		s.logger.Warn().Err(persistErr).Str("id", id).Msg("Failed to persist task run time")
	}
}

// RunNow launches a task immediately, bypassing the cooldown. The running-set
// check still applies.
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.Lock()
	entry, exists := s.tasks[taskID]
	if !exists {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if _, active := s.running[taskID]; active {
		s.mu.Unlock()
		return ErrTaskRunning
	}
	s.running[taskID] = struct{}{}
	s.mu.Unlock()

	go s.runTask(s.baseCtx, entry, TaskRun{
		IgnoreCooldown: true,
		CooldownHours:  entry.config.IntervalHours,
	})
	return nil
}

// ListTasks returns the registered tasks in registration order.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, id := range s.order {
		entry := s.tasks[id]
		info := TaskInfo{
			ID:            entry.config.ID,
			Name:          entry.config.Name,
			Description:   entry.config.Description,
			IntervalHours: entry.config.IntervalHours,
			Enabled:       entry.config.Enabled,
		}
		if entry.known {
			lastRun := entry.lastRun
			info.LastRun = &lastRun
		}
		_, info.Running = s.running[id]
		tasks = append(tasks, info)
	}
	return tasks
}
