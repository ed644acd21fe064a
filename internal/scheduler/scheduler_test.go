package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/testutil"
)

type fakeStateStore struct {
	mu       sync.Mutex
	lastRuns map[string]time.Time
	setErr   error
	sets     int
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{lastRuns: make(map[string]time.Time)}
}

func (f *fakeStateStore) GetLastRun(_ context.Context, taskType string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.lastRuns[taskType]
	return t, ok, nil
}

func (f *fakeStateStore) SetLastRun(_ context.Context, taskType string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.lastRuns[taskType] = t
	return nil
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		PollIntervalSeconds: 30,
		StartupGraceSeconds: 300,
	}
}

func newTestScheduler(t *testing.T, store TaskStateStore) *Scheduler {
	t.Helper()
	s, err := New(store, testSchedulerConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	s.startedAt = time.Now().Add(-time.Hour) // well past the startup grace
	return s
}

// waitFor polls until the condition holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func (s *Scheduler) taskRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, active := s.running[id]
	return active
}

func TestTickRunsTaskPastCooldown(t *testing.T) {
	store := newFakeStateStore()
	store.lastRuns["due"] = time.Now().Add(-13 * time.Hour)
	store.lastRuns["fresh"] = time.Now().Add(-1 * time.Hour)

	s := newTestScheduler(t, store)

	var mu sync.Mutex
	ran := make(map[string]int)
	register := func(id string) {
		if err := s.RegisterTask(TaskConfig{
			ID: id, Name: id, IntervalHours: 12, Enabled: true,
			Func: func(context.Context, TaskRun) error {
				mu.Lock()
				ran[id]++
				mu.Unlock()
				return nil
			},
		}); err != nil {
			t.Fatalf("RegisterTask failed: %v", err)
		}
	}
	register("due")
	register("fresh")

	s.tick(context.Background())
	waitFor(t, func() bool { return !s.taskRunning("due") })

	mu.Lock()
	defer mu.Unlock()
	if ran["due"] != 1 {
		t.Errorf("Expected task past its cooldown to run once, got %d", ran["due"])
	}
	if ran["fresh"] != 0 {
		t.Errorf("Expected task within its cooldown not to run, got %d", ran["fresh"])
	}
}

func TestNeverRunTaskWaitsForStartupGrace(t *testing.T) {
	store := newFakeStateStore()
	s := newTestScheduler(t, store)
	s.startedAt = time.Now() // just started

	var mu sync.Mutex
	runs := 0
	if err := s.RegisterTask(TaskConfig{
		ID: "new-task", Name: "New", IntervalHours: 12, Enabled: true,
		Func: func(context.Context, TaskRun) error {
			mu.Lock()
			runs++
			mu.Unlock()
			return nil
		},
	}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	s.tick(context.Background())
	mu.Lock()
	if runs != 0 {
		mu.Unlock()
		t.Fatal("Never-run task must not fire inside the startup grace period")
	}
	mu.Unlock()

	// Past the grace period the task becomes due.
	s.startedAt = time.Now().Add(-10 * time.Minute)
	s.tick(context.Background())
	waitFor(t, func() bool { return !s.taskRunning("new-task") })

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("Expected 1 run after the grace period, got %d", runs)
	}
}

func TestRunningTaskIsNotRelaunched(t *testing.T) {
	store := newFakeStateStore()
	store.lastRuns["slow"] = time.Now().Add(-24 * time.Hour)

	s := newTestScheduler(t, store)

	release := make(chan struct{})
	var mu sync.Mutex
	starts := 0
	if err := s.RegisterTask(TaskConfig{
		ID: "slow", Name: "Slow", IntervalHours: 12, Enabled: true,
		Func: func(context.Context, TaskRun) error {
			mu.Lock()
			starts++
			mu.Unlock()
			<-release
			return nil
		},
	}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	s.tick(context.Background())
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return starts == 1
	})

	// Overlapping ticks while the task is still running.
	s.tick(context.Background())
	s.tick(context.Background())

	mu.Lock()
	if starts != 1 {
		mu.Unlock()
		close(release)
		t.Fatalf("Expected 1 start despite overlapping ticks, got %d", starts)
	}
	mu.Unlock()

	close(release)
	waitFor(t, func() bool { return !s.taskRunning("slow") })
}

func TestPersistFailureKeepsTaskDue(t *testing.T) {
	store := newFakeStateStore()
	store.lastRuns["flaky"] = time.Now().Add(-24 * time.Hour)
	store.setErr = errors.New("disk full")

	s := newTestScheduler(t, store)

	var mu sync.Mutex
	runs := 0
	if err := s.RegisterTask(TaskConfig{
		ID: "flaky", Name: "Flaky", IntervalHours: 12, Enabled: true,
		Func: func(context.Context, TaskRun) error {
			mu.Lock()
			runs++
			mu.Unlock()
			return nil
		},
	}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	s.tick(context.Background())
	waitFor(t, func() bool { return !s.taskRunning("flaky") })

	// The run time was never persisted, so the cached state stays stale and
	// the next tick runs the task again.
	s.tick(context.Background())
	waitFor(t, func() bool { return !s.taskRunning("flaky") })

	mu.Lock()
	defer mu.Unlock()
	if runs != 2 {
		t.Errorf("Expected the task to stay due after a persist failure, got %d runs", runs)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.sets != 2 {
		t.Errorf("Expected a persist attempt per run, got %d", store.sets)
	}
}

func TestDisabledTaskNeverRuns(t *testing.T) {
	store := newFakeStateStore()
	store.lastRuns["off"] = time.Now().Add(-24 * time.Hour)

	s := newTestScheduler(t, store)

	var mu sync.Mutex
	runs := 0
	if err := s.RegisterTask(TaskConfig{
		ID: "off", Name: "Off", IntervalHours: 12, Enabled: false,
		Func: func(context.Context, TaskRun) error {
			mu.Lock()
			runs++
			mu.Unlock()
			return nil
		},
	}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	s.tick(context.Background())
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if runs != 0 {
		t.Errorf("Disabled task ran %d times", runs)
	}
}

func TestRunNowBypassesCooldown(t *testing.T) {
	store := newFakeStateStore()
	store.lastRuns["manual"] = time.Now() // cooldown definitely not elapsed

	s := newTestScheduler(t, store)

	var mu sync.Mutex
	runs := 0
	if err := s.RegisterTask(TaskConfig{
		ID: "manual", Name: "Manual", IntervalHours: 12, Enabled: true,
		Func: func(context.Context, TaskRun) error {
			mu.Lock()
			runs++
			mu.Unlock()
			return nil
		},
	}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("manual"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	waitFor(t, func() bool { return !s.taskRunning("manual") })

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("Expected RunNow to bypass the cooldown, got %d runs", runs)
	}

	if err := s.RunNow("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestRunNowRejectsRunningTask(t *testing.T) {
	s := newTestScheduler(t, newFakeStateStore())

	release := make(chan struct{})
	if err := s.RegisterTask(TaskConfig{
		ID: "busy", Name: "Busy", IntervalHours: 12, Enabled: true,
		Func: func(context.Context, TaskRun) error {
			<-release
			return nil
		},
	}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("busy"); err != nil {
		t.Fatalf("First RunNow failed: %v", err)
	}
	if err := s.RunNow("busy"); !errors.Is(err, ErrTaskRunning) {
		t.Errorf("Expected ErrTaskRunning, got %v", err)
	}

	close(release)
	waitFor(t, func() bool { return !s.taskRunning("busy") })
}

func TestManualRunCarriesIgnoreCooldown(t *testing.T) {
	store := newFakeStateStore()
	store.lastRuns["flagged"] = time.Now().Add(-24 * time.Hour)

	s := newTestScheduler(t, store)

	var mu sync.Mutex
	var runs []TaskRun
	if err := s.RegisterTask(TaskConfig{
		ID: "flagged", Name: "Flagged", IntervalHours: 12, Enabled: true,
		Func: func(_ context.Context, run TaskRun) error {
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
			return nil
		},
	}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("flagged"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	waitFor(t, func() bool { return !s.taskRunning("flagged") })

	// The persist from the manual run made the task fresh; force it due again
	// so the poll path fires too.
	store.mu.Lock()
	store.lastRuns["flagged"] = time.Now().Add(-24 * time.Hour)
	store.mu.Unlock()
	s.mu.Lock()
	s.tasks["flagged"].lastRun = time.Now().Add(-24 * time.Hour)
	s.mu.Unlock()

	s.tick(context.Background())
	waitFor(t, func() bool { return !s.taskRunning("flagged") })

	mu.Lock()
	defer mu.Unlock()
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if !runs[0].IgnoreCooldown {
		t.Error("Expected the manual run to carry ignoreCooldown")
	}
	if runs[1].IgnoreCooldown {
		t.Error("Expected the polled run not to carry ignoreCooldown")
	}
	for i, run := range runs {
		if run.CooldownHours != 12 {
			t.Errorf("Expected run %d to see its cooldown of 12h, got %d", i, run.CooldownHours)
		}
	}
}

// slowStateStore blocks GetLastRun until released.
type slowStateStore struct {
	gate chan struct{}
}

func (f *slowStateStore) GetLastRun(_ context.Context, _ string) (time.Time, bool, error) {
	<-f.gate
	return time.Time{}, false, nil
}

func (f *slowStateStore) SetLastRun(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func TestSlowStateLoadDoesNotBlockListTasks(t *testing.T) {
	store := &slowStateStore{gate: make(chan struct{})}
	s := newTestScheduler(t, store)

	if err := s.RegisterTask(TaskConfig{
		ID: "cold", Name: "Cold", IntervalHours: 12, Enabled: true,
		Func: func(context.Context, TaskRun) error { return nil },
	}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	tickDone := make(chan struct{})
	go func() {
		s.tick(context.Background())
		close(tickDone)
	}()

	// The tick is stalled inside the store read; the task list must still be
	// served because the lock is not held across store I/O.
	listed := make(chan struct{})
	go func() {
		s.ListTasks()
		close(listed)
	}()

	select {
	case <-listed:
	case <-time.After(2 * time.Second):
		t.Error("ListTasks blocked behind a slow task state read")
	}

	close(store.gate)
	<-tickDone
}

func TestTaskStateStoreRoundTrip(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	store := NewTaskStateStore(tdb.DB)
	ctx := context.Background()

	_, known, err := store.GetLastRun(ctx, "missing-movies")
	if err != nil {
		t.Fatalf("GetLastRun failed: %v", err)
	}
	if known {
		t.Error("Expected unknown task to report known=false")
	}

	runTime := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := store.SetLastRun(ctx, "missing-movies", runTime); err != nil {
		t.Fatalf("SetLastRun failed: %v", err)
	}

	got, known, err := store.GetLastRun(ctx, "missing-movies")
	if err != nil {
		t.Fatalf("GetLastRun failed: %v", err)
	}
	if !known {
		t.Fatal("Expected task to be known after SetLastRun")
	}
	if !got.Equal(runTime) {
		t.Errorf("Expected %v, got %v", runTime, got)
	}

	// Overwrite.
	later := runTime.Add(12 * time.Hour)
	if err := store.SetLastRun(ctx, "missing-movies", later); err != nil {
		t.Fatalf("SetLastRun failed: %v", err)
	}
	got, _, err = store.GetLastRun(ctx, "missing-movies")
	if err != nil {
		t.Fatalf("GetLastRun failed: %v", err)
	}
	if !got.Equal(later) {
		t.Errorf("Expected %v, got %v", later, got)
	}
}
