package timer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"alcyxob/workout-timer/internal/clock"
	"alcyxob/workout-timer/internal/kv"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBackend = errors.New("backend unavailable")

// fakeLogs is an in-memory ProgramLog.
type fakeLogs struct {
	mu     sync.Mutex
	next   int
	logs   map[string]*SessionLog
	byDay  map[string]string
	saves  map[string][]int64
	failOn map[string]bool
	// while non-nil, SaveCheckpoint blocks until it is closed
	hold chan struct{}
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{
		logs:   make(map[string]*SessionLog),
		byDay:  make(map[string]string),
		saves:  make(map[string][]int64),
		failOn: make(map[string]bool),
	}
}

func (f *fakeLogs) fail(op string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = on
}

func (f *fakeLogs) CreateSessionLog(_ context.Context, programID, _, date, _ string) (SessionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["create"] {
		return SessionLog{}, errBackend
	}
	if id, ok := f.byDay[date+"|"+programID]; ok {
		return *f.logs[id], nil
	}
	f.next++
	id := fmt.Sprintf("log-%d", f.next)
	f.logs[id] = &SessionLog{ID: id}
	f.byDay[date+"|"+programID] = id
	return *f.logs[id], nil
}

func (f *fakeLogs) FindSessionLog(_ context.Context, programID, date string) (SessionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["find"] {
		return SessionLog{}, errBackend
	}
	id, ok := f.byDay[date+"|"+programID]
	if !ok {
		return SessionLog{}, ErrSessionLogNotFound
	}
	return *f.logs[id], nil
}

func (f *fakeLogs) GetCheckpoint(_ context.Context, logID string) (Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.logs[logID]
	if !ok {
		return Checkpoint{}, ErrSessionLogNotFound
	}
	return Checkpoint{WorkoutLogID: logID, TimerSeconds: l.TimerSeconds}, nil
}

func (f *fakeLogs) SaveCheckpoint(_ context.Context, logID string, seconds int64) error {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["save"] {
		return errBackend
	}
	l, ok := f.logs[logID]
	if !ok {
		return ErrSessionLogNotFound
	}
	l.TimerSeconds = seconds
	f.saves[logID] = append(f.saves[logID], seconds)
	return nil
}

func (f *fakeLogs) MarkComplete(_ context.Context, logID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["complete"] {
		return errBackend
	}
	f.logs[logID].Completed = true
	return nil
}

// holdSaves makes every SaveCheckpoint wait until the returned func is called.
func (f *fakeLogs) holdSaves() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = make(chan struct{})
	hold := f.hold
	var once sync.Once
	return func() { once.Do(func() { close(hold) }) }
}

func (f *fakeLogs) seconds(logID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[logID].TimerSeconds
}

func (f *fakeLogs) saveCount(logID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves[logID])
}

// seed registers an existing workout log for a day.
func (f *fakeLogs) seed(key ScopeKey, seconds int64, completed bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("log-%d", f.next)
	f.logs[id] = &SessionLog{ID: id, TimerSeconds: seconds, Completed: completed}
	f.byDay[key.String()] = id
	return id
}

type harness struct {
	clock *clock.Fake
	kv    *kv.MemoryStore
	store *SnapshotStore
	logs  *fakeLogs
}

var t0 = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

func newHarness() *harness {
	mem := kv.NewMemoryStore()
	return &harness{
		clock: clock.NewFake(t0),
		kv:    mem,
		store: NewSnapshotStore(mem, zerolog.Nop()),
		logs:  newFakeLogs(),
	}
}

func (h *harness) coordinator() *Coordinator {
	return NewCoordinator(Options{
		Clock:              h.clock,
		Store:              h.store,
		Logs:               h.logs,
		Logger:             zerolog.Nop(),
		CheckpointInterval: 30 * time.Second,
		FlushTimeout:       time.Second,
		RestPresets:        []int{30, 60, 120},
		DefaultRestSeconds: 60,
	})
}

func dayScope(date, program string) Scope {
	return Scope{Key: ScopeKey{Date: date, ProgramID: program}, DayID: "day-1", Title: "Push"}
}

func TestSession_PauseResumeKeepsElapsed(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)

	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(90 * time.Second)

	st, err := c.PauseSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionPaused, st.Session.State)
	assert.EqualValues(t, 90, st.Session.ElapsedSeconds)

	h.clock.Advance(10 * time.Minute)
	st, err = c.StartSession(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 90, st.Session.ElapsedSeconds, "paused time must not count")

	h.clock.Advance(30 * time.Second)
	st, err = c.PauseSession(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 120, st.Session.ElapsedSeconds)
	assert.EqualValues(t, 120, h.logs.seconds(st.Session.WorkoutLogID))
	require.NoError(t, c.Close(ctx))
}

func TestSession_BackgroundedTimeIsCounted(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	scope := dayScope("2024-01-10", "p1")

	c := h.coordinator()
	_, err := c.SwitchScope(ctx, scope)
	require.NoError(t, err)
	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	// process suspended for 125s, then a fresh coordinator loads the snapshot
	h.clock.Advance(125 * time.Second)
	c2 := h.coordinator()
	st, err := c2.SwitchScope(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, SessionRunning, st.Session.State)
	assert.EqualValues(t, 125, st.Session.ElapsedSeconds)

	st, err = c2.ResumeFromBackground(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 125, h.logs.seconds(st.Session.WorkoutLogID))
	require.NoError(t, c2.Close(ctx))
}

func TestSession_StartFailsWithoutWorkoutLog(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()
	h.logs.fail("create", true)

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)

	st, err := c.StartSession(ctx)
	require.ErrorIs(t, err, ErrNoSessionLog)
	assert.Equal(t, SessionIdle, st.Session.State)

	notices := c.DrainNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeSessionLogFailed, notices[0].Kind)
	assert.Equal(t, 0, h.kv.Len(), "nothing is persisted for a timer that never started")
	require.NoError(t, c.Close(ctx))
}

func TestSession_PauseKeepsLocalStateWhenFlushFails(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(45 * time.Second)

	h.logs.fail("save", true)
	st, err := c.PauseSession(ctx)
	require.ErrorIs(t, err, ErrCheckpointNotSaved)
	assert.Equal(t, SessionPaused, st.Session.State)
	assert.EqualValues(t, 45, st.Session.ElapsedSeconds)
	assert.True(t, st.Session.CheckpointPending)

	notices := c.DrainNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeCheckpointFailed, notices[0].Kind)

	h.logs.fail("save", false)
	st, err = c.ResumeFromBackground(ctx)
	require.NoError(t, err)
	assert.False(t, st.Session.CheckpointPending)
	assert.EqualValues(t, 45, h.logs.seconds(st.Session.WorkoutLogID))
	require.NoError(t, c.Close(ctx))
}

func TestSession_ReconcilesFromServerCheckpoint(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	scope := dayScope("2024-01-10", "p1")
	logID := h.logs.seed(scope.Key, 300, false)

	c := h.coordinator()
	st, err := c.SwitchScope(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, SessionPaused, st.Session.State)
	assert.EqualValues(t, 300, st.Session.ElapsedSeconds)
	assert.Equal(t, logID, st.Session.WorkoutLogID)

	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(20 * time.Second)
	st, err = c.PauseSession(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 320, h.logs.seconds(logID))
	require.NoError(t, c.Close(ctx))
}

func TestSession_LocalSnapshotWinsOverServer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	scope := dayScope("2024-01-10", "p1")
	logID := h.logs.seed(scope.Key, 10, false)
	h.store.SaveSession(TimerSnapshot{ScopeKey: scope.Key.String(), ElapsedSeconds: 75, WorkoutLogID: logID})

	c := h.coordinator()
	st, err := c.SwitchScope(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 75, st.Session.ElapsedSeconds)
	require.NoError(t, c.Close(ctx))
}

func TestSession_ReconcileFailureIsRetriedOnStart(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	scope := dayScope("2024-01-10", "p1")
	h.logs.seed(scope.Key, 200, false)
	h.logs.fail("find", true)

	c := h.coordinator()
	st, err := c.SwitchScope(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 0, st.Session.ElapsedSeconds)
	assert.Equal(t, NoticeReconcileFailed, c.DrainNotices()[0].Kind)

	h.logs.fail("find", false)
	st, err = c.StartSession(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 200, st.Session.ElapsedSeconds)
	require.NoError(t, c.Close(ctx))
}

func TestSession_CompleteRemovesSnapshotAndRefusesRestart(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()
	scope := dayScope("2024-01-10", "p1")

	_, err := c.SwitchScope(ctx, scope)
	require.NoError(t, err)

	_, err = c.CompleteSession(ctx)
	require.ErrorIs(t, err, ErrNotStarted)

	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	_, err = c.StartRest(0)
	require.NoError(t, err)
	h.clock.Advance(50 * time.Second)

	st, err := c.CompleteSession(ctx)
	require.NoError(t, err)
	assert.True(t, st.Session.Completed)
	assert.EqualValues(t, 50, st.Session.CompletedSeconds)
	assert.Equal(t, RestStopped, st.Rest.State)
	assert.EqualValues(t, 50, h.logs.seconds(st.Session.WorkoutLogID))
	assert.Equal(t, 0, h.kv.Len())

	_, err = c.StartSession(ctx)
	require.ErrorIs(t, err, ErrSessionCompleted)
	require.NoError(t, c.Close(ctx))

	// a completed day loads as completed
	c2 := h.coordinator()
	st, err = c2.SwitchScope(ctx, scope)
	require.NoError(t, err)
	assert.True(t, st.Session.Completed)
	assert.EqualValues(t, 50, st.Session.CompletedSeconds)
	require.NoError(t, c2.Close(ctx))
}

func TestSession_CompleteStillStopsWhenServerFails(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Second)

	h.logs.fail("complete", true)
	st, err := c.CompleteSession(ctx)
	require.Error(t, err)
	assert.True(t, st.Session.Completed)
	assert.NotEqual(t, SessionRunning, st.Session.State)
	assert.Equal(t, 0, h.kv.Len())
	require.NoError(t, c.Close(ctx))
}

func TestSession_ResetClearsTime(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(33 * time.Second)

	st, err := c.ResetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, st.Session.State)
	assert.EqualValues(t, 0, st.Session.ElapsedSeconds)
	assert.EqualValues(t, 0, h.logs.seconds(st.Session.WorkoutLogID))
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_SwitchScopeFlushesOutgoingDay(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()
	dayA := dayScope("2024-01-10", "p1")
	dayB := dayScope("2024-01-11", "p1")

	_, err := c.SwitchScope(ctx, dayA)
	require.NoError(t, err)
	st, err := c.StartSession(ctx)
	require.NoError(t, err)
	logA := st.Session.WorkoutLogID
	h.clock.Advance(40 * time.Second)

	st, err = c.SwitchScope(ctx, dayB)
	require.NoError(t, err)
	assert.Equal(t, dayB.Key.String(), st.Scope)
	assert.Equal(t, SessionIdle, st.Session.State)
	assert.EqualValues(t, 0, st.Session.ElapsedSeconds)

	c.Wait()
	assert.EqualValues(t, 40, h.logs.seconds(logA))
	_, ok := h.store.LoadSession(dayA.Key)
	assert.False(t, ok, "outgoing snapshot must be removed")

	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Minute)
	c.Tick()
	st, err = c.PauseSession(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, logA, st.Session.WorkoutLogID)
	assert.EqualValues(t, 120, h.logs.seconds(st.Session.WorkoutLogID))
	assert.EqualValues(t, 40, h.logs.seconds(logA), "no time may leak into the previous day")
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_SwitchBackReconcilesFromServer(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()
	dayA := dayScope("2024-01-10", "p1")
	dayB := dayScope("2024-01-11", "p1")

	_, err := c.SwitchScope(ctx, dayA)
	require.NoError(t, err)
	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(40 * time.Second)

	_, err = c.SwitchScope(ctx, dayB)
	require.NoError(t, err)
	c.Wait()

	st, err := c.SwitchScope(ctx, dayA)
	require.NoError(t, err)
	assert.Equal(t, SessionPaused, st.Session.State)
	assert.EqualValues(t, 40, st.Session.ElapsedSeconds)
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_SwitchBackWaitsForSlowSave(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()
	dayA := dayScope("2024-01-10", "p1")
	dayB := dayScope("2024-01-11", "p1")

	_, err := c.SwitchScope(ctx, dayA)
	require.NoError(t, err)
	st, err := c.StartSession(ctx)
	require.NoError(t, err)
	logA := st.Session.WorkoutLogID
	h.clock.Advance(40 * time.Minute)

	release := h.logs.holdSaves()
	defer release()
	_, err = c.SwitchScope(ctx, dayB)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()
	st, err = c.SwitchScope(ctx, dayA)
	require.NoError(t, err)
	assert.Equal(t, SessionPaused, st.Session.State)
	assert.EqualValues(t, 2400, st.Session.ElapsedSeconds)

	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Second)
	_, err = c.PauseSession(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2405, h.logs.seconds(logA))
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_SwitchBackBeforeSaveLandsKeepsTime(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()
	dayA := dayScope("2024-01-10", "p1")
	dayB := dayScope("2024-01-11", "p1")

	_, err := c.SwitchScope(ctx, dayA)
	require.NoError(t, err)
	st, err := c.StartSession(ctx)
	require.NoError(t, err)
	logA := st.Session.WorkoutLogID
	h.clock.Advance(40 * time.Minute)

	release := h.logs.holdSaves()
	defer release()
	_, err = c.SwitchScope(ctx, dayB)
	require.NoError(t, err)

	// the save of day A is still held when the user returns
	switchCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	st, err = c.SwitchScope(switchCtx, dayA)
	require.NoError(t, err)
	assert.Equal(t, SessionPaused, st.Session.State)
	assert.EqualValues(t, 2400, st.Session.ElapsedSeconds)
	assert.Equal(t, logA, st.Session.WorkoutLogID)
	assert.True(t, st.Session.CheckpointPending)

	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Second)

	release()
	st, err = c.PauseSession(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2405, st.Session.ElapsedSeconds)
	c.Wait()
	assert.EqualValues(t, 2405, h.logs.seconds(logA), "the late save must not overwrite newer time")
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_SwitchBackAfterFailedSaveKeepsTime(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()
	dayA := dayScope("2024-01-10", "p1")
	dayB := dayScope("2024-01-11", "p1")

	_, err := c.SwitchScope(ctx, dayA)
	require.NoError(t, err)
	st, err := c.StartSession(ctx)
	require.NoError(t, err)
	logA := st.Session.WorkoutLogID
	h.clock.Advance(90 * time.Second)

	h.logs.fail("save", true)
	_, err = c.SwitchScope(ctx, dayB)
	require.NoError(t, err)
	c.Wait()
	h.logs.fail("save", false)

	st, err = c.SwitchScope(ctx, dayA)
	require.NoError(t, err)
	assert.EqualValues(t, 90, st.Session.ElapsedSeconds)
	assert.True(t, st.Session.CheckpointPending)

	_, err = c.ResumeFromBackground(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 90, h.logs.seconds(logA))
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_FailedOutgoingFlushDoesNotBlockSwitch(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	_, err = c.StartSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(10 * time.Second)

	h.logs.fail("save", true)
	st, err := c.SwitchScope(ctx, dayScope("2024-01-11", "p1"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-11", st.Date)

	c.Wait()
	notices := c.DrainNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeCheckpointFailed, notices[0].Kind)
	assert.Equal(t, "2024-01-10|p1", notices[0].Scope)
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_RequiresScope(t *testing.T) {
	h := newHarness()
	c := h.coordinator()

	_, err := c.StartSession(context.Background())
	require.ErrorIs(t, err, ErrNoScope)
	_, err = c.State()
	require.ErrorIs(t, err, ErrNoScope)

	_, err = c.SwitchScope(context.Background(), Scope{Key: ScopeKey{Date: "10/01/2024", ProgramID: "p1"}})
	require.Error(t, err)
	c.Tick()
}

func TestCoordinator_TickFlushesPeriodically(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	st, err := c.StartSession(ctx)
	require.NoError(t, err)
	logID := st.Session.WorkoutLogID

	h.clock.Advance(10 * time.Second)
	c.Tick()
	c.Wait()
	assert.Equal(t, 0, h.logs.saveCount(logID))

	h.clock.Advance(25 * time.Second)
	c.Tick()
	c.Wait()
	assert.Equal(t, 1, h.logs.saveCount(logID))
	assert.EqualValues(t, 35, h.logs.seconds(logID))
	require.NoError(t, c.Close(ctx))
}

func TestRest_CompletesExactlyOnce(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	st, err := c.StartRest(60)
	require.NoError(t, err)
	assert.Equal(t, RestRunning, st.Rest.State)

	h.clock.Advance(20 * time.Second)
	st, err = c.State()
	require.NoError(t, err)
	assert.EqualValues(t, 40, st.Rest.RemainingSeconds)

	h.clock.Advance(45 * time.Second)
	c.Tick()
	c.Tick()
	st, err = c.State()
	require.NoError(t, err)
	assert.Equal(t, RestStopped, st.Rest.State)
	assert.EqualValues(t, 60, st.Rest.RemainingSeconds)

	var completions int
	for _, n := range c.DrainNotices() {
		if n.Kind == NoticeRestComplete {
			completions++
		}
	}
	assert.Equal(t, 1, completions)
	require.NoError(t, c.Close(ctx))
}

func TestRest_CompletionAfterRestoreFromSnapshot(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	scope := dayScope("2024-01-10", "p1")

	c := h.coordinator()
	_, err := c.SwitchScope(ctx, scope)
	require.NoError(t, err)
	_, err = c.StartRest(60)
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	h.clock.Advance(65 * time.Second)
	c2 := h.coordinator()
	st, err := c2.SwitchScope(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, RestStopped, st.Rest.State)
	assert.EqualValues(t, 60, st.Rest.RemainingSeconds)
	assert.Len(t, c2.DrainNotices(), 1)
	require.NoError(t, c2.Close(ctx))
}

func TestRest_PauseResume(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	_, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	_, err = c.StartRest(90)
	require.NoError(t, err)

	h.clock.Advance(30 * time.Second)
	st, err := c.PauseRest()
	require.NoError(t, err)
	assert.Equal(t, RestPaused, st.Rest.State)
	assert.EqualValues(t, 60, st.Rest.RemainingSeconds)

	h.clock.Advance(5 * time.Minute)
	st, err = c.ResumeRest()
	require.NoError(t, err)
	assert.Equal(t, RestRunning, st.Rest.State)
	assert.EqualValues(t, 60, st.Rest.RemainingSeconds)

	h.clock.Advance(15 * time.Second)
	st, err = c.ResetRest()
	require.NoError(t, err)
	assert.Equal(t, RestStopped, st.Rest.State)
	assert.EqualValues(t, 90, st.Rest.RemainingSeconds)
	require.NoError(t, c.Close(ctx))
}

func TestRest_PauseInFirstSecondSurvivesRestore(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	scope := dayScope("2024-01-10", "p1")

	c := h.coordinator()
	_, err := c.SwitchScope(ctx, scope)
	require.NoError(t, err)
	_, err = c.StartRest(60)
	require.NoError(t, err)
	h.clock.Advance(500 * time.Millisecond)
	st, err := c.PauseRest()
	require.NoError(t, err)
	assert.Equal(t, RestPaused, st.Rest.State)
	require.NoError(t, c.Close(ctx))

	c2 := h.coordinator()
	st, err = c2.SwitchScope(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, RestPaused, st.Rest.State)
	assert.EqualValues(t, 60, st.Rest.RemainingSeconds)

	h.clock.Advance(10 * time.Second)
	st, err = c2.ResumeRest()
	require.NoError(t, err)
	assert.Equal(t, RestRunning, st.Rest.State)
	assert.EqualValues(t, 60, st.Rest.RemainingSeconds)
	require.NoError(t, c2.Close(ctx))
}

func TestRest_DurationAndPresets(t *testing.T) {
	h := newHarness()
	c := h.coordinator()
	ctx := context.Background()

	st, err := c.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	assert.EqualValues(t, 60, st.Rest.DurationSeconds)
	assert.Equal(t, []int64{30, 60, 120}, st.Rest.Presets)

	st, changed, err := c.ApplyRestPreset(120)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.EqualValues(t, 120, st.Rest.DurationSeconds)

	_, _, err = c.ApplyRestPreset(45)
	require.ErrorIs(t, err, ErrUnknownPreset)

	_, _, err = c.SetRestDuration(0)
	require.ErrorIs(t, err, ErrInvalidDuration)
	_, err = c.StartRest(-5)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = c.StartRest(0)
	require.NoError(t, err)
	st, changed, err = c.SetRestDuration(30)
	require.NoError(t, err)
	assert.False(t, changed, "duration is fixed while counting down")
	assert.EqualValues(t, 120, st.Rest.DurationSeconds)
	require.NoError(t, c.Close(ctx))
}

func TestSnapshotStore_CorruptSnapshotIsAbsent(t *testing.T) {
	h := newHarness()
	key := ScopeKey{Date: "2024-01-10", ProgramID: "p1"}
	require.NoError(t, h.kv.Set(sessionKey(key), "{not json"))
	require.NoError(t, h.kv.Set(restKey(key), `{"scopeKey":"2024-01-10|p1","durationSeconds":0}`))

	_, ok := h.store.LoadSession(key)
	assert.False(t, ok)
	_, ok = h.store.LoadRest(key)
	assert.False(t, ok)
	assert.Equal(t, 0, h.kv.Len(), "unusable snapshots are removed")
}

func TestSnapshotStore_RejectsForeignScope(t *testing.T) {
	h := newHarness()
	key := ScopeKey{Date: "2024-01-10", ProgramID: "p1"}
	other := ScopeKey{Date: "2024-01-11", ProgramID: "p1"}
	h.store.SaveSession(TimerSnapshot{ScopeKey: other.String(), ElapsedSeconds: 10})
	require.NoError(t, h.kv.Set(sessionKey(key), `{"scopeKey":"2024-01-11|p1","elapsedSeconds":10}`))

	_, ok := h.store.LoadSession(key)
	assert.False(t, ok)
	snap, ok := h.store.LoadSession(other)
	require.True(t, ok)
	assert.EqualValues(t, 10, snap.ElapsedSeconds)
}

func TestHub_CoordinatorPerUser(t *testing.T) {
	h := newHarness()
	perUser := map[string]*fakeLogs{"alice": newFakeLogs(), "bob": newFakeLogs()}
	hub := NewHub(HubConfig{
		Base: Options{
			Clock:  h.clock,
			Store:  NewSnapshotStore(kv.NewMemoryStore(), zerolog.Nop()),
			Logger: zerolog.Nop(),
		},
		LogsFor: func(userID string) ProgramLog { return perUser[userID] },
	})
	ctx := context.Background()

	a := hub.For("alice")
	assert.Same(t, a, hub.For("alice"))
	b := hub.For("bob")
	assert.NotSame(t, a, b)

	_, err := a.SwitchScope(ctx, dayScope("2024-01-10", "p1"))
	require.NoError(t, err)
	st, err := a.StartSession(ctx)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	hub.Tick()
	require.NoError(t, hub.Close(ctx))

	assert.EqualValues(t, 60, perUser["alice"].seconds(st.Session.WorkoutLogID))
	_, err = b.State()
	require.ErrorIs(t, err, ErrDetached)
}

func TestHub_EvictsIdleCoordinators(t *testing.T) {
	h := newHarness()
	hub := NewHub(HubConfig{
		Base: Options{
			Clock:  h.clock,
			Store:  h.store,
			Logger: zerolog.Nop(),
		},
		LogsFor:     func(string) ProgramLog { return h.logs },
		IdleTimeout: 10 * time.Minute,
	})
	ctx := context.Background()
	scope := dayScope("2024-01-10", "p1")

	a := hub.For("alice")
	hub.For("bob")
	_, err := a.SwitchScope(ctx, scope)
	require.NoError(t, err)
	_, err = a.StartSession(ctx)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	hub.Tick()
	assert.Equal(t, 1, hub.Len(), "bob is idle, alice is running")
	assert.Same(t, a, hub.For("alice"))

	_, err = a.PauseSession(ctx)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Minute)
	hub.Tick()
	assert.Equal(t, 1, hub.Len(), "recently used")

	h.clock.Advance(10 * time.Minute)
	hub.Tick()
	assert.Equal(t, 0, hub.Len())

	// the paused day comes back from its snapshot
	a2 := hub.For("alice")
	assert.NotSame(t, a, a2)
	_, err = a2.State()
	require.ErrorIs(t, err, ErrNoScope)
	st, err := a2.SwitchScope(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, SessionPaused, st.Session.State)
	assert.EqualValues(t, 3600, st.Session.ElapsedSeconds)

	require.NoError(t, hub.Close(ctx))
}

func TestHub_RunStopsWithContext(t *testing.T) {
	hub := NewHub(HubConfig{Base: Options{Logger: zerolog.Nop()}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	<-done
}

func TestNotices_BufferKeepsNewest(t *testing.T) {
	buf := NewNoticeBuffer(2)
	var logged bytes.Buffer
	n := Notifiers{buf, nil, LogNotifier{Logger: zerolog.New(&logged)}}

	for i := range 3 {
		n.Notify(Notice{Kind: NoticeCheckpointFailed, Message: fmt.Sprintf("n%d", i)})
	}

	got := buf.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].Message)
	assert.Equal(t, "n2", got[1].Message)
	assert.Empty(t, buf.Drain())
	assert.Contains(t, logged.String(), `"kind":"checkpoint_failed"`)
	assert.Contains(t, logged.String(), `"level":"warn"`)
}
