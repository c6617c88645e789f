package tempo_test

import (
	"context"
	"testing"
	"time"

	"github.com/AndrewDonelson/tempo"
	"github.com/AndrewDonelson/tempo/internal/clock"
	"github.com/AndrewDonelson/tempo/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ─────────────────────────────────────────────────────────────────

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) // a Monday

// newSvc builds an initialized service on a mock clock and memory store.
func newSvc(t *testing.T, cfg tempo.Config) (*tempo.Service, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(testEpoch)
	if cfg.Clock == nil {
		cfg.Clock = clk
	}
	if cfg.Store == nil {
		cfg.Store = kv.NewMemory()
	}
	svc, err := tempo.NewService(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(svc.Dispose)
	return svc, clk
}

// ── Rate identity and linearity ──────────────────────────────────────────────

func TestNow_RateIdentity(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 1})
	assert.WithinDuration(t, clk.Now(), svc.Now(), time.Millisecond)

	clk.Advance(10 * time.Second)
	assert.WithinDuration(t, clk.Now(), svc.Now(), time.Millisecond)
}

func TestNow_Linearity(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	before := svc.Now()
	clk.Advance(250 * time.Millisecond)
	after := svc.Now()
	assert.Equal(t, 25*time.Second, after.Sub(before))
}

func TestNow_FrozenRate(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})
	require.NoError(t, svc.SetRate(0))

	before := svc.Now()
	clk.Advance(5 * time.Second)
	assert.Equal(t, before, svc.Now())
}

// ── Pause / resume ───────────────────────────────────────────────────────────

func TestPause_Monotonicity(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	svc.Pause()
	frozen := svc.Now()
	clk.Advance(50 * time.Millisecond)
	assert.Equal(t, frozen, svc.Now())
	assert.Equal(t, tempo.StatePaused, svc.State())
	assert.True(t, svc.IsPaused())

	svc.Resume()
	clk.Advance(10 * time.Millisecond)
	assert.True(t, svc.Now().After(frozen))
}

func TestPause_Idempotent(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	svc.Pause()
	frozen := svc.Now()
	svc.Pause()
	clk.Advance(time.Second)
	svc.Pause()
	assert.Equal(t, frozen, svc.Now())

	svc.Resume()
	svc.Resume()
	assert.Equal(t, tempo.StateRunning, svc.State())
}

func TestResume_Continuity(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	start := svc.Now()
	clk.Advance(100 * time.Millisecond) // +10s virtual
	svc.Pause()
	clk.Advance(3 * time.Second) // paused span, no progression
	svc.Resume()
	clk.Advance(100 * time.Millisecond) // +10s virtual

	assert.Equal(t, 20*time.Second, svc.Now().Sub(start))
}

// ── Time travel / fast forward ───────────────────────────────────────────────

func TestTimeTravel_Idempotence(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})

	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.TimeTravelTo(target)
	svc.TimeTravelTo(target)
	assert.WithinDuration(t, target, svc.Now(), time.Millisecond)
}

func TestFastForward_Composition(t *testing.T) {
	svcA, _ := newSvc(t, tempo.Config{ClockRate: 100})
	svcB, _ := newSvc(t, tempo.Config{ClockRate: 100})

	svcA.FastForward(90 * time.Minute)
	svcA.FastForward(30 * time.Minute)
	svcB.FastForward(2 * time.Hour)
	assert.WithinDuration(t, svcB.Now(), svcA.Now(), time.Millisecond)
}

func TestTimeTravel_WhilePaused(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	svc.Pause()
	target := time.Date(2031, 1, 1, 8, 30, 0, 0, time.UTC)
	svc.TimeTravelTo(target)
	clk.Advance(time.Second)
	assert.Equal(t, target, svc.Now())

	svc.Resume()
	clk.Advance(10 * time.Millisecond)
	assert.True(t, svc.Now().After(target))
}

// ── Rate changes ─────────────────────────────────────────────────────────────

func TestSetRate_PreservesNow(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	clk.Advance(time.Second)
	before := svc.Now()
	require.NoError(t, svc.SetRate(10))
	assert.WithinDuration(t, before, svc.Now(), time.Millisecond)

	clk.Advance(time.Second)
	assert.Equal(t, 10*time.Second, svc.Now().Sub(before))
}

func TestSetRate_Clamps(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})

	require.NoError(t, svc.SetRate(-5))
	assert.Equal(t, 0, svc.ClockRate())

	require.NoError(t, svc.SetRate(tempo.MaxClockRate+1))
	assert.Equal(t, tempo.MaxClockRate, svc.ClockRate())
}

func TestScaleRate(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})

	require.NoError(t, svc.IncreaseRate())
	assert.Equal(t, 200, svc.ClockRate())
	require.NoError(t, svc.DecreaseRate())
	assert.Equal(t, 100, svc.ClockRate())
	assert.ErrorIs(t, svc.ScaleRate(-1), tempo.ErrInvalidConfig)
}

func TestSetRate_Production(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 1, IsProduction: true})
	assert.ErrorIs(t, svc.SetRate(100), tempo.ErrProductionViolation)
	assert.True(t, svc.IsProduction())
}

// ── Initialization guards ────────────────────────────────────────────────────

func TestInitialize_ProductionViolation(t *testing.T) {
	svc, err := tempo.NewService(tempo.Config{
		ClockRate:    100,
		IsProduction: true,
		Clock:        clock.NewMock(testEpoch),
		Store:        kv.NewMemory(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Initialize(context.Background()), tempo.ErrProductionViolation)
}

func TestInitialize_ProductionPassthrough(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 1, IsProduction: true})
	assert.True(t, svc.IsInitialized())
	assert.Equal(t, 1, svc.ClockRate())
}

func TestInitialize_NegativeRateCoerced(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: -3})
	assert.Equal(t, 1, svc.ClockRate())
}

func TestInitialize_Twice(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})
	assert.ErrorIs(t, svc.Initialize(context.Background()), tempo.ErrAlreadyInitialized)
}

func TestDispose_Terminal(t *testing.T) {
	clk := clock.NewMock(testEpoch)
	svc, err := tempo.NewService(tempo.Config{ClockRate: 100, Clock: clk, Store: kv.NewMemory()})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))

	svc.NewDay().Subscribe(func(time.Time) {})
	svc.Dispose()
	assert.False(t, svc.IsInitialized())
	assert.False(t, svc.NewDay().HasSubscribers())
	assert.ErrorIs(t, svc.Initialize(context.Background()), tempo.ErrDisposed)
	assert.ErrorIs(t, svc.SetRate(5), tempo.ErrDisposed)
}

// ── Persistence ──────────────────────────────────────────────────────────────

func TestPersistence_RoundTrip(t *testing.T) {
	store := kv.NewMemory()
	clk := clock.NewMock(testEpoch)

	svcA, err := tempo.NewService(tempo.Config{ClockRate: 100, AppVersion: "1.0.0", Clock: clk, Store: store})
	require.NoError(t, err)
	require.NoError(t, svcA.Initialize(context.Background()))
	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	svcA.TimeTravelTo(target)
	svcA.Dispose()

	svcB, err := tempo.NewService(tempo.Config{ClockRate: 100, AppVersion: "1.0.0", Clock: clk, Store: store})
	require.NoError(t, err)
	require.NoError(t, svcB.Initialize(context.Background()))
	defer svcB.Dispose()
	assert.WithinDuration(t, target, svcB.Now(), time.Second)
}

func TestPersistence_VersionGatedReset(t *testing.T) {
	store := kv.NewMemory()
	clk := clock.NewMock(testEpoch)

	svcA, err := tempo.NewService(tempo.Config{ClockRate: 100, AppVersion: "1.0.0", Clock: clk, Store: store})
	require.NoError(t, err)
	require.NoError(t, svcA.Initialize(context.Background()))
	svcA.TimeTravelTo(time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC))
	svcA.Dispose()

	svcB, err := tempo.NewService(tempo.Config{ClockRate: 100, AppVersion: "2.0.0", Clock: clk, Store: store})
	require.NoError(t, err)
	require.NoError(t, svcB.Initialize(context.Background()))
	defer svcB.Dispose()
	assert.WithinDuration(t, clk.Now(), svcB.Now(), time.Second)
}

func TestClearAllState(t *testing.T) {
	store := kv.NewMemory()
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100, AppVersion: "1.0.0", Store: store})

	svc.TimeTravelTo(time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC))
	live := svc.Now()
	require.NoError(t, svc.ClearAllState(context.Background()))

	_, ok, err := store.GetInt64(context.Background(), tempo.KeyBaseTimestamp)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetString(context.Background(), tempo.KeyAppVersion)
	require.NoError(t, err)
	assert.False(t, ok)
	// Live state untouched.
	assert.WithinDuration(t, live, svc.Now(), time.Second)
}

// failingStore returns errors on every operation.
type failingStore struct{ err error }

func (f failingStore) GetInt64(context.Context, string) (int64, bool, error) { return 0, false, f.err }
func (f failingStore) SetInt64(context.Context, string, int64) error         { return f.err }
func (f failingStore) GetString(context.Context, string) (string, bool, error) {
	return "", false, f.err
}
func (f failingStore) SetString(context.Context, string, string) error { return f.err }
func (f failingStore) Remove(context.Context, string) error            { return f.err }

func TestPersistence_FaultsSwallowed(t *testing.T) {
	clk := clock.NewMock(testEpoch)
	svc, err := tempo.NewService(tempo.Config{
		ClockRate: 100,
		Clock:     clk,
		Store:     failingStore{err: context.DeadlineExceeded},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	defer svc.Dispose()

	// Mutations keep working on in-memory state.
	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.TimeTravelTo(target)
	assert.WithinDuration(t, target, svc.Now(), time.Millisecond)
}

// ── Change notification ──────────────────────────────────────────────────────

func TestOnChange_FiredOncePerMutation(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})

	var fired int
	cancel := svc.OnChange(func() { fired++ })

	svc.TimeTravelTo(time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC))
	svc.FastForward(time.Hour)
	svc.Pause()
	svc.Pause() // no change, no notification
	svc.Resume()
	require.NoError(t, svc.SetRate(50))
	svc.Reset()
	assert.Equal(t, 6, fired)

	cancel()
	svc.Pause()
	assert.Equal(t, 6, fired)
}

func TestOnChange_PanicIsolated(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})

	var fired bool
	svc.OnChange(func() { panic("listener") })
	svc.OnChange(func() { fired = true })
	svc.Pause()
	assert.True(t, fired)
}

// ── End-to-end scenarios ─────────────────────────────────────────────────────

func TestScenario_AcceleratedProgression(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	svc.TimeTravelTo(time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC))
	clk.Advance(10 * time.Millisecond)

	got := svc.Now()
	assert.Equal(t, time.Date(2030, 6, 15, 12, 0, 1, 0, time.UTC), got)
}

func TestScenario_HourBoundaryOnFastForward(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})

	var fired int
	svc.NewHour().Subscribe(func(time.Time) { fired++ })

	svc.TimeTravelTo(time.Date(2030, 6, 15, 14, 59, 50, 0, time.UTC))
	before := fired
	svc.FastForward(2 * time.Minute)
	svc.TriggerEventCheck()
	assert.GreaterOrEqual(t, fired-before, 1)
}

func TestScenario_PauseFreeze(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	svc.Pause()
	frozen := svc.Now()
	clk.Advance(50 * time.Millisecond)
	assert.Equal(t, frozen, svc.Now())

	svc.Resume()
	clk.Advance(time.Millisecond)
	assert.True(t, svc.Now().After(frozen))
}

// ── Reset ────────────────────────────────────────────────────────────────────

func TestReset_ReanchorsAndReinitializesDetectors(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	var fired int
	svc.NewDay().Subscribe(func(time.Time) { fired++ })

	svc.TimeTravelTo(time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC))
	firedAfterTravel := fired

	svc.Reset()
	assert.WithinDuration(t, clk.Now(), svc.Now(), time.Millisecond)

	// The jump back is not a retroactive boundary crossing.
	svc.TriggerEventCheck()
	assert.Equal(t, firedAfterTravel, fired)
	assert.Equal(t, tempo.StateRunning, svc.State())
}

// ── Event check bookkeeping ──────────────────────────────────────────────────

func TestLastEventCheckTime(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})

	svc.TriggerEventCheck()
	first := svc.LastEventCheckTime()
	assert.False(t, first.IsZero())

	svc.FastForward(time.Hour)
	assert.True(t, svc.LastEventCheckTime().After(first))
}

func TestTicker_SweepsOnMockTicks(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 3600}) // interval clamps to 50ms

	var fired int
	svc.NewHour().Subscribe(func(time.Time) { fired++ })

	// 50ms real = 3 virtual minutes per tick; 30 ticks advance 90 minutes,
	// past an hour.
	for i := 0; i < 30; i++ {
		clk.Advance(50 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, fired, 1)
}

func TestTicker_PausedTicksIgnored(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{ClockRate: 100})

	svc.Pause()
	before := svc.LastEventCheckTime()
	clk.Advance(3 * time.Second)
	assert.Equal(t, before, svc.LastEventCheckTime())
}
