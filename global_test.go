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

func setupGlobal(t *testing.T, cfg tempo.Config) (*tempo.Service, *clock.Mock) {
	t.Helper()
	tempo.ResetGlobal()
	clk := clock.NewMock(testEpoch)
	cfg.Clock = clk
	cfg.Store = kv.NewMemory()
	svc, err := tempo.Setup(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(tempo.ResetGlobal)
	return svc, clk
}

func TestGlobal_AccessBeforeSetup(t *testing.T) {
	tempo.ResetGlobal()

	_, err := tempo.GlobalService()
	assert.ErrorIs(t, err, tempo.ErrNotInitialized)
	assert.PanicsWithError(t, tempo.ErrNotInitialized.Error(), func() { tempo.C() })
}

func TestGlobal_SetupReturnsExisting(t *testing.T) {
	svc, _ := setupGlobal(t, tempo.Config{ClockRate: 100})

	again, err := tempo.Setup(context.Background(), tempo.Config{ClockRate: 7})
	require.NoError(t, err)
	assert.Same(t, svc, again)
	assert.Same(t, svc, tempo.C())
}

func TestGlobal_ResetAllowsNewSetup(t *testing.T) {
	svc, _ := setupGlobal(t, tempo.Config{ClockRate: 100})
	tempo.ResetGlobal()
	assert.False(t, svc.IsInitialized())

	_, err := tempo.GlobalService()
	assert.ErrorIs(t, err, tempo.ErrNotInitialized)

	again, err := tempo.Setup(context.Background(), tempo.Config{
		ClockRate: 50,
		Clock:     clock.NewMock(testEpoch),
		Store:     kv.NewMemory(),
	})
	require.NoError(t, err)
	t.Cleanup(tempo.ResetGlobal)
	assert.NotSame(t, svc, again)
	assert.Equal(t, 50, again.ClockRate())
}

func TestGlobal_DatePredicates(t *testing.T) {
	_, _ = setupGlobal(t, tempo.Config{ClockRate: 100})

	now := tempo.C().Now()
	assert.True(t, tempo.IsVirtualToday(now))
	assert.True(t, tempo.IsVirtualToday(now.Add(2*time.Hour)))
	assert.False(t, tempo.IsVirtualToday(now.AddDate(0, 0, -1)))

	assert.True(t, tempo.IsVirtualYesterday(now.AddDate(0, 0, -1)))
	assert.False(t, tempo.IsVirtualYesterday(now))

	assert.True(t, tempo.IsInVirtualPast(now.Add(-time.Minute)))
	assert.True(t, tempo.IsInVirtualFuture(now.Add(time.Minute)))

	assert.False(t, tempo.IsDifferentFromVirtualNow(now.Add(500*time.Millisecond)))
	assert.True(t, tempo.IsDifferentFromVirtualNow(now.Add(2*time.Second)))
	assert.True(t, tempo.IsDifferentFromVirtualNow(now.Add(-2*time.Second)))

	assert.InDelta(t, float64(time.Minute), float64(tempo.DifferenceFromVirtualNow(now.Add(time.Minute))), float64(50*time.Millisecond))
}

func TestGlobal_PredicatesTrackTimeTravel(t *testing.T) {
	_, _ = setupGlobal(t, tempo.Config{ClockRate: 100})

	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	tempo.C().TimeTravelTo(target)

	assert.True(t, tempo.IsVirtualToday(target.Add(3*time.Hour)))
	assert.True(t, tempo.IsVirtualYesterday(target.AddDate(0, 0, -1)))
	assert.True(t, tempo.IsInVirtualPast(testEpoch))
}
