package tempo_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/AndrewDonelson/tempo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_RealTimeModeAlwaysAllows(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{
		ClockRate:           1,
		HTTPPolicy:          tempo.PolicyBlock,
		HTTPBlockedPatterns: []string{"/api/*"},
	})
	assert.True(t, svc.IsAllowed("/api/users"))
}

func TestGuard_PolicyPrecedence(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{
		ClockRate:           100,
		HTTPPolicy:          tempo.PolicyAllow,
		HTTPAllowedPatterns: []string{"/api/*"},
		HTTPBlockedPatterns: []string{"/api/admin*"},
	})

	assert.True(t, svc.IsAllowed("/api/users"))

	d := svc.GuardRequest("/api/admin/delete")
	assert.Equal(t, tempo.PolicyBlock, d.Action)
	assert.Contains(t, d.Reason, "accelerated mode active (rate=100x)")

	// Unmatched path falls back to the default policy.
	assert.True(t, svc.IsAllowed("/healthz"))
}

func TestGuard_DefaultBlock(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{ClockRate: 100})

	d := svc.GuardRequest("/anything")
	assert.Equal(t, tempo.PolicyBlock, d.Action)
	assert.False(t, d.Allowed())
}

func TestGuard_Throttle(t *testing.T) {
	var denied []string
	svc, clk := newSvc(t, tempo.Config{
		ClockRate:         100,
		HTTPPolicy:        tempo.PolicyThrottle,
		HTTPThrottleLimit: 3,
		OnHTTPRequestDenied: func(path, reason string) {
			denied = append(denied, fmt.Sprintf("%s: %s", path, reason))
		},
	})

	for i := 0; i < 3; i++ {
		assert.True(t, svc.IsAllowed("/a"), "request %d", i)
	}
	d := svc.GuardRequest("/a")
	assert.Equal(t, tempo.PolicyThrottle, d.Action)
	assert.Contains(t, d.Reason, "Throttle limit")
	require.Len(t, denied, 1)
	assert.Contains(t, denied[0], "/a")

	// The window is wall-clock: after 60 real seconds the budget refills,
	// no matter how far virtual time has raced ahead.
	clk.Advance(61 * time.Second)
	assert.True(t, svc.IsAllowed("/a"))
}

func TestGuard_ThrottleWindowSlides(t *testing.T) {
	svc, clk := newSvc(t, tempo.Config{
		ClockRate:         100,
		HTTPPolicy:        tempo.PolicyThrottle,
		HTTPThrottleLimit: 2,
	})

	assert.True(t, svc.IsAllowed("/x"))
	clk.Advance(40 * time.Second)
	assert.True(t, svc.IsAllowed("/x"))
	assert.False(t, svc.IsAllowed("/x"))

	// First admission falls out of the window; one slot frees up.
	clk.Advance(25 * time.Second)
	assert.True(t, svc.IsAllowed("/x"))
	assert.False(t, svc.IsAllowed("/x"))
}

func TestGuard_ResetThrottle(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{
		ClockRate:         100,
		HTTPPolicy:        tempo.PolicyThrottle,
		HTTPThrottleLimit: 1,
	})

	assert.True(t, svc.IsAllowed("/a"))
	assert.False(t, svc.IsAllowed("/a"))
	svc.ResetThrottle()
	assert.True(t, svc.IsAllowed("/a"))
}

func TestGuard_BlockedDeniedCallback(t *testing.T) {
	var denied int
	svc, _ := newSvc(t, tempo.Config{
		ClockRate:           100,
		HTTPPolicy:          tempo.PolicyAllow,
		HTTPBlockedPatterns: []string{"/admin/*"},
		OnHTTPRequestDenied: func(path, reason string) { denied++ },
	})

	assert.False(t, svc.IsAllowed("/admin/users"))
	assert.Equal(t, 1, denied)
	assert.True(t, svc.IsAllowed("/public"))
	assert.Equal(t, 1, denied)
}

func TestGuard_GlobSemantics(t *testing.T) {
	svc, _ := newSvc(t, tempo.Config{
		ClockRate:           100,
		HTTPPolicy:          tempo.PolicyBlock,
		HTTPAllowedPatterns: []string{"/api/v1.2/test", "/files/?", "/static/*"},
	})

	// Metacharacters are literal.
	assert.True(t, svc.IsAllowed("/api/v1.2/test"))
	assert.False(t, svc.IsAllowed("/api/v1X2/test"))

	// ? matches exactly one character.
	assert.True(t, svc.IsAllowed("/files/a"))
	assert.False(t, svc.IsAllowed("/files/ab"))
	assert.False(t, svc.IsAllowed("/files/"))

	// * matches any run, including empty.
	assert.True(t, svc.IsAllowed("/static/"))
	assert.True(t, svc.IsAllowed("/static/css/site.css"))
}
