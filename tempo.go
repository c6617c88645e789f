package tempo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AndrewDonelson/tempo/internal/clock"
	"github.com/AndrewDonelson/tempo/internal/kv"
	"github.com/AndrewDonelson/tempo/internal/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Persisted KV keys. The layout is part of the public contract.
const (
	KeyBaseTimestamp = "virtual_clock_base_timestamp"
	KeyAppVersion    = "virtual_clock_app_version"
)

// ────────────────────────────────────────────────────────────────────────────
// State
// ────────────────────────────────────────────────────────────────────────────

// State is the progression state of the virtual clock.
type State int

const (
	StateRunning State = iota
	StatePaused
)

// String returns "running" or "paused".
func (s State) String() string {
	if s == StatePaused {
		return "paused"
	}
	return "running"
}

// ────────────────────────────────────────────────────────────────────────────
// Service
// ────────────────────────────────────────────────────────────────────────────

// Service is the clock service orchestrator: it owns the time transform,
// the boundary detectors, the HTTP guard, and the periodic event-check
// ticker, and drives persistence through the configured Store.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	logger  Logger
	metrics metrics.Recorder
	store   kv.Store
	clk     clock.Clock

	tf    transform
	guard *requestGuard

	newHour   *Detector
	atNoon    *Detector
	newDay    *Detector
	weekStart *Detector
	weekEnd   *Detector
	detectors []*Detector // fixed evaluation order

	ticker         clock.Ticker
	lastEventCheck time.Time
	initialized    bool
	disposed       bool

	snapSealer *sealer

	changeMu   sync.Mutex
	changeSubs map[uint64]func()
	changeNext uint64
}

// NewService creates an uninitialized Service from the provided Config.
// Call Initialize before reading virtual time.
func NewService(cfg Config) (*Service, error) {
	cfg.defaults()

	store, err := buildStore(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.Store = store

	s := &Service{
		cfg:        cfg,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		store:      cfg.Store,
		clk:        cfg.Clock,
		tf:         transform{clk: cfg.Clock, rate: 1},
		changeSubs: make(map[uint64]func()),
	}
	s.guard = newRequestGuard(cfg, cfg.Clock, cfg.Metrics)

	s.newHour = newDetector("new-hour", crossedHour, cfg.Logger, cfg.Metrics)
	s.atNoon = newDetector("at-noon", crossedNoon, cfg.Logger, cfg.Metrics)
	s.newDay = newDetector("new-day", crossedDay, cfg.Logger, cfg.Metrics)
	s.weekStart = newDetector("week-start", crossedWeekStart, cfg.Logger, cfg.Metrics)
	s.weekEnd = newDetector("week-end", crossedWeekEnd, cfg.Logger, cfg.Metrics)
	s.detectors = []*Detector{s.newHour, s.atNoon, s.newDay, s.weekStart, s.weekEnd}

	return s, nil
}

// buildStore resolves the persistence backend: an explicit Store wins,
// then RedisAddr, then PostgresDSN, then in-process memory.
func buildStore(cfg *Config) (kv.Store, error) {
	if cfg.Store != nil {
		return cfg.Store, nil
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return kv.NewRedis(client), nil
	}
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("tempo: postgres pool: %w", err)
		}
		return kv.NewPostgres(pool), nil
	}
	return kv.NewMemory(), nil
}

// Initialize validates the configured rate, applies the environment
// guards, loads the persisted anchor, primes the detectors, and starts
// the event-check ticker.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}

	rate := s.coerceConfigRate(s.cfg.ClockRate)
	if s.cfg.IsProduction && rate != 1 {
		s.mu.Unlock()
		return ErrProductionViolation
	}
	if isReleaseBuild() && !s.cfg.ForceEnable && rate != 1 {
		s.logger.Warn("tempo: acceleration disabled in release build; set ForceEnable to override",
			"env", BuildEnv, "requested", rate)
		rate = 1
	}

	if len(s.cfg.EncryptionKey) > 0 {
		sl, err := newSealer(s.cfg.EncryptionKey)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.snapSealer = sl
	}

	if m, ok := s.store.(interface{ Migrate(context.Context) error }); ok {
		if err := m.Migrate(ctx); err != nil {
			s.logger.Error("tempo: store migration failed", "err", err)
			s.metrics.RecordPersistError()
		}
	}

	baseVirtual, err := s.loadAnchor(ctx)
	if err != nil {
		// The live transform keeps functioning with in-memory state.
		s.logger.Error("tempo: failed to load persisted anchor", "err", err)
		s.metrics.RecordPersistError()
		baseVirtual = s.clk.Now()
	}
	s.tf.rate = rate
	s.tf.anchor(baseVirtual)
	s.persistAnchorLocked(ctx)

	current := s.tf.now()
	for _, d := range s.detectors {
		d.Initialize(current)
	}

	s.startTickerLocked()
	s.initialized = true
	s.metrics.RecordRateChange(rate)
	s.logger.Info("tempo: initialized", "rate", rate, "base", baseVirtual)
	s.mu.Unlock()

	s.notifyChange()
	return nil
}

// loadAnchor applies the version-gated load rule: when Config.AppVersion
// is set, a missing or mismatched persisted app version discards the
// stored anchor. Without a configured AppVersion the stored anchor is
// used whenever present.
func (s *Service) loadAnchor(ctx context.Context) (time.Time, error) {
	realNow := s.clk.Now()
	if s.cfg.AppVersion != "" {
		stored, ok, err := s.store.GetString(ctx, KeyAppVersion)
		if err != nil {
			return realNow, err
		}
		if !ok || stored != s.cfg.AppVersion {
			s.logger.Info("tempo: app version changed; discarding persisted anchor",
				"stored", stored, "current", s.cfg.AppVersion)
			return realNow, nil
		}
	}
	ms, ok, err := s.store.GetInt64(ctx, KeyBaseTimestamp)
	if err != nil {
		return realNow, err
	}
	if !ok {
		return realNow, nil
	}
	return time.UnixMilli(ms), nil
}

// Dispose stops the ticker and clears every subscriber. Terminal.
func (s *Service) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.initialized = false
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.mu.Unlock()

	for _, d := range s.detectors {
		d.Clear()
	}
	s.changeMu.Lock()
	s.changeSubs = make(map[uint64]func())
	s.changeMu.Unlock()
}

// ────────────────────────────────────────────────────────────────────────────
// Time reads
// ────────────────────────────────────────────────────────────────────────────

// Now returns the current virtual time.
func (s *Service) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tf.now()
}

// IsInitialized reports whether Initialize has completed.
func (s *Service) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// IsProduction reports the configured production flag.
func (s *Service) IsProduction() bool { return s.cfg.IsProduction }

// ClockRate returns the active rate multiplier.
func (s *Service) ClockRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tf.rate
}

// State returns StateRunning or StatePaused.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tf.paused {
		return StatePaused
	}
	return StateRunning
}

// IsPaused reports whether virtual time is frozen by Pause.
func (s *Service) IsPaused() bool { return s.State() == StatePaused }

// LastEventCheckTime returns the virtual time of the most recent event
// sweep, zero if none has run.
func (s *Service) LastEventCheckTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventCheck
}

// ────────────────────────────────────────────────────────────────────────────
// Time mutations
// ────────────────────────────────────────────────────────────────────────────

// TimeTravelTo jumps virtual time to target and sweeps the detectors so
// every boundary crossed by the jump fires.
func (s *Service) TimeTravelTo(target time.Time) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.tf.timeTravelTo(target)
	s.persistAnchorLocked(context.Background())
	s.logger.Info("tempo: time travel", "target", target)
	s.mu.Unlock()

	s.TriggerEventCheck()
	s.notifyChange()
}

// FastForward advances virtual time by d. Equivalent to
// TimeTravelTo(Now().Add(d)).
func (s *Service) FastForward(d time.Duration) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.tf.fastForward(d)
	s.persistAnchorLocked(context.Background())
	s.logger.Info("tempo: fast forward", "delta", d)
	s.mu.Unlock()

	s.TriggerEventCheck()
	s.notifyChange()
}

// Pause freezes virtual time. Idempotent.
func (s *Service) Pause() {
	s.mu.Lock()
	changed := s.tf.pause()
	s.mu.Unlock()
	if changed {
		s.logger.Info("tempo: paused")
		s.notifyChange()
	}
}

// Resume unfreezes virtual time. Idempotent.
func (s *Service) Resume() {
	s.mu.Lock()
	changed := s.tf.resume()
	s.mu.Unlock()
	if changed {
		s.logger.Info("tempo: resumed")
		s.notifyChange()
	}
}

// Reset re-anchors virtual time at real now, clears pause state, and
// reinitializes the detectors so no boundary is retroactively crossed.
func (s *Service) Reset() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.tf.reset()
	s.persistAnchorLocked(context.Background())
	current := s.tf.now()
	for _, d := range s.detectors {
		d.Initialize(current)
	}
	s.logger.Info("tempo: reset", "base", current)
	s.mu.Unlock()

	s.notifyChange()
}

// SetRate changes the rate multiplier, preserving the current Now().
// Out-of-range values are clamped to [0, MaxClockRate] with a warning.
// Fails with ErrProductionViolation when IsProduction is set.
func (s *Service) SetRate(rate int) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.cfg.IsProduction {
		s.mu.Unlock()
		return ErrProductionViolation
	}
	if rate < 0 {
		s.logger.Warn("tempo: negative rate clamped to 0", "requested", rate)
		rate = 0
	}
	if rate > MaxClockRate {
		s.logger.Warn("tempo: rate clamped to maximum", "requested", rate, "max", MaxClockRate)
		rate = MaxClockRate
	}
	s.tf.setRate(rate)
	s.persistAnchorLocked(context.Background())
	if s.initialized {
		s.startTickerLocked()
	}
	s.metrics.RecordRateChange(rate)
	s.logger.Info("tempo: rate changed", "rate", rate)
	s.mu.Unlock()

	s.notifyChange()
	return nil
}

// IncreaseRate doubles the current rate.
func (s *Service) IncreaseRate() error { return s.ScaleRate(2.0) }

// DecreaseRate halves the current rate.
func (s *Service) DecreaseRate() error { return s.ScaleRate(0.5) }

// ScaleRate multiplies the current rate by multiplier, rounding to the
// nearest integer.
func (s *Service) ScaleRate(multiplier float64) error {
	if multiplier <= 0 {
		return ErrInvalidConfig
	}
	s.mu.Lock()
	rate := s.tf.rate
	s.mu.Unlock()
	scaled := int(float64(rate)*multiplier + 0.5)
	return s.SetRate(scaled)
}

// ────────────────────────────────────────────────────────────────────────────
// Event detectors
// ────────────────────────────────────────────────────────────────────────────

// NewHour returns the detector firing when virtual time enters a new hour.
func (s *Service) NewHour() *Detector { return s.newHour }

// AtNoon returns the detector firing once per virtual day at or past 12:00.
func (s *Service) AtNoon() *Detector { return s.atNoon }

// NewDay returns the detector firing when the virtual calendar date changes.
func (s *Service) NewDay() *Detector { return s.newDay }

// WeekStart returns the detector firing when the ISO week changes.
func (s *Service) WeekStart() *Detector { return s.weekStart }

// WeekEnd returns the detector firing on the Sunday→Monday transition.
func (s *Service) WeekEnd() *Detector { return s.weekEnd }

// TriggerEventCheck sweeps every detector against the current virtual
// time. It runs even while paused, so a mutation made during a pause
// still delivers its boundary events.
func (s *Service) TriggerEventCheck() {
	s.sweep(true)
}

// tick is the periodic sweep; it skips paused spans.
func (s *Service) tick() {
	s.sweep(false)
}

func (s *Service) sweep(force bool) {
	s.mu.Lock()
	if s.disposed || (s.tf.paused && !force) {
		s.mu.Unlock()
		return
	}
	current := s.tf.now()
	s.lastEventCheck = current
	s.mu.Unlock()

	s.metrics.RecordTick()
	for _, d := range s.detectors {
		d.CheckAndTrigger(current)
	}
}

// startTickerLocked (re)starts the event-check ticker at the cadence for
// the current rate: 1s at rate ≤ 1, 1000/rate ms clamped to [50ms, 1s]
// above that.
func (s *Service) startTickerLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.ticker = s.clk.TickFunc(tickInterval(s.tf.rate), s.tick)
}

func tickInterval(rate int) time.Duration {
	if rate <= 1 {
		return time.Second
	}
	interval := time.Second / time.Duration(rate)
	if interval < 50*time.Millisecond {
		return 50 * time.Millisecond
	}
	return interval
}

// ────────────────────────────────────────────────────────────────────────────
// HTTP guard
// ────────────────────────────────────────────────────────────────────────────

// GuardRequest evaluates the HTTP policy for path and returns the
// decision. Denials invoke the configured OnHTTPRequestDenied callback.
func (s *Service) GuardRequest(path string) Decision {
	s.mu.Lock()
	rate := s.tf.rate
	s.mu.Unlock()
	return s.guard.evaluate(path, rate)
}

// IsAllowed reports whether a request to path may proceed.
func (s *Service) IsAllowed(path string) bool {
	return s.GuardRequest(path).Allowed()
}

// ResetThrottle clears the guard's sliding-window admission log.
func (s *Service) ResetThrottle() {
	s.guard.resetThrottle()
}

// ────────────────────────────────────────────────────────────────────────────
// Persistence
// ────────────────────────────────────────────────────────────────────────────

// ClearAllState removes both persisted keys. Live state is not mutated.
func (s *Service) ClearAllState(ctx context.Context) error {
	if err := s.store.Remove(ctx, KeyBaseTimestamp); err != nil {
		return err
	}
	return s.store.Remove(ctx, KeyAppVersion)
}

// persistAnchorLocked writes the virtual anchor and app version.
// Persistence failures are logged and swallowed; the live transform keeps
// functioning with in-memory state.
func (s *Service) persistAnchorLocked(ctx context.Context) {
	if err := s.store.SetInt64(ctx, KeyBaseTimestamp, s.tf.baseVirtual.UnixMilli()); err != nil {
		s.logger.Error("tempo: failed to persist anchor", "err", err)
		s.metrics.RecordPersistError()
		return
	}
	if s.cfg.AppVersion == "" {
		return
	}
	if err := s.store.SetString(ctx, KeyAppVersion, s.cfg.AppVersion); err != nil {
		s.logger.Error("tempo: failed to persist app version", "err", err)
		s.metrics.RecordPersistError()
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Change notification
// ────────────────────────────────────────────────────────────────────────────

// OnChange registers fn to run after every observable state change
// (initialize, time travel, fast forward, pause, resume, reset, rate
// change). The returned cancel revokes the registration.
func (s *Service) OnChange(fn func()) (cancel func()) {
	s.changeMu.Lock()
	s.changeNext++
	id := s.changeNext
	s.changeSubs[id] = fn
	s.changeMu.Unlock()
	return func() {
		s.changeMu.Lock()
		delete(s.changeSubs, id)
		s.changeMu.Unlock()
	}
}

func (s *Service) notifyChange() {
	s.changeMu.Lock()
	subs := make([]func(), 0, len(s.changeSubs))
	for _, fn := range s.changeSubs {
		subs = append(subs, fn)
	}
	s.changeMu.Unlock()
	for _, fn := range subs {
		s.safeNotify(fn)
	}
}

func (s *Service) safeNotify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tempo: change callback panicked", "panic", r)
		}
	}()
	fn()
}

// ────────────────────────────────────────────────────────────────────────────
// Rate validation
// ────────────────────────────────────────────────────────────────────────────

// coerceConfigRate applies the config rule: negative or out-of-range
// rates are coerced to 1 with a warning, never rejected.
func (s *Service) coerceConfigRate(rate int) int {
	if rate < 0 {
		s.logger.Warn("tempo: negative ClockRate coerced to 1", "requested", rate)
		return 1
	}
	if rate > MaxClockRate {
		s.logger.Warn("tempo: ClockRate out of range; coerced to 1", "requested", rate, "max", MaxClockRate)
		return 1
	}
	return rate
}
