// Package session owns the single browser session shared by every
// automation job of the worker.
//
// At most one Session is current at any time. Acquire reuses it while it is
// live and matches the requested mode, replaces it otherwise, and never
// creates a new one before the cooldown deadline set by the last close.
// Lifecycle changes (acquire, close, idle timer) are serialized by one lock;
// callers that run work against the page must serialize usage themselves.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/entrhq/quatro-rpa/pkg/browser"
	"github.com/entrhq/quatro-rpa/pkg/logging"
	"github.com/entrhq/quatro-rpa/pkg/status"
)

// ErrClosed is returned by Acquire after Shutdown.
var ErrClosed = errors.New("session manager is shut down")

// logoutTimeout bounds the best-effort logout before a close.
const logoutTimeout = 10 * time.Second

// LogoutFunc ends the portal login on page before the browser is closed.
type LogoutFunc func(ctx context.Context, page browser.Page) error

// Options configures a Manager.
type Options struct {
	Launcher  browser.Launcher
	Publisher *status.Publisher
	Clock     clockwork.Clock
	Logger    *logging.Logger

	// IdleSeconds closes a session unused for this long; <= 0 disables it
	IdleSeconds int

	// CooldownSeconds is the minimum delay between a close and the next
	// session creation
	CooldownSeconds int

	// Logout runs before every close. Its failure never prevents the close.
	Logout LogoutFunc

	// LaunchOptions is the template for new browsers; Headless is set per
	// Acquire and the print/close no-op script is always installed.
	LaunchOptions browser.LaunchOptions
}

// Manager is the single-slot session registry.
type Manager struct {
	launcher  browser.Launcher
	publisher *status.Publisher
	clock     clockwork.Clock
	log       *logging.Logger
	idle      time.Duration
	cooldown  time.Duration
	logout    LogoutFunc
	launch    browser.LaunchOptions

	mu            sync.Mutex
	current       *Session
	generation    uint64
	cooldownUntil time.Time
	timer         clockwork.Timer
	timerSeq      uint64
	shutdown      bool

	// lock-free copies of current and cooldownUntil for readers
	currentSnap  atomic.Pointer[Session]
	cooldownSnap atomic.Pointer[time.Time]
}

// NewManager creates a manager with no live session.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("session")
	}

	m := &Manager{
		launcher:  opts.Launcher,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		log:       opts.Logger,
		logout:    opts.Logout,
		launch:    opts.LaunchOptions,
	}
	if opts.IdleSeconds > 0 {
		m.idle = time.Duration(opts.IdleSeconds) * time.Second
	}
	if opts.CooldownSeconds > 0 {
		m.cooldown = time.Duration(opts.CooldownSeconds) * time.Second
	}
	return m
}

// Acquire returns the current session when it is live, not idle and in the
// requested headless mode. Otherwise it closes the current session, waits
// for the cooldown deadline and creates a new one. The wait honours ctx.
func (m *Manager) Acquire(ctx context.Context, headless bool) (*Session, error) {
	for {
		m.mu.Lock()
		if m.shutdown {
			m.mu.Unlock()
			return nil, ErrClosed
		}

		if s := m.current; s != nil {
			switch {
			case s.Headless != headless:
				m.closeLocked(ctx, s, "headless mode changed")
			case m.isIdleLocked(s):
				m.closeLocked(ctx, s, "idle timeout")
			default:
				// The caller owns s until BeginJob; an armed idle timer
				// must not close it in between.
				m.stopTimerLocked()
				s.touch(m.clock.Now())
				m.mu.Unlock()
				return s, nil
			}
		}

		wait := m.cooldownUntil.Sub(m.clock.Now())
		if wait <= 0 {
			s, err := m.createLocked(ctx, headless)
			m.mu.Unlock()
			return s, err
		}
		m.mu.Unlock()

		m.log.Infof("Cooldown active, waiting %s before opening a browser", wait.Round(time.Second))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.clock.After(wait):
		}
		// Another acquirer may have created a session while we slept.
	}
}

func (m *Manager) isIdleLocked(s *Session) bool {
	if m.idle <= 0 || s.running {
		return false
	}
	return m.clock.Since(s.LastUsedAt()) > m.idle
}

func (m *Manager) createLocked(ctx context.Context, headless bool) (*Session, error) {
	opts := m.launch
	opts.Headless = headless
	opts.InitScripts = withPrintNoop(opts.InitScripts)

	inst, err := m.launcher.Launch(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	m.generation++
	now := m.clock.Now()
	s := &Session{
		ID:         uuid.NewString(),
		Generation: m.generation,
		Headless:   headless,
		CreatedAt:  now,
		instance:   inst,
	}
	s.touch(now)
	m.setCurrentLocked(s)

	m.log.Infof("Opened browser session %s (generation %d, headless=%t)", s.ID, s.Generation, headless)
	m.publisher.MarkActive(ctx, m.idle)
	return s, nil
}

func withPrintNoop(scripts []string) []string {
	for _, s := range scripts {
		if s == browser.NoopPrintAndClose {
			return scripts
		}
	}
	out := make([]string, 0, len(scripts)+1)
	out = append(out, browser.NoopPrintAndClose)
	return append(out, scripts...)
}

// BeginJob marks s as in use and cancels any pending idle close.
func (m *Manager) BeginJob(ctx context.Context, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.touch(m.clock.Now())
	s.running = true
	if s != m.current {
		return
	}
	m.stopTimerLocked()
	m.publisher.MarkRunning(ctx)
}

// EndJob marks s as free and schedules the idle close. A session that was
// closed during the job only has its last-use time refreshed.
func (m *Manager) EndJob(ctx context.Context, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.touch(m.clock.Now())
	s.running = false
	if s != m.current {
		return
	}

	m.publisher.MarkActive(ctx, m.idle)
	if m.idle > 0 {
		m.scheduleIdleLocked(s)
	}
}

func (m *Manager) scheduleIdleLocked(s *Session) {
	m.stopTimerLocked()
	seq := m.timerSeq
	m.timer = m.clock.AfterFunc(m.idle, func() {
		m.onIdle(s, seq)
	})
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerSeq++
}

// onIdle closes s only when it is still the current session, the timer was
// not replaced or cancelled since it was armed and no job is running.
func (m *Manager) onIdle(s *Session, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != s || m.timerSeq != seq || s.running {
		return
	}
	m.timer = nil
	m.closeLocked(context.Background(), s, "idle timeout")
}

// CloseAndCooldown logs out, releases the browser of s and starts the
// cooldown window. It does nothing when s is no longer current.
func (m *Manager) CloseAndCooldown(ctx context.Context, s *Session, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s == nil || s != m.current {
		m.log.Debugf("Ignoring close of stale session (%s)", reason)
		return
	}
	m.closeLocked(ctx, s, reason)
}

func (m *Manager) closeLocked(ctx context.Context, s *Session, reason string) {
	m.stopTimerLocked()
	m.releaseLocked(ctx, s)

	until := m.clock.Now().Add(m.cooldown)
	m.cooldownUntil = until
	m.cooldownSnap.Store(&until)
	m.log.Infof("Closed browser session %s (%s), cooldown %s", s.ID, reason, m.cooldown)
	m.publisher.MarkCooldown(ctx, m.cooldown)
}

// releaseLocked runs the logout hook and closes the instance. Failures are
// logged; the slot is always cleared.
func (m *Manager) releaseLocked(ctx context.Context, s *Session) error {
	m.setCurrentLocked(nil)

	if m.logout != nil {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
		if err := m.logout(lctx, s.instance.Page()); err != nil {
			m.log.Warnf("Logout of session %s failed: %v", s.ID, err)
		}
		cancel()
	}

	if err := s.instance.Close(); err != nil {
		m.log.Warnf("Closing browser of session %s: %v", s.ID, err)
		return err
	}
	return nil
}

func (m *Manager) setCurrentLocked(s *Session) {
	m.current = s
	m.currentSnap.Store(s)
}

// Current returns the live session, or nil. It does not wait for a launch
// or close in progress.
func (m *Manager) Current() *Session {
	return m.currentSnap.Load()
}

// CooldownUntil returns the earliest time a new session may be created. It
// does not wait for a launch or close in progress.
func (m *Manager) CooldownUntil() time.Time {
	if t := m.cooldownSnap.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Shutdown closes the live session without starting a cooldown and makes
// every later Acquire fail with ErrClosed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdown = true
	m.stopTimerLocked()

	s := m.current
	if s == nil {
		return nil
	}
	err := m.releaseLocked(ctx, s)
	m.log.Infof("Closed browser session %s on shutdown", s.ID)
	m.publisher.MarkCooldown(ctx, 0)
	return err
}
