// Package status publishes the coarse state of the browser session to a
// shared key/value store so the web application can poll it. Publishing is
// best-effort: failures are logged and never reach the automation.
package status

import (
	"context"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/entrhq/quatro-rpa/pkg/logging"
)

// State is the published session state.
type State string

const (
	StateRunning  State = "running"
	StateActive   State = "active"
	StateCooldown State = "cooldown"
	StateNone     State = "none"
	StateUnknown  State = "unknown"
)

// Record field names, shared with the web application.
const (
	fieldState         = "state"
	fieldActiveUntil   = "active_until"
	fieldCooldownUntil = "cooldown_until"
	fieldUpdatedAt     = "updated_at"
)

// DefaultTTL bounds how long a status survives a crashed worker.
const DefaultTTL = time.Hour

// writeTimeout bounds a single store round trip.
const writeTimeout = 3 * time.Second

// Status is the last published state. Deadlines are unix seconds.
type Status struct {
	State         State  `json:"state"`
	ActiveUntil   *int64 `json:"active_until,omitempty"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty"`
	UpdatedAt     *int64 `json:"updated_at,omitempty"`
}

// Publisher writes and reads the session status. A nil *Publisher is valid
// and does nothing.
type Publisher struct {
	store Store
	clock clockwork.Clock
	ttl   time.Duration
	log   *logging.Logger
}

// NewPublisher creates a publisher over store.
func NewPublisher(store Store, clock clockwork.Clock, ttl time.Duration, log *logging.Logger) *Publisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Publisher{store: store, clock: clock, ttl: ttl, log: log}
}

// MarkRunning publishes that a job is using the session.
func (p *Publisher) MarkRunning(ctx context.Context) {
	p.set(ctx, StateRunning, nil, nil)
}

// MarkActive publishes that the session is alive and reusable until idle
// closes it.
func (p *Publisher) MarkActive(ctx context.Context, idle time.Duration) {
	if p == nil {
		return
	}
	until := p.clock.Now().Add(idle)
	p.set(ctx, StateActive, &until, nil)
}

// MarkCooldown publishes the cooldown deadline, or none when d <= 0.
func (p *Publisher) MarkCooldown(ctx context.Context, d time.Duration) {
	if p == nil {
		return
	}
	if d <= 0 {
		p.set(ctx, StateNone, nil, nil)
		return
	}
	until := p.clock.Now().Add(d)
	p.set(ctx, StateCooldown, nil, &until)
}

func (p *Publisher) set(ctx context.Context, state State, activeUntil, cooldownUntil *time.Time) {
	if p == nil || p.store == nil {
		return
	}

	fields := map[string]string{
		fieldState:     string(state),
		fieldUpdatedAt: strconv.FormatInt(p.clock.Now().Unix(), 10),
	}
	if activeUntil != nil {
		fields[fieldActiveUntil] = strconv.FormatInt(activeUntil.Unix(), 10)
	}
	if cooldownUntil != nil {
		fields[fieldCooldownUntil] = strconv.FormatInt(cooldownUntil.Unix(), 10)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := p.store.Put(ctx, fields, p.ttl); err != nil {
		p.log.Warnf("could not save session status %s: %v", state, err)
	}
}

// Get returns the last published status, {none} when nothing was written
// and {unknown} when the store cannot be read.
func (p *Publisher) Get(ctx context.Context) Status {
	if p == nil || p.store == nil {
		return Status{State: StateNone}
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	data, err := p.store.Fetch(ctx)
	if err != nil {
		p.log.Warnf("could not read session status: %v", err)
		return Status{State: StateUnknown}
	}
	if len(data) == 0 {
		return Status{State: StateNone}
	}

	st := Status{State: State(data[fieldState])}
	if st.State == "" {
		st.State = StateNone
	}
	st.ActiveUntil = parseUnix(data, fieldActiveUntil)
	st.CooldownUntil = parseUnix(data, fieldCooldownUntil)
	st.UpdatedAt = parseUnix(data, fieldUpdatedAt)
	return st
}

// parseUnix ignores malformed values like the web application does.
func parseUnix(data map[string]string, field string) *int64 {
	raw, ok := data[field]
	if !ok {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
