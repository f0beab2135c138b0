// Package reconcile keeps the entity-binding table synchronized with the
// server's session set. It is the single writer of the table; command
// dispatch and status reporting only read it.
package reconcile

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mase1981/uc-intg-jellyfin/internal/adapters"
	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
	"github.com/mase1981/uc-intg-jellyfin/internal/health"
	"github.com/mase1981/uc-intg-jellyfin/internal/metrics"
	"github.com/mase1981/uc-intg-jellyfin/internal/project"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultGraceWindow  = 90 * time.Second
	defaultCallTimeout  = 10 * time.Second

	wakeQueueSize = 1
)

// binding is the durable mapping from a stable entity identity to the
// session currently backing it. Identity derives from (clientName, userId),
// never from the session ID, which churns across client reconnects.
type binding struct {
	EntityID    string
	ClientName  string
	UserID      string
	DeviceName  string
	DisplayName string

	LastKnownSessionID string
	Display            domain.DisplayState
	RuntimeTicks       int64
	PositionTicks      int64

	CreatedAt    time.Time
	MissingSince time.Time
	Idle         bool
}

func (b *binding) clone() *binding {
	c := *b
	return &c
}

// Reconciler polls the session set and diffs it against the binding table,
// emitting entity lifecycle calls to the host runtime. A tick is atomic:
// the new table snapshot is built completely and swapped in, or discarded.
type Reconciler struct {
	client  adapters.ServerClient
	host    adapters.EntityHost
	monitor *health.Monitor
	log     *slog.Logger

	pollInterval time.Duration
	graceWindow  time.Duration
	callTimeout  time.Duration
	now          func() time.Time

	wake chan struct{}

	mu       sync.RWMutex
	bindings map[string]*binding

	authMu     sync.Mutex
	authFailed bool
}

type Option func(*Reconciler)

func WithPollInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func WithGraceWindow(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.graceWindow = d
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

func NewReconciler(client adapters.ServerClient, host adapters.EntityHost, monitor *health.Monitor, logger *slog.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Reconciler{
		client:       client,
		host:         host,
		monitor:      monitor,
		log:          logger,
		pollInterval: defaultPollInterval,
		graceWindow:  defaultGraceWindow,
		callTimeout:  defaultCallTimeout,
		now:          time.Now,
		wake:         make(chan struct{}, wakeQueueSize),
		bindings:     map[string]*binding{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wake requests an immediate reconciliation pass. Non-blocking; coalesces
// with any pass already pending.
func (r *Reconciler) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run drives the poll loop. Polling pauses while disconnected and resumes
// with an immediate full pass when connectivity returns.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tr := <-r.monitor.Transitions():
			if tr.To != health.StateConnected {
				continue
			}
			r.clearAuthFailed()
			r.runTick(ctx, "reconnect")
			ticker.Reset(r.pollInterval)
		case <-r.wake:
			metrics.PushWakeups.Inc()
			r.runTick(ctx, "push")
		case <-ticker.C:
			r.runTick(ctx, "poll")
		}
	}
}

func (r *Reconciler) runTick(ctx context.Context, trigger string) {
	if r.monitor.State() == health.StateDisconnected {
		return
	}
	if r.isAuthFailed() {
		// Polling is halted until connectivity cycles; entities stay at
		// their last known display, frozen rather than cleared.
		return
	}

	if err := r.Tick(ctx); err != nil {
		r.log.Warn("reconcile_tick_failed",
			slog.String("trigger", trigger),
			slog.String("error", err.Error()),
		)
	}
}

// Tick runs one reconciliation pass: fetch, filter, dedupe, diff, project,
// emit. Transport failures make the whole tick a no-op; bindings keep their
// last known display.
func (r *Reconciler) Tick(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	sessions, err := r.client.ListSessions(callCtx)
	cancel()
	if err != nil {
		return r.handleListFailure(ctx, err)
	}
	r.monitor.RecordSuccess()

	now := r.now()
	live := r.selectSessions(sessions)

	next := make(map[string]*binding, len(r.snapshot()))
	var events []hostEvent

	for entityID, s := range live {
		display := project.Project(s, r.client)
		old := r.lookup(entityID)

		var b *binding
		if old == nil {
			b = &binding{
				EntityID:    entityID,
				ClientName:  s.ClientName,
				UserID:      s.UserID,
				DeviceName:  s.DeviceName,
				DisplayName: displayName(s),
				CreatedAt:   now,
			}
			events = append(events, hostEvent{kind: eventCreate, entityID: entityID, name: b.DisplayName, display: display})
		} else {
			b = old.clone()
			b.MissingSince = time.Time{}
			b.Idle = false
			if display != old.Display {
				events = append(events, hostEvent{kind: eventUpdate, entityID: entityID, display: display})
			}
		}

		b.LastKnownSessionID = s.ID
		b.Display = display
		b.PositionTicks = s.PositionTicks
		if s.NowPlaying != nil {
			b.RuntimeTicks = s.NowPlaying.RuntimeTicks
		}
		next[entityID] = b
	}

	// Bindings whose session vanished ride out the grace window before
	// going idle; momentary gaps (client app backgrounded, reconnects)
	// must not churn entities in the host runtime.
	for entityID, old := range r.snapshot() {
		if _, seen := next[entityID]; seen {
			continue
		}
		b := old.clone()
		if b.MissingSince.IsZero() {
			b.MissingSince = now
		}
		if !b.Idle && now.Sub(b.MissingSince) >= r.graceWindow {
			b.Idle = true
			b.LastKnownSessionID = ""
			b.Display = domain.StoppedDisplay()
			events = append(events, hostEvent{kind: eventRetire, entityID: entityID, display: b.Display})
		}
		next[entityID] = b
	}

	r.mu.Lock()
	r.bindings = next
	r.mu.Unlock()

	liveCount := 0
	for _, b := range next {
		if !b.Idle && b.LastKnownSessionID != "" {
			liveCount++
		}
	}
	metrics.ActiveBindings.Set(float64(liveCount))
	metrics.ReconcileTicks.WithLabelValues("ok").Inc()

	r.emit(events)
	return nil
}

func (r *Reconciler) handleListFailure(ctx context.Context, err error) error {
	metrics.ReconcileTicks.WithLabelValues("error").Inc()

	if domain.IsUnauthorized(err) {
		// Exactly one re-authentication attempt per detection. The next
		// tick retries the listing with the fresh token.
		metrics.Reauths.Inc()
		refreshCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		refreshErr := r.client.RefreshAuth(refreshCtx)
		cancel()
		if refreshErr != nil {
			r.setAuthFailed()
			r.monitor.RecordFailure()
			r.log.Error("reauthentication_failed", slog.String("error", refreshErr.Error()))
			return refreshErr
		}
		r.log.Info("reauthenticated_after_unauthorized")
		return nil
	}

	var te *domain.TransportError
	if errors.As(err, &te) {
		metrics.TransportErrors.WithLabelValues(string(te.Kind)).Inc()
		r.monitor.RecordFailure()
	}
	return err
}

// selectSessions filters to the authenticated user's active sessions and
// deduplicates by (clientName, userId), keeping the most recently active
// session per pair. Duplicates are common transiently during reconnects.
func (r *Reconciler) selectSessions(sessions []domain.Session) map[string]domain.Session {
	userID := r.client.UserID()
	live := make(map[string]domain.Session)

	for _, s := range sessions {
		if s.UserID != userID || s.UserID == "" {
			continue
		}
		if !s.IsActive {
			continue
		}
		entityID := EntityID(s.ClientName, s.UserID)
		if prev, ok := live[entityID]; ok && !s.LastActivityAt.After(prev.LastActivityAt) {
			continue
		}
		live[entityID] = s
	}
	return live
}

// ResolveSession maps an entity to its live session for command dispatch.
// ok is false when the entity is unknown, idle, or has no session.
func (r *Reconciler) ResolveSession(entityID string) (sessionID string, runtimeTicks, positionTicks int64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, found := r.bindings[entityID]
	if !found || b.Idle || b.LastKnownSessionID == "" {
		return "", 0, 0, false
	}
	return b.LastKnownSessionID, b.RuntimeTicks, b.PositionTicks, true
}

// BindingCount returns total and live binding counts, for status reporting.
func (r *Reconciler) BindingCount() (total, live int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bindings {
		total++
		if !b.Idle && b.LastKnownSessionID != "" {
			live++
		}
	}
	return total, live
}

func (r *Reconciler) snapshot() map[string]*binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*binding, len(r.bindings))
	for id, b := range r.bindings {
		out[id] = b
	}
	return out
}

func (r *Reconciler) lookup(entityID string) *binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bindings[entityID]
}

type eventKind int

const (
	eventCreate eventKind = iota
	eventUpdate
	eventRetire
)

type hostEvent struct {
	kind     eventKind
	entityID string
	name     string
	display  domain.DisplayState
}

func (r *Reconciler) emit(events []hostEvent) {
	for _, ev := range events {
		var err error
		switch ev.kind {
		case eventCreate:
			if err = r.host.CreateEntity(ev.entityID, ev.name); err == nil {
				err = r.host.UpdateEntityState(ev.entityID, ev.display)
			}
			r.log.Info("entity_created", slog.String("entity_id", ev.entityID), slog.String("name", ev.name))
		case eventUpdate:
			err = r.host.UpdateEntityState(ev.entityID, ev.display)
			metrics.EntityUpdates.Inc()
		case eventRetire:
			if err = r.host.UpdateEntityState(ev.entityID, ev.display); err == nil {
				err = r.host.RetireEntity(ev.entityID)
			}
			r.log.Info("entity_retired", slog.String("entity_id", ev.entityID))
		}
		if err != nil {
			r.log.Warn("host_runtime_call_failed",
				slog.String("entity_id", ev.entityID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *Reconciler) setAuthFailed() {
	r.authMu.Lock()
	r.authFailed = true
	r.authMu.Unlock()
}

func (r *Reconciler) clearAuthFailed() {
	r.authMu.Lock()
	r.authFailed = false
	r.authMu.Unlock()
}

func (r *Reconciler) isAuthFailed() bool {
	r.authMu.Lock()
	defer r.authMu.Unlock()
	return r.authFailed
}

// EntityID derives the stable entity identity from the client name and
// user ID. Deterministic across restarts, which is what makes rebuilding
// the binding table from scratch on startup safe.
func EntityID(clientName, userID string) string {
	sum := sha1.Sum([]byte(clientName + "|" + userID))
	return "jf_" + hex.EncodeToString(sum[:8])
}

func displayName(s domain.Session) string {
	if s.DeviceName != "" && s.DeviceName != s.ClientName {
		return fmt.Sprintf("%s (%s)", s.ClientName, s.DeviceName)
	}
	return s.ClientName
}
