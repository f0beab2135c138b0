// Package dispatch routes remote-originated commands to the server session
// backing an entity. It holds no state of its own.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
	"github.com/mase1981/uc-intg-jellyfin/internal/metrics"
)

const (
	defaultCallTimeout = 10 * time.Second
	skipTicks          = 30 * domain.TicksPerSecond
)

type sessionResolver interface {
	ResolveSession(entityID string) (sessionID string, runtimeTicks, positionTicks int64, ok bool)
}

type commandSender interface {
	SendCommand(ctx context.Context, sessionID string, cmd domain.Command, params domain.CommandParams) error
}

// Dispatcher translates entity commands into server playback calls. Fire
// and forget: playback-state confirmation arrives through the next
// reconciliation tick, never synchronously.
type Dispatcher struct {
	resolver    sessionResolver
	sender      commandSender
	log         *slog.Logger
	callTimeout time.Duration
}

func NewDispatcher(resolver sessionResolver, sender commandSender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		resolver:    resolver,
		sender:      sender,
		log:         logger,
		callTimeout: defaultCallTimeout,
	}
}

// Dispatch executes one command against the session currently mapped to
// entityID. Entities without a live session return ErrNoActiveSession,
// which the host runtime surfaces as a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, entityID string, cmd domain.Command, params domain.CommandParams) error {
	sessionID, runtimeTicks, positionTicks, ok := d.resolver.ResolveSession(entityID)
	if !ok {
		metrics.Commands.WithLabelValues(string(cmd), "no_session").Inc()
		return fmt.Errorf("entity %s: %w", entityID, domain.ErrNoActiveSession)
	}

	// Relative skips become absolute seeks against the last known
	// position, clamped to the runtime. Stale positions are acceptable: a
	// seek past the end triggers a natural stop on the next poll.
	switch cmd {
	case domain.CommandFastForward:
		cmd = domain.CommandSeek
		params.SeekPositionTicks = clampTicks(positionTicks+skipTicks, runtimeTicks)
	case domain.CommandRewind:
		cmd = domain.CommandSeek
		params.SeekPositionTicks = clampTicks(positionTicks-skipTicks, runtimeTicks)
	case domain.CommandSeek:
		params.SeekPositionTicks = clampTicks(params.SeekPositionTicks, runtimeTicks)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	if err := d.sender.SendCommand(callCtx, sessionID, cmd, params); err != nil {
		metrics.Commands.WithLabelValues(string(cmd), "error").Inc()
		d.log.Warn("command_failed",
			slog.String("entity_id", entityID),
			slog.String("command", string(cmd)),
			slog.String("error", err.Error()),
		)
		return err
	}

	metrics.Commands.WithLabelValues(string(cmd), "ok").Inc()
	d.log.Debug("command_sent",
		slog.String("entity_id", entityID),
		slog.String("command", string(cmd)),
		slog.String("session_id", sessionID),
	)
	return nil
}

func clampTicks(ticks, runtimeTicks int64) int64 {
	if ticks < 0 {
		return 0
	}
	if runtimeTicks > 0 && ticks > runtimeTicks {
		return runtimeTicks
	}
	return ticks
}
