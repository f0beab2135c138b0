// Package host provides EntityHost implementations. The real host runtime
// lives outside this process; LogHost stands in for it when the bridge
// runs standalone, recording every lifecycle call as a structured log
// event.
package host

import (
	"io"
	"log/slog"
	"sync"

	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
)

type LogHost struct {
	log *slog.Logger

	mu       sync.Mutex
	entities map[string]domain.DisplayState
}

func NewLogHost(logger *slog.Logger) *LogHost {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogHost{
		log:      logger,
		entities: map[string]domain.DisplayState{},
	}
}

func (h *LogHost) CreateEntity(entityID, displayName string) error {
	h.mu.Lock()
	h.entities[entityID] = domain.DisplayState{}
	h.mu.Unlock()

	h.log.Info("host_entity_create",
		slog.String("entity_id", entityID),
		slog.String("display_name", displayName),
	)
	return nil
}

func (h *LogHost) UpdateEntityState(entityID string, state domain.DisplayState) error {
	h.mu.Lock()
	h.entities[entityID] = state
	h.mu.Unlock()

	h.log.Info("host_entity_update",
		slog.String("entity_id", entityID),
		slog.String("state", string(state.State)),
		slog.String("title", state.Title),
	)
	return nil
}

func (h *LogHost) RetireEntity(entityID string) error {
	h.log.Info("host_entity_retire", slog.String("entity_id", entityID))
	return nil
}

// EntityCount reports how many entities the host has seen.
func (h *LogHost) EntityCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entities)
}
