package adapters

import (
	"context"

	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
)

// ServerClient is the opaque RPC surface of the media server. It owns the
// authenticated transport handle and token lifecycle; retry policy belongs
// to callers, never here.
type ServerClient interface {
	// Authenticate performs the full login handshake, including the minimum
	// server version gate. Side effect: the access token is stored for
	// subsequent calls.
	Authenticate(ctx context.Context) (*domain.AuthResult, error)
	// RefreshAuth re-authenticates with the stored credentials. Concurrent
	// callers are collapsed into a single in-flight attempt.
	RefreshAuth(ctx context.Context) error
	ListSessions(ctx context.Context) ([]domain.Session, error)
	SendCommand(ctx context.Context, sessionID string, cmd domain.Command, params domain.CommandParams) error
	// ResolveArtworkURL is pure URL construction; no network call.
	ResolveArtworkURL(ref domain.ArtworkRef) string
	// Probe checks server reachability without requiring authentication.
	Probe(ctx context.Context) error
	// UserID returns the authenticated user's ID, or "" before login.
	UserID() string
}

// EntityHost is the remote-control host runtime's entity lifecycle surface.
type EntityHost interface {
	CreateEntity(entityID, displayName string) error
	UpdateEntityState(entityID string, state domain.DisplayState) error
	// RetireEntity marks an entity idle in the host runtime. It is not a
	// hard deletion; the user may resume playback on the same client.
	RetireEntity(entityID string) error
}
