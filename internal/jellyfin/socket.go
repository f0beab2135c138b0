package jellyfin

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/buger/jsonparser"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	socketHandshakeTimeout = 10 * time.Second
	socketReconnectBase    = 2 * time.Second
	socketReconnectCap     = 2 * time.Minute
)

// SocketListener subscribes to the server's push-notification websocket and
// signals the reconciler whenever a session or playstate message arrives.
// It is an accelerator only: polling remains the source of truth, and any
// socket failure degrades silently to pure polling.
type SocketListener struct {
	client *Client
	notify func()
	log    *slog.Logger
	dialer *websocket.Dialer
}

func NewSocketListener(client *Client, notify func(), logger *slog.Logger) *SocketListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SocketListener{
		client: client,
		notify: notify,
		log:    logger,
		dialer: &websocket.Dialer{HandshakeTimeout: socketHandshakeTimeout},
	}
}

// Run maintains the websocket connection until ctx is cancelled, backing
// off between reconnect attempts.
func (l *SocketListener) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(socketReconnectBase),
		backoff.WithMaxInterval(socketReconnectCap),
		backoff.WithMaxElapsedTime(0),
	)

	for {
		if ctx.Err() != nil {
			return
		}

		if l.client.Token() == "" {
			// Not authenticated yet; nothing to subscribe to.
			if !sleepCtx(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}

		err := l.readLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		l.log.Debug("push_socket_reconnect",
			slog.String("error", errString(err)),
			slog.Duration("wait", wait),
		)
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

func (l *SocketListener) readLoop(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.client.SocketURL(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	l.log.Info("push_socket_connected")

	// Close the connection when ctx dies so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		l.handleMessage(conn, data)
	}
}

func (l *SocketListener) handleMessage(conn *websocket.Conn, data []byte) {
	msgType, err := jsonparser.GetString(data, "MessageType")
	if err != nil {
		return
	}

	switch msgType {
	case "Sessions", "SessionsStart", "PlaystateChange", "GeneralCommand", "UserDataChanged":
		if l.notify != nil {
			l.notify()
		}
	case "ForceKeepAlive", "KeepAlive":
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"MessageType":"KeepAlive"}`))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
