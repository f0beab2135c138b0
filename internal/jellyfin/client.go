package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/singleflight"

	"github.com/mase1981/uc-intg-jellyfin/internal/buildinfo"
	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
)

const (
	clientName             = "Jellyfin Bridge"
	defaultArtworkMaxWidth = 600
)

// Options configure a Client. URL, Username and Password are required.
type Options struct {
	URL           string
	Username      string
	Password      string
	TwoFactorCode string
	MinVersion    string
	DeviceID      string
	ActiveWithin  int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client talks to a Jellyfin server over its REST API. It owns the access
// token; it never retries — callers decide retry policy.
type Client struct {
	baseURL      string
	username     string
	password     string
	twoFactor    string
	minVersion   string
	deviceID     string
	deviceName   string
	activeWithin int

	httpClient *http.Client
	log        *slog.Logger

	refreshGroup singleflight.Group

	mu       sync.RWMutex
	token    string
	userID   string
	serverID string
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	deviceID := strings.TrimSpace(opts.DeviceID)
	if deviceID == "" {
		deviceID = uuid.New().String()
	}
	deviceName, err := os.Hostname()
	if err != nil || deviceName == "" {
		deviceName = "uc-intg-jellyfin"
	}
	activeWithin := opts.ActiveWithin
	if activeWithin <= 0 {
		activeWithin = 960
	}

	return &Client{
		baseURL:      strings.TrimRight(opts.URL, "/"),
		username:     opts.Username,
		password:     opts.Password,
		twoFactor:    strings.TrimSpace(opts.TwoFactorCode),
		minVersion:   opts.MinVersion,
		deviceID:     deviceID,
		deviceName:   deviceName,
		activeWithin: activeWithin,
		httpClient:   httpClient,
		log:          logger,
	}
}

type publicInfo struct {
	ID         string `json:"Id"`
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

type authResponse struct {
	User struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"User"`
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
}

// Authenticate logs in with the stored credentials. The server version is
// gated first; servers below the configured minimum are rejected before any
// credentials are sent.
func (c *Client) Authenticate(ctx context.Context) (*domain.AuthResult, error) {
	info, err := c.publicInfo(ctx)
	if err != nil {
		return nil, &domain.AuthError{Reason: domain.AuthServerUnreachable, Message: err.Error()}
	}
	if c.minVersion != "" && compareVersions(info.Version, c.minVersion) < 0 {
		return nil, &domain.AuthError{
			Reason:  domain.AuthServerTooOld,
			Message: fmt.Sprintf("server version %s is below required minimum %s", info.Version, c.minVersion),
		}
	}

	// The TOTP plugin convention: a one-shot 2FA code is appended to the
	// password. No resumable multi-step auth state exists.
	password := c.password
	if c.twoFactor != "" {
		password += c.twoFactor
	}

	body, err := json.Marshal(map[string]string{
		"Username": c.username,
		"Pw":       password,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Users/AuthenticateByName", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emby-Authorization", c.authorizationHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.AuthError{Reason: domain.AuthServerUnreachable, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		reason := domain.AuthInvalidCredentials
		if c.twoFactor == "" && strings.Contains(strings.ToLower(readErrorBody(resp.Body)), "two") {
			reason = domain.AuthTwoFactorRequired
		}
		return nil, &domain.AuthError{Reason: reason, Message: "server rejected the credentials"}
	default:
		return nil, &domain.AuthError{
			Reason:  domain.AuthServerUnreachable,
			Message: fmt.Sprintf("unexpected status %d during authentication", resp.StatusCode),
		}
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, &domain.AuthError{Reason: domain.AuthServerUnreachable, Message: "malformed authentication response"}
	}
	if auth.AccessToken == "" {
		return nil, &domain.AuthError{Reason: domain.AuthInvalidCredentials, Message: "no access token in authentication response"}
	}

	c.mu.Lock()
	c.token = auth.AccessToken
	c.userID = auth.User.ID
	c.serverID = auth.ServerID
	c.mu.Unlock()

	c.log.Info("jellyfin_authenticated",
		slog.String("server", info.ServerName),
		slog.String("server_version", info.Version),
		slog.String("user_id", auth.User.ID),
	)

	return &domain.AuthResult{
		UserID:        auth.User.ID,
		AccessToken:   auth.AccessToken,
		ServerID:      auth.ServerID,
		ServerName:    info.ServerName,
		ServerVersion: info.Version,
	}, nil
}

// RefreshAuth collapses concurrent re-authentication attempts into one; all
// waiters share the single attempt's outcome.
func (c *Client) RefreshAuth(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		_, authErr := c.Authenticate(ctx)
		return nil, authErr
	})
	return err
}

// Probe checks server reachability without credentials.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.publicInfo(ctx)
	return err
}

func (c *Client) publicInfo(ctx context.Context) (*publicInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/System/Info/Public", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("probe", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{Kind: domain.TransportUnreachable, Op: "probe",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	var info publicInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &domain.TransportError{Kind: domain.TransportUnreachable, Op: "probe", Err: err}
	}
	return &info, nil
}

// ListSessions returns the server's current session set, mapped to domain
// sessions. Unauthorized is returned to the caller, never retried here.
func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	q := url.Values{}
	q.Set("ActiveWithinSeconds", strconv.Itoa(c.activeWithin))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/Sessions?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Emby-Token", c.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("list_sessions", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &domain.TransportError{Kind: domain.TransportUnauthorized, Op: "list_sessions"}
	default:
		return nil, &domain.TransportError{Kind: domain.TransportUnreachable, Op: "list_sessions",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var wire []wireSession
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &domain.TransportError{Kind: domain.TransportUnreachable, Op: "list_sessions", Err: err}
	}

	sessions := make([]domain.Session, 0, len(wire))
	for _, ws := range wire {
		sessions = append(sessions, ws.toDomain())
	}
	return sessions, nil
}

// SendCommand issues a playstate command against a session. Fire and
// forget: state confirmation arrives through the next reconciliation tick.
func (c *Client) SendCommand(ctx context.Context, sessionID string, cmd domain.Command, params domain.CommandParams) error {
	endpoint, body, err := c.commandRequest(sessionID, cmd, params)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Emby-Token", c.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.CommandError{Kind: domain.CommandUnreachable, SessionID: sessionID, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &domain.CommandError{Kind: domain.CommandSessionGone, SessionID: sessionID}
	default:
		return &domain.CommandError{Kind: domain.CommandRejected, SessionID: sessionID,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

func (c *Client) commandRequest(sessionID string, cmd domain.Command, params domain.CommandParams) (string, []byte, error) {
	base := c.baseURL + "/Sessions/" + url.PathEscape(sessionID)

	switch cmd {
	case domain.CommandPlay:
		return base + "/Playing/Unpause", nil, nil
	case domain.CommandPause:
		return base + "/Playing/Pause", nil, nil
	case domain.CommandPlayPause:
		return base + "/Playing/PlayPause", nil, nil
	case domain.CommandStop:
		return base + "/Playing/Stop", nil, nil
	case domain.CommandNext:
		return base + "/Playing/NextTrack", nil, nil
	case domain.CommandPrevious:
		return base + "/Playing/PreviousTrack", nil, nil
	case domain.CommandSeek:
		q := url.Values{}
		q.Set("SeekPositionTicks", strconv.FormatInt(params.SeekPositionTicks, 10))
		return base + "/Playing/Seek?" + q.Encode(), nil, nil
	case domain.CommandSetVolume:
		body, err := json.Marshal(map[string]any{
			"Name":      "SetVolume",
			"Arguments": map[string]string{"Volume": strconv.Itoa(params.Volume)},
		})
		return base + "/Command", body, err
	case domain.CommandVolumeUp:
		body, err := json.Marshal(map[string]any{"Name": "VolumeUp"})
		return base + "/Command", body, err
	case domain.CommandVolumeDown:
		body, err := json.Marshal(map[string]any{"Name": "VolumeDown"})
		return base + "/Command", body, err
	case domain.CommandMuteToggle:
		body, err := json.Marshal(map[string]any{"Name": "ToggleMute"})
		return base + "/Command", body, err
	default:
		return "", nil, &domain.CommandError{Kind: domain.CommandRejected, SessionID: sessionID,
			Err: fmt.Errorf("unsupported command %q", cmd)}
	}
}

// ResolveArtworkURL builds the image URL for a reference. Pure URL
// construction; an empty reference resolves to "".
func (c *Client) ResolveArtworkURL(ref domain.ArtworkRef) string {
	if ref.IsZero() {
		return ""
	}
	q := url.Values{}
	q.Set("maxWidth", strconv.Itoa(defaultArtworkMaxWidth))
	if ref.Tag != "" {
		q.Set("tag", ref.Tag)
	}
	return c.baseURL + "/Items/" + url.PathEscape(ref.ItemID) + "/Images/" + url.PathEscape(ref.ImageType) + "?" + q.Encode()
}

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Token returns the current access token, or "" before authentication.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SocketURL is the websocket endpoint for push notifications.
func (c *Client) SocketURL() string {
	wsBase := c.baseURL
	switch {
	case strings.HasPrefix(wsBase, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	case strings.HasPrefix(wsBase, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}
	q := url.Values{}
	q.Set("api_key", c.Token())
	q.Set("deviceId", c.deviceID)
	return wsBase + "/socket?" + q.Encode()
}

func (c *Client) authorizationHeader() string {
	return fmt.Sprintf(
		`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		clientName, c.deviceName, c.deviceID, buildinfo.Version,
	)
}

func transportError(op string, err error) *domain.TransportError {
	kind := domain.TransportUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = domain.TransportTimeout
	}
	return &domain.TransportError{Kind: kind, Op: op, Err: err}
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return string(data)
}

// compareVersions compares dotted numeric versions, returning -1, 0 or 1.
// Non-numeric fragments compare as zero.
func compareVersions(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimFunc(as[i], func(r rune) bool { return r < '0' || r > '9' }))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimFunc(bs[i], func(r rune) bool { return r < '0' || r > '9' }))
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
