package jellyfin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func serveInfo(w http.ResponseWriter, version string) {
	json.NewEncoder(w).Encode(map[string]string{
		"Id":         "srv1",
		"ServerName": "Test Server",
		"Version":    version,
	})
}

func TestAuthenticateSuccess(t *testing.T) {
	var gotAuthHeader string
	var gotBody map[string]string

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/System/Info/Public":
			serveInfo(w, "10.9.2")
		case "/Users/AuthenticateByName":
			gotAuthHeader = r.Header.Get("X-Emby-Authorization")
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(map[string]any{
				"User":        map[string]string{"Id": "user1", "Name": "maria"},
				"AccessToken": "token123",
				"ServerId":    "srv1",
			})
		default:
			http.NotFound(w, r)
		}
	})

	c := NewClient(Options{URL: srv.URL, Username: "maria", Password: "secret", MinVersion: "10.8.0"})
	res, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}

	if res.UserID != "user1" || res.AccessToken != "token123" {
		t.Errorf("result = %+v", res)
	}
	if res.ServerVersion != "10.9.2" || res.ServerName != "Test Server" {
		t.Errorf("server info = %q / %q", res.ServerName, res.ServerVersion)
	}
	if c.Token() != "token123" || c.UserID() != "user1" {
		t.Errorf("stored token/user = %q/%q", c.Token(), c.UserID())
	}
	if !strings.HasPrefix(gotAuthHeader, "MediaBrowser Client=") {
		t.Errorf("authorization header = %q", gotAuthHeader)
	}
	if gotBody["Username"] != "maria" || gotBody["Pw"] != "secret" {
		t.Errorf("credentials body = %+v", gotBody)
	}
}

func TestAuthenticateAppendsTwoFactorCode(t *testing.T) {
	var gotBody map[string]string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/System/Info/Public":
			serveInfo(w, "10.9.2")
		case "/Users/AuthenticateByName":
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(map[string]any{
				"User":        map[string]string{"Id": "user1"},
				"AccessToken": "token123",
			})
		}
	})

	c := NewClient(Options{URL: srv.URL, Username: "maria", Password: "secret", TwoFactorCode: "424242"})
	if _, err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if gotBody["Pw"] != "secret424242" {
		t.Errorf("Pw = %q, want code appended", gotBody["Pw"])
	}
}

func TestAuthenticateVersionGate(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/System/Info/Public" {
			serveInfo(w, "10.7.9")
			return
		}
		t.Errorf("credentials sent to an unsupported server: %s", r.URL.Path)
	})

	c := NewClient(Options{URL: srv.URL, Username: "maria", Password: "secret", MinVersion: "10.8.0"})
	_, err := c.Authenticate(context.Background())

	var ae *domain.AuthError
	if !errors.As(err, &ae) || ae.Reason != domain.AuthServerTooOld {
		t.Fatalf("error = %v, want SERVER_TOO_OLD", err)
	}
}

func TestAuthenticateInvalidCredentials(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/System/Info/Public" {
			serveInfo(w, "10.9.2")
			return
		}
		http.Error(w, "invalid user or password", http.StatusUnauthorized)
	})

	c := NewClient(Options{URL: srv.URL, Username: "maria", Password: "wrong"})
	_, err := c.Authenticate(context.Background())

	var ae *domain.AuthError
	if !errors.As(err, &ae) || ae.Reason != domain.AuthInvalidCredentials {
		t.Fatalf("error = %v, want INVALID_CREDENTIALS", err)
	}
}

func TestAuthenticateUnreachable(t *testing.T) {
	c := NewClient(Options{URL: "http://127.0.0.1:1", Username: "maria", Password: "secret"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Authenticate(ctx)

	var ae *domain.AuthError
	if !errors.As(err, &ae) || ae.Reason != domain.AuthServerUnreachable {
		t.Fatalf("error = %v, want SERVER_UNREACHABLE", err)
	}
}

func TestListSessionsMapsWirePayload(t *testing.T) {
	var gotToken, gotQuery string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Sessions" {
			http.NotFound(w, r)
			return
		}
		gotToken = r.Header.Get("X-Emby-Token")
		gotQuery = r.URL.Query().Get("ActiveWithinSeconds")
		io.WriteString(w, `[
			{
				"Id": "s1",
				"UserId": "user1",
				"UserName": "maria",
				"Client": "Android TV",
				"DeviceName": "Shield",
				"IsActive": true,
				"LastActivityDate": "2026-08-24T12:00:00Z",
				"PlayState": {"IsPaused": true, "PositionTicks": 600000000},
				"NowPlayingItem": {
					"Id": "ep1",
					"Name": "Ozymandias",
					"Type": "Episode",
					"SeriesName": "Breaking Bad",
					"SeriesId": "series1",
					"ParentIndexNumber": 5,
					"IndexNumber": 14,
					"RunTimeTicks": 28800000000,
					"ImageTags": {"Primary": "pt"},
					"SeriesBackdropImageTags": ["sbt"]
				}
			},
			{
				"Id": "s2",
				"UserId": "user2",
				"Client": "Web",
				"IsActive": true,
				"LastActivityDate": "2026-08-24T11:00:00Z"
			}
		]`)
	})

	c := NewClient(Options{URL: srv.URL, Username: "maria", Password: "secret", ActiveWithin: 960})
	c.mu.Lock()
	c.token = "token123"
	c.mu.Unlock()

	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error: %v", err)
	}
	if gotToken != "token123" {
		t.Errorf("token header = %q", gotToken)
	}
	if gotQuery != "960" {
		t.Errorf("ActiveWithinSeconds = %q", gotQuery)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	s := sessions[0]
	if s.ID != "s1" || s.ClientName != "Android TV" || s.DeviceName != "Shield" {
		t.Errorf("session identity = %+v", s)
	}
	if s.PlayState != domain.PlayStatePaused {
		t.Errorf("play state = %q, want paused", s.PlayState)
	}
	if s.PositionTicks != 600000000 {
		t.Errorf("position = %d", s.PositionTicks)
	}
	if s.VolumeLevel != 100 {
		t.Errorf("volume = %d, want 100 default", s.VolumeLevel)
	}
	m := s.NowPlaying
	if m == nil {
		t.Fatal("NowPlaying = nil")
	}
	if m.Type != domain.MediaTypeEpisode || m.SeriesName != "Breaking Bad" {
		t.Errorf("media = %+v", m)
	}
	if m.SeasonNumber == nil || *m.SeasonNumber != 5 || m.EpisodeNumber == nil || *m.EpisodeNumber != 14 {
		t.Errorf("season/episode = %v/%v", m.SeasonNumber, m.EpisodeNumber)
	}
	if m.Artwork.PrimaryTag != "pt" || m.Artwork.SeriesBackdropTag != "sbt" {
		t.Errorf("artwork = %+v", m.Artwork)
	}

	// Session without an item reports idle.
	if sessions[1].PlayState != domain.PlayStateIdle {
		t.Errorf("itemless session state = %q, want idle", sessions[1].PlayState)
	}
}

func TestListSessionsUnauthorized(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := NewClient(Options{URL: srv.URL, Username: "maria", Password: "secret"})
	_, err := c.ListSessions(context.Background())
	if !domain.IsUnauthorized(err) {
		t.Fatalf("error = %v, want unauthorized transport error", err)
	}
}

func TestSendCommandEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		cmd      domain.Command
		params   domain.CommandParams
		wantPath string
		wantBody string
	}{
		{"play", domain.CommandPlay, domain.CommandParams{}, "/Sessions/s1/Playing/Unpause", ""},
		{"pause", domain.CommandPause, domain.CommandParams{}, "/Sessions/s1/Playing/Pause", ""},
		{"play_pause", domain.CommandPlayPause, domain.CommandParams{}, "/Sessions/s1/Playing/PlayPause", ""},
		{"stop", domain.CommandStop, domain.CommandParams{}, "/Sessions/s1/Playing/Stop", ""},
		{"next", domain.CommandNext, domain.CommandParams{}, "/Sessions/s1/Playing/NextTrack", ""},
		{"previous", domain.CommandPrevious, domain.CommandParams{}, "/Sessions/s1/Playing/PreviousTrack", ""},
		{"seek", domain.CommandSeek, domain.CommandParams{SeekPositionTicks: 1234}, "/Sessions/s1/Playing/Seek", ""},
		{"set_volume", domain.CommandSetVolume, domain.CommandParams{Volume: 40}, "/Sessions/s1/Command", "SetVolume"},
		{"mute_toggle", domain.CommandMuteToggle, domain.CommandParams{}, "/Sessions/s1/Command", "ToggleMute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotSeek string
			var gotBody []byte
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotSeek = r.URL.Query().Get("SeekPositionTicks")
				gotBody, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusNoContent)
			})

			c := NewClient(Options{URL: srv.URL, Username: "maria", Password: "secret"})
			if err := c.SendCommand(context.Background(), "s1", tt.cmd, tt.params); err != nil {
				t.Fatalf("SendCommand() error: %v", err)
			}
			if gotPath != tt.wantPath {
				t.Errorf("path = %q, want %q", gotPath, tt.wantPath)
			}
			if tt.cmd == domain.CommandSeek && gotSeek != "1234" {
				t.Errorf("SeekPositionTicks = %q, want 1234", gotSeek)
			}
			if tt.wantBody != "" && !strings.Contains(string(gotBody), tt.wantBody) {
				t.Errorf("body = %s, want it to name %q", gotBody, tt.wantBody)
			}
		})
	}
}

func TestSendCommandSessionGone(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	c := NewClient(Options{URL: srv.URL, Username: "maria", Password: "secret"})
	err := c.SendCommand(context.Background(), "dead", domain.CommandPause, domain.CommandParams{})

	var ce *domain.CommandError
	if !errors.As(err, &ce) || ce.Kind != domain.CommandSessionGone {
		t.Fatalf("error = %v, want SESSION_GONE", err)
	}
}

func TestResolveArtworkURL(t *testing.T) {
	c := NewClient(Options{URL: "http://jf.local:8096", Username: "u", Password: "p"})

	got := c.ResolveArtworkURL(domain.ArtworkRef{ItemID: "item1", ImageType: "Backdrop", Tag: "abc"})
	want := "http://jf.local:8096/Items/item1/Images/Backdrop?maxWidth=600&tag=abc"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}

	if got := c.ResolveArtworkURL(domain.ArtworkRef{}); got != "" {
		t.Errorf("empty ref url = %q, want empty", got)
	}
}

func TestSocketURL(t *testing.T) {
	c := NewClient(Options{URL: "https://jf.local", Username: "u", Password: "p", DeviceID: "dev1"})
	c.mu.Lock()
	c.token = "tok"
	c.mu.Unlock()

	got := c.SocketURL()
	if !strings.HasPrefix(got, "wss://jf.local/socket?") {
		t.Errorf("url = %q, want wss scheme", got)
	}
	if !strings.Contains(got, "api_key=tok") || !strings.Contains(got, "deviceId=dev1") {
		t.Errorf("url = %q, missing query params", got)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"10.8.0", "10.8.0", 0},
		{"10.9.2", "10.8.0", 1},
		{"10.7.9", "10.8.0", -1},
		{"10.8", "10.8.0", 0},
		{"11", "10.8.0", 1},
		{"10.8.0-rc1", "10.8.0", 0},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
