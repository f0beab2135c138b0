package domain

import "time"

// TicksPerSecond is the Jellyfin tick resolution (100ns units).
const TicksPerSecond int64 = 10_000_000

type PlayState string

const (
	PlayStatePlaying PlayState = "playing"
	PlayStatePaused  PlayState = "paused"
	PlayStateStopped PlayState = "stopped"
	PlayStateIdle    PlayState = "idle"
)

type MediaType string

const (
	MediaTypeMovie   MediaType = "Movie"
	MediaTypeEpisode MediaType = "Episode"
	MediaTypeAudio   MediaType = "Audio"
	MediaTypeOther   MediaType = "Other"
)

// ArtworkRef is an opaque pointer to a server-side image. It resolves to a
// URL without a network round trip.
type ArtworkRef struct {
	ItemID    string `json:"item_id"`
	ImageType string `json:"image_type"`
	Tag       string `json:"tag,omitempty"`
}

func (r ArtworkRef) IsZero() bool {
	return r.ItemID == "" || r.ImageType == ""
}

// Media is an immutable snapshot of what a session is playing.
type Media struct {
	ItemID        string
	Type          MediaType
	Title         string
	SeriesName    string
	SeriesID      string
	SeasonID      string
	SeasonName    string
	SeasonNumber  *int
	EpisodeNumber *int
	Year          *int
	Artists       []string
	Album         string
	RuntimeTicks  int64
	Artwork       ArtworkCandidates
}

// ArtworkCandidates carries the image tags a session item exposes, in the
// shape needed to pick the best artwork reference.
type ArtworkCandidates struct {
	PrimaryTag        string
	BackdropTags      []string
	SeriesPrimaryTag  string
	SeriesBackdropTag string
}

// Session is a server-side playback context. It is never persisted; each
// poll re-fetches the full set.
type Session struct {
	ID             string
	UserID         string
	UserName       string
	ClientName     string
	DeviceName     string
	PlayState      PlayState
	NowPlaying     *Media
	PositionTicks  int64
	VolumeLevel    int
	Muted          bool
	IsActive       bool
	LastActivityAt time.Time
}

// AuthResult is the outcome of a successful authentication.
type AuthResult struct {
	UserID        string
	AccessToken   string
	ServerID      string
	ServerName    string
	ServerVersion string
}
