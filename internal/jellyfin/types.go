package jellyfin

import (
	"time"

	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
)

// Wire shapes for the /Sessions endpoint. Field names follow the Jellyfin
// JSON schema; only the fields the bridge consumes are declared.
type wireSession struct {
	ID               string         `json:"Id"`
	UserID           string         `json:"UserId"`
	UserName         string         `json:"UserName"`
	Client           string         `json:"Client"`
	DeviceName       string         `json:"DeviceName"`
	IsActive         bool           `json:"IsActive"`
	LastActivityDate time.Time      `json:"LastActivityDate"`
	PlayState        *wirePlayState `json:"PlayState"`
	NowPlayingItem   *wireItem      `json:"NowPlayingItem"`
}

type wirePlayState struct {
	IsPaused      bool  `json:"IsPaused"`
	IsMuted       bool  `json:"IsMuted"`
	PositionTicks int64 `json:"PositionTicks"`
	VolumeLevel   *int  `json:"VolumeLevel"`
}

type wireItem struct {
	ID                      string            `json:"Id"`
	Name                    string            `json:"Name"`
	Type                    string            `json:"Type"`
	SeriesName              string            `json:"SeriesName"`
	SeriesID                string            `json:"SeriesId"`
	SeasonID                string            `json:"SeasonId"`
	SeasonName              string            `json:"SeasonName"`
	ParentIndexNumber       *int              `json:"ParentIndexNumber"`
	IndexNumber             *int              `json:"IndexNumber"`
	ProductionYear          *int              `json:"ProductionYear"`
	RunTimeTicks            int64             `json:"RunTimeTicks"`
	Artists                 []string          `json:"Artists"`
	Album                   string            `json:"Album"`
	ImageTags               map[string]string `json:"ImageTags"`
	BackdropImageTags       []string          `json:"BackdropImageTags"`
	SeriesPrimaryImageTag   string            `json:"SeriesPrimaryImageTag"`
	SeriesBackdropImageTags []string          `json:"SeriesBackdropImageTags"`
}

func (ws wireSession) toDomain() domain.Session {
	s := domain.Session{
		ID:             ws.ID,
		UserID:         ws.UserID,
		UserName:       ws.UserName,
		ClientName:     ws.Client,
		DeviceName:     ws.DeviceName,
		IsActive:       ws.IsActive,
		LastActivityAt: ws.LastActivityDate,
		PlayState:      domain.PlayStateIdle,
	}

	if ws.PlayState != nil {
		s.PositionTicks = ws.PlayState.PositionTicks
		s.Muted = ws.PlayState.IsMuted
		if ws.PlayState.VolumeLevel != nil {
			s.VolumeLevel = *ws.PlayState.VolumeLevel
		} else {
			s.VolumeLevel = 100
		}
	}

	if ws.NowPlayingItem != nil {
		s.NowPlaying = ws.NowPlayingItem.toDomain()
		if ws.PlayState != nil && ws.PlayState.IsPaused {
			s.PlayState = domain.PlayStatePaused
		} else {
			s.PlayState = domain.PlayStatePlaying
		}
	}

	return s
}

func (wi *wireItem) toDomain() *domain.Media {
	m := &domain.Media{
		ItemID:        wi.ID,
		Type:          mediaType(wi.Type),
		Title:         wi.Name,
		SeriesName:    wi.SeriesName,
		SeriesID:      wi.SeriesID,
		SeasonID:      wi.SeasonID,
		SeasonName:    wi.SeasonName,
		SeasonNumber:  wi.ParentIndexNumber,
		EpisodeNumber: wi.IndexNumber,
		Year:          wi.ProductionYear,
		Artists:       wi.Artists,
		Album:         wi.Album,
		RuntimeTicks:  wi.RunTimeTicks,
	}

	m.Artwork = domain.ArtworkCandidates{
		PrimaryTag:       wi.ImageTags["Primary"],
		BackdropTags:     wi.BackdropImageTags,
		SeriesPrimaryTag: wi.SeriesPrimaryImageTag,
	}
	if len(wi.SeriesBackdropImageTags) > 0 {
		m.Artwork.SeriesBackdropTag = wi.SeriesBackdropImageTags[0]
	}

	return m
}

func mediaType(raw string) domain.MediaType {
	switch raw {
	case "Movie":
		return domain.MediaTypeMovie
	case "Episode":
		return domain.MediaTypeEpisode
	case "Audio":
		return domain.MediaTypeAudio
	default:
		return domain.MediaTypeOther
	}
}
