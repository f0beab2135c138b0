// Package project maps raw session payloads into the display schema pushed
// to the host runtime. Everything here is a pure function of its inputs.
package project

import (
	"fmt"
	"strings"

	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
)

// PlaceholderArtwork is the static fallback shown when an item has media
// but no resolvable artwork.
const PlaceholderArtwork = "placeholder://media-artwork"

const unknownTitle = "Unknown"

// ArtworkResolver turns an artwork reference into a URL.
type ArtworkResolver interface {
	ResolveArtworkURL(ref domain.ArtworkRef) string
}

// Project builds the display payload for a session. Rules are applied in
// priority order: stopped/idle clears everything; a playing session without
// an item shows "Unknown"; otherwise the title is shaped by item type.
func Project(s domain.Session, resolver ArtworkResolver) domain.DisplayState {
	switch s.PlayState {
	case domain.PlayStateStopped, domain.PlayStateIdle:
		return domain.StoppedDisplay()
	}

	d := domain.DisplayState{
		State:  s.PlayState,
		Volume: s.VolumeLevel,
		Muted:  s.Muted,
	}

	m := s.NowPlaying
	if m == nil {
		d.Title = unknownTitle
		return d
	}

	d.Title = Title(m)
	d.Artist = artist(m)
	d.Album = album(m)
	d.PositionSeconds = s.PositionTicks / domain.TicksPerSecond
	d.DurationSeconds = m.RuntimeTicks / domain.TicksPerSecond
	d.Progress, d.ProgressKnown = Progress(s.PositionTicks, m.RuntimeTicks)

	if url := resolveArtwork(m, resolver); url != "" {
		d.ImageURL = url
	} else {
		d.ImageURL = PlaceholderArtwork
	}

	return d
}

// Title shapes the display title by item type:
// episodes as "Series - S02E05 - Name", movies as "Name (Year)", audio as
// "Name - Artist". Missing metadata falls back to the bare title.
func Title(m *domain.Media) string {
	title := m.Title
	if title == "" {
		title = unknownTitle
	}

	switch m.Type {
	case domain.MediaTypeEpisode:
		if m.SeriesName != "" && m.SeasonNumber != nil && m.EpisodeNumber != nil {
			return fmt.Sprintf("%s - S%02dE%02d - %s", m.SeriesName, *m.SeasonNumber, *m.EpisodeNumber, title)
		}
	case domain.MediaTypeMovie:
		if m.Year != nil {
			return fmt.Sprintf("%s (%d)", title, *m.Year)
		}
	case domain.MediaTypeAudio:
		if len(m.Artists) > 0 {
			return fmt.Sprintf("%s - %s", title, m.Artists[0])
		}
	}
	return title
}

func artist(m *domain.Media) string {
	switch m.Type {
	case domain.MediaTypeEpisode:
		if m.SeriesName != "" && m.SeasonNumber != nil && m.EpisodeNumber != nil {
			return fmt.Sprintf("%s - S%02dE%02d", m.SeriesName, *m.SeasonNumber, *m.EpisodeNumber)
		}
		return m.SeriesName
	default:
		return strings.Join(m.Artists, ", ")
	}
}

func album(m *domain.Media) string {
	if m.Type == domain.MediaTypeEpisode {
		return m.SeasonName
	}
	return m.Album
}

// Progress returns position/runtime clamped to [0,1]. A zero runtime means
// progress is unknown and must be omitted, never divided.
func Progress(positionTicks, runtimeTicks int64) (float64, bool) {
	if runtimeTicks <= 0 {
		return 0, false
	}
	p := float64(positionTicks) / float64(runtimeTicks)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p, true
}

// ChooseArtwork picks the best artwork reference for an item. Episodes
// prefer the series backdrop, then the episode backdrop, then series,
// season and episode primaries; everything else prefers its own backdrop
// over its primary image.
func ChooseArtwork(m *domain.Media) domain.ArtworkRef {
	if m == nil {
		return domain.ArtworkRef{}
	}
	art := m.Artwork

	if m.Type == domain.MediaTypeEpisode {
		switch {
		case m.SeriesID != "" && art.SeriesBackdropTag != "":
			return domain.ArtworkRef{ItemID: m.SeriesID, ImageType: "Backdrop", Tag: art.SeriesBackdropTag}
		case len(art.BackdropTags) > 0:
			return domain.ArtworkRef{ItemID: m.ItemID, ImageType: "Backdrop", Tag: art.BackdropTags[0]}
		case m.SeriesID != "" && art.SeriesPrimaryTag != "":
			return domain.ArtworkRef{ItemID: m.SeriesID, ImageType: "Primary", Tag: art.SeriesPrimaryTag}
		case m.SeasonID != "":
			return domain.ArtworkRef{ItemID: m.SeasonID, ImageType: "Primary"}
		case art.PrimaryTag != "":
			return domain.ArtworkRef{ItemID: m.ItemID, ImageType: "Primary", Tag: art.PrimaryTag}
		}
		return domain.ArtworkRef{}
	}

	switch {
	case len(art.BackdropTags) > 0:
		return domain.ArtworkRef{ItemID: m.ItemID, ImageType: "Backdrop", Tag: art.BackdropTags[0]}
	case art.PrimaryTag != "":
		return domain.ArtworkRef{ItemID: m.ItemID, ImageType: "Primary", Tag: art.PrimaryTag}
	}
	return domain.ArtworkRef{}
}

func resolveArtwork(m *domain.Media, resolver ArtworkResolver) string {
	ref := ChooseArtwork(m)
	if ref.IsZero() || resolver == nil {
		return ""
	}
	return resolver.ResolveArtworkURL(ref)
}
