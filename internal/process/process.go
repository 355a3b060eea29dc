// Package process normalizes raw setlist.fm payloads into the flat records
// the store and the vector index work with.
//
// Normalization is lossy by design: entries without any named song are
// dropped, optional fields collapse to empty strings, and the nested
// sets/songs structure is flattened into one position-ordered song list.
package process

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/setlistai/setlistai/internal/setlistfm"
)

// Song is one performed song with its global position in the show.
type Song struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	Encore   bool   `json:"encore"`
}

// Setlist is a normalized concert record. ID is the setlist.fm identifier
// and doubles as the vector-index document id, so retrieval results can be
// joined back to the relational store.
type Setlist struct {
	ID           string `json:"setlist_id"`
	ArtistName   string `json:"artist_name"`
	ArtistMBID   string `json:"artist_mbid"`
	VenueName    string `json:"venue_name"`
	City         string `json:"city"`
	Country      string `json:"country"`
	EventDate    string `json:"event_date"` // YYYY-MM-DD
	TourName     string `json:"tour_name,omitempty"`
	Songs        []Song `json:"songs"`
	TotalSongs   int    `json:"total_songs"`
	TotalEncores int    `json:"total_encores"`
	Summary      string `json:"summary"`
}

// Normalize converts one raw setlist into a flat record.
// Returns nil for entries with no named songs; missing optional fields
// (tour, city, country) become empty values rather than errors.
func Normalize(raw setlistfm.Setlist) *Setlist {
	songs, encores := flattenSongs(raw.Sets)
	if len(songs) == 0 {
		return nil
	}

	s := &Setlist{
		ID:           raw.ID,
		ArtistName:   raw.Artist.Name,
		ArtistMBID:   raw.Artist.MBID,
		VenueName:    raw.Venue.Name,
		City:         raw.Venue.City.Name,
		Country:      raw.Venue.City.Country.Name,
		EventDate:    convertDate(raw.EventDate),
		Songs:        songs,
		TotalSongs:   len(songs),
		TotalEncores: encores,
	}
	if raw.Tour != nil {
		s.TourName = raw.Tour.Name
	}
	s.Summary = SummaryText(s)

	return s
}

// NormalizeAll normalizes a batch, skipping invalid entries.
func NormalizeAll(raws []setlistfm.Setlist, logger *slog.Logger) []*Setlist {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]*Setlist, 0, len(raws))
	for _, raw := range raws {
		if s := Normalize(raw); s != nil {
			out = append(out, s)
		}
	}

	logger.Info("processed setlists",
		"total", len(raws),
		"kept", len(out),
		"skipped", len(raws)-len(out))
	return out
}

// convertDate converts the upstream DD-MM-YYYY format to YYYY-MM-DD.
// Unparseable dates are kept verbatim rather than failing the record.
func convertDate(date string) string {
	t, err := time.Parse("02-01-2006", date)
	if err != nil {
		return date
	}
	return t.Format("2006-01-02")
}

// flattenSongs walks the nested sets structure and assigns 1-based global
// positions. A set marked encore flags all of its songs.
func flattenSongs(sets setlistfm.Sets) ([]Song, int) {
	var songs []Song
	encores := 0
	position := 1

	for _, set := range sets.Set {
		isEncore := set.Encore >= 1
		for _, song := range set.Song {
			if song.Name == "" {
				continue
			}
			songs = append(songs, Song{
				Name:     song.Name,
				Position: position,
				Encore:   isEncore,
			})
			if isEncore {
				encores++
			}
			position++
		}
	}

	return songs, encores
}

// SummaryText builds the deterministic text summary used for embedding.
// The layout (one "Label: value" line per attribute, songs split into
// setlist and encores) is what the vector index stores and searches over.
func SummaryText(s *Setlist) string {
	var parts []string

	if s.ArtistName != "" {
		parts = append(parts, "Artist: "+s.ArtistName)
	}
	if s.EventDate != "" {
		parts = append(parts, "Date: "+s.EventDate)
	}

	var venue []string
	for _, v := range []string{s.VenueName, s.City, s.Country} {
		if v != "" {
			venue = append(venue, v)
		}
	}
	if len(venue) > 0 {
		parts = append(parts, "Venue: "+strings.Join(venue, ", "))
	}

	if s.TourName != "" {
		parts = append(parts, "Tour: "+s.TourName)
	}

	var regular, encore []string
	for _, song := range s.Songs {
		if song.Encore {
			encore = append(encore, song.Name)
		} else {
			regular = append(regular, song.Name)
		}
	}
	if len(regular) > 0 {
		parts = append(parts, "Setlist: "+strings.Join(regular, ", "))
	}
	if len(encore) > 0 {
		parts = append(parts, "Encores: "+strings.Join(encore, ", "))
	}

	parts = append(parts, fmt.Sprintf("Total songs: %d", s.TotalSongs))

	return strings.Join(parts, "\n")
}

// WriteProcessed persists a normalized batch as indented JSON.
func WriteProcessed(setlists []*Setlist, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating processed data directory: %w", err)
	}

	data, err := json.MarshalIndent(setlists, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding processed setlists: %w", err)
	}

	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("writing processed setlists: %w", err)
	}
	return nil
}

// ReadProcessed loads a batch written by WriteProcessed.
func ReadProcessed(path string) ([]*Setlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading processed setlists: %w", err)
	}

	var setlists []*Setlist
	if err := json.Unmarshal(data, &setlists); err != nil {
		return nil, fmt.Errorf("decoding processed setlists: %w", err)
	}
	return setlists, nil
}
