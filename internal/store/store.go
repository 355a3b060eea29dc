// Package store persists normalized setlist records in a SQLite database
// file with foreign-key relationships between artists, venues, setlists
// and songs.
//
// Writes are idempotent per unique key: artists upsert on their MusicBrainz
// id, venues on (name, city), setlists on their setlist.fm id. Re-upserting
// a setlist replaces its songs wholesale, which keeps positions unique
// within a setlist across re-runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/setlistai/setlistai/internal/process"
)

// ErrNotFound indicates no setlist exists for the requested id.
var ErrNotFound = errors.New("store: setlist not found")

// Stats summarizes row counts per table.
type Stats struct {
	Artists  int
	Venues   int
	Setlists int
	Songs    int
}

// Store is the relational persistence layer. Single-process use; SQLite's
// own locking covers the rest.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database file and applies pending schema
// migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("database ready", "path", dbPath)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSetlist inserts or updates one setlist with its artist, venue and
// songs in a single transaction.
func (s *Store) UpsertSetlist(ctx context.Context, sl *process.Setlist) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	artistID, err := getOrCreateArtist(ctx, tx, sl.ArtistName, sl.ArtistMBID)
	if err != nil {
		return err
	}

	venueID, err := getOrCreateVenue(ctx, tx, sl.VenueName, sl.City, sl.Country)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO setlists (setlist_id, artist_id, venue_id, event_date, tour_name, total_songs, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (setlist_id) DO UPDATE SET
			artist_id = excluded.artist_id,
			venue_id = excluded.venue_id,
			event_date = excluded.event_date,
			tour_name = excluded.tour_name,
			total_songs = excluded.total_songs,
			summary = excluded.summary`,
		sl.ID, artistID, venueID, sl.EventDate, sl.TourName, sl.TotalSongs, sl.Summary)
	if err != nil {
		return fmt.Errorf("upserting setlist %q: %w", sl.ID, err)
	}

	// Replace songs wholesale so re-runs can't accumulate duplicates or
	// collide on positions.
	if _, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE setlist_id = ?`, sl.ID); err != nil {
		return fmt.Errorf("clearing songs for setlist %q: %w", sl.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO songs (setlist_id, name, position, is_encore)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing song insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, song := range sl.Songs {
		encore := 0
		if song.Encore {
			encore = 1
		}
		if _, err := stmt.ExecContext(ctx, sl.ID, song.Name, song.Position, encore); err != nil {
			return fmt.Errorf("inserting song %q: %w", song.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing setlist %q: %w", sl.ID, err)
	}

	s.logger.Debug("upserted setlist", "id", sl.ID, "songs", len(sl.Songs))
	return nil
}

// GetSetlist fetches one complete setlist (artist, venue, position-ordered
// songs) by its primary key. Returns ErrNotFound when absent.
func (s *Store) GetSetlist(ctx context.Context, id string) (*process.Setlist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.setlist_id, s.event_date, s.tour_name, s.total_songs, s.summary,
		       a.name, a.mbid, v.name, v.city, v.country
		FROM setlists s
		JOIN artists a ON s.artist_id = a.artist_id
		JOIN venues v ON s.venue_id = v.venue_id
		WHERE s.setlist_id = ?`, id)

	var sl process.Setlist
	err := row.Scan(&sl.ID, &sl.EventDate, &sl.TourName, &sl.TotalSongs, &sl.Summary,
		&sl.ArtistName, &sl.ArtistMBID, &sl.VenueName, &sl.City, &sl.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching setlist %q: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, position, is_encore
		FROM songs
		WHERE setlist_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("fetching songs for %q: %w", id, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var song process.Song
		var encore int
		if err := rows.Scan(&song.Name, &song.Position, &encore); err != nil {
			return nil, fmt.Errorf("scanning song row: %w", err)
		}
		song.Encore = encore != 0
		sl.Songs = append(sl.Songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating song rows: %w", err)
	}

	return &sl, nil
}

// GetSetlists fetches the given ids, preserving input order. Missing ids
// are skipped with a log entry so one stale vector-index entry cannot fail
// a whole retrieval.
func (s *Store) GetSetlists(ctx context.Context, ids []string) ([]*process.Setlist, error) {
	out := make([]*process.Setlist, 0, len(ids))
	for _, id := range ids {
		sl, err := s.GetSetlist(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("setlist in vector index but not in store", "id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, nil
}

// AllSetlistIDs returns every stored setlist id. Used when (re)building the
// vector index.
func (s *Store) AllSetlistIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT setlist_id FROM setlists`)
	if err != nil {
		return nil, fmt.Errorf("listing setlist ids: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning setlist id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats returns row counts for all four tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, c := range []struct {
		table string
		dst   *int
	}{
		{"artists", &st.Artists},
		{"venues", &st.Venues},
		{"setlists", &st.Setlists},
		{"songs", &st.Songs},
	} {
		row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table)
		if err := row.Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return st, nil
}

func getOrCreateArtist(ctx context.Context, tx *sql.Tx, name, mbid string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT artist_id FROM artists WHERE mbid = ?`, mbid).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("looking up artist %q: %w", mbid, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO artists (name, mbid) VALUES (?, ?)`, name, mbid)
	if err != nil {
		return 0, fmt.Errorf("inserting artist %q: %w", name, err)
	}
	return res.LastInsertId()
}

func getOrCreateVenue(ctx context.Context, tx *sql.Tx, name, city, country string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT venue_id FROM venues WHERE name = ? AND city = ?`, name, city).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("looking up venue %q: %w", name, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO venues (name, city, country) VALUES (?, ?, ?)`, name, city, country)
	if err != nil {
		return 0, fmt.Errorf("inserting venue %q: %w", name, err)
	}
	return res.LastInsertId()
}
