package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/setlistai/setlistai/internal/config"
	"github.com/setlistai/setlistai/internal/generate"
	"github.com/setlistai/setlistai/internal/knowledge"
	"github.com/setlistai/setlistai/internal/log"
	"github.com/setlistai/setlistai/internal/retrieve"
	"github.com/setlistai/setlistai/internal/setlistfm"
	"github.com/setlistai/setlistai/internal/store"
	"github.com/setlistai/setlistai/internal/testutil"
)

type fakeSource struct {
	artists  map[string]*setlistfm.Artist
	setlists map[string][]setlistfm.Setlist
	err      error
	searches int
}

func (f *fakeSource) SearchArtist(_ context.Context, name string) (*setlistfm.Artist, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.artists[name]
	if !ok {
		return nil, setlistfm.ErrArtistNotFound
	}
	return a, nil
}

func (f *fakeSource) ArtistSetlists(_ context.Context, mbid string, _ int) ([]setlistfm.Setlist, error) {
	return f.setlists[mbid], nil
}

func (f *fakeSource) SaveRaw([]setlistfm.Setlist, string) error { return nil }

type fakeGenerator struct {
	answer string
	err    error
	calls  int
}

func (f *fakeGenerator) Answer(_ context.Context, _ string, matches []retrieve.Match, _ int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(matches) == 0 {
		return generate.NoDataResponse, nil
	}
	return f.answer, nil
}

func rawShow(id, date, venue string, songs ...string) setlistfm.Setlist {
	var set setlistfm.Set
	for _, s := range songs {
		set.Song = append(set.Song, setlistfm.Song{Name: s})
	}
	return setlistfm.Setlist{
		ID:        id,
		EventDate: date,
		Artist:    setlistfm.Artist{MBID: "6faa7ca7", Name: "Grateful Dead"},
		Venue: setlistfm.Venue{Name: venue, City: setlistfm.City{
			Name: "Ithaca", Country: setlistfm.Country{Name: "United States"},
		}},
		Sets: setlistfm.Sets{Set: []setlistfm.Set{set}},
	}
}

func newTestApp(t *testing.T, source ArtistSource, gen AnswerGenerator) *App {
	t.Helper()

	cfg := &config.Config{
		DataDir:              t.TempDir(),
		TopK:                 config.DefaultTopK,
		ContextBudget:        config.DefaultContextBudget,
		MaxSetlistsPerArtist: config.DefaultMaxSetlists,
	}

	st, err := store.Open(cfg.DatabasePath(), log.NewNop())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ix, err := knowledge.Open(cfg.VectorDir(), &testutil.FakeEmbedder{}, log.NewNop())
	if err != nil {
		t.Fatalf("knowledge.Open() error = %v", err)
	}

	return &App{
		Config:    cfg,
		Logger:    log.NewNop(),
		Store:     st,
		Index:     ix,
		Retriever: retrieve.New(ix, st, log.NewNop()),
		Generator: gen,
		Source:    source,
	}
}

func TestRunSetup(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{
		artists: map[string]*setlistfm.Artist{
			"Grateful Dead": {MBID: "6faa7ca7", Name: "Grateful Dead"},
		},
		setlists: map[string][]setlistfm.Setlist{
			"6faa7ca7": {
				rawShow("sl-1", "08-05-1977", "Barton Hall", "Dark Star", "Morning Dew"),
				rawShow("sl-2", "09-07-1995", "Soldier Field", "Touch of Grey"),
			},
		},
	}
	a := newTestApp(t, source, &fakeGenerator{})

	result, err := a.RunSetup(ctx, []string{"Grateful Dead"})
	if err != nil {
		t.Fatalf("RunSetup() error = %v", err)
	}

	if len(result.Artists) != 1 || result.Artists[0].Setlists != 2 {
		t.Errorf("artist results = %+v, want 2 setlists for one artist", result.Artists)
	}
	if result.Indexed != 2 || result.IndexTotal != 2 {
		t.Errorf("indexed = %d/%d, want 2/2", result.Indexed, result.IndexTotal)
	}
	if result.Store.Setlists != 2 || result.Store.Artists != 1 {
		t.Errorf("store stats = %+v", result.Store)
	}

	// The pipeline must have persisted both records with normalized dates.
	sl, err := a.Store.GetSetlist(ctx, "sl-1")
	if err != nil {
		t.Fatalf("GetSetlist() error = %v", err)
	}
	if sl.EventDate != "1977-05-08" {
		t.Errorf("EventDate = %q, want 1977-05-08", sl.EventDate)
	}
}

func TestRunSetupSkipsFailingArtist(t *testing.T) {
	source := &fakeSource{
		artists: map[string]*setlistfm.Artist{
			"Grateful Dead": {MBID: "6faa7ca7", Name: "Grateful Dead"},
		},
		setlists: map[string][]setlistfm.Setlist{
			"6faa7ca7": {rawShow("sl-1", "08-05-1977", "Barton Hall", "Dark Star")},
		},
	}
	a := newTestApp(t, source, &fakeGenerator{})

	result, err := a.RunSetup(context.Background(), []string{"Nonexistent Band", "Grateful Dead"})
	if err != nil {
		t.Fatalf("RunSetup() error = %v, want partial success", err)
	}

	if len(result.Artists) != 2 {
		t.Fatalf("got %d artist results, want 2", len(result.Artists))
	}
	if result.Artists[0].Err == nil {
		t.Error("first artist should have failed")
	}
	if result.Artists[1].Err != nil || result.Artists[1].Setlists != 1 {
		t.Errorf("second artist = %+v, want 1 setlist", result.Artists[1])
	}
}

func TestRunSetupAllArtistsFail(t *testing.T) {
	a := newTestApp(t, &fakeSource{}, &fakeGenerator{})

	if _, err := a.RunSetup(context.Background(), []string{"Nobody"}); err == nil {
		t.Error("RunSetup() succeeded with nothing collected, want error")
	}
}

func TestRunSetupAbortsOnAuthError(t *testing.T) {
	// A bad API key fails every artist the same way; the run must stop at
	// the first auth failure and surface the cause instead of burning a
	// rate-limited search per artist.
	source := &fakeSource{err: fmt.Errorf("searching artists: %w", setlistfm.ErrAuth)}
	a := newTestApp(t, source, &fakeGenerator{})

	_, err := a.RunSetup(context.Background(), []string{"Grateful Dead", "Phish", "Dead & Company"})
	if !errors.Is(err, setlistfm.ErrAuth) {
		t.Fatalf("RunSetup() error = %v, want ErrAuth", err)
	}
	if source.searches != 1 {
		t.Errorf("searches attempted = %d, want 1 (abort on first auth failure)", source.searches)
	}
}

func TestRunSetupWithoutCollectorKey(t *testing.T) {
	a := newTestApp(t, nil, &fakeGenerator{})

	_, err := a.RunSetup(context.Background(), nil)
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("RunSetup() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestRunSetupWritesArchives(t *testing.T) {
	source := &fakeSource{
		artists: map[string]*setlistfm.Artist{
			"Grateful Dead": {MBID: "6faa7ca7", Name: "Grateful Dead"},
		},
		setlists: map[string][]setlistfm.Setlist{
			"6faa7ca7": {rawShow("sl-1", "08-05-1977", "Barton Hall", "Dark Star")},
		},
	}
	a := newTestApp(t, source, &fakeGenerator{})

	if _, err := a.RunSetup(context.Background(), []string{"Grateful Dead"}); err != nil {
		t.Fatal(err)
	}

	processed := filepath.Join(a.Config.ProcessedDir(), "grateful-dead.json")
	if _, err := os.Stat(processed); err != nil {
		t.Errorf("processed archive missing: %v", err)
	}
}

func TestAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{
		artists: map[string]*setlistfm.Artist{
			"Grateful Dead": {MBID: "6faa7ca7", Name: "Grateful Dead"},
		},
		setlists: map[string][]setlistfm.Setlist{
			"6faa7ca7": {
				rawShow("sl-1", "08-05-1977", "Barton Hall", "Dark Star", "Morning Dew"),
				rawShow("sl-2", "09-07-1995", "Soldier Field", "Touch of Grey"),
			},
		},
	}
	gen := &fakeGenerator{answer: "Dark Star was played at Barton Hall."}
	a := newTestApp(t, source, gen)

	if _, err := a.RunSetup(ctx, []string{"Grateful Dead"}); err != nil {
		t.Fatal(err)
	}

	result, err := a.Answer(ctx, "Which shows had Dark Star?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if result.Answer != gen.answer {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(result.Matches) == 0 {
		t.Fatal("no matches attached to answer")
	}
	if result.Matches[0].Setlist.ID != "sl-1" {
		t.Errorf("top match = %s, want sl-1 (the Dark Star show)", result.Matches[0].Setlist.ID)
	}
}

func TestAnswerEmptyCorpus(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be used"}
	a := newTestApp(t, nil, gen)

	result, err := a.Answer(context.Background(), "Which shows had Dark Star?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if result.Answer != generate.NoDataResponse {
		t.Errorf("Answer = %q, want NoDataResponse", result.Answer)
	}
	if len(result.Matches) != 0 {
		t.Errorf("got %d matches from empty corpus", len(result.Matches))
	}
}

func TestReady(t *testing.T) {
	a := newTestApp(t, nil, &fakeGenerator{})

	err := a.Ready(context.Background())
	if err == nil {
		t.Fatal("Ready() = nil on empty corpus, want instructive error")
	}
	if !strings.Contains(err.Error(), "setup") {
		t.Errorf("Ready() error %q does not mention setup", err)
	}
}

func TestArtistSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Grateful Dead", "grateful-dead"},
		{"Dead & Company", "dead--company"},
		{"AC/DC", "acdc"},
		{"???", "artist"},
	}
	for _, tt := range tests {
		if got := artistSlug(tt.name); got != tt.want {
			t.Errorf("artistSlug(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
