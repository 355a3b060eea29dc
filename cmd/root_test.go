package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/setlistai/setlistai/internal/app"
	"github.com/setlistai/setlistai/internal/config"
	"github.com/setlistai/setlistai/internal/knowledge"
	"github.com/setlistai/setlistai/internal/log"
	"github.com/setlistai/setlistai/internal/process"
	"github.com/setlistai/setlistai/internal/retrieve"
	"github.com/setlistai/setlistai/internal/store"
	"github.com/setlistai/setlistai/internal/testutil"
)

type staticGenerator struct {
	answer string
}

func (g *staticGenerator) Answer(_ context.Context, _ string, matches []retrieve.Match, _ int) (string, error) {
	if len(matches) == 0 {
		return "no data", nil
	}
	return g.answer, nil
}

func newChatApp(t *testing.T, answer string) *app.App {
	t.Helper()

	cfg := &config.Config{
		DataDir:       t.TempDir(),
		TopK:          config.DefaultTopK,
		ContextBudget: config.DefaultContextBudget,
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "setlistai.db"), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ix, err := knowledge.Open(cfg.VectorDir(), &testutil.FakeEmbedder{}, log.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	return &app.App{
		Config:    cfg,
		Logger:    log.NewNop(),
		Store:     st,
		Index:     ix,
		Retriever: retrieve.New(ix, st, log.NewNop()),
		Generator: &staticGenerator{answer: answer},
	}
}

func seedShow(t *testing.T, a *app.App) {
	t.Helper()

	sl := &process.Setlist{
		ID:         "sl-barton",
		ArtistName: "Grateful Dead",
		ArtistMBID: "6faa7ca7",
		VenueName:  "Barton Hall",
		City:       "Ithaca",
		Country:    "United States",
		EventDate:  "1977-05-08",
		TotalSongs: 1,
		Songs:      []process.Song{{Name: "Dark Star", Position: 1}},
	}
	sl.Summary = process.SummaryText(sl)

	if err := a.Store.UpsertSetlist(context.Background(), sl); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Index.Add(context.Background(), []knowledge.Document{
		{SetlistID: sl.ID, Summary: sl.Summary},
	}); err != nil {
		t.Fatal(err)
	}
}

func runChatLoop(t *testing.T, a *app.App, input string) string {
	t.Helper()

	var out strings.Builder
	if err := chatLoop(context.Background(), a, strings.NewReader(input), &out); err != nil {
		t.Fatalf("chatLoop() error = %v", err)
	}
	return out.String()
}

func TestChatLoopCommands(t *testing.T) {
	a := newChatApp(t, "unused")

	out := runChatLoop(t, a, "help\nverbose on\nverbose off\nquit\n")

	for _, want := range []string{"Commands:", "Verbose mode on.", "Verbose mode off.", "Goodbye!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestChatLoopExitAliases(t *testing.T) {
	for _, alias := range []string{"quit", "exit", "q", "QUIT"} {
		out := runChatLoop(t, newChatApp(t, "unused"), alias+"\n")
		if !strings.Contains(out, "Goodbye!") {
			t.Errorf("alias %q did not exit:\n%s", alias, out)
		}
	}
}

func TestChatLoopEOF(t *testing.T) {
	// Ctrl-D ends the session without an error.
	runChatLoop(t, newChatApp(t, "unused"), "")
}

func TestChatLoopAnswersQuestion(t *testing.T) {
	a := newChatApp(t, "Dark Star was played at Barton Hall.")
	seedShow(t, a)

	out := runChatLoop(t, a, "Which shows had Dark Star?\nquit\n")

	if !strings.Contains(out, "SetlistAI: Dark Star was played at Barton Hall.") {
		t.Errorf("answer missing from output:\n%s", out)
	}
}

func TestChatLoopVerboseShowsMatches(t *testing.T) {
	a := newChatApp(t, "Dark Star was played at Barton Hall.")
	seedShow(t, a)

	out := runChatLoop(t, a, "verbose on\nWhich shows had Dark Star?\nquit\n")
	verbose = false

	if !strings.Contains(out, "[retrieved 1 setlists]") {
		t.Errorf("verbose match listing missing:\n%s", out)
	}
	if !strings.Contains(out, "Grateful Dead - 1977-05-08 @ Barton Hall") {
		t.Errorf("match detail missing:\n%s", out)
	}
}

func TestChatLoopSkipsBlankLines(t *testing.T) {
	out := runChatLoop(t, newChatApp(t, "unused"), "\n   \nquit\n")

	if strings.Contains(out, "SetlistAI:") {
		t.Errorf("blank input produced an answer:\n%s", out)
	}
}
