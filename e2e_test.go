//go:build e2e

package coach_test

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/chesscom"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/engine/uciengine"
	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/pipeline"
	"github.com/discochess/coach/internal/store/diskstore"
)

type staticFetcher []*game.Record

func (f staticFetcher) RecentGames(ctx context.Context, user string, monthsBack int, now time.Time) ([]*game.Record, error) {
	return f, nil
}

func (f staticFetcher) Stats(ctx context.Context, user string) (*chesscom.PlayerStats, error) {
	return &chesscom.PlayerStats{Ratings: map[string]chesscom.Rating{}}, nil
}

func e2eRecord(id string, result game.Result, day int, moves string) *game.Record {
	return &game.Record{
		ID:          id,
		White:       "alice",
		Black:       "bob",
		Color:       game.White,
		Result:      result,
		Moves:       strings.Fields(moves),
		TimeControl: game.ParseTimeControl("600"),
		EndTime:     time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC),
	}
}

func TestE2E_Stockfish(t *testing.T) {
	path, err := exec.LookPath("stockfish")
	if err != nil {
		t.Skip("Skipping: stockfish not found in PATH")
	}

	games := staticFetcher{
		e2eRecord("qg1", game.Win, 1, "d4 d5 c4 Nf6 Nc3 Bf5 Nf3 e6"),
		e2eRecord("qg2", game.Win, 2, "d4 d5 c4 Nf6 cxd5 Nxd5 e4 Nb6"),
		e2eRecord("sic", game.Loss, 3, "e4 c5 Nf3 Nc6 Bb5 g6 O-O Bg7"),
	}
	dir := t.TempDir()
	logger := zap.NewNop()

	open := func() *coach.Coach {
		st, err := diskstore.New(dir)
		if err != nil {
			t.Fatalf("opening store: %v", err)
		}
		c, err := coach.New(
			coach.WithUsername("alice"),
			coach.WithStore(st),
			coach.WithEngine(uciengine.Factory(uciengine.Config{Path: path, Threads: 1}, logger), 2),
			coach.WithBudget(engine.Budget{MoveTime: 20 * time.Millisecond}),
			coach.WithFetcher(games),
			coach.WithLogger(logger),
		)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c := open()
	snap, err := c.Update(ctx)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(snap.Failed) > 0 {
		t.Fatalf("failed games: %v", snap.Failed)
	}

	tally := snap.Profile.Tally()
	if tally["Queen's Gambit"] != "2-0-0" || tally["Sicilian Defense"] != "0-1-0" || len(tally) != 2 {
		t.Errorf("Tally() = %v", tally)
	}
	t.Logf("profile:\n%s", snap.Profile.Summary())
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A fresh process over the same directory reads the cached analysis.
	c = open()
	defer c.Close()
	cached, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if cached.Profile.TotalGames != 3 {
		t.Errorf("cached TotalGames = %d, want 3", cached.Profile.TotalGames)
	}

	report, err := c.Pipeline().Run(ctx, []*game.Record(games), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Evaluated) != 0 || len(report.Cached) != 3 {
		t.Errorf("rerun evaluated %v, cached %v", report.Evaluated, report.Cached)
	}
}
