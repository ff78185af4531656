package coach

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/discochess/coach/internal/chesscom"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/store/memstore"
)

var testNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu      sync.Mutex
	records []*game.Record
	err     error
	calls   int
}

func (f *fakeFetcher) RecentGames(ctx context.Context, user string, monthsBack int, now time.Time) ([]*game.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]*game.Record(nil), f.records...), nil
}

func (f *fakeFetcher) Stats(ctx context.Context, user string) (*chesscom.PlayerStats, error) {
	return &chesscom.PlayerStats{Ratings: map[string]chesscom.Rating{"blitz": {Last: 1500}}}, nil
}

func (f *fakeFetcher) set(records []*game.Record, err error) {
	f.mu.Lock()
	f.records, f.err = records, err
	f.mu.Unlock()
}

type steadyEngine struct {
	calls *atomic.Int64
}

func (e *steadyEngine) Evaluate(ctx context.Context, fen string, budget engine.Budget) engine.Result {
	e.calls.Add(1)
	return engine.Evaluation(engine.Score{CP: 20}, 10, "")
}

func (e *steadyEngine) Close() error { return nil }

func testRecord(id string, result game.Result, day int, moves string) *game.Record {
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

func threeGames() []*game.Record {
	return []*game.Record{
		testRecord("g1", game.Win, 1, "d4 d5 c4 Nf6 Nc3 Bf5"),
		testRecord("g2", game.Win, 2, "d4 d5 c4 Nf6 cxd5 Nxd5"),
		testRecord("g3", game.Loss, 3, "e4 c5 Nf3 Nc6 Bb5 g6"),
	}
}

type testCoach struct {
	*Coach
	fetcher *fakeFetcher
	calls   *atomic.Int64
	store   *memstore.Store
}

func newTestCoach(t *testing.T, st *memstore.Store, opts ...Option) *testCoach {
	t.Helper()
	if st == nil {
		st = memstore.New()
	}
	tc := &testCoach{fetcher: &fakeFetcher{records: threeGames()}, calls: new(atomic.Int64), store: st}
	factory := func(context.Context) (engine.Engine, error) {
		return &steadyEngine{calls: tc.calls}, nil
	}
	base := []Option{
		WithUsername("alice"),
		WithStore(st),
		WithEngine(factory, 2),
		WithFetcher(tc.fetcher),
		WithClock(func() time.Time { return testNow }),
		WithMemoSize(0),
	}
	c, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tc.Coach = c
	return tc
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New()
	if !errors.Is(err, ErrNoStore) {
		t.Errorf("New() error = %v, want ErrNoStore", err)
	}
}

func TestCoach_UpdateRequiresEngineAndUser(t *testing.T) {
	ctx := context.Background()

	c, err := New(WithStore(memstore.New()), WithUsername("alice"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Update(ctx); !errors.Is(err, ErrNoEngine) {
		t.Errorf("Update() error = %v, want ErrNoEngine", err)
	}

	c, err = New(WithStore(memstore.New()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Update(ctx); !errors.Is(err, ErrNoUsername) {
		t.Errorf("Update() error = %v, want ErrNoUsername", err)
	}
}

func TestCoach_Update(t *testing.T) {
	ctx := context.Background()
	c := newTestCoach(t, nil)
	defer c.Close()

	snap, err := c.Update(ctx)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	tally := snap.Profile.Tally()
	want := map[string]string{"Queen's Gambit": "2-0-0", "Sicilian Defense": "0-1-0"}
	if len(tally) != len(want) {
		t.Fatalf("Tally() = %v, want %v", tally, want)
	}
	for name, w := range want {
		if tally[name] != w {
			t.Errorf("Tally()[%q] = %q, want %q", name, tally[name], w)
		}
	}
	if snap.Version != 1 || snap.RunID == "" {
		t.Errorf("snapshot version=%d run=%q", snap.Version, snap.RunID)
	}
	if snap.Ratings == nil || snap.Ratings.Ratings["blitz"].Last != 1500 {
		t.Errorf("Ratings = %+v", snap.Ratings)
	}
	if !snap.GeneratedAt.Equal(testNow) {
		t.Errorf("GeneratedAt = %v, want %v", snap.GeneratedAt, testNow)
	}

	// 6 + 6 + 6 plies plus the three initial positions.
	if got := c.calls.Load(); got != 21 {
		t.Errorf("engine calls = %d, want 21", got)
	}

	// A second update only evaluates new games.
	next, err := c.Update(ctx)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := c.calls.Load(); got != 21 {
		t.Errorf("engine calls after incremental update = %d, want 21", got)
	}
	if next.Version != 2 {
		t.Errorf("Version = %d, want 2", next.Version)
	}
	if snap.Version != 1 || snap.Profile.TotalGames != 3 {
		t.Error("published snapshot was modified")
	}

	cur, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if cur != next {
		t.Error("Profile() did not return the latest snapshot")
	}
}

func TestCoach_MaxGames(t *testing.T) {
	c := newTestCoach(t, nil, WithMaxGames(2))
	defer c.Close()

	snap, err := c.Update(context.Background())
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if snap.Profile.TotalGames != 2 || snap.Profile.FetchedGames != 2 {
		t.Errorf("games = %d/%d, want 2/2", snap.Profile.TotalGames, snap.Profile.FetchedGames)
	}
	if _, ok := snap.Profile.Openings["Sicilian Defense"]; !ok {
		t.Error("the most recent game should be kept")
	}
}

func TestCoach_FetchErrorKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newTestCoach(t, nil)
	defer c.Close()

	first, err := c.Update(ctx)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	c.fetcher.set(nil, chesscom.ErrRateLimited)
	if _, err := c.Update(ctx); !errors.Is(err, chesscom.ErrRateLimited) {
		t.Errorf("Update() error = %v, want ErrRateLimited", err)
	}

	cur, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if cur != first {
		t.Error("a failed update replaced the snapshot")
	}
}

func TestCoach_ProfileFromCache(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	first := newTestCoach(t, st)
	if _, err := first.Update(ctx); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	second := newTestCoach(t, st)
	snap, err := second.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if snap.RunID != "" {
		t.Errorf("RunID = %q, want empty", snap.RunID)
	}
	if snap.Profile.TotalGames != 3 || snap.Profile.Wins != 2 {
		t.Errorf("profile = %d games, %d wins", snap.Profile.TotalGames, snap.Profile.Wins)
	}
	if second.calls.Load() != 0 {
		t.Error("reading the profile must not evaluate games")
	}

	summary, err := second.StyleSummary(ctx)
	if err != nil {
		t.Fatalf("StyleSummary() error = %v", err)
	}
	if !strings.Contains(summary, "Queen's Gambit") {
		t.Errorf("summary missing opening:\n%s", summary)
	}
}

func TestCoach_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := newTestCoach(t, nil)
	defer c.Close()

	if _, err := c.Update(ctx); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	snap, err := c.Invalidate(ctx, "g1")
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if snap.Profile.TotalGames != 2 || !snap.Profile.Partial {
		t.Errorf("after invalidate: %d games, partial=%v", snap.Profile.TotalGames, snap.Profile.Partial)
	}
	if snap.Ratings == nil {
		t.Error("ratings should carry over")
	}

	before := c.calls.Load()
	snap, err = c.Update(ctx)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if snap.Profile.TotalGames != 3 {
		t.Errorf("TotalGames = %d, want 3", snap.Profile.TotalGames)
	}
	if got := c.calls.Load() - before; got != 7 {
		t.Errorf("re-evaluation calls = %d, want 7", got)
	}
}

func TestCoach_Rebuild(t *testing.T) {
	ctx := context.Background()
	c := newTestCoach(t, nil)
	defer c.Close()

	if _, err := c.Update(ctx); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	c.fetcher.set(threeGames()[:2], nil)

	snap, err := c.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if snap.Profile.TotalGames != 2 {
		t.Errorf("TotalGames = %d, want 2", snap.Profile.TotalGames)
	}
	ids, err := c.Cache().IDs(ctx)
	if err != nil {
		t.Fatalf("IDs() error = %v", err)
	}
	if strings.Join(ids, ",") != "g1,g2" {
		t.Errorf("cached ids = %v, want [g1 g2]", ids)
	}

	reps, err := c.RepresentativeGames(ctx)
	if err != nil {
		t.Fatalf("RepresentativeGames() error = %v", err)
	}
	if reps.BestWin == nil || len(reps.ByResult.Wins) != 2 {
		t.Errorf("representative games = %+v", reps)
	}

	openings, err := c.OpeningsByWinRate(ctx, 1)
	if err != nil {
		t.Fatalf("OpeningsByWinRate() error = %v", err)
	}
	if len(openings) != 1 || openings[0].Name != "Queen's Gambit" {
		t.Errorf("OpeningsByWinRate() = %+v", openings)
	}
}

func TestCoach_Close(t *testing.T) {
	c := newTestCoach(t, nil)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	if _, err := c.Profile(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Profile() error = %v, want ErrClosed", err)
	}
}
