package chesscom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discochess/coach/internal/game"
)

const marchPGN = `[Event "Live Chess"]
[Site "Chess.com"]
[White "alice"]
[Black "bob"]
[Result "1-0"]
[WhiteElo "1500"]
[BlackElo "1480"]
[TimeControl "180+2"]
[EndDate "2024.03.01"]
[EndTime "18:22:05"]
[Link "https://www.chess.com/game/live/104233"]

1. e4 e5 2. Bc4 Nc6 3. Qh5 Nf6 4. Qxf7# 1-0
`

const februaryPGN = `[Event "Live Chess"]
[Site "Chess.com"]
[White "bob"]
[Black "Alice"]
[Result "1-0"]
[TimeControl "600"]
[EndDate "2024.02.20"]
[EndTime "10:00:00"]
[Link "https://www.chess.com/game/live/104100"]

1. d4 d5 2. c4 e6 3. Nc3 Nf6 1-0
`

func newServer(t *testing.T, januaryHit *atomic.Bool) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("/player/alice/games/archives", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		writeJSON(w, map[string]any{"archives": []string{
			srv.URL + "/player/alice/games/2024/01",
			srv.URL + "/player/alice/games/2024/02",
			srv.URL + "/player/alice/games/2024/03",
		}})
	})
	mux.HandleFunc("/player/alice/games/2024/01", func(w http.ResponseWriter, r *http.Request) {
		januaryHit.Store(true)
		writeJSON(w, map[string]any{"games": []any{}})
	})
	mux.HandleFunc("/player/alice/games/2024/02", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"games": []ArchiveGame{
			{URL: "https://www.chess.com/game/live/104100", PGN: februaryPGN, Rules: "chess",
				White: Player{Username: "bob"}, Black: Player{Username: "Alice"}},
		}})
	})
	mux.HandleFunc("/player/alice/games/2024/03", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"games": []ArchiveGame{
			{URL: "https://www.chess.com/game/live/104233", PGN: marchPGN, Rules: "chess",
				White: Player{Username: "alice"}, Black: Player{Username: "bob"}},
			{URL: "https://www.chess.com/game/live/1", PGN: marchPGN,
				White: Player{Username: "carol"}, Black: Player{Username: "dave"}},
			{URL: "https://www.chess.com/game/live/2", PGN: "not a pgn",
				White: Player{Username: "alice"}, Black: Player{Username: "erin"}},
			{URL: "https://www.chess.com/game/live/3", PGN: marchPGN, Rules: "chess960",
				White: Player{Username: "alice"}, Black: Player{Username: "bob"}},
		}})
	})
	mux.HandleFunc("/player/alice/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"chess_rapid": {"last": {"rating": 1510}, "best": {"rating": 1602}, "record": {"win": 40, "loss": 30, "draw": 5}},
			"chess_blitz": {"last": {"rating": 1380}, "best": {"rating": 1450}, "record": {"win": 10, "loss": 12, "draw": 1}},
			"fide": 0
		}`))
	})
	mux.HandleFunc("/player/ghost/games/archives", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/player/busy/games/archives", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *Client {
	return New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRequestsPerMinute(0))
}

func TestRecentGames(t *testing.T) {
	var januaryHit atomic.Bool
	srv := newServer(t, &januaryHit)
	c := newClient(srv)

	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	recs, err := c.RecentGames(context.Background(), "Alice", 1, now)
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, "104100", recs[0].ID, "oldest first")
	assert.Equal(t, game.Black, recs[0].Color)
	assert.Equal(t, game.Loss, recs[0].Result)
	assert.Equal(t, "104233", recs[1].ID)
	assert.Equal(t, game.Win, recs[1].Result)
	assert.False(t, januaryHit.Load(), "archives before the cut-off are not fetched")
}

func TestFetchErrors(t *testing.T) {
	var januaryHit atomic.Bool
	srv := newServer(t, &januaryHit)
	c := newClient(srv)
	ctx := context.Background()

	_, err := c.RecentGames(ctx, "ghost", 3, time.Now())
	assert.ErrorIs(t, err, ErrUnknownUser)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Equal(t, "ghost", fe.User)

	_, err = c.Archives(ctx, "busy")
	assert.ErrorIs(t, err, ErrRateLimited)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Archives(canceled, "alice")
	assert.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStats(t *testing.T) {
	var januaryHit atomic.Bool
	srv := newServer(t, &januaryHit)
	c := newClient(srv)

	st, err := c.Stats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, Rating{Last: 1510, Best: 1602, Wins: 40, Losses: 30, Draws: 5}, st.Ratings["rapid"])
	assert.Equal(t, 1380, st.Ratings["blitz"].Last)
	assert.NotContains(t, st.Ratings, "bullet")
}

func TestArchiveMonth(t *testing.T) {
	m, err := archiveMonth("https://api.chess.com/pub/player/alice/games/2024/02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), m)

	_, err = archiveMonth("https://api.chess.com/pub/player/alice/games/2024/13")
	assert.Error(t, err)
}
