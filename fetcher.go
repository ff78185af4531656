package coach

import (
	"context"
	"time"

	"github.com/discochess/coach/internal/chesscom"
	"github.com/discochess/coach/internal/game"
)

// Fetcher supplies a player's games and ratings.
type Fetcher interface {
	// RecentGames returns the player's games from the last monthsBack
	// months before now.
	RecentGames(ctx context.Context, user string, monthsBack int, now time.Time) ([]*game.Record, error)

	// Stats returns the player's current ratings.
	Stats(ctx context.Context, user string) (*chesscom.PlayerStats, error)
}

// Compile-time check that the chess.com client implements Fetcher.
var _ Fetcher = (*chesscom.Client)(nil)
