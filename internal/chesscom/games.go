package chesscom

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/coach/internal/game"
)

// Player is one side of an archived game.
type Player struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

// ArchiveGame is a game as listed in a monthly archive.
type ArchiveGame struct {
	URL         string `json:"url"`
	PGN         string `json:"pgn"`
	TimeControl string `json:"time_control"`
	TimeClass   string `json:"time_class"`
	Rules       string `json:"rules"`
	Rated       bool   `json:"rated"`
	EndTime     int64  `json:"end_time"`
	White       Player `json:"white"`
	Black       Player `json:"black"`
}

// Involves reports whether user played either side.
func (g *ArchiveGame) Involves(user string) bool {
	return strings.EqualFold(g.White.Username, user) || strings.EqualFold(g.Black.Username, user)
}

// Archives returns the URLs of the player's monthly archives, oldest first.
func (c *Client) Archives(ctx context.Context, user string) ([]string, error) {
	var resp struct {
		Archives []string `json:"archives"`
	}
	if err := c.get(ctx, "listing archives", user, c.playerURL(user, "games", "archives"), &resp); err != nil {
		return nil, err
	}
	return resp.Archives, nil
}

// ArchiveGames returns the games of one monthly archive.
func (c *Client) ArchiveGames(ctx context.Context, archiveURL string) ([]ArchiveGame, error) {
	var resp struct {
		Games []ArchiveGame `json:"games"`
	}
	if err := c.get(ctx, "fetching archive "+archiveURL, "", archiveURL, &resp); err != nil {
		return nil, err
	}
	return resp.Games, nil
}

// archiveMonth parses the ".../games/YYYY/MM" suffix of an archive URL and
// returns the last day of that month.
func archiveMonth(archiveURL string) (time.Time, error) {
	parts := strings.Split(strings.TrimRight(archiveURL, "/"), "/")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("malformed archive url %q", archiveURL)
	}
	year, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed archive year in %q", archiveURL)
	}
	month, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("malformed archive month in %q", archiveURL)
	}
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC), nil
}

// RecentGames returns the player's standard-chess games from archives
// ending within monthsBack months (30 days each) of now, oldest first.
// Games whose PGN cannot be parsed are skipped and logged; any request
// failure fails the whole fetch.
func (c *Client) RecentGames(ctx context.Context, user string, monthsBack int, now time.Time) ([]*game.Record, error) {
	archives, err := c.Archives(ctx, user)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(archives)))
	cutoff := now.AddDate(0, 0, -30*monthsBack)

	seen := make(map[string]bool)
	var records []*game.Record
	for _, a := range archives {
		month, err := archiveMonth(a)
		if err != nil {
			c.logger.Warn("skipping archive", zap.Error(err))
			continue
		}
		if month.Before(cutoff) {
			break
		}

		games, err := c.ArchiveGames(ctx, a)
		if err != nil {
			return nil, err
		}
		for i := range games {
			rec, err := c.record(&games[i], user)
			if err != nil {
				if !errors.Is(err, errSkip) {
					c.logger.Warn("skipping game", zap.String("url", games[i].URL), zap.Error(err))
				}
				continue
			}
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[j].Newer(records[i]) })
	c.logger.Debug("fetched games", zap.String("user", user), zap.Int("games", len(records)))
	return records, nil
}

var errSkip = errors.New("not a game for this player")

func (c *Client) record(g *ArchiveGame, user string) (*game.Record, error) {
	if g.PGN == "" || !g.Involves(user) {
		return nil, errSkip
	}
	if g.Rules != "" && g.Rules != "chess" {
		return nil, errSkip
	}

	rec, err := game.ParsePGN(g.PGN, user)
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		if i := strings.LastIndex(g.URL, "/"); i >= 0 {
			rec.ID = g.URL[i+1:]
		}
	}
	if rec.URL == "" {
		rec.URL = g.URL
	}
	if rec.EndTime.IsZero() && g.EndTime > 0 {
		rec.EndTime = time.Unix(g.EndTime, 0).UTC()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Rating is the player's standing in one time class.
type Rating struct {
	Last   int `json:"last"`
	Best   int `json:"best"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// PlayerStats holds the player's ratings keyed by time class ("rapid",
// "blitz", "bullet", "daily", "daily960") and FIDE rating when set.
type PlayerStats struct {
	FIDE    int               `json:"fide,omitempty"`
	Ratings map[string]Rating `json:"ratings"`
}

type apiRating struct {
	Last struct {
		Rating int `json:"rating"`
	} `json:"last"`
	Best struct {
		Rating int `json:"rating"`
	} `json:"best"`
	Record struct {
		Win  int `json:"win"`
		Loss int `json:"loss"`
		Draw int `json:"draw"`
	} `json:"record"`
}

// Stats returns the player's ratings.
func (c *Client) Stats(ctx context.Context, user string) (*PlayerStats, error) {
	var resp struct {
		FIDE          int        `json:"fide"`
		Daily         *apiRating `json:"chess_daily"`
		Rapid         *apiRating `json:"chess_rapid"`
		Blitz         *apiRating `json:"chess_blitz"`
		Bullet        *apiRating `json:"chess_bullet"`
		Chess960Daily *apiRating `json:"chess960_daily"`
	}
	if err := c.get(ctx, "fetching stats", user, c.playerURL(user, "stats"), &resp); err != nil {
		return nil, err
	}

	st := &PlayerStats{FIDE: resp.FIDE, Ratings: make(map[string]Rating)}
	for class, r := range map[string]*apiRating{
		"daily":    resp.Daily,
		"rapid":    resp.Rapid,
		"blitz":    resp.Blitz,
		"bullet":   resp.Bullet,
		"daily960": resp.Chess960Daily,
	} {
		if r == nil {
			continue
		}
		st.Ratings[class] = Rating{
			Last:   r.Last.Rating,
			Best:   r.Best.Rating,
			Wins:   r.Record.Win,
			Losses: r.Record.Loss,
			Draws:  r.Record.Draw,
		}
	}
	return st, nil
}
