package game

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/notnil/chess"
)

// ErrNotParticipant indicates the user played neither side of a game.
var ErrNotParticipant = errors.New("game: user did not play this game")

var clockPattern = regexp.MustCompile(`\[%clk\s+(\d+):(\d{1,2}):(\d{1,2}(?:\.\d+)?)\]`)

// ParsePGN builds a Record for username from PGN text. The moves are
// replayed through the rules engine, so illegal games are rejected.
func ParsePGN(pgn, username string) (*Record, error) {
	opt, err := chess.PGN(strings.NewReader(pgn))
	if err != nil {
		return nil, fmt.Errorf("parsing pgn: %w", err)
	}
	g := chess.NewGame(opt)

	tag := func(key string) string {
		if tp := g.GetTagPair(key); tp != nil {
			return tp.Value
		}
		return ""
	}

	white, black := tag("White"), tag("Black")
	var color Color
	switch {
	case strings.EqualFold(white, username):
		color = White
	case strings.EqualFold(black, username):
		color = Black
	default:
		return nil, fmt.Errorf("%w: %s vs %s", ErrNotParticipant, white, black)
	}

	moves, err := sanMoves(g)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:          tag("Link"),
		URL:         tag("Link"),
		White:       white,
		Black:       black,
		Color:       color,
		TimeControl: ParseTimeControl(tag("TimeControl")),
		Result:      ResultFor(tag("Result"), color),
		Termination: tag("Termination"),
		Moves:       moves,
		FinalFEN:    g.Position().String(),
		PGN:         strings.TrimSpace(pgn),
		EndTime:     endTime(tag("EndDate"), tag("EndTime"), tag("UTCDate"), tag("UTCTime")),
	}
	if id := lastPathSegment(rec.URL); id != "" {
		rec.ID = id
	}

	whiteElo, _ := strconv.Atoi(tag("WhiteElo"))
	blackElo, _ := strconv.Atoi(tag("BlackElo"))
	if color == White {
		rec.PlayerRating, rec.OpponentRating = whiteElo, blackElo
	} else {
		rec.PlayerRating, rec.OpponentRating = blackElo, whiteElo
	}

	if clocks := ParseClocks(pgn); len(clocks) == len(moves) {
		rec.Clocks = clocks
	}

	return rec, nil
}

// sanMoves returns the game's moves in standard algebraic notation.
func sanMoves(g *chess.Game) ([]string, error) {
	positions := g.Positions()
	moves := g.Moves()
	if len(positions) != len(moves)+1 {
		return nil, fmt.Errorf("position count %d does not match move count %d", len(positions), len(moves))
	}
	notation := chess.AlgebraicNotation{}
	san := make([]string, len(moves))
	for i, m := range moves {
		san[i] = notation.Encode(positions[i], m)
	}
	return san, nil
}

// Positions replays SAN moves from the initial position and returns the FEN
// of every position, starting with the initial one.
func Positions(moves []string) ([]string, error) {
	g := chess.NewGame()
	fens := make([]string, 0, len(moves)+1)
	fens = append(fens, g.Position().String())
	for i, m := range moves {
		if err := g.MoveStr(m); err != nil {
			return nil, fmt.Errorf("ply %d (%s): %w", i+1, m, err)
		}
		fens = append(fens, g.Position().String())
	}
	return fens, nil
}

// ParseClocks extracts "[%clk h:mm:ss]" annotations in move order.
func ParseClocks(pgn string) []time.Duration {
	matches := clockPattern.FindAllStringSubmatch(pgn, -1)
	clocks := make([]time.Duration, 0, len(matches))
	for _, m := range matches {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		sec, _ := strconv.ParseFloat(m[3], 64)
		d := time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute +
			time.Duration(sec*float64(time.Second))
		clocks = append(clocks, d)
	}
	return clocks
}

func endTime(endDate, endClock, utcDate, utcClock string) time.Time {
	const layout = "2006.01.02 15:04:05"
	if endDate != "" && endClock != "" {
		if t, err := time.Parse(layout, endDate+" "+endClock); err == nil {
			return t.UTC()
		}
	}
	if utcDate != "" && utcClock != "" {
		if t, err := time.Parse(layout, utcDate+" "+utcClock); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func lastPathSegment(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return ""
}
