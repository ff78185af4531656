// Package fen provides FEN (Forsyth-Edwards Notation) helpers: position
// keys for lookups and material counting for game-phase detection.
package fen

import (
	"errors"
	"strings"
)

// ErrInvalidFEN indicates the FEN string is malformed.
var ErrInvalidFEN = errors.New("invalid FEN notation")

// Normalize returns the EPD form of a FEN: placement, side to move, castling
// rights and en passant square. Positions reached by different move orders
// share the same key.
func Normalize(fen string) (string, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return "", ErrInvalidFEN
	}
	if !isValidPiecePlacement(parts[0]) {
		return "", ErrInvalidFEN
	}
	if parts[1] != "w" && parts[1] != "b" {
		return "", ErrInvalidFEN
	}
	return strings.Join(parts[:4], " "), nil
}

// Key returns Normalize(fen) without validation, so malformed input still
// yields a stable opaque key.
func Key(fen string) string {
	parts := strings.Fields(fen)
	if len(parts) > 4 {
		parts = parts[:4]
	}
	return strings.Join(parts, " ")
}

// SideToMove returns "w" or "b" from a FEN string.
func SideToMove(fen string) (string, error) {
	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return "", ErrInvalidFEN
	}
	if parts[1] != "w" && parts[1] != "b" {
		return "", ErrInvalidFEN
	}
	return parts[1], nil
}

// Side holds the non-king piece counts of one side.
type Side struct {
	Pawns, Knights, Bishops, Rooks, Queens int
}

// Points returns the conventional material value (1/3/3/5/9).
func (s Side) Points() int {
	return s.Pawns + 3*(s.Knights+s.Bishops) + 5*s.Rooks + 9*s.Queens
}

// Pieces returns the non-pawn, non-king piece value.
func (s Side) Pieces() int {
	return s.Points() - s.Pawns
}

// Material is the piece count of both sides.
type Material struct {
	White, Black Side
}

// Phase is the stage of a game judged by the material left on the board.
type Phase int

const (
	Opening Phase = iota
	Middlegame
	Endgame
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case Middlegame:
		return "middlegame"
	default:
		return "endgame"
	}
}

// Phase classifies the material: an endgame has no queens and at most a
// rook and minor piece per side, or at most 13 points of pieces in total.
// Full piece material is the opening.
func (m Material) Phase() Phase {
	pieces := m.White.Pieces() + m.Black.Pieces()
	noQueens := m.White.Queens == 0 && m.Black.Queens == 0
	switch {
	case pieces <= 13, noQueens && m.White.Pieces() <= 8 && m.Black.Pieces() <= 8:
		return Endgame
	case pieces >= 62:
		return Opening
	default:
		return Middlegame
	}
}

// Balance returns White's material advantage in points.
func (m Material) Balance() int {
	return m.White.Points() - m.Black.Points()
}

// ParseMaterial extracts material counts from a FEN string.
func ParseMaterial(fen string) (Material, error) {
	parts := strings.Fields(fen)
	if len(parts) == 0 || !isValidPiecePlacement(parts[0]) {
		return Material{}, ErrInvalidFEN
	}

	var m Material
	for _, ch := range parts[0] {
		side := &m.White
		if ch >= 'a' && ch <= 'z' {
			side = &m.Black
		}
		switch ch {
		case 'P', 'p':
			side.Pawns++
		case 'N', 'n':
			side.Knights++
		case 'B', 'b':
			side.Bishops++
		case 'R', 'r':
			side.Rooks++
		case 'Q', 'q':
			side.Queens++
		}
	}
	return m, nil
}

// isValidPiecePlacement validates the piece placement part of a FEN.
func isValidPiecePlacement(placement string) bool {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return false
	}

	for _, rank := range ranks {
		squares := 0
		for _, ch := range rank {
			switch {
			case ch >= '1' && ch <= '8':
				squares += int(ch - '0')
			case strings.ContainsRune("PNBRQKpnbrqk", ch):
				squares++
			default:
				return false
			}
		}
		if squares != 8 {
			return false
		}
	}
	return true
}
