// Package openings labels games with an ECO code and opening name from a
// reference dataset in the lichess chess-openings TSV format
// (eco<TAB>name<TAB>pgn).
package openings

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/notnil/chess"
)

// DefaultPlies is the number of opening plies considered by Classify.
const DefaultPlies = 12

// ErrEmptyDataset is returned when no opening lines could be loaded.
var ErrEmptyDataset = errors.New("openings: empty dataset")

//go:embed default.tsv
var defaultTSV []byte

// Label is the opening assigned to a game.
type Label struct {
	ECO   string `json:"eco"`
	Name  string `json:"name"`
	Plies int    `json:"plies,omitempty"`
}

// Unclassified is the label of games matching no dataset line.
var Unclassified = Label{ECO: "?", Name: "Unclassified"}

// IsUnclassified reports whether the label is the no-match label.
func (l Label) IsUnclassified() bool {
	return l.ECO == Unclassified.ECO && l.Name == Unclassified.Name
}

// Family returns the opening name without its variation, e.g. "Sicilian
// Defense" for "Sicilian Defense: Najdorf Variation".
func (l Label) Family() string {
	if name, _, ok := strings.Cut(l.Name, ":"); ok {
		return strings.TrimSpace(name)
	}
	return l.Name
}

// String returns "ECO Name".
func (l Label) String() string {
	return l.ECO + " " + l.Name
}

// less orders labels so duplicate dataset lines resolve deterministically.
func (l Label) less(o Label) bool {
	if l.ECO != o.ECO {
		return l.ECO < o.ECO
	}
	return l.Name < o.Name
}

// Classifier maps opening move sequences and positions to labels.
type Classifier struct {
	bySeq   map[string]Label
	byPos   map[string]Label
	plies   int
	version string
	lines   int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithPlies sets how many opening plies Classify looks at.
func WithPlies(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.plies = n
		}
	}
}

// Default returns a classifier over the embedded dataset.
func Default(opts ...Option) (*Classifier, error) {
	return FromReaders([]io.Reader{bytes.NewReader(defaultTSV)}, opts...)
}

// LoadDir loads every *.tsv file in dir in name order. When the directory
// has no dataset files the embedded dataset is used.
func LoadDir(dir string, opts ...Option) (*Classifier, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return Default(opts...)
	}
	sort.Strings(paths)

	readers := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		readers = append(readers, bytes.NewReader(data))
	}
	return FromReaders(readers, opts...)
}

// FromReader builds a classifier from a single TSV source.
func FromReader(r io.Reader, opts ...Option) (*Classifier, error) {
	return FromReaders([]io.Reader{r}, opts...)
}

// FromReaders builds a classifier from TSV sources read in order. Lines
// whose moves are illegal are skipped.
func FromReaders(readers []io.Reader, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		bySeq: make(map[string]Label),
		byPos: make(map[string]Label),
		plies: DefaultPlies,
	}
	for _, opt := range opts {
		opt(c)
	}

	h := xxhash.New()
	for _, r := range readers {
		if err := c.load(io.TeeReader(r, h)); err != nil {
			return nil, err
		}
	}
	if c.lines == 0 {
		return nil, ErrEmptyDataset
	}
	c.version = hex.EncodeToString(h.Sum(nil))
	return c, nil
}

func (c *Classifier) load(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		fields := strings.Split(line, "\t")
		if len(fields) < 3 || fields[0] == "eco" {
			continue
		}
		moves := ParseMoves(fields[2])
		if len(moves) == 0 {
			continue
		}
		pos, err := positionKeys(moves)
		if err != nil {
			continue
		}

		label := Label{ECO: fields[0], Name: fields[1], Plies: len(moves)}
		add(c.bySeq, seqKey(moves), label)
		add(c.byPos, pos[len(pos)-1], label)
		c.lines++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading openings: %w", err)
	}
	return nil
}

func add(index map[string]Label, key string, l Label) {
	if cur, ok := index[key]; ok && !l.less(cur) {
		return
	}
	index[key] = l
}

// Classify labels the first plies of a game. The longest matching prefix
// wins; at equal length a move-sequence match beats a position match.
// Games matching nothing are Unclassified.
func (c *Classifier) Classify(moves []string) Label {
	if len(moves) > c.plies {
		moves = moves[:c.plies]
	}

	pos, _ := positionKeys(moves)

	best := Unclassified
	for i := 1; i <= len(moves); i++ {
		if l, ok := c.bySeq[seqKey(moves[:i])]; ok {
			best = l
			continue
		}
		if i <= len(pos) {
			if l, ok := c.byPos[pos[i-1]]; ok {
				best = l
			}
		}
	}
	return best
}

// Version identifies the loaded dataset content.
func (c *Classifier) Version() string {
	return c.version
}

// Len returns the number of dataset lines loaded.
func (c *Classifier) Len() int {
	return c.lines
}

// Plies returns the number of opening plies considered.
func (c *Classifier) Plies() int {
	return c.plies
}

// ParseMoves extracts SAN moves from PGN movetext, dropping move numbers
// and results.
func ParseMoves(movetext string) []string {
	var moves []string
	for _, tok := range strings.Fields(movetext) {
		if i := strings.LastIndex(tok, "."); i >= 0 {
			tok = tok[i+1:]
		}
		switch tok {
		case "", "1-0", "0-1", "1/2-1/2", "*":
			continue
		}
		moves = append(moves, tok)
	}
	return moves
}

func seqKey(moves []string) string {
	return strings.Join(moves, " ")
}

// positionKeys replays moves and returns a key for the position after each
// ply. Keys hold placement, side to move and castling rights; the en
// passant square is left out so transpositions through double pawn pushes
// still meet. On an illegal move the keys up to it are returned.
func positionKeys(moves []string) ([]string, error) {
	g := chess.NewGame()
	keys := make([]string, 0, len(moves))
	for i, m := range moves {
		if err := g.MoveStr(m); err != nil {
			return keys, fmt.Errorf("ply %d (%s): %w", i+1, m, err)
		}
		fields := strings.Fields(g.Position().String())
		if len(fields) > 3 {
			fields = fields[:3]
		}
		keys = append(keys, strings.Join(fields, " "))
	}
	return keys, nil
}
