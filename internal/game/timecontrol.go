package game

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// defaultBase is used when a time control string cannot be parsed.
const defaultBase = 600 * time.Second

// TimeControl is a base time plus per-move increment. Daily games set
// PerMove instead of Base.
type TimeControl struct {
	Base      time.Duration
	Increment time.Duration
	PerMove   time.Duration
	raw       string
}

// ParseTimeControl parses the PGN/chess.com forms "600", "180+2" and
// "1/86400". Anything else falls back to 600+0.
func ParseTimeControl(s string) TimeControl {
	s = strings.TrimSpace(s)
	tc := TimeControl{raw: s}

	if moves, secs, ok := strings.Cut(s, "/"); ok {
		if _, err := strconv.Atoi(moves); err == nil {
			if n, err := strconv.Atoi(secs); err == nil && n > 0 {
				tc.PerMove = time.Duration(n) * time.Second
				return tc
			}
		}
		tc.Base = defaultBase
		return tc
	}

	base, inc, _ := strings.Cut(s, "+")
	b, err := strconv.Atoi(base)
	if err != nil || b < 0 {
		tc.Base = defaultBase
		return tc
	}
	tc.Base = time.Duration(b) * time.Second
	if inc != "" {
		i, err := strconv.Atoi(inc)
		if err != nil || i < 0 {
			return TimeControl{Base: defaultBase, raw: s}
		}
		tc.Increment = time.Duration(i) * time.Second
	}
	return tc
}

// Daily reports whether this is a correspondence time control.
func (tc TimeControl) Daily() bool {
	return tc.PerMove > 0
}

// String returns the original time control string, or a canonical form.
func (tc TimeControl) String() string {
	if tc.raw != "" {
		return tc.raw
	}
	if tc.Daily() {
		return "1/" + strconv.Itoa(int(tc.PerMove/time.Second))
	}
	s := strconv.Itoa(int(tc.Base / time.Second))
	if tc.Increment > 0 {
		s += "+" + strconv.Itoa(int(tc.Increment/time.Second))
	}
	return s
}

// MarshalJSON encodes the time control as its string form.
func (tc TimeControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(tc.String())
}

// UnmarshalJSON decodes a time control string.
func (tc *TimeControl) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*tc = ParseTimeControl(s)
	return nil
}
