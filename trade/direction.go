package trade

import (
	"fmt"
	"strings"
)

// Direction is the side of a trade. Options signals use CALL/PUT, equity
// signals BUY/SELL; CALL and BUY are long.
type Direction string

const (
	Call Direction = "CALL"
	Put  Direction = "PUT"
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	switch d {
	case Call, Put, Buy, Sell:
		return d, nil
	case "LONG":
		return Buy, nil
	case "SHORT":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

func (d Direction) Long() bool { return d == Call || d == Buy }

// Sign is +1 for long directions and -1 for short ones.
func (d Direction) Sign() float64 {
	if d.Long() {
		return 1
	}
	return -1
}

// Opposes reports whether o is on the other side of d.
func (d Direction) Opposes(o Direction) bool {
	return d.Long() != o.Long()
}

// Better reports whether a is more favourable than b for this direction.
func (d Direction) Better(a, b float64) bool {
	if d.Long() {
		return a > b
	}
	return a < b
}

// Protective returns the tighter of two stop levels: the higher one for a
// long, the lower one for a short. Zero means "no level".
func (d Direction) Protective(a, b float64) float64 {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	case d.Better(a, b):
		return a
	default:
		return b
	}
}
