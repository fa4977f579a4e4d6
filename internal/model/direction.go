package model

import "fmt"

// Direction identifies one side of the spread watch.
type Direction int

const (
	Upper Direction = 0 // mark spread breaking out above the upper threshold
	Lower Direction = 1 // mark spread breaking out below the lower threshold
)

// Directions lists both sides in evaluation order.
var Directions = [2]Direction{Upper, Lower}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Upper {
		return Lower
	}
	return Upper
}

func (d Direction) String() string {
	switch d {
	case Upper:
		return "upper"
	case Lower:
		return "lower"
	default:
		return "unknown"
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "upper":
		return Upper, nil
	case "lower":
		return Lower, nil
	default:
		return Upper, fmt.Errorf("unknown direction %q", s)
	}
}
