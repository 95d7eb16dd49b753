package domain

// Direction is the dominant flow direction relative to the central token.
type Direction string

const (
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionInflow || d == DirectionOutflow
}

// LinkMode selects which links survive the direction filter.
type LinkMode string

const (
	LinkModeAll  LinkMode = "all"
	LinkModeBuy  LinkMode = "buy"  // central token is being sold: outflow share <= 0.5
	LinkModeSell LinkMode = "sell" // central token is being bought: outflow share > 0.5
)

// String returns the string representation of LinkMode.
func (m LinkMode) String() string {
	return string(m)
}

// IsValid checks if the mode is a valid value.
func (m LinkMode) IsValid() bool {
	return m == LinkModeAll || m == LinkModeBuy || m == LinkModeSell
}

// Limits lists the supported result limits.
var Limits = []int{5, 10, 25, 50, 100, 200, 500}

// DefaultLimit is the default number of pairs requested.
const DefaultLimit = 50
