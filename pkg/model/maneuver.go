package model

import (
	"strings"
	"time"
)

// Board is the point-of-sail label of a run of samples.
type Board string

const (
	BoardUpwindPort        Board = "U-P"
	BoardUpwindStarboard   Board = "U-S"
	BoardDownwindPort      Board = "D-P"
	BoardDownwindStarboard Board = "D-S"
	BoardPreStart          Board = "PS"
)

// Upwind reports whether the label starts with U.
func (b Board) Upwind() bool {
	return strings.HasPrefix(string(b), "U")
}

// Maneuver is a run of samples sharing one board. End is the time of the
// sample that changed the board (or the last labeled sample of the run).
type Maneuver struct {
	Board Board     `json:"board"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (m Maneuver) Duration() time.Duration {
	return m.End.Sub(m.Start)
}
