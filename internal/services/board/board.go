package board

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// Size is the number of cells on a board
const Size = 9

// Marker is the symbol occupying a cell
type Marker string

const (
	Empty Marker = ""
	X     Marker = "X"
	O     Marker = "O"
)

// Other returns the opposing marker
func (m Marker) Other() Marker {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// Board is a 3x3 grid in row-major order
type Board [Size]Marker

// lines are the 8 winning lines, scanned in this order
var lines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// ApplyMove returns a copy of the board with marker placed at cell.
// The original board is never modified.
func ApplyMove(b Board, cell int, marker Marker) (Board, error) {
	if cell < 0 || cell >= Size {
		return b, fmt.Errorf("cell %d out of range: %w", cell, model.ErrInvalidMove)
	}
	if b[cell] != Empty {
		return b, fmt.Errorf("cell %d occupied: %w", cell, model.ErrInvalidMove)
	}
	if marker != X && marker != O {
		return b, fmt.Errorf("marker %q: %w", marker, model.ErrInvalidMove)
	}
	b[cell] = marker
	return b, nil
}

// WinningLine returns the marker of the first fully matched line, or Empty
func WinningLine(b Board) Marker {
	for _, line := range lines {
		m := b[line[0]]
		if m != Empty && m == b[line[1]] && m == b[line[2]] {
			return m
		}
	}
	return Empty
}

// IsFull returns true if no cell is empty
func IsFull(b Board) bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// IsDrawn returns true iff the board is full and nobody has a line
func IsDrawn(b Board) bool {
	return IsFull(b) && WinningLine(b) == Empty
}

// EmptyCount returns the number of empty cells
func EmptyCount(b Board) int {
	count := 0
	for _, m := range b {
		if m == Empty {
			count++
		}
	}
	return count
}

// MarshalJSON encodes the board as 9 entries of "X", "O" or null
func (b Board) MarshalJSON() ([]byte, error) {
	cells := make([]*string, Size)
	for i, m := range b {
		if m != Empty {
			s := string(m)
			cells[i] = &s
		}
	}
	return json.Marshal(cells)
}

// UnmarshalJSON decodes the representation written by MarshalJSON
func (b *Board) UnmarshalJSON(data []byte) error {
	var cells []*string
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	if len(cells) != Size {
		return fmt.Errorf("board must have %d cells, got %d", Size, len(cells))
	}
	var out Board
	for i, c := range cells {
		if c == nil {
			continue
		}
		m := Marker(*c)
		if m != X && m != O {
			return fmt.Errorf("invalid marker %q at cell %d", *c, i)
		}
		out[i] = m
	}
	*b = out
	return nil
}
