package digipin

import "fmt"

// Alphabet lists the 16 symbols used by codes, in ascending byte order.
const Alphabet = "23456789CFJKLMPT"

// anticlockwise spiral layout; row 0 is the northernmost band
var defaultLayout = [gridSize][gridSize]byte{
	{'F', 'C', '9', '8'},
	{'J', '3', '2', '7'},
	{'K', '4', '5', '6'},
	{'L', 'M', 'P', 'T'},
}

const gridSize = 4

type position struct {
	row, col int
	ok       bool
}

// Grid is the symbol table applied at every subdivision level together
// with its inverse.
type Grid struct {
	symbols [gridSize][gridSize]byte
	index   [256]position
}

func newGrid(layout [gridSize][gridSize]byte) (*Grid, error) {
	g := &Grid{symbols: layout}
	for r := range gridSize {
		for c := range gridSize {
			s := layout[r][c]
			if g.index[s].ok {
				return nil, fmt.Errorf("grid symbol %q repeats at (%d,%d)", s, r, c)
			}
			g.index[s] = position{row: r, col: c, ok: true}
		}
	}
	return g, nil
}

func mustGrid(layout [gridSize][gridSize]byte) *Grid {
	g, err := newGrid(layout)
	if err != nil {
		panic(err)
	}
	return g
}

// Symbol returns the symbol at (row, col). Both must be in [0,3].
func (g *Grid) Symbol(row, col int) byte {
	return g.symbols[row][col]
}

// Lookup returns the (row, col) of s, or ok=false when s is not in the grid.
func (g *Grid) Lookup(s byte) (row, col int, ok bool) {
	p := g.index[s]
	return p.row, p.col, p.ok
}
