// Package heatmap bins geocoded points into a regular latitude/longitude grid.
package heatmap

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// FranceBounds is a box around metropolitan France and Corsica, centred near
// (46.603354, 1.888334).
var FranceBounds = Bounds{MinLat: 41.2, MinLon: -5.3, MaxLat: 51.2, MaxLon: 9.7}

var ErrEmptyBounds = errors.New("heatmap: empty bounds")

// maxGridDim caps rows and columns so tiny cell sizes cannot overflow int.
const maxGridDim = 1 << 20

// Point is one weighted observation. A Weight of zero or less counts as 1.
type Point struct {
	Lat    float64
	Lon    float64
	Weight float64
}

// Bounds is an inclusive lat/lon rectangle.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

func (b Bounds) empty() bool {
	return !(b.MaxLat > b.MinLat) || !(b.MaxLon > b.MinLon)
}

// Cell is one non-empty grid cell.
type Cell struct {
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	Lat       float64 `json:"lat"` // cell centre
	Lon       float64 `json:"lon"`
	Count     int     `json:"count"`
	Weight    float64 `json:"weight"`
	Intensity float64 `json:"intensity"` // Weight relative to the heaviest cell, in (0, 1]
}

type accum struct {
	count  int
	weight float64
}

// Grid accumulates points into square cells of CellSize degrees. Not safe for concurrent use.
type Grid struct {
	bounds   Bounds
	cellSize float64
	rows     int
	cols     int
	cells    map[[2]int]*accum
	dropped  int
}

// NewGrid creates an empty grid over bounds.
func NewGrid(bounds Bounds, cellSize float64) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 1) {
		return nil, fmt.Errorf("heatmap: invalid cell size %v", cellSize)
	}
	if bounds.empty() {
		return nil, ErrEmptyBounds
	}
	rows := math.Ceil((bounds.MaxLat - bounds.MinLat) / cellSize)
	cols := math.Ceil((bounds.MaxLon - bounds.MinLon) / cellSize)
	if rows > maxGridDim || cols > maxGridDim {
		return nil, fmt.Errorf("heatmap: cell size %v gives a %vx%v grid, above %d per side", cellSize, rows, cols, maxGridDim)
	}
	return &Grid{
		bounds:   bounds,
		cellSize: cellSize,
		rows:     int(rows),
		cols:     int(cols),
		cells:    make(map[[2]int]*accum),
	}, nil
}

// Add bins p. It returns false, and counts the point as dropped, when p lies
// outside the grid bounds or has non-finite coordinates.
func (g *Grid) Add(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || !g.bounds.Contains(p.Lat, p.Lon) {
		g.dropped++
		return false
	}
	// Points on the max edge belong to the last row/column.
	row := min(int((p.Lat-g.bounds.MinLat)/g.cellSize), g.rows-1)
	col := min(int((p.Lon-g.bounds.MinLon)/g.cellSize), g.cols-1)

	w := p.Weight
	if w <= 0 {
		w = 1
	}
	a := g.cells[[2]int{row, col}]
	if a == nil {
		a = &accum{}
		g.cells[[2]int{row, col}] = a
	}
	a.count++
	a.weight += w
	return true
}

// Dims returns the number of rows and columns.
func (g *Grid) Dims() (rows, cols int) {
	return g.rows, g.cols
}

// Dropped returns how many points fell outside the grid.
func (g *Grid) Dropped() int {
	return g.dropped
}

// Cells returns the non-empty cells ordered by row, then column.
func (g *Grid) Cells() []Cell {
	cells := make([]Cell, 0, len(g.cells))
	maxWeight := 0.0
	for k, a := range g.cells {
		cells = append(cells, Cell{
			Row:    k[0],
			Col:    k[1],
			Lat:    g.bounds.MinLat + (float64(k[0])+0.5)*g.cellSize,
			Lon:    g.bounds.MinLon + (float64(k[1])+0.5)*g.cellSize,
			Count:  a.count,
			Weight: a.weight,
		})
		maxWeight = max(maxWeight, a.weight)
	}
	for i := range cells {
		cells[i].Intensity = cells[i].Weight / maxWeight
	}
	slices.SortFunc(cells, func(a, b Cell) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return cells
}

// Bin builds a grid over bounds and adds every point.
func Bin(points []Point, bounds Bounds, cellSize float64) (*Grid, error) {
	g, err := NewGrid(bounds, cellSize)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		g.Add(p)
	}
	return g, nil
}
