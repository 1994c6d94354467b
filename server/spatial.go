package main

import (
	"math"

	"roomcapture/geo"
)

// SpawnIndex is a uniform grid over the room for broad-phase proximity
// queries. Cells are one discovery range wide, so a query only touches the
// cells around a player.
type SpawnIndex struct {
	cellSize   float64
	cols, rows int
	cells      [][]int // spawn ids
	size       int
}

// NewSpawnIndex covers a width x height room with square cells.
func NewSpawnIndex(width, height, cellSize float64) *SpawnIndex {
	if !(cellSize > 0) {
		cellSize = 1
	}
	cols := int(math.Ceil(width/cellSize)) + 1
	rows := int(math.Ceil(height/cellSize)) + 1
	return &SpawnIndex{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]int, cols*rows),
	}
}

func (g *SpawnIndex) cell(v float64, n int) int {
	c := int(math.Floor(v / g.cellSize))
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

func (g *SpawnIndex) cellIdx(p geo.Point) int {
	return g.cell(p.Y, g.rows)*g.cols + g.cell(p.X, g.cols)
}

// Insert adds a spawn id at p
func (g *SpawnIndex) Insert(id int, p geo.Point) {
	idx := g.cellIdx(p)
	g.cells[idx] = append(g.cells[idx], id)
	g.size++
}

// Remove drops a spawn id previously inserted at p
func (g *SpawnIndex) Remove(id int, p geo.Point) bool {
	idx := g.cellIdx(p)
	cell := g.cells[idx]
	for i, sid := range cell {
		if sid == id {
			cell[i] = cell[len(cell)-1]
			g.cells[idx] = cell[:len(cell)-1]
			g.size--
			return true
		}
	}
	return false
}

// Len returns the number of indexed spawns
func (g *SpawnIndex) Len() int {
	return g.size
}

// QueryBuf appends the ids in every cell overlapping the square of the given
// radius around p. Callers still check the exact distance.
func (g *SpawnIndex) QueryBuf(p geo.Point, radius float64, buf []int) []int {
	minCX := g.cell(p.X-radius, g.cols)
	maxCX := g.cell(p.X+radius, g.cols)
	minCY := g.cell(p.Y-radius, g.rows)
	maxCY := g.cell(p.Y+radius, g.rows)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	return buf
}
