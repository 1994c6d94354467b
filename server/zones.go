package main

import (
	"math"

	"roomcapture/geo"
)

// ZoneBounds is the rectangle covered by one zone
type ZoneBounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// ZoneGrid partitions the room into cols x rows equal zones. Zone index is
// row*cols + col.
type ZoneGrid struct {
	cols, rows    int
	width, height float64
	zoneW, zoneH  float64
}

// NewZoneGrid builds the grid for a room.
func NewZoneGrid(room RoomSettings) ZoneGrid {
	return ZoneGrid{
		cols:   room.Cols,
		rows:   room.Rows,
		width:  room.Width,
		height: room.Height,
		zoneW:  room.Width / float64(room.Cols),
		zoneH:  room.Height / float64(room.Rows),
	}
}

// Len returns the number of zones
func (g ZoneGrid) Len() int {
	return g.cols * g.rows
}

// ZoneOf returns the zone containing p. Points on or past the far walls
// belong to the last column/row.
func (g ZoneGrid) ZoneOf(p geo.Point) int {
	col := int(math.Floor(p.X / g.zoneW))
	row := int(math.Floor(p.Y / g.zoneH))
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return row*g.cols + col
}

// Bounds returns the rectangle of zone idx
func (g ZoneGrid) Bounds(idx int) ZoneBounds {
	col := idx % g.cols
	row := idx / g.cols
	return ZoneBounds{
		MinX: float64(col) * g.zoneW,
		MaxX: float64(col+1) * g.zoneW,
		MinY: float64(row) * g.zoneH,
		MaxY: float64(row+1) * g.zoneH,
	}
}

// RandomPoint draws a uniform point inside zone idx inset by margin.
func (g ZoneGrid) RandomPoint(idx int, margin float64, rnd func() float64) geo.Point {
	b := g.Bounds(idx)
	return geo.Point{
		X: b.MinX + margin + rnd()*(b.MaxX-b.MinX-2*margin),
		Y: b.MinY + margin + rnd()*(b.MaxY-b.MinY-2*margin),
	}
}

// Occupancy counts spawns per zone by classifying their positions.
func (g ZoneGrid) Occupancy(spawns map[int]*Spawn) []int {
	counts := make([]int, g.Len())
	for _, s := range spawns {
		counts[g.ZoneOf(s.Position)]++
	}
	return counts
}

// NeediestZone returns the zone with the largest deficit against target,
// ties to the lowest index. ok is false when no zone is under target.
func NeediestZone(counts []int, target int) (zone int, ok bool) {
	best := 0
	zone = -1
	for i, n := range counts {
		if deficit := target - n; deficit > best {
			best = deficit
			zone = i
		}
	}
	return zone, zone >= 0
}

// EmptiestZone returns the zone with the fewest spawns, ties to the lowest
// index.
func EmptiestZone(counts []int) int {
	zone := 0
	for i, n := range counts {
		if n < counts[zone] {
			zone = i
		}
	}
	return zone
}
