package main

import (
	"testing"

	"roomcapture/geo"
)

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestSpawnIndexInsertAndQuery(t *testing.T) {
	idx := NewSpawnIndex(20, 20, 3)
	idx.Insert(1, geo.Point{X: 1, Y: 1})

	if !contains(idx.QueryBuf(geo.Point{X: 2, Y: 2}, 3, nil), 1) {
		t.Error("expected to find spawn near (1,1)")
	}
	if contains(idx.QueryBuf(geo.Point{X: 18, Y: 18}, 3, nil), 1) {
		t.Error("should not find spawn from the far corner")
	}
	if idx.Len() != 1 {
		t.Errorf("expected 1 indexed spawn, got %d", idx.Len())
	}
}

func TestSpawnIndexRemove(t *testing.T) {
	idx := NewSpawnIndex(5, 5, 3)
	idx.Insert(1, geo.Point{X: 1, Y: 1})
	idx.Insert(2, geo.Point{X: 1.2, Y: 1})

	if !idx.Remove(1, geo.Point{X: 1, Y: 1}) {
		t.Fatal("expected remove to succeed")
	}
	if idx.Remove(1, geo.Point{X: 1, Y: 1}) {
		t.Error("second remove should be a no-op")
	}
	ids := idx.QueryBuf(geo.Point{X: 1, Y: 1}, 1, nil)
	if contains(ids, 1) || !contains(ids, 2) {
		t.Errorf("unexpected ids after remove: %v", ids)
	}
}

func TestSpawnIndexBoundaryClamp(t *testing.T) {
	idx := NewSpawnIndex(5, 5, 1)

	idx.Insert(1, geo.Point{X: -2, Y: -2})
	if !contains(idx.QueryBuf(geo.Point{X: 0, Y: 0}, 0.5, nil), 1) {
		t.Error("expected to find spawn inserted at negative coords")
	}

	idx.Insert(2, geo.Point{X: 50, Y: 50})
	if !contains(idx.QueryBuf(geo.Point{X: 5, Y: 5}, 0.5, nil), 2) {
		t.Error("expected to find spawn inserted beyond the room edge")
	}
}

func TestSpawnIndexCoversDiscoveryRange(t *testing.T) {
	idx := NewSpawnIndex(10, 10, 3)
	idx.Insert(7, geo.Point{X: 9.9, Y: 5})

	// exactly one discovery range away, across a cell boundary
	if !contains(idx.QueryBuf(geo.Point{X: 6.9, Y: 5}, 3, nil), 7) {
		t.Error("a spawn at the discovery range must be a candidate")
	}
}

func TestWorldIndexTracksSpawns(t *testing.T) {
	w := newTestWorld(t, quietConfig())
	s := placeSpawn(t, w, RarityCommon, geo.Point{X: 1, Y: 1})
	before := w.index.Len()

	w.RemoveSpawn(s.ID, RemovedExpired)
	if w.index.Len() != before-1 {
		t.Errorf("index should shrink with the world: %d -> %d", before, w.index.Len())
	}
	if w.index.Len() != w.SpawnCount() {
		t.Errorf("index has %d spawns, world has %d", w.index.Len(), w.SpawnCount())
	}
}
