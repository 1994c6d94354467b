package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"roomcapture/geo"
)

// GenerateSpawn runs one zone-balanced generation step. It returns nil when
// the room is at its cap, no zone is under target, or no free position was
// found in the chosen zone.
func (w *World) GenerateSpawn(now time.Time) *Spawn {
	return w.generate(now, false)
}

// generate places one spawn. With floor set, a full set of zones still gets
// a spawn in its emptiest zone so the active count can reach MinActive.
func (w *World) generate(now time.Time, floor bool) *Spawn {
	if len(w.spawns) >= w.cfg.Spawn.MaxSimultaneous {
		return nil
	}
	counts := w.grid.Occupancy(w.spawns)
	zone, ok := NeediestZone(counts, w.cfg.Spawn.PerZone)
	if !ok {
		if !floor {
			return nil
		}
		zone = EmptiestZone(counts)
	}
	return w.SpawnInZone(zone, now)
}

// SpawnInZone creates a spawn in zone, honouring the minimum distance to
// every active spawn. It gives up after MaxAttempts candidates.
func (w *World) SpawnInZone(zone int, now time.Time) *Spawn {
	if zone < 0 || zone >= w.grid.Len() || len(w.spawns) >= w.cfg.Spawn.MaxSimultaneous {
		return nil
	}
	pos, ok := w.findPosition(zone)
	if !ok {
		w.stats.FailedPlace++
		log.Printf("spawner: no free position in zone %d after %d attempts", zone, w.cfg.Spawn.MaxAttempts)
		return nil
	}

	def := w.rarities.Pick(w.rng.Float64())
	obj := def.Objects[w.rng.Intn(len(def.Objects))]
	s := NewSpawn(w.nextSpawnID, def, obj, pos, zone, now)
	w.nextSpawnID++
	w.addSpawn(s)
	w.zoneLastSpawn[zone] = now
	w.stats.TotalSpawns++
	log.Printf("spawner: spawn %d (%s %s) in zone %d at (%.2f, %.2f)", s.ID, s.Rarity, s.Name, zone, pos.X, pos.Y)

	if w.observer != nil {
		w.observer.SpawnCreated(s)
	}
	w.checkSpawn(s)
	return s
}

func (w *World) findPosition(zone int) (geo.Point, bool) {
	for attempt := 0; attempt < w.cfg.Spawn.MaxAttempts; attempt++ {
		pos := w.grid.RandomPoint(zone, w.cfg.Spawn.ZoneMargin, w.rng.Float64)
		if w.farEnough(pos) {
			return pos, true
		}
	}
	return geo.Point{}, false
}

func (w *World) farEnough(pos geo.Point) bool {
	for _, s := range w.spawns {
		if geo.Distance(pos, s.Position) < w.cfg.Spawn.MinDistance {
			return false
		}
	}
	return true
}

// SpawnTick is the periodic generation cycle: one balanced spawn, then more
// while the room is below MinActive and placement keeps succeeding.
func (w *World) SpawnTick(now time.Time) []*Spawn {
	var created []*Spawn
	if s := w.GenerateSpawn(now); s != nil {
		created = append(created, s)
	}
	for len(w.spawns) < w.cfg.Spawn.MinActive {
		s := w.generate(now, true)
		if s == nil {
			break
		}
		created = append(created, s)
	}
	return created
}

// FillInitial seeds every zone up to its target, zone by zone, stopping at
// the global cap.
func (w *World) FillInitial(now time.Time) []*Spawn {
	var created []*Spawn
	for zone := 0; zone < w.grid.Len(); zone++ {
		for i := 0; i < w.cfg.Spawn.PerZone; i++ {
			if len(w.spawns) >= w.cfg.Spawn.MaxSimultaneous {
				return created
			}
			if s := w.SpawnInZone(zone, now); s != nil {
				created = append(created, s)
			}
		}
	}
	log.Printf("spawner: %d initial spawns", len(created))
	return created
}

// ZoneReport is a one-line summary of zone occupancy for the stats log
func (w *World) ZoneReport(now time.Time) string {
	var b strings.Builder
	for i, n := range w.ZoneCounts() {
		if i > 0 {
			b.WriteString(", ")
		}
		last := "never"
		if !w.zoneLastSpawn[i].IsZero() {
			last = now.Sub(w.zoneLastSpawn[i]).Truncate(time.Second).String() + " ago"
		}
		fmt.Fprintf(&b, "zone %d: %d (last %s)", i, n, last)
	}
	return b.String()
}
