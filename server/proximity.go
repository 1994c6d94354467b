package main

import (
	"log"
	"sort"

	"roomcapture/geo"
)

// CheckProximity re-evaluates every spawn against one player.
func (w *World) CheckProximity(playerID string) {
	if p, ok := w.players[playerID]; ok {
		w.checkPlayer(p, true)
	}
}

// CheckAllProximity re-evaluates every (player, spawn) pair.
func (w *World) CheckAllProximity() {
	for _, pid := range w.sortedPlayerIDs() {
		w.checkPlayer(w.players[pid], true)
	}
}

// checkPlayer evaluates the spawns that can change state for p: those in
// cells near enough to be discovered plus those it already sees.
func (w *World) checkPlayer(p *Player, notify bool) {
	ids := w.index.QueryBuf(p.Position, w.cfg.Proximity.DiscoveryRange, w.nearby[:0])
	for sid := range p.Visible {
		ids = append(ids, sid)
	}
	sort.Ints(ids)
	for i, sid := range ids {
		if i > 0 && ids[i-1] == sid {
			continue
		}
		if s, ok := w.spawns[sid]; ok {
			w.evaluate(p, s, notify)
		}
	}
	w.nearby = ids[:0]
}

func (w *World) addSpawn(s *Spawn) {
	w.spawns[s.ID] = s
	w.index.Insert(s.ID, s.Position)
}

// checkSpawn evaluates a single spawn against every player.
func (w *World) checkSpawn(s *Spawn) {
	for _, pid := range w.sortedPlayerIDs() {
		w.evaluate(w.players[pid], s, true)
	}
}

// evaluate applies the hysteresis band to one pair: a spawn becomes visible
// at or inside DiscoveryRange and hidden at or beyond HideRange. Between the
// two nothing changes.
func (w *World) evaluate(p *Player, s *Spawn, notify bool) {
	d := geo.Distance(p.Position, s.Position)
	visible := s.VisibleTo[p.ID]

	switch {
	case !visible && d <= w.cfg.Proximity.DiscoveryRange:
		s.VisibleTo[p.ID] = true
		p.Visible[s.ID] = true
		if notify {
			w.send(p.ID, Envelope{T: MsgSpawnDiscovered, Data: SpawnDiscoveredMsg{
				Spawn:    s.ToState(),
				Distance: geo.Round(d, 3),
			}})
		}
	case visible && d >= w.cfg.Proximity.HideRange:
		delete(s.VisibleTo, p.ID)
		delete(p.Visible, s.ID)
		if notify {
			w.send(p.ID, Envelope{T: MsgSpawnHidden, Data: SpawnHiddenMsg{
				SpawnID:  s.ID,
				Distance: geo.Round(d, 3),
			}})
		}
	}
}

// forgetPlayer clears a departing player from every visibility set.
func (w *World) forgetPlayer(p *Player) {
	for sid := range p.Visible {
		if s, ok := w.spawns[sid]; ok {
			delete(s.VisibleTo, p.ID)
		}
	}
	p.Visible = make(map[int]bool)
}

// RemoveSpawn deletes a spawn and tells every player who could see it.
// Removing an unknown id is a no-op and returns false.
func (w *World) RemoveSpawn(id int, reason string) bool {
	s, ok := w.spawns[id]
	if !ok {
		return false
	}
	delete(w.spawns, id)
	w.index.Remove(id, s.Position)

	for _, pid := range sortedKeys(s.VisibleTo) {
		if p, ok := w.players[pid]; ok {
			delete(p.Visible, id)
		}
		w.send(pid, Envelope{T: MsgSpawnRemoved, Data: SpawnRemovedMsg{SpawnID: id, Reason: reason}})
	}
	s.VisibleTo = make(map[string]bool)

	switch reason {
	case RemovedCaptured:
		w.stats.TotalCaptures++
	case RemovedExpired:
		w.stats.TotalExpired++
	}
	log.Printf("world: spawn %d removed from zone %d (%s)", id, s.Zone, reason)

	if w.observer != nil {
		w.observer.SpawnRemoved(s, reason)
	}
	return true
}
