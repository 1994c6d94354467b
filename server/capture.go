package main

import (
	"log"
	"time"

	"roomcapture/geo"
)

// CaptureOutcome is the result of one capture attempt
type CaptureOutcome struct {
	OK       bool
	Reason   string
	Distance float64
	Required float64
	Spawn    *Spawn
	Player   *Player
	Earned   int
}

// AttemptCapture resolves a capture against the closest spawn the player
// can see, measured from the server's copy of the player's position. A
// client-named spawn id is only logged. Failures leave state untouched.
func (w *World) AttemptCapture(playerID string, msg CaptureMsg, now time.Time) CaptureOutcome {
	p, ok := w.players[playerID]
	if !ok {
		return CaptureOutcome{Reason: ReasonNotJoined}
	}

	target, d := w.closestVisible(p)
	if target == nil {
		out := CaptureOutcome{Reason: ReasonNoVisibleSpawn, Player: p}
		w.send(p.ID, Envelope{T: MsgCaptureFailed, Data: CaptureFailedMsg{Reason: out.Reason}})
		return out
	}
	if msg.SpawnID != nil && *msg.SpawnID != target.ID {
		log.Printf("capture: %s aimed at spawn %d, resolving closest spawn %d", p.Name, *msg.SpawnID, target.ID)
	}

	dist := geo.Round(d, 3)
	if d > target.CaptureRange {
		out := CaptureOutcome{
			Reason:   ReasonTooFar,
			Distance: dist,
			Required: target.CaptureRange,
			Spawn:    target,
			Player:   p,
		}
		w.send(p.ID, Envelope{T: MsgCaptureFailed, Data: CaptureFailedMsg{
			Reason:   out.Reason,
			Distance: out.Distance,
			Required: out.Required,
		}})
		log.Printf("capture: %s too far from spawn %d (%.2fm > %.2fm)", p.Name, target.ID, d, target.CaptureRange)
		return out
	}

	earned := p.RecordCapture(target.Points, now, w.cfg.Capture)
	w.RemoveSpawn(target.ID, RemovedCaptured)
	w.broadcast(Envelope{T: MsgSpawnCaptured, Data: SpawnCapturedMsg{
		SpawnID:      target.ID,
		PlayerID:     p.ID,
		PlayerName:   p.Name,
		NewPoints:    p.Points,
		PointsEarned: earned,
		Multiplier:   geo.Round(p.Multiplier, 2),
		Streak:       p.Streak,
		ObjectID:     target.ObjectID,
		ObjectName:   target.Name,
		ObjectRarity: target.Rarity,
		Position:     target.Position,
	}})
	log.Printf("capture: %s captured spawn %d (%s) in zone %d, +%d (x%.1f, streak %d)",
		p.Name, target.ID, target.Rarity, target.Zone, earned, p.Multiplier, p.Streak)

	return CaptureOutcome{
		OK:       true,
		Distance: dist,
		Required: target.CaptureRange,
		Spawn:    target,
		Player:   p,
		Earned:   earned,
	}
}

// closestVisible returns the nearest spawn in the player's visible set,
// ties to the lowest id.
func (w *World) closestVisible(p *Player) (*Spawn, float64) {
	var best *Spawn
	bestD := 0.0
	for _, sid := range p.VisibleIDs() {
		s, ok := w.spawns[sid]
		if !ok {
			continue
		}
		d := geo.Distance(p.Position, s.Position)
		if best == nil || d < bestD {
			best, bestD = s, d
		}
	}
	return best, bestD
}
