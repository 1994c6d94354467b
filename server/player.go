package main

import (
	"math"
	"sort"
	"time"

	"roomcapture/geo"
)

// Player is a connected participant. Position only changes through the
// player's own move messages.
type Player struct {
	ID          string
	Name        string
	LastName    string
	Email       string
	Position    geo.Point
	Points      int
	Captures    int
	Streak      int
	BestStreak  int
	Multiplier  float64
	LastCapture time.Time
	Visible     map[int]bool
	JoinedAt    time.Time
}

// NewPlayer creates a player with a neutral streak
func NewPlayer(id, name string, pos geo.Point, now time.Time) *Player {
	return &Player{
		ID:         id,
		Name:       name,
		Position:   pos,
		Multiplier: 1.0,
		Visible:    make(map[int]bool),
		JoinedAt:   now,
	}
}

// RecordCapture applies the streak rule for a capture at now and returns the
// points earned for a spawn worth base points. A streak of n captures
// multiplies by 1 + step*(n-1), capped at MaxMultiplier.
func (p *Player) RecordCapture(base int, now time.Time, rules CaptureSettings) int {
	if !p.LastCapture.IsZero() && now.Sub(p.LastCapture) < rules.StreakWindow {
		p.Streak++
		p.Multiplier = math.Min(rules.MaxMultiplier, 1.0+rules.StreakStep*float64(p.Streak-1))
	} else {
		p.Streak = 1
		p.Multiplier = 1.0
	}
	earned := int(math.Round(float64(base) * p.Multiplier))
	p.Points += earned
	p.Captures++
	p.LastCapture = now
	if p.Streak > p.BestStreak {
		p.BestStreak = p.Streak
	}
	return earned
}

// VisibleIDs returns the visible spawn ids in ascending order
func (p *Player) VisibleIDs() []int {
	ids := make([]int, 0, len(p.Visible))
	for id := range p.Visible {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ToState converts to protocol state
func (p *Player) ToState() PlayerState {
	return PlayerState{
		ID:            p.ID,
		Name:          p.Name,
		Position:      p.Position,
		Points:        p.Points,
		Captures:      p.Captures,
		Streak:        p.Streak,
		BestStreak:    p.BestStreak,
		Multiplier:    geo.Round(p.Multiplier, 2),
		VisibleSpawns: p.VisibleIDs(),
		JoinedAt:      p.JoinedAt.UnixMilli(),
	}
}
