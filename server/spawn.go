package main

import (
	"time"

	"roomcapture/geo"
)

// Spawn is a collectible placed in the room. Only the proximity engine
// changes VisibleTo.
type Spawn struct {
	ID           int
	ObjectID     string
	Name         string
	Image        string
	Rarity       string
	Color        string
	Position     geo.Point
	Zone         int
	Points       int
	CaptureRange float64
	DespawnAfter time.Duration
	CreatedAt    time.Time
	VisibleTo    map[string]bool
}

// NewSpawn creates a spawn of the given tier and catalogue object.
func NewSpawn(id int, def RarityDef, obj CatalogObject, pos geo.Point, zone int, now time.Time) *Spawn {
	return &Spawn{
		ID:           id,
		ObjectID:     obj.ID,
		Name:         obj.Name,
		Image:        obj.Image,
		Rarity:       def.Name,
		Color:        def.Color,
		Position:     pos,
		Zone:         zone,
		Points:       def.Points,
		CaptureRange: def.CaptureRange,
		DespawnAfter: def.Despawn,
		CreatedAt:    now,
		VisibleTo:    make(map[string]bool),
	}
}

// ExpiresAt returns when the despawn timer fires
func (s *Spawn) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.DespawnAfter)
}

// ToState converts to protocol state
func (s *Spawn) ToState() SpawnState {
	return SpawnState{
		ID:           s.ID,
		ObjectID:     s.ObjectID,
		Name:         s.Name,
		Image:        s.Image,
		Rarity:       s.Rarity,
		Color:        s.Color,
		Position:     geo.Point{X: geo.Round(s.Position.X, 2), Y: geo.Round(s.Position.Y, 2)},
		Zone:         s.Zone,
		Points:       s.Points,
		CaptureRange: s.CaptureRange,
		DespawnTime:  s.DespawnAfter.Milliseconds(),
		CreatedAt:    s.CreatedAt.UnixMilli(),
	}
}
