package main

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"roomcapture/geo"
)

var (
	ErrRoomFull    = errors.New("room is full")
	ErrNotJoined   = errors.New("player has not joined")
	ErrInvalidJoin = errors.New("invalid join data")
	ErrDuplicateID = errors.New("player id already joined")
	ErrGameStopped = errors.New("game stopped")
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
}

// SpawnObserver is told about every spawn entering and leaving the world.
type SpawnObserver interface {
	SpawnCreated(s *Spawn)
	SpawnRemoved(s *Spawn, reason string)
}

// WorldStats are running totals since start-up
type WorldStats struct {
	TotalSpawns   int `json:"totalSpawns"`
	TotalCaptures int `json:"totalCaptures"`
	TotalExpired  int `json:"totalExpired"`
	FailedPlace   int `json:"failedPlacements"`
}

// World is the room's game state. It is not safe for concurrent use: a
// single goroutine (Game.Run) owns it.
type World struct {
	cfg      Config
	grid     ZoneGrid
	rarities *RarityTable
	rng      *rand.Rand

	spawns        map[int]*Spawn
	index         *SpawnIndex
	nearby        []int
	players       map[string]*Player
	clients       map[string]Broadcaster
	nextSpawnID   int
	zoneLastSpawn []time.Time
	stats         WorldStats

	observer SpawnObserver
}

// NewWorld validates cfg and creates an empty room. A nil rng is seeded
// from the clock.
func NewWorld(cfg Config, rng *rand.Rand) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table, err := NewRarityTable(cfg.Rarities)
	if err != nil {
		return nil, fmt.Errorf("rarities: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	grid := NewZoneGrid(cfg.Room)
	return &World{
		cfg:           cfg,
		grid:          grid,
		rarities:      table,
		rng:           rng,
		spawns:        make(map[int]*Spawn),
		index:         NewSpawnIndex(cfg.Room.Width, cfg.Room.Height, cfg.Proximity.DiscoveryRange),
		players:       make(map[string]*Player),
		clients:       make(map[string]Broadcaster),
		nextSpawnID:   1,
		zoneLastSpawn: make([]time.Time, grid.Len()),
	}, nil
}

// SetObserver registers the spawn lifecycle observer
func (w *World) SetObserver(o SpawnObserver) {
	w.observer = o
}

func (w *World) Config() Config {
	return w.cfg
}

// AddPlayer registers a player, computes their initial visibility and
// sends them the game state.
func (w *World) AddPlayer(id string, msg JoinMsg, client Broadcaster, now time.Time) (*Player, error) {
	if _, ok := w.players[id]; ok {
		return nil, ErrDuplicateID
	}
	if len(w.players) >= w.cfg.MaxPlayers {
		return nil, ErrRoomFull
	}
	pos := w.centre()
	if msg.Position != nil {
		if !msg.Position.Valid() {
			return nil, ErrInvalidJoin
		}
		pos = w.clampPlayer(*msg.Position)
	}

	p := NewPlayer(id, SanitizeName(msg.Name), pos, now)
	p.LastName = msg.LastName
	p.Email = msg.Email
	w.players[id] = p
	if client != nil {
		w.clients[id] = client
	}

	w.checkPlayer(p, false)
	w.send(id, Envelope{T: MsgGameState, Data: w.gameStateFor(p)})
	w.broadcastExcept(id, Envelope{T: MsgPlayerJoined, Data: PlayerEventMsg{PlayerID: id, PlayerName: p.Name}})
	log.Printf("world: %s joined at (%.2f, %.2f), %d visible", p.Name, pos.X, pos.Y, len(p.Visible))
	return p, nil
}

// MovePlayer clamps pos to the room, stores it and re-evaluates the
// player's visibility before returning.
func (w *World) MovePlayer(id string, pos geo.Point) (geo.Point, error) {
	p, ok := w.players[id]
	if !ok {
		return geo.Point{}, ErrNotJoined
	}
	if !pos.Valid() {
		return p.Position, fmt.Errorf("move %s: non-finite position", id)
	}
	p.Position = w.clampPlayer(pos)
	w.send(id, Envelope{T: MsgPositionUpdated, Data: p.Position})
	w.broadcastExcept(id, Envelope{T: MsgPlayerMoved, Data: PlayerMovedMsg{PlayerID: id, Position: p.Position}})
	w.checkPlayer(p, true)
	return p.Position, nil
}

// RemovePlayer drops the player from the room and from every spawn's
// visibility set.
func (w *World) RemovePlayer(id string) (*Player, bool) {
	p, ok := w.players[id]
	if !ok {
		return nil, false
	}
	w.forgetPlayer(p)
	delete(w.players, id)
	delete(w.clients, id)
	w.broadcast(Envelope{T: MsgPlayerLeft, Data: PlayerEventMsg{PlayerID: id, PlayerName: p.Name}})
	log.Printf("world: %s left after %d captures, %d points", p.Name, p.Captures, p.Points)
	return p, true
}

// Player returns a joined player
func (w *World) Player(id string) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// Spawn returns an active spawn
func (w *World) Spawn(id int) (*Spawn, bool) {
	s, ok := w.spawns[id]
	return s, ok
}

func (w *World) PlayerCount() int {
	return len(w.players)
}

func (w *World) SpawnCount() int {
	return len(w.spawns)
}

func (w *World) Stats() WorldStats {
	return w.stats
}

// ZoneCounts returns the current occupancy per zone
func (w *World) ZoneCounts() []int {
	return w.grid.Occupancy(w.spawns)
}

// RoomInfo describes the room for clients
func (w *World) RoomInfo() RoomInfo {
	return RoomInfo{
		Width:           w.cfg.Room.Width,
		Height:          w.cfg.Room.Height,
		Cols:            w.cfg.Room.Cols,
		Rows:            w.cfg.Room.Rows,
		SpawnsPerZone:   w.cfg.Spawn.PerZone,
		MaxSpawns:       w.cfg.Spawn.MaxSimultaneous,
		DiscoveryRange:  w.cfg.Proximity.DiscoveryRange,
		HideRange:       w.cfg.Proximity.HideRange,
		StreakWindowMs:  w.cfg.Capture.StreakWindow.Milliseconds(),
		SpawnIntervalMs: w.cfg.Spawn.Interval.Milliseconds(),
	}
}

// SpawnTypes describes every rarity tier for clients
func (w *World) SpawnTypes() map[string]SpawnType {
	out := make(map[string]SpawnType, len(w.rarities.Defs()))
	for _, d := range w.rarities.Defs() {
		out[d.Name] = SpawnType{
			Points:       d.Points,
			Probability:  geo.Round(w.rarities.Probability(d.Name), 4),
			DespawnTime:  d.Despawn.Milliseconds(),
			CaptureRange: d.CaptureRange,
			Color:        d.Color,
			Objects:      d.Objects,
		}
	}
	return out
}

func (w *World) gameStateFor(p *Player) GameStateMsg {
	spawns := make([]SpawnState, 0, len(p.Visible))
	for _, sid := range p.VisibleIDs() {
		if s, ok := w.spawns[sid]; ok {
			spawns = append(spawns, s.ToState())
		}
	}
	return GameStateMsg{
		Player:       p.ToState(),
		Spawns:       spawns,
		RoomConfig:   w.RoomInfo(),
		SpawnTypes:   w.SpawnTypes(),
		TotalPlayers: len(w.players),
	}
}

// Scoreboard ranks players by points, then captures, then name.
func (w *World) Scoreboard(tick uint64) Scoreboard {
	sb := Scoreboard{
		Tick:    tick,
		Players: make([]ScoreEntry, 0, len(w.players)),
		Spawns:  len(w.spawns),
		Zones:   w.ZoneCounts(),
	}
	for _, p := range w.players {
		sb.Players = append(sb.Players, ScoreEntry{
			ID: p.ID, Name: p.Name, Points: p.Points, Captures: p.Captures, Streak: p.Streak,
		})
	}
	sort.Slice(sb.Players, func(i, j int) bool {
		a, b := sb.Players[i], sb.Players[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Captures != b.Captures {
			return a.Captures > b.Captures
		}
		return a.Name < b.Name
	})
	return sb
}

// Clients returns the connected broadcasters
func (w *World) Clients() map[string]Broadcaster {
	return w.clients
}

func (w *World) centre() geo.Point {
	return geo.Point{X: w.cfg.Room.Width / 2, Y: w.cfg.Room.Height / 2}
}

func (w *World) clampPlayer(p geo.Point) geo.Point {
	return geo.ClampPosition(p, w.cfg.Room.Width, w.cfg.Room.Height, w.cfg.Room.PlayerMargin)
}

func (w *World) sortedSpawnIDs() []int {
	ids := make([]int, 0, len(w.spawns))
	for id := range w.spawns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (w *World) sortedPlayerIDs() []string {
	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) send(playerID string, msg Envelope) {
	if c, ok := w.clients[playerID]; ok {
		c.SendJSON(msg)
	}
}

// broadcast sends a message to every client in the room
func (w *World) broadcast(msg Envelope) {
	for _, c := range w.clients {
		c.SendJSON(msg)
	}
}

func (w *World) broadcastExcept(skip string, msg Envelope) {
	for id, c := range w.clients {
		if id != skip {
			c.SendJSON(msg)
		}
	}
}
