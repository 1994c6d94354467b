package main

import (
	"encoding/json"

	"roomcapture/geo"
)

// Client -> Server message types
const (
	MsgJoin           = "join"
	MsgMove           = "move"
	MsgAttemptCapture = "attempt-capture"
	MsgLeave          = "leave"
)

// Server -> Client message types
const (
	MsgGameState       = "game-state"
	MsgPositionUpdated = "position-updated"
	MsgPlayerJoined    = "player-joined"
	MsgPlayerMoved     = "player-moved"
	MsgPlayerLeft      = "player-left"
	MsgSpawnDiscovered = "spawn-discovered"
	MsgSpawnHidden     = "spawn-hidden"
	MsgSpawnRemoved    = "spawn-removed"
	MsgSpawnCaptured   = "spawn-captured"
	MsgCaptureFailed   = "capture-failed"
	MsgError           = "error"
)

// capture-failed reasons
const (
	ReasonNotJoined      = "not-joined"
	ReasonNoVisibleSpawn = "no-visible-spawn"
	ReasonTooFar         = "too-far"
)

// spawn-removed reasons
const (
	RemovedCaptured = "captured"
	RemovedExpired  = "expired"
	RemovedShutdown = "shutdown"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages, json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg registers the player in the room
type JoinMsg struct {
	Name     string     `json:"name"`
	LastName string     `json:"lastName,omitempty"`
	Email    string     `json:"email,omitempty"`
	Position *geo.Point `json:"position,omitempty"`
}

// MoveMsg carries the tracker's latest position estimate
type MoveMsg struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// CaptureMsg requests a capture. SpawnID is advisory only.
type CaptureMsg struct {
	PlayerPosition *geo.Point `json:"playerPosition,omitempty"`
	CaptureMethod  string     `json:"captureMethod,omitempty"`
	SpawnID        *int       `json:"spawnId,omitempty"`
}

// SpawnState is a spawn as seen by clients
type SpawnState struct {
	ID           int       `json:"id"`
	ObjectID     string    `json:"objectId"`
	Name         string    `json:"name"`
	Image        string    `json:"image"`
	Rarity       string    `json:"rarity"`
	Color        string    `json:"color"`
	Position     geo.Point `json:"position"`
	Zone         int       `json:"zone"`
	Points       int       `json:"points"`
	CaptureRange float64   `json:"captureRange"`
	DespawnTime  int64     `json:"despawnTime"` // ms
	CreatedAt    int64     `json:"createdAt"`   // unix ms
}

// PlayerState is a player's own scoring state
type PlayerState struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Position      geo.Point `json:"position"`
	Points        int       `json:"points"`
	Captures      int       `json:"captures"`
	Streak        int       `json:"streak"`
	BestStreak    int       `json:"bestStreak"`
	Multiplier    float64   `json:"multiplier"`
	VisibleSpawns []int     `json:"visibleSpawns"`
	JoinedAt      int64     `json:"joinedAt"`
}

// RoomInfo is the room geometry sent to clients
type RoomInfo struct {
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	Cols            int     `json:"cols"`
	Rows            int     `json:"rows"`
	SpawnsPerZone   int     `json:"spawnsPerZone"`
	MaxSpawns       int     `json:"maxSimultaneousSpawns"`
	DiscoveryRange  float64 `json:"discoveryRange"`
	HideRange       float64 `json:"hideRange"`
	StreakWindowMs  int64   `json:"streakWindow"`
	SpawnIntervalMs int64   `json:"spawnInterval"`
}

// SpawnType describes a rarity tier to clients
type SpawnType struct {
	Points       int             `json:"points"`
	Probability  float64         `json:"probability"`
	DespawnTime  int64           `json:"despawnTime"`
	CaptureRange float64         `json:"captureRange"`
	Color        string          `json:"color"`
	Objects      []CatalogObject `json:"objects"`
}

// GameStateMsg is the initial sync after join
type GameStateMsg struct {
	Player       PlayerState          `json:"player"`
	Spawns       []SpawnState         `json:"spawns"`
	RoomConfig   RoomInfo             `json:"roomConfig"`
	SpawnTypes   map[string]SpawnType `json:"spawnTypes"`
	TotalPlayers int                  `json:"totalPlayers"`
}

// SpawnDiscoveredMsg tells a player a spawn entered their visibility
type SpawnDiscoveredMsg struct {
	Spawn    SpawnState `json:"spawn"`
	Distance float64    `json:"distance"`
}

// SpawnHiddenMsg tells a player a spawn left their visibility
type SpawnHiddenMsg struct {
	SpawnID  int     `json:"spawnId"`
	Distance float64 `json:"distance"`
}

// SpawnRemovedMsg tells a player a visible spawn is gone
type SpawnRemovedMsg struct {
	SpawnID int    `json:"spawnId"`
	Reason  string `json:"reason,omitempty"`
}

// SpawnCapturedMsg is broadcast to everyone on a successful capture
type SpawnCapturedMsg struct {
	SpawnID      int       `json:"spawnId"`
	PlayerID     string    `json:"playerId"`
	PlayerName   string    `json:"playerName"`
	NewPoints    int       `json:"newPoints"`
	PointsEarned int       `json:"pointsEarned"`
	Multiplier   float64   `json:"multiplier"`
	Streak       int       `json:"streak"`
	ObjectID     string    `json:"objectId"`
	ObjectName   string    `json:"objectName"`
	ObjectRarity string    `json:"objectRarity"`
	Position     geo.Point `json:"position"`
}

// CaptureFailedMsg reports a rejected capture to the requester
type CaptureFailedMsg struct {
	Reason   string  `json:"reason"`
	Distance float64 `json:"distance,omitempty"`
	Required float64 `json:"required,omitempty"`
}

// PlayerEventMsg announces joins and departures
type PlayerEventMsg struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// PlayerMovedMsg tells other players where someone went
type PlayerMovedMsg struct {
	PlayerID string    `json:"playerId"`
	Position geo.Point `json:"position"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// ScoreEntry is one scoreboard row
type ScoreEntry struct {
	ID       string `msgpack:"id" json:"id"`
	Name     string `msgpack:"n" json:"name"`
	Points   int    `msgpack:"pts" json:"points"`
	Captures int    `msgpack:"cap" json:"captures"`
	Streak   int    `msgpack:"stk" json:"streak"`
}

// Scoreboard is sent as a msgpack binary frame on a timer
type Scoreboard struct {
	Tick    uint64       `msgpack:"tick"`
	Players []ScoreEntry `msgpack:"players"`
	Spawns  int          `msgpack:"spawns"`
	Zones   []int        `msgpack:"zones"`
}
