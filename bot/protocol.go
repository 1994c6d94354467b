package main

import (
	"encoding/json"

	"roomcapture/geo"
)

// Message types shared with the room server
const (
	msgJoin           = "join"
	msgMove           = "move"
	msgAttemptCapture = "attempt-capture"
	msgLeave          = "leave"

	msgGameState       = "game-state"
	msgSpawnDiscovered = "spawn-discovered"
	msgSpawnHidden     = "spawn-hidden"
	msgSpawnRemoved    = "spawn-removed"
	msgSpawnCaptured   = "spawn-captured"
	msgCaptureFailed   = "capture-failed"
	msgError           = "error"
)

type envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

type inEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

type joinMsg struct {
	Name     string    `json:"name"`
	Position geo.Point `json:"position"`
}

type captureMsg struct {
	PlayerPosition geo.Point `json:"playerPosition"`
	CaptureMethod  string    `json:"captureMethod"`
	SpawnID        int       `json:"spawnId"`
}

type spawnState struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Rarity       string    `json:"rarity"`
	Position     geo.Point `json:"position"`
	Points       int       `json:"points"`
	CaptureRange float64   `json:"captureRange"`
}

type gameStateMsg struct {
	Player struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Points int    `json:"points"`
	} `json:"player"`
	Spawns []spawnState `json:"spawns"`
}

type spawnDiscoveredMsg struct {
	Spawn    spawnState `json:"spawn"`
	Distance float64    `json:"distance"`
}

type spawnIDMsg struct {
	SpawnID int    `json:"spawnId"`
	Reason  string `json:"reason,omitempty"`
}

type spawnCapturedMsg struct {
	SpawnID      int     `json:"spawnId"`
	PlayerID     string  `json:"playerId"`
	PlayerName   string  `json:"playerName"`
	NewPoints    int     `json:"newPoints"`
	PointsEarned int     `json:"pointsEarned"`
	Multiplier   float64 `json:"multiplier"`
	Streak       int     `json:"streak"`
}

type captureFailedMsg struct {
	Reason   string  `json:"reason"`
	Distance float64 `json:"distance,omitempty"`
	Required float64 `json:"required,omitempty"`
}

type errorMsg struct {
	Msg string `json:"msg"`
}

type scoreEntry struct {
	ID       string `msgpack:"id"`
	Name     string `msgpack:"n"`
	Points   int    `msgpack:"pts"`
	Captures int    `msgpack:"cap"`
	Streak   int    `msgpack:"stk"`
}

type scoreboard struct {
	Tick    uint64       `msgpack:"tick"`
	Players []scoreEntry `msgpack:"players"`
	Spawns  int          `msgpack:"spawns"`
	Zones   []int        `msgpack:"zones"`
}
