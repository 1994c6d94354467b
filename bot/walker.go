package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"roomcapture/client"
	"roomcapture/geo"
)

const (
	screenWidth  = 390
	screenHeight = 844
	wallAvoid    = 0.8 // metres from a wall where the bot turns back
)

// Walker plays one room session: it fakes sensor input for a tracker,
// reports the estimate as moves and captures whatever it reaches.
type Walker struct {
	name    string
	tracker client.Tracker
	view    *client.Projector
	send    func(envelope)
	rng     *rand.Rand
	cfg     client.TrackerConfig

	visible map[int]spawnState
	heading float64
	joined  bool

	stepEvery       time.Duration
	captureCooldown time.Duration
	lastStep        time.Time
	lastCapture     time.Time

	captures int
	points   int
}

// NewWalker creates a walker whose tracker starts calibrating at now.
func NewWalker(name string, send func(envelope), rng *rand.Rand, now time.Time) *Walker {
	cfg := client.DefaultTrackerConfig()
	w := &Walker{
		name:            name,
		tracker:         client.NewTracker(cfg, true, now),
		view:            client.NewProjector(client.DefaultProjectorConfig(), screenWidth, screenHeight, rng),
		send:            send,
		rng:             rng,
		cfg:             cfg,
		visible:         make(map[int]spawnState),
		heading:         rng.Float64() * 360,
		stepEvery:       600 * time.Millisecond,
		captureCooldown: time.Second,
	}
	w.tracker.OnUpdate(w.onSnapshot)
	return w
}

func (w *Walker) onSnapshot(s client.Snapshot) {
	w.view.Follow(s)
	if w.joined && s.Ready() {
		w.send(envelope{T: msgMove, Data: s.Position})
	}
}

// Join sends the join request from the current estimate.
func (w *Walker) Join() {
	w.send(envelope{T: msgJoin, Data: joinMsg{Name: w.name, Position: w.tracker.Snapshot().Position}})
}

// Leave sends an explicit leave.
func (w *Walker) Leave() {
	w.send(envelope{T: msgLeave})
	w.joined = false
}

// HandleMessage updates the visible set from one server message.
func (w *Walker) HandleMessage(env inEnvelope) {
	switch env.T {
	case msgGameState:
		var gs gameStateMsg
		if !decode(env, &gs) {
			return
		}
		w.joined = true
		w.points = gs.Player.Points
		w.visible = make(map[int]spawnState, len(gs.Spawns))
		for _, s := range gs.Spawns {
			w.visible[s.ID] = s
		}
		log.Printf("bot %s: joined as %s with %d spawns in view", w.name, gs.Player.ID, len(gs.Spawns))
	case msgSpawnDiscovered:
		var m spawnDiscoveredMsg
		if decode(env, &m) {
			w.visible[m.Spawn.ID] = m.Spawn
		}
	case msgSpawnHidden, msgSpawnRemoved:
		var m spawnIDMsg
		if decode(env, &m) {
			delete(w.visible, m.SpawnID)
		}
	case msgSpawnCaptured:
		var m spawnCapturedMsg
		if !decode(env, &m) {
			return
		}
		delete(w.visible, m.SpawnID)
		if m.PlayerName == w.name {
			w.captures++
			w.points = m.NewPoints
			log.Printf("bot %s: captured spawn %d for %d points (x%.1f, streak %d)",
				w.name, m.SpawnID, m.PointsEarned, m.Multiplier, m.Streak)
		}
	case msgCaptureFailed:
		var m captureFailedMsg
		if decode(env, &m) {
			log.Printf("bot %s: capture failed: %s (%.2f/%.2f)", w.name, m.Reason, m.Distance, m.Required)
		}
	case msgError:
		var m errorMsg
		if decode(env, &m) {
			log.Printf("bot %s: server error: %s", w.name, m.Msg)
		}
	}
}

func decode(env inEnvelope, v interface{}) bool {
	if err := json.Unmarshal(env.D, v); err != nil {
		log.Printf("bot: bad %s payload: %v", env.T, err)
		return false
	}
	return true
}

// Tick feeds one frame of synthetic sensor data and tries a capture.
func (w *Walker) Tick(now time.Time) {
	snap := w.tracker.Snapshot()
	w.heading = w.steer(snap)
	w.tracker.HandleOrientation(client.OrientationSample{Heading: w.heading, At: now})

	if w.lastStep.IsZero() || now.Sub(w.lastStep) >= w.stepEvery {
		w.lastStep = now
		w.tracker.HandleMotion(client.MotionSample{X: 0, Y: 3, Z: 9.8, At: now})
	}
	w.tracker.Poll(now)

	if w.joined {
		w.tryCapture(now)
	}
}

// steer picks the heading for the next frame: toward the nearest visible
// spawn, back toward the centre near a wall, or a random wander.
func (w *Walker) steer(snap client.Snapshot) float64 {
	if target, ok := w.target(snap.Position); ok {
		return geo.Bearing(snap.Position, target.Position)
	}
	p := snap.Position
	if p.X < wallAvoid || p.Y < wallAvoid || p.X > w.cfg.RoomWidth-wallAvoid || p.Y > w.cfg.RoomHeight-wallAvoid {
		return geo.Bearing(p, geo.Point{X: w.cfg.RoomWidth / 2, Y: w.cfg.RoomHeight / 2})
	}
	return geo.NormalizeHeading(w.heading + w.rng.NormFloat64()*20)
}

// target prefers the nearest spawn on screen, then the nearest visible one.
func (w *Walker) target(pos geo.Point) (spawnState, bool) {
	if len(w.visible) == 0 {
		return spawnState{}, false
	}
	objects := make([]client.WorldObject, 0, len(w.visible))
	for id, s := range w.visible {
		objects = append(objects, client.WorldObject{ID: strconv.Itoa(id), Position: s.Position})
	}
	if onScreen := w.view.VisibleObjects(objects); len(onScreen) > 0 {
		id, _ := strconv.Atoi(onScreen[0].ID)
		return w.visible[id], true
	}

	ids := make([]int, 0, len(w.visible))
	for id := range w.visible {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	best := w.visible[ids[0]]
	for _, id := range ids[1:] {
		if s := w.visible[id]; geo.Distance(pos, s.Position) < geo.Distance(pos, best.Position) {
			best = s
		}
	}
	return best, true
}

func (w *Walker) tryCapture(now time.Time) {
	if !w.lastCapture.IsZero() && now.Sub(w.lastCapture) < w.captureCooldown {
		return
	}
	snap := w.tracker.Snapshot()
	if !snap.Ready() {
		return
	}
	target, ok := w.target(snap.Position)
	if !ok || geo.Distance(snap.Position, target.Position) > target.CaptureRange {
		return
	}
	w.lastCapture = now
	w.send(envelope{T: msgAttemptCapture, Data: captureMsg{
		PlayerPosition: snap.Position,
		CaptureMethod:  "bot",
		SpawnID:        target.ID,
	}})
}

// Visible returns the ids of spawns the server says are in range.
func (w *Walker) Visible() []int {
	ids := make([]int, 0, len(w.visible))
	for id := range w.visible {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
