package main

import (
	"log"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"roomcapture/geo"
)

const inboxSize = 256

// Recorder receives gameplay records for persistence or forwarding. Record
// must not block.
type Recorder interface {
	Record(rec Record)
}

// binarySender is implemented by connections that accept binary frames
type binarySender interface {
	SendBinary(data []byte)
}

// commands posted to the game inbox
type (
	joinCmd struct {
		ID     string
		Msg    JoinMsg
		Client Broadcaster
		Reply  chan<- joinResult
	}
	joinResult struct {
		Player PlayerState
		Err    error
	}
	moveCmd struct {
		PlayerID string
		Pos      geo.Point
	}
	captureCmd struct {
		PlayerID string
		Msg      CaptureMsg
		Client   Broadcaster
	}
	leaveCmd struct {
		PlayerID string
	}
	despawnCmd struct {
		SpawnID int
	}
	replenishCmd struct{}
	queryCmd     struct {
		Fn   func(w *World)
		Done chan struct{}
	}
)

// Game runs the room. All World access happens on the Run goroutine;
// everything else posts commands to Inbox.
type Game struct {
	Inbox chan any

	world     *World
	recorders []Recorder
	now       func() time.Time

	despawn   map[int]*time.Timer
	replenish []*time.Timer
	tick      uint64

	mu       sync.Mutex
	running  bool
	stopped  bool
	quit     chan struct{}
	finished chan struct{}
}

// NewGame wraps a world and registers the game as its spawn observer
func NewGame(world *World, recorders ...Recorder) *Game {
	g := &Game{
		Inbox:     make(chan any, inboxSize),
		world:     world,
		recorders: recorders,
		now:       time.Now,
		despawn:   make(map[int]*time.Timer),
		quit:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
	world.SetObserver(g)
	return g
}

// Run seeds the room and processes commands and timers until Stop.
func (g *Game) Run() {
	g.mu.Lock()
	if g.running || g.stopped {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.mu.Unlock()
	defer close(g.finished)

	cfg := g.world.Config()
	spawnTicker := time.NewTicker(cfg.Spawn.Interval)
	proximityTicker := time.NewTicker(cfg.Proximity.Interval)
	statsTicker := time.NewTicker(cfg.StatsInterval)
	scoreTicker := time.NewTicker(cfg.ScoreboardInterval)
	defer func() {
		spawnTicker.Stop()
		proximityTicker.Stop()
		statsTicker.Stop()
		scoreTicker.Stop()
		g.stopTimers()
	}()

	g.world.FillInitial(g.now())

	for {
		select {
		case <-g.quit:
			return
		case cmd := <-g.Inbox:
			g.handleCommand(cmd)
		case <-spawnTicker.C:
			g.world.SpawnTick(g.now())
		case <-proximityTicker.C:
			g.world.CheckAllProximity()
		case <-statsTicker.C:
			g.logStats()
		case <-scoreTicker.C:
			g.broadcastScoreboard()
		}
	}
}

// Stop terminates the loop and cancels every pending timer. It waits for
// Run to return if it was started.
func (g *Game) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	running := g.running
	close(g.quit)
	g.mu.Unlock()
	if running {
		<-g.finished
	}
}

func (g *Game) stopTimers() {
	for id, t := range g.despawn {
		t.Stop()
		delete(g.despawn, id)
	}
	for _, t := range g.replenish {
		t.Stop()
	}
	g.replenish = nil
}

// post delivers a command unless the game has stopped
func (g *Game) post(cmd any) bool {
	select {
	case g.Inbox <- cmd:
		return true
	case <-g.quit:
		return false
	}
}

// Join registers a player and blocks until the game has processed it.
func (g *Game) Join(id string, msg JoinMsg, client Broadcaster) (PlayerState, error) {
	reply := make(chan joinResult, 1)
	if !g.post(joinCmd{ID: id, Msg: msg, Client: client, Reply: reply}) {
		return PlayerState{}, ErrGameStopped
	}
	select {
	case res := <-reply:
		return res.Player, res.Err
	case <-g.quit:
		return PlayerState{}, ErrGameStopped
	}
}

// Move queues a position update
func (g *Game) Move(playerID string, pos geo.Point) {
	g.post(moveCmd{PlayerID: playerID, Pos: pos})
}

// Capture queues a capture attempt; client receives the failure reply when
// the player is not in the room.
func (g *Game) Capture(playerID string, msg CaptureMsg, client Broadcaster) {
	g.post(captureCmd{PlayerID: playerID, Msg: msg, Client: client})
}

// Leave queues a player's departure
func (g *Game) Leave(playerID string) {
	g.post(leaveCmd{PlayerID: playerID})
}

// Query runs fn on the game goroutine and waits for it. It returns false
// if the game stopped first.
func (g *Game) Query(fn func(w *World)) bool {
	done := make(chan struct{})
	if !g.post(queryCmd{Fn: fn, Done: done}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-g.quit:
		return false
	}
}

func (g *Game) handleCommand(cmd any) {
	now := g.now()
	switch c := cmd.(type) {
	case joinCmd:
		p, err := g.world.AddPlayer(c.ID, c.Msg, c.Client, now)
		if err != nil {
			c.Reply <- joinResult{Err: err}
			return
		}
		g.record(Record{
			Kind: RecordRegistration, PlayerID: p.ID, PlayerName: p.Name,
			LastName: p.LastName, Email: p.Email, At: now,
		})
		c.Reply <- joinResult{Player: p.ToState()}
	case moveCmd:
		if _, err := g.world.MovePlayer(c.PlayerID, c.Pos); err != nil && err != ErrNotJoined {
			log.Printf("game: %v", err)
		}
	case captureCmd:
		out := g.world.AttemptCapture(c.PlayerID, c.Msg, now)
		if out.Reason == ReasonNotJoined && c.Client != nil {
			c.Client.SendJSON(Envelope{T: MsgCaptureFailed, Data: CaptureFailedMsg{Reason: out.Reason}})
			return
		}
		if out.OK {
			g.record(Record{
				Kind: RecordCapture, PlayerID: out.Player.ID, PlayerName: out.Player.Name,
				LastName: out.Player.LastName, Email: out.Player.Email, SpawnID: out.Spawn.ID, ObjectID: out.Spawn.ObjectID, Rarity: out.Spawn.Rarity,
				Points: out.Earned, Total: out.Player.Points, Streak: out.Player.Streak,
				Multiplier: out.Player.Multiplier, Distance: out.Distance,
				Method: c.Msg.CaptureMethod, At: now,
			})
			g.scheduleReplenish()
		}
	case leaveCmd:
		if p, ok := g.world.RemovePlayer(c.PlayerID); ok {
			g.record(Record{
				Kind: RecordDisconnection, PlayerID: p.ID, PlayerName: p.Name,
				LastName: p.LastName, Email: p.Email, Points: p.Points, Total: p.Points, Streak: p.BestStreak, At: now,
			})
		}
	case despawnCmd:
		delete(g.despawn, c.SpawnID)
		g.world.RemoveSpawn(c.SpawnID, RemovedExpired)
	case replenishCmd:
		if len(g.replenish) > 0 {
			g.replenish = g.replenish[1:]
		}
		g.world.GenerateSpawn(now)
	case queryCmd:
		c.Fn(g.world)
		close(c.Done)
	}
}

// SpawnCreated arms the spawn's despawn timer
func (g *Game) SpawnCreated(s *Spawn) {
	id := s.ID
	g.despawn[id] = time.AfterFunc(s.DespawnAfter, func() {
		g.post(despawnCmd{SpawnID: id})
	})
	g.record(Record{
		Kind: RecordSpawn, SpawnID: s.ID, ObjectID: s.ObjectID, Rarity: s.Rarity,
		Zone: s.Zone, Points: s.Points, At: s.CreatedAt,
	})
}

// SpawnRemoved cancels the despawn timer of a spawn that left early
func (g *Game) SpawnRemoved(s *Spawn, reason string) {
	if t, ok := g.despawn[s.ID]; ok {
		t.Stop()
		delete(g.despawn, s.ID)
	}
	if reason == RemovedExpired {
		g.record(Record{
			Kind: RecordExpired, SpawnID: s.ID, ObjectID: s.ObjectID, Rarity: s.Rarity,
			Zone: s.Zone, At: g.now(),
		})
	}
}

func (g *Game) scheduleReplenish() {
	delay := g.world.Config().Spawn.ReplenishDelay
	g.replenish = append(g.replenish, time.AfterFunc(delay, func() {
		g.post(replenishCmd{})
	}))
}

func (g *Game) record(rec Record) {
	for _, r := range g.recorders {
		r.Record(rec)
	}
}

func (g *Game) logStats() {
	st := g.world.Stats()
	log.Printf("game: %d players, %d spawns (%d created, %d captured, %d expired) | %s",
		g.world.PlayerCount(), g.world.SpawnCount(), st.TotalSpawns, st.TotalCaptures, st.TotalExpired,
		g.world.ZoneReport(g.now()))
}

// broadcastScoreboard sends the msgpack scoreboard to every binary-capable client
func (g *Game) broadcastScoreboard() {
	if g.world.PlayerCount() == 0 {
		return
	}
	g.tick++
	data, err := msgpack.Marshal(g.world.Scoreboard(g.tick))
	if err != nil {
		log.Printf("game: scoreboard marshal: %v", err)
		return
	}
	for _, c := range g.world.Clients() {
		if bs, ok := c.(binarySender); ok {
			bs.SendBinary(data)
		}
	}
}
