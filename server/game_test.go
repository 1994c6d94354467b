package main

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"roomcapture/geo"
)

// mockRecorder captures records for testing
type mockRecorder struct {
	mu      sync.Mutex
	records []Record
}

func (m *mockRecorder) Record(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

func (m *mockRecorder) kind(kind string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// quietConfig disables the periodic spawner so tests control the room
func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Spawn.Interval = time.Hour
	cfg.Spawn.MinDistance = 0
	cfg.Proximity.Interval = time.Hour
	cfg.StatsInterval = time.Hour
	cfg.ScoreboardInterval = time.Hour
	return cfg
}

func startTestGame(t *testing.T, cfg Config, recorders ...Recorder) *Game {
	t.Helper()
	w, err := NewWorld(cfg, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	g := NewGame(w, recorders...)
	go g.Run()
	t.Cleanup(g.Stop)
	return g
}

func clearSpawns(g *Game) {
	g.Query(func(w *World) {
		for _, id := range w.sortedSpawnIDs() {
			w.RemoveSpawn(id, RemovedShutdown)
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestGameFillsRoomOnStart(t *testing.T) {
	g := startTestGame(t, quietConfig())

	var spawns, timers int
	g.Query(func(w *World) {
		spawns = w.SpawnCount()
		timers = len(g.despawn)
	})
	if spawns != 4 {
		t.Errorf("expected one spawn per zone, got %d", spawns)
	}
	if timers != spawns {
		t.Errorf("every spawn needs a despawn timer: %d timers for %d spawns", timers, spawns)
	}
}

func TestGameJoinCaptureLeave(t *testing.T) {
	rec := &mockRecorder{}
	g := startTestGame(t, quietConfig(), rec)
	clearSpawns(g)

	mock := &mockBroadcaster{}
	pos := geo.Point{X: 1, Y: 1}
	st, err := g.Join("p1", JoinMsg{Name: "Ana", LastName: "Diaz", Email: "ana@example.com", Position: &pos}, mock)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if st.Name != "Ana" || st.Position != pos {
		t.Errorf("unexpected player state %+v", st)
	}
	if _, err := g.Join("p1", JoinMsg{}, mock); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	var spawnID int
	g.Query(func(w *World) {
		spawnID = placeSpawn(t, w, RarityRare, geo.Point{X: 1.5, Y: 1}).ID
	})
	g.Capture("p1", CaptureMsg{CaptureMethod: "tap"}, mock)

	var points int
	g.Query(func(w *World) {
		p, _ := w.Player("p1")
		points = p.Points
	})
	if points != 25 {
		t.Errorf("expected 25 points for a rare, got %d", points)
	}

	regs := rec.kind(RecordRegistration)
	if len(regs) != 1 || regs[0].Email != "ana@example.com" || regs[0].LastName != "Diaz" {
		t.Errorf("unexpected registration records %+v", regs)
	}
	caps := rec.kind(RecordCapture)
	if len(caps) != 1 {
		t.Fatalf("expected 1 capture record, got %d", len(caps))
	}
	if caps[0].SpawnID != spawnID || caps[0].Rarity != RarityRare || caps[0].Points != 25 || caps[0].Method != "tap" {
		t.Errorf("unexpected capture record %+v", caps[0])
	}

	g.Move("p1", geo.Point{X: 3, Y: 3})
	g.Leave("p1")
	var players int
	g.Query(func(w *World) { players = w.PlayerCount() })
	if players != 0 {
		t.Errorf("expected empty room, got %d", players)
	}
	discs := rec.kind(RecordDisconnection)
	if len(discs) != 1 || discs[0].Total != 25 {
		t.Errorf("unexpected disconnection records %+v", discs)
	}
	if mock.count(MsgPositionUpdated) != 1 {
		t.Errorf("expected one position-updated, got %d", mock.count(MsgPositionUpdated))
	}
}

func TestGameCaptureBeforeJoin(t *testing.T) {
	g := startTestGame(t, quietConfig())

	mock := &mockBroadcaster{}
	g.Capture("", CaptureMsg{}, mock)
	g.Query(func(*World) {})

	failed := mock.envelopes(MsgCaptureFailed)
	if len(failed) != 1 || failed[0].Data.(CaptureFailedMsg).Reason != ReasonNotJoined {
		t.Errorf("expected not-joined failure, got %+v", failed)
	}
}

func TestGameDespawnTimerExpires(t *testing.T) {
	cfg := quietConfig()
	for i := range cfg.Rarities {
		cfg.Rarities[i].Despawn = 50 * time.Millisecond
	}
	rec := &mockRecorder{}
	g := startTestGame(t, cfg, rec)

	waitFor(t, "spawns to expire", func() bool {
		n := -1
		g.Query(func(w *World) { n = w.SpawnCount() })
		return n == 0
	})

	var stats WorldStats
	var timers int
	g.Query(func(w *World) {
		stats = w.Stats()
		timers = len(g.despawn)
	})
	if stats.TotalExpired != 4 {
		t.Errorf("expected 4 expiries, got %d", stats.TotalExpired)
	}
	if timers != 0 {
		t.Errorf("expected no pending timers, got %d", timers)
	}
	if n := len(rec.kind(RecordExpired)); n != 4 {
		t.Errorf("expected 4 expired records, got %d", n)
	}
	if n := len(rec.kind(RecordSpawn)); n != 4 {
		t.Errorf("expected 4 spawn records, got %d", n)
	}
}

func TestGameCaptureStopsTimerAndReplenishes(t *testing.T) {
	cfg := quietConfig()
	cfg.Spawn.ReplenishDelay = 20 * time.Millisecond
	g := startTestGame(t, cfg)

	var target *Spawn
	g.Query(func(w *World) {
		target = w.spawns[w.sortedSpawnIDs()[0]]
	})
	pos := target.Position
	mock := &mockBroadcaster{}
	if _, err := g.Join("p1", JoinMsg{Position: &pos}, mock); err != nil {
		t.Fatal(err)
	}
	g.Capture("p1", CaptureMsg{}, mock)

	var timers, spawns int
	var gone bool
	g.Query(func(w *World) {
		_, ok := w.Spawn(target.ID)
		gone = !ok
		timers = len(g.despawn)
		spawns = w.SpawnCount()
	})
	if !gone {
		t.Fatal("captured spawn should be gone")
	}
	if timers != spawns {
		t.Errorf("capture should cancel the despawn timer: %d timers for %d spawns", timers, spawns)
	}

	waitFor(t, "replenishment", func() bool {
		n := 0
		g.Query(func(w *World) { n = w.SpawnCount() })
		return n == 4
	})
}

func TestGameStop(t *testing.T) {
	w, err := NewWorld(quietConfig(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	g := NewGame(w)
	go g.Run()
	g.Query(func(*World) {})

	g.Stop()
	g.Stop()
	if len(g.despawn) != 0 {
		t.Errorf("stop should cancel every timer, %d left", len(g.despawn))
	}
	if _, err := g.Join("late", JoinMsg{}, nil); !errors.Is(err, ErrGameStopped) {
		t.Errorf("expected ErrGameStopped, got %v", err)
	}
	if g.Query(func(*World) {}) {
		t.Error("query after stop should report false")
	}
}

func TestGameScoreboardBroadcast(t *testing.T) {
	cfg := quietConfig()
	cfg.ScoreboardInterval = 100 * time.Millisecond
	g := startTestGame(t, cfg)

	mock := &mockBroadcaster{}
	if _, err := g.Join("p1", JoinMsg{Name: "Ana"}, mock); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "scoreboard frame", func() bool {
		mock.mu.Lock()
		defer mock.mu.Unlock()
		return len(mock.binary) > 0
	})

	mock.mu.Lock()
	frame := mock.binary[0]
	mock.mu.Unlock()
	var sb Scoreboard
	if err := msgpack.Unmarshal(frame, &sb); err != nil {
		t.Fatalf("msgpack unmarshal: %v", err)
	}
	if sb.Tick == 0 || len(sb.Players) != 1 || sb.Players[0].Name != "Ana" {
		t.Errorf("unexpected scoreboard %+v", sb)
	}
	if sb.Spawns != 4 || len(sb.Zones) != 4 {
		t.Errorf("expected 4 spawns over 4 zones, got %d / %v", sb.Spawns, sb.Zones)
	}
}
