package main

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

type testServer struct {
	srv     *httptest.Server
	wsURL   string
	game    *Game
	journal *Journal
}

// startTestServer spins up an httptest.Server with a running game, hub and
// journal. Everything is torn down with the test.
func startTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	db := openTestDB(t)
	journal := NewJournal(db)

	world, err := NewWorld(cfg, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	game := NewGame(world, journal)
	go game.Run()

	hub := NewHub(game)
	go hub.Run()

	api := &API{Hub: hub, Game: game, Journal: journal, PublicURL: "https://room.example/"}
	srv := httptest.NewServer(SetupRoutes(api, tmpDir))
	t.Cleanup(func() {
		srv.Close()
		game.Stop()
		hub.Stop()
		journal.Stop()
	})

	return &testServer{
		srv:     srv,
		wsURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		game:    game,
		journal: journal,
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads the next JSON message, skipping binary scoreboard frames.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	}
}

// readUntil reads messages until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) Envelope {
	t.Helper()
	for i := 0; i < 50; i++ {
		env := readEnvelope(t, conn)
		if env.T == msgType {
			return env
		}
	}
	t.Fatalf("no %s message within 50 reads", msgType)
	return Envelope{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// joinRoom joins with a name and position and returns the game-state payload.
func joinRoom(t *testing.T, conn *websocket.Conn, name string, x, y float64) map[string]interface{} {
	t.Helper()
	sendMsg(t, conn, MsgJoin, map[string]interface{}{
		"name":     name,
		"position": map[string]float64{"x": x, "y": y},
	})
	return dataMap(t, readUntil(t, conn, MsgGameState))
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

// ---------- static files ----------

func TestStaticFilesCarryCameraPolicy(t *testing.T) {
	ts := startTestServer(t, quietConfig())

	for _, path := range []string{"/", "/js/main.js"} {
		resp, err := http.Get(ts.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != 200 {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
		if !strings.Contains(resp.Header.Get("Permissions-Policy"), "camera=*") {
			t.Errorf("GET %s: missing camera permission, got %q", path, resp.Header.Get("Permissions-Policy"))
		}
		if resp.Header.Get("Cache-Control") != "no-cache" {
			t.Errorf("GET %s: expected no-cache", path)
		}
	}

	resp, err := http.Get(ts.srv.URL + "/missing.js")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("GET /missing.js status = %d, want 404", resp.StatusCode)
	}
}

// ---------- protocol ----------

func TestJoinOverWebSocket(t *testing.T) {
	ts := startTestServer(t, quietConfig())
	c := dialWS(t, ts.wsURL)

	gs := joinRoom(t, c, "Ana", 1, 1)
	player := gs["player"].(map[string]interface{})
	if player["name"] != "Ana" {
		t.Errorf("expected name Ana, got %v", player["name"])
	}
	if !uuidRegex.MatchString(player["id"].(string)) {
		t.Errorf("player id %v is not a UUID", player["id"])
	}
	room := gs["roomConfig"].(map[string]interface{})
	if room["width"].(float64) != 5 || room["cols"].(float64) != 2 {
		t.Errorf("unexpected room config %v", room)
	}
	if len(gs["spawnTypes"].(map[string]interface{})) != 3 {
		t.Errorf("expected 3 spawn types, got %v", gs["spawnTypes"])
	}

	sendMsg(t, c, MsgJoin, map[string]string{"name": "Again"})
	if env := readEnvelope(t, c); env.T != MsgError {
		t.Errorf("second join should fail, got %s", env.T)
	}
}

func TestMoveEchoesClampedPosition(t *testing.T) {
	ts := startTestServer(t, quietConfig())
	c := dialWS(t, ts.wsURL)
	joinRoom(t, c, "Ana", 1, 1)

	sendMsg(t, c, MsgMove, map[string]float64{"x": 7, "y": 2})
	pos := dataMap(t, readUntil(t, c, MsgPositionUpdated))
	if pos["x"].(float64) != 5 || pos["y"].(float64) != 2 {
		t.Errorf("expected clamped (5,2), got %v", pos)
	}

	sendMsg(t, c, MsgMove, map[string]interface{}{"x": 1})
	env := readUntil(t, c, MsgError)
	if dataMap(t, env)["msg"] != "invalid position" {
		t.Errorf("unexpected error %v", env.Data)
	}
}

func TestMessagesBeforeJoin(t *testing.T) {
	ts := startTestServer(t, quietConfig())
	c := dialWS(t, ts.wsURL)

	sendMsg(t, c, MsgMove, map[string]float64{"x": 1, "y": 1})
	if env := readEnvelope(t, c); env.T != MsgError || dataMap(t, env)["msg"] != ReasonNotJoined {
		t.Errorf("move before join: got %s %v", env.T, env.Data)
	}

	sendMsg(t, c, MsgAttemptCapture, map[string]interface{}{"captureMethod": "tap"})
	env := readEnvelope(t, c)
	if env.T != MsgCaptureFailed || dataMap(t, env)["reason"] != ReasonNotJoined {
		t.Errorf("capture before join: got %s %v", env.T, env.Data)
	}

	c.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if env := readEnvelope(t, c); env.T != MsgError {
		t.Errorf("malformed message: got %s", env.T)
	}

	sendMsg(t, c, "dance", nil)
	if env := readEnvelope(t, c); env.T != MsgError {
		t.Errorf("unknown type: got %s", env.T)
	}
}

func TestCaptureOverWebSocket(t *testing.T) {
	ts := startTestServer(t, quietConfig())

	var x, y float64
	ts.game.Query(func(w *World) {
		s := w.spawns[w.sortedSpawnIDs()[0]]
		x, y = s.Position.X, s.Position.Y
	})

	c1 := dialWS(t, ts.wsURL)
	c2 := dialWS(t, ts.wsURL)
	joinRoom(t, c2, "Beto", 0, 0)
	joinRoom(t, c1, "Ana", x, y)

	sendMsg(t, c1, MsgAttemptCapture, map[string]interface{}{"captureMethod": "tap"})
	captured := dataMap(t, readUntil(t, c1, MsgSpawnCaptured))
	if captured["playerName"] != "Ana" || captured["pointsEarned"].(float64) <= 0 {
		t.Errorf("unexpected spawn-captured %v", captured)
	}
	other := dataMap(t, readUntil(t, c2, MsgSpawnCaptured))
	if other["spawnId"] != captured["spawnId"] {
		t.Errorf("both players should see the same capture, got %v / %v", other["spawnId"], captured["spawnId"])
	}
}

func TestPlayerJoinAndLeaveBroadcast(t *testing.T) {
	ts := startTestServer(t, quietConfig())
	c1 := dialWS(t, ts.wsURL)
	joinRoom(t, c1, "Ana", 1, 1)

	c2 := dialWS(t, ts.wsURL)
	joinRoom(t, c2, "Beto", 4, 4)
	joined := dataMap(t, readUntil(t, c1, MsgPlayerJoined))
	if joined["playerName"] != "Beto" {
		t.Errorf("expected Beto joined, got %v", joined)
	}

	c2.Close()
	left := dataMap(t, readUntil(t, c1, MsgPlayerLeft))
	if left["playerName"] != "Beto" {
		t.Errorf("expected Beto left, got %v", left)
	}
}

func TestLeaveMessage(t *testing.T) {
	ts := startTestServer(t, quietConfig())
	c := dialWS(t, ts.wsURL)
	joinRoom(t, c, "Ana", 1, 1)

	sendMsg(t, c, MsgLeave, nil)
	sendMsg(t, c, MsgMove, map[string]float64{"x": 1, "y": 1})
	if env := readUntil(t, c, MsgError); dataMap(t, env)["msg"] != ReasonNotJoined {
		t.Errorf("move after leave should fail, got %v", env.Data)
	}

	// the connection can join again
	joinRoom(t, c, "Ana", 2, 2)
}

func TestScoreboardFrame(t *testing.T) {
	cfg := quietConfig()
	cfg.ScoreboardInterval = 100 * time.Millisecond
	ts := startTestServer(t, cfg)
	c := dialWS(t, ts.wsURL)
	joinRoom(t, c, "Ana", 1, 1)

	for i := 0; i < 50; i++ {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, raw, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		var sb Scoreboard
		if err := msgpack.Unmarshal(raw, &sb); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		if len(sb.Players) != 1 || sb.Players[0].Name != "Ana" {
			t.Errorf("unexpected scoreboard %+v", sb)
		}
		return
	}
	t.Fatal("no scoreboard frame received")
}

func TestConnectionLimitPerIP(t *testing.T) {
	ts := startTestServer(t, quietConfig())
	for i := 0; i < maxConnsPerIP; i++ {
		dialWS(t, ts.wsURL)
	}
	// registration happens in the handler, so the limit is already counted
	_, resp, err := websocket.DefaultDialer.Dial(ts.wsURL, nil)
	if err == nil {
		t.Fatal("expected the extra connection to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", resp)
	}
}

// ---------- HTTP API ----------

func TestAPIRoom(t *testing.T) {
	ts := startTestServer(t, quietConfig())

	var room roomResponse
	getJSON(t, ts.srv.URL+"/api/room", &room)
	if room.Room.Width != 5 || room.Spawns != 4 {
		t.Errorf("unexpected room %+v", room)
	}
	if room.SpawnType[RarityEpic].Points != 50 {
		t.Errorf("expected epic worth 50, got %+v", room.SpawnType[RarityEpic])
	}

	resp, err := http.Post(ts.srv.URL+"/api/room", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/room status = %d, want 405", resp.StatusCode)
	}
}

func TestAPIStatsAndLeaderboard(t *testing.T) {
	ts := startTestServer(t, quietConfig())
	c := dialWS(t, ts.wsURL)
	joinRoom(t, c, "Ana", 1, 1)

	var stats statsResponse
	getJSON(t, ts.srv.URL+"/api/stats", &stats)
	if stats.Players != 1 || stats.Spawns != 4 || stats.Connections != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Totals.TotalSpawns != 4 || len(stats.ZoneCounts) != 4 {
		t.Errorf("unexpected totals %+v", stats)
	}

	var board leaderboardResponse
	getJSON(t, ts.srv.URL+"/api/leaderboard?limit=5", &board)
	if len(board.Live) != 1 || board.Live[0].Name != "Ana" {
		t.Errorf("unexpected live board %+v", board.Live)
	}
}

func TestQRCode(t *testing.T) {
	ts := startTestServer(t, quietConfig())

	resp, err := http.Get(ts.srv.URL + "/qr.png?size=128")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	buf := make([]byte, 8)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("not a PNG: %x", buf)
	}
}

func TestJoinQRRejectsEmpty(t *testing.T) {
	if _, err := JoinQR("", 256); err == nil {
		t.Error("expected error for empty url")
	}
}
