package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// API bundles what the HTTP handlers read from. Journal and Forwarder may be nil.
type API struct {
	Hub       *Hub
	Game      *Game
	Journal   *Journal
	Forwarder *Forwarder
	PublicURL string
}

// SetupRoutes configures HTTP routes
func SetupRoutes(api *API, clientDir string) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/ws", api.handleWS)
	r.HandleFunc("/api/room", api.handleRoom).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", api.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/leaderboard", api.handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/qr.png", api.handleQR).Methods(http.MethodGet)

	// Serve static files with no-cache; the web client needs the camera
	fs := http.FileServer(http.Dir(clientDir))
	r.PathPrefix("/").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Permissions-Policy", "camera=*, gyroscope=*, accelerometer=*, magnetometer=*")
		w.Header().Set("Feature-Policy", "camera *; gyroscope *; accelerometer *; magnetometer *")
		fs.ServeHTTP(w, r)
	})).Methods(http.MethodGet, http.MethodHead)

	return r
}

func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	if !a.Hub.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}

	a.Hub.TrackConnect(ip)

	client := NewClient(a.Hub, conn, ip)
	a.Hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode: %v", err)
	}
}

type roomResponse struct {
	Room      RoomInfo             `json:"room"`
	SpawnType map[string]SpawnType `json:"spawnTypes"`
	Players   int                  `json:"players"`
	Spawns    int                  `json:"spawns"`
}

func (a *API) handleRoom(w http.ResponseWriter, r *http.Request) {
	var resp roomResponse
	if !a.Game.Query(func(world *World) {
		resp = roomResponse{
			Room:      world.RoomInfo(),
			SpawnType: world.SpawnTypes(),
			Players:   world.PlayerCount(),
			Spawns:    world.SpawnCount(),
		}
	}) {
		http.Error(w, "game stopped", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Players     int            `json:"players"`
	Spawns      int            `json:"spawns"`
	Connections int            `json:"connections"`
	ZoneCounts  []int          `json:"zoneCounts"`
	Totals      WorldStats     `json:"totals"`
	Events      map[string]int `json:"events,omitempty"`
	ByRarity    map[string]int `json:"capturesByRarity,omitempty"`
	Backend     *backendStats  `json:"backend,omitempty"`
}

type backendStats struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"`
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	if !a.Game.Query(func(world *World) {
		resp.Players = world.PlayerCount()
		resp.Spawns = world.SpawnCount()
		resp.ZoneCounts = world.ZoneCounts()
		resp.Totals = world.Stats()
	}) {
		http.Error(w, "game stopped", http.StatusServiceUnavailable)
		return
	}
	resp.Connections = a.Hub.TotalConns()

	if a.Journal != nil {
		days := queryInt(r, "days", 1, 1, 365)
		events, err := a.Journal.EventCounts(days)
		if err != nil {
			log.Printf("api: event counts: %v", err)
		}
		resp.Events = events
		byRarity, err := a.Journal.CapturesByRarity()
		if err != nil {
			log.Printf("api: captures by rarity: %v", err)
		}
		resp.ByRarity = byRarity
	}
	if a.Forwarder != nil {
		sent, failed, dropped := a.Forwarder.Counts()
		resp.Backend = &backendStats{Sent: sent, Failed: failed, Dropped: dropped}
	}
	writeJSON(w, http.StatusOK, resp)
}

type leaderboardResponse struct {
	Live    []ScoreEntry       `json:"live"`
	AllTime []LeaderboardEntry `json:"allTime,omitempty"`
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10, 1, 100)

	var resp leaderboardResponse
	if !a.Game.Query(func(world *World) {
		resp.Live = world.Scoreboard(0).Players
	}) {
		http.Error(w, "game stopped", http.StatusServiceUnavailable)
		return
	}
	if len(resp.Live) > limit {
		resp.Live = resp.Live[:limit]
	}
	if a.Journal != nil {
		entries, err := a.Journal.Leaderboard(limit)
		if err != nil {
			log.Printf("api: leaderboard: %v", err)
			http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
			return
		}
		resp.AllTime = entries
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleQR(w http.ResponseWriter, r *http.Request) {
	target := a.PublicURL
	if target == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		target = scheme + "://" + r.Host + "/"
	}
	png, err := JoinQR(target, queryInt(r, "size", qrDefaultSize, 64, 1024))
	if err != nil {
		log.Printf("api: qr: %v", err)
		http.Error(w, "qr unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

// queryInt reads an integer query parameter clamped to [lo, hi]
func queryInt(r *http.Request, key string, def, lo, hi int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return clampInt(v, lo, hi)
}

// HTTPServer wraps http.Server with graceful shutdown
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates a server for handler on addr
func NewHTTPServer(addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start listens in the background
func (hs *HTTPServer) Start() {
	go func() {
		log.Printf("HTTP server starting on %s", hs.server.Addr)
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()
}

// Stop shuts down, waiting up to 30 seconds for in-flight requests
func (hs *HTTPServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := hs.server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")
}
