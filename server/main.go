package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func main() {
	addr := flag.String("addr", getEnv("ROOM_ADDR", ":8080"), "HTTP listen address")
	clientDir := flag.String("client", getEnv("ROOM_CLIENT_DIR", ""), "Path to web client directory (default: ../public)")
	configPath := flag.String("config", getEnv("ROOM_CONFIG", ""), "YAML room config (default: built-in 5x5 room)")
	dbPath := flag.String("db", getEnv("ROOM_DB", "roomcapture.db"), "SQLite journal path (empty disables the journal)")
	publicURL := flag.String("public-url", getEnv("ROOM_PUBLIC_URL", ""), "Join URL encoded in /qr.png (default: request host)")
	backendURL := flag.String("backend-url", getEnv("ROOM_BACKEND_URL", ""), "Registration backend base URL")
	backendSecret := flag.String("backend-secret", getEnv("ROOM_BACKEND_SECRET", ""), "HS256 secret for backend tokens (default: persisted random)")
	backendTimeout := flag.Duration("backend-timeout", getEnvDuration("ROOM_BACKEND_TIMEOUT", 5*time.Second), "Per-record backend delivery timeout")
	backendQueue := flag.Int("backend-queue", getEnvInt("ROOM_BACKEND_QUEUE", 256), "Backend queue size")
	kafkaTopic := flag.String("kafka-topic", getEnv("ROOM_KAFKA_TOPIC", "room-capture"), "Kafka topic for backend records")
	seed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	flag.Parse()
	kafkaBrokers := getEnvList("ROOM_KAFKA_BROKERS", nil)

	if *clientDir == "" {
		exe, _ := os.Executable()
		*clientDir = filepath.Join(filepath.Dir(exe), "..", "public")
		// Fallback for development
		if _, err := os.Stat(*clientDir); os.IsNotExist(err) {
			*clientDir = "../public"
		}
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db *DB
	var journal *Journal
	if *dbPath != "" {
		db, err = OpenDB(*dbPath)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		journal = NewJournal(db)
	}

	var forwarder *Forwarder
	switch {
	case len(kafkaBrokers) > 0:
		forwarder = NewForwarder(NewKafkaSink(kafkaBrokers, *kafkaTopic), *backendQueue, *backendTimeout)
		log.Printf("Forwarding backend records to Kafka topic %s on %v", *kafkaTopic, kafkaBrokers)
	case *backendURL != "":
		auth := NewServiceAuth(db, *backendSecret)
		forwarder = NewForwarder(NewHTTPSink(*backendURL, auth), *backendQueue, *backendTimeout)
		log.Printf("Forwarding backend records to %s", *backendURL)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	world, err := NewWorld(cfg, rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatalf("world: %v", err)
	}

	var recorders []Recorder
	if journal != nil {
		recorders = append(recorders, journal)
	}
	if forwarder != nil {
		recorders = append(recorders, forwarder)
	}
	game := NewGame(world, recorders...)
	go game.Run()

	hub := NewHub(game)
	go hub.Run()

	api := &API{Hub: hub, Game: game, Journal: journal, Forwarder: forwarder, PublicURL: *publicURL}
	server := NewHTTPServer(*addr, SetupRoutes(api, *clientDir))
	log.Printf("Serving client files from %s", *clientDir)
	log.Printf("Room %.1fx%.1f m, %dx%d zones, up to %d spawns",
		cfg.Room.Width, cfg.Room.Height, cfg.Room.Cols, cfg.Room.Rows, cfg.Spawn.MaxSimultaneous)
	server.Start()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	server.Stop()
	game.Stop()
	hub.Stop()
	if forwarder != nil {
		forwarder.Stop()
	}
	if journal != nil {
		journal.Stop()
	}
}
