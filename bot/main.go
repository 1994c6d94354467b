// Command bot joins a room capture server and plays it with synthetic
// sensor input. It is used for load and smoke testing a running room.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

func main() {
	url := flag.String("url", getEnv("ROOM_BOT_URL", "ws://localhost:8080/ws"), "room websocket URL")
	count := flag.Int("n", 1, "number of bots")
	name := flag.String("name", getEnv("ROOM_BOT_NAME", "Bot"), "bot name prefix")
	duration := flag.Duration("duration", 0, "stop after this long (0 = until interrupted)")
	tick := flag.Duration("tick", 100*time.Millisecond, "sensor frame interval")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	quit := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("bot: received %s, leaving", sig)
		case <-after(*duration):
			log.Printf("bot: %s elapsed, leaving", *duration)
		}
		close(quit)
	}()

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		wg.Add(1)
		botName := fmt.Sprintf("%s%d", *name, i+1)
		rng := rand.New(rand.NewSource(*seed + int64(i)))
		go func() {
			defer wg.Done()
			if err := play(*url, botName, *tick, rng, quit); err != nil {
				log.Printf("bot %s: %v", botName, err)
			}
		}()
	}
	wg.Wait()
}

func after(d time.Duration) <-chan time.Time {
	if d <= 0 {
		return nil
	}
	return time.After(d)
}

// play runs one bot until quit closes or the connection drops.
func play(url, name string, tick time.Duration, rng *rand.Rand, quit <-chan struct{}) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	incoming := make(chan inEnvelope, 64)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go readLoop(conn, name, incoming, readErr, done)

	var writeErr error
	send := func(env envelope) {
		if writeErr != nil {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		writeErr = conn.WriteJSON(env)
	}

	w := NewWalker(name, send, rng, time.Now())
	w.Join()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			w.Leave()
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			log.Printf("bot %s: left with %d captures, %d points", name, w.captures, w.points)
			return writeErr
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case env := <-incoming:
			w.HandleMessage(env)
		case now := <-ticker.C:
			w.Tick(now)
		}
		if writeErr != nil {
			return fmt.Errorf("write: %w", writeErr)
		}
	}
}

// readLoop decodes text frames into envelopes and logs binary scoreboards.
func readLoop(conn *websocket.Conn, name string, out chan<- inEnvelope, errc chan<- error, done <-chan struct{}) {
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if msgType == websocket.BinaryMessage {
			var sb scoreboard
			if err := msgpack.Unmarshal(raw, &sb); err != nil {
				log.Printf("bot %s: bad scoreboard: %v", name, err)
				continue
			}
			if len(sb.Players) > 0 && sb.Tick%10 == 0 {
				top := sb.Players[0]
				log.Printf("bot %s: scoreboard #%d leader %s with %d points, %d spawns up",
					name, sb.Tick, top.Name, top.Points, sb.Spawns)
			}
			continue
		}
		var env inEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("bot %s: malformed message: %v", name, err)
			continue
		}
		select {
		case out <- env:
		case <-done:
			return
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
