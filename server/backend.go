package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Sink delivers one record to the registration backend
type Sink interface {
	Deliver(ctx context.Context, rec Record) error
	Close() error
}

// Forwarder pushes registration, capture and disconnection records to a
// sink from a bounded queue. Delivery failures are logged and dropped.
type Forwarder struct {
	sink    Sink
	queue   chan Record
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once

	mu      sync.Mutex
	sent    int
	failed  int
	dropped int
}

// NewForwarder starts the delivery worker
func NewForwarder(sink Sink, queueSize int, timeout time.Duration) *Forwarder {
	if queueSize < 1 {
		queueSize = 1
	}
	f := &Forwarder{
		sink:    sink,
		queue:   make(chan Record, queueSize),
		timeout: timeout,
	}
	f.wg.Add(1)
	go f.worker()
	return f
}

// Record enqueues backend-relevant records (non-blocking)
func (f *Forwarder) Record(rec Record) {
	switch rec.Kind {
	case RecordRegistration, RecordCapture, RecordDisconnection:
	default:
		return
	}
	select {
	case f.queue <- rec:
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
		log.Printf("backend: queue full, dropping %s for %s", rec.Kind, rec.PlayerID)
	}
}

// Counts returns (sent, failed, dropped)
func (f *Forwarder) Counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, f.failed, f.dropped
}

// Stop drains the queue and closes the sink
func (f *Forwarder) Stop() {
	f.once.Do(func() {
		close(f.queue)
		f.wg.Wait()
		if err := f.sink.Close(); err != nil {
			log.Printf("backend: close: %v", err)
		}
	})
}

func (f *Forwarder) worker() {
	defer f.wg.Done()
	for rec := range f.queue {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		err := f.sink.Deliver(ctx, rec)
		cancel()

		f.mu.Lock()
		if err != nil {
			f.failed++
		} else {
			f.sent++
		}
		f.mu.Unlock()
		if err != nil {
			log.Printf("backend: %s for %s: %v", rec.Kind, rec.PlayerID, err)
		}
	}
}

// --- payloads ---

type registrationPayload struct {
	Nombre   string `json:"Nombre"`
	Apellido string `json:"Apellido"`
	Email    string `json:"Email"`
	IdSocket string `json:"IdSocket"`
}

type disconnectionPayload struct {
	IdSocket string `json:"IdSocket"`
}

type capturePlayer struct {
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
	SocketID string `json:"socketId"`
}

type capturedObject struct {
	ID     int    `json:"id"`
	Tipo   string `json:"tipo"`
	Rareza string `json:"rareza"`
}

type captureScore struct {
	PuntosFinales int `json:"puntosFinales"`
	Racha         int `json:"racha"`
}

type capturePayload struct {
	Jugador            capturePlayer  `json:"jugador"`
	ObjetoCapturado    capturedObject `json:"objetoCapturado"`
	PuntuacionObtenida captureScore   `json:"puntuacionObtenida"`
}

// backendPayload maps a record kind to its endpoint and body
func backendPayload(rec Record) (string, any, error) {
	switch rec.Kind {
	case RecordRegistration:
		return "/RegistroUsuario", registrationPayload{
			Nombre: rec.PlayerName, Apellido: rec.LastName, Email: rec.Email, IdSocket: rec.PlayerID,
		}, nil
	case RecordCapture:
		return "/captura", capturePayload{
			Jugador: capturePlayer{
				Nombre: rec.PlayerName, Apellido: rec.LastName, Email: rec.Email, SocketID: rec.PlayerID,
			},
			ObjetoCapturado:    capturedObject{ID: rec.SpawnID, Tipo: rec.ObjectID, Rareza: rec.Rarity},
			PuntuacionObtenida: captureScore{PuntosFinales: rec.Points, Racha: rec.Streak},
		}, nil
	case RecordDisconnection:
		return "/RegistroUsuario/desactivar", disconnectionPayload{IdSocket: rec.PlayerID}, nil
	}
	return "", nil, fmt.Errorf("unsupported record kind %q", rec.Kind)
}

// HTTPSink posts records as JSON to the backend REST endpoints
type HTTPSink struct {
	BaseURL string
	Client  *http.Client
	Auth    *ServiceAuth
}

// NewHTTPSink creates a sink posting under baseURL
func NewHTTPSink(baseURL string, auth *ServiceAuth) *HTTPSink {
	return &HTTPSink{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
		Auth:    auth,
	}
}

func (s *HTTPSink) Deliver(ctx context.Context, rec Record) error {
	path, payload, err := backendPayload(rec)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rec.Kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Auth != nil {
		token, err := s.Auth.SignToken(rec.PlayerID, rec.Kind)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", req.Method, path, resp.StatusCode)
	}
	return nil
}

func (s *HTTPSink) Close() error {
	s.Client.CloseIdleConnections()
	return nil
}

// backendEvent is the Kafka message value
type backendEvent struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
	Path    string    `json:"path"`
	Payload any       `json:"payload"`
}

// KafkaSink publishes records to a topic keyed by player id
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a sink writing to topic on brokers
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *KafkaSink) Deliver(ctx context.Context, rec Record) error {
	value, err := encodeBackendEvent(rec)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.PlayerID),
		Value: value,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func encodeBackendEvent(rec Record) ([]byte, error) {
	path, payload, err := backendPayload(rec)
	if err != nil {
		return nil, err
	}
	evt := backendEvent{
		ID:      uuid.NewString(),
		Kind:    rec.Kind,
		At:      rec.At.UTC(),
		Path:    path,
		Payload: payload,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", rec.Kind, err)
	}
	return data, nil
}
