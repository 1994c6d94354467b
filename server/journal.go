package main

import (
	"database/sql"
	"log"
	"sync"
	"time"
)

// Record kinds
const (
	RecordRegistration  = "registration"
	RecordCapture       = "capture"
	RecordDisconnection = "disconnection"
	RecordSpawn         = "spawn"
	RecordExpired       = "expired"
)

// Record is one gameplay fact handed to recorders
type Record struct {
	Kind       string
	PlayerID   string
	PlayerName string
	LastName   string
	Email      string
	SpawnID    int
	ObjectID   string
	Rarity     string
	Zone       int
	Points     int // points earned by a capture, or final score on disconnection
	Total      int
	Streak     int
	Multiplier float64
	Distance   float64
	Method     string
	At         time.Time
}

// Journal persists records to SQLite with batched background writes
type Journal struct {
	db      *DB
	records chan Record
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	flushEvery time.Duration
	batchSize  int
}

// NewJournal creates and starts the journal writer
func NewJournal(db *DB) *Journal {
	j := &Journal{
		db:         db,
		records:    make(chan Record, 1024),
		stop:       make(chan struct{}),
		flushEvery: 5 * time.Second,
		batchSize:  50,
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// Record enqueues a record (non-blocking)
func (j *Journal) Record(rec Record) {
	select {
	case j.records <- rec:
	default:
		log.Printf("journal: queue full, dropping %s record", rec.Kind)
	}
}

// Stop flushes pending records and stops the writer
func (j *Journal) Stop() {
	j.once.Do(func() {
		close(j.stop)
		j.wg.Wait()
	})
}

func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]Record, 0, 64)
	ticker := time.NewTicker(j.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case rec := <-j.records:
			batch = append(batch, rec)
			if len(batch) >= j.batchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
			for {
				select {
				case rec := <-j.records:
					batch = append(batch, rec)
				default:
					j.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch in one transaction
func (j *Journal) flush(batch []Record) {
	if j.db == nil || len(batch) == 0 {
		return
	}
	tx, err := j.db.conn.Begin()
	if err != nil {
		log.Printf("journal: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	for _, rec := range batch {
		if err := writeRecord(tx, rec); err != nil {
			log.Printf("journal: %s insert error: %v", rec.Kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("journal: commit error: %v", err)
	}
}

func writeRecord(tx *sql.Tx, rec Record) error {
	at := rec.At.UTC().Format(time.RFC3339Nano)
	pid := sql.NullString{String: rec.PlayerID, Valid: rec.PlayerID != ""}
	sid := sql.NullInt64{Int64: int64(rec.SpawnID), Valid: rec.SpawnID > 0}
	rarity := sql.NullString{String: rec.Rarity, Valid: rec.Rarity != ""}
	zone := sql.NullInt64{Int64: int64(rec.Zone), Valid: rec.Kind == RecordSpawn || rec.Kind == RecordExpired}

	if _, err := tx.Exec(
		`INSERT INTO events (kind, player_id, spawn_id, rarity, zone, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Kind, pid, sid, rarity, zone, at,
	); err != nil {
		return err
	}

	switch rec.Kind {
	case RecordRegistration:
		_, err := tx.Exec(
			`INSERT INTO players (id, name, last_name, email, joined_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, joined_at = excluded.joined_at, left_at = NULL`,
			rec.PlayerID, rec.PlayerName, rec.LastName, rec.Email, at,
		)
		return err
	case RecordCapture:
		_, err := tx.Exec(
			`INSERT INTO captures (player_id, player_name, spawn_id, object_id, rarity, points, streak, multiplier, distance, method, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.PlayerID, rec.PlayerName, rec.SpawnID, rec.ObjectID, rec.Rarity,
			rec.Points, rec.Streak, rec.Multiplier, rec.Distance, rec.Method, at,
		)
		return err
	case RecordDisconnection:
		_, err := tx.Exec(
			`UPDATE players SET points = ?, best_streak = MAX(best_streak, ?), left_at = ? WHERE id = ?`,
			rec.Total, rec.Streak, at, rec.PlayerID,
		)
		return err
	}
	return nil
}

// --- Query methods for the API ---

// EventCounts returns counts of each record kind for the last N days
func (j *Journal) EventCounts(days int) (map[string]int, error) {
	if j.db == nil {
		return nil, nil
	}
	rows, err := j.db.conn.Query(`
		SELECT kind, COUNT(*) FROM events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY kind ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			continue
		}
		result[kind] = count
	}
	return result, rows.Err()
}

// CapturesByRarity returns capture counts per rarity
func (j *Journal) CapturesByRarity() (map[string]int, error) {
	if j.db == nil {
		return nil, nil
	}
	rows, err := j.db.conn.Query(`SELECT rarity, COUNT(*) FROM captures GROUP BY rarity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var rarity string
		var count int
		if err := rows.Scan(&rarity, &count); err != nil {
			continue
		}
		result[rarity] = count
	}
	return result, rows.Err()
}

// LeaderboardEntry is one all-time leaderboard row
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"playerId"`
	Name       string `json:"name"`
	Points     int    `json:"points"`
	Captures   int    `json:"captures"`
	BestStreak int    `json:"bestStreak"`
}

// Leaderboard returns the top players by points earned across all sessions
func (j *Journal) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if j.db == nil {
		return nil, nil
	}
	rows, err := j.db.conn.Query(`
		SELECT player_id, MAX(player_name), SUM(points), COUNT(*), MAX(streak)
		FROM captures
		GROUP BY player_id
		ORDER BY SUM(points) DESC, COUNT(*) DESC, MAX(player_name)
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.Points, &e.Captures, &e.BestStreak); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}
