// Package client is the device side of room capture: a dead-reckoning
// position tracker fed by motion and orientation samples, and a
// field-of-view projector that places visible spawns on screen.
package client

import (
	"math"
	"time"

	"roomcapture/geo"
)

// TrackerState is the lifecycle stage of a tracker.
type TrackerState int

const (
	StateUninitialized TrackerState = iota
	StateCalibrating
	StateActive
)

func (s TrackerState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCalibrating:
		return "calibrating"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// TrackerConfig holds the dead-reckoning tunables.
type TrackerConfig struct {
	RoomWidth  float64
	RoomHeight float64

	StepThreshold    float64       // |a| above this is a step candidate
	MaxAcceleration  float64       // |a| above this is a shake and ignored
	CalibrationShake float64       // |a| above this is ignored until active
	MinStepInterval  time.Duration // debounce between steps
	StepLength       float64       // metres per step

	HeadingSmoothing float64 // weight on the previous heading
	HistorySize      int

	BoundaryMargin float64 // distance from a wall that counts as a hit
	ClampMargin    float64
	DriftGain      float64
	DriftDecay     float64

	MotionThrottle      time.Duration
	OrientationThrottle time.Duration
	CalibrationTimeout  time.Duration
}

// DefaultTrackerConfig returns the tunables for a 5x5 m room.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		RoomWidth:           5,
		RoomHeight:          5,
		StepThreshold:       2.0,
		MaxAcceleration:     20,
		CalibrationShake:    15,
		MinStepInterval:     500 * time.Millisecond,
		StepLength:          0.4,
		HeadingSmoothing:    0.8,
		HistorySize:         5,
		BoundaryMargin:      0.5,
		ClampMargin:         0.2,
		DriftGain:           0.3,
		DriftDecay:          0.9,
		MotionThrottle:      100 * time.Millisecond,
		OrientationThrottle: 50 * time.Millisecond,
		CalibrationTimeout:  3 * time.Second,
	}
}

// MotionSample is one accelerometer reading including gravity, in m/s².
type MotionSample struct {
	X, Y, Z float64
	At      time.Time
}

// Magnitude returns |a|.
func (m MotionSample) Magnitude() float64 {
	return math.Sqrt(m.X*m.X + m.Y*m.Y + m.Z*m.Z)
}

func (m MotionSample) valid() bool {
	return !m.At.IsZero() && geo.Finite(m.X) && geo.Finite(m.Y) && geo.Finite(m.Z)
}

// OrientationSample is one compass reading in degrees.
type OrientationSample struct {
	Heading float64
	At      time.Time
}

func (o OrientationSample) valid() bool {
	return !o.At.IsZero() && geo.Finite(o.Heading)
}

// Snapshot is the tracker output handed to listeners by value.
type Snapshot struct {
	Position     geo.Point
	Heading      float64
	State        TrackerState
	Steps        int
	BoundaryHits int
}

// Ready reports whether the snapshot comes from an active tracker.
func (s Snapshot) Ready() bool {
	return s.State == StateActive
}

// Tracker estimates the player's room position.
type Tracker interface {
	// OnUpdate registers the listener for position snapshots.
	OnUpdate(fn func(Snapshot))
	HandleMotion(MotionSample)
	HandleOrientation(OrientationSample)
	// Poll advances timeouts; call it from the frame loop.
	Poll(now time.Time)
	Snapshot() Snapshot
	Ready() bool
	// Recalibrate moves the estimate back to the room centre.
	Recalibrate()
	// Reset clears all state and waits for calibration again.
	Reset(now time.Time)
}

// NewTracker picks the sensor-backed tracker when sensors are available and
// the static fallback otherwise.
func NewTracker(cfg TrackerConfig, sensorsAvailable bool, now time.Time) Tracker {
	if !sensorsAvailable {
		return NewStaticTracker(cfg)
	}
	t := NewSensorTracker(cfg)
	t.Start(now)
	return t
}

// SensorTracker integrates detected steps along the smoothed compass heading.
type SensorTracker struct {
	cfg   TrackerConfig
	state TrackerState

	position geo.Point
	heading  float64
	history  []geo.Point
	drift    geo.Point

	steps        int
	boundaryHits int

	lastStep        time.Time
	lastMotion      time.Time
	lastOrientation time.Time
	deadline        time.Time

	listener func(Snapshot)
}

// NewSensorTracker creates an uninitialized tracker at the room centre.
func NewSensorTracker(cfg TrackerConfig) *SensorTracker {
	t := &SensorTracker{cfg: cfg}
	t.clear()
	return t
}

func (t *SensorTracker) centre() geo.Point {
	return geo.Point{X: t.cfg.RoomWidth / 2, Y: t.cfg.RoomHeight / 2}
}

func (t *SensorTracker) clear() {
	t.position = t.centre()
	t.heading = 0
	t.history = t.history[:0]
	t.drift = geo.Point{}
	t.boundaryHits = 0
	t.steps = 0
	t.lastStep = time.Time{}
	t.lastMotion = time.Time{}
	t.lastOrientation = time.Time{}
}

// Start begins calibration. It is a no-op unless the tracker is uninitialized.
func (t *SensorTracker) Start(now time.Time) {
	if t.state != StateUninitialized {
		return
	}
	t.state = StateCalibrating
	t.deadline = now.Add(t.cfg.CalibrationTimeout)
}

func (t *SensorTracker) OnUpdate(fn func(Snapshot)) {
	t.listener = fn
}

func (t *SensorTracker) State() TrackerState {
	return t.state
}

func (t *SensorTracker) Ready() bool {
	return t.state == StateActive
}

// Poll activates the tracker once the calibration timeout has passed
// without a compass reading.
func (t *SensorTracker) Poll(now time.Time) {
	if t.state == StateCalibrating && !now.Before(t.deadline) {
		t.activate()
	}
}

func (t *SensorTracker) activate() {
	t.state = StateActive
	t.emit()
}

// HandleOrientation feeds one compass sample. The first sample during
// calibration is taken as-is and activates the tracker.
func (t *SensorTracker) HandleOrientation(s OrientationSample) {
	if !s.valid() || t.state == StateUninitialized {
		return
	}
	if !t.lastOrientation.IsZero() && s.At.Sub(t.lastOrientation) < t.cfg.OrientationThrottle {
		return
	}
	t.lastOrientation = s.At

	if t.state == StateCalibrating {
		t.heading = geo.NormalizeHeading(s.Heading)
		t.activate()
		return
	}
	t.heading = geo.SmoothHeading(t.heading, s.Heading, t.cfg.HeadingSmoothing)
}

// HandleMotion feeds one accelerometer sample and integrates a step when
// one is detected.
func (t *SensorTracker) HandleMotion(s MotionSample) {
	if !s.valid() || t.state == StateUninitialized {
		return
	}
	if !t.lastMotion.IsZero() && s.At.Sub(t.lastMotion) < t.cfg.MotionThrottle {
		return
	}
	t.lastMotion = s.At

	mag := s.Magnitude()
	if mag > t.cfg.MaxAcceleration {
		return
	}
	if t.state != StateActive {
		// hold calibration while the device is being shaken
		if mag > t.cfg.CalibrationShake {
			if hold := s.At.Add(t.cfg.MinStepInterval); hold.After(t.deadline) {
				t.deadline = hold
			}
		}
		return
	}
	if mag <= t.cfg.StepThreshold {
		return
	}
	if !t.lastStep.IsZero() && s.At.Sub(t.lastStep) < t.cfg.MinStepInterval {
		return
	}
	t.lastStep = s.At
	t.step()
}

func (t *SensorTracker) step() {
	next := geo.Advance(t.position, t.heading, t.cfg.StepLength)

	if t.drift != (geo.Point{}) {
		next.X += t.drift.X * t.cfg.DriftGain
		next.Y += t.drift.Y * t.cfg.DriftGain
		t.drift.X *= t.cfg.DriftDecay
		t.drift.Y *= t.cfg.DriftDecay
		if math.Hypot(t.drift.X, t.drift.Y) < 1e-3 {
			t.drift = geo.Point{}
		}
	}

	if t.nearWall(next) {
		t.boundaryHits++
		next = geo.ClampPosition(next, t.cfg.RoomWidth, t.cfg.RoomHeight, t.cfg.ClampMargin)
		t.armDrift(next)
	}

	t.position = next
	t.steps++
	t.pushHistory(next)
	t.emit()
}

func (t *SensorTracker) nearWall(p geo.Point) bool {
	m := t.cfg.BoundaryMargin
	return p.X <= m || p.X >= t.cfg.RoomWidth-m || p.Y <= m || p.Y >= t.cfg.RoomHeight-m
}

// armDrift points the correction from p toward the room centre, one step long.
func (t *SensorTracker) armDrift(p geo.Point) {
	c := t.centre()
	dx, dy := c.X-p.X, c.Y-p.Y
	n := math.Hypot(dx, dy)
	if n == 0 {
		t.drift = geo.Point{}
		return
	}
	t.drift = geo.Point{X: dx / n * t.cfg.StepLength, Y: dy / n * t.cfg.StepLength}
}

func (t *SensorTracker) pushHistory(p geo.Point) {
	size := t.cfg.HistorySize
	if size < 1 {
		size = 1
	}
	if len(t.history) >= size {
		copy(t.history, t.history[len(t.history)-size+1:])
		t.history = t.history[:size-1]
	}
	t.history = append(t.history, p)
}

// smoothed returns the mean of the position history.
func (t *SensorTracker) smoothed() geo.Point {
	if len(t.history) == 0 {
		return t.position
	}
	var sx, sy float64
	for _, p := range t.history {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(t.history))
	return geo.Point{X: sx / n, Y: sy / n}
}

func (t *SensorTracker) Snapshot() Snapshot {
	return Snapshot{
		Position:     t.smoothed(),
		Heading:      t.heading,
		State:        t.state,
		Steps:        t.steps,
		BoundaryHits: t.boundaryHits,
	}
}

func (t *SensorTracker) emit() {
	if t.listener != nil {
		t.listener(t.Snapshot())
	}
}

// Recalibrate recentres the estimate and clears drift and history. The
// tracker stays in its current state.
func (t *SensorTracker) Recalibrate() {
	t.position = t.centre()
	t.drift = geo.Point{}
	t.history = t.history[:0]
	t.boundaryHits = 0
	if t.state == StateActive {
		t.emit()
	}
}

// Reset drops everything and restarts calibration from now.
func (t *SensorTracker) Reset(now time.Time) {
	t.clear()
	t.state = StateUninitialized
	t.Start(now)
}

// StaticTracker is the fallback when motion sensors are unavailable: it sits
// at the room centre facing north and ignores samples.
type StaticTracker struct {
	cfg      TrackerConfig
	listener func(Snapshot)
}

// NewStaticTracker returns an already active fallback tracker.
func NewStaticTracker(cfg TrackerConfig) *StaticTracker {
	return &StaticTracker{cfg: cfg}
}

// OnUpdate registers fn and immediately hands it the fixed snapshot.
func (t *StaticTracker) OnUpdate(fn func(Snapshot)) {
	t.listener = fn
	t.emit()
}

func (t *StaticTracker) HandleMotion(MotionSample)           {}
func (t *StaticTracker) HandleOrientation(OrientationSample) {}
func (t *StaticTracker) Poll(time.Time)                      {}
func (t *StaticTracker) Ready() bool                         { return true }

func (t *StaticTracker) Snapshot() Snapshot {
	return Snapshot{
		Position: geo.Point{X: t.cfg.RoomWidth / 2, Y: t.cfg.RoomHeight / 2},
		State:    StateActive,
	}
}

func (t *StaticTracker) Recalibrate() { t.emit() }

func (t *StaticTracker) Reset(time.Time) { t.emit() }

func (t *StaticTracker) emit() {
	if t.listener != nil {
		t.listener(t.Snapshot())
	}
}
