// Package track maintains bounded per-vessel windows of recent
// position reports, used to supply trajectory sequences to the learned
// forecaster when a request omits one.
package track

import (
	"sync"

	"darkwatch/internal/geo"
	"darkwatch/internal/predict"
)

// DefaultWindowSize comfortably covers the model's sequence length.
const DefaultWindowSize = 64

// Window is a bounded, ordered buffer of track points for one vessel,
// oldest first. Safe for concurrent use.
type Window struct {
	mu     sync.RWMutex
	max    int
	points []predict.TrackPoint
}

// NewWindow returns a window holding at most size points.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{max: size, points: make([]predict.TrackPoint, 0, size)}
}

// Add appends a point, evicting the oldest when full. Points with an
// unreported speed get one derived from the previous point when
// timestamps allow it.
func (w *Window) Add(p predict.TrackPoint) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p.Speed == 0 && len(w.points) > 0 {
		prev := w.points[len(w.points)-1]
		if speed, course, ok := DeriveMotion(prev, p); ok {
			p.Speed = speed
			p.Course = course
		}
	}

	if len(w.points) == w.max {
		copy(w.points, w.points[1:])
		w.points = w.points[:len(w.points)-1]
	}
	w.points = append(w.points, p)
}

// Points returns a copy of the window, oldest first.
func (w *Window) Points() []predict.TrackPoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]predict.TrackPoint, len(w.points))
	copy(out, w.points)
	return out
}

// Last returns the most recent point, if any.
func (w *Window) Last() (predict.TrackPoint, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.points) == 0 {
		return predict.TrackPoint{}, false
	}
	return w.points[len(w.points)-1], true
}

// Len returns the number of buffered points.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.points)
}

// Buffer holds one window per vessel.
type Buffer struct {
	mu      sync.RWMutex
	size    int
	vessels map[string]*Window
}

// NewBuffer returns a buffer whose windows hold at most size points.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Buffer{size: size, vessels: make(map[string]*Window)}
}

// Add records a point for the given vessel.
func (b *Buffer) Add(vesselID string, p predict.TrackPoint) {
	b.mu.Lock()
	w, ok := b.vessels[vesselID]
	if !ok {
		w = NewWindow(b.size)
		b.vessels[vesselID] = w
	}
	b.mu.Unlock()

	w.Add(p)
}

// RecentTrack returns up to n most recent points for the vessel,
// oldest first. An unknown vessel yields an empty slice, not an error.
func (b *Buffer) RecentTrack(vesselID string, n int) ([]predict.TrackPoint, error) {
	b.mu.RLock()
	w, ok := b.vessels[vesselID]
	b.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	points := w.Points()
	if n > 0 && len(points) > n {
		points = points[len(points)-n:]
	}
	return points, nil
}

// Vessels returns the IDs currently tracked.
func (b *Buffer) Vessels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.vessels))
	for id := range b.vessels {
		ids = append(ids, id)
	}
	return ids
}

// DeriveMotion estimates speed (knots) and course (degrees) from two
// consecutive timestamped points. Returns ok=false when the timestamps
// are missing or not strictly increasing.
func DeriveMotion(prev, cur predict.TrackPoint) (speed, course float64, ok bool) {
	if prev.Timestamp.IsZero() || cur.Timestamp.IsZero() {
		return 0, 0, false
	}
	dt := cur.Timestamp.Sub(prev.Timestamp).Hours()
	if dt <= 0 {
		return 0, 0, false
	}

	a := geo.Point{Lat: prev.Lat, Lon: prev.Lon}
	b := geo.Point{Lat: cur.Lat, Lon: cur.Lon}
	return geo.Haversine(a, b) / dt, geo.Bearing(a, b), true
}
