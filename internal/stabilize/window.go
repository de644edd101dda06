package stabilize

import "time"

// eventWindow is a timestamp ring used for blink, slow-blink and
// microsleep counters. Entries are pruned on access, never by a timer.
type eventWindow struct {
	duration time.Duration
	times    []time.Time
	head     int
}

func newEventWindow(duration time.Duration) *eventWindow {
	return &eventWindow{duration: duration, times: make([]time.Time, 0, 64)}
}

func (w *eventWindow) Add(ts time.Time) {
	w.times = append(w.times, ts)
}

func (w *eventWindow) Count(now time.Time) int {
	w.evict(now.Add(-w.duration))
	return len(w.times) - w.head
}

func (w *eventWindow) evict(cutoff time.Time) {
	for w.head < len(w.times) {
		if !w.times[w.head].Before(cutoff) {
			break
		}
		w.head++
	}
	if w.head > 0 && w.head*2 >= len(w.times) {
		w.times = append([]time.Time{}, w.times[w.head:]...)
		w.head = 0
	}
}

func (w *eventWindow) Reset() {
	w.times = w.times[:0]
	w.head = 0
}

// frameWindow tags each frame open/closed for PERCLOS.
type frameEntry struct {
	ts     time.Time
	closed bool
}

type frameWindow struct {
	duration time.Duration
	frames   []frameEntry
	head     int
	closed   int
}

func newFrameWindow(duration time.Duration) *frameWindow {
	return &frameWindow{duration: duration, frames: make([]frameEntry, 0, 512)}
}

func (w *frameWindow) Add(ts time.Time, closed bool) {
	w.frames = append(w.frames, frameEntry{ts: ts, closed: closed})
	if closed {
		w.closed++
	}
}

// Fraction reports the closed-frame share of the trailing window, or 0
// when fewer than minFrames frames are buffered.
func (w *frameWindow) Fraction(now time.Time, minFrames int) float64 {
	w.evict(now.Add(-w.duration))
	n := len(w.frames) - w.head
	if n < minFrames || n == 0 {
		return 0
	}
	return float64(w.closed) / float64(n)
}

func (w *frameWindow) evict(cutoff time.Time) {
	for w.head < len(w.frames) {
		f := w.frames[w.head]
		if !f.ts.Before(cutoff) {
			break
		}
		if f.closed {
			w.closed--
		}
		w.head++
	}
	if w.head > 0 && w.head*2 >= len(w.frames) {
		w.frames = append([]frameEntry{}, w.frames[w.head:]...)
		w.head = 0
	}
}

func (w *frameWindow) Reset() {
	w.frames = w.frames[:0]
	w.head = 0
	w.closed = 0
}
