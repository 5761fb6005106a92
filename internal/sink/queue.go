package sink

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// pcmQueue hands PCM from the decode loop to the device callback
type pcmQueue struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newPCMQueue(limit int) *pcmQueue {
	return &pcmQueue{limit: limit}
}

// push appends as much of p as fits and returns the bytes accepted
func (q *pcmQueue) push(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	room := q.limit - len(q.buf)
	if room <= 0 {
		return 0
	}
	if len(p) > room {
		p = p[:room]
	}
	q.buf = append(q.buf, p...)
	return len(p)
}

// pull fills out from the queue and pads the rest with silence
func (q *pcmQueue) pull(out []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := copy(out, q.buf)
	q.buf = q.buf[:copy(q.buf, q.buf[n:])]
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	return n
}

func (q *pcmQueue) buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *pcmQueue) reset() {
	q.mu.Lock()
	q.buf = q.buf[:0]
	q.mu.Unlock()
}

// applyVolume scales native-endian S16 samples in place
func applyVolume(samples []byte, volume float32) {
	if volume == 1.0 {
		return
	}
	if volume < 0 {
		slog.Warn("negative volume clamped to silence", "volume", volume)
		volume = 0
	}
	for i := 0; i < len(samples)-1; i += 2 {
		sample := int16(binary.NativeEndian.Uint16(samples[i:]))
		scaled := float32(sample) * volume
		switch {
		case scaled > 32767:
			scaled = 32767
		case scaled < -32768:
			scaled = -32768
		}
		binary.NativeEndian.PutUint16(samples[i:], uint16(int16(scaled)))
	}
}
