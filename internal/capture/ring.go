package capture

import (
	"sync"
)

// SampleRing is a thread-safe ring buffer of int16 samples. Callback-driven
// backends write device chunks into the ring from the audio thread while
// ReadFrame drains it from the engine's sampling loop.
type SampleRing struct {
	buffer []int16
	size   int
	read   int
	write  int
	mu     sync.RWMutex
}

// NewSampleRing creates a ring buffer holding up to size-1 samples
func NewSampleRing(size int) *SampleRing {
	return &SampleRing{
		buffer: make([]int16, size),
		size:   size,
	}
}

// Write appends samples to the ring. Returns the number of samples
// written; excess samples are dropped when the ring is full, keeping the
// oldest buffered audio intact rather than stalling the device callback.
func (r *SampleRing) Write(samples []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := 0
	for i := 0; i < len(samples); i++ {
		if (r.write+1)%r.size == r.read {
			break // ring full
		}
		r.buffer[r.write] = samples[i]
		r.write = (r.write + 1) % r.size
		written++
	}
	return written
}

// Read fills out with samples from the ring and returns how many were read
func (r *SampleRing) Read(out []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	read := 0
	for i := 0; i < len(out); i++ {
		if r.read == r.write {
			break // ring empty
		}
		out[i] = r.buffer[r.read]
		r.read = (r.read + 1) % r.size
		read++
	}
	return read
}

// Available returns the number of samples ready to read
func (r *SampleRing) Available() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.write >= r.read {
		return r.write - r.read
	}
	return r.size - r.read + r.write
}

// Clear discards all buffered samples
func (r *SampleRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.read = 0
	r.write = 0
}
