package resolver

import (
	"sync"
	"time"
)

// StepError is one recorded pipeline failure, kept for debugging.
type StepError struct {
	At      time.Time `json:"at"`
	Step    string    `json:"step"`
	Message string    `json:"message"`
}

// errorBuffer is a fixed-size ring of the most recent step errors.
type errorBuffer struct {
	mu   sync.Mutex
	buf  []StepError
	next int
	full bool
}

func newErrorBuffer(size int) *errorBuffer {
	if size <= 0 {
		size = defaultErrorBufferSize
	}
	return &errorBuffer{buf: make([]StepError, size)}
}

func (b *errorBuffer) record(e StepError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf[b.next] = e
	b.next = (b.next + 1) % len(b.buf)
	if b.next == 0 {
		b.full = true
	}
}

// list returns the recorded errors, oldest first.
func (b *errorBuffer) list() []StepError {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]StepError, b.next)
		copy(out, b.buf[:b.next])
		return out
	}
	out := make([]StepError, 0, len(b.buf))
	out = append(out, b.buf[b.next:]...)
	out = append(out, b.buf[:b.next]...)
	return out
}
