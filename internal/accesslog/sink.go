package accesslog

import (
	"io"
	"sync"
)

// Sink serializes every producer sharing one output stream. A single Write
// is atomic; Hold keeps the stream exclusive across many writes.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSink returns a sink writing to w. Every producer sharing stdout must
// write through the same sink.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Hold runs fn with exclusive use of the underlying writer. Writes through
// the sink from other goroutines wait until fn returns. fn must not write
// to the sink itself.
func (s *Sink) Hold(fn func(w io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.w)
}
