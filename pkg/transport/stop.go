package transport

import "sync"

// StopSignal is a one-shot broadcast used to stop a reader.
// Firing it more than once has no further effect.
type StopSignal struct {
	once sync.Once
	done chan struct{}
}

// NewStopSignal creates an unfired stop signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Fire signals all observers. It reports whether this call was the one
// that fired the signal.
func (s *StopSignal) Fire() bool {
	fired := false
	s.once.Do(func() {
		close(s.done)
		fired = true
	})
	return fired
}

// Done returns a channel that is closed once the signal fires.
func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether the signal has fired.
func (s *StopSignal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
