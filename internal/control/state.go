// Package control owns the mutable capture switch so no component
// reads ambient global state.
package control

import (
	"sync/atomic"
	"time"
)

// State tracks whether the external capture path should feed new
// entries in. Handlers flip it; the capture client polls it.
type State struct {
	capturing   atomic.Bool
	lastStarted atomic.Int64
	lastStopped atomic.Int64
}

func NewState() *State {
	return &State{}
}

func (s *State) StartCapture() {
	if s.capturing.CompareAndSwap(false, true) {
		s.lastStarted.Store(time.Now().UnixMilli())
	}
}

func (s *State) StopCapture() {
	if s.capturing.CompareAndSwap(true, false) {
		s.lastStopped.Store(time.Now().UnixMilli())
	}
}

func (s *State) Capturing() bool {
	return s.capturing.Load()
}

func (s *State) LastStarted() int64 {
	return s.lastStarted.Load()
}

func (s *State) LastStopped() int64 {
	return s.lastStopped.Load()
}
