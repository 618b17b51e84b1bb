package orchestrator

import (
	"shimi/internal/capture"
	"shimi/internal/playback"
)

// Inbound events form one discriminated union dispatched by the loop, so
// every state mutation happens in a single place.
type event interface{ isEvent() }

type evArm struct{}
type evStopSend struct{}
type evCancel struct{}
type evClear struct{}

type evCapture struct{ ev capture.Event }

type evCompleted struct {
	gen   uint64
	reply string
	err   error
}

type evSynthesized struct {
	gen   uint64
	audio []byte
	err   error
}

type evPlayed struct {
	gen uint64
	res playback.Result
}

func (evArm) isEvent()         {}
func (evStopSend) isEvent()    {}
func (evCancel) isEvent()      {}
func (evClear) isEvent()       {}
func (evCapture) isEvent()     {}
func (evCompleted) isEvent()   {}
func (evSynthesized) isEvent() {}
func (evPlayed) isEvent()      {}
