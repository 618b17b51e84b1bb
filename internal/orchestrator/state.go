package orchestrator

// State is the conversation lifecycle value. Exactly one orchestrator
// owns it; it is written only from inside the event loop.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Mode selects what happens after a turn settles: continuous re-arms
// capture by itself, push-to-talk waits for the user.
type Mode int

const (
	ModeContinuous Mode = iota
	ModePushToTalk
)
