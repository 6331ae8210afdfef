package frame

import "fmt"

// State is the lifecycle position of a frame slot.
type State uint8

const (
	// Idle slots have no pending GPU work and may start recording.
	Idle State = iota
	// Recording slots are being filled by the renderer.
	Recording
	// Submitted slots have work queued on the device.
	Submitted
	// Presented slots have handed their image to the surface.
	Presented
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Submitted:
		return "Submitted"
	case Presented:
		return "Presented"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// CanTransition reports whether a slot in state s may move to state to.
// Recording may fall back to Idle when the frame is aborted before submission.
func (s State) CanTransition(to State) bool {
	switch s {
	case Idle:
		return to == Recording
	case Recording:
		return to == Submitted || to == Idle
	case Submitted:
		return to == Presented
	case Presented:
		return to == Idle
	}
	return false
}
