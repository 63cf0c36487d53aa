package vehicle

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// State is the charging state of a vehicle.
type State string

const (
	StateIdle     State = "IDLE"
	StateWaiting  State = "WAITING_FOR_CHARGE"
	StateCharging State = "CHARGING"
)

const (
	// EventEnqueue moves an idle vehicle onto the charging waitlist.
	EventEnqueue = "enqueue"
	// EventPlug starts a charge cycle, directly or from the waitlist.
	EventPlug = "plug"
	// EventUnplug ends a charge cycle.
	EventUnplug = "unplug"
	// EventLeaveQueue drops a waiting vehicle after the queue timeout.
	EventLeaveQueue = "leave_queue"
)

func newChargeFSM(onTransition func(from, to, event string)) *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: EventEnqueue, Src: []string{string(StateIdle)}, Dst: string(StateWaiting)},
			{Name: EventPlug, Src: []string{string(StateIdle), string(StateWaiting)}, Dst: string(StateCharging)},
			{Name: EventUnplug, Src: []string{string(StateCharging)}, Dst: string(StateIdle)},
			{Name: EventLeaveQueue, Src: []string{string(StateWaiting)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onTransition != nil {
					onTransition(e.Src, e.Dst, e.Event)
				}
			},
		},
	)
}

// isTransitionError reports whether err is a real rejection rather than a
// no-op transition into the current state.
func isTransitionError(err error) bool {
	if err == nil {
		return false
	}
	var noTransition fsm.NoTransitionError
	return !errors.As(err, &noTransition)
}
