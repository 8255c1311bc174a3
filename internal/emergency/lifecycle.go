package emergency

import (
	"context"

	"backend-mchanga/internal/shared/apperr"

	"github.com/looplab/fsm"
)

// Events are named after the status they move to. Closed is terminal.
var lifecycleEvents = fsm.Events{
	{Name: StatusInProgress, Src: []string{StatusReported, StatusResolved}, Dst: StatusInProgress},
	{Name: StatusResolved, Src: []string{StatusReported, StatusInProgress}, Dst: StatusResolved},
	{Name: StatusClosed, Src: []string{StatusReported, StatusInProgress, StatusResolved}, Dst: StatusClosed},
}

// transition checks that an emergency may move from one status to another.
// Repeating the current status is accepted except for closed, which is terminal.
func transition(ctx context.Context, from, to string) error {
	if !validStatus(to) {
		return apperr.Invalid("unknown status %q", to)
	}
	if from == to && from != StatusClosed {
		return nil
	}
	machine := fsm.NewFSM(from, lifecycleEvents, fsm.Callbacks{})
	if err := machine.Event(ctx, to); err != nil {
		return apperr.Invalid("cannot move emergency from %s to %s", from, to)
	}
	return nil
}
