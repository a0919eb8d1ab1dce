package camera

import (
	"context"

	"github.com/looplab/fsm"
)

const (
	StateIdle             = "idle"
	StateAwaitingFocus    = "awaiting_focus"
	StateCapturingShutter = "capturing_shutter"
	StateCapturingRaw     = "capturing_raw"
	StateCapturingFinal   = "capturing_final"
	StatePersisting       = "persisting_image"
)

const (
	evCapture        = "capture"
	evFocusSucceeded = "focus_succeeded"
	evFocusFailed    = "focus_failed"
	evShutter        = "shutter"
	evRawPicture     = "raw_picture"
	evPicture        = "picture"
	evPersisted      = "persisted"
	evAbort          = "abort"
)

var captureStates = []string{
	StateAwaitingFocus,
	StateCapturingShutter,
	StateCapturingRaw,
	StateCapturingFinal,
	StatePersisting,
}

func newCaptureFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evCapture, Src: []string{StateIdle}, Dst: StateAwaitingFocus},
			{Name: evFocusSucceeded, Src: []string{StateAwaitingFocus}, Dst: StateCapturingShutter},
			{Name: evFocusFailed, Src: []string{StateAwaitingFocus}, Dst: StateIdle},
			{Name: evShutter, Src: []string{StateCapturingShutter}, Dst: StateCapturingRaw},
			{Name: evRawPicture, Src: []string{StateCapturingRaw}, Dst: StateCapturingFinal},
			{Name: evPicture, Src: []string{StateCapturingFinal}, Dst: StatePersisting},
			{Name: evPersisted, Src: []string{StatePersisting}, Dst: StateIdle},
			{Name: evAbort, Src: captureStates, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debugf("capture: %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)
}

// stopsPreview reports whether the device has stopped its preview for the picture request.
func stopsPreview(state string) bool {
	switch state {
	case StateCapturingShutter, StateCapturingRaw, StateCapturingFinal, StatePersisting:
		return true
	}
	return false
}
