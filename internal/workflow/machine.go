package workflow

import (
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"

	"github.com/driveworks/drivehub/pkg/models"
)

// ErrInvalidTransition is returned when an operation would move an execution
// to a status its current status does not permit.
var ErrInvalidTransition = errors.New("invalid execution status transition")

const (
	triggerPause    = "pause"
	triggerResume   = "resume"
	triggerComplete = "complete"
	triggerFail     = "fail"
	triggerCancel   = "cancel"
)

// newStatusMachine builds the execution status machine positioned at the
// current status. Terminal statuses permit nothing.
func newStatusMachine(current models.ExecutionStatus) *stateless.StateMachine {
	sm := stateless.NewStateMachine(current)

	sm.Configure(models.ExecutionStatusRunning).
		Permit(triggerPause, models.ExecutionStatusPaused).
		Permit(triggerComplete, models.ExecutionStatusCompleted).
		Permit(triggerFail, models.ExecutionStatusFailed).
		Permit(triggerCancel, models.ExecutionStatusCancelled)

	sm.Configure(models.ExecutionStatusPaused).
		Permit(triggerResume, models.ExecutionStatusRunning).
		Permit(triggerFail, models.ExecutionStatusFailed).
		Permit(triggerCancel, models.ExecutionStatusCancelled)

	sm.Configure(models.ExecutionStatusCompleted)
	sm.Configure(models.ExecutionStatusFailed)
	sm.Configure(models.ExecutionStatusCancelled)

	return sm
}

// transition validates and applies one trigger against a status, returning
// the resulting status.
func transition(from models.ExecutionStatus, trigger string) (models.ExecutionStatus, error) {
	sm := newStatusMachine(from)
	if err := sm.Fire(trigger); err != nil {
		return "", fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, trigger, from)
	}
	return sm.MustState().(models.ExecutionStatus), nil
}
