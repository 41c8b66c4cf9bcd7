package appointment

import (
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Action is an explicit lifecycle transition. Status never changes any
// other way.
type Action string

const (
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
	ActionQueue    Action = "queue"
)

type transition struct {
	target  model.AppointmentStatus
	payment model.PaymentStatus
	event   string
	audit   string
}

var transitions = map[Action]transition{
	ActionCancel: {
		target:  model.AppointmentStatusCanceled,
		payment: model.PaymentStatusFailed,
		event:   model.EventAppointmentCanceled,
		audit:   audit.ActionCancel,
	},
	ActionComplete: {
		target:  model.AppointmentStatusCompleted,
		payment: model.PaymentStatusPaid,
		event:   model.EventAppointmentCompleted,
		audit:   audit.ActionComplete,
	},
	ActionQueue: {
		target: model.AppointmentStatusInQueue,
		event:  model.EventAppointmentQueued,
		audit:  audit.ActionQueue,
	},
}

// Next returns the status an action leads to. Completed and canceled are
// final: every action on them is rejected.
func Next(current model.AppointmentStatus, action Action) (model.AppointmentStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("unknown appointment action %q", action)
	}
	if current.IsTerminal() {
		return "", apperrors.NewValidation("status",
			fmt.Sprintf("Cannot %s an appointment that is already %s.", action, current))
	}
	return t.target, nil
}

// PaymentEffect is the payment status an action sets, if any.
func PaymentEffect(action Action) (model.PaymentStatus, bool) {
	t := transitions[action]
	return t.payment, t.payment != ""
}
