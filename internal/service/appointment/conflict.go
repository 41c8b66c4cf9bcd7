package appointment

import (
	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// ConflictMode selects how an existing booking is compared to a proposed one.
type ConflictMode string

const (
	// ModeOverlap rejects any intersection of [start, end) intervals.
	ModeOverlap ConflictMode = config.ConflictModeOverlap
	// ModeStartAnchored only rejects when the existing booking starts inside
	// the proposed window. A longer booking that began earlier is not seen.
	ModeStartAnchored ConflictMode = config.ConflictModeStartAnchored
)

var conflictMessages = map[model.SlotParty]string{
	model.SlotPartyDoctor:  "Doctor already has an appointment at this time",
	model.SlotPartyPatient: "Patient already has an appointment at this time",
}

// Checker decides slot conflicts over candidates already narrowed to one
// party and one day. It does no I/O.
type Checker struct {
	Mode            ConflictMode
	ReleaseCanceled bool
}

func NewChecker(cfg config.SchedulingConfig) Checker {
	mode := ConflictMode(cfg.ConflictMode)
	if mode == "" {
		mode = ModeOverlap
	}
	return Checker{Mode: mode, ReleaseCanceled: cfg.ReleaseCanceledSlots}
}

// Overlaps reports whether existing blocks a booking of [start, end).
func (c Checker) Overlaps(existing *model.Appointment, start, end model.TimeOfDay) bool {
	if !existing.IsActive {
		return false
	}
	if c.ReleaseCanceled && existing.Status == model.AppointmentStatusCanceled {
		return false
	}
	if c.Mode == ModeStartAnchored {
		return existing.AppointmentTime >= start && existing.AppointmentTime < end
	}
	return start < existing.End() && existing.AppointmentTime < end
}

// Find returns the first candidate that blocks the booking, or nil.
func (c Checker) Find(candidates []*model.Appointment, start model.TimeOfDay, duration int) *model.Appointment {
	end := start.Add(duration)
	for _, existing := range candidates {
		if c.Overlaps(existing, start, end) {
			return existing
		}
	}
	return nil
}

// ConflictError is the validation error reported for a taken slot.
func ConflictError(party model.SlotParty) *apperrors.AppError {
	msg := conflictMessages[party]
	err := apperrors.NewValidation("appointment_time", msg)
	err.Fields["conflict"] = string(party)
	return err
}
