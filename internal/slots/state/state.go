// Package state is the slot lifecycle:
//
//	FREE <-> BUSY      owner, any number of times
//	FREE  -> BOOKED    booking only
//	BOOKED -> FREE     cancellation only
package state

import (
	"fmt"

	slotserrors "minidoodle/internal/slots/errors"
	"minidoodle/pkg/model"
)

type Actor int

const (
	// ActorOwner is the calendar owner editing a slot directly.
	ActorOwner Actor = iota
	ActorBooking
	ActorCancellation
)

func (a Actor) String() string {
	switch a {
	case ActorOwner:
		return "owner"
	case ActorBooking:
		return "booking"
	case ActorCancellation:
		return "cancellation"
	}
	return fmt.Sprintf("actor(%d)", int(a))
}

// Transition checks whether actor may move a slot from one status to another.
// An owner touching a BOOKED slot gets ErrSlotLocked; every other illegal
// move gets ErrInvalidStateTransition.
func Transition(from, to model.SlotStatus, actor Actor) error {
	if !from.Valid() || !to.Valid() {
		return invalid(from, to, actor)
	}

	switch actor {
	case ActorOwner:
		if from == model.SlotBooked {
			return slotserrors.ErrSlotLocked
		}
		if to == model.SlotBooked {
			return invalid(from, to, actor)
		}
		return nil
	case ActorBooking:
		if from == model.SlotFree && to == model.SlotBooked {
			return nil
		}
	case ActorCancellation:
		if from == model.SlotBooked && to == model.SlotFree {
			return nil
		}
	}
	return invalid(from, to, actor)
}

// CanEdit reports whether the slot's interval may be changed.
func CanEdit(status model.SlotStatus) error {
	if status == model.SlotBooked {
		return slotserrors.ErrSlotLocked
	}
	return nil
}

func CanDelete(status model.SlotStatus) error {
	if status == model.SlotBooked {
		return slotserrors.ErrSlotLocked
	}
	return nil
}

func invalid(from, to model.SlotStatus, actor Actor) error {
	return fmt.Errorf("%w: %s -> %s by %s", slotserrors.ErrInvalidStateTransition, from, to, actor)
}
