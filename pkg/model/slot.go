package model

import (
	"encoding/json"
	"time"
)

type SlotStatus string

const (
	SlotFree   SlotStatus = "FREE"
	SlotBusy   SlotStatus = "BUSY"
	SlotBooked SlotStatus = "BOOKED"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotFree, SlotBusy, SlotBooked:
		return true
	}
	return false
}

// Slot is a half-open [StartTime, EndTime) interval on a calendar.
// Version advances on every persisted change.
type Slot struct {
	ID         string     `json:"id" bson:"_id"`
	CalendarID string     `json:"calendar_id" bson:"calendar_id"`
	StartTime  time.Time  `json:"start_time" bson:"start_time"`
	EndTime    time.Time  `json:"end_time" bson:"end_time"`
	Status     SlotStatus `json:"status" bson:"status"`
	Version    int64      `json:"version" bson:"version"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

func (s *Slot) DurationMinutes() int64 {
	return int64(s.EndTime.Sub(s.StartTime) / time.Minute)
}

func (s Slot) MarshalJSON() ([]byte, error) {
	type slotAlias Slot
	return json.Marshal(struct {
		slotAlias
		DurationMinutes int64 `json:"duration_minutes"`
	}{
		slotAlias:       slotAlias(s),
		DurationMinutes: s.DurationMinutes(),
	})
}

// SlotInput describes a requested interval. DurationMinutes, when set,
// takes precedence over EndTime.
type SlotInput struct {
	StartTime       *time.Time `json:"start_time" validate:"required"`
	EndTime         *time.Time `json:"end_time,omitempty" validate:"required_without=DurationMinutes"`
	DurationMinutes *int       `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
}

type SlotCreateRequest struct {
	CalendarID string `json:"calendar_id,omitempty" validate:"required_without=UserID"`
	UserID     string `json:"user_id,omitempty" validate:"required_without=CalendarID"`
	SlotInput
}

type SlotStatusChange struct {
	Status SlotStatus `json:"status" validate:"required,oneof=FREE BUSY BOOKED"`
}

type Availability struct {
	FreeSlots  []*Slot   `json:"free_slots"`
	BusySlots  []*Slot   `json:"busy_slots"`
	TotalFree  int       `json:"total_free_slots"`
	TotalBusy  int       `json:"total_busy_slots"`
	RangeStart time.Time `json:"range_start"`
	RangeEnd   time.Time `json:"range_end"`
}
