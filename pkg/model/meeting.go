package model

import "time"

// Meeting exists exactly while its slot is BOOKED. SlotID is unique.
// StartTime and EndTime mirror the slot at booking time.
type Meeting struct {
	ID             string    `json:"id" bson:"_id"`
	SlotID         string    `json:"slot_id" bson:"slot_id"`
	CalendarID     string    `json:"calendar_id" bson:"calendar_id"`
	OwnerID        string    `json:"owner_id" bson:"owner_id"`
	Title          string    `json:"title" bson:"title"`
	Description    string    `json:"description,omitempty" bson:"description"`
	ParticipantIDs []string  `json:"participant_ids" bson:"participant_ids"`
	StartTime      time.Time `json:"start_time" bson:"start_time"`
	EndTime        time.Time `json:"end_time" bson:"end_time"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

type MeetingInput struct {
	SlotID         string   `json:"slot_id" validate:"required"`
	Title          string   `json:"title" validate:"required,min=1,max=255"`
	Description    string   `json:"description,omitempty" validate:"max=1000"`
	ParticipantIDs []string `json:"participant_ids,omitempty" validate:"omitempty,max=200,dive,required"`
}

// MeetingUpdate replaces title and description. Participants are replaced
// only when ParticipantIDs is non-nil.
type MeetingUpdate struct {
	Title          string    `json:"title" validate:"required,min=1,max=255"`
	Description    string    `json:"description,omitempty" validate:"max=1000"`
	ParticipantIDs *[]string `json:"participant_ids,omitempty" validate:"omitempty,max=200,dive,required"`
}
