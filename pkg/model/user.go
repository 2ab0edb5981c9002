package model

import "time"

type User struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email" bson:"email" validate:"required,email,max=255"`
	Name      string    `json:"name" bson:"name" validate:"required,min=1,max=255"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type UserInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

type UserUpdate struct {
	Email string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Name  string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
}

// UserDetails is a user together with the calendar created for them.
type UserDetails struct {
	*User
	Calendar *Calendar `json:"calendar"`
}
