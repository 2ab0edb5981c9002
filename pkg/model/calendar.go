package model

import "time"

// Calendar is owned by exactly one user. Timezone is informational only.
type Calendar struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Timezone  string    `json:"timezone" bson:"timezone"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
