package model

import "time"

// Lease is a stored advisory lock. The key is the document id, so a second
// insert for the same key fails until the holder deletes it or it expires.
type Lease struct {
	Key       string    `bson:"_id" json:"key"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
