package model

import "time"

// User is the tenant that owns snippets. The identity collaborator issues tokens whose subject
// is User.ID; this service only reads it as a partition key.
type User struct {
	ID        string    `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
