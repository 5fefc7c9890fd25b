package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account that can assert mappings.
type User struct {
	ID        uuid.UUID `json:"-"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
