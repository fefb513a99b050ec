package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that owns bookings. ResetTokenHash holds the digest of the
// outstanding password reset token, never the token itself.
type User struct {
	ID                uuid.UUID
	Email             string
	PasswordHash      string
	ResetTokenHash    *string
	ResetTokenExpires *time.Time
	CreatedAt         time.Time
}
