package domain

import "time"

// User is a stored credential. It is read by the token endpoint and written
// only by the operator CLI.
type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2id PHC string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
