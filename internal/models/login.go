package models

import "time"

// AuthenticatedLogin records a completed authentication for an owner. It is
// kept independent of the dialogue Session because a session can span
// re-authentication. At most one active login exists per owner.
type AuthenticatedLogin struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Owner           string    `json:"owner" gorm:"index"`
	SessionID       string    `json:"session_id"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	IsActive        bool      `json:"is_active" gorm:"index"`
	CreatedAt       time.Time `json:"created_at"`
}

// Valid reports whether the login still authenticates its owner.
func (l *AuthenticatedLogin) Valid(now time.Time) bool {
	return l.IsActive && now.Before(l.ExpiresAt)
}

// OTPChallenge stores a hashed one-time password issued to an owner on the
// asynchronous channel. The plaintext code is never persisted.
type OTPChallenge struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Owner       string     `json:"owner" gorm:"index"`
	CodeHash    string     `json:"-"`
	GeneratedAt time.Time  `json:"generated_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ConsumedAt  *time.Time `json:"consumed_at"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Expired reports whether the challenge is past its validity window.
func (o *OTPChallenge) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
