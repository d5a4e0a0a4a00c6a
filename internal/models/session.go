package models

import (
	"time"
)

// Session status values.
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

// DataBag is the free-form per-session payload. Handlers accumulate
// step-local fields in it; merges are additive and never drop prior keys.
type DataBag map[string]any

// Session is one dialogue session. At most one active session exists per
// (channel, owner) pair; creating a new one ends any prior active session.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Channel   string    `json:"channel" gorm:"index:idx_sessions_channel_owner"`
	Owner     string    `json:"owner" gorm:"index:idx_sessions_channel_owner"`
	State     string    `json:"state"`
	Data      DataBag   `json:"data" gorm:"serializer:json"`
	Status    string    `json:"status" gorm:"index"`
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}

// Active reports whether the session is usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return s.Status == SessionActive && now.Before(s.ExpiresAt)
}

// DataString returns the string value stored under key, if any.
func (s *Session) DataString(key string) (string, bool) {
	if s.Data == nil {
		return "", false
	}
	v, ok := s.Data[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// DataFloat returns the numeric value stored under key, if any. JSON
// round-trips store numbers as float64.
func (s *Session) DataFloat(key string) (float64, bool) {
	if s.Data == nil {
		return 0, false
	}
	switch v := s.Data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Merge applies patch on top of the existing bag without dropping keys.
func (d DataBag) Merge(patch DataBag) DataBag {
	if d == nil {
		d = make(DataBag, len(patch))
	}
	for k, v := range patch {
		d[k] = v
	}
	return d
}

// Copy returns a shallow copy of the bag.
func (d DataBag) Copy() DataBag {
	out := make(DataBag, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
