package models

import "time"

// Customer is a registered chatbot user. Owner is the channel address (phone
// number); AccountNumber links to the core-banking account resolved during
// registration.
type Customer struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Owner         string    `json:"owner" gorm:"uniqueIndex"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	PINHash       string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
