package models

import "time"

// Student is the minimal identity record the checkout flow needs. The
// session/identity provider owns authentication; handlers receive an
// already-resolved student id.
type Student struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
