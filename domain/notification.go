package domain

import "time"

// Notification is an append-only message in a recipient's log. Only the
// read flag is ever mutated after creation.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"email"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
