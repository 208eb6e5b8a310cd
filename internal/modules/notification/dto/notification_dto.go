package dto

import "time"

const TypeTicketAssigned = "ticket_assigned"

// Event is the JSON payload pushed to a user's live notification channel.
type Event struct {
	Type         string    `json:"type"`
	TicketID     uint      `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}
