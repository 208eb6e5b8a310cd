package dto

import (
	"io"

	"anoa.com/itdesk/internal/entity"
)

type CreateTicketRequest struct {
	Title       string `form:"title" binding:"required,min=5,max=200"`
	Description string `form:"description" binding:"required,min=10"`
	Category    string `form:"category" binding:"required,oneof=Hardware Software Network Other"`
	Priority    string `form:"priority" binding:"required,oneof=Low Medium High Critical"`
	SystemName  string `form:"system_name" binding:"max=100"`
}

type CommentRequest struct {
	Comment string `form:"comment" binding:"required,min=5"`
}

type UpdateStatusRequest struct {
	Status       string `form:"status" binding:"required,oneof=Open 'In Progress' Resolved Closed"`
	AdminComment string `form:"admin_comment"`
}

type AssignRequest struct {
	AssignedTo uint `form:"assigned_to" binding:"required"`
}

// EditAssignmentRequest accepts "0" or an empty value to clear the assignee.
type EditAssignmentRequest struct {
	AssignedTo string `form:"assigned_to"`
}

type UserTicketFilter struct {
	Status string `form:"status"`
	Search string `form:"search"`
}

// Upload is one file submitted with a new ticket.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// ClientInfo describes the request a ticket was filed from.
type ClientInfo struct {
	ForwardedFor string
	RealIP       string
	RemoteAddr   string
	UserAgent    string
}

type CreateResult struct {
	Ticket *entity.Ticket
	// Warnings lists one message per uploaded file that was skipped.
	Warnings []string
}
