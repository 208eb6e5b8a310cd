package entity

import (
	"fmt"
	"time"
)

const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
)

const (
	CategoryHardware = "Hardware"
	CategorySoftware = "Software"
	CategoryNetwork  = "Network"
	CategoryOther    = "Other"
)

const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

var (
	Statuses   = []string{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
	Categories = []string{CategoryHardware, CategorySoftware, CategoryNetwork, CategoryOther}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
)

// DeletedUserSuffix marks the author snapshot of tickets whose author was removed.
const DeletedUserSuffix = " (Deleted User)"

// Ticket is a reported unit of work. UserName, UserIPAddress, UserSystemName
// and ImageFilename are snapshots taken when the ticket was filed and are not
// kept in sync with the live User row.
type Ticket struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	TicketNumber   string  `gorm:"size:20;index" json:"ticket_number"`
	Title          string  `gorm:"size:200;not null" json:"title"`
	Description    string  `gorm:"type:text;not null" json:"description"`
	Category       string  `gorm:"size:50;not null;index" json:"category"`
	Priority       string  `gorm:"size:20;not null;index" json:"priority"`
	Status         string  `gorm:"size:20;not null;default:Open;index" json:"status"`
	UserID         *uint   `gorm:"index" json:"user_id"`
	UserName       string  `gorm:"size:160" json:"user_name"`
	UserIPAddress  string  `gorm:"size:64" json:"user_ip_address"`
	UserSystemName string  `gorm:"size:100" json:"user_system_name"`
	ImageFilename  *string `gorm:"size:255;index" json:"image_filename,omitempty"`

	AssignedTo *uint      `gorm:"index" json:"assigned_to"`
	AssignedBy *uint      `json:"assigned_by"`
	AssignedAt *time.Time `json:"assigned_at"`

	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at"`

	User        *User           `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Assignee    *User           `gorm:"foreignKey:AssignedTo;constraint:OnDelete:SET NULL" json:"assignee,omitempty"`
	Assigner    *User           `gorm:"foreignKey:AssignedBy;constraint:OnDelete:SET NULL" json:"assigner,omitempty"`
	Comments    []TicketComment `gorm:"constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	Attachments []Attachment    `gorm:"constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

func FormatTicketNumber(id uint) string {
	return fmt.Sprintf("TKT-%06d", id)
}

func (t *Ticket) IsOwnedBy(userID uint) bool {
	return t.UserID != nil && *t.UserID == userID
}

// ApplyStatus moves the ticket to status and keeps ResolvedAt consistent:
// entering Resolved stamps it, any other status clears it. It returns the
// previous status.
func (t *Ticket) ApplyStatus(status string, now time.Time) string {
	old := t.Status
	if status == StatusResolved {
		if old != StatusResolved || t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
	} else {
		t.ResolvedAt = nil
	}
	t.Status = status
	t.UpdatedAt = now
	return old
}

// StatusComment builds the lifecycle comment for a status edit. It returns
// false when nothing happened worth recording.
func StatusComment(oldStatus, newStatus, note string) (string, bool) {
	if note != "" {
		return fmt.Sprintf("Status updated to '%s'. %s", newStatus, note), true
	}
	if oldStatus != newStatus {
		return fmt.Sprintf("Status updated from '%s' to '%s'", oldStatus, newStatus), true
	}
	return "", false
}

type TicketComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TicketID  uint      `gorm:"not null;index" json:"ticket_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
}

type Attachment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TicketID  uint      `gorm:"not null;index" json:"ticket_id"`
	Filename  string    `gorm:"size:255;not null;uniqueIndex" json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

func ValidStatus(s string) bool {
	return contains(Statuses, s)
}

func ValidCategory(s string) bool {
	return contains(Categories, s)
}

func ValidPriority(s string) bool {
	return contains(Priorities, s)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
