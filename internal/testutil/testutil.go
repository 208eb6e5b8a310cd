// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"anoa.com/itdesk/internal/bootstrap"
	"anoa.com/itdesk/internal/entity"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Password is the plain-text password of every user made by CreateUser.
const Password = "secret123"

// NewDB opens a migrated in-memory SQLite database. A single connection keeps
// every query on the same in-memory schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Discard,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, bootstrap.Migrate(db))
	return db
}

func NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateUser inserts a user whose password is Password.
func CreateUser(t *testing.T, db *gorm.DB, username, role string) *entity.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &entity.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		FirstName:    "First" + username,
		LastName:     "Last",
		Department:   "IT",
		Role:         role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTicket inserts a ticket authored by author at createdAt.
func CreateTicket(t *testing.T, db *gorm.DB, author *entity.User, title string, createdAt time.Time) *entity.Ticket {
	t.Helper()

	ticket := &entity.Ticket{
		Title:       title,
		Description: "Something is broken and needs fixing.",
		Category:    entity.CategoryHardware,
		Priority:    entity.PriorityMedium,
		Status:      entity.StatusOpen,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if author != nil {
		ticket.UserID = &author.ID
		ticket.UserName = author.FullName()
	}
	require.NoError(t, db.Omit("User", "Assignee", "Assigner").Create(ticket).Error)

	ticket.TicketNumber = entity.FormatTicketNumber(ticket.ID)
	require.NoError(t, db.Model(ticket).UpdateColumn("ticket_number", ticket.TicketNumber).Error)
	return ticket
}
