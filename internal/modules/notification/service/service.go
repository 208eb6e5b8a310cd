package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/modules/notification/dto"
	"anoa.com/itdesk/pkg/mailer"
	"github.com/redis/go-redis/v9"
)

// Channel is the redis pub/sub channel carrying a user's live events.
func Channel(userID uint) string {
	return fmt.Sprintf("user_notifications:%d", userID)
}

type NotificationService interface {
	TicketAssigned(ctx context.Context, ticket *entity.Ticket, assignee *entity.User)
	Publish(ctx context.Context, userID uint, event dto.Event) error
	// Wait blocks until queued emails have been handed to the mailer.
	Wait()
}

type notificationService struct {
	mailer      mailer.Mailer
	redisClient *redis.Client
	log         *slog.Logger
	pending     sync.WaitGroup
}

// NewNotificationService accepts a nil redis client; live events are then dropped.
func NewNotificationService(m mailer.Mailer, redisClient *redis.Client, log *slog.Logger) NotificationService {
	return &notificationService{
		mailer:      m,
		redisClient: redisClient,
		log:         log.With("component", "notification"),
	}
}

// TicketAssigned pushes a live event and emails the assignee in the
// background. Failures are logged and swallowed; the assignment is already
// committed.
func (s *notificationService) TicketAssigned(ctx context.Context, ticket *entity.Ticket, assignee *entity.User) {
	if s.mailer != nil && assignee.Email != "" {
		to, name := assignee.Email, assignee.FullName()
		ticketID, ticketNumber, assigneeID := ticket.ID, ticket.TicketNumber, assignee.ID

		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			if err := s.mailer.SendTicketAssigned(to, ticketID, ticketNumber, name); err != nil {
				s.log.Error("failed to send assignment email", "ticket_id", ticketID, "assignee", assigneeID, "error", err)
			}
		}()
	}

	event := dto.Event{
		Type:         dto.TypeTicketAssigned,
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Title:        ticket.Title,
		Message:      fmt.Sprintf("Ticket %s has been assigned to you.", ticket.TicketNumber),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Publish(context.WithoutCancel(ctx), assignee.ID, event); err != nil {
		s.log.Warn("failed to publish assignment event", "ticket_id", ticket.ID, "assignee", assignee.ID, "error", err)
	}
}

func (s *notificationService) Publish(ctx context.Context, userID uint, event dto.Event) error {
	if s.redisClient == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.redisClient.Publish(ctx, Channel(userID), payload).Err()
}

func (s *notificationService) Wait() {
	s.pending.Wait()
}
