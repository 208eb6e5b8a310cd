package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/modules/ticket/dto"
	ticketRepo "anoa.com/itdesk/internal/modules/ticket/repository"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/ratelimiter"
	"anoa.com/itdesk/pkg/storage"
	"gorm.io/gorm"
)

const actionCreateTicket = "create_ticket"

// Notifier tells an assignee about a new assignment. Failures are the
// notifier's own concern and never undo the assignment.
type Notifier interface {
	TicketAssigned(ctx context.Context, ticket *entity.Ticket, assignee *entity.User)
}

// Indexer keeps the full-text search index in step with ticket writes.
type Indexer interface {
	IndexTicket(ticket *entity.Ticket) error
}

type Service interface {
	CreateTicket(ctx context.Context, actor *entity.User, req dto.CreateTicketRequest, uploads []dto.Upload, client dto.ClientInfo) (*dto.CreateResult, error)
	GetTicket(ctx context.Context, actor *entity.User, id uint) (*entity.Ticket, error)
	AddComment(ctx context.Context, actor *entity.User, id uint, req dto.CommentRequest) error
	UpdateStatus(ctx context.Context, actor *entity.User, id uint, req dto.UpdateStatusRequest) (*entity.Ticket, error)
	Assign(ctx context.Context, actor *entity.User, id uint, req dto.AssignRequest) (*entity.Ticket, error)
	UpdateAssignment(ctx context.Context, actor *entity.User, id uint, req dto.EditAssignmentRequest) (*entity.Ticket, error)
	ListForUser(ctx context.Context, actor *entity.User, filter dto.UserTicketFilter) ([]*entity.Ticket, error)
	ListAssignees(ctx context.Context) ([]*entity.User, error)
}

type Options struct {
	// CreateCooldown is the per-user pause between ticket submissions.
	CreateCooldown time.Duration
}

type service struct {
	ticketRepo  ticketRepo.Repository
	userRepo    userRepo.UserRepository
	fileStorage storage.FileStorage
	limiter     *ratelimiter.Limiter
	notifier    Notifier
	indexer     Indexer
	opts        Options
	log         *slog.Logger
	now         func() time.Time
}

func NewService(ticketRepo ticketRepo.Repository, userRepo userRepo.UserRepository, fileStorage storage.FileStorage, limiter *ratelimiter.Limiter, notifier Notifier, indexer Indexer, opts Options, log *slog.Logger) Service {
	return &service{
		ticketRepo:  ticketRepo,
		userRepo:    userRepo,
		fileStorage: fileStorage,
		limiter:     limiter,
		notifier:    notifier,
		indexer:     indexer,
		opts:        opts,
		log:         log.With("component", "ticket"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) CreateTicket(ctx context.Context, actor *entity.User, req dto.CreateTicketRequest, uploads []dto.Upload, client dto.ClientInfo) (*dto.CreateResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	allowed, err := s.limiter.CheckAndSet(ctx, actor.ID, actionCreateTicket, s.opts.CreateCooldown)
	if err != nil {
		s.log.Warn("rate limit check failed", "user_id", actor.ID, "error", err)
	} else if !allowed {
		ttl, _ := s.limiter.TTL(ctx, actor.ID, actionCreateTicket)
		return nil, apperror.New(http.StatusTooManyRequests,
			fmt.Sprintf("Please wait %s before submitting another ticket.", ttl.Round(time.Second)),
			&ratelimiter.RateLimitError{Message: "ticket cooldown active", RetryAfter: ttl})
	}
	creationFailed := true
	defer func() {
		if creationFailed && allowed {
			_ = s.limiter.Clear(context.WithoutCancel(ctx), actor.ID, actionCreateTicket)
		}
	}()

	now := s.now()
	ip := ResolveClientIP(client.ForwardedFor, client.RealIP, client.RemoteAddr)
	systemName := ResolveSystemName(req.SystemName, actor.SystemName, client.UserAgent, client.RemoteAddr)

	result := &dto.CreateResult{}
	var stored []string
	var imageFilename *string
	var attachments []entity.Attachment

	for _, up := range uploads {
		if up.Filename == "" {
			continue
		}
		if !IsAllowedFile(up.Filename) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("File '%s' was skipped: file type not allowed.", up.Filename))
			continue
		}

		name := storage.UniqueName(up.Filename, now)
		if err := s.saveUpload(ctx, up, name); err != nil {
			s.log.Warn("upload failed", "file", up.Filename, "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("File '%s' could not be uploaded.", up.Filename))
			continue
		}
		stored = append(stored, name)

		if imageFilename == nil && IsImageFile(up.Filename) {
			imageFilename = &name
			continue
		}
		attachments = append(attachments, entity.Attachment{Filename: name, CreatedAt: now})
	}

	actorID := actor.ID
	ticket := &entity.Ticket{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Category:       req.Category,
		Priority:       req.Priority,
		Status:         entity.StatusOpen,
		UserID:         &actorID,
		UserName:       actor.FullName(),
		UserIPAddress:  ip,
		UserSystemName: systemName,
		ImageFilename:  imageFilename,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	author := *actor
	author.IPAddress = ip
	author.SystemName = systemName

	if err := s.ticketRepo.Create(ctx, ticket, attachments, &author); err != nil {
		s.removeStored(stored)
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	creationFailed = false

	actor.IPAddress = ip
	actor.SystemName = systemName
	ticket.User = actor
	s.index(ticket)

	s.log.Info("ticket created", "ticket_id", ticket.ID, "ticket_number", ticket.TicketNumber,
		"user_id", actor.ID, "attachments", len(attachments), "skipped_files", len(result.Warnings))

	result.Ticket = ticket
	return result, nil
}

func (s *service) saveUpload(ctx context.Context, up dto.Upload, name string) error {
	rc, err := up.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return s.fileStorage.Save(ctx, rc, name)
}

// removeStored deletes files already written for a ticket whose insert failed.
func (s *service) removeStored(names []string) {
	ctx := context.Background()
	for _, name := range names {
		if err := s.fileStorage.Delete(ctx, name); err != nil {
			s.log.Error("failed to remove orphaned upload", "file", name, "error", err)
		}
	}
}

func (s *service) GetTicket(ctx context.Context, actor *entity.User, id uint) (*entity.Ticket, error) {
	ticket, err := s.findTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && !ticket.IsOwnedBy(actor.ID) {
		return nil, fmt.Errorf("ticket %d belongs to another user: %w", id, apperror.ErrForbidden)
	}
	return ticket, nil
}

func (s *service) AddComment(ctx context.Context, actor *entity.User, id uint, req dto.CommentRequest) error {
	ticket, err := s.GetTicket(ctx, actor, id)
	if err != nil {
		return err
	}

	text := strings.TrimSpace(req.Comment)
	if utf8.RuneCountInString(text) < 5 {
		return apperror.NewValidationError("Comment", "Comment must be at least 5 characters long.")
	}

	comment := &entity.TicketComment{
		TicketID:  ticket.ID,
		UserID:    actor.ID,
		Comment:   text,
		CreatedAt: s.now(),
	}
	if err := s.ticketRepo.AddComment(ctx, comment); err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

func (s *service) UpdateStatus(ctx context.Context, actor *entity.User, id uint, req dto.UpdateStatusRequest) (*entity.Ticket, error) {
	if !actor.IsSuperAdmin() {
		return nil, fmt.Errorf("only super admins can change ticket status: %w", apperror.ErrForbidden)
	}
	if !entity.ValidStatus(req.Status) {
		return nil, apperror.NewValidationError("Status", "Status has an unsupported value.")
	}

	ticket, err := s.findTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	old := ticket.ApplyStatus(req.Status, now)

	var comment *entity.TicketComment
	if text, ok := entity.StatusComment(old, req.Status, strings.TrimSpace(req.AdminComment)); ok {
		comment = &entity.TicketComment{
			TicketID:  ticket.ID,
			UserID:    actor.ID,
			Comment:   text,
			CreatedAt: now,
		}
	}

	if err := s.ticketRepo.UpdateStatus(ctx, ticket, comment); err != nil {
		return nil, fmt.Errorf("failed to update ticket status: %w", err)
	}

	s.log.Info("ticket status updated", "ticket_id", ticket.ID, "from", old, "to", ticket.Status, "by", actor.ID)
	s.index(ticket)
	return ticket, nil
}

func (s *service) Assign(ctx context.Context, actor *entity.User, id uint, req dto.AssignRequest) (*entity.Ticket, error) {
	if !actor.IsSuperAdmin() {
		return nil, fmt.Errorf("only super admins can assign tickets: %w", apperror.ErrForbidden)
	}

	ticket, err := s.findTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	assignee, err := s.findAssignee(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}

	now := s.now()
	actorID := actor.ID
	ticket.AssignedTo = &assignee.ID
	ticket.AssignedBy = &actorID
	ticket.AssignedAt = &now
	ticket.UpdatedAt = now
	ticket.Assignee = assignee

	var comment *entity.TicketComment
	if ticket.Status == entity.StatusOpen {
		old := ticket.ApplyStatus(entity.StatusInProgress, now)
		text, _ := entity.StatusComment(old, entity.StatusInProgress, "")
		comment = &entity.TicketComment{
			TicketID:  ticket.ID,
			UserID:    actor.ID,
			Comment:   text,
			CreatedAt: now,
		}
	}

	if err := s.ticketRepo.Assign(ctx, ticket, comment); err != nil {
		return nil, fmt.Errorf("failed to assign ticket: %w", err)
	}

	s.log.Info("ticket assigned", "ticket_id", ticket.ID, "assignee", assignee.ID, "by", actor.ID)
	s.index(ticket)

	if s.notifier != nil {
		s.notifier.TicketAssigned(ctx, ticket, assignee)
	}
	return ticket, nil
}

func (s *service) UpdateAssignment(ctx context.Context, actor *entity.User, id uint, req dto.EditAssignmentRequest) (*entity.Ticket, error) {
	if !actor.IsSuperAdmin() {
		return nil, fmt.Errorf("only super admins can reassign tickets: %w", apperror.ErrForbidden)
	}

	ticket, err := s.findTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	var assignee *entity.User
	raw := strings.TrimSpace(req.AssignedTo)
	if raw != "" && raw != "0" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, apperror.NewValidationError("AssignedTo", "Select a valid Super Admin.")
		}
		if assignee, err = s.findAssignee(ctx, uint(parsed)); err != nil {
			return nil, err
		}
	}

	var assignedTo *uint
	if assignee != nil {
		assignedTo = &assignee.ID
	}

	if err := s.ticketRepo.UpdateAssignee(ctx, id, assignedTo); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ticket %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}

	ticket.AssignedTo = assignedTo
	ticket.Assignee = assignee
	s.log.Info("ticket assignment edited", "ticket_id", id, "assigned_to", assignedTo, "by", actor.ID)
	return ticket, nil
}

func (s *service) ListForUser(ctx context.Context, actor *entity.User, filter dto.UserTicketFilter) ([]*entity.Ticket, error) {
	actorID := actor.ID
	f := ticketRepo.Filter{
		UserID: &actorID,
		Search: strings.TrimSpace(filter.Search),
	}
	if filter.Status != "all" {
		f.Status = filter.Status
	}
	return s.ticketRepo.List(ctx, f, 0)
}

func (s *service) ListAssignees(ctx context.Context) ([]*entity.User, error) {
	return s.userRepo.FindByRole(ctx, entity.RoleSuperAdmin)
}

func (s *service) findTicket(ctx context.Context, id uint) (*entity.Ticket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ticket %d: %w", id, apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %d: %w", id, err)
	}
	return ticket, nil
}

func (s *service) findAssignee(ctx context.Context, id uint) (*entity.User, error) {
	assignee, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewValidationError("AssignedTo", "Select a valid Super Admin.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assignee %d: %w", id, err)
	}
	if !assignee.IsSuperAdmin() {
		return nil, apperror.NewValidationError("AssignedTo", "Tickets can only be assigned to Super Admins.")
	}
	return assignee, nil
}

func (s *service) index(ticket *entity.Ticket) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexTicket(ticket); err != nil {
		s.log.Warn("failed to index ticket", "ticket_id", ticket.ID, "error", err)
	}
}

func validateCreate(req dto.CreateTicketRequest) error {
	fields := map[string]string{}
	if n := utf8.RuneCountInString(strings.TrimSpace(req.Title)); n < 5 || n > 200 {
		fields["Title"] = "Title must be between 5 and 200 characters long."
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Description)) < 10 {
		fields["Description"] = "Description must be at least 10 characters long."
	}
	if !entity.ValidCategory(req.Category) {
		fields["Category"] = "Category has an unsupported value."
	}
	if !entity.ValidPriority(req.Priority) {
		fields["Priority"] = "Priority has an unsupported value."
	}
	if len(fields) > 0 {
		return &apperror.ValidationError{Fields: fields}
	}
	return nil
}
