package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anoa.com/itdesk/internal/entity"
	"gorm.io/gorm"
)

// Filter narrows ticket listings and aggregations. Zero values mean "any".
// Date parts are matched against created_at in UTC; CreatedFrom is inclusive
// and CreatedBefore exclusive.
type Filter struct {
	IDs           []uint
	UserID        *uint
	AssignedTo    *uint
	Status        string
	Priority      string
	Category      string
	Search        string
	Day           int
	Month         int
	Year          int
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
}

type Repository interface {
	Create(ctx context.Context, ticket *entity.Ticket, attachments []entity.Attachment, author *entity.User) error
	FindByID(ctx context.Context, id uint) (*entity.Ticket, error)
	List(ctx context.Context, filter Filter, limit int) ([]*entity.Ticket, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	CountBy(ctx context.Context, column string, filter Filter) (map[string]int64, error)
	AddComment(ctx context.Context, comment *entity.TicketComment) error
	UpdateStatus(ctx context.Context, ticket *entity.Ticket, comment *entity.TicketComment) error
	Assign(ctx context.Context, ticket *entity.Ticket, comment *entity.TicketComment) error
	UpdateAssignee(ctx context.Context, ticketID uint, assignedTo *uint) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts the ticket with its attachment rows, derives the ticket
// number from the new id and writes the client snapshot back onto author.
func (r *repository) Create(ctx context.Context, ticket *entity.Ticket, attachments []entity.Attachment, author *entity.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User", "Assignee", "Assigner", "Comments", "Attachments").Create(ticket).Error; err != nil {
			return err
		}

		ticket.TicketNumber = entity.FormatTicketNumber(ticket.ID)
		if err := tx.Model(&entity.Ticket{}).
			Where("id = ?", ticket.ID).
			UpdateColumn("ticket_number", ticket.TicketNumber).Error; err != nil {
			return err
		}

		for i := range attachments {
			attachments[i].TicketID = ticket.ID
		}
		if len(attachments) > 0 {
			if err := tx.Create(&attachments).Error; err != nil {
				return err
			}
		}
		ticket.Attachments = attachments

		if author != nil {
			if err := tx.Model(&entity.User{}).
				Where("id = ?", author.ID).
				Updates(map[string]interface{}{
					"ip_address":  author.IPAddress,
					"system_name": author.SystemName,
				}).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *repository) FindByID(ctx context.Context, id uint) (*entity.Ticket, error) {
	var ticket entity.Ticket
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Assignee").
		Preload("Assigner").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Comments.User").
		Preload("Attachments").
		First(&ticket, id).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) List(ctx context.Context, filter Filter, limit int) ([]*entity.Ticket, error) {
	var tickets []*entity.Ticket

	query := applyFilter(r.db.WithContext(ctx), filter).
		Preload("User").
		Preload("Assignee").
		Preload("Assigner").
		Order("tickets.created_at DESC").
		Order("tickets.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repository) Count(ctx context.Context, filter Filter) (int64, error) {
	var total int64
	err := applyFilter(r.db.WithContext(ctx).Model(&entity.Ticket{}), filter).Count(&total).Error
	return total, err
}

var groupableColumns = map[string]bool{
	"status":   true,
	"category": true,
	"priority": true,
}

func (r *repository) CountBy(ctx context.Context, column string, filter Filter) (map[string]int64, error) {
	if !groupableColumns[column] {
		return nil, fmt.Errorf("cannot group tickets by %q", column)
	}

	var rows []struct {
		Name  string
		Total int64
	}
	if err := applyFilter(r.db.WithContext(ctx).Model(&entity.Ticket{}), filter).
		Select("tickets." + column + " AS name, COUNT(*) AS total").
		Group("tickets." + column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name] = row.Total
	}
	return counts, nil
}

// AddComment appends comment and stamps the ticket's updated_at.
func (r *repository) AddComment(ctx context.Context, comment *entity.TicketComment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User").Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&entity.Ticket{}).
			Where("id = ?", comment.TicketID).
			UpdateColumn("updated_at", comment.CreatedAt).Error
	})
}

// UpdateStatus persists the status fields of ticket and, when given, the
// lifecycle comment recording the change.
func (r *repository) UpdateStatus(ctx context.Context, ticket *entity.Ticket, comment *entity.TicketComment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Ticket{}).
			Where("id = ?", ticket.ID).
			UpdateColumns(map[string]interface{}{
				"status":      ticket.Status,
				"resolved_at": ticket.ResolvedAt,
				"updated_at":  ticket.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		if comment != nil {
			if err := tx.Omit("User").Create(comment).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Assign persists the assignment fields and status of ticket together with
// the optional lifecycle comment.
func (r *repository) Assign(ctx context.Context, ticket *entity.Ticket, comment *entity.TicketComment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Ticket{}).
			Where("id = ?", ticket.ID).
			UpdateColumns(map[string]interface{}{
				"assigned_to": ticket.AssignedTo,
				"assigned_by": ticket.AssignedBy,
				"assigned_at": ticket.AssignedAt,
				"status":      ticket.Status,
				"resolved_at": ticket.ResolvedAt,
				"updated_at":  ticket.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		if comment != nil {
			if err := tx.Omit("User").Create(comment).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) UpdateAssignee(ctx context.Context, ticketID uint, assignedTo *uint) error {
	result := r.db.WithContext(ctx).Model(&entity.Ticket{}).
		Where("id = ?", ticketID).
		UpdateColumns(map[string]interface{}{
			"assigned_to": assignedTo,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.IDs != nil {
		q = q.Where("tickets.id IN ?", f.IDs)
	}
	if f.UserID != nil {
		q = q.Where("tickets.user_id = ?", *f.UserID)
	}
	if f.AssignedTo != nil {
		q = q.Where("tickets.assigned_to = ?", *f.AssignedTo)
	}
	if f.Status != "" {
		q = q.Where("tickets.status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("tickets.priority = ?", f.Priority)
	}
	if f.Category != "" {
		q = q.Where("tickets.category = ?", f.Category)
	}
	if f.Search != "" {
		q = q.Where("LOWER(tickets.title) LIKE ?", "%"+strings.ToLower(f.Search)+"%")
	}
	if f.Day > 0 {
		q = q.Where(datePart(q, "day")+" = ?", f.Day)
	}
	if f.Month > 0 {
		q = q.Where(datePart(q, "month")+" = ?", f.Month)
	}
	if f.Year > 0 {
		q = q.Where(datePart(q, "year")+" = ?", f.Year)
	}
	if f.CreatedFrom != nil {
		q = q.Where("tickets.created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedBefore != nil {
		q = q.Where("tickets.created_at < ?", *f.CreatedBefore)
	}
	return q
}

// datePart extracts day, month or year from created_at as an integer
// expression for the active dialect.
func datePart(db *gorm.DB, part string) string {
	const column = "tickets.created_at"
	if db.Dialector.Name() == "sqlite" {
		formats := map[string]string{"day": "%d", "month": "%m", "year": "%Y"}
		return fmt.Sprintf("CAST(strftime('%s', %s) AS INTEGER)", formats[part], column)
	}
	return fmt.Sprintf("CAST(EXTRACT(%s FROM %s) AS INTEGER)", strings.ToUpper(part), column)
}
