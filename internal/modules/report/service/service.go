package report

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/modules/report/dto"
	ticketRepo "anoa.com/itdesk/internal/modules/ticket/repository"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/biztime"
	"anoa.com/itdesk/pkg/spreadsheet"
)

const (
	recentTicketsLimit = 10
	exportSheet        = "Tickets Report"
)

var exportHeaders = []string{
	"Ticket ID", "Title", "Description", "Category", "Priority", "Status",
	"Created By", "User Email", "User Department", "System Name", "IP Address",
	"Assigned To", "Assigned By", "Created Date", "Updated Date", "Resolved Date",
}

type Service interface {
	AdminDashboard(ctx context.Context, query dto.DashboardQuery) (*dto.AdminDashboard, error)
	ReportsDashboard(ctx context.Context, query dto.DashboardQuery) (*dto.ReportsDashboard, error)
	ExportTickets(ctx context.Context, query dto.ExportQuery) (*dto.Export, error)
}

type service struct {
	ticketRepo ticketRepo.Repository
	userRepo   userRepo.UserRepository
	log        *slog.Logger
	now        func() time.Time
}

func NewService(ticketRepo ticketRepo.Repository, userRepo userRepo.UserRepository, log *slog.Logger) Service {
	return &service{
		ticketRepo: ticketRepo,
		userRepo:   userRepo,
		log:        log.With("component", "report"),
		now:        time.Now,
	}
}

func (s *service) AdminDashboard(ctx context.Context, query dto.DashboardQuery) (*dto.AdminDashboard, error) {
	// Headline stats always cover every ticket; the filters only narrow the list.
	var all ticketRepo.Filter

	total, err := s.ticketRepo.Count(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	byStatus, err := s.ticketRepo.CountBy(ctx, "status", all)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets by status: %w", err)
	}
	byCategory, err := s.ticketRepo.CountBy(ctx, "category", all)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets by category: %w", err)
	}

	users, err := s.userRepo.CountByRole(ctx, entity.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	admins, err := s.userRepo.CountByRole(ctx, entity.RoleSuperAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to count admins: %w", err)
	}

	recent, err := s.ticketRepo.List(ctx, dashboardFilter(query), recentTicketsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	assignees, err := s.userRepo.FindByRole(ctx, entity.RoleSuperAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignees: %w", err)
	}

	return &dto.AdminDashboard{
		Stats: dto.DashboardStats{
			TotalTickets:      total,
			OpenTickets:       byStatus[entity.StatusOpen],
			InProgressTickets: byStatus[entity.StatusInProgress],
			ResolvedTickets:   byStatus[entity.StatusResolved],
			TotalUsers:        users,
			TotalAdmins:       admins,
			HardwareTickets:   byCategory[entity.CategoryHardware],
			SoftwareTickets:   byCategory[entity.CategorySoftware],
		},
		RecentTickets: recent,
		Assignees:     assignees,
	}, nil
}

func (s *service) ReportsDashboard(ctx context.Context, query dto.DashboardQuery) (*dto.ReportsDashboard, error) {
	filter := dashboardFilter(query)

	total, err := s.ticketRepo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	report := &dto.ReportsDashboard{Total: total}
	groups := []struct {
		column string
		order  []string
		dst    *[]dto.Bucket
	}{
		{"status", entity.Statuses, &report.ByStatus},
		{"category", entity.Categories, &report.ByCategory},
		{"priority", entity.Priorities, &report.ByPriority},
	}
	for _, g := range groups {
		counts, err := s.ticketRepo.CountBy(ctx, g.column, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to count tickets by %s: %w", g.column, err)
		}
		*g.dst = buckets(g.order, counts, total)
	}

	report.Tickets, err = s.ticketRepo.List(ctx, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return report, nil
}

func (s *service) ExportTickets(ctx context.Context, query dto.ExportQuery) (*dto.Export, error) {
	filter, err := exportFilter(query)
	if err != nil {
		return nil, err
	}

	tickets, err := s.ticketRepo.List(ctx, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	rows := make([][]string, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, exportRow(t))
	}

	content, err := spreadsheet.Write(exportSheet, exportHeaders, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build spreadsheet: %w", err)
	}

	filename := fmt.Sprintf("Helpdesk_Report_%s.xlsx", biztime.ToDisplay(s.now()).Format("20060102_150405"))
	s.log.Info("ticket report exported", "mode", query.FilterMode, "rows", len(rows))
	return &dto.Export{Filename: filename, Content: content}, nil
}

func exportRow(t *entity.Ticket) []string {
	userName, email, department := t.UserName, "N/A", "N/A"
	if t.User != nil {
		if userName == "" {
			userName = t.User.FullName()
		}
		email = orNA(t.User.Email)
		department = orNA(t.User.Department)
	}

	assignee := "Unassigned"
	if t.Assignee != nil {
		assignee = t.Assignee.FullName()
	}
	assigner := "N/A"
	if t.Assigner != nil {
		assigner = t.Assigner.FullName()
	}

	number := t.TicketNumber
	if number == "" {
		number = entity.FormatTicketNumber(t.ID)
	}

	return []string{
		number,
		t.Title,
		t.Description,
		t.Category,
		t.Priority,
		t.Status,
		orNA(userName),
		email,
		department,
		orNA(t.UserSystemName),
		orNA(t.UserIPAddress),
		assignee,
		assigner,
		biztime.FormatOr(&t.CreatedAt, "N/A"),
		biztime.FormatOr(&t.UpdatedAt, "N/A"),
		biztime.FormatOr(t.ResolvedAt, "N/A"),
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func buckets(order []string, counts map[string]int64, total int64) []dto.Bucket {
	out := make([]dto.Bucket, 0, len(order))
	for _, name := range order {
		b := dto.Bucket{Name: name, Count: counts[name]}
		if total > 0 {
			b.Percent = float64(b.Count) * 100 / float64(total)
		}
		out = append(out, b)
	}
	return out
}

func dashboardFilter(q dto.DashboardQuery) ticketRepo.Filter {
	return ticketRepo.Filter{
		Status:   selected(q.Status),
		Priority: selected(q.Priority),
		Category: selected(q.Category),
		Search:   strings.TrimSpace(q.Search),
		Day:      selectedInt(q.Day),
		Month:    selectedInt(q.Month),
		Year:     selectedInt(q.Year),
	}
}

func exportFilter(q dto.ExportQuery) (ticketRepo.Filter, error) {
	var f ticketRepo.Filter

	switch q.FilterMode {
	case "month":
		if q.Month == "" {
			return f, nil
		}
		t, err := time.Parse("2006-01", q.Month)
		if err != nil {
			return f, apperror.NewValidationError("month", "Month must be in YYYY-MM format.")
		}
		f.Year, f.Month = t.Year(), int(t.Month())
	case "year":
		if q.Year == "" {
			return f, nil
		}
		year, err := strconv.Atoi(q.Year)
		if err != nil || year <= 0 {
			return f, apperror.NewValidationError("year", "Year must be a number.")
		}
		f.Year = year
	default:
		var start, end time.Time
		var err error
		if q.FromDate != "" {
			if start, _, err = biztime.DayRangeUTC(q.FromDate); err != nil {
				return f, apperror.NewValidationError("from_date", "From date must be in YYYY-MM-DD format.")
			}
		}
		if q.ToDate != "" {
			if _, end, err = biztime.DayRangeUTC(q.ToDate); err != nil {
				return f, apperror.NewValidationError("to_date", "To date must be in YYYY-MM-DD format.")
			}
		}
		// A range needs both ends; a lone date means no date filter.
		if q.FromDate != "" && q.ToDate != "" {
			f.CreatedFrom, f.CreatedBefore = &start, &end
		}
	}
	return f, nil
}

func selected(v string) string {
	v = strings.TrimSpace(v)
	if v == "all" {
		return ""
	}
	return v
}

func selectedInt(v string) int {
	n, err := strconv.Atoi(selected(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
