package dto

import "anoa.com/itdesk/internal/entity"

// DashboardQuery holds the admin dashboard filters. "all" or empty means no filter.
type DashboardQuery struct {
	Status   string `form:"status"`
	Priority string `form:"priority"`
	Category string `form:"category"`
	Search   string `form:"search"`
	Day      string `form:"day"`
	Month    string `form:"month"`
	Year     string `form:"year"`
}

// ExportQuery selects the tickets written to the spreadsheet.
// FilterMode is one of range (default), month or year.
type ExportQuery struct {
	FilterMode string `form:"filter_mode"`
	FromDate   string `form:"from_date"`
	ToDate     string `form:"to_date"`
	Month      string `form:"month"`
	Year       string `form:"year"`
}

type DashboardStats struct {
	TotalTickets      int64
	OpenTickets       int64
	InProgressTickets int64
	ResolvedTickets   int64
	TotalUsers        int64
	TotalAdmins       int64
	HardwareTickets   int64
	SoftwareTickets   int64
}

type AdminDashboard struct {
	Stats         DashboardStats
	RecentTickets []*entity.Ticket
	Assignees     []*entity.User
}

type Bucket struct {
	Name    string
	Count   int64
	Percent float64
}

type ReportsDashboard struct {
	Total      int64
	ByStatus   []Bucket
	ByCategory []Bucket
	ByPriority []Bucket
	Tickets    []*entity.Ticket
}

type Export struct {
	Filename string
	Content  []byte
}
