package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	reportDto "anoa.com/itdesk/internal/modules/report/dto"
	report "anoa.com/itdesk/internal/modules/report/service"
	"anoa.com/itdesk/internal/web"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/session"
	"anoa.com/itdesk/pkg/spreadsheet"
	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService report.Service
	log           *slog.Logger
}

func NewReportHandler(reportService report.Service, log *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		log:           log.With("component", "report_handler"),
	}
}

func (h *ReportHandler) AdminDashboard(c *gin.Context) {
	var query reportDto.DashboardQuery
	_ = c.ShouldBindQuery(&query)

	dashboard, err := h.reportService.AdminDashboard(c.Request.Context(), query)
	if err != nil {
		web.Error(c, err)
		return
	}

	web.Render(c, http.StatusOK, "admin_dashboard.html", gin.H{
		"Title":     "Super Admin Dashboard",
		"Stats":     dashboard.Stats,
		"Tickets":   dashboard.RecentTickets,
		"Assignees": dashboard.Assignees,
		"Query":     query,
	})
}

func (h *ReportHandler) ReportsDashboard(c *gin.Context) {
	var query reportDto.DashboardQuery
	_ = c.ShouldBindQuery(&query)

	dashboard, err := h.reportService.ReportsDashboard(c.Request.Context(), query)
	if err != nil {
		web.Error(c, err)
		return
	}

	web.Render(c, http.StatusOK, "reports_dashboard.html", gin.H{
		"Title":     "Reports",
		"Report":    dashboard,
		"Query":     query,
		"ChartData": chartData(dashboard),
	})
}

// DownloadExcelReport streams the spreadsheet. On any failure the visitor is
// sent back to the reports dashboard and no partial file is written.
func (h *ReportHandler) DownloadExcelReport(c *gin.Context) {
	var query reportDto.ExportQuery
	_ = c.ShouldBindQuery(&query)

	export, err := h.reportService.ExportTickets(c.Request.Context(), query)
	if err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			for _, msg := range ve.Fields {
				session.AddFlash(c, session.FlashError, msg)
			}
		} else {
			h.log.Error("failed to generate excel report", "error", err)
			session.AddFlash(c, session.FlashError, "Error generating report. Please try again.")
		}
		web.Redirect(c, "/reports-dashboard")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename))
	c.Data(http.StatusOK, spreadsheet.ContentType, export.Content)
}

type series struct {
	Labels []string `json:"labels"`
	Data   []int64  `json:"data"`
}

func chartData(r *reportDto.ReportsDashboard) map[string]series {
	toSeries := func(buckets []reportDto.Bucket) series {
		s := series{Labels: make([]string, 0, len(buckets)), Data: make([]int64, 0, len(buckets))}
		for _, b := range buckets {
			s.Labels = append(s.Labels, b.Name)
			s.Data = append(s.Data, b.Count)
		}
		return s
	}
	return map[string]series{
		"status":   toSeries(r.ByStatus),
		"category": toSeries(r.ByCategory),
		"priority": toSeries(r.ByPriority),
	}
}
