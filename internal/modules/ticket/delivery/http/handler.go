package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/middleware"
	ticketDto "anoa.com/itdesk/internal/modules/ticket/dto"
	ticket "anoa.com/itdesk/internal/modules/ticket/service"
	"anoa.com/itdesk/internal/web"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/ratelimiter"
	"anoa.com/itdesk/pkg/session"
	"anoa.com/itdesk/pkg/validator"
	"github.com/gin-gonic/gin"
)

// uploadFields are the multipart fields that may carry ticket files.
var uploadFields = []string{"image", "files"}

type TicketHandler struct {
	service ticket.Service
}

func NewTicketHandler(service ticket.Service) *TicketHandler {
	return &TicketHandler{service: service}
}

func (h *TicketHandler) UserDashboard(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	filter := ticketDto.UserTicketFilter{Status: "all"}
	if err := c.ShouldBindQuery(&filter); err != nil {
		web.Error(c, fmt.Errorf("invalid dashboard filter: %w", apperror.ErrBadRequest))
		return
	}
	if filter.Status == "" {
		filter.Status = "all"
	}

	tickets, err := h.service.ListForUser(c.Request.Context(), identity.User, filter)
	if err != nil {
		web.Error(c, err)
		return
	}

	web.Render(c, http.StatusOK, "user_dashboard.html", gin.H{
		"Title":        "My Tickets",
		"Tickets":      tickets,
		"StatusFilter": filter.Status,
		"SearchQuery":  filter.Search,
	})
}

func (h *TicketHandler) CreateTicketPage(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	h.renderCreate(c, http.StatusOK, ticketDto.CreateTicketRequest{SystemName: identity.User.SystemName}, nil)
}

func (h *TicketHandler) CreateTicket(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	var req ticketDto.CreateTicketRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderCreate(c, http.StatusUnprocessableEntity, req, validator.FieldErrors(err))
		return
	}

	client := ticketDto.ClientInfo{
		ForwardedFor: c.GetHeader("X-Forwarded-For"),
		RealIP:       c.GetHeader("X-Real-IP"),
		RemoteAddr:   c.Request.RemoteAddr,
		UserAgent:    c.Request.UserAgent(),
	}

	result, err := h.service.CreateTicket(c.Request.Context(), identity.User, req, collectUploads(c), client)
	if err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			h.renderCreate(c, http.StatusUnprocessableEntity, req, ve.Fields)
			return
		}
		if code := apperror.MapErrorToStatus(err); code == http.StatusTooManyRequests {
			var rateLimitErr *ratelimiter.RateLimitError
			if errors.As(err, &rateLimitErr) {
				c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
			}
			session.AddFlash(c, session.FlashWarning, apperror.UserMessage(err, "Please wait before submitting another ticket."))
			h.renderCreate(c, code, req, nil)
			return
		}
		web.Error(c, err)
		return
	}

	for _, warning := range result.Warnings {
		session.AddFlash(c, session.FlashWarning, warning)
	}
	session.AddFlash(c, session.FlashSuccess, fmt.Sprintf("Ticket %s created successfully!", result.Ticket.TicketNumber))
	web.Redirect(c, "/user-dashboard")
}

func (h *TicketHandler) renderCreate(c *gin.Context, code int, form ticketDto.CreateTicketRequest, errs map[string]string) {
	web.Render(c, code, "create_ticket.html", gin.H{
		"Title":  "Create Ticket",
		"Form":   form,
		"Errors": errs,
	})
}

func (h *TicketHandler) ViewTicket(c *gin.Context) {
	h.renderTicket(c, http.StatusOK, "", nil)
}

func (h *TicketHandler) renderTicket(c *gin.Context, code int, comment string, errs map[string]string) {
	identity, _ := middleware.CurrentIdentity(c)
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	t, err := h.service.GetTicket(c.Request.Context(), identity.User, id)
	if err != nil {
		web.Error(c, err)
		return
	}

	var assignees []*entity.User
	if identity.User.IsSuperAdmin() {
		if assignees, err = h.service.ListAssignees(c.Request.Context()); err != nil {
			web.Error(c, err)
			return
		}
	}

	web.Render(c, code, "view_ticket.html", gin.H{
		"Title":     t.TicketNumber,
		"Ticket":    t,
		"Assignees": assignees,
		"Comment":   comment,
		"Errors":    errs,
	})
}

func (h *TicketHandler) AddComment(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	var req ticketDto.CommentRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderTicket(c, http.StatusUnprocessableEntity, req.Comment, validator.FieldErrors(err))
		return
	}

	if err := h.service.AddComment(c.Request.Context(), identity.User, id, req); err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			h.renderTicket(c, http.StatusUnprocessableEntity, req.Comment, ve.Fields)
			return
		}
		web.Error(c, err)
		return
	}

	session.AddFlash(c, session.FlashSuccess, "Comment added successfully!")
	web.Redirect(c, ticketURL(id))
}

func (h *TicketHandler) EditTicketPage(c *gin.Context) {
	h.renderEdit(c, http.StatusOK, nil, nil)
}

func (h *TicketHandler) renderEdit(c *gin.Context, code int, form *ticketDto.UpdateStatusRequest, errs map[string]string) {
	identity, _ := middleware.CurrentIdentity(c)
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	t, err := h.service.GetTicket(c.Request.Context(), identity.User, id)
	if err != nil {
		web.Error(c, err)
		return
	}
	if form == nil {
		form = &ticketDto.UpdateStatusRequest{Status: t.Status}
	}

	web.Render(c, code, "edit_ticket.html", gin.H{
		"Title":  "Update " + t.TicketNumber,
		"Ticket": t,
		"Form":   form,
		"Errors": errs,
	})
}

func (h *TicketHandler) UpdateStatus(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	var req ticketDto.UpdateStatusRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderEdit(c, http.StatusUnprocessableEntity, &req, validator.FieldErrors(err))
		return
	}

	if _, err := h.service.UpdateStatus(c.Request.Context(), identity.User, id, req); err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			h.renderEdit(c, http.StatusUnprocessableEntity, &req, ve.Fields)
			return
		}
		web.Error(c, err)
		return
	}

	session.AddFlash(c, session.FlashSuccess, "Ticket status updated successfully!")
	web.Redirect(c, ticketURL(id))
}

func (h *TicketHandler) AssignTicket(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	var req ticketDto.AssignRequest
	if err := c.ShouldBind(&req); err != nil {
		session.AddFlash(c, session.FlashError, "Select a Super Admin to assign the ticket to.")
		web.Redirect(c, ticketURL(id))
		return
	}

	t, err := h.service.Assign(c.Request.Context(), identity.User, id, req)
	if err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			session.AddFlash(c, session.FlashError, ve.Fields["AssignedTo"])
			web.Redirect(c, ticketURL(id))
			return
		}
		web.Error(c, err)
		return
	}

	session.AddFlash(c, session.FlashSuccess, fmt.Sprintf("Ticket assigned to %s!", t.Assignee.FullName()))
	web.Redirect(c, redirectTarget(c, ticketURL(id)))
}

func (h *TicketHandler) EditAssignmentPage(c *gin.Context) {
	h.renderEditAssignment(c, http.StatusOK, nil)
}

func (h *TicketHandler) renderEditAssignment(c *gin.Context, code int, errs map[string]string) {
	identity, _ := middleware.CurrentIdentity(c)
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	t, err := h.service.GetTicket(c.Request.Context(), identity.User, id)
	if err != nil {
		web.Error(c, err)
		return
	}
	assignees, err := h.service.ListAssignees(c.Request.Context())
	if err != nil {
		web.Error(c, err)
		return
	}

	web.Render(c, code, "edit_assignment.html", gin.H{
		"Title":     "Edit Assignment",
		"Ticket":    t,
		"Assignees": assignees,
		"Errors":    errs,
	})
}

func (h *TicketHandler) EditAssignment(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	var req ticketDto.EditAssignmentRequest
	_ = c.ShouldBind(&req)

	t, err := h.service.UpdateAssignment(c.Request.Context(), identity.User, id, req)
	if err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			h.renderEditAssignment(c, http.StatusUnprocessableEntity, ve.Fields)
			return
		}
		if apperror.MapErrorToStatus(err) == http.StatusInternalServerError {
			session.AddFlash(c, session.FlashError, "Error updating assignment. Please try again.")
			h.renderEditAssignment(c, http.StatusInternalServerError, nil)
			return
		}
		web.Error(c, err)
		return
	}

	assigneeName := "Unassigned"
	if t.Assignee != nil {
		assigneeName = t.Assignee.FullName()
	}
	session.AddFlash(c, session.FlashSuccess, fmt.Sprintf("Ticket %s has been assigned to %s.", t.TicketNumber, assigneeName))
	web.Redirect(c, "/super-admin-dashboard")
}

func collectUploads(c *gin.Context) []ticketDto.Upload {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}

	var uploads []ticketDto.Upload
	for _, field := range uploadFields {
		for _, fh := range form.File[field] {
			uploads = append(uploads, ticketDto.Upload{
				Filename: fh.Filename,
				Open:     opener(fh),
			})
		}
	}
	return uploads
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// redirectTarget honours a same-site "next" form value, used by forms that
// live on the admin dashboard.
func redirectTarget(c *gin.Context, fallback string) string {
	next := c.PostForm("next")
	if next == "" || next[0] != '/' || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n\t") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

func ticketURL(id uint) string {
	return fmt.Sprintf("/ticket/%d", id)
}
