package handler

import (
	"fmt"
	"net/http"

	"anoa.com/itdesk/internal/middleware"
	attachment "anoa.com/itdesk/internal/modules/attachment/service"
	"anoa.com/itdesk/internal/web"
	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	attachmentService attachment.AttachmentService
}

func NewAttachmentHandler(attachmentService attachment.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// ViewImage serves a ticket image inline.
func (h *AttachmentHandler) ViewImage(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	file, err := h.attachmentService.OpenTicketImage(c.Request.Context(), identity.User, c.Param("filename"))
	if err != nil {
		web.Error(c, err)
		return
	}
	serve(c, file, "inline")
}

// DownloadAttachment serves a ticket attachment as a download.
func (h *AttachmentHandler) DownloadAttachment(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	file, err := h.attachmentService.OpenAttachment(c.Request.Context(), identity.User, c.Param("filename"))
	if err != nil {
		web.Error(c, err)
		return
	}
	serve(c, file, "attachment")
}

func (h *AttachmentHandler) ProfileImage(c *gin.Context) {
	file, err := h.attachmentService.OpenProfileImage(c.Request.Context(), c.Param("filename"))
	if err != nil {
		web.Error(c, err)
		return
	}
	serve(c, file, "inline")
}

func serve(c *gin.Context, file *attachment.File, disposition string) {
	defer file.Body.Close()

	c.DataFromReader(http.StatusOK, -1, file.ContentType, file.Body, map[string]string{
		"Content-Disposition":    fmt.Sprintf("%s; filename=%q", disposition, file.Name),
		"X-Content-Type-Options": "nosniff",
	})
}
