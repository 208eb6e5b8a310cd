package handler

import (
	"fmt"
	"net/http"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/middleware"
	authDto "anoa.com/itdesk/internal/modules/auth/dto"
	auth "anoa.com/itdesk/internal/modules/auth/service"
	ticket "anoa.com/itdesk/internal/modules/ticket/service"
	"anoa.com/itdesk/internal/web"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/session"
	"anoa.com/itdesk/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService auth.Service
	sessions    *session.Manager
}

func NewAuthHandler(authService auth.Service, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
	}
}

func (h *AuthHandler) Index(c *gin.Context) {
	if identity, ok := middleware.CurrentIdentity(c); ok {
		web.Redirect(c, dashboardFor(identity.User))
		return
	}
	web.Render(c, http.StatusOK, "index.html", gin.H{"Title": "IT Helpdesk"})
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	if identity, ok := middleware.CurrentIdentity(c); ok {
		web.Redirect(c, dashboardFor(identity.User))
		return
	}
	h.renderLogin(c, http.StatusOK, authDto.LoginRequest{}, nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req authDto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderLogin(c, http.StatusUnprocessableEntity, req, validator.FieldErrors(err))
		return
	}

	ip := ticket.ResolveClientIP(c.GetHeader("X-Forwarded-For"), c.GetHeader("X-Real-IP"), c.Request.RemoteAddr)
	user, err := h.authService.Login(c.Request.Context(), req, ip)
	if err != nil {
		if apperror.MapErrorToStatus(err) == http.StatusUnauthorized {
			session.AddFlash(c, session.FlashError, apperror.UserMessage(err, "Invalid username or password."))
			h.renderLogin(c, http.StatusUnauthorized, authDto.LoginRequest{Username: req.Username}, nil)
			return
		}
		web.Error(c, err)
		return
	}

	if _, err := h.sessions.Start(c, user.ID, user.Role); err != nil {
		web.Error(c, err)
		return
	}

	session.AddFlash(c, session.FlashSuccess, fmt.Sprintf("Welcome back, %s!", user.FirstName))
	web.Redirect(c, dashboardFor(user))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.End(c); err != nil {
		web.Error(c, err)
		return
	}
	session.AddFlash(c, session.FlashInfo, "You have been logged out.")
	web.Redirect(c, "/")
}

// LegacyLogin keeps the old per-role login URLs working.
func (h *AuthHandler) LegacyLogin(c *gin.Context) {
	web.Redirect(c, "/login")
}

func (h *AuthHandler) renderLogin(c *gin.Context, code int, form authDto.LoginRequest, errs map[string]string) {
	// The password is never echoed back.
	form.Password = ""
	web.Render(c, code, "login.html", gin.H{
		"Title":  "Login",
		"Form":   form,
		"Errors": errs,
	})
}

func dashboardFor(user *entity.User) string {
	if user.IsSuperAdmin() {
		return "/super-admin-dashboard"
	}
	return "/user-dashboard"
}
