package handler

import (
	"errors"
	"fmt"
	"net/http"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/middleware"
	userDto "anoa.com/itdesk/internal/modules/user/dto"
	user "anoa.com/itdesk/internal/modules/user/service"
	"anoa.com/itdesk/internal/web"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/session"
	"anoa.com/itdesk/pkg/validator"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService user.Service
}

func NewUserHandler(userService user.Service) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) ManageUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		web.Error(c, err)
		return
	}
	web.Render(c, http.StatusOK, "manage_users.html", gin.H{
		"Title": "Manage Users",
		"Users": users,
	})
}

func (h *UserHandler) CreateUserPage(c *gin.Context) {
	h.renderCreate(c, http.StatusOK, userDto.CreateUserRequest{Role: entity.RoleUser}, nil)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req userDto.CreateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderCreate(c, http.StatusUnprocessableEntity, req, validator.FieldErrors(err))
		return
	}

	created, err := h.userService.CreateUser(c.Request.Context(), req)
	if err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			h.renderCreate(c, http.StatusUnprocessableEntity, req, ve.Fields)
			return
		}
		web.Error(c, err)
		return
	}

	session.AddFlash(c, session.FlashSuccess, fmt.Sprintf("User %s created successfully!", created.Username))
	web.Redirect(c, "/manage-users")
}

func (h *UserHandler) renderCreate(c *gin.Context, code int, form userDto.CreateUserRequest, errs map[string]string) {
	form.Password, form.ConfirmPassword = "", ""
	web.Render(c, code, "create_user.html", gin.H{
		"Title":  "Create User",
		"Form":   form,
		"Errors": errs,
	})
}

func (h *UserHandler) ViewUser(c *gin.Context) {
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	detail, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		web.Error(c, err)
		return
	}

	web.Render(c, http.StatusOK, "view_user.html", gin.H{
		"Title":           detail.User.FullName(),
		"User":            detail.User,
		"AuthoredTickets": detail.AuthoredTickets,
		"AssignedTickets": detail.AssignedTickets,
	})
}

func (h *UserHandler) EditUserPage(c *gin.Context) {
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	detail, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		web.Error(c, err)
		return
	}

	u := detail.User
	h.renderEdit(c, http.StatusOK, u, userDto.UpdateUserRequest{
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Department: u.Department,
		SystemName: u.SystemName,
		Role:       u.Role,
	}, nil)
}

func (h *UserHandler) EditUser(c *gin.Context) {
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	var req userDto.UpdateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderEditByID(c, id, req, validator.FieldErrors(err))
		return
	}

	updated, err := h.userService.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			h.renderEditByID(c, id, req, ve.Fields)
			return
		}
		web.Error(c, err)
		return
	}

	session.AddFlash(c, session.FlashSuccess, fmt.Sprintf("User %s updated successfully!", updated.Username))
	web.Redirect(c, fmt.Sprintf("/view-user/%d", updated.ID))
}

func (h *UserHandler) renderEditByID(c *gin.Context, id uint, form userDto.UpdateUserRequest, errs map[string]string) {
	detail, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		web.Error(c, err)
		return
	}
	h.renderEdit(c, http.StatusUnprocessableEntity, detail.User, form, errs)
}

func (h *UserHandler) renderEdit(c *gin.Context, code int, target *entity.User, form userDto.UpdateUserRequest, errs map[string]string) {
	form.Password = ""
	web.Render(c, code, "edit_user.html", gin.H{
		"Title":  "Edit " + target.Username,
		"User":   target,
		"Form":   form,
		"Errors": errs,
	})
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	id, ok := web.ParamID(c, "id")
	if !ok {
		web.Error(c, apperror.ErrNotFound)
		return
	}

	deleted, err := h.userService.DeleteUser(c.Request.Context(), identity.User, id)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			web.Error(c, err)
		case errors.Is(err, apperror.ErrForbidden):
			session.AddFlash(c, session.FlashError, apperror.UserMessage(err, "This user cannot be deleted."))
			web.Redirect(c, "/manage-users")
		default:
			session.AddFlash(c, session.FlashError, "Error deleting user. No changes were made.")
			web.Redirect(c, "/manage-users")
		}
		return
	}

	session.AddFlash(c, session.FlashSuccess, fmt.Sprintf(
		"User %q has been successfully deleted. Their tickets have been preserved and reassigned tickets are now available for assignment.",
		deleted.Username))
	web.Redirect(c, "/manage-users")
}
