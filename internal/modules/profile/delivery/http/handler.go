package handler

import (
	"io"
	"net/http"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/middleware"
	profileDto "anoa.com/itdesk/internal/modules/profile/dto"
	profile "anoa.com/itdesk/internal/modules/profile/service"
	"anoa.com/itdesk/internal/web"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/session"
	"anoa.com/itdesk/pkg/validator"
	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileService profile.Service
}

func NewProfileHandler(profileService profile.Service) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

func (h *ProfileHandler) ProfilePage(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	u := identity.User
	h.render(c, http.StatusOK, u, profileDto.UpdateProfileRequest{
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Department: u.Department,
		SystemName: u.SystemName,
	}, nil)
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	var input profileDto.UpdateProfileRequest
	if err := c.ShouldBind(&input); err != nil {
		h.render(c, http.StatusUnprocessableEntity, identity.User, input, validator.FieldErrors(err))
		return
	}

	var image *profile.ProfileImage
	if fileHeader, err := c.FormFile("profile_image"); err == nil && fileHeader != nil && fileHeader.Filename != "" {
		image = &profile.ProfileImage{
			Filename: fileHeader.Filename,
			Open: func() (io.ReadCloser, error) {
				return fileHeader.Open()
			},
		}
	}

	if _, err := h.profileService.UpdateProfile(c.Request.Context(), identity.User, input, image); err != nil {
		if ve, ok := apperror.AsValidationError(err); ok {
			h.render(c, http.StatusUnprocessableEntity, identity.User, input, ve.Fields)
			return
		}
		web.Error(c, err)
		return
	}

	session.AddFlash(c, session.FlashSuccess, "Profile updated successfully!")
	web.Redirect(c, "/user-profile")
}

func (h *ProfileHandler) render(c *gin.Context, code int, u *entity.User, form profileDto.UpdateProfileRequest, errs map[string]string) {
	form.NewPassword = ""
	web.Render(c, code, "user_profile.html", gin.H{
		"Title":  "My Profile",
		"User":   u,
		"Form":   form,
		"Errors": errs,
	})
}
