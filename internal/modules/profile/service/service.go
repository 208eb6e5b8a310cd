package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/modules/profile/dto"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/storage"
	"golang.org/x/crypto/bcrypt"
)

var imageExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true}

// ProfileImage is an optional avatar upload.
type ProfileImage struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

type Service interface {
	UpdateProfile(ctx context.Context, actor *entity.User, req dto.UpdateProfileRequest, image *ProfileImage) (*entity.User, error)
}

type service struct {
	userRepo    userRepo.UserRepository
	fileStorage storage.FileStorage
	log         *slog.Logger
}

func NewService(userRepo userRepo.UserRepository, fileStorage storage.FileStorage, log *slog.Logger) Service {
	return &service{
		userRepo:    userRepo,
		fileStorage: fileStorage,
		log:         log.With("component", "profile"),
	}
}

func (s *service) UpdateProfile(ctx context.Context, actor *entity.User, req dto.UpdateProfileRequest, image *ProfileImage) (*entity.User, error) {
	user := *actor
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.Email = strings.TrimSpace(req.Email)
	user.Department = strings.TrimSpace(req.Department)
	user.SystemName = strings.TrimSpace(req.SystemName)

	if req.NewPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	var newImage string
	if image != nil && image.Filename != "" {
		if !imageExtensions[storage.Ext(image.Filename)] {
			return nil, apperror.NewValidationError("ProfileImage", "Profile image must be a png, jpg, jpeg, gif or bmp file.")
		}
		newImage = storage.UniqueName(image.Filename, time.Now())
		if err := s.saveImage(ctx, image, newImage); err != nil {
			return nil, fmt.Errorf("failed to store profile image: %w", err)
		}
		user.ProfileImage = newImage
	}

	if err := s.userRepo.Update(ctx, &user); err != nil {
		if newImage != "" {
			_ = s.fileStorage.Delete(context.WithoutCancel(ctx), newImage)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if newImage != "" && actor.ProfileImage != "" {
		if err := s.fileStorage.Delete(ctx, actor.ProfileImage); err != nil {
			s.log.Warn("failed to delete previous profile image", "user_id", user.ID, "error", err)
		}
	}

	s.log.Info("profile updated", "user_id", user.ID)
	return &user, nil
}

func (s *service) saveImage(ctx context.Context, image *ProfileImage, name string) error {
	rc, err := image.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return s.fileStorage.Save(ctx, rc, name)
}
