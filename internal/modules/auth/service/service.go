package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/modules/auth/dto"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/pkg/apperror"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errInvalidCredentials = apperror.New(http.StatusUnauthorized, "Invalid username or password.", apperror.ErrUnauthorized)

type Service interface {
	Login(ctx context.Context, req dto.LoginRequest, clientIP string) (*entity.User, error)
}

type service struct {
	userRepo userRepo.UserRepository
	log      *slog.Logger
}

func NewService(userRepo userRepo.UserRepository, log *slog.Logger) Service {
	return &service{userRepo: userRepo, log: log.With("component", "auth")}
}

// Login verifies the credentials and records the client IP on the user.
func (s *service) Login(ctx context.Context, req dto.LoginRequest, clientIP string) (*entity.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Info("login rejected", "username", user.Username, "ip", clientIP)
		return nil, errInvalidCredentials
	}

	if clientIP != "" && clientIP != user.IPAddress {
		if err := s.userRepo.UpdateLastIP(ctx, user.ID, clientIP); err != nil {
			s.log.Warn("failed to record login ip", "user_id", user.ID, "error", err)
		} else {
			user.IPAddress = clientIP
		}
	}

	s.log.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return user, nil
}
