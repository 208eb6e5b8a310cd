package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"anoa.com/itdesk/internal/entity"
	ticketRepo "anoa.com/itdesk/internal/modules/ticket/repository"
	"anoa.com/itdesk/internal/modules/user/dto"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/pkg/apperror"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service interface {
	ListUsers(ctx context.Context) ([]*entity.User, error)
	GetUser(ctx context.Context, id uint) (*dto.UserDetail, error)
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*entity.User, error)
	UpdateUser(ctx context.Context, id uint, req dto.UpdateUserRequest) (*entity.User, error)
	DeleteUser(ctx context.Context, actor *entity.User, id uint) (*entity.User, error)
}

type service struct {
	userRepo   userRepo.UserRepository
	ticketRepo ticketRepo.Repository
	log        *slog.Logger
}

func NewService(userRepo userRepo.UserRepository, ticketRepo ticketRepo.Repository, log *slog.Logger) Service {
	return &service{
		userRepo:   userRepo,
		ticketRepo: ticketRepo,
		log:        log.With("component", "user"),
	}
}

func (s *service) ListUsers(ctx context.Context) ([]*entity.User, error) {
	return s.userRepo.FindAll(ctx)
}

func (s *service) GetUser(ctx context.Context, id uint) (*dto.UserDetail, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	authored, err := s.ticketRepo.List(ctx, ticketRepo.Filter{UserID: &user.ID}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load authored tickets: %w", err)
	}
	assigned, err := s.ticketRepo.List(ctx, ticketRepo.Filter{AssignedTo: &user.ID}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load assigned tickets: %w", err)
	}

	return &dto.UserDetail{
		User:            user,
		AuthoredTickets: authored,
		AssignedTickets: assigned,
	}, nil
}

func (s *service) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*entity.User, error) {
	username := strings.TrimSpace(req.Username)
	if err := s.ensureUsernameFree(ctx, username, 0); err != nil {
		return nil, err
	}
	if !entity.ValidRole(req.Role) {
		return nil, apperror.NewValidationError("Role", "Role has an unsupported value.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Department:   strings.TrimSpace(req.Department),
		Role:         req.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

func (s *service) UpdateUser(ctx context.Context, id uint, req dto.UpdateUserRequest) (*entity.User, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if err := s.ensureUsernameFree(ctx, username, user.ID); err != nil {
		return nil, err
	}
	if !entity.ValidRole(req.Role) {
		return nil, apperror.NewValidationError("Role", "Role has an unsupported value.")
	}

	user.Username = username
	user.Role = req.Role
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.Email = strings.TrimSpace(req.Email)
	user.Department = strings.TrimSpace(req.Department)
	user.SystemName = strings.TrimSpace(req.SystemName)

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.log.Info("user updated", "user_id", user.ID, "role", user.Role, "password_changed", req.Password != "")
	return user, nil
}

// DeleteUser removes a regular user. Super admins and the caller's own
// account cannot be deleted; those requests change nothing.
func (s *service) DeleteUser(ctx context.Context, actor *entity.User, id uint) (*entity.User, error) {
	target, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if target.IsSuperAdmin() {
		return nil, apperror.New(http.StatusForbidden, "Cannot delete Super Admin users for security reasons.", apperror.ErrForbidden)
	}
	if target.ID == actor.ID {
		return nil, apperror.New(http.StatusForbidden, "You cannot delete your own account.", apperror.ErrForbidden)
	}

	if err := s.userRepo.DeleteWithTicketRepair(ctx, target); err != nil {
		s.log.Error("user deletion rolled back", "user_id", target.ID, "error", err)
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	s.log.Info("user deleted", "user_id", target.ID, "username", target.Username, "by", actor.ID)
	return target, nil
}

func (s *service) findUser(ctx context.Context, id uint) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return user, nil
}

func (s *service) ensureUsernameFree(ctx context.Context, username string, excludeID uint) error {
	taken, err := s.userRepo.UsernameTaken(ctx, username, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return apperror.NewValidationError("Username", "Username already exists. Please choose a different one.")
	}
	return nil
}
