package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"anoa.com/itdesk/internal/entity"
	attachmentRepo "anoa.com/itdesk/internal/modules/attachment/repository"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/storage"
	"gorm.io/gorm"
)

// File is an opened stored upload. The caller closes Body.
type File struct {
	Name        string
	ContentType string
	Body        io.ReadCloser
}

type AttachmentService interface {
	OpenTicketImage(ctx context.Context, actor *entity.User, filename string) (*File, error)
	OpenAttachment(ctx context.Context, actor *entity.User, filename string) (*File, error)
	OpenProfileImage(ctx context.Context, filename string) (*File, error)
}

type attachmentService struct {
	repo        attachmentRepo.AttachmentRepository
	fileStorage storage.FileStorage
}

func NewAttachmentService(repo attachmentRepo.AttachmentRepository, fileStorage storage.FileStorage) AttachmentService {
	return &attachmentService{repo: repo, fileStorage: fileStorage}
}

// OpenTicketImage serves a ticket's primary image to its owner or a super admin.
func (s *attachmentService) OpenTicketImage(ctx context.Context, actor *entity.User, filename string) (*File, error) {
	if !storage.ValidName(filename) {
		return nil, fmt.Errorf("image %q: %w", filename, apperror.ErrNotFound)
	}

	ticket, err := s.repo.FindTicketByImage(ctx, filename)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("image %q: %w", filename, apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up image: %w", err)
	}

	if !actor.IsSuperAdmin() && !ticket.IsOwnedBy(actor.ID) {
		return nil, fmt.Errorf("image of ticket %d: %w", ticket.ID, apperror.ErrForbidden)
	}
	return s.open(ctx, filename)
}

// OpenAttachment serves a ticket attachment to the ticket owner or a super admin.
func (s *attachmentService) OpenAttachment(ctx context.Context, actor *entity.User, filename string) (*File, error) {
	if !storage.ValidName(filename) {
		return nil, fmt.Errorf("attachment %q: %w", filename, apperror.ErrNotFound)
	}

	_, ticket, err := s.repo.FindByFilename(ctx, filename)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("attachment %q: %w", filename, apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up attachment: %w", err)
	}

	if !actor.IsSuperAdmin() && !ticket.IsOwnedBy(actor.ID) {
		return nil, fmt.Errorf("attachment of ticket %d: %w", ticket.ID, apperror.ErrForbidden)
	}
	return s.open(ctx, filename)
}

// OpenProfileImage serves avatars to any signed-in user.
func (s *attachmentService) OpenProfileImage(ctx context.Context, filename string) (*File, error) {
	if !storage.ValidName(filename) {
		return nil, fmt.Errorf("profile image %q: %w", filename, apperror.ErrNotFound)
	}
	inUse, err := s.repo.ProfileImageInUse(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile image: %w", err)
	}
	if !inUse {
		return nil, fmt.Errorf("profile image %q: %w", filename, apperror.ErrNotFound)
	}
	return s.open(ctx, filename)
}

func (s *attachmentService) open(ctx context.Context, filename string) (*File, error) {
	body, err := s.fileStorage.Open(ctx, filename)
	if errors.Is(err, storage.ErrFileNotFound) {
		return nil, fmt.Errorf("stored file %q: %w", filename, apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open stored file: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &File{Name: filename, ContentType: contentType, Body: body}, nil
}
