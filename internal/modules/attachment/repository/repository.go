package repository

import (
	"context"

	"anoa.com/itdesk/internal/entity"
	"gorm.io/gorm"
)

type AttachmentRepository interface {
	FindTicketByImage(ctx context.Context, filename string) (*entity.Ticket, error)
	FindByFilename(ctx context.Context, filename string) (*entity.Attachment, *entity.Ticket, error)
	ProfileImageInUse(ctx context.Context, filename string) (bool, error)
}

type attachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) FindTicketByImage(ctx context.Context, filename string) (*entity.Ticket, error) {
	var ticket entity.Ticket
	if err := r.db.WithContext(ctx).
		Where("image_filename = ?", filename).
		First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindByFilename returns the attachment row and the ticket that owns it.
func (r *attachmentRepository) FindByFilename(ctx context.Context, filename string) (*entity.Attachment, *entity.Ticket, error) {
	var attachment entity.Attachment
	if err := r.db.WithContext(ctx).
		Where("filename = ?", filename).
		First(&attachment).Error; err != nil {
		return nil, nil, err
	}

	var ticket entity.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, attachment.TicketID).Error; err != nil {
		return nil, nil, err
	}
	return &attachment, &ticket, nil
}

func (r *attachmentRepository) ProfileImageInUse(ctx context.Context, filename string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("profile_image = ?", filename).
		Count(&count).Error
	return count > 0, err
}
