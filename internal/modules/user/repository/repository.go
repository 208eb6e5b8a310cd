package repository

import (
	"context"
	"time"

	"anoa.com/itdesk/internal/entity"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uint) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindAll(ctx context.Context) ([]*entity.User, error)
	FindByRole(ctx context.Context, role string) ([]*entity.User, error)
	UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error)
	CountByRole(ctx context.Context, role string) (int64, error)
	Update(ctx context.Context, user *entity.User) error
	UpdateLastIP(ctx context.Context, id uint, ip string) error
	DeleteWithTicketRepair(ctx context.Context, user *entity.User) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindAll(ctx context.Context) ([]*entity.User, error) {
	var users []*entity.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

func (r *userRepository) FindByRole(ctx context.Context, role string) ([]*entity.User, error) {
	var users []*entity.User
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("first_name ASC, last_name ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.User{}).Where("username = ?", username)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

func (r *userRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) UpdateLastIP(ctx context.Context, id uint, ip string) error {
	return r.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ?", id).
		Update("ip_address", ip).Error
}

// DeleteWithTicketRepair removes user in one transaction. Authored tickets are
// kept with a historical author name, assigned tickets go back to the Open
// queue, and the user's comments are removed first.
func (r *userRepository) DeleteWithTicketRepair(ctx context.Context, user *entity.User) error {
	now := time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Ticket{}).
			Where("user_id = ?", user.ID).
			Updates(map[string]interface{}{
				"user_id":    nil,
				"user_name":  user.FullName() + entity.DeletedUserSuffix,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&entity.Ticket{}).
			Where("assigned_to = ?", user.ID).
			Updates(map[string]interface{}{
				"assigned_to": nil,
				"status":      entity.StatusOpen,
				"resolved_at": nil,
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&entity.Ticket{}).
			Where("assigned_by = ?", user.ID).
			Update("assigned_by", nil).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&entity.TicketComment{}).Error; err != nil {
			return err
		}

		return tx.Delete(&entity.User{}, user.ID).Error
	})
}
