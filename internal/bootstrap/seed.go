package bootstrap

import (
	"log/slog"

	"anoa.com/itdesk/internal/entity"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Ticket{},
		&entity.TicketComment{},
		&entity.Attachment{},
	)
}

type seedUser struct {
	user     entity.User
	password string
}

var defaultUsers = []seedUser{
	{
		user: entity.User{
			Username:   "superadmin",
			Email:      "superadmin@itdesk.local",
			FirstName:  "Super",
			LastName:   "Administrator",
			Department: "IT",
			Role:       entity.RoleSuperAdmin,
		},
		password: "super123",
	},
	{
		user: entity.User{
			Username:   "testuser",
			Email:      "user@itdesk.local",
			FirstName:  "Test",
			LastName:   "User",
			Department: "Engineering",
			Role:       entity.RoleUser,
		},
		password: "test123",
	},
}

// SeedDefaultUsers creates a super admin and a test user when no super admin
// exists yet. It is a no-op on every later start.
func SeedDefaultUsers(db *gorm.DB, log *slog.Logger) error {
	var count int64
	if err := db.Model(&entity.User{}).
		Where("role = ?", entity.RoleSuperAdmin).
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Debug("super admin already exists, skipping seed")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, seed := range defaultUsers {
			hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			user := seed.user
			user.PasswordHash = string(hash)

			var existing int64
			if err := tx.Model(&entity.User{}).Where("username = ?", user.Username).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}

			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			log.Info("default user seeded", "username", user.Username, "role", user.Role)
		}
		return nil
	})
}
