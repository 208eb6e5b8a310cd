package entity

import (
	"strings"
	"time"
)

const (
	RoleUser       = "user"
	RoleSuperAdmin = "super_admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:120;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FirstName    string    `gorm:"size:50;not null" json:"first_name"`
	LastName     string    `gorm:"size:50;not null" json:"last_name"`
	Department   string    `gorm:"size:100" json:"department"`
	Role         string    `gorm:"size:20;not null;default:user;index" json:"role"`
	SystemName   string    `gorm:"size:100" json:"system_name"`
	IPAddress    string    `gorm:"size:64" json:"ip_address"`
	ProfileImage string    `gorm:"size:255" json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleSuperAdmin
}
