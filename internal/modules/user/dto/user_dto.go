package dto

import "anoa.com/itdesk/internal/entity"

type CreateUserRequest struct {
	Username        string `form:"username" binding:"required,min=3,max=80"`
	Email           string `form:"email" binding:"required,email,max=120"`
	FirstName       string `form:"first_name" binding:"required,min=2,max=50"`
	LastName        string `form:"last_name" binding:"required,min=2,max=50"`
	Department      string `form:"department" binding:"max=100"`
	Role            string `form:"role" binding:"required,oneof=user super_admin"`
	Password        string `form:"password" binding:"required,min=6,max=128"`
	ConfirmPassword string `form:"password2" binding:"required,eqfield=Password"`
}

// UpdateUserRequest leaves the password untouched when Password is empty.
type UpdateUserRequest struct {
	Username   string `form:"username" binding:"required,min=2,max=50"`
	Email      string `form:"email" binding:"required,email,max=120"`
	FirstName  string `form:"first_name" binding:"required,min=2,max=50"`
	LastName   string `form:"last_name" binding:"required,min=2,max=50"`
	Department string `form:"department" binding:"max=100"`
	SystemName string `form:"system_name" binding:"max=100"`
	Role       string `form:"role" binding:"required,oneof=user super_admin"`
	Password   string `form:"password" binding:"omitempty,min=6,max=128"`
}

type UserDetail struct {
	User            *entity.User
	AuthoredTickets []*entity.Ticket
	AssignedTickets []*entity.Ticket
}
