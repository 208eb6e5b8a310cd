package dto

type LoginRequest struct {
	Username string `form:"username" binding:"required,min=3,max=80"`
	Password string `form:"password" binding:"required"`
}
