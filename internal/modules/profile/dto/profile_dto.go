package dto

// UpdateProfileRequest is what a user may change about themselves.
// Username and role are managed by super admins only.
type UpdateProfileRequest struct {
	FirstName   string `form:"first_name" binding:"required,min=2,max=50"`
	LastName    string `form:"last_name" binding:"required,min=2,max=50"`
	Email       string `form:"email" binding:"required,email,max=120"`
	Department  string `form:"department" binding:"max=100"`
	SystemName  string `form:"system_name" binding:"max=100"`
	NewPassword string `form:"password" binding:"omitempty,min=6,max=128"`
}
