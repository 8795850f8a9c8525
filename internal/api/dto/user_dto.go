package dto

import (
	"time"

	"github.com/spec-kit/expense-claim-service/internal/domain"
)

// CreateUserRequest registers a new employee account.
type CreateUserRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
	EmployeeID string `json:"employee_id"`
}

// UpdateUserRequest edits an account. Omitted fields are untouched.
type UpdateUserRequest struct {
	Email      *string `json:"email"`
	Name       *string `json:"name"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
	Role       *string `json:"role"`
	Status     *string `json:"status"`
	EmployeeID *string `json:"employee_id"`
}

// UpdateUserStatusRequest changes account status.
type UpdateUserStatusRequest struct {
	Status string `json:"status"`
}

// UserResponse is the public account shape. The password hash never leaves
// the service layer.
type UserResponse struct {
	ID          string     `json:"id"`
	EmployeeID  string     `json:"employee_id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	Department  string     `json:"department,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		EmployeeID:  user.EmployeeID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        string(user.Role),
		Department:  user.Department,
		Phone:       user.Phone,
		Status:      string(user.Status),
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// NewUserListResponse maps a slice of users.
func NewUserListResponse(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
