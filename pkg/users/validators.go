package users

// UpdateUserPayload represents the request body for updating a user.
type UpdateUserPayload struct {
	Name     *string `json:"name" mod:"trim" validate:"omitempty,min=1,max=100"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin reader"`
	IsActive *bool   `json:"isActive"`
}

// ResetPasswordPayload represents the request body for resetting a password.
type ResetPasswordPayload struct {
	CurrentPassword *string `json:"currentPassword"` // Required when resetting your own password
	NewPassword     string  `json:"newPassword" validate:"required,min=8,max=72"`
}

// ListUsersQuery represents the query parameters for listing users.
type ListUsersQuery struct {
	Limit  int `query:"limit" default:"50" validate:"min=1,max=200"`
	Offset int `query:"offset" default:"0" validate:"min=0"`
}
