package auth

import "github.com/marginalia-app/marginalia/pkg/models"

// SignupPayload starts a signup and sends a code to the email.
type SignupPayload struct {
	Email    string `json:"email" mod:"trim,lcase" validate:"required,email"`
	Name     string `json:"name" mod:"trim" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// VerifyPayload completes a signup.
type VerifyPayload struct {
	Email string `json:"email" mod:"trim,lcase" validate:"required,email"`
	Code  string `json:"code" mod:"trim" validate:"required,numeric"`
}

// LoginPayload represents the login request body.
type LoginPayload struct {
	Email    string `json:"email" mod:"trim,lcase" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// StatusResponse represents the auth status response.
type StatusResponse struct {
	NeedsSetup bool `json:"needsSetup"`
}

// SessionResponse is returned after a successful login or signup. The token
// is also set as an HTTP-only cookie; clients that can't use cookies send it
// as a bearer token.
type SessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}
