package testutils

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type handler struct {
	db          *bun.DB
	authService *auth.Service
}

// createUserRequest is the request body for creating a test user.
type createUserRequest struct {
	Email    string `json:"email" mod:"trim,lcase" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" mod:"trim"`
	Role     string `json:"role" mod:"trim,lcase" default:"admin" validate:"oneof=admin reader"`
}

// createUserResponse is the response body for creating a test user.
type createUserResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// createUser creates an active user without the signup code round trip and
// returns a session token for it.
// POST /test/users.
func (h *handler) createUser(c echo.Context) error {
	ctx := c.Request().Context()

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashedPassword,
		Role:         req.Role,
		IsActive:     true,
	}

	_, err = h.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to create user")
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, createUserResponse{
		User:  user,
		Token: token,
	})
}

// deleteAllResponse is the response body for the bulk delete endpoints.
type deleteAllResponse struct {
	Deleted int `json:"deleted"`
}

// deleteAllUsers deletes all users and pending signups. Their
// notifications and settings go with them.
// DELETE /test/users.
func (h *handler) deleteAllUsers(c echo.Context) error {
	ctx := c.Request().Context()

	_, err := h.db.NewDelete().
		Model((*models.SignupOTP)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete pending signups")
	}

	result, err := h.db.NewDelete().
		Model((*models.User)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete users")
	}

	deleted, _ := result.RowsAffected()

	return c.JSON(http.StatusOK, deleteAllResponse{
		Deleted: int(deleted),
	})
}

// deleteAllAnnotations deletes every EPUB and PDF annotation record.
// DELETE /test/annotations.
func (h *handler) deleteAllAnnotations(c echo.Context) error {
	ctx := c.Request().Context()

	for _, model := range []interface{}{(*models.EpubHighlight)(nil), (*models.EpubNote)(nil)} {
		_, err := h.db.NewDelete().
			Model(model).
			Where("1=1").
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to delete annotation entries")
		}
	}

	deleted := 0
	for _, model := range []interface{}{(*models.EpubAnnotation)(nil), (*models.PdfAnnotation)(nil)} {
		result, err := h.db.NewDelete().
			Model(model).
			Where("1=1").
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to delete annotations")
		}
		n, _ := result.RowsAffected()
		deleted += int(n)
	}

	return c.JSON(http.StatusOK, deleteAllResponse{
		Deleted: deleted,
	})
}
