package users

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
)

type handler struct {
	userService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := h.userService.Retrieve(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListUsersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	users, total, err := h.userService.List(ctx, ListOptions(params))
	if err != nil {
		return err
	}

	resp := struct {
		Users []*models.User `json:"users"`
		Total int            `json:"total"`
	}{users, total}

	return c.JSON(http.StatusOK, resp)
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	current, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}

	params := UpdateUserPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.userService.Retrieve(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	isSelf := current.ID == user.ID
	opts := UpdateOptions{Columns: []string{}}

	if params.Name != nil && *params.Name != user.Name {
		user.Name = *params.Name
		opts.Columns = append(opts.Columns, "name")
	}
	if params.Role != nil && *params.Role != user.Role {
		if isSelf {
			return errcodes.ValidationError("You cannot change your own role")
		}
		user.Role = *params.Role
		opts.Columns = append(opts.Columns, "role")
	}
	if params.IsActive != nil && *params.IsActive != user.IsActive {
		if isSelf {
			return errcodes.ValidationError("You cannot deactivate your own account")
		}
		user.IsActive = *params.IsActive
		opts.Columns = append(opts.Columns, "is_active")
	}

	user.UpdatedAt = time.Now()
	err = h.userService.Update(ctx, user, opts)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *handler) resetPassword(c echo.Context) error {
	ctx := c.Request().Context()

	current, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}

	params := ResetPasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	id := c.Param("id")
	if current.ID == id {
		if params.CurrentPassword == nil || *params.CurrentPassword == "" {
			return errcodes.ValidationError("Current password is required when resetting your own password")
		}

		valid, err := h.userService.VerifyPassword(ctx, id, *params.CurrentPassword)
		if err != nil {
			return err
		}
		if !valid {
			return errcodes.ValidationError("Current password is incorrect")
		}
	} else {
		if !current.IsAdmin() {
			return errcodes.Forbidden("Resetting another user's password")
		}
		if _, err := h.userService.Retrieve(ctx, id); err != nil {
			return err
		}
	}

	err = h.userService.ResetPassword(ctx, id, params.NewPassword)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset successfully"})
}
