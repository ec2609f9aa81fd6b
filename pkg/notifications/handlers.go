package notifications

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
)

type handler struct {
	notificationService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}

	params := ListNotificationsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	notifications, total, err := h.notificationService.List(ctx, ListOptions{
		UserID:     user.ID,
		UnreadOnly: params.Unread,
		Limit:      params.Limit,
		Offset:     params.Offset,
	})
	if err != nil {
		return err
	}

	unread, err := h.notificationService.UnreadCount(ctx, user.ID)
	if err != nil {
		return err
	}

	resp := struct {
		Notifications []*models.Notification `json:"notifications"`
		Total         int                    `json:"total"`
		Unread        int                    `json:"unread"`
	}{notifications, total, unread}

	return c.JSON(http.StatusOK, resp)
}

func (h *handler) markRead(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}

	notification, err := h.notificationService.MarkRead(ctx, user.ID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, notification)
}

func (h *handler) markAllRead(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}

	n, err := h.notificationService.MarkAllRead(ctx, user.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateNotificationPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	notifications, err := h.notificationService.Create(ctx, CreateOptions(params))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]int{"created": len(notifications)})
}
