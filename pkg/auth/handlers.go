package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
)

// CookieName is the name of the session cookie.
const CookieName = "marginalia_session"

type handler struct {
	authService *Service
}

// status returns whether the app still needs its first (admin) user.
func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.authService.CountUsers(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, StatusResponse{
		NeedsSetup: count == 0,
	})
}

func (h *handler) signup(c echo.Context) error {
	ctx := c.Request().Context()

	params := SignupPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	err := h.authService.RequestSignup(ctx, RequestSignupOptions{
		Email:    params.Email,
		Name:     params.Name,
		Password: params.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "A verification code has been sent."})
}

func (h *handler) verify(c echo.Context) error {
	ctx := c.Request().Context()

	params := VerifyPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.VerifySignup(ctx, params.Email, params.Code)
	if err != nil {
		return err
	}

	return h.startSession(c, user)
}

func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Email, params.Password)
	if err != nil {
		return err
	}

	return h.startSession(c, user)
}

func (h *handler) logout(c echo.Context) error {
	c.SetCookie(h.sessionCookie(c, "", -1))
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *handler) me(c echo.Context) error {
	user, err := UserFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *handler) startSession(c echo.Context, user *models.User) error {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	c.SetCookie(h.sessionCookie(c, token, int(h.authService.sessionDuration.Seconds())))

	return c.JSON(http.StatusOK, SessionResponse{User: user, Token: token})
}

func (h *handler) sessionCookie(c echo.Context, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
}
