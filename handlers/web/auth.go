// handlers/web/auth.go
package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"flaremail/config"
	"flaremail/handlers/api"
	"flaremail/middleware"
	"flaremail/store"
	"flaremail/utils"
)

type AuthHandler struct {
	sessions *session.Store
	config   *config.Config
	manager  *store.Manager
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(sessions *session.Store, config *config.Config, manager *store.Manager) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		config:   config,
		manager:  manager,
	}
}

func (h *AuthHandler) app(c *fiber.Ctx) (*store.App, *session.Session, error) {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return nil, nil, err
	}
	return h.manager.App(sess.ID()), sess, nil
}

// ShowLogin renders the combined login/signup page. Authenticated browsers
// are bounced to the dashboard instead.
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	app, _, err := h.app(c)
	if err != nil {
		return utils.InternalServerError("Session error", err)
	}
	if app.Session.LoggedIn() {
		return c.Redirect("/home")
	}

	mode := c.Query("mode", "login")
	if mode != "signup" {
		mode = "login"
	}
	// Switching tabs discards any stale auth error.
	app.Session.ClearError()

	return c.Render("login", fiber.Map{
		"Mode":      mode,
		"Email":     "",
		"Error":     "",
		"CSRFToken": middleware.GenerateCSRFToken(c),
	})
}

// HandleLogin processes the login form.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	return h.handleAuth(c, "login")
}

// HandleSignup processes the signup form.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	return h.handleAuth(c, "signup")
}

func (h *AuthHandler) handleAuth(c *fiber.Ctx, mode string) error {
	app, sess, err := h.app(c)
	if err != nil {
		return utils.InternalServerError("Session error", err)
	}

	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	renderError := func(status int, message string) error {
		return c.Status(status).Render("login", fiber.Map{
			"Mode":      mode,
			"Email":     email,
			"Error":     message,
			"CSRFToken": middleware.GenerateCSRFToken(c),
		})
	}

	if email == "" || password == "" {
		return renderError(fiber.StatusBadRequest, "Email and password are required")
	}
	if !utils.ValidEmailShape(email) {
		return renderError(fiber.StatusBadRequest, "Invalid email format")
	}

	if mode == "signup" {
		if c.FormValue("cpassword") != password {
			return renderError(fiber.StatusBadRequest, "Passwords do not match")
		}
		app.Session.Signup(c.Context(), email, password)
	} else {
		app.Session.Login(c.Context(), email, password)
	}

	state := app.Session.State()
	if !state.IsLoggedIn || state.Error != "" {
		message := state.Error
		if message == "" {
			message = "Invalid credentials or server error"
		}
		return renderError(fiber.StatusUnauthorized, message)
	}

	token, err := api.GenerateToken(state.UserID, state.Email, h.config.Auth.JWTSecret, state.ExpiresAt)
	if err != nil {
		return renderError(fiber.StatusInternalServerError, "Failed to create authentication token")
	}

	sess.Set("token", token)
	sess.Set("email", state.Email)
	if err := sess.Save(); err != nil {
		return renderError(fiber.StatusInternalServerError, "Failed to create session")
	}

	utils.Log.Info("User signed in: %s", state.Email)
	return c.Redirect("/home")
}

// HandleLogout clears the session and returns to the login page. Safe to
// hit while already logged out.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return c.Redirect("/login")
	}

	app := h.manager.App(sess.ID())
	app.Session.Logout()
	h.manager.Drop(sess.ID())

	if err := sess.Destroy(); err != nil {
		utils.Log.Warn("Failed to destroy session: %v", err)
	}

	return c.Redirect("/login")
}
