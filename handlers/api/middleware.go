package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"flaremail/store"
	"flaremail/utils"
)

// IsAPIRequest reports whether the caller expects JSON rather than a page.
func IsAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	if c.Get("HX-Request") != "" {
		return true
	}
	path := c.Path()
	return strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/htmx")
}

// SessionMiddleware gates protected routes. It resolves the per-browser
// state container (restoring a persisted session when one exists), checks
// expiry and the local token, and stashes the container and identity in
// request locals. Browsers are redirected to the login page; API and HTMX
// callers get a 401 instead.
func SessionMiddleware(sessions *session.Store, manager *store.Manager, jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.Get(c)
		if err != nil {
			return unauthenticated(c)
		}

		app := manager.App(sess.ID())
		if !app.Session.LoggedIn() {
			return unauthenticated(c)
		}

		// The cookie token is a second opinion on expiry; a bad one kills
		// the whole session.
		if token, ok := sess.Get("token").(string); ok && token != "" {
			if _, err := ValidateToken(token, jwtSecret); err != nil {
				app.Session.Logout()
				return unauthenticated(c)
			}
		}

		state := app.Session.State()
		c.Locals("app", app)
		c.Locals("email", state.Email)
		c.Locals("userId", state.UserID)
		return c.Next()
	}
}

func unauthenticated(c *fiber.Ctx) error {
	if IsAPIRequest(c) {
		return utils.UnauthorizedError("Not signed in", nil)
	}
	return c.Redirect("/login")
}

// AppFromCtx returns the state container stashed by SessionMiddleware.
func AppFromCtx(c *fiber.Ctx) (*store.App, error) {
	app, ok := c.Locals("app").(*store.App)
	if !ok || app == nil {
		return nil, utils.UnauthorizedError("Not signed in", nil)
	}
	return app, nil
}
