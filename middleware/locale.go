package middleware

import (
	"github.com/gofiber/fiber/v2"

	"flaremail/utils"
)

// LocaleMiddleware resolves the request language (query, then cookie, then
// default) and stashes a localizer in request locals.
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := c.Query("lang")
		if lang == "" {
			lang = c.Cookies("lang")
		}
		if lang == "" {
			lang = "en"
		}

		// Only English ships right now; anything else falls back.
		if lang != "en" {
			lang = "en"
		}

		c.Locals("lang", lang)
		c.Locals("localizer", utils.GetLocalizer(lang))
		return c.Next()
	}
}
