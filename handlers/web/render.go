package web

import (
	"bulkmail/handlers/api"
	"bulkmail/middleware"

	"github.com/gofiber/fiber/v2"
)

// render adds the values every page layout needs
func render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Lang"] = c.Locals("lang")
	data["CSRFToken"] = c.Locals("csrf")
	data["Path"] = c.Path()

	if b := middleware.CurrentBrowser(c); b != nil {
		data["Authenticated"] = b.Session.IsAuthenticated()
		data["HasAccess"] = b.Access.HasAccess()
		data["IsAdmin"] = b.Access.IsAdmin()
	}

	return c.Status(status).Render(name, data)
}

// errorStatus maps err to the status and localized message shown inline
func errorStatus(c *fiber.Ctx, err error) (int, string) {
	appErr := api.HTTPError(c, err)
	return appErr.Code, appErr.Message
}
