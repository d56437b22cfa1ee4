package middleware

import (
	"strings"

	"bulkmail/auth"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// SubjectFunc builds what a guard decides on from the current browser
type SubjectFunc func(b *Browser) auth.Subject

// Guard runs the guard before the protected handler. The handler never runs
// until the decision is Authorized, so no protected content is rendered
// while validation is pending.
func Guard(guard *auth.Guard, subject SubjectFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b := CurrentBrowser(c)
		if b == nil {
			return utils.InternalServerError("Browser identity missing", nil)
		}

		decision := guard.Check(c.UserContext(), intendedPath(c), subject(b))

		switch decision.State {
		case auth.Authorized:
			return c.Next()
		case auth.Abandoned:
			return c.SendStatus(fiber.StatusServiceUnavailable)
		default:
			utils.Log.WithField("guard", guard.Config().Name).Debug("Redirecting %s to %s", c.Path(), decision.Redirect)
			return Redirect(c, decision.Redirect, fiber.StatusUnauthorized)
		}
	}
}

// Redirect sends the client to target: a JSON error for API calls, an
// HX-Redirect header for htmx requests and a 302 otherwise
func Redirect(c *fiber.Ctx, target string, apiStatus int) error {
	if IsAPIRequest(c) {
		return c.Status(apiStatus).JSON(fiber.Map{
			"error":    fiberutils.StatusMessage(apiStatus),
			"redirect": target,
		})
	}
	if IsHTMX(c) {
		c.Set("HX-Redirect", target)
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Redirect(target, fiber.StatusFound)
}

// RequireAdmin lets only the admin marker through. Passkey holders are sent
// to their own landing page.
func RequireAdmin(landing string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b := CurrentBrowser(c)
		if b != nil && b.Access.IsAdmin() {
			return c.Next()
		}
		return Redirect(c, landing, fiber.StatusForbidden)
	}
}

// IsAPIRequest reports whether the request expects JSON
func IsAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	return strings.HasPrefix(c.Path(), "/api")
}

// IsHTMX reports whether the request was issued by htmx
func IsHTMX(c *fiber.Ctx) bool {
	return c.Get("HX-Request") != ""
}

// intendedPath is the route worth resuming after authentication. Only page
// navigations qualify.
func intendedPath(c *fiber.Ctx) string {
	if c.Method() != fiber.MethodGet || IsAPIRequest(c) || IsHTMX(c) {
		return ""
	}
	return c.OriginalURL()
}
