package api

import (
	"context"
	"errors"
	"strings"

	"bulkmail/compose"
	"bulkmail/history"
	"bulkmail/middleware"
	"bulkmail/remote"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Localizer returns the request localizer set by the locale middleware
func Localizer(c *fiber.Ctx) *i18n.Localizer {
	localizer, _ := c.Locals("localizer").(*i18n.Localizer)
	return localizer
}

// Translate localizes messageID for the current request
func Translate(c *fiber.Ctx, messageID string) string {
	return utils.T(Localizer(c), messageID)
}

// HTTPError maps domain errors to an AppError carrying a localized message
func HTTPError(c *fiber.Ctx, err error) *utils.AppError {
	if appErr, ok := utils.AsAppError(err); ok {
		return appErr
	}

	var remoteErr *remote.Error
	switch {
	case errors.Is(err, history.ErrMultipleMessages):
		return utils.BadRequestError(Translate(c, "select_one_message"), err)
	case errors.Is(err, history.ErrNothingSelected):
		return utils.BadRequestError(Translate(c, "select_at_least_one"), err)
	case errors.Is(err, history.ErrNotConfirmed):
		return utils.ConflictError(Translate(c, "confirm_delete_message"), err)
	case errors.Is(err, history.ErrRecordNotFound):
		return utils.NotFoundError(Translate(c, "error_404"), err)
	case errors.Is(err, compose.ErrNoRecipients):
		return utils.BadRequestError(Translate(c, "recipients_required"), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return utils.NewAppError(fiber.StatusServiceUnavailable, Translate(c, "error_network"), err)
	case errors.Is(err, remote.ErrRejected):
		return utils.BadGatewayError(Translate(c, "error_500"), err)
	case errors.As(err, &remoteErr):
		return utils.BadGatewayError(Translate(c, "error_network"), err)
	default:
		return utils.InternalServerError(Translate(c, "error_500"), err)
	}
}

// browser returns the current browser or fails the request
func browser(c *fiber.Ctx) (*middleware.Browser, error) {
	b := middleware.CurrentBrowser(c)
	if b == nil {
		return nil, utils.InternalServerError("Browser identity missing", nil)
	}
	return b, nil
}

// splitList accepts either repeated values or one comma separated value
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
