package api

import (
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
)

// I18nHandler handles i18n-related requests
type I18nHandler struct{}

// clientMessages are the keys the page scripts need
var clientMessages = []string{
	"error_network",
	"error_500",
	"token_required",
	"recipients_required",
	"select_one_message",
	"select_at_least_one",
	"confirm_delete_message",
	"message_deleted",
	"history_cleared",
	"smtp_fields_required",
	"smtp_saved",
	"smtp_deleted",
	"passkey_added",
	"passkey_deleted",
	"validating_session",
	"validating_access",
}

// GetTranslations returns translations for the client-side JavaScript
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if lang != "en" && lang != "ja" {
		lang = "en"
	}

	localizer := utils.GetLocalizer(lang)

	translations := make(map[string]string, len(clientMessages))
	for _, id := range clientMessages {
		translations[id] = utils.T(localizer, id)
	}

	return c.JSON(translations)
}
