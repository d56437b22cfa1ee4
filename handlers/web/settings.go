package web

import (
	"bulkmail/handlers/api"
	"bulkmail/middleware"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler renders the SMTP credential list. Data access goes through
// the API handler so pages and page scripts see the same thing.
type SettingsHandler struct {
	smtp *api.SMTPHandler
}

func NewSettingsHandler(smtp *api.SMTPHandler) *SettingsHandler {
	return &SettingsHandler{smtp: smtp}
}

// ShowSMTPs renders the credential list of the current access holder
func (h *SettingsHandler) ShowSMTPs(c *fiber.Ctx) error {
	data := fiber.Map{
		"Passkey": middleware.CurrentBrowser(c).Access.Passkey(),
	}

	configs, err := h.smtp.LoadConfigs(c)
	if err != nil {
		_, data["Error"] = errorStatus(c, err)
	}
	data["Configs"] = configs
	return render(c, fiber.StatusOK, "smtps", data)
}
