package web

import (
	"bulkmail/handlers/api"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	smtp *api.SMTPHandler
}

func NewAdminHandler(smtp *api.SMTPHandler) *AdminHandler {
	return &AdminHandler{smtp: smtp}
}

// ShowAdmin renders the admin console with every SMTP config and passkey.
// The route is admin only.
func (h *AdminHandler) ShowAdmin(c *fiber.Ctx) error {
	data := fiber.Map{}

	configs, err := h.smtp.LoadConfigs(c)
	if err != nil {
		_, data["Error"] = errorStatus(c, err)
	}
	passkeys, err := h.smtp.LoadPasskeys(c)
	if err != nil {
		_, data["Error"] = errorStatus(c, err)
	}

	data["Configs"] = configs
	data["Passkeys"] = passkeys
	return render(c, fiber.StatusOK, "admin", data)
}
