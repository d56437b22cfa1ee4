package api

import (
	"context"
	"strings"

	"bulkmail/models"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
)

// SMTPService is the config service surface used for SMTP credentials
type SMTPService interface {
	SMTPsByPasskey(ctx context.Context, passkey string) ([]models.SMTPConfig, error)
	AllSMTPs(ctx context.Context, adminToken string) ([]models.SMTPConfig, error)
	SaveSMTP(ctx context.Context, adminToken string, req models.SaveSMTPRequest) error
	DeleteSMTP(ctx context.Context, adminToken, id string) error
	Passkeys(ctx context.Context, adminToken string) ([]string, error)
	AddPasskey(ctx context.Context, adminToken, passkey string) error
	DeletePasskey(ctx context.Context, adminToken, passkey string) error
}

// SMTPHandler manages SMTP credentials for passkey holders and the admin.
// Every route sits behind the SMTP access guard.
type SMTPHandler struct {
	service SMTPService
}

// NewSMTPHandler creates a new SMTPHandler
func NewSMTPHandler(service SMTPService) *SMTPHandler {
	return &SMTPHandler{service: service}
}

// LoadConfigs returns the configs visible to the current browser: its own
// for a passkey holder, all of them for the admin
func (h *SMTPHandler) LoadConfigs(c *fiber.Ctx) ([]models.SMTPConfig, error) {
	b, err := browser(c)
	if err != nil {
		return nil, err
	}

	snap := b.Access.Snapshot()
	var configs []models.SMTPConfig
	if snap.AdminToken != "" {
		configs, err = h.service.AllSMTPs(c.UserContext(), snap.AdminToken)
	} else {
		configs, err = h.service.SMTPsByPasskey(c.UserContext(), snap.Passkey)
	}
	if err != nil {
		return nil, HTTPError(c, err)
	}
	if configs == nil {
		configs = []models.SMTPConfig{}
	}
	return configs, nil
}

// List returns the visible configs
func (h *SMTPHandler) List(c *fiber.Ctx) error {
	configs, err := h.LoadConfigs(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": configs})
}

// Save creates or updates a config
func (h *SMTPHandler) Save(c *fiber.Ctx) error {
	b, err := browser(c)
	if err != nil {
		return err
	}

	var cfg models.SMTPConfig
	if err := c.BodyParser(&cfg); err != nil {
		return utils.BadRequestError("Invalid request body", err)
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.User = strings.TrimSpace(cfg.User)
	cfg.From = strings.TrimSpace(cfg.From)
	cfg.Token = strings.TrimSpace(cfg.Token)

	snap := b.Access.Snapshot()
	admin := snap.AdminToken != ""
	if !admin {
		cfg.PassKey = snap.Passkey
	}

	if cfg.Missing(admin && cfg.ID == "") {
		return utils.BadRequestError(Translate(c, "smtp_fields_required"), nil)
	}

	if err := h.service.SaveSMTP(c.UserContext(), snap.AdminToken, cfg.SaveRequest()); err != nil {
		return HTTPError(c, err)
	}

	utils.Log.WithField("host", cfg.Host).Info("SMTP config saved")
	return c.JSON(fiber.Map{"success": true, "message": Translate(c, "smtp_saved")})
}

// Delete removes a config (admin only)
func (h *SMTPHandler) Delete(c *fiber.Ctx) error {
	b, err := browser(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	if err := h.service.DeleteSMTP(c.UserContext(), b.Access.AdminToken(), id); err != nil {
		return HTTPError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": Translate(c, "smtp_deleted")})
}

// ListPasskeys returns every passkey (admin only)
func (h *SMTPHandler) ListPasskeys(c *fiber.Ctx) error {
	keys, err := h.LoadPasskeys(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"passkeys": keys})
}

// LoadPasskeys fetches the passkey list with the admin marker
func (h *SMTPHandler) LoadPasskeys(c *fiber.Ctx) ([]string, error) {
	b, err := browser(c)
	if err != nil {
		return nil, err
	}
	keys, err := h.service.Passkeys(c.UserContext(), b.Access.AdminToken())
	if err != nil {
		return nil, HTTPError(c, err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// AddPasskey registers a new passkey (admin only)
func (h *SMTPHandler) AddPasskey(c *fiber.Ctx) error {
	b, err := browser(c)
	if err != nil {
		return err
	}

	var req struct {
		PassKey string `json:"passKey" form:"passKey"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request body", err)
	}
	req.PassKey = strings.TrimSpace(req.PassKey)
	if req.PassKey == "" {
		return utils.BadRequestError(Translate(c, "token_required"), nil)
	}

	if err := h.service.AddPasskey(c.UserContext(), b.Access.AdminToken(), req.PassKey); err != nil {
		return HTTPError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": Translate(c, "passkey_added")})
}

// DeletePasskey removes a passkey (admin only)
func (h *SMTPHandler) DeletePasskey(c *fiber.Ctx) error {
	b, err := browser(c)
	if err != nil {
		return err
	}

	if err := h.service.DeletePasskey(c.UserContext(), b.Access.AdminToken(), c.Params("key")); err != nil {
		return HTTPError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": Translate(c, "passkey_deleted")})
}
