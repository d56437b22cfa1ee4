package web

import (
	"errors"
	"strings"

	"bulkmail/auth"
	"bulkmail/config"
	"bulkmail/handlers/api"
	"bulkmail/middleware"
	"bulkmail/remote"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler serves the token verification page and the SMTP access
// dashboard, where credentials are entered
type AuthHandler struct {
	routes    config.RoutesConfig
	tokens    auth.TokenVerifier
	passkeys  auth.PasskeyVerifier
	adminHash string
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(cfg *config.Config, tokens auth.TokenVerifier, passkeys auth.PasskeyVerifier) *AuthHandler {
	return &AuthHandler{
		routes:    cfg.Routes,
		tokens:    tokens,
		passkeys:  passkeys,
		adminHash: cfg.Admin.TokenHash,
	}
}

// ShowHome renders the landing page
func (h *AuthHandler) ShowHome(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "home", nil)
}

// ShowVerify renders the token form
func (h *AuthHandler) ShowVerify(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "verify", pending(c, auth.KeyRedirectLogin))
}

// HandleVerify checks a mail-sending token and, when accepted, stores it and
// resumes the route the visitor was heading to
func (h *AuthHandler) HandleVerify(c *fiber.Ctx) error {
	b := middleware.CurrentBrowser(c)
	token := strings.TrimSpace(c.FormValue("token"))

	if token == "" {
		return render(c, fiber.StatusBadRequest, "verify", fiber.Map{
			"Error": api.Translate(c, "token_required"),
		})
	}

	if err := h.tokens.VerifyToken(c.UserContext(), token); err != nil {
		status, message := credentialError(c, err)
		utils.Log.WithField("token", utils.Mask(token)).Warn("Token verification failed: %v", err)
		return render(c, status, "verify", fiber.Map{"Error": message})
	}

	if err := b.Session.Login(token); err != nil {
		return utils.InternalServerError(api.Translate(c, "error_500"), err)
	}

	target := b.Intents.Resume(auth.KeyRedirectLogin, h.routes.MailLanding)
	utils.Log.WithField("device", b.DeviceID).Info("Token verified, continuing to %s", target)
	return middleware.Redirect(c, target, fiber.StatusOK)
}

// HandleLogout clears the session token
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	b := middleware.CurrentBrowser(c)
	if err := b.Session.Logout(); err != nil {
		return utils.InternalServerError(api.Translate(c, "error_500"), err)
	}
	return middleware.Redirect(c, "/", fiber.StatusOK)
}

// ShowDash renders the passkey / admin token form
func (h *AuthHandler) ShowDash(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "dash", pending(c, auth.KeyRedirectAccess))
}

// pending shows where the visitor returns after signing in, without
// consuming the saved route
func pending(c *fiber.Ctx, key string) fiber.Map {
	data := fiber.Map{}
	if b := middleware.CurrentBrowser(c); b != nil {
		if path, ok := b.Intents.Peek(key); ok {
			data["Continue"] = path
		}
	}
	return data
}

// HandleAccess grants SMTP access for a passkey or the admin token
func (h *AuthHandler) HandleAccess(c *fiber.Ctx) error {
	b := middleware.CurrentBrowser(c)

	if adminToken := strings.TrimSpace(c.FormValue("admin_token")); adminToken != "" {
		if !auth.MatchAdminToken(h.adminHash, adminToken) {
			utils.Log.Warn("Admin token rejected for device %s", b.DeviceID)
			return render(c, fiber.StatusUnauthorized, "dash", fiber.Map{
				"Error": api.Translate(c, "token_invalid"),
			})
		}
		if err := b.Access.Grant(auth.KindAdmin, adminToken); err != nil {
			return utils.InternalServerError(api.Translate(c, "error_500"), err)
		}
		return middleware.Redirect(c, b.Intents.Resume(auth.KeyRedirectAccess, h.routes.AdminLanding), fiber.StatusOK)
	}

	passkey := strings.TrimSpace(c.FormValue("passkey"))
	if passkey == "" {
		return render(c, fiber.StatusBadRequest, "dash", fiber.Map{
			"Error": api.Translate(c, "token_required"),
		})
	}

	if err := h.passkeys.VerifyPasskey(c.UserContext(), passkey); err != nil {
		status, message := credentialError(c, err)
		utils.Log.WithField("passkey", utils.Mask(passkey)).Warn("Passkey verification failed: %v", err)
		return render(c, status, "dash", fiber.Map{"Error": message})
	}

	if err := b.Access.Grant(auth.KindPasskey, passkey); err != nil {
		return utils.InternalServerError(api.Translate(c, "error_500"), err)
	}

	// a passkey never resumes into the admin area
	target := b.Intents.Resume(auth.KeyRedirectAccess, h.routes.PasskeyLanding, h.routes.AdminLanding)
	return middleware.Redirect(c, target, fiber.StatusOK)
}

// HandleSMTPLogout drops the SMTP access markers of the tab
func (h *AuthHandler) HandleSMTPLogout(c *fiber.Ctx) error {
	middleware.CurrentBrowser(c).Access.Revoke()
	return middleware.Redirect(c, h.routes.SMTPFallback, fiber.StatusOK)
}

// credentialError separates a rejected credential from an unreachable service
func credentialError(c *fiber.Ctx, err error) (int, string) {
	var remoteErr *remote.Error
	if errors.Is(err, remote.ErrRejected) || (errors.As(err, &remoteErr) && remoteErr.Status < 500) {
		return fiber.StatusUnauthorized, api.Translate(c, "token_invalid")
	}
	return errorStatus(c, err)
}
