// Package server assembles the fiber application.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"bulkmail/auth"
	"bulkmail/compose"
	"bulkmail/config"
	"bulkmail/handlers/api"
	"bulkmail/handlers/web"
	"bulkmail/history"
	"bulkmail/middleware"
	"bulkmail/storage"
	"bulkmail/templates"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
)

// MailService is the mail service client
type MailService interface {
	auth.TokenVerifier
	compose.TokenSender
}

// ConfigService is the config service client
type ConfigService interface {
	auth.PasskeyVerifier
	api.SMTPService
	history.RemoteAPI
}

// Deps are the collaborators the application is built from
type Deps struct {
	Config   *config.Config
	Registry *auth.Registry
	Signer   *auth.DeviceSigner
	Mail     MailService
	Services ConfigService
	History  *storage.HistoryStorage
	// Context is cancelled on shutdown; requests still validating then
	// end as abandoned
	Context context.Context
	// Quiet disables request logging
	Quiet bool
}

// NewEngine creates the template engine over the embedded templates
func NewEngine() *html.Engine {
	engine := html.NewFileSystem(http.FS(templates.FS), ".html")

	engine.AddFunc("t", func(lang interface{}, messageID string) string {
		l, _ := lang.(string)
		return utils.T(utils.GetLocalizer(l), messageID)
	})
	engine.AddFunc("tPlural", func(lang interface{}, messageID string, count int) string {
		l, _ := lang.(string)
		return utils.TPlural(utils.GetLocalizer(l), messageID, count)
	})
	engine.AddFunc("formatDate", func(t time.Time) string {
		return t.Local().Format("Jan 02, 2006 15:04")
	})
	engine.AddFunc("lower", strings.ToLower)

	return engine
}

// New builds the application
func New(d Deps) *fiber.App {
	cfg := d.Config
	if d.Context == nil {
		d.Context = context.Background()
	}

	app := fiber.New(fiber.Config{
		Views:                 NewEngine(),
		ViewsLayout:           "layouts/main",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	if !d.Quiet {
		app.Use(logger.New())
	}
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; connect-src 'self'",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	app.Use(middleware.LocaleMiddleware())
	app.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		Requests: 100,
		Per:      time.Minute,
		Context:  d.Context,
	}))
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(d.Context)
		return c.Next()
	})
	app.Use(middleware.BrowserIdentity(middleware.BrowserConfig{
		Signer:   d.Signer,
		Registry: d.Registry,
		Secure:   cfg.Session.SecureCookies,
	}))
	csrf := middleware.DefaultCSRFConfig()
	csrf.Secure = cfg.Session.SecureCookies
	app.Use(middleware.CSRFProtection(csrf))

	provider := history.Provider{
		Mode:   cfg.History.Mode,
		Remote: d.Services,
		Local:  d.History,
	}

	mailGuard := middleware.Guard(
		auth.NewGuard(auth.GuardConfig{
			Name:      "mail",
			Fallback:  cfg.Routes.MailFallback,
			IntentKey: auth.KeyRedirectLogin,
		}),
		func(b *middleware.Browser) auth.Subject {
			return auth.Subject{
				Credential: b.Session,
				Validator:  auth.NewTokenValidator(b.Session, d.Mail),
				Intents:    b.Intents,
			}
		},
	)
	smtpGuard := middleware.Guard(
		auth.NewGuard(auth.GuardConfig{
			Name:      "smtp",
			Fallback:  cfg.Routes.SMTPFallback,
			IntentKey: auth.KeyRedirectAccess,
		}),
		func(b *middleware.Browser) auth.Subject {
			return auth.Subject{
				Credential: b.Access,
				Validator:  auth.NewAccessValidator(b.Access, d.Services, cfg.Admin.TokenHash),
				Intents:    b.Intents,
			}
		},
	)
	adminOnly := middleware.RequireAdmin(cfg.Routes.PasskeyLanding)

	authHandler := web.NewAuthHandler(cfg, d.Mail, d.Services)
	mailHandler := web.NewMailHandler(d.Mail, provider)
	demoHandler := web.NewDemoHandler(provider)
	smtpHandler := api.NewSMTPHandler(d.Services)
	settingsHandler := web.NewSettingsHandler(smtpHandler)
	adminHandler := web.NewAdminHandler(smtpHandler)
	historyHandler := api.NewHistoryHandler(api.SessionSource(provider))
	sendHandler := api.NewSendHandler(d.Mail, api.SessionSource(provider))
	demoHistory := api.NewHistoryHandler(api.DemoSource(provider))
	notifications := api.NewNotificationHandler(d.Registry, 30*time.Second)
	i18nHandler := &api.I18nHandler{}

	// Public pages
	app.Get("/", authHandler.ShowHome)
	app.Get("/verify", authHandler.ShowVerify)
	app.Post("/verify", authHandler.HandleVerify)
	app.Get("/logout", authHandler.HandleLogout)
	app.Get("/dash", authHandler.ShowDash)
	app.Post("/dash/passkey", authHandler.HandleAccess)
	app.Get("/smtp/logout", authHandler.HandleSMTPLogout)
	app.Get("/demo", demoHandler.Show)
	app.Post("/demo", demoHandler.Submit)

	// Mail-send area
	app.Get("/send-mail", mailGuard, mailHandler.Show)
	app.Post("/send-mail", mailGuard, mailHandler.Submit)

	// SMTP area
	app.Get("/smtps", smtpGuard, settingsHandler.ShowSMTPs)
	app.Get("/admin", smtpGuard, adminOnly, adminHandler.ShowAdmin)

	apiRoutes := app.Group("/api")
	{
		apiRoutes.Post("/recipients", api.Recipients)
		apiRoutes.Get("/i18n/:lang", i18nHandler.GetTranslations)

		apiRoutes.Post("/send", mailGuard, sendHandler.HandleSend)

		hist := apiRoutes.Group("/history", mailGuard)
		hist.Get("/", historyHandler.List)
		hist.Post("/apply", historyHandler.Apply)
		hist.Post("/delete", historyHandler.DeleteSelected)
		hist.Delete("/:id", historyHandler.DeleteOne)

		demo := apiRoutes.Group("/demo/history")
		demo.Get("/", demoHistory.List)
		demo.Post("/emails", demoHistory.Remember)
		demo.Post("/apply", demoHistory.Apply)
		demo.Post("/delete", demoHistory.DeleteSelected)
		demo.Delete("/:id", demoHistory.DeleteOne)

		smtp := apiRoutes.Group("/smtp", smtpGuard)
		smtp.Get("/", smtpHandler.List)
		smtp.Post("/", smtpHandler.Save)
		smtp.Get("/passkeys", adminOnly, smtpHandler.ListPasskeys)
		smtp.Post("/passkeys", adminOnly, smtpHandler.AddPasskey)
		smtp.Delete("/passkeys/:key", adminOnly, smtpHandler.DeletePasskey)
		smtp.Delete("/:id", adminOnly, smtpHandler.Delete)
	}

	app.Get("/ws/session", notifications.Upgrade, websocket.New(notifications.HandleWebSocket))

	app.Use(func(c *fiber.Ctx) error {
		return utils.NotFoundError(api.Translate(c, "error_404"), nil)
	})

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if appErr, ok := utils.AsAppError(err); ok {
		code = appErr.Code
		message = appErr.Message
		if code >= fiber.StatusInternalServerError {
			utils.Log.Error("Application error: %v", appErr)
		} else {
			utils.Log.Debug("Request error: %v", appErr)
		}
	} else if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else {
		utils.Log.Error("Unhandled error: %v", err)
		message = api.Translate(c, "error_500")
	}

	if middleware.IsAPIRequest(c) || middleware.IsHTMX(c) {
		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}

	return c.Status(code).Render("error", fiber.Map{
		"Error": message,
		"Code":  code,
		"Lang":  c.Locals("lang"),
	})
}
