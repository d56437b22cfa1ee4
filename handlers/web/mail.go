package web

import (
	"bulkmail/compose"
	"bulkmail/handlers/api"
	"bulkmail/history"
	"bulkmail/middleware"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
)

// SenderFunc picks how the current request's mail is delivered
type SenderFunc func(c *fiber.Ctx) (compose.Sender, error)

// MailHandler renders the composer with its history sidebar and submits it.
// The real send page and the demo page differ only in source, sender and
// template.
type MailHandler struct {
	page   string
	source api.SourceFunc
	sender SenderFunc
	// historyAPI is where the sidebar script sends selections and deletes
	historyAPI string
	// remember stores recipient chips in the email history as they are typed
	remember bool
}

// NewMailHandler creates the handler of the guarded send page
func NewMailHandler(client compose.TokenSender, provider history.Provider) *MailHandler {
	return &MailHandler{
		page:       "send_mail",
		source:     api.SessionSource(provider),
		historyAPI: "/api/history",
		sender: func(c *fiber.Ctx) (compose.Sender, error) {
			token, _, ok := middleware.CurrentBrowser(c).Session.Token()
			if !ok {
				return nil, utils.UnauthorizedError(api.Translate(c, "token_required"), nil)
			}
			return compose.Authorized(client, token), nil
		},
	}
}

// NewDemoHandler creates the handler of the public demo page, which keeps
// its history locally and delivers nothing
func NewDemoHandler(provider history.Provider) *MailHandler {
	return &MailHandler{
		page:       "demo",
		source:     api.DemoSource(provider),
		historyAPI: "/api/demo/history",
		remember:   true,
		sender: func(*fiber.Ctx) (compose.Sender, error) {
			return compose.DemoSender{}, nil
		},
	}
}

func (h *MailHandler) cache(c *fiber.Ctx) (*history.Cache, error) {
	source, err := h.source(c)
	if err != nil {
		return nil, err
	}
	cache := history.NewCache(source)
	if err := cache.Load(c.UserContext()); err != nil {
		// the composer stays usable without its sidebar
		utils.Log.Warn("Failed to load history: %v", err)
		return cache, err
	}
	return cache, nil
}

func (h *MailHandler) renderPage(c *fiber.Ctx, status int, cache *history.Cache, form *compose.Composer, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Emails"] = cache.Emails()
	data["Messages"] = api.Entries(cache.Messages())
	data["Recipients"] = form.Recipients.List()
	data["Subject"] = form.Subject
	data["Body"] = form.Body
	data["HistoryAPI"] = h.historyAPI
	data["RememberEmails"] = h.remember
	return render(c, status, h.page, data)
}

// Show renders an empty composer
func (h *MailHandler) Show(c *fiber.Ctx) error {
	cache, err := h.cache(c)
	if cache == nil {
		return err
	}

	data := fiber.Map{}
	if err != nil {
		_, data["HistoryError"] = errorStatus(c, err)
	}
	return h.renderPage(c, fiber.StatusOK, cache, compose.NewComposer(compose.DemoSender{}, nil), data)
}

// Submit sends the form. Failures re-render it with its content intact.
func (h *MailHandler) Submit(c *fiber.Ctx) error {
	cache, err := h.cache(c)
	if cache == nil {
		return err
	}

	sender, err := h.sender(c)
	if err != nil {
		return err
	}

	form := compose.NewComposer(sender, cache)
	form.Recipients.Insert(c.FormValue("recipients"))
	form.Subject = c.FormValue("subject")
	form.Body = c.FormValue("body")

	result, err := form.Submit(c.UserContext())
	if err != nil {
		status, message := errorStatus(c, err)
		if status >= fiber.StatusInternalServerError {
			message = api.Translate(c, "send_failed")
		}
		utils.Log.Warn("Bulk send failed: %v", err)
		return h.renderPage(c, status, cache, form, fiber.Map{"Error": message})
	}

	data := fiber.Map{
		"Success": utils.TPlural(api.Localizer(c), "emails_sent", result.Sent),
	}
	if result.HistoryErr != nil {
		_, data["HistoryError"] = errorStatus(c, result.HistoryErr)
	}
	return h.renderPage(c, fiber.StatusOK, cache, form, data)
}
