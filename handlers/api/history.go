package api

import (
	"bulkmail/auth"
	"bulkmail/history"
	"bulkmail/models"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
)

// SourceFunc picks the history source for the current request
type SourceFunc func(c *fiber.Ctx) (history.Source, error)

// HistoryHandler serves the history sidebar
type HistoryHandler struct {
	source SourceFunc
}

// NewHistoryHandler creates a handler over the sources chosen by source
func NewHistoryHandler(source SourceFunc) *HistoryHandler {
	return &HistoryHandler{source: source}
}

// SessionSource uses the provider with the browser's session token
func SessionSource(provider history.Provider) SourceFunc {
	return func(c *fiber.Ctx) (history.Source, error) {
		b, err := browser(c)
		if err != nil {
			return nil, err
		}
		token, _, ok := b.Session.Token()
		if !ok {
			return nil, utils.UnauthorizedError(Translate(c, "token_required"), auth.ErrEmptyToken)
		}
		return provider.For(token, b.DeviceID), nil
	}
}

// DemoSource uses the provider's demo storage of the browser's device
func DemoSource(provider history.Provider) SourceFunc {
	return func(c *fiber.Ctx) (history.Source, error) {
		b, err := browser(c)
		if err != nil {
			return nil, err
		}
		return provider.Demo(b.DeviceID), nil
	}
}

// Entry is a message as listed in the sidebar
type Entry struct {
	models.Record
	Preview string `json:"preview"`
}

// Entries decorates records with a plain-text preview
func Entries(records []models.Record) []Entry {
	entries := make([]Entry, len(records))
	for i, rec := range records {
		entries[i] = Entry{Record: rec, Preview: utils.Preview(rec.Body, 80)}
	}
	return entries
}

func (h *HistoryHandler) load(c *fiber.Ctx) (*history.Cache, error) {
	source, err := h.source(c)
	if err != nil {
		return nil, err
	}
	cache := history.NewCache(source)
	if err := cache.Load(c.UserContext()); err != nil {
		return nil, HTTPError(c, err)
	}
	return cache, nil
}

func (h *HistoryHandler) respond(c *fiber.Ctx, cache *history.Cache, message string) error {
	body := fiber.Map{
		"emails":   cache.Emails(),
		"messages": Entries(cache.Messages()),
	}
	if message != "" {
		body["message"] = message
	}
	return c.JSON(body)
}

// List returns both history lists
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	cache, err := h.load(c)
	if err != nil {
		return err
	}
	return h.respond(c, cache, "")
}

type selectionRequest struct {
	Emails []string `json:"emails" form:"emails"`
	IDs    []string `json:"ids" form:"ids"`
}

// Apply turns a sidebar selection into composer content
func (h *HistoryHandler) Apply(c *fiber.Ctx) error {
	var req selectionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request body", err)
	}

	cache, err := h.load(c)
	if err != nil {
		return err
	}

	selection, err := cache.ApplySelection(splitList(req.Emails), splitList(req.IDs))
	if err != nil {
		return HTTPError(c, err)
	}
	if selection.Message != nil {
		selection.Message.Body = utils.SanitizeHTML(selection.Message.Body)
	}
	return c.JSON(selection)
}

// DeleteSelected removes the selected messages
func (h *HistoryHandler) DeleteSelected(c *fiber.Ctx) error {
	var req selectionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request body", err)
	}

	cache, err := h.load(c)
	if err != nil {
		return err
	}

	if err := cache.DeleteSelected(c.UserContext(), splitList(req.IDs)); err != nil {
		return HTTPError(c, err)
	}
	return h.respond(c, cache, Translate(c, "history_cleared"))
}

// DeleteOne removes a single message. The client confirms first and says so
// with ?confirm=true; without it the record is returned for the prompt.
func (h *HistoryHandler) DeleteOne(c *fiber.Ctx) error {
	cache, err := h.load(c)
	if err != nil {
		return err
	}

	confirmed := c.QueryBool("confirm", false)
	var pending models.Record
	err = cache.DeleteOne(c.UserContext(), c.Params("id"), func(rec models.Record) bool {
		pending = rec
		return confirmed
	})
	if err != nil {
		appErr := HTTPError(c, err)
		if appErr.Code == fiber.StatusConflict {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   appErr.Message,
				"confirm": Entries([]models.Record{pending})[0],
			})
		}
		return appErr
	}
	return h.respond(c, cache, Translate(c, "message_deleted"))
}

type rememberRequest struct {
	Emails []string `json:"emails" form:"emails"`
}

// Remember adds addresses to the email history without sending
func (h *HistoryHandler) Remember(c *fiber.Ctx) error {
	var req rememberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request body", err)
	}

	cache, err := h.load(c)
	if err != nil {
		return err
	}
	if err := cache.RememberEmails(c.UserContext(), splitList(req.Emails)); err != nil {
		return HTTPError(c, err)
	}
	return h.respond(c, cache, "")
}
