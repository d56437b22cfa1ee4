package api

import (
	"strings"

	"bulkmail/auth"
	"bulkmail/compose"
	"bulkmail/history"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
)

// SendHandler sends a bulk message for page scripts that submit the composer
// without a full page reload
type SendHandler struct {
	client compose.TokenSender
	source SourceFunc
}

// NewSendHandler creates a new send handler
func NewSendHandler(client compose.TokenSender, source SourceFunc) *SendHandler {
	return &SendHandler{client: client, source: source}
}

// SendRequest represents a bulk send request. Recipients may be a list or
// whitespace separated text.
type SendRequest struct {
	Recipients []string `json:"recipients"`
	Text       string   `json:"recipients_text"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// HandleSend sends the message and records it in the history
func (h *SendHandler) HandleSend(c *fiber.Ctx) error {
	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	b, err := browser(c)
	if err != nil {
		return err
	}
	token, _, ok := b.Session.Token()
	if !ok {
		return utils.UnauthorizedError(Translate(c, "token_required"), auth.ErrEmptyToken)
	}

	source, err := h.source(c)
	if err != nil {
		return err
	}
	cache := history.NewCache(source)

	form := compose.NewComposer(compose.Authorized(h.client, token), cache)
	form.Recipients.Insert(strings.Join(req.Recipients, " ") + " " + req.Text)
	form.Subject = req.Subject
	form.Body = req.Body

	result, err := form.Submit(c.UserContext())
	if err != nil {
		return HTTPError(c, err)
	}

	utils.Log.Info("Bulk message sent: recipients=%d subject=%q", result.Sent, req.Subject)

	body := fiber.Map{
		"success": true,
		"message": utils.TPlural(Localizer(c), "emails_sent", result.Sent),
		"sent":    result.Sent,
	}
	if result.HistoryErr != nil {
		body["history_error"] = HTTPError(c, result.HistoryErr).Message
	}
	return c.JSON(body)
}
