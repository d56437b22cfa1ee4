package api

import (
	"bulkmail/compose"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
)

type recipientsRequest struct {
	Existing []string `json:"existing" form:"existing"`
	Input    string   `json:"input" form:"input"`
	Remove   string   `json:"remove" form:"remove"`
}

// Recipients merges typed or pasted text into the composer's recipient
// chips. Called on space, blur and paste.
func Recipients(c *fiber.Ctx) error {
	var req recipientsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request body", err)
	}

	list := compose.NewRecipients(req.Existing...)
	if req.Remove != "" {
		list.Remove(req.Remove)
	}
	added := list.Insert(req.Input)
	if added == nil {
		added = []string{}
	}

	return c.JSON(fiber.Map{
		"recipients": list.List(),
		"added":      added,
	})
}
