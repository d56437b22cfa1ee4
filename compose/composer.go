// Package compose implements the bulk-send form.
package compose

import (
	"context"
	"errors"
	"strings"
	"time"

	"bulkmail/models"
	"bulkmail/utils"

	"github.com/google/uuid"
)

// ErrNoRecipients is returned by Submit when the recipient list is empty
var ErrNoRecipients = errors.New("at least one recipient is required")

// Sender delivers a bulk message
type Sender interface {
	SendBulk(ctx context.Context, msg models.BulkMessage) error
}

// Recorder stores what was sent. history.Cache implements it.
type Recorder interface {
	Record(ctx context.Context, records []models.Record) error
}

// Result describes a completed send
type Result struct {
	Sent    int
	Records []models.Record
	// HistoryErr is set when the send succeeded but recording it failed
	HistoryErr error
}

// Composer holds the form state and submits it
type Composer struct {
	Recipients *Recipients
	Subject    string
	Body       string

	sender   Sender
	recorder Recorder
	now      func() time.Time
}

// NewComposer creates an empty form. recorder may be nil.
func NewComposer(sender Sender, recorder Recorder) *Composer {
	return &Composer{
		Recipients: NewRecipients(),
		sender:     sender,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Message returns the payload Submit would send
func (c *Composer) Message() models.BulkMessage {
	return models.BulkMessage{
		Recipients: c.Recipients.List(),
		Subject:    strings.TrimSpace(c.Subject),
		Body:       c.Body,
	}
}

// Submit sends the form. On failure the form is left intact for a retry; on
// success it is cleared and one record per recipient is handed to the
// recorder.
func (c *Composer) Submit(ctx context.Context) (Result, error) {
	if c.Recipients.Len() == 0 {
		return Result{}, ErrNoRecipients
	}

	msg := c.Message()
	if err := c.sender.SendBulk(ctx, msg); err != nil {
		return Result{}, err
	}

	sentAt := c.now().UTC()
	records := make([]models.Record, 0, len(msg.Recipients))
	for _, recipient := range msg.Recipients {
		records = append(records, models.Record{
			ID:             uuid.New().String(),
			RecipientEmail: recipient,
			Subject:        msg.Subject,
			Body:           msg.Body,
			Timestamp:      sentAt,
		})
	}

	c.Recipients.Reset()
	c.Subject = ""
	c.Body = ""

	result := Result{Sent: len(records), Records: records}
	if c.recorder != nil {
		if err := c.recorder.Record(ctx, records); err != nil {
			utils.Log.Warn("Sent %d message(s) but failed to record history: %v", len(records), err)
			result.HistoryErr = err
		}
	}
	return result, nil
}
