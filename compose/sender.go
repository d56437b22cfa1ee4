package compose

import (
	"context"

	"bulkmail/models"
	"bulkmail/utils"
)

// TokenSender is the mail service client bound to one session token
type TokenSender interface {
	SendBulk(ctx context.Context, token string, msg models.BulkMessage) error
}

type authorizedSender struct {
	client TokenSender
	token  string
}

// Authorized binds client to token
func Authorized(client TokenSender, token string) Sender {
	return &authorizedSender{client: client, token: token}
}

func (s *authorizedSender) SendBulk(ctx context.Context, msg models.BulkMessage) error {
	return s.client.SendBulk(ctx, s.token, msg)
}

// DemoSender accepts everything and delivers nothing
type DemoSender struct{}

func (DemoSender) SendBulk(ctx context.Context, msg models.BulkMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	utils.Log.Info("Demo send to %d recipient(s): %q", len(msg.Recipients), msg.Subject)
	return nil
}
