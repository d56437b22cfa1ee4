package remote

import (
	"context"

	"bulkmail/models"

	"github.com/valyala/fasthttp"
)

const authTokenHeader = "x-auth-token"

// MailClient calls the mail service
type MailClient struct {
	client *Client
}

// NewMailClient creates a mail service client
func NewMailClient(client *Client) *MailClient {
	return &MailClient{client: client}
}

func tokenHeaders(token string) map[string]string {
	return map[string]string{
		authTokenHeader: token,
		"Authorization": "Bearer " + token,
	}
}

// VerifyToken asks the mail service whether token is still accepted
func (m *MailClient) VerifyToken(ctx context.Context, token string) error {
	body, err := m.client.call(ctx, fasthttp.MethodGet, "/api/verify", tokenHeaders(token), nil)
	if err != nil {
		return err
	}
	return expectSuccess(body)
}

// SendBulk delivers one message to every recipient
func (m *MailClient) SendBulk(ctx context.Context, token string, msg models.BulkMessage) error {
	body, err := m.client.call(ctx, fasthttp.MethodPost, "/api/send-bulk-mail", tokenHeaders(token), msg)
	if err != nil {
		return err
	}
	return expectSuccess(body)
}
