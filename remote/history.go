package remote

import (
	"context"
	"net/url"

	"bulkmail/models"

	"github.com/valyala/fasthttp"
)

// ListHistory returns the message history owned by token
func (c *ConfigClient) ListHistory(ctx context.Context, token string) ([]models.Record, error) {
	body, err := c.client.call(ctx, fasthttp.MethodGet, "/message-history?token="+url.QueryEscape(token), nil, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data []models.Record `json:"data"`
	}
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SaveHistory stores freshly sent records under token
func (c *ConfigClient) SaveHistory(ctx context.Context, token string, records []models.Record) error {
	body, err := c.client.call(ctx, fasthttp.MethodPost, "/message-history", nil, map[string]interface{}{
		"token":    token,
		"messages": records,
	})
	if err != nil {
		return err
	}
	return expectAccepted(body)
}

// DeleteHistory removes the listed records owned by token
func (c *ConfigClient) DeleteHistory(ctx context.Context, token string, ids []string) error {
	body, err := c.client.call(ctx, fasthttp.MethodDelete, "/message-history", nil, map[string]interface{}{
		"token": token,
		"ids":   ids,
	})
	if err != nil {
		return err
	}
	return expectAccepted(body)
}
