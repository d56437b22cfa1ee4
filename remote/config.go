package remote

import (
	"context"
	"net/url"

	"bulkmail/models"

	"github.com/valyala/fasthttp"
)

const adminTokenHeader = "x-admin-token"

// ConfigClient calls the config service: SMTP credentials, passkeys and the
// message history store
type ConfigClient struct {
	client *Client
}

// NewConfigClient creates a config service client
func NewConfigClient(client *Client) *ConfigClient {
	return &ConfigClient{client: client}
}

func adminHeaders(adminToken string) map[string]string {
	if adminToken == "" {
		return nil
	}
	return map[string]string{adminTokenHeader: adminToken}
}

// VerifyPasskey checks a passkey against the config service
func (c *ConfigClient) VerifyPasskey(ctx context.Context, passkey string) error {
	body, err := c.client.call(ctx, fasthttp.MethodPost, "/config/verify-passkey", nil, map[string]string{
		"passKey": passkey,
	})
	if err != nil {
		return err
	}
	return expectSuccess(body)
}

// SMTPsByPasskey lists the credential records tied to a passkey
func (c *ConfigClient) SMTPsByPasskey(ctx context.Context, passkey string) ([]models.SMTPConfig, error) {
	body, err := c.client.call(ctx, fasthttp.MethodGet, "/config/smtps?pass_key="+url.QueryEscape(passkey), nil, nil)
	if err != nil {
		return nil, err
	}
	var configs []models.SMTPConfig
	if err := decode(body, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// AllSMTPs lists every credential record (admin only)
func (c *ConfigClient) AllSMTPs(ctx context.Context, adminToken string) ([]models.SMTPConfig, error) {
	body, err := c.client.call(ctx, fasthttp.MethodGet, "/config/all", adminHeaders(adminToken), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data []models.SMTPConfig `json:"data"`
	}
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SaveSMTP creates or updates a credential record. adminToken may be empty
// for passkey holders.
func (c *ConfigClient) SaveSMTP(ctx context.Context, adminToken string, req models.SaveSMTPRequest) error {
	body, err := c.client.call(ctx, fasthttp.MethodPost, "/config/save-config", adminHeaders(adminToken), req)
	if err != nil {
		return err
	}
	return expectAccepted(body)
}

// DeleteSMTP removes a credential record (admin only)
func (c *ConfigClient) DeleteSMTP(ctx context.Context, adminToken, id string) error {
	body, err := c.client.call(ctx, fasthttp.MethodDelete, "/config/"+url.PathEscape(id), adminHeaders(adminToken), nil)
	if err != nil {
		return err
	}
	return expectAccepted(body)
}

// Passkeys lists the issued passkeys (admin only)
func (c *ConfigClient) Passkeys(ctx context.Context, adminToken string) ([]string, error) {
	body, err := c.client.call(ctx, fasthttp.MethodGet, "/config/passkeys", adminHeaders(adminToken), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Passkeys []string `json:"passkeys"`
	}
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	return resp.Passkeys, nil
}

// AddPasskey issues a new passkey (admin only)
func (c *ConfigClient) AddPasskey(ctx context.Context, adminToken, passkey string) error {
	body, err := c.client.call(ctx, fasthttp.MethodPost, "/config/passkeys", adminHeaders(adminToken), map[string]string{
		"passKey": passkey,
	})
	if err != nil {
		return err
	}
	return expectAccepted(body)
}

// DeletePasskey revokes a passkey (admin only)
func (c *ConfigClient) DeletePasskey(ctx context.Context, adminToken, passkey string) error {
	body, err := c.client.call(ctx, fasthttp.MethodDelete, "/config/passkeys/"+url.PathEscape(passkey), adminHeaders(adminToken), nil)
	if err != nil {
		return err
	}
	return expectAccepted(body)
}
