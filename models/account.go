package models

// SMTPConfig is a credential record owned by the config service. The front-end
// only holds transient copies for display and edit.
type SMTPConfig struct {
	ID      string `json:"id,omitempty"`
	Token   string `json:"smtp_token"`
	Host    string `json:"smtp_host"`
	User    string `json:"smtp_user"`
	Pass    string `json:"smtp_pass"`
	From    string `json:"smtp_from"`
	PassKey string `json:"pass_key,omitempty"`
}

// SaveSMTPRequest is the wire shape of POST /config/save-config
type SaveSMTPRequest struct {
	SMTPToken string `json:"smtpToken"`
	SMTPUser  string `json:"smtpUser"`
	SMTPPass  string `json:"smtpPass"`
	SMTPHost  string `json:"smtpHost"`
	SMTPFrom  string `json:"smtpFrom"`
	PassKey   string `json:"passKey,omitempty"`
}

// Missing reports whether any required credential field is blank
func (c SMTPConfig) Missing(requireToken bool) bool {
	if c.Host == "" || c.User == "" || c.Pass == "" || c.From == "" {
		return true
	}
	return requireToken && c.Token == ""
}

// SaveRequest converts a config into the upstream payload
func (c SMTPConfig) SaveRequest() SaveSMTPRequest {
	return SaveSMTPRequest{
		SMTPToken: c.Token,
		SMTPUser:  c.User,
		SMTPPass:  c.Pass,
		SMTPHost:  c.Host,
		SMTPFrom:  c.From,
		PassKey:   c.PassKey,
	}
}
