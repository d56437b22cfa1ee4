package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"bulkmail/auth"
	"bulkmail/config"
	"bulkmail/middleware"
	"bulkmail/models"
	"bulkmail/remote"
	"bulkmail/storage"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeMail struct {
	mu    sync.Mutex
	valid map[string]bool
	sent  []models.BulkMessage
	fail  error
}

func (f *fakeMail) VerifyToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.valid[token] {
		return nil
	}
	return fmt.Errorf("%w: Invalid token", remote.ErrRejected)
}

func (f *fakeMail) SendBulk(ctx context.Context, token string, msg models.BulkMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMail) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.valid, token)
}

type fakeConfig struct {
	mu       sync.Mutex
	passkeys []string
	smtps    []models.SMTPConfig
	saved    []models.SaveSMTPRequest
	history  map[string][]models.Record
}

func (f *fakeConfig) VerifyPasskey(ctx context.Context, passkey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.passkeys {
		if k == passkey {
			return nil
		}
	}
	return fmt.Errorf("%w: Invalid passkey", remote.ErrRejected)
}

func (f *fakeConfig) SMTPsByPasskey(ctx context.Context, passkey string) ([]models.SMTPConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SMTPConfig
	for _, s := range f.smtps {
		if s.PassKey == passkey {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeConfig) AllSMTPs(ctx context.Context, adminToken string) ([]models.SMTPConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SMTPConfig(nil), f.smtps...), nil
}

func (f *fakeConfig) SaveSMTP(ctx context.Context, adminToken string, req models.SaveSMTPRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, req)
	return nil
}

func (f *fakeConfig) DeleteSMTP(ctx context.Context, adminToken, id string) error {
	return nil
}

func (f *fakeConfig) Passkeys(ctx context.Context, adminToken string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.passkeys...), nil
}

func (f *fakeConfig) AddPasskey(ctx context.Context, adminToken, passkey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passkeys = append(f.passkeys, passkey)
	return nil
}

func (f *fakeConfig) DeletePasskey(ctx context.Context, adminToken, passkey string) error {
	return nil
}

func (f *fakeConfig) ListHistory(ctx context.Context, token string) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Record(nil), f.history[token]...), nil
}

func (f *fakeConfig) SaveHistory(ctx context.Context, token string, records []models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[token] = append(f.history[token], records...)
	return nil
}

func (f *fakeConfig) DeleteHistory(ctx context.Context, token string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	var kept []models.Record
	for _, r := range f.history[token] {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.history[token] = kept
	return nil
}

type testEnv struct {
	app      *fiber.App
	mail     *fakeMail
	services *fakeConfig
}

const adminSecret = "admin-secret"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	utils.Log.SetOutput(io.Discard)
	t.Cleanup(func() { utils.Log.SetOutput(os.Stdout) })

	cfg := config.Default()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminSecret), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.Admin.TokenHash = string(hash)

	db, err := storage.InitDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tabCache := utils.NewMemoryCache(time.Hour)
	t.Cleanup(tabCache.Close)
	devices := storage.NewDeviceStorage(db)
	tabs := storage.NewTabStorage(tabCache)
	registry := auth.NewRegistry(
		func(id string) auth.KV { return devices.KV(id) },
		func(id string) auth.KV { return tabs.KV(id) },
		time.Hour,
	)
	t.Cleanup(registry.Close)

	signer, err := auth.NewDeviceSigner("test-secret", time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		mail: &fakeMail{valid: map[string]bool{"good": true}},
		services: &fakeConfig{
			passkeys: []string{"pk-1"},
			smtps: []models.SMTPConfig{
				{ID: "1", Host: "smtp.one.com", User: "u1", From: "a@one.com", PassKey: "pk-1"},
				{ID: "2", Host: "smtp.two.com", User: "u2", From: "a@two.com", PassKey: "pk-2"},
			},
			history: map[string][]models.Record{},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env.app = New(Deps{
		Config:   cfg,
		Registry: registry,
		Signer:   signer,
		Mail:     env.mail,
		Services: env.services,
		History:  storage.NewHistoryStorage(db),
		Context:  ctx,
		Quiet:    true,
	})
	return env
}

// browser replays cookies between requests like a real browser would
type browser struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, app: e.app, cookies: map[string]string{}}
}

func (b *browser) send(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := b.app.Test(req, -1)
	require.NoError(b.t, err)
	for _, c := range resp.Cookies() {
		b.cookies[c.Name] = c.Value
	}

	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	resp.Body.Close()
	return resp, string(body)
}

func (b *browser) get(target string) (*http.Response, string) {
	return b.send(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) postForm(target string, form url.Values) (*http.Response, string) {
	if form == nil {
		form = url.Values{}
	}
	form.Set("_csrf", b.cookies["csrf_token"])
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.send(req)
}

func (b *browser) json(method, target string, payload interface{}) (*http.Response, map[string]interface{}) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(b.t, err)
		body = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", b.cookies["csrf_token"])

	resp, raw := b.send(req)
	out := map[string]interface{}{}
	if raw != "" {
		require.NoError(b.t, json.Unmarshal([]byte(raw), &out), raw)
	}
	return resp, out
}

func (b *browser) login(token string) {
	b.t.Helper()
	b.get("/verify")
	resp, _ := b.postForm("/verify", url.Values{"token": {token}})
	require.Equal(b.t, http.StatusFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.browser(t).get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
}

func TestBrowserCookiesIssued(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.get("/")

	assert.NotEmpty(t, b.cookies[middleware.DeviceCookie])
	assert.NotEmpty(t, b.cookies[middleware.TabCookie])
	assert.NotEmpty(t, b.cookies["csrf_token"])

	device := b.cookies[middleware.DeviceCookie]
	b.get("/")
	assert.Equal(t, device, b.cookies[middleware.DeviceCookie], "a valid device cookie is kept")
}

func TestMailGuardRedirectsAndResumes(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	resp, _ := b.get("/send-mail")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/verify", resp.Header.Get("Location"))

	_, page := b.get("/verify")
	assert.Contains(t, page, "<code>/send-mail</code>", "verify page shows the pending route")

	resp, _ = b.postForm("/verify", url.Values{"token": {"good"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/send-mail", resp.Header.Get("Location"))

	resp, body := b.get("/send-mail")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="composer"`)
}

func TestVerifyRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.get("/verify")

	resp, body := b.postForm("/verify", url.Values{"token": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid token")

	resp, body = b.postForm("/verify", url.Values{"token": {"  "}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please enter a valid token")
}

func TestCSRFRequired(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.get("/verify")

	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader("token=good"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	delete(b.cookies, "csrf_token")
	resp, _ := b.send(req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPIGuardAnswersJSON(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.get("/")

	resp, body := b.json(http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/verify", body["redirect"])
}

func TestHTMXGuardUsesHeader(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	req := httptest.NewRequest(http.MethodGet, "/send-mail", nil)
	req.Header.Set("HX-Request", "true")
	resp, _ := b.send(req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "/verify", resp.Header.Get("HX-Redirect"))
}

func TestSendRecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("good")

	resp, body := b.postForm("/send-mail", url.Values{
		"recipients": {"a@x.com b@x.com a@x.com "},
		"subject":    {"Launch"},
		"body":       {"<p>Hello</p>"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Emails sent successfully to 2 recipients!")
	assert.Contains(t, body, `data-api="/api/history"`)
	assert.Contains(t, body, `data-remember=""`, "only the demo remembers typed chips")
	assert.Contains(t, body, `class="message-select"`)
	assert.Contains(t, body, `class="message-delete"`)

	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, env.mail.sent[0].Recipients)
	assert.Len(t, env.services.history["good"], 2)

	resp, list := b.json(http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list["messages"], 2)
	assert.ElementsMatch(t, []interface{}{"a@x.com", "b@x.com"}, list["emails"])
}

func TestSendAPI(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("good")

	resp, body := b.json(http.MethodPost, "/api/send", map[string]interface{}{
		"recipients":      []string{"a@x.com"},
		"recipients_text": "b@x.com a@x.com",
		"subject":         "Hi",
		"body":            "Body",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["sent"])
	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, env.mail.sent[0].Recipients)

	resp, body = b.json(http.MethodPost, "/api/send", map[string]interface{}{"subject": "Hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please enter at least one recipient email.", body["error"])
	assert.Len(t, env.mail.sent, 1)
}

func TestSendWithoutRecipientsKeepsForm(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("good")

	resp, body := b.postForm("/send-mail", url.Values{"subject": {"Keep me"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please enter at least one recipient email.")
	assert.Contains(t, body, `value="Keep me"`)
	assert.Empty(t, env.mail.sent)
}

func TestSendFailureKeepsForm(t *testing.T) {
	env := newTestEnv(t)
	env.mail.fail = &remote.Error{Status: http.StatusInternalServerError, Message: "smtp down"}
	b := env.browser(t)
	b.login("good")

	resp, body := b.postForm("/send-mail", url.Values{"recipients": {"a@x.com"}, "subject": {"Retry"}})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "Error sending emails")
	assert.Contains(t, body, "a@x.com")
	assert.Empty(t, env.services.history["good"])
}

func TestRevokedTokenIsDropped(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("good")

	env.mail.revoke("good")

	resp, _ := b.get("/send-mail")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/verify", resp.Header.Get("Location"))

	// the rejected token was cleared, so a renewed token is needed
	env.mail.valid["good"] = true
	resp, _ = b.get("/send-mail")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("good")

	resp, _ := b.get("/logout")
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = b.get("/send-mail")
	assert.Equal(t, "/verify", resp.Header.Get("Location"))
}

func TestHistoryDeleteFlow(t *testing.T) {
	env := newTestEnv(t)
	env.services.history["good"] = []models.Record{
		{ID: "1", RecipientEmail: "a@x.com", Timestamp: time.Now().Add(-time.Hour)},
		{ID: "2", RecipientEmail: "b@x.com", Timestamp: time.Now()},
	}
	b := env.browser(t)
	b.login("good")

	resp, body := b.json(http.MethodPost, "/api/history/apply", map[string]interface{}{"ids": []string{"1", "2"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please select only one message to apply.", body["error"])

	resp, body = b.json(http.MethodPost, "/api/history/apply", map[string]interface{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["message"])

	resp, _ = b.json(http.MethodPost, "/api/history/delete", map[string]interface{}{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = b.json(http.MethodDelete, "/api/history/1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotNil(t, body["confirm"])
	assert.Len(t, env.services.history["good"], 2)

	resp, body = b.json(http.MethodDelete, "/api/history/1?confirm=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["messages"], 1)
	assert.Len(t, env.services.history["good"], 1)
}

func TestPasskeyNeverResumesIntoAdmin(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	resp, _ := b.get("/admin")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dash", resp.Header.Get("Location"))

	b.get("/dash")
	resp, _ = b.postForm("/dash/passkey", url.Values{"passkey": {"pk-1"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/smtps", resp.Header.Get("Location"))

	resp, body := b.get("/smtps")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "smtp.one.com")
	assert.NotContains(t, body, "smtp.two.com")

	resp, _ = b.get("/admin")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/smtps", resp.Header.Get("Location"))

	resp, _ = b.json(http.MethodDelete, "/api/smtp/1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPasskeyIgnoresAdminIntentWithQuery(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	resp, _ := b.get("/admin?tab=passkeys")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dash", resp.Header.Get("Location"))

	b.get("/dash")
	resp, _ = b.postForm("/dash/passkey", url.Values{"passkey": {"pk-1"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/smtps", resp.Header.Get("Location"))
}

func TestAdminAccess(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	b.get("/admin")
	resp, _ := b.postForm("/dash/passkey", url.Values{"admin_token": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = b.postForm("/dash/passkey", url.Values{"admin_token": {adminSecret}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))

	resp, body := b.get("/admin")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "smtp.two.com")
	assert.Contains(t, body, "pk-1")

	resp, _ = b.json(http.MethodPost, "/api/smtp", map[string]string{"smtp_host": "h"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = b.json(http.MethodPost, "/api/smtp", map[string]string{
		"smtp_token": "t", "smtp_host": "h", "smtp_user": "u", "smtp_pass": "p", "smtp_from": "f@x.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, env.services.saved, 1)
	assert.Equal(t, "h", env.services.saved[0].SMTPHost)

	resp, _ = b.json(http.MethodPost, "/api/smtp/passkeys", map[string]string{"passKey": "pk-new"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, env.services.passkeys, "pk-new")

	resp, _ = b.get("/smtp/logout")
	assert.Equal(t, "/dash", resp.Header.Get("Location"))
	resp, _ = b.get("/admin")
	assert.Equal(t, "/dash", resp.Header.Get("Location"))
}

func TestPasskeySaveIsScoped(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.get("/dash")
	b.postForm("/dash/passkey", url.Values{"passkey": {"pk-1"}})

	resp, _ := b.json(http.MethodPost, "/api/smtp", map[string]string{
		"smtp_host": "h", "smtp_user": "u", "smtp_pass": "p", "smtp_from": "f@x.com", "pass_key": "someone-else",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, env.services.saved, 1)
	assert.Equal(t, "pk-1", env.services.saved[0].PassKey)
}

func TestDemoKeepsLocalHistory(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.get("/demo")

	resp, body := b.postForm("/demo", url.Values{"recipients": {"a@x.com"}, "subject": {"Try"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Email sent successfully to 1 recipient!")
	assert.Empty(t, env.mail.sent, "demo never delivers")
	assert.Contains(t, body, `data-api="/api/demo/history"`)
	assert.Contains(t, body, `data-remember="true"`)
	assert.Contains(t, body, `id="history-apply"`)
	assert.Contains(t, body, `class="email-select" value="a@x.com"`)

	resp, list := b.json(http.MethodGet, "/api/demo/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"a@x.com"}, list["emails"])

	resp, list = b.json(http.MethodPost, "/api/demo/history/emails", map[string]interface{}{"emails": []string{"z@x.com"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"a@x.com", "z@x.com"}, list["emails"])

	other := env.browser(t)
	other.get("/")
	_, list = other.json(http.MethodGet, "/api/demo/history", nil)
	assert.Empty(t, list["emails"])
}

func TestRecipientsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.get("/")

	resp, body := b.json(http.MethodPost, "/api/recipients", map[string]interface{}{
		"existing": []string{"a@x.com"},
		"input":    "A@X.com b@x.com ",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"a@x.com", "b@x.com"}, body["recipients"])
	assert.Equal(t, []interface{}{"b@x.com"}, body["added"])
}

func TestLocaleAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	resp, body := b.get("/verify?lang=ja")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "トークンの確認")

	resp, body = b.get("/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "ページが見つかりません")

	resp, translations := b.json(http.MethodGet, "/api/i18n/en", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Invalid token", translations["token_invalid"])
}
