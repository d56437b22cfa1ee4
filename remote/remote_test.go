package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bulkmail/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestVerifyTokenSendsHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/verify", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		if r.Header.Get("x-auth-token") == "good" {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "Invalid token"})
	})
	mail := NewMailClient(client)

	require.NoError(t, mail.VerifyToken(context.Background(), "good"))

	err := mail.VerifyToken(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "Invalid token")
}

func TestSendBulkPayload(t *testing.T) {
	var got models.BulkMessage
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/send-bulk-mail", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "tok", r.Header.Get("x-auth-token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	})

	msg := models.BulkMessage{Recipients: []string{"a@x.com", "b@x.com"}, Subject: "Hi", Body: "Hello"}
	require.NoError(t, NewMailClient(client).SendBulk(context.Background(), "tok", msg))
	assert.Equal(t, msg, got)
}

func TestNon2xxBecomesError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "expired"})
	})

	err := NewMailClient(client).VerifyToken(context.Background(), "tok")
	var remoteErr *Error
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusUnauthorized, remoteErr.Status)
	assert.Equal(t, "expired", remoteErr.Message)
}

func TestCallHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := NewMailClient(client).VerifyToken(ctx, "tok")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigClientEndpoints(t *testing.T) {
	var deleted, addedKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/config/verify-passkey":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": body["passKey"] == "pk"})
		case r.URL.Path == "/config/smtps":
			assert.Equal(t, "pk 1", r.URL.Query().Get("pass_key"))
			writeJSON(w, http.StatusOK, []models.SMTPConfig{{ID: "1", Host: "smtp.x.com"}})
		case r.URL.Path == "/config/all":
			if r.Header.Get("x-admin-token") != "admin" {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"data": []models.SMTPConfig{{ID: "1"}, {ID: "2"}}})
		case r.URL.Path == "/config/passkeys" && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]interface{}{"passkeys": []string{"a", "b"}})
		case r.URL.Path == "/config/passkeys" && r.Method == http.MethodPost:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			addedKey = body["passKey"]
			writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		default:
			http.NotFound(w, r)
		}
	})
	cfg := NewConfigClient(client)
	ctx := context.Background()

	require.NoError(t, cfg.VerifyPasskey(ctx, "pk"))
	assert.ErrorIs(t, cfg.VerifyPasskey(ctx, "nope"), ErrRejected)

	smtps, err := cfg.SMTPsByPasskey(ctx, "pk 1")
	require.NoError(t, err)
	require.Len(t, smtps, 1)
	assert.Equal(t, "smtp.x.com", smtps[0].Host)

	all, err := cfg.AllSMTPs(ctx, "admin")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = cfg.AllSMTPs(ctx, "")
	var remoteErr *Error
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusForbidden, remoteErr.Status)

	keys, err := cfg.Passkeys(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, cfg.AddPasskey(ctx, "admin", "new-key"))
	assert.Equal(t, "new-key", addedKey)

	require.NoError(t, cfg.DeleteSMTP(ctx, "admin", "42"))
	assert.Equal(t, "/config/42", deleted)
}

func TestHistoryEndpoints(t *testing.T) {
	var deleteBody struct {
		Token string   `json:"token"`
		IDs   []string `json:"ids"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message-history", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "tok", r.URL.Query().Get("token"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    []models.Record{{ID: "1", RecipientEmail: "a@x.com"}},
			})
		case http.MethodDelete:
			_ = json.NewDecoder(r.Body).Decode(&deleteBody)
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		}
	})
	cfg := NewConfigClient(client)

	records, err := cfg.ListHistory(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a@x.com", records[0].RecipientEmail)

	require.NoError(t, cfg.DeleteHistory(context.Background(), "tok", []string{"1", "2"}))
	assert.Equal(t, "tok", deleteBody.Token)
	assert.Equal(t, []string{"1", "2"}, deleteBody.IDs)
}

func TestMutationsHonourSuccessFalse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/config/passkeys":
			w.WriteHeader(http.StatusNoContent)
		case "/config/save-config":
			writeJSON(w, http.StatusOK, map[string]interface{}{"message": "saved"})
		default:
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "not yours"})
		}
	})
	cfg := NewConfigClient(client)
	ctx := context.Background()

	err := cfg.DeleteHistory(ctx, "tok", []string{"1"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "not yours")
	assert.ErrorIs(t, cfg.SaveHistory(ctx, "tok", nil), ErrRejected)
	assert.ErrorIs(t, cfg.DeleteSMTP(ctx, "admin", "1"), ErrRejected)
	assert.ErrorIs(t, cfg.DeletePasskey(ctx, "admin", "pk"), ErrRejected)

	assert.NoError(t, cfg.AddPasskey(ctx, "admin", "pk"), "empty body is accepted")
	assert.NoError(t, cfg.SaveSMTP(ctx, "admin", models.SaveSMTPRequest{}), "no success field is accepted")
}
