package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"admissionsbot/internal/crm"
)

var (
	errWebhookDisabled = errors.New("webhook token is not configured")
	errBadToken        = errors.New("invalid webhook token")
)

// WebhookAuth accepts CRM webhooks carrying the shared token either as the
// token query parameter, the X-Webhook-Token header, or an X-Signature
// computed over the body with the token as secret.
type WebhookAuth struct {
	token string
}

func NewWebhookAuth(token string) *WebhookAuth {
	return &WebhookAuth{token: strings.TrimSpace(token)}
}

func (a *WebhookAuth) Verify(r *http.Request, body []byte) error {
	if a.token == "" {
		return errWebhookDisabled
	}

	if sig := strings.TrimSpace(r.Header.Get("X-Signature")); sig != "" {
		if crm.VerifySignature(body, a.token, sig) {
			return nil
		}
		return errBadToken
	}

	got := strings.TrimSpace(r.Header.Get("X-Webhook-Token"))
	if got == "" {
		got = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		return errBadToken
	}
	return nil
}
