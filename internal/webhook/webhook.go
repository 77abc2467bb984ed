// Package webhook is the outbound webhook collaborator.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"flowdesk/internal/model"

	"go.uber.org/zap"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body,
// keyed by the per-rule secret.
const SignatureHeader = "X-Flowdesk-Signature"

type Sender struct {
	client *http.Client
	log    *zap.Logger
}

func NewSender(timeout time.Duration, log *zap.Logger) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Send POSTs the payload as JSON. Success is a 2xx response; anything
// else comes back as a *model.DeliveryError.
func (s *Sender) Send(ctx context.Context, url, secret string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &model.DeliveryError{Channel: "webhook", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &model.DeliveryError{Channel: "webhook", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &model.DeliveryError{Channel: "webhook", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.DeliveryError{
			Channel: "webhook",
			Err:     fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url),
		}
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
