// Package notify delivers sync alerts to operators.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

// Header names set on webhook deliveries
const (
	SignatureHeader = "X-Sync-Signature"
	TimestampHeader = "X-Sync-Timestamp"
	EventHeader     = "X-Sync-Event"
)

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements integration.Notifier
func (n *LogNotifier) Notify(_ context.Context, note integration.Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(note.Kind)),
		zap.String("tenant_id", note.TenantID.String()),
		zap.String("connector_id", note.ConnectorID.String()),
		zap.String("entity_type", string(note.EntityType)),
		zap.String("title", note.Title),
		zap.String("message", note.Message),
		zap.Any("details", note.Details),
	}
	if note.SyncID != nil {
		fields = append(fields, zap.String("sync_id", note.SyncID.String()))
	}
	n.logger.Warn("Sync alert", fields...)
	return nil
}

// WebhookNotifier POSTs the notification as JSON. The body is signed with
// HMAC-SHA256 over "<timestamp>.<body>" so receivers can reject replays.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a WebhookNotifier. client may be nil.
func NewWebhookNotifier(url, secret string, timeout time.Duration, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := *client
	c.Timeout = timeout
	return &WebhookNotifier{url: url, secret: []byte(secret), client: &c, now: time.Now}
}

// Sign returns the hex HMAC-SHA256 of timestamp.body
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notify implements integration.Notifier
func (n *WebhookNotifier) Notify(ctx context.Context, note integration.Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	ts := strconv.FormatInt(n.now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(note.Kind))
	req.Header.Set(TimestampHeader, ts)
	if len(n.secret) > 0 {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.secret, ts, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: receiver returned %d", resp.StatusCode)
	}
	return nil
}

// MultiNotifier fans a notification out to every channel. Every channel is
// attempted; the failures are joined.
type MultiNotifier struct {
	channels []integration.Notifier
}

// NewMultiNotifier creates a MultiNotifier, skipping nil channels
func NewMultiNotifier(channels ...integration.Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, c := range channels {
		if c != nil {
			m.channels = append(m.channels, c)
		}
	}
	return m
}

// Notify implements integration.Notifier
func (m *MultiNotifier) Notify(ctx context.Context, note integration.Notification) error {
	var errs []error
	for _, c := range m.channels {
		if err := c.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ integration.Notifier = (*LogNotifier)(nil)
	_ integration.Notifier = (*WebhookNotifier)(nil)
	_ integration.Notifier = (*MultiNotifier)(nil)
)
