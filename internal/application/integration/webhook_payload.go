package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erp/syncengine/internal/domain/integration"
)

// SignatureHeader carries the HMAC-SHA256 of the raw request body
const SignatureHeader = "X-Sync-Signature"

// VerifySignature checks an HMAC-SHA256 signature of payload. The header may
// be hex or base64, optionally prefixed with "sha256=". An empty secret never
// verifies.
func VerifySignature(secret string, payload []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	sig := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if raw, err := hex.DecodeString(sig); err == nil && hmac.Equal(raw, expected) {
		return true
	}
	if raw, err := base64.StdEncoding.DecodeString(sig); err == nil && hmac.Equal(raw, expected) {
		return true
	}
	return false
}

// Sign returns the hex HMAC-SHA256 header value for payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// legacyPayload is the proprietary notification format. Its discriminator is
// notification_type, e.g. "orders/update".
type legacyPayload struct {
	NotificationType string `json:"notification_type"`
	ShopID           string `json:"shop_id"`
	SentAt           string `json:"sent_at"`
	Resource         struct {
		ID        json.RawMessage `json:"id"`
		UpdatedAt string          `json:"updated_at"`
	} `json:"resource"`
}

// structuredPayload is the structured-event format. Its discriminator is
// spec_version.
type structuredPayload struct {
	SpecVersion string `json:"spec_version"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	Source      string `json:"source"`
	Time        string `json:"time"`
	Data        struct {
		Entity string          `json:"entity"`
		ID     json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseWebhook detects the payload shape and normalizes it
func ParseWebhook(platform integration.SystemCode, body []byte) (integration.InboundEvent, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return integration.InboundEvent{}, fmt.Errorf("%w: %v", integration.ErrUnsupportedPayload, err)
	}

	var ev integration.InboundEvent
	switch {
	case top["spec_version"] != nil:
		var p structuredPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return ev, fmt.Errorf("%w: %v", integration.ErrUnsupportedPayload, err)
		}
		entity, action := splitTopic(p.Type, ".")
		if p.Data.Entity != "" {
			entity = p.Data.Entity
		}
		ev = integration.InboundEvent{
			Platform:   platform,
			Format:     integration.WebhookFormatStructured,
			EventID:    p.ID,
			AccountID:  p.Source,
			Topic:      p.Type,
			EntityType: entityTypeOf(entity),
			EntityID:   rawID(p.Data.ID),
			Action:     action,
			OccurredAt: parseTime(p.Time),
		}
	case top["notification_type"] != nil:
		var p legacyPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return ev, fmt.Errorf("%w: %v", integration.ErrUnsupportedPayload, err)
		}
		entity, action := splitTopic(p.NotificationType, "/")
		occurred := parseTime(p.Resource.UpdatedAt)
		if occurred.IsZero() {
			occurred = parseTime(p.SentAt)
		}
		ev = integration.InboundEvent{
			Platform:   platform,
			Format:     integration.WebhookFormatLegacy,
			AccountID:  p.ShopID,
			Topic:      p.NotificationType,
			EntityType: entityTypeOf(entity),
			EntityID:   rawID(p.Resource.ID),
			Action:     action,
			OccurredAt: occurred,
		}
	default:
		return ev, fmt.Errorf("%w: no format discriminator", integration.ErrUnsupportedPayload)
	}

	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}

func splitTopic(topic, sep string) (string, string) {
	entity, action, _ := strings.Cut(strings.ToLower(strings.TrimSpace(topic)), sep)
	return entity, action
}

// entityTypeOf accepts singular and plural resource names
func entityTypeOf(name string) integration.EntityType {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, "s")
	return integration.EntityType(name)
}

// rawID accepts string and numeric identifiers
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
