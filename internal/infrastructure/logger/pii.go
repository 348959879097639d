package logger

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MaskEmail keeps the first character of the local part and the domain:
// jane.doe@example.com renders as j*******@example.com
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return MaskSecret(email)
	}
	local, domain := email[:at], email[at:]
	r, size := utf8.DecodeRuneInString(local)
	return string(r) + strings.Repeat("*", utf8.RuneCountInString(local[size:])) + domain
}

// MaskPhone keeps the last four digits
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

// MaskSecret renders a secret as its first four characters, or as a fixed
// mask when it is too short to reveal anything
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if utf8.RuneCountInString(secret) < 12 {
		return "****"
	}
	runes := []rune(secret)
	return string(runes[:4]) + "****"
}

// MaskPII masks a free-form personal value (names, addresses). Only the first
// character of each word is kept.
func MaskPII(v string) string {
	words := strings.Fields(v)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(r) + strings.Repeat("*", utf8.RuneCountInString(w[size:]))
	}
	return strings.Join(words, " ")
}

// Email is a zap field holding a masked email address
func Email(key, v string) zap.Field { return zap.String(key, MaskEmail(v)) }

// Phone is a zap field holding a masked phone number
func Phone(key, v string) zap.Field { return zap.String(key, MaskPhone(v)) }

// Secret is a zap field holding a masked secret
func Secret(key, v string) zap.Field { return zap.String(key, MaskSecret(v)) }

// PII is a zap field holding a masked personal value
func PII(key, v string) zap.Field { return zap.String(key, MaskPII(v)) }
