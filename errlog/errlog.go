// Package errlog is the single boundary between backend failures and
// anything user- or log-facing: Public produces display-safe messages,
// Diagnostic writes redacted structured records for local debugging.
package errlog

import (
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPublicMessage is returned by Public when no fallback is given.
	DefaultPublicMessage = "something went wrong, please try again"

	// Redacted replaces any value stored under a sensitive key.
	Redacted = "[REDACTED]"

	// RedactedToken replaces any string that looks like an opaque token.
	RedactedToken = "[REDACTED_TOKEN]"

	maxStringLen = 200
	truncMark    = "... [truncated]"
)

// sensitiveKeys are matched as case-insensitive substrings of field names.
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"authorization",
	"apikey",
	"api_key",
	"access_token",
	"refresh_token",
	"bearer",
	"credential",
	"session",
	"cookie",
	"jwt",
}

var tokenShape = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)

var production bool

// SetProduction disables Diagnostic output. Public is unaffected.
func SetProduction(on bool) {
	production = on
}

// Public returns a message safe to show to a user. The error is ignored
// entirely: no substring of it may ever reach a client.
func Public(_ error, fallback ...string) string {
	if len(fallback) > 0 && fallback[0] != "" {
		return fallback[0]
	}
	return DefaultPublicMessage
}

// detailer is implemented by typed store errors carrying an explicit
// kind/message/code triple, so no field probing happens here.
type detailer interface {
	Details() (kind, message, code string)
}

// Diagnostic writes a sanitized record of err to the given logger. It is
// a no-op in production mode. The record is never persisted and never
// sent to the client.
func Diagnostic(log logrus.FieldLogger, context string, err error, extra map[string]interface{}) {
	if production || log == nil {
		return
	}

	fields := logrus.Fields{"context": context}

	var d detailer
	switch {
	case errors.As(err, &d):
		kind, msg, code := d.Details()
		fields["kind"] = kind
		fields["message"] = Sanitize(msg)
		if code != "" {
			fields["code"] = code
		}
	case err != nil:
		fields["message"] = Sanitize(err.Error())
	}

	if extra != nil {
		fields["extra"] = Sanitize(extra)
	}

	log.WithFields(fields).Error("APP_ERROR")
}

// Sanitize walks maps and slices, redacting values under sensitive keys,
// truncating long strings and replacing token-shaped strings.
func Sanitize(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return sanitizeString(v)

	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			if sensitiveKey(key) {
				out[key] = Redacted
				continue
			}
			out[key] = Sanitize(val)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = Sanitize(val)
		}
		return out

	default:
		return v
	}
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Token shape is checked before truncation, otherwise a long token
// would leak its first 200 characters.
func sanitizeString(s string) string {
	if tokenShape.MatchString(s) {
		return RedactedToken
	}
	if len(s) > maxStringLen {
		return s[:maxStringLen] + truncMark
	}
	return s
}
