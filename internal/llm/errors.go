package llm

import (
	"regexp"
	"strings"
)

// ErrorClass is a coarse label for a stream failure, derived from the
// error text. Backends do not agree on status codes or shapes, so the
// classification is heuristic and used only for logging and status lines.
type ErrorClass string

const (
	ErrorClassAuth       ErrorClass = "auth"
	ErrorClassRateLimit  ErrorClass = "rate_limit"
	ErrorClassConnection ErrorClass = "connection"
	ErrorClassOverflow   ErrorClass = "context_overflow"
	ErrorClassOther      ErrorClass = "other"
)

var (
	authHintRe      = regexp.MustCompile(`(?i)unauthorized|invalid api key|authentication|no auth credentials|401\b|403\b`)
	rateLimitHintRe = regexp.MustCompile(`(?i)rate limit|too many requests|requests per (?:minute|hour|day)|quota|throttl|429\b|tpm\b|tpd\b`)
	connHintRe      = regexp.MustCompile(`(?i)connection refused|connection reset|no such host|dial tcp|timeout|timed out|eof\b|broken pipe`)
	overflowHintRe  = regexp.MustCompile(`(?i)context length exceeded|maximum context length|prompt is too long|request_too_large|context window.*(exceed|over|limit|too (?:large|long))`)
)

// Classify labels an error message. Order matters: rate-limit wording can
// also match the overflow heuristics, so it is checked first.
func Classify(msg string) ErrorClass {
	text := strings.TrimSpace(msg)
	if text == "" {
		return ErrorClassOther
	}
	switch {
	case rateLimitHintRe.MatchString(text):
		return ErrorClassRateLimit
	case authHintRe.MatchString(text):
		return ErrorClassAuth
	case overflowHintRe.MatchString(text):
		return ErrorClassOverflow
	case connHintRe.MatchString(text):
		return ErrorClassConnection
	default:
		return ErrorClassOther
	}
}
