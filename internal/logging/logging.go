// Package logging builds the process logger and keeps credentials out of it.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const redactedValue = "[REDACTED]"

var sensitiveKeyParts = []string{"token", "password", "secret", "authorization"}

// New returns a text logger writing to out at the named level. An empty
// level means info; a nil out means stderr.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	lvl := logrus.InfoLevel
	if trimmed := strings.TrimSpace(level); trimmed != "" {
		parsed, err := logrus.ParseLevel(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	})
	logger.AddHook(RedactHook{})
	return logger, nil
}

// Discard returns a logger that drops everything. Components fall back to
// it when constructed without a logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}

// RedactHook replaces the value of any field whose key looks like a
// credential.
type RedactHook struct{}

// Levels implements logrus.Hook.
func (RedactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (RedactHook) Fire(entry *logrus.Entry) error {
	for key := range entry.Data {
		if IsSensitiveKey(key) {
			entry.Data[key] = redactedValue
		}
	}
	return nil
}

// IsSensitiveKey reports whether a field key names a credential.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
