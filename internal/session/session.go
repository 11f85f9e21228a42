package session

import (
	"strings"
	"sync"
)

// ErrorKind classifies the single pending session error.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorServer
	ErrorUpgradeRequired
	ErrorConnectionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorServer:
		return "server_error"
	case ErrorUpgradeRequired:
		return "upgrade_required"
	case ErrorConnectionFailed:
		return "connection_failed"
	default:
		return "none"
	}
}

// Error is the value held in the session's last-error slot.
type Error struct {
	Kind    ErrorKind
	Message string
}

// IsZero reports whether no error is recorded.
func (e Error) IsZero() bool {
	return e.Kind == ErrorNone
}

// ServerError builds a server-error value with the given message.
func ServerError(message string) Error {
	return Error{Kind: ErrorServer, Message: message}
}

// UpgradeRequired builds an upgrade-required value with the given message.
func UpgradeRequired(message string) Error {
	return Error{Kind: ErrorUpgradeRequired, Message: message}
}

// ConnectionFailed builds a connection-failure value.
func ConnectionFailed() Error {
	return Error{Kind: ErrorConnectionFailed}
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	BaseURL   string
	Token     string
	Username  string
	LastError Error
}

// LoggedIn reports whether the snapshot carries a token.
func (s Snapshot) LoggedIn() bool {
	return s.Token != ""
}

// Session holds authentication state for one identity on one service.
// The zero value is not usable; construct with New.
type Session struct {
	mu        sync.RWMutex
	baseURL   string
	token     string
	username  string
	lastError Error
}

// New creates a logged-out session bound to baseURL.
func New(baseURL string) *Session {
	return &Session{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// BaseURL returns the resolved service URL.
func (s *Session) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// URLTo joins path onto the base URL, adding a leading slash when missing.
func (s *Session) URLTo(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.BaseURL() + path
}

// Token returns the current auth token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Username returns the display name of the logged in user.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// LoggedIn reports whether a token is present.
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// LoggedOut is the negation of LoggedIn.
func (s *Session) LoggedOut() bool {
	return !s.LoggedIn()
}

// SetAuth records a successful authentication.
func (s *Session) SetAuth(token, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.username = username
}

// ClearAuth drops token and username.
func (s *Session) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.username = ""
}

// SetError overwrites the last-error slot.
func (s *Session) SetError(err Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
}

// HasError reports whether an unread error is pending.
func (s *Session) HasError() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.lastError.IsZero()
}

// ConsumeError returns the pending error and clears the slot, so each error
// is observed at most once.
func (s *Session) ConsumeError() (Error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.lastError
	s.lastError = Error{}
	return err, !err.IsZero()
}

// Snapshot returns a copy of the current state without consuming the error.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		BaseURL:   s.baseURL,
		Token:     s.token,
		Username:  s.username,
		LastError: s.lastError,
	}
}
