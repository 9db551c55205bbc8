// Package notify turns operation outcomes into short user-facing messages.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/naveenspark/shopdrop/internal/session"
	"github.com/naveenspark/shopdrop/pkg/client"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	}
	return "info"
}

// Notification is a transient message for the user.
type Notification struct {
	Level       Level
	Title       string
	Description string
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Success builds a success notification.
func Success(title, description string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Description: description}
}

// Info builds an informational notification.
func Info(title, description string) Notification {
	return Notification{Level: LevelInfo, Title: title, Description: description}
}

// RegistrationFailed titles sign-up errors.
const RegistrationFailed = "Registration failed"

type titledError struct {
	title string
	err   error
}

func (e *titledError) Error() string { return e.title + ": " + e.err.Error() }
func (e *titledError) Unwrap() error { return e.err }

// Titled attaches a notification title to err for front ends that only
// receive the error. Describe ignores the title; TitleOf reads it back.
func Titled(title string, err error) error {
	if err == nil {
		return nil
	}
	return &titledError{title: title, err: err}
}

// TitleOf returns the title attached by Titled, or "".
func TitleOf(err error) string {
	var te *titledError
	if errors.As(err, &te) {
		return te.title
	}
	return ""
}

// Failure builds an error notification whose description depends on the
// kind of err. Server messages are shown verbatim when present.
func Failure(title string, err error) Notification {
	return Notification{Level: LevelError, Title: title, Description: Describe(err)}
}

// Describe returns the user-facing text for err.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var te *titledError
	if errors.As(err, &te) {
		err = te.err
	}
	if errors.Is(err, session.ErrNotAuthenticated) {
		return "Please sign in first."
	}
	if errors.Is(err, session.ErrForbidden) {
		return "You do not have access to this."
	}
	msg := client.Message(err)
	switch client.Classify(err) {
	case client.KindAuthFailed:
		return "Session expired. Please sign in again."
	case client.KindValidation:
		if msg != "" {
			return msg
		}
		return validationText(err)
	case client.KindConflict:
		// Accounts are the only thing the API refuses as a duplicate.
		if msg != "" {
			return "An account with this email already exists (" + msg + ")."
		}
		return "An account with this email already exists."
	case client.KindNotFound:
		if msg != "" {
			return msg
		}
		return "Not found."
	case client.KindServer:
		return "The server had a problem. Please try again later."
	case client.KindNetwork:
		return "Could not reach the server. Check your connection and try again."
	case client.KindTimeout:
		return "The server took too long to respond. Please try again."
	case client.KindDecode:
		return "Unexpected response from the server."
	case client.KindCanceled:
		return "Request canceled."
	}
	return err.Error()
}

// validationText drops the operation prefixes of a local validation error,
// keeping only what was wrong with the input.
func validationText(err error) string {
	s := err.Error()
	marker := domain.ErrInvalid.Error() + ": "
	if i := strings.Index(s, marker); i >= 0 {
		s = s[i+len(marker):]
	}
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// Log returns a Notifier that writes every notification to l.
func Log(l *slog.Logger) Notifier {
	return Func(func(n Notification) {
		level := slog.LevelInfo
		if n.Level == LevelError {
			level = slog.LevelWarn
		}
		l.Log(context.Background(), level, "notification",
			"level", n.Level.String(), "title", n.Title, "description", n.Description)
	})
}

// Tee fans a notification out to several notifiers.
func Tee(ns ...Notifier) Notifier {
	return Func(func(n Notification) {
		for _, x := range ns {
			x.Notify(n)
		}
	})
}

// Channel buffers notifications for a consumer such as the TUI. When the
// buffer is full the oldest notification is dropped.
type Channel struct {
	mu sync.Mutex
	ch chan Notification
}

// NewChannel returns a Channel holding up to size notifications.
func NewChannel(size int) *Channel {
	if size < 1 {
		size = 1
	}
	return &Channel{ch: make(chan Notification, size)}
}

func (c *Channel) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		select {
		case c.ch <- n:
			return
		default:
		}
		select {
		case <-c.ch:
		default:
		}
	}
}

// C returns the receive side.
func (c *Channel) C() <-chan Notification { return c.ch }
