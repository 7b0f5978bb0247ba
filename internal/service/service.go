// Package service holds the business rules that sit between HTTP handlers and repositories.
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
)

// Realtime pushes events to connected clients. notifications.Dispatcher implements it.
type Realtime interface {
	ToUser(ctx context.Context, userID uint, eventType string, payload interface{})
	ToAll(ctx context.Context, eventType string, payload interface{})
	ToConversation(ctx context.Context, conversationID uint, event notifications.ChatEvent)
}

type nopRealtime struct{}

func (nopRealtime) ToUser(context.Context, uint, string, interface{})             {}
func (nopRealtime) ToAll(context.Context, string, interface{})                    {}
func (nopRealtime) ToConversation(context.Context, uint, notifications.ChatEvent) {}

func realtimeOrNop(rt Realtime) Realtime {
	if rt == nil {
		return nopRealtime{}
	}
	return rt
}

// Page is the paging window requested by a caller.
type Page struct {
	Limit  int
	Offset int
}

// requireText trims s and checks it is non-empty and at most max runes.
func requireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", models.NewValidationError(field+" is required", field+" is required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", models.NewValidationError(field+" is too long", fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return s, nil
}

func optionalText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return "", models.NewValidationError(field+" is too long", fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return s, nil
}
