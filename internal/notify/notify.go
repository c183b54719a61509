// Package notify pushes visible-set deltas to connected provider
// sessions. Delivery is best effort; the periodic refresh covers any
// session that misses a frame.
package notify

import (
	"github.com/example/roadside-dispatch/internal/models"
)

// Frame is one delta pushed to a provider session.
type Frame struct {
	Kind      string                   `json:"kind"` // emergency_visible | emergency_gone
	Emergency *models.EmergencyRequest `json:"emergency,omitempty"`
	ID        string                   `json:"id"`
	Place     string                   `json:"place,omitempty"`
}

// Notifier is implemented by the WS registry and the push fallback.
type Notifier interface {
	Notify(f Frame) error
}

// NopNotifier drops every frame; used when no session transport is wired.
type NopNotifier struct{}

func (NopNotifier) Notify(Frame) error { return nil }
