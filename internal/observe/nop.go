// Package observe provides internal observer utilities for reprise.
package observe

import (
	"context"

	"github.com/arloliu/reprise/types"
)

// NopObserver is an observer that drops every event.
type NopObserver struct{}

// Compile-time assertion that NopObserver implements types.Observer.
var _ types.Observer = NopObserver{}

// ServerSelected drops the event.
func (NopObserver) ServerSelected(context.Context, types.ServerSelectedEvent) {}

// CommandStarted drops the event.
func (NopObserver) CommandStarted(context.Context, types.CommandStartedEvent) {}

// CommandSucceeded drops the event.
func (NopObserver) CommandSucceeded(context.Context, types.CommandSucceededEvent) {}

// CommandFailed drops the event.
func (NopObserver) CommandFailed(context.Context, types.CommandFailedEvent) {}

// RetryScheduled drops the event.
func (NopObserver) RetryScheduled(context.Context, types.RetryEvent) {}

// Multi fans events out to several observers in order.
type Multi []types.Observer

var _ types.Observer = Multi(nil)

// ServerSelected forwards the event to every observer.
func (m Multi) ServerSelected(ctx context.Context, ev types.ServerSelectedEvent) {
	for _, o := range m {
		o.ServerSelected(ctx, ev)
	}
}

// CommandStarted forwards the event to every observer.
func (m Multi) CommandStarted(ctx context.Context, ev types.CommandStartedEvent) {
	for _, o := range m {
		o.CommandStarted(ctx, ev)
	}
}

// CommandSucceeded forwards the event to every observer.
func (m Multi) CommandSucceeded(ctx context.Context, ev types.CommandSucceededEvent) {
	for _, o := range m {
		o.CommandSucceeded(ctx, ev)
	}
}

// CommandFailed forwards the event to every observer.
func (m Multi) CommandFailed(ctx context.Context, ev types.CommandFailedEvent) {
	for _, o := range m {
		o.CommandFailed(ctx, ev)
	}
}

// RetryScheduled forwards the event to every observer.
func (m Multi) RetryScheduled(ctx context.Context, ev types.RetryEvent) {
	for _, o := range m {
		o.RetryScheduled(ctx, ev)
	}
}
