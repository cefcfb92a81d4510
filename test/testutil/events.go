package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/arloliu/reprise/types"
)

// EventRecorder is a types.Observer that keeps every event for assertions.
type EventRecorder struct {
	mu        sync.Mutex
	selected  []types.ServerSelectedEvent
	started   []types.CommandStartedEvent
	succeeded []types.CommandSucceededEvent
	failed    []types.CommandFailedEvent
	retries   []types.RetryEvent
}

var _ types.Observer = (*EventRecorder)(nil)

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) ServerSelected(_ context.Context, ev types.ServerSelectedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = append(r.selected, ev)
}

func (r *EventRecorder) CommandStarted(_ context.Context, ev types.CommandStartedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, ev)
}

func (r *EventRecorder) CommandSucceeded(_ context.Context, ev types.CommandSucceededEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, ev)
}

func (r *EventRecorder) CommandFailed(_ context.Context, ev types.CommandFailedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, ev)
}

func (r *EventRecorder) RetryScheduled(_ context.Context, ev types.RetryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, ev)
}

// Selected returns the ServerSelected events.
func (r *EventRecorder) Selected() []types.ServerSelectedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.selected)
}

// Started returns the CommandStarted events.
func (r *EventRecorder) Started() []types.CommandStartedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.started)
}

// Succeeded returns the CommandSucceeded events.
func (r *EventRecorder) Succeeded() []types.CommandSucceededEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.succeeded)
}

// Failed returns the CommandFailed events.
func (r *EventRecorder) Failed() []types.CommandFailedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.failed)
}

// Retries returns the RetryScheduled events.
func (r *EventRecorder) Retries() []types.RetryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.retries)
}

// StartedNames returns the command names of the CommandStarted events.
func (r *EventRecorder) StartedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.started))
	for _, ev := range r.started {
		names = append(names, ev.Command)
	}

	return names
}
