package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeInserted       EventType = "node_inserted"
	EventContributionLoaded EventType = "contribution_loaded"
	EventErrorReported      EventType = "error_reported"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NodeEvent represents the insertion of a node into the tree.
type NodeEvent struct {
	EventBase
	ModuleID string `json:"module_id"`
	Path     string `json:"path"`
	NodeName string `json:"node_name"`
}

// ContributionEvent represents the end of a LoadContribution call.
type ContributionEvent struct {
	EventBase
	ModuleID string        `json:"module_id"`
	Path     string        `json:"path"`
	Added    int           `json:"added"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// ErrorEvent represents an error reported to the host.
type ErrorEvent struct {
	EventBase
	ModuleID string `json:"module_id,omitempty"`
	Message  string `json:"message"`
	Cause    error  `json:"-"`
	Warning  bool   `json:"warning,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeInserted       func(context.Context, *NodeEvent)
	OnContributionLoaded func(context.Context, *ContributionEvent)
	OnErrorReported      func(context.Context, *ErrorEvent)
}

// JoinHooks fans every callback out to all non-nil callbacks of the given hooks.
func JoinHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		h := h
		if h.OnNodeInserted != nil {
			prev := out.OnNodeInserted
			out.OnNodeInserted = func(ctx context.Context, e *NodeEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnNodeInserted(ctx, e)
			}
		}
		if h.OnContributionLoaded != nil {
			prev := out.OnContributionLoaded
			out.OnContributionLoaded = func(ctx context.Context, e *ContributionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnContributionLoaded(ctx, e)
			}
		}
		if h.OnErrorReported != nil {
			prev := out.OnErrorReported
			out.OnErrorReported = func(ctx context.Context, e *ErrorEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnErrorReported(ctx, e)
			}
		}
	}
	return out
}
