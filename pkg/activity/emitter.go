package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "persist"

// Config binds an emitter to one container slot. Every event it emits is
// attributed to Key and ContainerID, and to the actor and tenant when set.
type Config struct {
	Channel     string
	Key         string
	ContainerID string
	ActorID     string
	TenantID    string
}

// Emitter builds slot events for one container and fans them out to hooks.
type Emitter struct {
	hooks Hooks
	cfg   Config
}

// NewEmitter constructs an emitter for the slot described by cfg. Nil hooks
// are dropped; an emitter without hooks is disabled.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	cfg.Channel = strings.TrimSpace(cfg.Channel)
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	return &Emitter{hooks: compactHooks(hooks), cfg: cfg}
}

// Enabled reports whether any hook would receive an event.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit sends verb for the bound slot. Fields left empty in input are filled
// from the emitter configuration.
func (e *Emitter) Emit(ctx context.Context, verb string, input SlotEventInput) error {
	if !e.Enabled() {
		return nil
	}
	if input.Key == "" {
		input.Key = e.cfg.Key
	}
	if input.ContainerID == "" {
		input.ContainerID = e.cfg.ContainerID
	}
	if input.ActorID == "" {
		input.ActorID = e.cfg.ActorID
	}
	if input.TenantID == "" {
		input.TenantID = e.cfg.TenantID
	}
	if strings.TrimSpace(input.Channel) == "" {
		input.Channel = e.cfg.Channel
	}
	return e.hooks.Notify(ctx, BuildSlotEvent(verb, input))
}

func compactHooks(hooks Hooks) Hooks {
	var out Hooks
	for _, hook := range hooks {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}
