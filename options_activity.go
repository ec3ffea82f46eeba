package persist

import (
	"time"

	"github.com/goliatone/go-persist/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified when the container is
// hydrated and after each write-back attempt. Hooks are cloned and nil
// entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.activityChannel = channel
	}
}

// WithActivityActor attributes emitted events to an actor and tenant, for
// sinks that record who owns a slot.
func WithActivityActor(actorID, tenantID string) Option {
	return func(cfg *config) {
		cfg.activityActor = actorID
		cfg.activityTenant = tenantID
	}
}

// ActivityHooks returns a cloned slice of the hooks configured on the
// container. The returned slice can be safely mutated by the caller.
func (c *Container[T]) ActivityHooks() activity.Hooks {
	if c == nil {
		return nil
	}
	return cloneActivityHooks(c.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

func newEmitter(cfg config, key, containerID string) *activity.Emitter {
	return activity.NewEmitter(cfg.activityHooks, activity.Config{
		Channel:     cfg.activityChannel,
		Key:         key,
		ContainerID: containerID,
		ActorID:     cfg.activityActor,
		TenantID:    cfg.activityTenant,
	})
}

// emit forwards verb to the activity hooks. Hook failures are logged and
// never fail the persistence operation that produced the event.
func (c *Container[T]) emit(verb string, input activity.SlotEventInput) {
	if !c.emitter.Enabled() {
		return
	}
	start := time.Now()
	if err := c.emitter.Emit(c.cfg.ctx, verb, input); err != nil {
		c.cfg.logger.Log(LogEvent{
			Op:       OpActivity,
			Key:      c.key,
			Source:   verb,
			Duration: time.Since(start),
			Err:      err,
		})
	}
}
