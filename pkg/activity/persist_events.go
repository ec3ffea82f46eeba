package activity

import (
	"strings"
	"time"
)

// Verbs emitted by persistent containers.
const (
	VerbHydrated    = "persist.hydrated"
	VerbWritten     = "persist.written"
	VerbWriteFailed = "persist.write_failed"
	VerbRemoved     = "persist.removed"
)

// ObjectTypeSlot identifies a storage slot bound to a container.
const ObjectTypeSlot = "persist.slot"

// SlotEventInput captures the container and storage details of one event.
type SlotEventInput struct {
	ActorID     string
	UserID      string
	TenantID    string
	Key         string
	ContainerID string
	Channel     string
	Source      string
	Bytes       int
	Err         error
	Metadata    map[string]any
	OccurredAt  time.Time
}

// BuildSlotEvent describes one occurrence on a storage slot. The key becomes
// the object ID, falling back to the container ID when empty.
func BuildSlotEvent(verb string, input SlotEventInput) Event {
	objectID := strings.TrimSpace(input.Key)
	if objectID == "" {
		objectID = strings.TrimSpace(input.ContainerID)
	}

	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if input.Key != "" {
		metadata["key"] = input.Key
	}
	if input.ContainerID != "" {
		metadata["container_id"] = input.ContainerID
	}
	if input.Source != "" {
		metadata["source"] = input.Source
	}
	if input.Bytes > 0 {
		metadata["bytes"] = input.Bytes
	}
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}

	return NormalizeEvent(Event{
		Verb:       verb,
		ActorID:    input.ActorID,
		UserID:     input.UserID,
		TenantID:   input.TenantID,
		ObjectType: ObjectTypeSlot,
		ObjectID:   objectID,
		Channel:    input.Channel,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	})
}
