package activity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " persist.written ",
		ActorID:    " actor ",
		UserID:     " user ",
		TenantID:   " tenant ",
		ObjectType: " persist.slot ",
		ObjectID:   " count ",
		Channel:    " persist ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "persist.written" || got.ObjectType != "persist.slot" || got.ObjectID != "count" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.TenantID != "tenant" || got.Channel != "persist" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: VerbWritten}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events()))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	//nolint:staticcheck // nil context falls back to Background
	err := hooks.Notify(nil, Event{Verb: VerbWritten, ObjectType: ObjectTypeSlot, ObjectID: "count"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom1") {
		t.Fatalf("expected joined message, got %q", err.Error())
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events()) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events()))
	}
}

func TestEmitterWithoutHooksIsDisabled(t *testing.T) {
	emitter := NewEmitter(Hooks{nil}, Config{Key: "count"})
	if emitter.Enabled() {
		t.Fatalf("expected emitter without hooks to be disabled")
	}
	if err := emitter.Emit(context.Background(), VerbWritten, SlotEventInput{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var nilEmitter *Emitter
	if nilEmitter.Enabled() {
		t.Fatalf("expected nil emitter to be disabled")
	}
}

func TestEmitterStampsSlotIdentity(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{
		Key:         "count",
		ContainerID: "c-1",
		ActorID:     "actor",
		TenantID:    "tenant",
	})

	if err := emitter.Emit(context.Background(), VerbWritten, SlotEventInput{Bytes: 1}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	event, ok := capture.Last()
	if !ok {
		t.Fatalf("expected an event")
	}
	if event.ObjectID != "count" || event.ObjectType != ObjectTypeSlot || event.Channel != DefaultChannel {
		t.Fatalf("unexpected slot identity: %+v", event)
	}
	if event.ActorID != "actor" || event.TenantID != "tenant" {
		t.Fatalf("expected actor and tenant stamped, got %+v", event)
	}
	if event.Metadata["container_id"] != "c-1" || event.Metadata["bytes"] != 1 {
		t.Fatalf("unexpected metadata: %+v", event.Metadata)
	}
}

func TestEmitterPreservesExplicitFields(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Key: "count", Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), VerbWritten, SlotEventInput{
		Key:        "other",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	event, _ := capture.Last()
	if event.Channel != "custom" || event.ObjectID != "other" {
		t.Fatalf("expected explicit fields preserved, got %+v", event)
	}
	if !event.OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", event.OccurredAt)
	}
}

func TestCaptureHookFilters(t *testing.T) {
	ctx := context.Background()
	failures := &CaptureHook{Verbs: []string{VerbWriteFailed}}
	mine := &CaptureHook{ContainerID: "c-1"}
	hooks := Hooks{failures, mine}

	emit := func(containerID, verb string) {
		t.Helper()
		emitter := NewEmitter(hooks, Config{Key: "count", ContainerID: containerID})
		if err := emitter.Emit(ctx, verb, SlotEventInput{}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	emit("c-1", VerbHydrated)
	emit("c-2", VerbWriteFailed)
	emit("c-1", VerbWriteFailed)

	if got := strings.Join(failures.Seen(), ","); got != VerbWriteFailed+","+VerbWriteFailed {
		t.Fatalf("unexpected verb-filtered capture %q", got)
	}
	if got := strings.Join(mine.Seen(), ","); got != VerbHydrated+","+VerbWriteFailed {
		t.Fatalf("unexpected container-filtered capture %q", got)
	}

	mine.Reset()
	if len(mine.Events()) != 0 {
		t.Fatalf("expected reset to drop events")
	}
	if _, ok := mine.Last(); ok {
		t.Fatalf("expected no last event after reset")
	}
}

func TestCaptureHookReturnsConfiguredError(t *testing.T) {
	boom := errors.New("sink down")
	capture := &CaptureHook{Err: boom, Verbs: []string{VerbRemoved}}
	event := BuildSlotEvent(VerbWritten, SlotEventInput{Key: "count"})
	if err := capture.Notify(context.Background(), event); !errors.Is(err, boom) {
		t.Fatalf("expected configured error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected filtered event not to be recorded")
	}
}
