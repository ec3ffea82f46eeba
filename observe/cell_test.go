package observe

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type profile struct {
	Name  string
	Prefs map[string]any
	Tags  []string
}

func TestGetReturnsInitialIdentity(t *testing.T) {
	initial := map[string]int{"a": 1}
	cell := New(initial)

	got := cell.Get()
	got["b"] = 2
	if initial["b"] != 2 {
		t.Fatalf("expected Get to alias the initial map")
	}
}

func TestSetNotifiesShallowAndDeepWatchers(t *testing.T) {
	cell := New(1)
	var shallow, deep []Change[int]
	cell.Watch(func(c Change[int]) error {
		shallow = append(shallow, c)
		return nil
	})
	cell.Watch(func(c Change[int]) error {
		deep = append(deep, c)
		return nil
	}, Deep())

	if err := cell.Set(5); err != nil {
		t.Fatalf("set: %v", err)
	}

	want := []Change[int]{{Value: 5, Previous: 1, Replaced: true}}
	if diff := cmp.Diff(want, shallow); diff != "" {
		t.Fatalf("shallow changes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, deep); diff != "" {
		t.Fatalf("deep changes mismatch (-want +got):\n%s", diff)
	}
}

func TestSetSameValueDoesNotNotify(t *testing.T) {
	cell := New("x")
	calls := 0
	cell.Watch(func(Change[string]) error {
		calls++
		return nil
	}, Deep())

	if err := cell.Set("x"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no notification for unchanged value, got %d", calls)
	}
}

func TestUpdateNotifiesOnlyDeepWatchers(t *testing.T) {
	cell := New(profile{Name: "ada", Prefs: map[string]any{"theme": "light"}})
	shallowCalls := 0
	var deep []Change[profile]
	cell.Watch(func(Change[profile]) error {
		shallowCalls++
		return nil
	})
	cell.Watch(func(c Change[profile]) error {
		deep = append(deep, c)
		return nil
	}, Deep())

	err := cell.Update(func(p *profile) error {
		p.Prefs["theme"] = "dark"
		p.Tags = append(p.Tags, "admin")
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if shallowCalls != 0 {
		t.Fatalf("expected shallow watcher to ignore in-place updates, got %d calls", shallowCalls)
	}
	if len(deep) != 1 {
		t.Fatalf("expected one deep notification, got %d", len(deep))
	}
	wantPrev := profile{Name: "ada", Prefs: map[string]any{"theme": "light"}}
	if diff := cmp.Diff(wantPrev, deep[0].Previous); diff != "" {
		t.Fatalf("previous mismatch (-want +got):\n%s", diff)
	}
	wantNow := profile{Name: "ada", Prefs: map[string]any{"theme": "dark"}, Tags: []string{"admin"}}
	if diff := cmp.Diff(wantNow, deep[0].Value); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
	if deep[0].Replaced {
		t.Fatalf("expected in-place change to report Replaced=false")
	}
}

func TestUpdateErrorRestoresValue(t *testing.T) {
	cell := New(map[string]int{"a": 1})
	calls := 0
	cell.Watch(func(Change[map[string]int]) error {
		calls++
		return nil
	}, Deep())

	boom := errors.New("boom")
	err := cell.Update(func(m *map[string]int) error {
		(*m)["a"] = 2
		(*m)["b"] = 3
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no notification, got %d", calls)
	}
	if diff := cmp.Diff(map[string]int{"a": 1}, cell.Get()); diff != "" {
		t.Fatalf("expected value restored (-want +got):\n%s", diff)
	}

	if err := cell.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected nothing pending after a failed update, got %d calls", calls)
	}
}

func TestFailedNotificationIsDeliveredAgain(t *testing.T) {
	cell := New(0)
	failing := errors.New("offline")
	var seen []int
	cell.Watch(func(c Change[int]) error {
		seen = append(seen, c.Value)
		return failing
	}, Deep())

	if err := cell.Set(5); !errors.Is(err, failing) {
		t.Fatalf("expected watcher error, got %v", err)
	}

	failing = nil
	if err := cell.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := cell.Flush(); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if diff := cmp.Diff([]int{5, 5}, seen); diff != "" {
		t.Fatalf("unexpected deliveries (-want +got):\n%s", diff)
	}
}

func TestSetSameValueRetriesAfterFailure(t *testing.T) {
	cell := New("a")
	fail := true
	calls := 0
	cell.Watch(func(Change[string]) error {
		calls++
		if fail {
			return errors.New("offline")
		}
		return nil
	})

	if err := cell.Set("b"); err == nil {
		t.Fatalf("expected watcher error")
	}
	fail = false
	if err := cell.Set("b"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the pending change to be delivered again, got %d calls", calls)
	}
}

func TestWatcherMayReadCell(t *testing.T) {
	cell := New(map[string]int{"n": 0})
	var read []int
	cell.Watch(func(Change[map[string]int]) error {
		read = append(read, cell.Get()["n"], cell.Snapshot()["n"], cell.Watchers())
		return nil
	}, Deep())

	done := make(chan error, 1)
	go func() {
		done <- cell.Update(func(m *map[string]int) error {
			(*m)["n"] = 7
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("update did not return while a watcher read the cell")
	}
	if diff := cmp.Diff([]int{7, 7, 1}, read); diff != "" {
		t.Fatalf("unexpected reads (-want +got):\n%s", diff)
	}
}

func TestUpdateRequiresMutator(t *testing.T) {
	cell := New(0)
	if err := cell.Update(nil); !errors.Is(err, ErrNilMutator) {
		t.Fatalf("expected ErrNilMutator, got %v", err)
	}
}

func TestFlushDetectsOutOfBandMutation(t *testing.T) {
	cell := New(map[string][]int{"xs": {1}})
	var seen []map[string][]int
	cell.Watch(func(c Change[map[string][]int]) error {
		seen = append(seen, c.Value)
		return nil
	}, Deep())

	cell.Get()["xs"][0] = 42
	if err := cell.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := cell.Flush(); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(seen))
	}
	if seen[0]["xs"][0] != 42 {
		t.Fatalf("expected mutated content, got %v", seen[0])
	}
}

func TestWatcherErrorsAreJoined(t *testing.T) {
	cell := New(0)
	errA := errors.New("a")
	errB := errors.New("b")
	cell.Watch(func(Change[int]) error { return errA }, Deep())
	cell.Watch(func(Change[int]) error { return nil })
	cell.Watch(func(Change[int]) error { return errB })

	err := cell.Set(1)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined watcher errors, got %v", err)
	}
	if got := cell.Get(); got != 1 {
		t.Fatalf("expected mutation to stay applied, got %d", got)
	}
}

func TestStopRemovesWatcher(t *testing.T) {
	cell := New(0)
	calls := 0
	stop := cell.Watch(func(Change[int]) error {
		calls++
		return nil
	}, Deep())
	if cell.Watchers() != 1 {
		t.Fatalf("expected one watcher, got %d", cell.Watchers())
	}

	stop()
	stop()
	if cell.Watchers() != 0 {
		t.Fatalf("expected no watchers, got %d", cell.Watchers())
	}
	if err := cell.Set(3); err != nil {
		t.Fatalf("set: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected removed watcher not to run, got %d calls", calls)
	}
}

func TestWatchersRunInMutationOrder(t *testing.T) {
	cell := New(0)
	var mu sync.Mutex
	var order []int
	cell.Watch(func(c Change[int]) error {
		mu.Lock()
		order = append(order, c.Value)
		mu.Unlock()
		return nil
	}, Deep())

	for i := 1; i <= 5; i++ {
		if err := cell.Set(i); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	cell := New(map[string]int{"n": 0})
	notifications := 0
	cell.Watch(func(Change[map[string]int]) error {
		notifications++
		return nil
	}, Deep())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cell.Update(func(m *map[string]int) error {
				(*m)["n"]++
				return nil
			})
		}()
	}
	wg.Wait()

	if got := cell.Snapshot()["n"]; got != 20 {
		t.Fatalf("expected 20 increments, got %d", got)
	}
	if notifications != 20 {
		t.Fatalf("expected 20 notifications, got %d", notifications)
	}
}
