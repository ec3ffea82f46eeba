package snapshot

import "reflect"

// Equal reports whether a and b are deeply equal. It is the change test used
// by deep watchers: two snapshots that compare equal never trigger a watcher.
func Equal[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}
