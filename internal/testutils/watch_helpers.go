package testutils

import "time"

// TryReceive attempts to receive a value from a channel within the specified timeout. Returns
// the value and true if successful, or the zero value and false if timeout occurs.
func TryReceive[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}
