package testutils

import (
	"fmt"
	"sync"

	"github.com/l7mp/arrange/pkg/frontier"
)

// Call is a single frontier operation observed by a RecordingHandle.
type Call struct {
	Handle, Op string
	Frontier   []frontier.Time
}

// String renders the call as "handle.op{frontier}".
func (c Call) String() string { return fmt.Sprintf("%s.%s%v", c.Handle, c.Op, c.Frontier) }

// Recorder collects the calls of any number of handles in a single, ordered log.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) record(handle, op string, f []frontier.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Handle: handle, Op: op, Frontier: append([]frontier.Time{}, f...)})
}

// Calls returns the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call{}, r.calls...)
}

// CallsOf returns the calls recorded for one handle.
func (r *Recorder) CallsOf(handle string) []Call {
	ret := []Call{}
	for _, c := range r.Calls() {
		if c.Handle == handle {
			ret = append(ret, c)
		}
	}
	return ret
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// RecordingHandle is a fake arrangement handle with a fixed upper frontier that logs every
// frontier operation into a shared Recorder.
type RecordingHandle struct {
	Name     string
	Upper    *frontier.Antichain[frontier.Time]
	Recorder *Recorder
	mu       sync.Mutex
	released int
}

// NewRecordingHandle creates a handle whose upper frontier is {upper}.
func NewRecordingHandle(name string, upper frontier.Time, r *Recorder) *RecordingHandle {
	return &RecordingHandle{Name: name, Upper: frontier.From(upper), Recorder: r}
}

func (h *RecordingHandle) ReadUpper(upper *frontier.Antichain[frontier.Time]) {
	upper.JoinWith(h.Upper)
	h.Recorder.record(h.Name, "read_upper", upper.Elements())
}

func (h *RecordingHandle) DistinguishSince(f []frontier.Time) {
	h.Recorder.record(h.Name, "distinguish_since", f)
}

func (h *RecordingHandle) AdvanceBy(f []frontier.Time) {
	h.Recorder.record(h.Name, "advance_by", f)
}

// Release counts the number of times the handle was retired.
func (h *RecordingHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released++
}

// Released returns the number of Release calls.
func (h *RecordingHandle) Released() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Counter is a delete callback that counts its releases.
type Counter struct {
	mu sync.Mutex
	n  int
}

// Release increments the counter.
func (c *Counter) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

// Count returns the number of releases.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
