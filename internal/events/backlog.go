package events

import (
	"sync"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
)

// backlog is the bounded replay window. Every published event gets a global
// monotonically increasing cursor; a reconnecting client asks for everything
// after the last cursor it saw. Events older than the window are gone; there
// is no gap-free guarantee beyond it.
type backlog struct {
	lock    sync.Mutex
	entries []Envelope
	size    int
	cursor  int64
}

func newBacklog(size int) *backlog {
	if size < 1 {
		size = 1
	}
	return &backlog{size: size}
}

// PushBack stamps the event with the next cursor and appends it, evicting the
// oldest entry when the window is full.
func (b *backlog) PushBack(ev api.Event) Envelope {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.cursor++
	env := Envelope{Cursor: b.cursor, Event: ev}
	b.entries = append(b.entries, env)
	if len(b.entries) > b.size {
		b.entries = b.entries[len(b.entries)-b.size:]
	}
	return env
}

// After returns the buffered envelopes newer than the given cursor whose job
// falls inside the scope, oldest first.
func (b *backlog) After(scope Scope, cursor int64) []Envelope {
	b.lock.Lock()
	defer b.lock.Unlock()

	var out []Envelope
	for _, env := range b.entries {
		if env.Cursor > cursor && scope.Contains(env.Event.JobID) {
			out = append(out, env)
		}
	}
	return out
}

// Size returns the number of buffered envelopes.
func (b *backlog) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.entries)
}
