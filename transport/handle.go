package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Handle grants exclusive use of a Session. A firmware transfer and a
// display write share one physical link, so every operation acquires the
// handle first and fails fast with ErrBusy instead of interleaving.
type Handle struct {
	sess  Session
	mu    sync.Mutex
	owner atomic.Value // string
}

// NewHandle wraps sess. The handle does not take ownership of Close.
func NewHandle(sess Session) *Handle {
	if sess == nil {
		panic("session cannot be nil")
	}
	return &Handle{sess: sess}
}

// Acquire claims the link for the named operation. The returned release
// function must be called when the operation ends; extra calls are no-ops.
func (h *Handle) Acquire(op string) (Session, func(), error) {
	if !h.mu.TryLock() {
		owner, _ := h.owner.Load().(string)
		return nil, nil, fmt.Errorf("%w (%s in progress)", ErrBusy, owner)
	}
	h.owner.Store(op)

	var once sync.Once
	release := func() {
		once.Do(func() {
			h.owner.Store("")
			h.mu.Unlock()
		})
	}
	return h.sess, release, nil
}

// Session returns the underlying session without acquiring it.
// Callers must not use it for I/O while another operation holds the handle.
func (h *Handle) Session() Session {
	return h.sess
}
