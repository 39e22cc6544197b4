package messaging

import (
	"sync"
	"time"
)

// TypingController owns the local user's typing lifecycle: Start publishes a
// "typing" presence update and (re)arms a single-shot expiry timer; Stop
// publishes "not typing" and cancels it. Debounce, not throttle: restarting
// replaces the pending timer. At most one timer is outstanding, so starting
// in a second thread first clears the first thread's remote flag.
//
// The controller has its own mutex because the timer callback fires on a
// runtime goroutine, outside the Coordinator's serialization.
type TypingController struct {
	mu      sync.Mutex
	window  time.Duration
	publish func(threadID string, typing bool)

	thread string
	timer  *time.Timer
	gen    uint64
	closed bool
}

func NewTypingController(window time.Duration, publish func(threadID string, typing bool)) *TypingController {
	return &TypingController{
		window:  window,
		publish: publish,
	}
}

// Start marks the local user as typing in threadID.
func (t *TypingController) Start(threadID string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	var stopped string
	if t.thread != "" && t.thread != threadID {
		stopped = t.thread
	}
	if t.timer != nil {
		t.timer.Stop()
	}

	t.thread = threadID
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.window, func() {
		t.expire(threadID, gen)
	})
	t.mu.Unlock()

	if stopped != "" {
		t.publish(stopped, false)
	}
	t.publish(threadID, true)
}

// Stop cancels the pending expiry for threadID and clears the remote flag.
// A no-op if the user is not typing there.
func (t *TypingController) Stop(threadID string) {
	t.mu.Lock()
	if t.closed || t.thread != threadID {
		t.mu.Unlock()
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.thread = ""
	t.gen++
	t.mu.Unlock()

	t.publish(threadID, false)
}

// expire is the timer callback; the generation check drops firings that
// lost a race with a restart or a Stop.
func (t *TypingController) expire(threadID string, gen uint64) {
	t.mu.Lock()
	if t.closed || t.gen != gen || t.thread != threadID {
		t.mu.Unlock()
		return
	}
	t.thread = ""
	t.timer = nil
	t.mu.Unlock()

	t.publish(threadID, false)
}

// Close cancels any pending timer; no further publishes occur.
func (t *TypingController) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.thread = ""
}
