package soft

import (
	"fmt"
	"sync"
	"time"

	"github.com/UntitledError-09/fractal-generator/src/render"
)

// fence is a one-shot completion latch. Submissions close done; waiters
// select against it with a deadline.
type fence struct {
	mu   sync.Mutex
	done chan struct{}
}

func newFence(signaled bool) *fence {
	f := &fence{done: make(chan struct{})}
	if signaled {
		close(f.done)
	}
	return f
}

func (f *fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
	default:
		close(f.done)
	}
}

func (f *fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	if timeout <= 0 {
		select {
		case <-done:
			return nil
		default:
			return fmt.Errorf("fence poll: %w", render.ErrAcquireTimeout)
		}
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("fence wait after %v: %w", timeout, render.ErrAcquireTimeout)
	}
}

func (f *fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		f.done = make(chan struct{})
	default:
	}
	return nil
}

func (f *fence) Destroy() {}

// semaphore is a binary signal consumed by the wait that sees it.
type semaphore struct {
	signaled bool
}

func (s *semaphore) Destroy() {}
