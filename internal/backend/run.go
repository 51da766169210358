package backend

import "sync"

// Run is an in-flight streaming command. Progress keeps only the newest
// snapshot: a slow reader skips intermediate ones. The channel is closed
// when the command finishes.
type Run[P, R any] struct {
	progress chan P
	done     chan struct{}
	once     sync.Once

	result R
	err    error
}

func newRun[P, R any]() *Run[P, R] {
	return &Run[P, R]{
		progress: make(chan P, 1),
		done:     make(chan struct{}),
	}
}

// Progress returns the snapshot channel.
func (r *Run[P, R]) Progress() <-chan P { return r.progress }

// Done is closed once the result is available.
func (r *Run[P, R]) Done() <-chan struct{} { return r.done }

// Wait blocks until the command finishes.
func (r *Run[P, R]) Wait() (R, error) {
	<-r.done
	return r.result, r.err
}

// offer publishes p, replacing an unread snapshot. Only the producing
// goroutine calls it.
func (r *Run[P, R]) offer(p P) {
	select {
	case r.progress <- p:
		return
	default:
	}
	select {
	case <-r.progress:
	default:
	}
	select {
	case r.progress <- p:
	default:
	}
}

func (r *Run[P, R]) finish(result R, err error) {
	r.once.Do(func() {
		r.result, r.err = result, err
		close(r.progress)
		close(r.done)
	})
}

// drain forwards every snapshot to fn on the calling goroutine and returns
// the final result.
func (r *Run[P, R]) drain(fn func(P)) (R, error) {
	for p := range r.progress {
		if fn != nil {
			fn(p)
		}
	}
	return r.Wait()
}
