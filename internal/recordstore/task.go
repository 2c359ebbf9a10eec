package recordstore

import (
	"context"
	"time"
)

const writeTimeout = 30 * time.Second

// Task is the handle for a dispatched write. Callers may wait on it or drop it.
type Task struct {
	name string
	done chan struct{}
	err  error
}

func (t *Task) Name() string { return t.name }

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the write finishes or ctx ends. Ending ctx does not
// cancel the write.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the write's error once it has finished, nil before that.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// FailedTask returns an already-finished task carrying err.
func FailedTask(name string, err error) *Task {
	t := &Task{name: name, done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// Dispatch runs write in the background, detached from ctx cancellation. A
// successful write is followed by a reload; a failed one is logged and the
// snapshot is not touched.
func (s *Store) Dispatch(ctx context.Context, name string, write func(context.Context) error) *Task {
	t := &Task{name: name, done: make(chan struct{})}
	base := context.WithoutCancel(ctx)

	go func() {
		defer close(t.done)

		writeCtx, cancel := context.WithTimeout(base, writeTimeout)
		defer cancel()

		if err := write(writeCtx); err != nil {
			s.log.Error().Err(err).Str("op", name).Msg("remote write failed")
			t.err = err
			return
		}
		_, _ = s.Load(writeCtx)
	}()
	return t
}
