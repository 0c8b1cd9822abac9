package automaton

import (
	"context"
	"time"
)

// Producer is a cold asynchronous operation. It does nothing until the
// automaton starts it on its own goroutine; it then calls emit zero or more
// times and completes by returning.
//
// Disposal cancels ctx. A producer must stop emitting and return promptly
// once ctx is done; anything emitted after disposal is discarded. Producers
// have no error channel: failures are reported by emitting an ordinary input.
type Producer[I any] func(ctx context.Context, emit func(I))

// Just emits values in order and completes.
func Just[I any](values ...I) Producer[I] {
	return func(ctx context.Context, emit func(I)) {
		for _, v := range values {
			if ctx.Err() != nil {
				return
			}
			emit(v)
		}
	}
}

// Delay runs p after d, unless disposed first.
func Delay[I any](d time.Duration, p Producer[I]) Producer[I] {
	return func(ctx context.Context, emit func(I)) {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		p(ctx, emit)
	}
}

// Sequence runs producers one after another.
func Sequence[I any](ps ...Producer[I]) Producer[I] {
	return func(ctx context.Context, emit func(I)) {
		for _, p := range ps {
			if ctx.Err() != nil {
				return
			}
			p(ctx, emit)
		}
	}
}

// Ticker emits value every interval, n times. With n <= 0 it ticks until
// disposed.
func Ticker[I any](interval time.Duration, n int, value I) Producer[I] {
	return func(ctx context.Context, emit func(I)) {
		t := time.NewTicker(interval)
		defer t.Stop()

		for i := 0; n <= 0 || i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				emit(value)
			}
		}
	}
}

// Never emits nothing and completes only when disposed.
func Never[I any]() Producer[I] {
	return func(ctx context.Context, _ func(I)) {
		<-ctx.Done()
	}
}
