package automaton

import (
	"context"
	"errors"
	"sync"
)

// ErrInterrupted is returned by sources that end abruptly.
var ErrInterrupted = errors.New("input source interrupted")

// Source supplies external inputs.
//
// Run delivers inputs through emit until the source ends. Returning nil
// means the source completed; returning an error means it was interrupted.
// ctx is cancelled when the automaton is closed, after which the result is
// ignored.
type Source[I any] interface {
	Run(ctx context.Context, emit func(I)) error
}

// SourceFunc adapts a function to Source.
type SourceFunc[I any] func(ctx context.Context, emit func(I)) error

// Run calls f.
func (f SourceFunc[I]) Run(ctx context.Context, emit func(I)) error {
	return f(ctx, emit)
}

// FromChannel reads inputs from ch. Closing ch completes the source;
// cancelling ctx interrupts it.
func FromChannel[I any](ctx context.Context, ch <-chan I) Source[I] {
	return SourceFunc[I](func(runCtx context.Context, emit func(I)) error {
		for {
			select {
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				emit(v)
			case <-ctx.Done():
				return ErrInterrupted
			case <-runCtx.Done():
				return runCtx.Err()
			}
		}
	})
}

// Pipe is a push source. Send never blocks: inputs are buffered until the
// automaton takes them. Complete and Interrupt are final and mutually
// exclusive; the first one called wins. Inputs sent before either are
// still delivered.
type Pipe[I any] struct {
	mu          sync.Mutex
	queue       *eventQueue[I]
	interrupted bool
}

// NewPipe creates an open pipe.
func NewPipe[I any]() *Pipe[I] {
	return &Pipe[I]{queue: newEventQueue[I]()}
}

// Send pushes an input. Returns false once the pipe has ended.
func (p *Pipe[I]) Send(v I) bool {
	return p.queue.Enqueue(v)
}

// Complete ends the pipe gracefully.
func (p *Pipe[I]) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue.Close()
}

// Interrupt ends the pipe abruptly.
func (p *Pipe[I]) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue.Closed() {
		return
	}
	p.interrupted = true
	p.queue.Close()
}

// Run implements Source. A pipe feeds a single automaton.
func (p *Pipe[I]) Run(ctx context.Context, emit func(I)) error {
	for {
		if v, ok := p.queue.TryDequeue(); ok {
			emit(v)
			continue
		}
		if p.queue.Drained() {
			p.mu.Lock()
			interrupted := p.interrupted
			p.mu.Unlock()
			if interrupted {
				return ErrInterrupted
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.queue.Wait():
		}
	}
}
