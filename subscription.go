package automaton

import "sync"

// Subscription delivers replies over a channel. Replies are buffered
// without bound, so a slow reader never stalls the transition loop.
// C is closed after the terminal signal, or after Cancel.
type Subscription[S, I any] struct {
	c         chan Reply[S, I]
	mailbox   *eventQueue[Reply[S, I]]
	stop      chan struct{}
	stopOnce  sync.Once
	unobserve func()

	mu   sync.Mutex
	term Termination
}

// Replies subscribes to every subsequent reply.
func (a *Automaton[S, I]) Replies() *Subscription[S, I] {
	s := &Subscription[S, I]{
		c:       make(chan Reply[S, I]),
		mailbox: newEventQueue[Reply[S, I]](),
		stop:    make(chan struct{}),
	}
	s.unobserve = a.Observe(Observer[S, I]{
		OnReply: func(r Reply[S, I]) {
			s.mailbox.Enqueue(r)
		},
		OnTerminate: func(t Termination) {
			s.mu.Lock()
			s.term = t
			s.mu.Unlock()
			s.mailbox.Close()
		},
	})
	go s.forward()
	return s
}

// C returns the reply channel.
func (s *Subscription[S, I]) C() <-chan Reply[S, I] {
	return s.c
}

// Termination reports the terminal kind once C is closed, or Running if
// the subscription was cancelled first.
func (s *Subscription[S, I]) Termination() Termination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term
}

// Cancel stops delivery and closes C. Buffered replies are discarded.
func (s *Subscription[S, I]) Cancel() {
	s.stopOnce.Do(func() {
		s.unobserve()
		close(s.stop)
	})
}

func (s *Subscription[S, I]) forward() {
	defer close(s.c)

	for {
		if r, ok := s.mailbox.TryDequeue(); ok {
			select {
			case s.c <- r:
			case <-s.stop:
				return
			}
			continue
		}
		if s.mailbox.Drained() {
			return
		}
		select {
		case <-s.mailbox.Wait():
		case <-s.stop:
			return
		}
	}
}
