package automaton

import "context"

type runState int

const (
	runPending runState = iota
	runRunning
	runDone
)

// effectRun is one routed instance of an effect. Runs are owned by the
// transition loop; producer goroutines only hold the pointer to tag the
// events they post.
type effectRun[S, I any] struct {
	token  uint64
	effect *Effect[S, I]
	sched  scheduler[S, I]
	state  runState
	cancel context.CancelFunc
}

// runner starts and disposes runs on behalf of a scheduler.
type runner[S, I any] interface {
	start(r *effectRun[S, I])
	dispose(r *effectRun[S, I])
}

// scheduler applies one queue's flatten strategy. enqueue is called when a
// run is routed to the queue, release when a run of the queue finishes or
// is disposed. Both are called only from the transition loop.
type scheduler[S, I any] interface {
	enqueue(r *effectRun[S, I])
	release(r *effectRun[S, I])
}

func newScheduler[S, I any](strategy FlattenStrategy, rn runner[S, I]) scheduler[S, I] {
	switch strategy {
	case Latest:
		return &latestScheduler[S, I]{rn: rn}
	case Concat:
		return &concatScheduler[S, I]{rn: rn}
	default:
		return &mergeScheduler[S, I]{rn: rn}
	}
}

type mergeScheduler[S, I any] struct {
	rn runner[S, I]
}

func (s *mergeScheduler[S, I]) enqueue(r *effectRun[S, I]) { s.rn.start(r) }

func (s *mergeScheduler[S, I]) release(*effectRun[S, I]) {}

type latestScheduler[S, I any] struct {
	rn      runner[S, I]
	current *effectRun[S, I]
}

func (s *latestScheduler[S, I]) enqueue(r *effectRun[S, I]) {
	if cur := s.current; cur != nil {
		s.current = nil
		s.rn.dispose(cur)
	}
	s.current = r
	s.rn.start(r)
}

func (s *latestScheduler[S, I]) release(r *effectRun[S, I]) {
	if s.current == r {
		s.current = nil
	}
}

type concatScheduler[S, I any] struct {
	rn      runner[S, I]
	current *effectRun[S, I]
	pending []*effectRun[S, I]
}

func (s *concatScheduler[S, I]) enqueue(r *effectRun[S, I]) {
	if s.current == nil {
		s.current = r
		s.rn.start(r)
		return
	}
	s.pending = append(s.pending, r)
}

func (s *concatScheduler[S, I]) release(r *effectRun[S, I]) {
	if s.current != r {
		for i, p := range s.pending {
			if p == r {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				return
			}
		}
		return
	}

	s.current = nil
	if len(s.pending) == 0 {
		return
	}
	next := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.current = next
	s.rn.start(next)
}
