package automaton

import "fmt"

// Reply records one input's transition attempt.
//
// OK is true when the mapping accepted the input; ToState is then the new
// state. A rejected Reply leaves ToState at its zero value and the state
// unchanged.
type Reply[S, I any] struct {
	Seq       int64
	Input     I
	FromState S
	ToState   S
	OK        bool
}

// String renders the reply for logs and the CLI.
func (r Reply[S, I]) String() string {
	if !r.OK {
		return fmt.Sprintf("#%d %v: %v (rejected)", r.Seq, r.Input, r.FromState)
	}
	return fmt.Sprintf("#%d %v: %v -> %v", r.Seq, r.Input, r.FromState, r.ToState)
}

// Termination is the terminal kind of an automaton's reply stream.
type Termination int

const (
	// Running means no terminal signal has been delivered yet.
	Running Termination = iota
	// Completed follows completion of the input source once every effect has finished.
	Completed
	// Interrupted follows interruption of the input source or Close.
	Interrupted
)

func (t Termination) String() string {
	switch t {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("termination(%d)", int(t))
	}
}

// Observer receives replies and the terminal signal synchronously on the
// transition loop. Callbacks must not block and must not call Close.
// Either field may be nil.
type Observer[S, I any] struct {
	OnReply     func(Reply[S, I])
	OnTerminate func(Termination)
}
