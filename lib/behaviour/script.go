package behaviour

import (
	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// Script is the behavioural input of the mock: *Sequential or *Declarative.
type Script interface {
	script()
}

// Sequential hands out behaviours in FIFO order. Each inbound packet
// consumes one entry.
type Sequential struct {
	queue *linkedlistqueue.Queue
}

func NewSequential(behaviours ...Behaviour) *Sequential {
	q := linkedlistqueue.New()
	for _, b := range behaviours {
		q.Enqueue(b)
	}
	return &Sequential{queue: q}
}

// Next removes and returns the head entry. ok is false once the script is
// exhausted.
func (s *Sequential) Next() (b Behaviour, ok bool) {
	v, ok := s.queue.Dequeue()
	if !ok {
		return Behaviour{}, false
	}
	return v.(Behaviour), true
}

// Peek returns the head entry without consuming it.
func (s *Sequential) Peek() (b Behaviour, ok bool) {
	v, ok := s.queue.Peek()
	if !ok {
		return Behaviour{}, false
	}
	return v.(Behaviour), true
}

// Remaining is the number of unconsumed entries.
func (s *Sequential) Remaining() int {
	return s.queue.Size()
}

// Declarative maps each packet class to a fixed list of actions. Entries are
// never consumed. An empty list ignores the packet.
type Declarative struct {
	WhoAreYou             []Action
	Handshake             []Action
	Message               []Action
	MessageWithoutSession []Action
}

// Actions returns the list for a packet class.
func (d *Declarative) Actions(c Class) []Action {
	switch c {
	case ClassWhoAreYou:
		return d.WhoAreYou
	case ClassHandshake:
		return d.Handshake
	case ClassMessage:
		return d.Message
	case ClassMessageWithoutSession:
		return d.MessageWithoutSession
	default:
		return nil
	}
}

func (*Sequential) script()  {}
func (*Declarative) script() {}
