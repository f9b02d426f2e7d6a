package synth

import (
	"sync"
	"time"
)

// EventKind classifies progress records.
type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
)

// Terminal reports whether the event ends its stream.
func (k EventKind) Terminal() bool {
	return k == EventCompleted || k == EventFailed || k == EventCancelled
}

// Event is one ordered progress record of a task. Seq starts at 1 and
// increases by one per event.
type Event struct {
	TaskID    string     `json:"task_id"`
	Seq       int        `json:"seq"`
	Kind      EventKind  `json:"kind"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	Artifact  string     `json:"artifact,omitempty"`
	URL       string     `json:"url,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Time      time.Time  `json:"time"`
}

// broker keeps the event history of each task and fans it out to
// subscribers. Late subscribers receive the full history first.
type broker struct {
	mu      sync.Mutex
	streams map[string]*stream
}

type stream struct {
	events   []Event
	subs     map[*subscriber]struct{}
	finished bool
}

func newBroker() *broker {
	return &broker{streams: make(map[string]*stream)}
}

func (b *broker) open(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[taskID]; !ok {
		b.streams[taskID] = &stream{subs: make(map[*subscriber]struct{})}
	}
}

// publish appends ev to the task's history. Events after a terminal event
// are dropped.
func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[ev.TaskID]
	if !ok || s.finished {
		return
	}
	ev.Seq = len(s.events) + 1
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.events = append(s.events, ev)
	final := ev.Kind.Terminal()
	if final {
		s.finished = true
	}
	for sub := range s.subs {
		sub.push(ev, final)
	}
	if final {
		s.subs = nil
	}
}

// subscribe returns a channel replaying the history and then live events.
// The channel closes after the terminal event or when cancel is called.
func (b *broker) subscribe(taskID string) (<-chan Event, func(), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[taskID]
	if !ok {
		return nil, nil, false
	}
	sub := &subscriber{
		out:    make(chan Event),
		queue:  append([]Event(nil), s.events...),
		closed: s.finished,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if !s.finished {
		s.subs[sub] = struct{}{}
	}
	go sub.pump()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if cur, ok := b.streams[taskID]; ok && cur.subs != nil {
				delete(cur.subs, sub)
			}
			b.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.out, cancel, true
}

func (b *broker) remove(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.streams, taskID)
}

// subscriber delivers queued events in order without blocking the publisher.
type subscriber struct {
	out chan Event

	mu     sync.Mutex
	queue  []Event
	closed bool

	wake chan struct{}
	done chan struct{}
}

func (s *subscriber) push(ev Event, final bool) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	if final {
		s.closed = true
	}
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
