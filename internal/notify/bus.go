package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
)

// Event is one job status transition.
//
// Contract:
//   - Publish never blocks; slow subscribers drop events.
//   - Subscribers receive on buffered channels from any goroutine, so a
//     consumer must not assume a particular thread.
type Event struct {
	JobID      uint                `json:"job_id"`
	RunID      string              `json:"run_id"`
	Status     model.JobStatus     `json:"status"`
	Trigger    model.TriggerSource `json:"trigger"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	ExitCode   *int                `json:"exit_code,omitempty"`
	Time       time.Time           `json:"time"`
}

// Bus is a simple in-memory fanout for status events.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subs: map[uint64]chan Event{}}
}

func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}

	return ch, unsub
}
