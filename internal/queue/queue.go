// Package queue provides the strict FIFO message queues mediating
// between raw test input and wire-level messages.
package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/simctl/internal/observability"
	"github.com/danmuck/simctl/internal/wire"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidQueueElement = errors.New("queue: invalid queue element")
	ErrNoMessageQueued     = errors.New("queue: no message queued")
)

type elementKind int

const (
	elementInvalid elementKind = iota
	elementMessage
	elementSegments
)

// Element is the two-case tagged push input: a fully built message, or a
// raw segment sequence built into one at push time.
type Element struct {
	kind     elementKind
	msg      *wire.Message
	segments []wire.Segment
}

func MessageElement(m *wire.Message) Element {
	return Element{kind: elementMessage, msg: m}
}

func SegmentsElement(segments []wire.Segment) Element {
	return Element{kind: elementSegments, segments: segments}
}

// MessageQueue is a strict FIFO container of messages. Push order equals
// pop order; ownership of a message transfers to the caller on Pop. All
// operations are atomic with respect to concurrent connection contexts.
type MessageQueue struct {
	name   string
	sender string
	logger zerolog.Logger

	mu    sync.Mutex
	items []*wire.Message
}

// New constructs a queue bound to a sender identity. Segment pushes are
// built into messages with that identity; it is fixed for the queue's
// lifetime.
func New(name, sender string, logger zerolog.Logger) *MessageQueue {
	return &MessageQueue{
		name:   name,
		sender: sender,
		logger: logger.With().Str("queue", name).Logger(),
	}
}

// Push appends one element. A push of any shape other than a built
// message or a non-empty segment sequence fails with
// ErrInvalidQueueElement and leaves the queue unchanged.
func (q *MessageQueue) Push(el Element) error {
	var m *wire.Message
	switch el.kind {
	case elementMessage:
		if el.msg == nil {
			return fmt.Errorf("%w: nil message", ErrInvalidQueueElement)
		}
		m = el.msg
	case elementSegments:
		built, err := wire.NewConvertMessage(q.sender, el.segments)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidQueueElement, err)
		}
		m = built
	default:
		return ErrInvalidQueueElement
	}

	q.mu.Lock()
	q.items = append(q.items, m)
	depth := len(q.items)
	q.mu.Unlock()

	observability.SetQueueDepth(q.name, depth)
	q.logger.Debug().Stringer("kind", m.Kind).Int("depth", depth).Msg("queue push")
	return nil
}

// Peek returns the front message without removing it, or nil when empty.
func (q *MessageQueue) Peek() *wire.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the front message, or nil when empty.
func (q *MessageQueue) Pop() *wire.Message {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}
	m := q.items[0]
	q.items = q.items[1:]
	depth := len(q.items)
	q.mu.Unlock()

	observability.SetQueueDepth(q.name, depth)
	return m
}

func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MessageQueue) Empty() bool {
	return q.Len() == 0
}

func (q *MessageQueue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
	observability.SetQueueDepth(q.name, 0)
}

// Snapshot returns the queued messages front to back without mutating
// the queue.
func (q *MessageQueue) Snapshot() []*wire.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*wire.Message(nil), q.items...)
}
