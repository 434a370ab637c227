package sapi

import (
	"context"
	"errors"
	"sync"
)

// ErrStreamConsumed is returned when a stream is opened a second time.
var ErrStreamConsumed = errors.New("stream already consumed")

// Stream is a lazy, single-pass sequence of body chunks.
type Stream struct {
	mu       sync.Mutex
	consumed bool
	chunks   <-chan []byte
	produce  func(ctx context.Context, emit func([]byte) error) error

	done     chan struct{}
	doneOnce sync.Once
}

// NewStream wraps a push-driven producer. The producer sends chunks in order
// and closes the channel when it is done. Sends must also select on Done: the
// consumer stops receiving once the client is gone.
func NewStream(chunks <-chan []byte) *Stream {
	return &Stream{chunks: chunks, done: make(chan struct{})}
}

// StreamFunc wraps a producer that runs once the stream is first consumed.
// emit blocks until the consumer takes the chunk and fails once the consumer
// is gone; produce should return that error.
func StreamFunc(produce func(ctx context.Context, emit func([]byte) error) error) *Stream {
	return &Stream{produce: produce, done: make(chan struct{})}
}

// Done is closed when the consumer stops reading, whether the stream ended or
// was abandoned.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (*Stream) Size() (int64, bool) { return 0, false }

func (*Stream) body() {}

// open hands out the chunk channel exactly once. errc, when non-nil, yields
// the producer's result after the channel is closed.
func (s *Stream) open(ctx context.Context) (chunks <-chan []byte, errc <-chan error, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consumed {
		return nil, nil, ErrStreamConsumed
	}
	s.consumed = true

	if s.produce == nil {
		return s.chunks, nil, nil
	}

	ch := make(chan []byte)
	ec := make(chan error, 1)
	go func() {
		defer close(ch)
		ec <- s.produce(ctx, func(p []byte) error {
			select {
			case ch <- p:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return ch, ec, nil
}
