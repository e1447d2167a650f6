// Package broadcast fans accepted runs out to live listeners after their
// transaction committed. Delivery is best effort: nothing here can block or
// fail a submission.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/digkill/StageRank/internal/models"
)

const (
	DefaultSubscriberBuffer = 64
	DefaultSinkTimeout      = 5 * time.Second
)

// Sink is a listener that does its own I/O, such as a chat notifier.
type Sink interface {
	Notify(ctx context.Context, result models.RunResult) error
}

type Broadcaster struct {
	log         *slog.Logger
	queue       chan models.RunResult
	sinks       []Sink
	sinkTimeout time.Duration
	subBuffer   int

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func New(log *slog.Logger, buffer int, sinks ...Sink) *Broadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &Broadcaster{
		log:         log,
		queue:       make(chan models.RunResult, buffer),
		sinks:       sinks,
		sinkTimeout: DefaultSinkTimeout,
		subBuffer:   DefaultSubscriberBuffer,
		subs:        make(map[*Subscription]struct{}),
	}
}

// Publish enqueues a run without waiting. A full queue drops the run.
func (b *Broadcaster) Publish(result models.RunResult) {
	select {
	case b.queue <- result:
	default:
		b.log.Warn("broadcast queue full, dropping run", "seq", result.Log.Seq, "stage", result.Log.StageCode)
	}
}

// Run delivers queued runs until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer b.closeAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result := <-b.queue:
			b.dispatch(ctx, result)
		}
	}
}

func (b *Broadcaster) dispatch(ctx context.Context, result models.RunResult) {
	b.mu.Lock()
	for sub := range b.subs {
		select {
		case sub.ch <- result.Log:
		default:
			// Subscriber is full: drop it.
			delete(b.subs, sub)
			close(sub.ch)
			b.log.Warn("dropping slow broadcast subscriber", "subscriber", sub.id)
		}
	}
	b.mu.Unlock()

	for _, sink := range b.sinks {
		if err := b.notify(ctx, sink, result); err != nil {
			b.log.Warn("broadcast sink failed", "seq", result.Log.Seq, "err", err)
		}
	}
}

// notify gives a sink at most sinkTimeout. A sink that ignores its context
// is abandoned so the worker can move on to the next run.
func (b *Broadcaster) notify(ctx context.Context, sink Sink, result models.RunResult) error {
	ctx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sink panic: %v", r)
			}
		}()
		done <- sink.Notify(ctx, result)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("sink abandoned: %w", ctx.Err())
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Subscription receives the run log of every broadcast run until closed.
// C is closed when the subscriber is dropped or the broadcaster stops.
type Subscription struct {
	C  <-chan models.RunLog
	ch chan models.RunLog
	id string
	b  *Broadcaster
}

func (b *Broadcaster) Subscribe(id string) *Subscription {
	ch := make(chan models.RunLog, b.subBuffer)
	sub := &Subscription{C: ch, ch: ch, id: id, b: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.subs[s]; ok {
		delete(s.b.subs, s)
		close(s.ch)
	}
}

// Subscribers reports how many subscriptions are attached.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
