package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/StageRank/internal/models"
	"github.com/digkill/StageRank/pkg/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	got    []int64
	err    error
	panics bool
	called chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{called: make(chan struct{}, 16)}
}

func (s *recordingSink) Notify(_ context.Context, r models.RunResult) error {
	defer func() { s.called <- struct{}{} }()
	s.mu.Lock()
	s.got = append(s.got, r.Log.Seq)
	s.mu.Unlock()
	if s.panics {
		panic("sink exploded")
	}
	return s.err
}

func run(seq int64) models.RunResult {
	return models.RunResult{Log: models.RunLog{Seq: seq, UserID: "u", StageCode: "A1"}}
}

func startBroadcaster(t *testing.T, b *Broadcaster) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitCalled(t *testing.T, s *recordingSink) {
	t.Helper()
	select {
	case <-s.called:
	case <-time.After(2 * time.Second):
		t.Fatal("sink not called")
	}
}

func TestPublishReachesSubscribersAndSinks(t *testing.T) {
	sink := newRecordingSink()
	b := New(logger.Discard(), 8, sink)
	sub := b.Subscribe("chart-1")
	startBroadcaster(t, b)

	b.Publish(run(1))

	select {
	case got := <-sub.C:
		assert.Equal(t, int64(1), got.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive run")
	}
	waitCalled(t, sink)
	sink.mu.Lock()
	assert.Equal(t, []int64{1}, sink.got)
	sink.mu.Unlock()
}

func TestPublishNeverBlocksWhenQueueFull(t *testing.T) {
	b := New(logger.Discard(), 1)

	done := make(chan struct{})
	go func() {
		for i := int64(0); i < 100; i++ {
			b.Publish(run(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running worker")
	}
	assert.Len(t, b.queue, 1)
}

func TestFailingSinksAreIsolated(t *testing.T) {
	failing := newRecordingSink()
	failing.err = errors.New("telegram down")
	panicking := newRecordingSink()
	panicking.panics = true
	healthy := newRecordingSink()

	b := New(logger.Discard(), 8, failing, panicking, healthy)
	startBroadcaster(t, b)

	b.Publish(run(1))
	b.Publish(run(2))

	for i := 0; i < 2; i++ {
		waitCalled(t, healthy)
	}
	healthy.mu.Lock()
	assert.Equal(t, []int64{1, 2}, healthy.got)
	healthy.mu.Unlock()
}

// blockingSink ignores its context and holds until released.
type blockingSink struct {
	release chan struct{}
	entered chan struct{}
}

func (s *blockingSink) Notify(_ context.Context, _ models.RunResult) error {
	s.entered <- struct{}{}
	<-s.release
	return nil
}

func TestHungSinkDoesNotStallDelivery(t *testing.T) {
	hung := &blockingSink{release: make(chan struct{}), entered: make(chan struct{}, 16)}
	b := New(logger.Discard(), 8, hung)
	b.sinkTimeout = 50 * time.Millisecond
	sub := b.Subscribe("chart-1")
	startBroadcaster(t, b)
	t.Cleanup(func() { close(hung.release) })

	b.Publish(run(1))
	b.Publish(run(2))

	for want := int64(1); want <= 2; want++ {
		select {
		case got := <-sub.C:
			assert.Equal(t, want, got.Seq)
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d not delivered while sink was hung", want)
		}
	}
	// The worker reached the sink for the second run as well.
	for i := 0; i < 2; i++ {
		select {
		case <-hung.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("sink not invoked for every run")
		}
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	sink := newRecordingSink()
	b := New(logger.Discard(), 128, sink)
	b.subBuffer = 1
	slow := b.Subscribe("slow")
	startBroadcaster(t, b)

	b.Publish(run(1))
	b.Publish(run(2))
	waitCalled(t, sink)
	waitCalled(t, sink)

	first, ok := <-slow.C
	require.True(t, ok)
	assert.Equal(t, int64(1), first.Seq)
	_, ok = <-slow.C
	assert.False(t, ok, "slow subscriber channel should be closed")
	assert.Equal(t, 0, b.Subscribers())

	slow.Close()
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	b := New(logger.Discard(), 1)
	sub := b.Subscribe("x")
	require.Equal(t, 1, b.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, b.Subscribers())
	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestRunClosesSubscriptionsOnStop(t *testing.T) {
	b := New(logger.Discard(), 1)
	sub := b.Subscribe("x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.Run(ctx), context.Canceled)

	_, ok := <-sub.C
	assert.False(t, ok)
}
