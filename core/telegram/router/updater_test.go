package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/cmdbus/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type fakeSource struct {
	mu      sync.Mutex
	batches [][]tele.Update
	fetched []int
	acked   []int
	err     error
	onFetch func()
}

func (s *fakeSource) Fetch(_ context.Context, offset, _ int) ([]tele.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, offset)
	if s.onFetch != nil {
		s.onFetch()
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *fakeSource) Ack(_ context.Context, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, offset)
	return nil
}

type memOffsets struct {
	offset int
	saves  int
}

func (m *memOffsets) Load(context.Context) (int, error) { return m.offset, nil }

func (m *memOffsets) Save(_ context.Context, offset int) error {
	m.offset = offset
	m.saves++
	return nil
}

func batch(ids ...int) []tele.Update {
	out := make([]tele.Update, len(ids))
	for i, id := range ids {
		out[i] = *textMessage(id, "hi")
	}
	return out
}

func TestPollAcknowledgesHighestPlusOne(t *testing.T) {
	for _, workers := range []int{1, 3} {
		rec := &calls{}
		r := newRouter(t, Options{}, recording(rec, commands.NewBase("greet", "").WithAliases("hi"), nil))
		src := &fakeSource{batches: [][]tele.Update{batch(5, 6, 7)}}
		store := &memOffsets{}
		u := NewUpdater(src, r, UpdaterOptions{Workers: workers, Store: store})

		n, err := u.Poll(context.Background())
		if err != nil || n != 3 {
			t.Fatalf("workers=%d: poll = %d, %v", workers, n, err)
		}
		if len(rec.names()) != 3 {
			t.Fatalf("workers=%d: routed %d updates", workers, len(rec.names()))
		}
		if len(src.acked) != 1 || src.acked[0] != 8 {
			t.Fatalf("workers=%d: acked = %v", workers, src.acked)
		}
		if u.Offset() != 8 || store.offset != 8 {
			t.Fatalf("workers=%d: offset = %d stored = %d", workers, u.Offset(), store.offset)
		}

		if _, err := u.Poll(context.Background()); err != nil {
			t.Fatalf("second poll: %v", err)
		}
		if src.fetched[1] != 8 {
			t.Fatalf("workers=%d: next fetch offset = %d, want 8", workers, src.fetched[1])
		}
		if len(src.acked) != 1 {
			t.Fatalf("empty batch must not be acknowledged: %v", src.acked)
		}
	}
}

func TestPollArrivalOrder(t *testing.T) {
	rec := &calls{}
	order := func(name string) commands.Command {
		return commands.New(commands.NewBase(name, "").WithAliases(name), func(_ *commands.Context, args commands.Bound) error {
			rec.add(name, args)
			return nil
		})
	}
	r := newRouter(t, Options{}, order("a"), order("b"), order("c"))
	updates := []tele.Update{*textMessage(1, "c"), *textMessage(2, "a"), *textMessage(3, "b")}
	u := NewUpdater(&fakeSource{batches: [][]tele.Update{updates}}, r, UpdaterOptions{})

	if _, err := u.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if got := strings.Join(rec.names(), ""); got != "cab" {
		t.Fatalf("order = %s", got)
	}
}

func TestPollFailuresStillAcknowledge(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{}, recording(rec, commands.NewBase("bad", "").WithAliases("hi"), errors.New("boom")))
	src := &fakeSource{batches: [][]tele.Update{batch(10, 11)}}
	u := NewUpdater(src, r, UpdaterOptions{})

	if _, err := u.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(src.acked) != 1 || src.acked[0] != 12 {
		t.Fatalf("acked = %v", src.acked)
	}
}

func TestRunLoadsOffsetAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{batches: [][]tele.Update{batch(42)}}
	fetches := 0
	src.onFetch = func() {
		fetches++
		if fetches == 2 {
			cancel()
		}
	}
	store := &memOffsets{offset: 40}
	r := newRouter(t, Options{})
	u := NewUpdater(src, r, UpdaterOptions{Store: store, Idle: time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- u.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	if src.fetched[0] != 40 {
		t.Fatalf("first fetch offset = %d, want stored 40", src.fetched[0])
	}
	if store.offset != 43 {
		t.Fatalf("stored offset = %d", store.offset)
	}
}

func TestConsumeRoutesUntilClosed(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{}, recording(rec, commands.NewBase("greet", "").WithAliases("hi"), nil))

	updates := make(chan tele.Update, 3)
	updates <- *textMessage(1, "hi")
	updates <- *textMessage(2, "nothing here")
	updates <- *textMessage(3, "hi")
	close(updates)

	if failed := r.Consume(context.Background(), updates, 1); failed != 0 {
		t.Fatalf("failed = %d", failed)
	}
	if got := rec.names(); len(got) != 2 || got[0] != "greet" || got[1] != "greet" {
		t.Fatalf("invoked = %v", got)
	}
}

func TestConsumeCountsFailures(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{}, recording(rec, commands.NewBase("fail", "").WithAliases("boom"), errors.New("boom")))

	updates := make(chan tele.Update, 4)
	for i := 1; i <= 4; i++ {
		updates <- *textMessage(i, "boom")
	}
	close(updates)

	if failed := r.Consume(context.Background(), updates, 3); failed != 4 {
		t.Fatalf("failed = %d, want 4", failed)
	}
	if got := len(rec.names()); got != 4 {
		t.Fatalf("invoked %d times", got)
	}
}

func TestConsumeDrainsBufferedOnCancel(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{}, recording(rec, commands.NewBase("greet", "").WithAliases("hi"), nil))

	updates := make(chan tele.Update, 2)
	updates <- *textMessage(1, "hi")
	updates <- *textMessage(2, "hi")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan int, 1)
	go func() { done <- r.Consume(ctx, updates, 1) }()
	select {
	case failed := <-done:
		if failed != 0 {
			t.Fatalf("failed = %d", failed)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Consume did not return after cancel")
	}
	if got := len(rec.names()); got != 2 {
		t.Fatalf("routed %d buffered updates, want 2", got)
	}
}
