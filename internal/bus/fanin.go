// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"sync"
)

// SubscribeAll fans multiple per-topic subscriptions into a single
// Subscriber, following the teacher's own adapter style of wrapping the
// per-topic bus contract (internal/infra/bus.Adapter) rather than
// widening Bus itself. The Scheduler's Run loop wants one channel to
// drain per spec.md §5's single-threaded event-handling model; the wire
// topics themselves stay per-concern per spec.md §6.
func SubscribeAll(ctx context.Context, b Bus, topics ...string) (Subscriber, error) {
	subs := make([]Subscriber, 0, len(topics))
	for _, topic := range topics {
		sub, err := b.Subscribe(ctx, topic)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}

	out := make(chan Message, 64)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(len(subs))
	for _, sub := range subs {
		go func(s Subscriber) {
			defer wg.Done()
			for {
				select {
				case msg, ok := <-s.C():
					if !ok {
						return
					}
					select {
					case out <- msg:
					case <-done:
						return
					}
				case <-done:
					return
				}
			}
		}(sub)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return &fanInSub{ch: out, subs: subs, done: done}, nil
}

type fanInSub struct {
	ch   chan Message
	subs []Subscriber
	done chan struct{}
	once sync.Once
}

func (f *fanInSub) C() <-chan Message { return f.ch }

func (f *fanInSub) Close() error {
	f.once.Do(func() { close(f.done) })
	var firstErr error
	for _, s := range f.subs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Subscriber = (*fanInSub)(nil)
