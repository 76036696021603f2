package usecase

import (
	"context"
	"sync"

	"mitcstore/internal/domain/repository"
)

// Subscription is a live query handle. It ends on Unsubscribe or when the
// context it was opened with is done.
type Subscription struct {
	once sync.Once
	stop repository.Unsubscribe
	done chan struct{}
}

func newSubscription(ctx context.Context, stop repository.Unsubscribe) *Subscription {
	s := &Subscription{
		stop: stop,
		done: make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-s.done:
		}
	}()
	return s
}

// Unsubscribe releases the underlying listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		close(s.done)
	})
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
